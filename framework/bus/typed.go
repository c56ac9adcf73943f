package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

// ── Typed handles ─────────────────────────────────────────────────────────────

// Command names a state-changing request with payload type P and result R.
// Declaring commands as package-level handles lets the compiler check
// payloads and results at every Send:
//
//	var ProgressEpisode = bus.NewCommand[ProgressInput, Show]("show.progressEpisode")
//
//	show, err := bus.Send(ctx, cmds, ProgressEpisode, ProgressInput{ID: "frieren"})
type Command[P, R any] struct{ name string }

// NewCommand declares a command handle.
func NewCommand[P, R any](name string) Command[P, R] { return Command[P, R]{name: name} }

// Name returns the registration name.
func (c Command[P, R]) Name() string { return c.name }

// Query names a read-only request with payload type P and result R.
type Query[P, R any] struct{ name string }

// NewQuery declares a query handle.
func NewQuery[P, R any](name string) Query[P, R] { return Query[P, R]{name: name} }

// Name returns the registration name.
func (q Query[P, R]) Name() string { return q.name }

// Handle registers a typed command handler on a command bus. Each validator
// runs in order and their messages are concatenated.
func Handle[P, R any](b *Bus, cmd Command[P, R], h func(ctx context.Context, payload P) (R, error), validators ...func(P) []string) error {
	if b.Kind() != KindCommand {
		return fmt.Errorf("%w: command [%s] on %s bus", ErrWrongKind, cmd.name, b.Kind())
	}
	return register(b, cmd.name, h, validators)
}

// HandleQuery registers a typed query handler on a query bus.
func HandleQuery[P, R any](b *Bus, q Query[P, R], h func(ctx context.Context, payload P) (R, error), validators ...func(P) []string) error {
	if b.Kind() != KindQuery {
		return fmt.Errorf("%w: query [%s] on %s bus", ErrWrongKind, q.name, b.Kind())
	}
	return register(b, q.name, h, validators)
}

// Send dispatches a typed command.
func Send[P, R any](ctx context.Context, b *Bus, cmd Command[P, R], payload P) (R, error) {
	return cast[R](cmd.name, b.Dispatch(ctx, cmd.name, payload))
}

// Fetch asks a typed query.
func Fetch[P, R any](ctx context.Context, b *Bus, q Query[P, R], payload P) (R, error) {
	return cast[R](q.name, b.Ask(ctx, q.name, payload))
}

func register[P, R any](b *Bus, name string, h func(context.Context, P) (R, error), validators []func(P) []string) error {
	if h == nil {
		return ErrNilHandler
	}
	want := reflect.TypeFor[P]()

	handler := func(ctx context.Context, payload any) (any, error) {
		p, ok := asPayload[P](payload)
		if !ok {
			return nil, fmt.Errorf("%w: [%s] expects %v, got %T", ErrPayloadType, name, want, payload)
		}
		return h(ctx, p)
	}

	opts := []RegisterOption{WithDecoder(func(raw json.RawMessage) (any, error) {
		var p P
		if len(raw) == 0 {
			return p, nil
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	})}

	if len(validators) > 0 {
		opts = append(opts, WithValidator(func(payload any) []string {
			p, ok := asPayload[P](payload)
			if !ok {
				return []string{fmt.Sprintf("payload must be %v", want)}
			}
			var msgs []string
			for _, v := range validators {
				msgs = append(msgs, v(p)...)
			}
			return msgs
		}))
	}

	return b.Register(name, handler, opts...)
}

// asPayload converts payload to P, letting an untyped nil stand for the zero value.
func asPayload[P any](payload any) (P, bool) {
	if payload == nil {
		var zero P
		return zero, true
	}
	p, ok := payload.(P)
	return p, ok
}

func cast[R any](name string, v any, err error) (R, error) {
	var zero R
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	r, ok := v.(R)
	if !ok {
		return zero, fmt.Errorf("%w: [%s] returned %T, want %v", ErrResultType, name, v, reflect.TypeFor[R]())
	}
	return r, nil
}
