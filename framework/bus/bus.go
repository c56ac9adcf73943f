package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/km-arc/tracker/framework/logging"
)

// ── Types ─────────────────────────────────────────────────────────────────────

// Kind distinguishes command buses from query buses. The dispatch mechanics
// are identical; queries are expected not to mutate.
type Kind string

const (
	KindCommand Kind = "command"
	KindQuery   Kind = "query"
)

// Handler executes a command or answers a query. It runs on the
// dispatching goroutine and the bus returns only once it has.
type Handler func(ctx context.Context, payload any) (any, error)

// Validator inspects a payload before the handler runs. An empty result
// means valid; otherwise each string is a reason the payload was rejected.
// Validators must not have side effects.
type Validator func(payload any) []string

// Middleware wraps the handler registered under name. Middleware runs after
// validation succeeded.
type Middleware func(name string, next Handler) Handler

// Decoder turns a raw JSON payload into the value the handler expects.
type Decoder func(raw json.RawMessage) (any, error)

type registration struct {
	handler   Handler
	validator Validator
	decode    Decoder
}

// RegisterOption configures a single registration.
type RegisterOption func(*registration)

// WithValidator attaches a validator to a registration.
func WithValidator(v Validator) RegisterOption {
	return func(r *registration) { r.validator = v }
}

// WithDecoder sets how DispatchJSON decodes payloads for a registration.
func WithDecoder(d Decoder) RegisterOption {
	return func(r *registration) { r.decode = d }
}

// ── Bus ───────────────────────────────────────────────────────────────────────

// Bus routes named commands (or queries) to exactly one handler each.
type Bus struct {
	kind Kind

	mu         sync.RWMutex
	handlers   map[string]*registration
	middleware []Middleware

	logger logging.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the bus logger.
func WithLogger(l logging.Logger) Option {
	return func(b *Bus) { b.logger = logging.OrNop(l) }
}

// WithMiddleware appends middleware at construction time.
func WithMiddleware(mw ...Middleware) Option {
	return func(b *Bus) { b.middleware = append(b.middleware, mw...) }
}

// NewCommandBus creates a bus for state-changing requests.
func NewCommandBus(opts ...Option) *Bus { return newBus(KindCommand, opts) }

// NewQueryBus creates a bus for read-only requests.
func NewQueryBus(opts ...Option) *Bus { return newBus(KindQuery, opts) }

func newBus(kind Kind, opts []Option) *Bus {
	b := &Bus{
		kind:     kind,
		handlers: make(map[string]*registration),
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Kind reports whether this is a command or a query bus.
func (b *Bus) Kind() Kind { return b.kind }

// Register binds handler to name. A later registration for the same name
// replaces the earlier one.
//
//	cmds.Register("show.progressEpisode", progress,
//	    bus.WithValidator(func(p any) []string { ... }))
func (b *Bus) Register(name string, handler Handler, opts ...RegisterOption) error {
	if name == "" {
		return ErrEmptyName
	}
	if handler == nil {
		return ErrNilHandler
	}
	reg := &registration{handler: handler}
	for _, opt := range opts {
		opt(reg)
	}

	b.mu.Lock()
	_, replaced := b.handlers[name]
	b.handlers[name] = reg
	b.mu.Unlock()

	if replaced {
		b.logger.Debug("handler replaced", "kind", b.kind, "name", name)
	}
	return nil
}

// Use appends middleware. The first middleware added is the outermost.
func (b *Bus) Use(mw ...Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, mw...)
}

// Has reports whether name is registered.
func (b *Bus) Has(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.handlers[name]
	return ok
}

// Names returns the registered names, sorted.
func (b *Bus) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.handlers))
	for name := range b.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ── Dispatch ──────────────────────────────────────────────────────────────────

// Dispatch validates payload and runs the handler registered under name,
// returning its result unchanged.
//
// It fails with *UnknownCommandError when name has no registration and with
// *ValidationError when the validator rejects payload, in which case the
// handler never runs. Handler errors are returned as they are.
func (b *Bus) Dispatch(ctx context.Context, name string, payload any) (any, error) {
	reg, chain, err := b.lookup(name)
	if err != nil {
		return nil, err
	}
	return b.run(ctx, name, reg, chain, payload)
}

// Ask is Dispatch under the name queries conventionally use.
func (b *Bus) Ask(ctx context.Context, name string, payload any) (any, error) {
	return b.Dispatch(ctx, name, payload)
}

// DispatchJSON decodes raw with the registration's decoder and dispatches
// the result. Registrations without a decoder receive the generic JSON
// value (maps, slices, float64...), or nil for an empty body.
func (b *Bus) DispatchJSON(ctx context.Context, name string, raw json.RawMessage) (any, error) {
	reg, chain, err := b.lookup(name)
	if err != nil {
		return nil, err
	}

	var payload any
	if reg.decode != nil {
		payload, err = reg.decode(raw)
	} else if len(raw) > 0 {
		err = json.Unmarshal(raw, &payload)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: [%s]: %v", ErrDecode, name, err)
	}
	return b.run(ctx, name, reg, chain, payload)
}

func (b *Bus) lookup(name string) (*registration, []Middleware, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	reg, ok := b.handlers[name]
	if !ok {
		return nil, nil, &UnknownCommandError{Kind: b.kind, Name: name}
	}
	return reg, append([]Middleware(nil), b.middleware...), nil
}

func (b *Bus) run(ctx context.Context, name string, reg *registration, chain []Middleware, payload any) (any, error) {
	if reg.validator != nil {
		if msgs := reg.validator(payload); len(msgs) > 0 {
			return nil, &ValidationError{Name: name, Messages: msgs}
		}
	}

	h := reg.handler
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](name, h)
	}
	return h(ctx, payload)
}
