package events

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/km-arc/tracker/framework/logging"
)

// ── Types ─────────────────────────────────────────────────────────────────────

// Handler receives the payload of an emitted event. A returned error is
// logged by the bus and never stops delivery to the other subscribers.
type Handler func(payload any) error

// Listener adapts a handler that cannot fail.
func Listener(fn func(payload any)) Handler {
	return func(payload any) error {
		fn(payload)
		return nil
	}
}

// ErrHandlerPanic wraps a recovered panic from a subscriber.
var ErrHandlerPanic = errors.New("events: handler panicked")

// subscription is one registered handler. Identity is the pointer.
type subscription struct {
	id      string
	event   string
	handler Handler
	once    bool
	fired   atomic.Bool
	removed atomic.Bool
}

// SubscriptionInfo describes a live subscription, for debugging.
type SubscriptionInfo struct {
	ID    string `json:"id"`
	Event string `json:"event"`
	Once  bool   `json:"once"`
}

// ── Bus ───────────────────────────────────────────────────────────────────────

// Bus is a synchronous topic-based publish/subscribe channel.
//
// Handlers for an event run in subscription order on the emitting goroutine.
// Each emission iterates over the subscriber list as it was when the emission
// started, so subscribing or unsubscribing from inside a handler affects
// later emissions only.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]*subscription
	logger logging.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used to report failing handlers.
func WithLogger(l logging.Logger) Option {
	return func(b *Bus) { b.logger = logging.OrNop(l) }
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs:   make(map[string][]*subscription),
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe appends handler to the subscribers of event and returns a
// function that removes exactly this subscription. The returned function is
// idempotent.
//
//	off := bus.Subscribe("show.progressed", func(p any) error { ... })
//	defer off()
func (b *Bus) Subscribe(event string, handler Handler) func() {
	return b.add(event, handler, false)
}

// Once subscribes handler for a single invocation. The subscription is
// removed before handler runs, so a reentrant emission of the same event
// from inside handler does not reach it again.
func (b *Bus) Once(event string, handler Handler) func() {
	return b.add(event, handler, true)
}

func (b *Bus) add(event string, handler Handler, once bool) func() {
	sub := &subscription{
		id:      uuid.NewString(),
		event:   event,
		handler: handler,
		once:    once,
	}

	b.mu.Lock()
	b.subs[event] = append(b.subs[event], sub)
	b.mu.Unlock()

	return func() { b.remove(sub) }
}

func (b *Bus) remove(sub *subscription) {
	if !sub.removed.CompareAndSwap(false, true) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[sub.event]
	for i, s := range list {
		if s == sub {
			// Copy instead of in-place splice: emissions in flight hold the old slice.
			next := make([]*subscription, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			if len(next) == 0 {
				delete(b.subs, sub.event)
			} else {
				b.subs[sub.event] = next
			}
			return
		}
	}
}

// EmitSync invokes every current subscriber of event with payload, in
// subscription order, before returning.
func (b *Bus) EmitSync(event string, payload any) {
	b.mu.RLock()
	snapshot := b.subs[event]
	logger := b.logger
	b.mu.RUnlock()

	for _, sub := range snapshot {
		if sub.once {
			if !sub.fired.CompareAndSwap(false, true) {
				continue
			}
			b.remove(sub)
		}
		if err := b.invoke(sub, payload); err != nil {
			logger.Error("event handler failed", "event", event, "subscription", sub.id, "err", err)
		}
	}
}

func (b *Bus) invoke(sub *subscription, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return sub.handler(payload)
}

// SetLogger replaces the logger used to report failing handlers.
func (b *Bus) SetLogger(l logging.Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logging.OrNop(l)
}

// ── Introspection ─────────────────────────────────────────────────────────────

// SubscriberCount returns the number of live subscriptions for event.
func (b *Bus) SubscriberCount(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[event])
}

// Topics returns the events with at least one subscriber, sorted.
func (b *Bus) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.subs))
	for event := range b.subs {
		out = append(out, event)
	}
	sort.Strings(out)
	return out
}

// Subscriptions lists the live subscriptions for event in delivery order.
func (b *Bus) Subscriptions(event string) []SubscriptionInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	list := b.subs[event]
	out := make([]SubscriptionInfo, 0, len(list))
	for _, s := range list {
		out = append(out, SubscriptionInfo{ID: s.id, Event: s.event, Once: s.once})
	}
	return out
}

// Clear drops every subscription. Unsubscribe functions handed out earlier
// stay safe to call.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, list := range b.subs {
		for _, s := range list {
			s.removed.Store(true)
		}
	}
	b.subs = make(map[string][]*subscription)
}
