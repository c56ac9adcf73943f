package state

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/km-arc/tracker/framework/events"
	"github.com/km-arc/tracker/framework/logging"
	"github.com/km-arc/tracker/framework/support"
)

// EventChange is the topic Commit notifies on. Its payload is a Change.
const EventChange = "state.change"

// Mutation changes the tree in place. It is the only sanctioned way to
// change the store apart from ReplaceState.
type Mutation func(state Tree, payload any) error

// Change describes a committed mutation.
type Change struct {
	Mutation string `json:"mutation"`
	Payload  any    `json:"payload"`
}

// Snapshot is the exported, serialisable form of the store.
type Snapshot struct {
	State Tree `json:"state" yaml:"state" toml:"state"`
}

// Store is the process-wide state tree with named mutations.
type Store struct {
	// held across mutate, notify and save so commits complete in order
	commitMu sync.Mutex

	mu        sync.RWMutex
	state     Tree
	mutations map[string]Mutation

	events    *events.Bus
	persister Persister
	logger    logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithState seeds the tree.
func WithState(t Tree) Option {
	return func(s *Store) { s.state = t.Clone() }
}

// WithEvents publishes change notifications on a shared bus.
func WithEvents(bus *events.Bus) Option {
	return func(s *Store) {
		if bus != nil {
			s.events = bus
		}
	}
}

// WithPersister mirrors every commit to p. Without one the store is purely
// in memory.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.logger = logging.OrNop(l) }
}

// New creates a store.
func New(opts ...Option) *Store {
	s := &Store{
		state:     make(Tree),
		mutations: make(map[string]Mutation),
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.events == nil {
		s.events = events.New(events.WithLogger(s.logger))
	}
	return s
}

// Get returns a copy of the value at path, or nil when the path is missing.
func (s *Store) Get(path string) any {
	v, _ := s.Lookup(path)
	return v
}

// Lookup is Get with a presence flag.
func (s *Store) Lookup(path string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.state.Lookup(path)
	if !ok {
		return nil, false
	}
	return support.DeepCopy(v), true
}

// RegisterMutation records a named mutation. Registering a name again
// replaces the earlier mutation.
func (s *Store) RegisterMutation(name string, m Mutation) error {
	if name == "" {
		return ErrEmptyName
	}
	if m == nil {
		return ErrNilMutation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutations[name] = m
	return nil
}

// Mutations returns the registered names, sorted.
func (s *Store) Mutations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.mutations))
	for name := range s.mutations {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Commit runs the named mutation against the tree, then notifies subscribers
// with a Change. Commits are serialised end to end: the next commit starts
// only after this one has notified and saved, so subscribers and the
// persister see changes in commit order. Subscribers must not Commit.
//
// A mutation error is returned wrapped and nothing is notified; writes the
// mutation made before failing stay. A panicking mutation is reported as
// ErrMutationPanic and the store stays usable. When a persister is
// configured the new tree is saved after notification; a save failure is
// logged and returned wrapped in ErrPersist, with the in-memory change
// already applied.
func (s *Store) Commit(ctx context.Context, name string, payload any) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	saved, err := s.mutate(name, payload)
	if err != nil {
		return err
	}

	s.events.EmitSync(EventChange, Change{Mutation: name, Payload: payload})

	if s.persister == nil {
		return nil
	}
	if err := s.persister.Save(ctx, saved); err != nil {
		s.logger.Error("state persist failed", "mutation", name, "err", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// mutate applies the named mutation under the state lock and returns a copy
// of the resulting tree when a persister needs one.
func (s *Store) mutate(name string, payload any) (saved Tree, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.mutations[name]
	if !ok {
		return nil, &UnknownMutationError{Name: name}
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("state mutation panicked", "mutation", name, "panic", r)
			saved, err = nil, fmt.Errorf("%w: [%s]: %v", ErrMutationPanic, name, r)
		}
	}()
	if err := m(s.state, payload); err != nil {
		return nil, fmt.Errorf("state: mutation [%s]: %w", name, err)
	}
	if s.persister != nil {
		saved = s.state.Clone()
	}
	return saved, nil
}

// Subscribe calls fn after every successful commit. The returned function
// unsubscribes.
func (s *Store) Subscribe(fn func(Change)) func() {
	return s.events.Subscribe(EventChange, events.Listener(func(p any) {
		if c, ok := p.(Change); ok {
			fn(c)
		}
	}))
}

// Export returns a deep copy of the tree.
func (s *Store) Export() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{State: s.state.Clone()}
}

// ReplaceState swaps in a copy of t without running any mutation. No
// change is notified and nothing is persisted.
func (s *Store) ReplaceState(t Tree) {
	next := t.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = next
}

// Restore loads the persisted tree, if any, and replaces the state with it.
// Without a persister, or with nothing saved yet, it does nothing.
func (s *Store) Restore(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	t, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("state: restore: %w", err)
	}
	if t == nil {
		return nil
	}
	s.ReplaceState(t)
	s.logger.Debug("state restored", "keys", len(t))
	return nil
}
