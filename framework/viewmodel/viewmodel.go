package viewmodel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/km-arc/tracker/framework/events"
	"github.com/km-arc/tracker/framework/logging"
	"github.com/km-arc/tracker/framework/support"
)

var (
	ErrComputedConflict = errors.New("viewmodel: key is already stored")
	ErrNilComputed      = errors.New("viewmodel: computed accessor must not be nil")
)

// Computed derives a value from the view-model. It is evaluated on every
// Get and may read other keys, stored or computed.
type Computed func(vm *ViewModel) any

// WatchFunc observes a stored key.
type WatchFunc func(newValue, oldValue any)

type watcher struct{ fn WatchFunc }

// ViewModel is a reactive state bag. Concrete view-models hold one and
// expose domain methods on top of it.
type ViewModel struct {
	name string

	mu          sync.Mutex
	state       map[string]any
	computed    map[string]Computed
	watchers    map[string][]*watcher
	snapshot    map[string]any
	hasSnapshot bool
	dirty       bool
	loading     bool
	errors      []string
	disposed    bool
	unsubs      []func()

	events    *events.Bus
	validator func(vm *ViewModel) bool
	logger    logging.Logger
}

// Option configures a ViewModel.
type Option func(*ViewModel)

// WithEvents publishes notifications on a shared bus instead of a private one.
// Topics are prefixed with the view-model name; see Topic.
func WithEvents(bus *events.Bus) Option {
	return func(vm *ViewModel) {
		if bus != nil {
			vm.events = bus
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(vm *ViewModel) { vm.logger = logging.OrNop(l) }
}

// WithValidator replaces the default Validate, which always passes.
func WithValidator(fn func(vm *ViewModel) bool) Option {
	return func(vm *ViewModel) { vm.validator = fn }
}

// WithState seeds the stored state. The view-model starts clean.
func WithState(state map[string]any) Option {
	return func(vm *ViewModel) { vm.state = support.CopyMap(state) }
}

// New creates a view-model.
func New(name string, opts ...Option) *ViewModel {
	vm := &ViewModel{
		name:     name,
		state:    make(map[string]any),
		computed: make(map[string]Computed),
		watchers: make(map[string][]*watcher),
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(vm)
	}
	if vm.events == nil {
		vm.events = events.New(events.WithLogger(vm.logger))
	}
	return vm
}

// Name returns the view-model name.
func (vm *ViewModel) Name() string { return vm.name }

// ── State ─────────────────────────────────────────────────────────────────────

// Get returns the live value of a computed key, or the stored value.
func (vm *ViewModel) Get(key string) any {
	vm.mu.Lock()
	fn, isComputed := vm.computed[key]
	v := vm.state[key]
	vm.mu.Unlock()

	if isComputed {
		return fn(vm)
	}
	return v
}

// Has reports whether key is stored or computed.
func (vm *ViewModel) Has(key string) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	_, stored := vm.state[key]
	_, computed := vm.computed[key]
	return stored || computed
}

// Set stores value under key, marks the view-model dirty, fires the key's
// watchers and emits a change event. Setting a value equal to the current
// one does nothing.
func (vm *ViewModel) Set(key string, value any) { vm.set(key, value, false) }

// SetSilent stores value like Set without notifying watchers or listeners.
func (vm *ViewModel) SetSilent(key string, value any) { vm.set(key, value, true) }

func (vm *ViewModel) set(key string, value any, silent bool) {
	vm.mu.Lock()
	if vm.disposed {
		vm.mu.Unlock()
		return
	}
	if _, ok := vm.computed[key]; ok {
		vm.mu.Unlock()
		vm.logger.Debug("set on computed key ignored", "viewmodel", vm.name, "key", key)
		return
	}
	// an absent key reads as nil, so setting it to nil changes nothing
	old, exists := vm.state[key]
	if (exists || value == nil) && support.Equal(old, value) {
		vm.mu.Unlock()
		return
	}
	vm.state[key] = value
	vm.dirty = true
	ws := append([]*watcher(nil), vm.watchers[key]...)
	vm.mu.Unlock()

	if silent {
		return
	}
	for _, w := range ws {
		w.fn(value, old)
	}
	vm.emit(EventChange, Change{Key: key, Value: value})
}

// SetMultiple calls Set for each entry, in key order.
func (vm *ViewModel) SetMultiple(values map[string]any) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vm.Set(k, values[k])
	}
}

// SetState replaces the stored state wholesale and marks the view-model
// dirty. Watchers are not notified.
func (vm *ViewModel) SetState(state map[string]any) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.disposed {
		return
	}
	vm.state = support.CopyMap(state)
	vm.dirty = true
}

// GetState returns a copy of the stored state. Computed keys are not included.
func (vm *ViewModel) GetState() map[string]any {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return support.CopyMap(vm.state)
}

// ClearState empties the stored state. Computed accessors and watchers stay.
func (vm *ViewModel) ClearState() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.disposed {
		return
	}
	vm.state = make(map[string]any)
}

// ── Reactivity ────────────────────────────────────────────────────────────────

// DefineComputed registers fn as the accessor for key. Redefining a computed
// key replaces it; a key that is already stored cannot become computed.
//
//	vm.DefineComputed("double", func(vm *viewmodel.ViewModel) any {
//	    n, _ := viewmodel.Value[int](vm, "count")
//	    return n * 2
//	})
func (vm *ViewModel) DefineComputed(key string, fn Computed) error {
	if fn == nil {
		return ErrNilComputed
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.disposed {
		return nil
	}
	if _, ok := vm.state[key]; ok {
		return fmt.Errorf("%w: [%s]", ErrComputedConflict, key)
	}
	vm.computed[key] = fn
	return nil
}

// Watch calls fn with (new, old) whenever key changes through Set.
// The returned function removes this watcher and may be called repeatedly.
func (vm *ViewModel) Watch(key string, fn WatchFunc) func() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.disposed {
		return func() {}
	}
	w := &watcher{fn: fn}
	vm.watchers[key] = append(vm.watchers[key], w)

	var once sync.Once
	return func() {
		once.Do(func() { vm.unwatch(key, w) })
	}
}

func (vm *ViewModel) unwatch(key string, w *watcher) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	list := vm.watchers[key]
	for i, candidate := range list {
		if candidate == w {
			vm.watchers[key] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(vm.watchers[key]) == 0 {
		delete(vm.watchers, key)
	}
}

// ── Snapshots ─────────────────────────────────────────────────────────────────

// SaveSnapshot records a deep copy of the stored state as the rollback point
// and marks the view-model clean. Only the latest snapshot is kept.
func (vm *ViewModel) SaveSnapshot() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.disposed {
		return
	}
	vm.snapshot = support.CopyMap(vm.state)
	vm.hasSnapshot = true
	vm.dirty = false
}

// Reset restores the last snapshot and marks the view-model clean.
// Without a snapshot it does nothing.
func (vm *ViewModel) Reset() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.disposed || !vm.hasSnapshot {
		return
	}
	vm.state = support.CopyMap(vm.snapshot)
	vm.dirty = false
}

// IsDirty reports whether a Set happened since the last snapshot or reset.
func (vm *ViewModel) IsDirty() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.dirty
}

// ── Loading & errors ──────────────────────────────────────────────────────────

// IsLoading reports the loading flag.
func (vm *ViewModel) IsLoading() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.loading
}

// SetLoading sets the loading flag and emits a loading event.
func (vm *ViewModel) SetLoading(loading bool) {
	vm.mu.Lock()
	if vm.disposed {
		vm.mu.Unlock()
		return
	}
	vm.loading = loading
	vm.mu.Unlock()

	vm.emit(EventLoading, Loading{Loading: loading})
}

// AddError appends a message. Errors contribute their Error() text; other
// values are formatted with %v.
func (vm *ViewModel) AddError(err any) {
	var msg string
	switch e := err.(type) {
	case nil:
		return
	case string:
		msg = e
	case error:
		msg = e.Error()
	default:
		msg = fmt.Sprint(e)
	}

	vm.mu.Lock()
	if vm.disposed {
		vm.mu.Unlock()
		return
	}
	vm.errors = append(vm.errors, msg)
	list := append([]string(nil), vm.errors...)
	vm.mu.Unlock()

	vm.emit(EventErrors, Errors{Errors: list})
}

// GetErrors returns the messages in the order they were added.
func (vm *ViewModel) GetErrors() []string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append([]string{}, vm.errors...)
}

// HasErrors reports whether any message was added since the last clear.
func (vm *ViewModel) HasErrors() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return len(vm.errors) > 0
}

// ClearErrors drops all messages.
func (vm *ViewModel) ClearErrors() {
	vm.mu.Lock()
	if vm.disposed || len(vm.errors) == 0 {
		vm.mu.Unlock()
		return
	}
	vm.errors = nil
	vm.mu.Unlock()

	vm.emit(EventErrors, Errors{Errors: []string{}})
}

// Execute runs op with loading bookkeeping. Errors are cleared first; if op
// fails its error is recorded and also returned unchanged.
func (vm *ViewModel) Execute(ctx context.Context, op func(ctx context.Context) (any, error)) (any, error) {
	return Run(ctx, vm, op)
}

// Run is the typed form of Execute.
func Run[T any](ctx context.Context, vm *ViewModel, op func(ctx context.Context) (T, error)) (T, error) {
	vm.ClearErrors()
	vm.SetLoading(true)
	defer vm.SetLoading(false)

	res, err := op(ctx)
	if err != nil {
		vm.AddError(err)
		var zero T
		return zero, err
	}
	return res, nil
}

// Validate runs the configured validator. Without one it reports true.
func (vm *ViewModel) Validate() bool {
	if vm.validator == nil {
		return true
	}
	return vm.validator(vm)
}

// ── Export / import ───────────────────────────────────────────────────────────

// Exported is the serialisable form of a view-model.
type Exported struct {
	Name      string         `json:"name" yaml:"name" toml:"name"`
	State     map[string]any `json:"state" yaml:"state" toml:"state"`
	IsDirty   bool           `json:"isDirty" yaml:"isDirty" toml:"isDirty"`
	Errors    []string       `json:"errors" yaml:"errors" toml:"errors"`
	HasErrors bool           `json:"hasErrors" yaml:"hasErrors" toml:"hasErrors"`
}

// Export captures the stored state, dirty flag and errors.
func (vm *ViewModel) Export() Exported {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return Exported{
		Name:      vm.name,
		State:     support.CopyMap(vm.state),
		IsDirty:   vm.dirty,
		Errors:    append([]string{}, vm.errors...),
		HasErrors: len(vm.errors) > 0,
	}
}

// Import applies an export's state, dirty flag and errors. The name in data
// is ignored so exports can be loaded into differently named view-models.
func (vm *ViewModel) Import(data Exported) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.disposed {
		return
	}
	vm.state = support.CopyMap(data.State)
	vm.dirty = data.IsDirty
	vm.errors = append([]string(nil), data.Errors...)
}

// ── Lifecycle ─────────────────────────────────────────────────────────────────

// On subscribes to one of this view-model's events. The returned function
// unsubscribes.
func (vm *ViewModel) On(event Event, fn func(payload any)) func() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.disposed {
		return func() {}
	}
	unsub := vm.events.Subscribe(vm.Topic(event), events.Listener(fn))
	vm.unsubs = append(vm.unsubs, unsub)
	return unsub
}

// Topic returns the bus topic this view-model publishes event on.
func (vm *ViewModel) Topic(event Event) string {
	return vm.name + "." + string(event)
}

// Dispose clears state, watchers and errors and emits a disposed event.
// Every later mutating call does nothing.
func (vm *ViewModel) Dispose() {
	vm.mu.Lock()
	if vm.disposed {
		vm.mu.Unlock()
		return
	}
	vm.disposed = true
	vm.state = make(map[string]any)
	vm.computed = make(map[string]Computed)
	vm.watchers = make(map[string][]*watcher)
	vm.snapshot = nil
	vm.hasSnapshot = false
	vm.errors = nil
	vm.dirty = false
	vm.loading = false
	unsubs := vm.unsubs
	vm.unsubs = nil
	vm.mu.Unlock()

	vm.emit(EventDisposed, Disposed{Name: vm.name})
	for _, unsub := range unsubs {
		unsub()
	}
}

// IsDisposed reports whether Dispose was called.
func (vm *ViewModel) IsDisposed() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.disposed
}

func (vm *ViewModel) emit(event Event, payload any) {
	vm.events.EmitSync(vm.Topic(event), payload)
}

// Value reads key and asserts its type. Missing keys and mismatched types
// report false.
func Value[T any](vm *ViewModel, key string) (T, bool) {
	v, ok := vm.Get(key).(T)
	return v, ok
}
