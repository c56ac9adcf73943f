package container

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"sync"

	"github.com/km-arc/tracker/framework/events"
)

// ── Binding types ─────────────────────────────────────────────────────────────

// Lifetime controls whether a binding's instance is cached.
type Lifetime string

const (
	// Transient builds a new instance on every Get.
	Transient Lifetime = "transient"
	// Singleton builds once and returns the cached instance afterwards.
	Singleton Lifetime = "singleton"
)

// Factory builds a concrete value from the container. The container passed
// in is the one to resolve further dependencies from.
type Factory func(c *Container) (any, error)

// Extender decorates an instance right after its factory ran.
type Extender func(instance any, c *Container) any

// binding holds a registered factory and its lifetime.
type binding struct {
	factory  Factory
	lifetime Lifetime
}

// Lifecycle events emitted on the bus passed via WithEvents.
const (
	EventRegistered = "container.registered"
	EventResolved   = "container.resolved"
)

// Registered is the payload of EventRegistered.
type Registered struct {
	Key      string
	Lifetime Lifetime
}

// Resolved is the payload of EventResolved. It is emitted whenever a
// factory runs, not for cache hits.
type Resolved struct {
	Key      string
	Instance any
}

// ── Container ─────────────────────────────────────────────────────────────────

// registry is the state shared by a container and every resolution view of it.
type registry struct {
	mu sync.RWMutex

	// key → binding
	bindings map[string]*binding

	// key → resolved singleton instance
	instances map[string]any

	// alias → key (canonical)
	aliases map[string]string

	// key → extender funcs
	extenders map[string][]Extender

	events *events.Bus
}

// Container is the dependency-injection container: string keys mapped to
// factories, resolved on demand.
//
// It supports:
//   - Register / Bind / Singleton / Instance / Alias
//   - Get and the generic Resolve / MustResolve
//   - Extend (decorate resolved instances)
//   - cycle detection over the chain of keys being resolved
//   - lifecycle notifications on an events.Bus
//
// One Container is one universe of bindings; there is no package-level
// registry.
type Container struct {
	*registry

	// set on the views handed to factories; nil on the root
	chain *chain
}

// chain is the resolution in progress on a view: the keys being built,
// outermost first. It is closed when the factory returns, after which a
// view kept by the factory resolves like the root.
type chain struct {
	mu     sync.Mutex
	keys   []string
	closed bool
}

// active returns the keys currently being resolved through c.
func (c *Container) active() []string {
	if c.chain == nil {
		return nil
	}
	c.chain.mu.Lock()
	defer c.chain.mu.Unlock()
	if c.chain.closed {
		return nil
	}
	return c.chain.keys
}

func (ch *chain) close() {
	ch.mu.Lock()
	ch.closed = true
	ch.mu.Unlock()
}

// Option configures a Container.
type Option func(*Container)

// WithEvents makes the container emit EventRegistered and EventResolved on bus.
func WithEvents(bus *events.Bus) Option {
	return func(c *Container) { c.events = bus }
}

// New creates an empty container.
func New(opts ...Option) *Container {
	c := &Container{
		registry: &registry{
			bindings:  make(map[string]*binding),
			instances: make(map[string]any),
			aliases:   make(map[string]string),
			extenders: make(map[string][]Extender),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	// Bind the container to itself
	c.Instance("container", c)
	return c
}

// ── Registration ──────────────────────────────────────────────────────────────

// Register stores factory under key with the given lifetime. Registering an
// existing key replaces its binding and drops any cached instance.
//
//	c.Register("schedule", func(c *container.Container) (any, error) {
//	    return schedule.New(container.MustResolve[*log.Logger](c, "logger")), nil
//	}, container.Transient)
func (c *Container) Register(key string, factory Factory, lifetime Lifetime) error {
	if key == "" {
		return ErrEmptyKey
	}
	if factory == nil {
		return ErrNilFactory
	}
	if lifetime != Singleton {
		lifetime = Transient
	}

	c.mu.Lock()
	key = c.canonical(key)
	delete(c.instances, key)
	c.bindings[key] = &binding{factory: factory, lifetime: lifetime}
	c.mu.Unlock()

	c.emit(EventRegistered, Registered{Key: key, Lifetime: lifetime})
	return nil
}

// Bind registers a transient factory: every Get builds a new instance.
// It panics on an empty key or nil factory.
func (c *Container) Bind(key string, factory Factory) {
	mustRegister(c.Register(key, factory, Transient))
}

// Singleton registers a factory whose result is cached after first resolution.
// It panics on an empty key or nil factory.
//
//	c.Singleton("events", func(c *container.Container) (any, error) {
//	    return events.New(), nil
//	})
func (c *Container) Singleton(key string, factory Factory) {
	mustRegister(c.Register(key, factory, Singleton))
}

// Instance registers a pre-built value as a resolved singleton.
//
//	c.Instance("config", cfg)
func (c *Container) Instance(key string, instance any) {
	if key == "" {
		panic(ErrEmptyKey)
	}
	c.mu.Lock()
	key = c.canonical(key)
	c.bindings[key] = &binding{
		factory:  func(*Container) (any, error) { return instance, nil },
		lifetime: Singleton,
	}
	c.instances[key] = instance
	c.mu.Unlock()

	c.emit(EventRegistered, Registered{Key: key, Lifetime: Singleton})
}

func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}

// Alias registers an alternative name for a key.
//
//	c.Alias("config", "configuration")
func (c *Container) Alias(key, alias string) {
	if key == alias {
		panic(fmt.Sprintf("container: [%s] is aliased to itself", key))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aliases[alias] = c.canonical(key)
}

// ── Extend ────────────────────────────────────────────────────────────────────

// Extend decorates the resolved instance of key. Extenders run in
// registration order after the factory and before caching. An already
// cached singleton is decorated immediately.
//
//	c.Extend("commands", func(instance any, c *container.Container) any {
//	    instance.(*bus.Bus).Use(metrics.Middleware("command"))
//	    return instance
//	})
func (c *Container) Extend(key string, fn Extender) {
	c.mu.Lock()
	key = c.canonical(key)
	c.extenders[key] = append(c.extenders[key], fn)
	inst, cached := c.instances[key]
	c.mu.Unlock()

	if cached {
		extended := fn(inst, c)
		c.mu.Lock()
		c.instances[key] = extended
		c.mu.Unlock()
	}
}

// ── Resolution ────────────────────────────────────────────────────────────────

// Get resolves key.
//
// It returns a *ResolutionError when key is not registered and a
// *CircularDependencyError when key is already being built further up the
// current resolution chain. Errors from factories are wrapped in a
// *FactoryError unless they already are resolution errors, which surface
// unchanged.
//
//	raw, err := c.Get("commands")
func (c *Container) Get(key string) (any, error) {
	c.mu.RLock()
	key = c.canonical(key)
	b, bound := c.bindings[key]
	inst, cached := c.instances[key]
	c.mu.RUnlock()

	if !bound {
		return nil, &ResolutionError{Key: key}
	}
	stack := c.active()
	if i := slices.Index(stack, key); i >= 0 {
		cycle := append(slices.Clone(stack[i:]), key)
		return nil, &CircularDependencyError{Cycle: cycle}
	}
	if cached {
		return inst, nil
	}

	instance, err := c.build(stack, key, b)
	if err != nil {
		return nil, err
	}

	if b.lifetime == Singleton {
		c.mu.Lock()
		if existing, ok := c.instances[key]; ok {
			// another goroutine finished first; keep a single instance
			c.mu.Unlock()
			return existing, nil
		}
		c.instances[key] = instance
		c.mu.Unlock()
	}

	c.emit(EventResolved, Resolved{Key: key, Instance: instance})
	return instance, nil
}

// build runs the factory on a view of the container whose chain is stack
// plus key. The chain is closed when build returns, however the factory
// exits, so neither a failing factory nor one that keeps its container
// leaves key behind.
func (c *Container) build(stack []string, key string, b *binding) (instance any, err error) {
	ch := &chain{keys: append(slices.Clip(stack), key)}
	view := &Container{registry: c.registry, chain: ch}
	defer ch.close()

	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(error); ok && isContainerError(rerr) {
				instance, err = nil, rerr
				return
			}
			instance, err = nil, &FactoryError{Key: key, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	instance, err = b.factory(view)
	if err != nil {
		if isContainerError(err) {
			return nil, err
		}
		return nil, &FactoryError{Key: key, Err: err}
	}

	c.mu.RLock()
	exts := c.extenders[key]
	c.mu.RUnlock()
	for _, ext := range exts {
		instance = ext(instance, view)
	}
	return instance, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// Bound reports whether key (or an alias of it) has been registered.
func (c *Container) Bound(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.bindings[c.canonical(key)]
	return ok
}

// Resolved reports whether key holds a cached singleton instance.
func (c *Container) Resolved(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.instances[c.canonical(key)]
	return ok
}

// Forget removes the binding and cached instance for key.
func (c *Container) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key = c.canonical(key)
	delete(c.bindings, key)
	delete(c.instances, key)
	delete(c.extenders, key)
}

// Keys returns the registered keys, sorted.
func (c *Container) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.bindings))
	for k := range c.bindings {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Events returns the bus lifecycle notifications go to, or nil.
func (c *Container) Events() *events.Bus {
	return c.events
}

// canonical resolves an alias to its key (caller holds mu).
func (c *Container) canonical(key string) string {
	if target, ok := c.aliases[key]; ok {
		return target
	}
	return key
}

func (c *Container) emit(event string, payload any) {
	if c.events != nil {
		c.events.EmitSync(event, payload)
	}
}

// ── Generics helpers ──────────────────────────────────────────────────────────

// Resolve calls Get and type-asserts the result.
//
//	cmds, err := container.Resolve[*bus.Bus](c, "commands")
func Resolve[T any](c *Container, key string) (T, error) {
	var zero T
	instance, err := c.Get(key)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("%w: [%s] resolved to %T, want %v", ErrTypeMismatch, key, instance, reflect.TypeFor[T]())
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on failure. Inside a factory the
// panic is turned back into the error Get returns.
func MustResolve[T any](c *Container, key string) T {
	typed, err := Resolve[T](c, key)
	if err != nil {
		panic(err)
	}
	return typed
}
