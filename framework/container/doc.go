// Package container provides the dependency-injection container and the
// service-provider system the tracker runtime is wired with.
//
// # Overview
//
// The container maps string keys to factories and resolves object graphs on
// demand. Bindings are transient (a new instance per Get) or singleton
// (built once, cached). Because Go has no runtime constructor reflection,
// auto-wiring is replaced by explicit factory functions that receive the
// container and resolve their own dependencies from it.
//
// # Container Lifecycle
//
//  1. Create: c := container.New(container.WithEvents(bus))
//  2. Register providers: registry.Register(&MyProvider{})
//  3. Boot: registry.Boot()        (safe to resolve everything after this)
//  4. Serve
//
// # Bindings
//
//	// Transient: new instance every Get()
//	c.Bind("draft", func(c *container.Container) (any, error) { return &Draft{}, nil })
//
//	// Singleton: created once, reused
//	c.Singleton("state", func(c *container.Container) (any, error) {
//	    bus := container.MustResolve[*events.Bus](c, "events")
//	    return state.New(state.WithEvents(bus)), nil
//	})
//
//	// Pre-built value
//	c.Instance("config", cfg)
//
//	// Alias
//	c.Alias("config", "configuration")
//
// # Resolving
//
//	// Untyped
//	raw, err := c.Get("state")
//
//	// Generic, no type assertion required
//	store, err := container.Resolve[*state.Store](c, "state")
//
// # Cycles
//
// Every Get carries the chain of keys being built. Requesting a key that is
// already on the chain fails with a *CircularDependencyError naming the
// cycle ("a -> b -> a"). The chain belongs to the resolution, not to the
// container, so concurrent resolutions never see each other's keys and a
// failing factory never leaves its key behind.
//
// # Extend / Decorate
//
//	c.Extend("commands", func(instance any, c *container.Container) any {
//	    instance.(*bus.Bus).Use(logging.Middleware)
//	    return instance
//	})
//
// # Service Providers
//
//	type AppServiceProvider struct{ container.BaseProvider }
//
//	func (p *AppServiceProvider) Register(app *container.Container) {
//	    app.Singleton("library", func(c *container.Container) (any, error) {
//	        return library.New(container.MustResolve[*state.Store](c, "state")), nil
//	    })
//	}
//
//	registry := container.NewProviderRegistry(c)
//	_ = registry.Register(&AppServiceProvider{})
//	err := registry.Boot()
//
// # Deferred Providers
//
//	type HeavyProvider struct{ container.BaseProvider }
//
//	func (p *HeavyProvider) IsDeferred() bool   { return true }
//	func (p *HeavyProvider) Provides() []string { return []string{"heavy"} }
//	func (p *HeavyProvider) Register(app *container.Container) {
//	    app.Singleton("heavy", func(c *container.Container) (any, error) {
//	        return heavySetup() // only called on first app.Get("heavy")
//	    })
//	}
package container
