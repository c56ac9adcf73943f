package container

import (
	"fmt"
	"slices"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider groups the registrations of one part of the runtime.
//
// Register is called as soon as the provider is added to a registry. Boot is
// called after ALL providers have been registered, making it safe to resolve
// other bindings inside Boot().
//
//	type LibraryProvider struct{ container.BaseProvider }
//
//	func (p *LibraryProvider) Register(app *container.Container) {
//	    app.Singleton("library", func(c *container.Container) (any, error) {
//	        return library.New(container.MustResolve[*state.Store](c, "state")), nil
//	    })
//	}
//
//	func (p *LibraryProvider) Boot(app *container.Container) error {
//	    lib, err := container.Resolve[*library.Library](app, "library")
//	    if err != nil {
//	        return err
//	    }
//	    return lib.Install(container.MustResolve[*bus.Bus](app, "commands"))
//	}
type ServiceProvider interface {
	// Register binds services into the container.
	// Do NOT resolve other bindings here; use Boot() for that.
	Register(app *Container)

	// Boot is called after all providers are registered.
	Boot(app *Container) error

	// Provides returns the keys this provider registers. Only consulted
	// for deferred providers.
	Provides() []string

	// IsDeferred returns true if this provider should be loaded lazily,
	// only when one of its Provides() keys is first resolved.
	IsDeferred() bool
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable struct that provides no-op implementations
// of Boot(), Provides(), and IsDeferred().
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Container) error { return nil }
func (p *BaseProvider) Provides() []string      { return nil }
func (p *BaseProvider) IsDeferred() bool        { return false }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry manages registration and booting of ServiceProviders,
// including deferred (lazy) providers.
type ProviderRegistry struct {
	app        *Container
	eager      []ServiceProvider
	pending    []ServiceProvider // deferred, loaded before Boot
	booted     bool
	registered map[ServiceProvider]bool
	loaded     map[ServiceProvider]bool
}

// NewProviderRegistry creates a registry bound to app.
func NewProviderRegistry(app *Container) *ProviderRegistry {
	return &ProviderRegistry{
		app:        app,
		registered: make(map[ServiceProvider]bool),
		loaded:     make(map[ServiceProvider]bool),
	}
}

// Register adds a provider and calls its Register() method (unless deferred).
// A provider added after Boot() is booted immediately.
func (r *ProviderRegistry) Register(provider ServiceProvider) error {
	if r.registered[provider] {
		return nil
	}
	r.registered[provider] = true

	if provider.IsDeferred() {
		r.interceptDeferred(provider)
		return nil
	}

	provider.Register(r.app)
	r.eager = append(r.eager, provider)

	if r.booted {
		if err := provider.Boot(r.app); err != nil {
			return fmt.Errorf("boot %T: %w", provider, err)
		}
	}
	return nil
}

// interceptDeferred binds a stub for each deferred key. The first Get of
// any of them runs the provider's real Register (and Boot, once booted),
// which replaces the stubs, then resolves the real binding.
func (r *ProviderRegistry) interceptDeferred(provider ServiceProvider) {
	for _, key := range provider.Provides() {
		r.app.Bind(key, func(c *Container) (any, error) {
			if !r.loaded[provider] {
				r.loaded[provider] = true
				provider.Register(r.app)
				if !r.booted {
					r.pending = append(r.pending, provider)
				} else if err := provider.Boot(r.app); err != nil {
					return nil, fmt.Errorf("boot %T: %w", provider, err)
				}
			}
			// resolve from the root: the stub itself is on c's chain
			return r.app.Get(key)
		})
	}
}

// Boot calls Boot() on all eager providers in registration order, then on
// deferred providers that were already loaded, and stops at the first
// error. Calling it again is a no-op.
func (r *ProviderRegistry) Boot() error {
	if r.booted {
		return nil
	}
	r.booted = true
	for _, provider := range append(slices.Clone(r.eager), r.pending...) {
		if err := provider.Boot(r.app); err != nil {
			return fmt.Errorf("boot %T: %w", provider, err)
		}
	}
	return nil
}

// Booted returns true if Boot() has been called.
func (r *ProviderRegistry) Booted() bool { return r.booted }

// Providers returns all registered eager providers.
func (r *ProviderRegistry) Providers() []ServiceProvider { return r.eager }
