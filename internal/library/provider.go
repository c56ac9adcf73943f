package library

import (
	"github.com/km-arc/tracker/framework/bus"
	"github.com/km-arc/tracker/framework/container"
	"github.com/km-arc/tracker/framework/providers"
	"github.com/km-arc/tracker/framework/state"
)

// Key is the container key of the *Library.
const Key = "library"

// Provider binds the library and installs its handlers at boot.
type Provider struct {
	container.BaseProvider
}

func (p *Provider) Register(app *container.Container) {
	app.Singleton(Key, func(c *container.Container) (any, error) {
		store, err := container.Resolve[*state.Store](c, providers.KeyState)
		if err != nil {
			return nil, err
		}
		return New(store), nil
	})
}

func (p *Provider) Boot(app *container.Container) error {
	lib, err := container.Resolve[*Library](app, Key)
	if err != nil {
		return err
	}
	return lib.Install(
		container.MustResolve[*bus.Bus](app, providers.KeyCommands),
		container.MustResolve[*bus.Bus](app, providers.KeyQueries),
	)
}
