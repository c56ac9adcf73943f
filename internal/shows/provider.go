package shows

import (
	"github.com/km-arc/tracker/framework/bus"
	"github.com/km-arc/tracker/framework/container"
	"github.com/km-arc/tracker/framework/providers"
	"github.com/km-arc/tracker/framework/state"
)

// Key is the container key of the *Tracker.
const Key = "shows"

// Provider binds the tracker and installs its handlers at boot.
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
	tracker, err := container.Resolve[*Tracker](app, Key)
	if err != nil {
		return err
	}
	return tracker.Install(
		container.MustResolve[*bus.Bus](app, providers.KeyCommands),
		container.MustResolve[*bus.Bus](app, providers.KeyQueries),
	)
}
