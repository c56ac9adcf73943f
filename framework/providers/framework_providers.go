package providers

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/km-arc/tracker/framework/bus"
	"github.com/km-arc/tracker/framework/config"
	"github.com/km-arc/tracker/framework/container"
	"github.com/km-arc/tracker/framework/events"
	gohttp "github.com/km-arc/tracker/framework/http"
	"github.com/km-arc/tracker/framework/logging"
	"github.com/km-arc/tracker/framework/metrics"
	"github.com/km-arc/tracker/framework/routing"
	"github.com/km-arc/tracker/framework/state"
)

// Container keys bound by the framework providers.
const (
	KeyConfig    = "config"
	KeyLogger    = "logger"
	KeyEvents    = "events"
	KeyCommands  = "commands"
	KeyQueries   = "queries"
	KeyState     = "state"
	KeyPersister = "state.persister"
	KeyMetrics   = "metrics"
	KeyRouter    = "router"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider loads the configuration and binds it as "config".
//
// Bound abstracts:
//   - "config"         → *config.Config
//   - "configuration"  → alias of "config"
type ConfigServiceProvider struct {
	container.BaseProvider
	File     string // optional TOML file
	EnvFiles []string
}

func (p *ConfigServiceProvider) Register(app *container.Container) {
	file, envFiles := p.File, p.EnvFiles
	app.Singleton(KeyConfig, func(*container.Container) (any, error) {
		return config.LoadFile(file, envFiles...)
	})
	app.Alias(KeyConfig, "configuration")
}

// ── LoggingServiceProvider ────────────────────────────────────────────────────

// LoggingServiceProvider builds the application logger.
//
// Bound abstracts:
//   - "logger"  → *log.Logger (charmbracelet), level from config.Log.Level
type LoggingServiceProvider struct {
	container.BaseProvider
	Writer io.Writer // default os.Stderr
}

func (p *LoggingServiceProvider) Register(app *container.Container) {
	w := p.Writer
	app.Singleton(KeyLogger, func(c *container.Container) (any, error) {
		cfg, err := container.Resolve[*config.Config](c, KeyConfig)
		if err != nil {
			return nil, err
		}
		l := logging.WithLogger(logging.NewLogger(w), "app", cfg.App.Name)
		logging.SetLogLevel(l, cfg.Log.Level)
		return l, nil
	})
}

// ── EventServiceProvider ──────────────────────────────────────────────────────

// EventServiceProvider exposes the container's lifecycle bus as the
// application event bus and points its failure log at "logger".
//
// Bound abstracts:
//   - "events"  → *events.Bus
type EventServiceProvider struct {
	container.BaseProvider
}

func (p *EventServiceProvider) Register(app *container.Container) {
	eb := app.Events()
	if eb == nil {
		eb = events.New()
	}
	app.Instance(KeyEvents, eb)
}

func (p *EventServiceProvider) Boot(app *container.Container) error {
	logger, err := container.Resolve[*log.Logger](app, KeyLogger)
	if err != nil {
		return err
	}
	container.MustResolve[*events.Bus](app, KeyEvents).SetLogger(logger)
	return nil
}

// ── BusServiceProvider ────────────────────────────────────────────────────────

// BusServiceProvider registers the command and query buses. Boot installs
// dispatch logging and, when metrics are enabled, the metrics middleware.
//
// Bound abstracts:
//   - "commands"  → *bus.Bus (KindCommand)
//   - "queries"   → *bus.Bus (KindQuery)
type BusServiceProvider struct {
	container.BaseProvider
}

func (p *BusServiceProvider) Register(app *container.Container) {
	app.Singleton(KeyCommands, func(c *container.Container) (any, error) {
		logger, err := container.Resolve[*log.Logger](c, KeyLogger)
		if err != nil {
			return nil, err
		}
		return bus.NewCommandBus(bus.WithLogger(logger)), nil
	})
	app.Singleton(KeyQueries, func(c *container.Container) (any, error) {
		logger, err := container.Resolve[*log.Logger](c, KeyLogger)
		if err != nil {
			return nil, err
		}
		return bus.NewQueryBus(bus.WithLogger(logger)), nil
	})
}

func (p *BusServiceProvider) Boot(app *container.Container) error {
	cfg := container.MustResolve[*config.Config](app, KeyConfig)
	logger := container.MustResolve[*log.Logger](app, KeyLogger)

	for _, key := range []string{KeyCommands, KeyQueries} {
		b, err := container.Resolve[*bus.Bus](app, key)
		if err != nil {
			return err
		}
		b.Use(bus.LogDispatch(logger, b.Kind()))
		if cfg.Metrics.Enabled {
			collector, err := container.Resolve[*metrics.Collector](app, KeyMetrics)
			if err != nil {
				return err
			}
			b.Use(collector.Middleware(b.Kind()))
		}
	}
	return nil
}

// ── StateServiceProvider ──────────────────────────────────────────────────────

// StateServiceProvider registers the application state store. With
// config.State.Persist set, commits are mirrored to SQLite at
// config.State.Path and Boot restores the last saved tree.
//
// Bound abstracts:
//   - "state"            → *state.Store
//   - "state.persister"  → *state.SQLitePersister (persist only)
type StateServiceProvider struct {
	container.BaseProvider
}

func (p *StateServiceProvider) Register(app *container.Container) {
	app.Singleton(KeyPersister, func(c *container.Container) (any, error) {
		cfg, err := container.Resolve[*config.Config](c, KeyConfig)
		if err != nil {
			return nil, err
		}
		return state.OpenSQLite(cfg.State.Path)
	})

	app.Singleton(KeyState, func(c *container.Container) (any, error) {
		cfg, err := container.Resolve[*config.Config](c, KeyConfig)
		if err != nil {
			return nil, err
		}
		logger, err := container.Resolve[*log.Logger](c, KeyLogger)
		if err != nil {
			return nil, err
		}
		opts := []state.Option{
			state.WithLogger(logger),
			state.WithEvents(container.MustResolve[*events.Bus](c, KeyEvents)),
		}
		if cfg.State.Persist {
			persister, err := container.Resolve[*state.SQLitePersister](c, KeyPersister)
			if err != nil {
				return nil, err
			}
			opts = append(opts, state.WithPersister(persister))
		}
		return state.New(opts...), nil
	})
}

func (p *StateServiceProvider) Boot(app *container.Container) error {
	store, err := container.Resolve[*state.Store](app, KeyState)
	if err != nil {
		return err
	}
	return store.Restore(context.Background())
}

// ── MetricsServiceProvider ────────────────────────────────────────────────────

// MetricsServiceProvider is deferred: the collector is only built when
// something asks for "metrics", which happens at boot when
// config.Metrics.Enabled is set.
//
// Bound abstracts:
//   - "metrics"  → *metrics.Collector
type MetricsServiceProvider struct {
	container.BaseProvider
}

func (p *MetricsServiceProvider) IsDeferred() bool   { return true }
func (p *MetricsServiceProvider) Provides() []string { return []string{KeyMetrics} }

func (p *MetricsServiceProvider) Register(app *container.Container) {
	app.Singleton(KeyMetrics, func(c *container.Container) (any, error) {
		cfg, err := container.Resolve[*config.Config](c, KeyConfig)
		if err != nil {
			return nil, err
		}
		return metrics.NewCollector(cfg.Metrics.Namespace), nil
	})
}

func (p *MetricsServiceProvider) Boot(app *container.Container) error {
	collector, err := container.Resolve[*metrics.Collector](app, KeyMetrics)
	if err != nil {
		return err
	}
	store, err := container.Resolve[*state.Store](app, KeyState)
	if err != nil {
		return err
	}
	collector.WatchStore(store)
	return nil
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider registers the HTTP router and mounts the dispatch
// controller on it, plus /metrics when metrics are enabled.
//
// Bound abstracts:
//   - "router"  → *routing.Router
type RoutingServiceProvider struct {
	container.BaseProvider
}

func (p *RoutingServiceProvider) Register(app *container.Container) {
	app.Singleton(KeyRouter, func(c *container.Container) (any, error) {
		logger, err := container.Resolve[*log.Logger](c, KeyLogger)
		if err != nil {
			return nil, err
		}
		return routing.New(routing.WithLogger(logger)), nil
	})
}

func (p *RoutingServiceProvider) Boot(app *container.Container) error {
	cfg := container.MustResolve[*config.Config](app, KeyConfig)
	router, err := container.Resolve[*routing.Router](app, KeyRouter)
	if err != nil {
		return err
	}

	opts := []gohttp.ControllerOption{
		gohttp.WithLogger(container.MustResolve[*log.Logger](app, KeyLogger)),
	}
	if cfg.Metrics.Enabled {
		collector := container.MustResolve[*metrics.Collector](app, KeyMetrics)
		opts = append(opts, gohttp.OnRejected(collector.ObserveRejected))
		router.Handle("/metrics", collector.Handler())
	}

	gohttp.NewDispatchController(
		container.MustResolve[*bus.Bus](app, KeyCommands),
		container.MustResolve[*bus.Bus](app, KeyQueries),
		container.MustResolve[*state.Store](app, KeyState),
		opts...,
	).Routes(router)
	return nil
}
