package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/km-arc/tracker/framework/bus"
	"github.com/km-arc/tracker/framework/config"
	"github.com/km-arc/tracker/framework/container"
	"github.com/km-arc/tracker/framework/events"
	"github.com/km-arc/tracker/framework/metrics"
	"github.com/km-arc/tracker/framework/providers"
	"github.com/km-arc/tracker/framework/routing"
	"github.com/km-arc/tracker/framework/state"
)

// ShutdownTimeout bounds how long Run waits for in-flight requests.
const ShutdownTimeout = 10 * time.Second

// Application is the top-level runtime. It embeds the Container and the
// ProviderRegistry so callers can bind and register on it directly.
type Application struct {
	*container.Container
	Providers *container.ProviderRegistry
}

// Option configures the core providers built by New.
type Option func(*options)

type options struct {
	configFile string
	envFiles   []string
	logWriter  io.Writer
}

// WithConfigFile loads a TOML file between the defaults and the environment.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configFile = path }
}

// WithEnvFiles overrides the dotenv files read at startup (default ".env").
func WithEnvFiles(files ...string) Option {
	return func(o *options) { o.envFiles = files }
}

// WithLogWriter redirects the application log (default os.Stderr).
func WithLogWriter(w io.Writer) Option {
	return func(o *options) { o.logWriter = w }
}

// New creates the application and registers the core providers. Call
// Register for feature providers, then Boot.
func New(opts ...Option) (*Application, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	c := container.New(container.WithEvents(events.New()))
	app := &Application{
		Container: c,
		Providers: container.NewProviderRegistry(c),
	}

	core := []container.ServiceProvider{
		&providers.ConfigServiceProvider{File: o.configFile, EnvFiles: o.envFiles},
		&providers.LoggingServiceProvider{Writer: o.logWriter},
		&providers.EventServiceProvider{},
		&providers.MetricsServiceProvider{},
		&providers.StateServiceProvider{},
		&providers.BusServiceProvider{},
		&providers.RoutingServiceProvider{},
	}
	for _, p := range core {
		if err := app.Register(p); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// Register adds a ServiceProvider to the application.
func (a *Application) Register(provider container.ServiceProvider) error {
	return a.Providers.Register(provider)
}

// Boot runs the Boot phase on all providers.
func (a *Application) Boot() error {
	return a.Providers.Boot()
}

// Config resolves *config.Config from the container.
func (a *Application) Config() *config.Config {
	return container.MustResolve[*config.Config](a.Container, providers.KeyConfig)
}

// Logger resolves the application logger.
func (a *Application) Logger() *log.Logger {
	return container.MustResolve[*log.Logger](a.Container, providers.KeyLogger)
}

func (a *Application) Events() *events.Bus {
	return container.MustResolve[*events.Bus](a.Container, providers.KeyEvents)
}

func (a *Application) Commands() *bus.Bus {
	return container.MustResolve[*bus.Bus](a.Container, providers.KeyCommands)
}

func (a *Application) Queries() *bus.Bus {
	return container.MustResolve[*bus.Bus](a.Container, providers.KeyQueries)
}

func (a *Application) State() *state.Store {
	return container.MustResolve[*state.Store](a.Container, providers.KeyState)
}

func (a *Application) Router() *routing.Router {
	return container.MustResolve[*routing.Router](a.Container, providers.KeyRouter)
}

// Metrics resolves the collector. It is nil when metrics are disabled.
func (a *Application) Metrics() *metrics.Collector {
	if !a.Config().Metrics.Enabled {
		return nil
	}
	return container.MustResolve[*metrics.Collector](a.Container, providers.KeyMetrics)
}

// Run boots the application if needed and serves HTTP until ctx is done,
// then shuts the server down gracefully.
func (a *Application) Run(ctx context.Context) error {
	if !a.Providers.Booted() {
		if err := a.Boot(); err != nil {
			return err
		}
	}

	cfg := a.Config()
	logger := a.Logger()
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close releases the state persister if one was opened.
func (a *Application) Close() error {
	if !a.Resolved(providers.KeyPersister) {
		return nil
	}
	p, err := container.Resolve[*state.SQLitePersister](a.Container, providers.KeyPersister)
	if err != nil {
		return err
	}
	return p.Close()
}

// Environment returns APP_ENV value.
func (a *Application) Environment() string { return a.Config().App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.Config().App.Debug }
