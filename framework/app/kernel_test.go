package app_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/tracker/framework/app"
	"github.com/km-arc/tracker/framework/container"
	"github.com/km-arc/tracker/framework/state"
)

func newApp(t *testing.T, opts ...app.Option) *app.Application {
	t.Helper()
	opts = append([]app.Option{
		app.WithEnvFiles(filepath.Join(t.TempDir(), "missing.env")),
		app.WithLogWriter(io.Discard),
	}, opts...)
	a, err := app.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

type themeProvider struct{ container.BaseProvider }

func (p *themeProvider) Register(*container.Container) {}

func (p *themeProvider) Boot(c *container.Container) error {
	store := container.MustResolve[*state.Store](c, "state")
	return store.RegisterMutation("setTheme", func(s state.Tree, v any) error {
		return s.Set("user.preferences.theme", v)
	})
}

func TestNew_BindsCoreServices(t *testing.T) {
	a := newApp(t)
	require.NoError(t, a.Boot())

	for _, key := range []string{"config", "configuration", "logger", "events", "commands", "queries", "state", "router"} {
		assert.True(t, a.Bound(key), key)
	}
	assert.Equal(t, "command", string(a.Commands().Kind()))
	assert.Equal(t, "query", string(a.Queries().Kind()))
	assert.Same(t, a.Container.Events(), a.Events())
	assert.True(t, a.IsLocal())
	assert.False(t, a.IsProduction())
}

func TestMetrics_DeferredUntilBoot(t *testing.T) {
	a := newApp(t)
	assert.False(t, a.Resolved("metrics"))

	require.NoError(t, a.Boot())
	require.NotNil(t, a.Metrics())

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetrics_Disabled(t *testing.T) {
	t.Setenv("METRICS_ENABLED", "false")
	a := newApp(t)
	require.NoError(t, a.Boot())

	assert.Nil(t, a.Metrics())
	assert.False(t, a.Resolved("metrics"))

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ServesDispatchController(t *testing.T) {
	a := newApp(t)
	require.NoError(t, a.Register(&themeProvider{}))
	require.NoError(t, a.Boot())
	require.NoError(t, a.State().Commit(context.Background(), "setTheme", "dark"))

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/state?path=user.preferences.theme", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"dark"`)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/commands/nope", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	a.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestState_PersistAndRestore(t *testing.T) {
	t.Setenv("STATE_PERSIST", "true")
	t.Setenv("STATE_PATH", filepath.Join(t.TempDir(), "tracker.db"))

	first := newApp(t)
	require.NoError(t, first.Register(&themeProvider{}))
	require.NoError(t, first.Boot())
	require.NoError(t, first.State().Commit(context.Background(), "setTheme", "dark"))
	require.NoError(t, first.Close())

	second := newApp(t)
	require.NoError(t, second.Boot())
	assert.Equal(t, "dark", second.State().Get("user.preferences.theme"))
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Setenv("HTTP_PORT", "0")
	a := newApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	assert.NoError(t, <-done)
	assert.True(t, a.Providers.Booted())
}
