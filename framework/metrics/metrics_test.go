package metrics_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/tracker/framework/bus"
	"github.com/km-arc/tracker/framework/metrics"
	"github.com/km-arc/tracker/framework/state"
)

func TestMiddleware_CountsByStatus(t *testing.T) {
	c := metrics.NewCollector("test")
	cmds := bus.NewCommandBus(bus.WithMiddleware(c.Middleware(bus.KindCommand)))
	require.NoError(t, cmds.Register("ok", func(context.Context, any) (any, error) { return nil, nil }))
	require.NoError(t, cmds.Register("fail", func(context.Context, any) (any, error) { return nil, errors.New("x") }))

	ctx := context.Background()
	_, _ = cmds.Dispatch(ctx, "ok", nil)
	_, _ = cmds.Dispatch(ctx, "ok", nil)
	_, _ = cmds.Dispatch(ctx, "fail", nil)

	expected := `
		# HELP test_bus_dispatch_total Total number of command and query dispatches
		# TYPE test_bus_dispatch_total counter
		test_bus_dispatch_total{kind="command",name="fail",status="failed"} 1
		test_bus_dispatch_total{kind="command",name="ok",status="ok"} 2
	`
	err := testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "test_bus_dispatch_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, testutil.CollectAndCount(c.Registry(), "test_bus_dispatch_duration_seconds"))
}

func TestWatchStore_CountsCommits(t *testing.T) {
	c := metrics.NewCollector("")
	store := state.New()
	require.NoError(t, store.RegisterMutation("setTheme", func(s state.Tree, p any) error {
		return s.Set("theme", p)
	}))
	stop := c.WatchStore(store)

	require.NoError(t, store.Commit(context.Background(), "setTheme", "dark"))
	stop()
	require.NoError(t, store.Commit(context.Background(), "setTheme", "light"))

	expected := `
		# HELP tracker_state_commits_total Total number of committed state mutations
		# TYPE tracker_state_commits_total counter
		tracker_state_commits_total{mutation="setTheme"} 1
	`
	assert.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "tracker_state_commits_total"))
}

func TestHandler_ServesTextFormat(t *testing.T) {
	c := metrics.NewCollector("tracker")
	c.ObserveRejected(bus.KindQuery, "show.get")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `tracker_bus_dispatch_total{kind="query",name="show.get",status="invalid"} 1`)
}
