package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/km-arc/tracker/framework/bus"
	gohttp "github.com/km-arc/tracker/framework/http"
	"github.com/km-arc/tracker/framework/logging"
	"github.com/km-arc/tracker/framework/routing"
	"github.com/km-arc/tracker/framework/state"
)

type progressInput struct {
	ID string `json:"id"`
}

var (
	progressEpisode = bus.NewCommand[progressInput, map[string]any]("show.progressEpisode")
	getShow         = bus.NewQuery[progressInput, map[string]any]("show.get")
)

// newServer wires a router around fresh buses and a store holding one show.
func newServer(t *testing.T, opts ...gohttp.ControllerOption) *routing.Router {
	t.Helper()

	store := state.New(state.WithState(state.Tree{
		"shows": map[string]any{"frieren": map[string]any{"episode": 3}},
	}))
	cmds, queries := bus.NewCommandBus(), bus.NewQueryBus()

	requireID := func(p progressInput) []string {
		if p.ID == "" {
			return []string{"The id field is required."}
		}
		return nil
	}
	if err := bus.Handle(cmds, progressEpisode, func(_ context.Context, p progressInput) (map[string]any, error) {
		if p.ID == "broken" {
			return nil, errors.New("database on fire")
		}
		return map[string]any{"id": p.ID, "episode": 4}, nil
	}, requireID); err != nil {
		t.Fatal(err)
	}
	if err := bus.HandleQuery(queries, getShow, func(_ context.Context, p progressInput) (map[string]any, error) {
		return map[string]any{"id": p.ID}, nil
	}); err != nil {
		t.Fatal(err)
	}

	r := routing.New(routing.WithLogger(logging.Nop()))
	gohttp.NewDispatchController(cmds, queries, store, opts...).Routes(r)
	return r
}

func post(t *testing.T, r http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func get(t *testing.T, r http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

// ── Commands / Queries ────────────────────────────────────────────────────────

func TestController_Dispatch(t *testing.T) {
	r := newServer(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		want   string
	}{
		{"command ok", "/commands/show.progressEpisode", `{"id":"frieren"}`, 200, `{"data":{"episode":4,"id":"frieren"}}`},
		{"query ok", "/queries/show.get", `{"id":"frieren"}`, 200, `{"data":{"id":"frieren"}}`},
		{"unknown command", "/commands/show.delete", `{}`, 404, `{"message":"No command named [show.delete]."}`},
		{"unknown query", "/queries/show.list", ``, 404, `{"message":"No query named [show.list]."}`},
		{"validation", "/commands/show.progressEpisode", `{}`, 422, `{"errors":{"show.progressEpisode":["The id field is required."]}}`},
		{"empty body validates", "/commands/show.progressEpisode", ``, 422, `{"errors":{"show.progressEpisode":["The id field is required."]}}`},
		{"malformed", "/commands/show.progressEpisode", `{"id":`, 400, `{"message":"Malformed JSON payload."}`},
		{"handler error", "/commands/show.progressEpisode", `{"id":"broken"}`, 500, `{"message":"Server Error."}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := post(t, r, tt.path, tt.body)
			if rr.Code != tt.status {
				t.Errorf("status: got %d want %d (body %s)", rr.Code, tt.status, rr.Body)
			}
			if got := strings.TrimSpace(rr.Body.String()); got != tt.want {
				t.Errorf("body: got %s want %s", got, tt.want)
			}
		})
	}
}

func TestController_RejectsNonJSON(t *testing.T) {
	r := newServer(t)
	req := httptest.NewRequest(http.MethodPost, "/commands/show.progressEpisode", strings.NewReader("id=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnsupportedMediaType {
		t.Errorf("got %d want 415", rr.Code)
	}
}

func TestController_OnRejectedHook(t *testing.T) {
	var got []string
	r := newServer(t, gohttp.OnRejected(func(kind bus.Kind, name string) {
		got = append(got, string(kind)+":"+name)
	}))

	post(t, r, "/commands/show.progressEpisode", `{}`)
	post(t, r, "/commands/show.progressEpisode", `{"id":"frieren"}`)

	if want := []string{"command:show.progressEpisode"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestController_Handlers(t *testing.T) {
	rr := get(t, newServer(t), "/handlers")

	var body struct {
		Data map[string][]string `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	want := map[string][]string{
		"commands": {"show.progressEpisode"},
		"queries":  {"show.get"},
	}
	if !reflect.DeepEqual(body.Data, want) {
		t.Errorf("got %v want %v", body.Data, want)
	}
}

// ── State ─────────────────────────────────────────────────────────────────────

func TestController_State(t *testing.T) {
	r := newServer(t)

	tests := []struct {
		name   string
		path   string
		status int
		want   string
	}{
		{"whole tree", "/state", 200, `{"data":{"state":{"shows":{"frieren":{"episode":3}}}}}`},
		{"path", "/state?path=shows.frieren.episode", 200, `{"data":3}`},
		{"missing path", "/state?path=shows.dungeon", 404, `{"message":"No state at [shows.dungeon]."}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := get(t, r, tt.path)
			if rr.Code != tt.status {
				t.Errorf("status: got %d want %d", rr.Code, tt.status)
			}
			if got := strings.TrimSpace(rr.Body.String()); got != tt.want {
				t.Errorf("body: got %s want %s", got, tt.want)
			}
		})
	}
}

func TestController_ReadRoutesAreNotCached(t *testing.T) {
	r := newServer(t)

	for _, path := range []string{"/handlers", "/state"} {
		rr := get(t, r, path)
		if got := rr.Header().Get("Cache-Control"); !strings.Contains(got, "no-cache") {
			t.Errorf("GET %s Cache-Control: got %q, want no-cache", path, got)
		}
	}

	rr := post(t, r, "/queries/show.get", `{"id":"frieren"}`)
	if got := rr.Header().Get("Cache-Control"); got != "" {
		t.Errorf("POST /queries Cache-Control: got %q, want none", got)
	}
	if rr.Code != http.StatusOK {
		t.Errorf("POST /queries/show.get: got %d want 200", rr.Code)
	}
}
