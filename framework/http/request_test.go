package http_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gohttp "github.com/km-arc/tracker/framework/http"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func newJSONRequest(t *testing.T, body string) *gohttp.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return gohttp.NewRequest(req)
}

// ── Body ──────────────────────────────────────────────────────────────

func TestRequest_Body(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"object", `{"id":"frieren"}`, `{"id":"frieren"}`},
		{"empty", "", ""},
		{"whitespace", "  \n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newJSONRequest(t, tt.body).Body()
			if err != nil {
				t.Fatalf("Body: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestRequest_Body_TooLarge(t *testing.T) {
	big := `"` + strings.Repeat("x", 2<<20) + `"`
	if _, err := newJSONRequest(t, big).Body(); err != gohttp.ErrBodyTooLarge {
		t.Errorf("got %v, want ErrBodyTooLarge", err)
	}
}

// ── Input helpers ────────────────────────────────────────────────────────────

func TestRequest_Query(t *testing.T) {
	req := gohttp.NewRequest(httptest.NewRequest(http.MethodGet, "/state?path=user.name", nil))

	if got := req.Query("path"); got != "user.name" {
		t.Errorf("got %q want %q", got, "user.name")
	}
	if got := req.Query("missing", "fallback"); got != "fallback" {
		t.Errorf("got %q want %q", got, "fallback")
	}
}

func TestRequest_Header(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-Id", "abc")
	if got := gohttp.NewRequest(r).Header("X-Request-Id"); got != "abc" {
		t.Errorf("got %q want %q", got, "abc")
	}
}

func TestRequest_IsJSON(t *testing.T) {
	tests := []struct {
		ct   string
		want bool
	}{
		{"", true},
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"text/plain", false},
	}
	for _, tt := range tests {
		t.Run(tt.ct, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.ct != "" {
				r.Header.Set("Content-Type", tt.ct)
			}
			if got := gohttp.NewRequest(r).IsJSON(); got != tt.want {
				t.Errorf("got %v want %v", got, tt.want)
			}
		})
	}
}
