package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/km-arc/tracker/framework/routing"
)

const maxBody = 1 << 20 // 1 MB

// ErrBodyTooLarge is returned when a request body exceeds the read limit.
var ErrBodyTooLarge = errors.New("request body too large")

// Request wraps *http.Request with the helpers the controllers use.
type Request struct {
	raw *http.Request
}

// NewRequest wraps a standard *http.Request.
func NewRequest(r *http.Request) *Request {
	return &Request{raw: r}
}

// ── Body ─────────────────────────────────────────────────────────────────────

// Body reads the whole request body as raw JSON. An empty body yields nil.
func (req *Request) Body() (json.RawMessage, error) {
	if req.raw.Body == nil {
		return nil, nil
	}
	defer req.raw.Body.Close()
	body, err := io.ReadAll(io.LimitReader(req.raw.Body, maxBody+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBody {
		return nil, ErrBodyTooLarge
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}
	return body, nil
}

// ── Input helpers ────────────────────────────────────────────────────────────

// Query returns a query-string value.
func (req *Request) Query(key string, fallback ...string) string {
	v := req.raw.URL.Query().Get(key)
	if v == "" && len(fallback) > 0 {
		return fallback[0]
	}
	return v
}

// RouteParam returns a URL route parameter (chi).
func (req *Request) RouteParam(key string) string {
	return routing.Param(req.raw, key)
}

// Header returns a request header value.
func (req *Request) Header(key string) string {
	return req.raw.Header.Get(key)
}

// ContentType returns the Content-Type header value.
func (req *Request) ContentType() string {
	return req.Header("Content-Type")
}

// IsJSON reports whether the body is declared as JSON. A missing
// Content-Type counts as JSON.
func (req *Request) IsJSON() bool {
	ct := req.ContentType()
	return ct == "" || strings.Contains(ct, "application/json")
}
