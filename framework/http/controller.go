package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/km-arc/tracker/framework/bus"
	"github.com/km-arc/tracker/framework/http/validation"
	"github.com/km-arc/tracker/framework/logging"
	"github.com/km-arc/tracker/framework/routing"
	"github.com/km-arc/tracker/framework/state"
)

// DispatchController exposes the buses and the state store over HTTP.
type DispatchController struct {
	commands *bus.Bus
	queries  *bus.Bus
	store    *state.Store

	logger   logging.Logger
	rejected func(kind bus.Kind, name string)
}

// ControllerOption configures a DispatchController.
type ControllerOption func(*DispatchController)

// WithLogger sets the logger used for handler failures.
func WithLogger(l logging.Logger) ControllerOption {
	return func(c *DispatchController) { c.logger = logging.OrNop(l) }
}

// OnRejected registers a hook called for every payload a validator rejected.
func OnRejected(fn func(kind bus.Kind, name string)) ControllerOption {
	return func(c *DispatchController) { c.rejected = fn }
}

// NewDispatchController creates a controller.
func NewDispatchController(commands, queries *bus.Bus, store *state.Store, opts ...ControllerOption) *DispatchController {
	c := &DispatchController{
		commands: commands,
		queries:  queries,
		store:    store,
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Routes mounts the controller:
//
//	POST /commands/{name}   dispatch a command, body is the JSON payload
//	POST /queries/{name}    ask a query
//	GET  /handlers          registered command and query names
//	GET  /state[?path=a.b]  exported state, or the value at path
//
// The GET routes are served with no-cache headers.
func (c *DispatchController) Routes(r *routing.Router) {
	r.Prefix("/commands", func(r *routing.Router) {
		r.Post("/{name}", c.Command)
	})
	r.Prefix("/queries", func(r *routing.Router) {
		r.Post("/{name}", c.Query)
	})
	r.Group(func(r *routing.Router) {
		r.Middleware(middleware.NoCache)
		r.Get("/handlers", c.Handlers)
		r.Get("/state", c.State)
	})
}

// Command handles POST /commands/{name}.
func (c *DispatchController) Command(w http.ResponseWriter, r *http.Request) {
	c.dispatch(w, r, c.commands)
}

// Query handles POST /queries/{name}.
func (c *DispatchController) Query(w http.ResponseWriter, r *http.Request) {
	c.dispatch(w, r, c.queries)
}

func (c *DispatchController) dispatch(w http.ResponseWriter, r *http.Request, b *bus.Bus) {
	req, res := NewRequest(r), NewResponse(w)
	name := req.RouteParam("name")

	if !req.IsJSON() {
		res.Error(http.StatusUnsupportedMediaType, "Content-Type must be application/json.")
		return
	}
	body, err := req.Body()
	if errors.Is(err, ErrBodyTooLarge) {
		res.Error(http.StatusRequestEntityTooLarge, "Request body too large.")
		return
	}
	if err != nil {
		res.Error(http.StatusBadRequest, "Unreadable request body.")
		return
	}

	result, err := b.DispatchJSON(r.Context(), name, body)

	var (
		unknown *bus.UnknownCommandError
		invalid *bus.ValidationError
	)
	switch {
	case err == nil:
		res.Success(result)
	case errors.As(err, &unknown):
		res.NotFound(fmt.Sprintf("No %s named [%s].", unknown.Kind, unknown.Name))
	case errors.As(err, &invalid):
		if c.rejected != nil {
			c.rejected(b.Kind(), name)
		}
		bag := &validation.Errors{}
		for _, msg := range invalid.Messages {
			bag.Add(name, msg)
		}
		res.ValidationError(bag)
	case errors.Is(err, bus.ErrDecode):
		res.Error(http.StatusBadRequest, "Malformed JSON payload.")
	default:
		c.logger.Error("handler failed", "kind", b.Kind(), "name", name, "err", err)
		res.ServerError()
	}
}

// Handlers handles GET /handlers.
func (c *DispatchController) Handlers(w http.ResponseWriter, r *http.Request) {
	NewResponse(w).Success(map[string][]string{
		"commands": c.commands.Names(),
		"queries":  c.queries.Names(),
	})
}

// State handles GET /state.
func (c *DispatchController) State(w http.ResponseWriter, r *http.Request) {
	req, res := NewRequest(r), NewResponse(w)

	path := req.Query("path")
	if path == "" {
		res.Success(c.store.Export())
		return
	}
	v, ok := c.store.Lookup(path)
	if !ok {
		res.NotFound(fmt.Sprintf("No state at [%s].", path))
		return
	}
	res.Success(v)
}
