package http

import (
	"encoding/json"
	"net/http"

	"github.com/km-arc/tracker/framework/http/validation"
)

// Response writes the JSON envelopes the dispatch endpoints answer with:
// {"data": ...} on success, {"message": ...} on failure and the validation
// bag on 422.
type Response struct {
	w http.ResponseWriter
}

func NewResponse(w http.ResponseWriter) *Response {
	return &Response{w: w}
}

// JSON encodes data with status. A value that cannot be encoded, such as a
// handler result holding a channel, is answered with 500 instead.
func (res *Response) JSON(status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(message(defaultServerError))
	}
	res.w.Header().Set("Content-Type", "application/json")
	res.w.WriteHeader(status)
	_, _ = res.w.Write(append(body, '\n'))
}

// Success answers 200 with the handler result under "data".
func (res *Response) Success(v any) {
	res.JSON(http.StatusOK, map[string]any{"data": v})
}

func (res *Response) Error(status int, msg string) {
	res.JSON(status, message(msg))
}

func (res *Response) NotFound(msg ...string) {
	res.Error(http.StatusNotFound, orDefault(msg, defaultNotFound))
}

func (res *Response) ServerError(msg ...string) {
	res.Error(http.StatusInternalServerError, orDefault(msg, defaultServerError))
}

// ValidationError answers 422 with the bag, keyed by field.
func (res *Response) ValidationError(bag *validation.Errors) {
	res.JSON(http.StatusUnprocessableEntity, bag)
}

const (
	defaultNotFound    = "Not found."
	defaultServerError = "Server Error."
)

func message(msg string) map[string]string {
	return map[string]string{"message": msg}
}

func orDefault(msg []string, fallback string) string {
	if len(msg) == 0 || msg[0] == "" {
		return fallback
	}
	return msg[0]
}
