// Package comms is the driver's ambient network surface: JWT-gated HTTP
// control and telemetry, plus a websocket stream for push-style
// consumers. None of it participates in driving the base; it only reads
// from and writes commands into a *kobuki.Driver.
package comms

import (
	"net/http"

	"github.com/go-chi/render"
)

// ErrResponse is the go-chi/render error envelope every handler in this
// package renders through, so API consumers see a consistent shape.
type ErrResponse struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	StatusText string `json:"status"`
	AppCode    int64  `json:"code,omitempty"`
	ErrorText  string `json:"error,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{Err: err, HTTPStatusCode: http.StatusBadRequest, StatusText: "invalid request", ErrorText: err.Error()}
}

func ErrUnauthorized(err error) render.Renderer {
	return &ErrResponse{Err: err, HTTPStatusCode: http.StatusUnauthorized, StatusText: "unauthorized", ErrorText: err.Error()}
}

func ErrNotFound(err error) render.Renderer {
	return &ErrResponse{Err: err, HTTPStatusCode: http.StatusNotFound, StatusText: "not found", ErrorText: err.Error()}
}

func ErrRender(err error) render.Renderer {
	return &ErrResponse{Err: err, HTTPStatusCode: http.StatusUnprocessableEntity, StatusText: "error rendering response", ErrorText: err.Error()}
}
