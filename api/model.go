package api

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/allocation-service/core"
	"github.com/sksmith/allocation-service/core/allocation"
)

// ErrResponse renderer type for handling all sorts of errors.
type ErrResponse struct {
	Err            error `json:"-"` // low-level runtime error
	HTTPStatusCode int   `json:"-"` // http response status code

	StatusText string `json:"status"`          // user-level status message
	AppCode    int64  `json:"code,omitempty"`  // application-specific error code
	ErrorText  string `json:"error,omitempty"` // application-level error message, for debugging
}

func (e *ErrResponse) Render(_ http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		ErrorText:      err.Error(),
	}
}

func ErrConflict(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusConflict,
		StatusText:     "Conflict.",
		ErrorText:      err.Error(),
	}
}

var ErrNotFound = &ErrResponse{HTTPStatusCode: http.StatusNotFound, StatusText: "Resource not found."}
var ErrInternalServer = &ErrResponse{
	Err:            nil,
	HTTPStatusCode: http.StatusInternalServerError,
	StatusText:     "Internal server error.",
	ErrorText:      "An internal server error has occurred.",
}

// ErrFromDomain picks the response for an error returned by the service or
// the bus. Anything unrecognised is logged and hidden behind a 500.
func ErrFromDomain(err error) render.Renderer {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, core.ErrConflict),
		errors.Is(err, allocation.ErrAllocationConflict),
		errors.Is(err, allocation.ErrProductExists),
		errors.Is(err, allocation.ErrOrderItemDiscarded):
		return ErrConflict(err)
	case errors.Is(err, allocation.ErrSkuMismatch),
		errors.Is(err, allocation.ErrInvalidQuantity):
		return ErrInvalidRequest(err)
	default:
		log.Error().Err(err).Msg("unexpected error")
		return ErrInternalServer
	}
}
