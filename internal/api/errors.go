package api

import (
	"errors"
	"net/http"

	pz "github.com/weberc2/httpeasy"

	"github.com/jmylchreest/hedgefactor/pkg/hedge"
)

// StatusFor maps a pipeline error to an HTTP status. Caller mistakes and
// rejected payloads are 400, upstream failures are 502.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, hedge.ErrInvalidInput), errors.Is(err, hedge.ErrSchemaViolation):
		return http.StatusBadRequest
	case errors.Is(err, hedge.ErrGateway),
		errors.Is(err, hedge.ErrMalformedModelOutput),
		errors.Is(err, hedge.ErrSink):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// statusBody is the common response envelope.
type statusBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type logging struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// errorResponse renders err with its mapped status. 4xx bodies carry the
// error text as the message; 5xx bodies carry a generic message plus the
// error text.
func errorResponse(err error, action string) pz.Response {
	status := StatusFor(err)
	body := statusBody{Status: "error", Message: err.Error()}
	if status >= 500 {
		body.Message = action + " failed"
		body.Error = err.Error()
	}
	return pz.Response{
		Status: status,
		Data:   pz.JSON(body),
	}.WithLogging(&logging{Message: action, Error: err.Error()})
}

func badRequest(message string) pz.Response {
	return pz.BadRequest(
		pz.JSON(statusBody{Status: "error", Message: message}),
		&logging{Message: message},
	)
}

func unavailable(message string) pz.Response {
	return pz.Response{
		Status: http.StatusServiceUnavailable,
		Data:   pz.JSON(statusBody{Status: "error", Message: message}),
	}.WithLogging(&logging{Message: message})
}
