package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/blue-creative/db-rb/internal/shared"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusFor maps a catalog error to an HTTP status code.
func StatusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, shared.ErrTrackNotFound), errors.Is(err, shared.ErrAuditEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrMalformedDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrCatalogLocked):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= 500 {
		a.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}
