package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/noghresod/sync-service-go/internal/apperr"
	"github.com/noghresod/sync-service-go/internal/resource"
)

// resultBody is the success shape for cache-first reads. stale tells the UI
// the data came from the mirror after a failed refresh.
type resultBody struct {
	Data  any  `json:"data"`
	Stale bool `json:"stale"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeResult[T any](w http.ResponseWriter, res resource.Result[T]) {
	if res.Status == resource.StatusError {
		writeError(w, res.Err)
		return
	}
	writeJSON(w, http.StatusOK, resultBody{Data: res.Data, Stale: res.Stale})
}

// writeError maps the taxonomy onto HTTP statuses and ships the localized
// message the UI renders verbatim.
func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	detail := errorDetail{
		Kind:    kind.String(),
		Message: apperr.UserMessage(err),
	}

	var e *apperr.Error
	if errors.As(err, &e) {
		detail.Fields = e.Fields
	}

	writeJSON(w, statusFor(kind), errorBody{Error: detail})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Network, apperr.Timeout:
		return http.StatusGatewayTimeout
	case apperr.Server:
		return http.StatusBadGateway
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Validation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
