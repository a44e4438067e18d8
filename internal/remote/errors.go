package remote

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/noghresod/sync-service-go/internal/apperr"
)

// errorBody is the NoghreSod API error shape. Field-level messages only show
// up on validation failures.
type errorBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

func decodeError(resp *http.Response) *apperr.Error {
	e := apperr.FromStatus(resp.StatusCode, "")

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return e
	}
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil {
		e.Msg = eb.Message
		if e.Kind == apperr.Validation && len(eb.Errors) > 0 {
			e.Fields = eb.Errors
		}
	}
	return e
}

func emptyBodyError(status int) *apperr.Error {
	e := apperr.New(apperr.Unknown, "empty response body")
	e.Status = status
	return e
}
