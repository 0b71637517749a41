package apperr

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"go.uber.org/zap"
)

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

// Write renders err with its mapped status. Server faults are logged, and
// their detail is not leaked to the client.
func Write(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status := Status(err)
	body := ErrorResponse{Error: err.Error()}
	var v *ValidationError
	if errors.As(err, &v) {
		body.Error = v.Message
		body.Fields = v.Fields
	}
	if status == http.StatusInternalServerError {
		if log != nil {
			log.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		}
		body.Error = "internal error"
	}
	render.Status(r, status)
	render.JSON(w, r, body)
}

// Decode reads a JSON body into v, reporting malformed input as a ValidationError.
func Decode(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return Invalid("malformed request body: " + err.Error())
	}
	return nil
}
