// Package httpx holds the JSON request/response helpers shared by the REST handlers.
package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"go-talk/internal/apperr"
)

var validate = validator.New()

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes {"error": msg} with the status mapped from err.
func Error(w http.ResponseWriter, err error, msg string) {
	JSON(w, apperr.HTTPStatus(err), map[string]string{"error": msg})
}

// Fail writes err to the client, hiding internal causes unless expose is set.
// Internal failures are logged.
func Fail(w http.ResponseWriter, log *zap.Logger, err error, expose bool) {
	if apperr.Code(err) == "internal" {
		log.Error("request failed", zap.Error(err))
	}
	Error(w, err, apperr.Message(err, expose))
}

// Decode reads a JSON body into v and validates its `validate` tags.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed body: %v", apperr.ErrValidation, err)
	}
	return Validate(v)
}

// Validate checks the `validate` struct tags of v.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return nil
}
