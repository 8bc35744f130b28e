package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeAndStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"wrapped not found", fmt.Errorf("%w: upload session", ErrNotFound), "not_found", http.StatusNotFound},
		{"permission", ErrPermissionDenied, "permission_denied", http.StatusForbidden},
		{"validation", fmt.Errorf("%w: content is required", ErrValidation), "validation_failed", http.StatusBadRequest},
		{"auth", ErrUnauthenticated, "unauthenticated", http.StatusUnauthorized},
		{"conflict", ErrConflict, "conflict", http.StatusConflict},
		{"upstream", fmt.Errorf("%w: dial tcp", ErrUpstream), "internal", http.StatusInternalServerError},
		{"unknown", errors.New("boom"), "internal", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			req.Equal(tt.code, Code(tt.err))
			req.Equal(tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestMessage_HidesInternalCauses(t *testing.T) {
	req := require.New(t)
	err := fmt.Errorf("%w: connection refused on 10.0.0.4", ErrUpstream)

	req.Equal("internal server error", Message(err, false))
	req.Contains(Message(err, true), "10.0.0.4")

	notFound := fmt.Errorf("%w: message", ErrNotFound)
	req.Equal(notFound.Error(), Message(notFound, false))
}
