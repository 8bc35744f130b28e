package myMiddleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (string, string, error) {
	if token == "good" {
		return "u-1", "alice", nil
	}
	return "", "", errors.New("bad token")
}

func TestAuthMiddleware_Handle(t *testing.T) {
	var gotID, gotName string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, gotName, _ = Identity(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := NewAuthMiddleware(stubValidator{}).Handle(next)

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"bearer header", "Bearer good", "", http.StatusNoContent},
		{"query fallback", "", "?token=good", http.StatusNoContent},
		{"missing token", "", "", http.StatusUnauthorized},
		{"invalid token", "Bearer bad", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			gotID, gotName = "", ""
			r := httptest.NewRequest(http.MethodGet, "/ws"+tt.query, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			h.ServeHTTP(w, r)

			req.Equal(tt.status, w.Code)
			if tt.status == http.StatusNoContent {
				req.Equal("u-1", gotID)
				req.Equal("alice", gotName)
			}
		})
	}
}
