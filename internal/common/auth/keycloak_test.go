package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "travelgo-chat/internal/common/errors"
)

func newKeycloakServer(t *testing.T, status int, body string) *KeycloakClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/realms/travelgo/protocol/openid-connect/token/introspect", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "chat-api", r.PostForm.Get("client_id"))
		assert.Equal(t, "access_token", r.PostForm.Get("token_type_hint"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewKeycloakClient(srv.URL+"/", "travelgo", "chat-api", "secret", time.Second)
}

func TestKeycloakClient_ValidateToken(t *testing.T) {
	t.Run("active", func(t *testing.T) {
		k := newKeycloakServer(t, http.StatusOK, `{"active": true, "email": "alice@example.com", "sub": "u-1"}`)
		info, err := k.ValidateToken(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", info.Email)
		assert.Equal(t, "u-1", info.Sub)
	})

	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{"inactive", http.StatusOK, `{"active": false}`, false},
		{"unauthorized client", http.StatusUnauthorized, `{"error": "unauthorized_client"}`, false},
		{"keycloak down", http.StatusServiceUnavailable, ``, true},
		{"garbage", http.StatusOK, `not json`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newKeycloakServer(t, tt.status, tt.body)
			_, err := k.ValidateToken(context.Background(), "tok")
			require.Error(t, err)
			stdErr, ok := apperrors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.ErrCodeAuthentication, stdErr.Code)
			assert.Equal(t, tt.retryable, stdErr.Retryable)
		})
	}
}
