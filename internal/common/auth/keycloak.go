// Package auth turns a bearer credential into a CallerIdentity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"travelgo-chat/internal/common/config"
	apperrors "travelgo-chat/internal/common/errors"
	commonhttp "travelgo-chat/internal/common/http"
)

var (
	ErrTokenInactive = errors.New("TOKEN_INVALID")
)

// KeycloakClient validates access tokens against a Keycloak realm.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *commonhttp.Client
}

// TokenInfo holds the fields of an introspection answer that the chat uses.
type TokenInfo struct {
	Active            bool   `json:"active"`
	Email             string `json:"email,omitempty"`
	EmailVerified     bool   `json:"email_verified,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	ClientID          string `json:"client_id,omitempty"`
	Sub               string `json:"sub,omitempty"`
	Exp               int64  `json:"exp,omitempty"`
}

func NewKeycloakClient(baseURL, realm, clientID, clientSecret string, timeout time.Duration) *KeycloakClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   commonhttp.NewClient(timeout),
	}
}

func NewKeycloakClientFromConfig(cfg config.KeycloakConfig) *KeycloakClient {
	return NewKeycloakClient(cfg.URL, cfg.Realm, cfg.ClientID, cfg.ClientSecret,
		time.Duration(cfg.Timeout)*time.Millisecond)
}

// ValidateToken introspects token. An inactive token yields an
// AUTHENTICATION_ERROR; transport failures are retryable.
func (k *KeycloakClient) ValidateToken(ctx context.Context, token string) (*TokenInfo, error) {
	introspectURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token/introspect", k.baseURL, k.realm)

	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", "access_token")
	form.Set("client_id", k.clientID)
	form.Set("client_secret", k.clientSecret)

	var info TokenInfo
	if err := k.httpClient.PostForm(ctx, introspectURL, form, &info); err != nil {
		stdErr := apperrors.NewAuthenticationError(err.Error())
		var statusErr *commonhttp.StatusError
		if !errors.As(err, &statusErr) || statusErr.Transient() {
			stdErr.Message = "Token introspection unavailable"
			stdErr.Retryable = true
		}
		return nil, stdErr
	}

	if !info.Active {
		return nil, apperrors.NewAuthenticationError(fmt.Sprintf("%v: token is expired, revoked or malformed", ErrTokenInactive))
	}
	return &info, nil
}
