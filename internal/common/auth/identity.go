package auth

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "travelgo-chat/internal/common/errors"
	"travelgo-chat/internal/common/logger"
	"travelgo-chat/internal/models"
)

const DefaultRevokedTokenPrefix = "token:revoked:"

// DefaultRevocationTTL applies when the token's expiry is unknown.
const DefaultRevocationTTL = 24 * time.Hour

// TokenValidator is satisfied by *KeycloakClient.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*TokenInfo, error)
}

// Resolver is the auth collaborator of the chat pipeline. The identity it
// returns comes from the credential only, never from message text.
type Resolver struct {
	validator TokenValidator
	redis     redis.Cmdable
	prefix    string
	logger    logger.Logger
}

func NewResolver(validator TokenValidator, rdb redis.Cmdable, prefix string, log logger.Logger) *Resolver {
	if prefix == "" {
		prefix = DefaultRevokedTokenPrefix
	}
	return &Resolver{
		validator: validator,
		redis:     rdb,
		prefix:    prefix,
		logger:    log.WithFields(map[string]interface{}{"component": "auth"}),
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// Resolve maps token to a caller. An empty token is an anonymous caller; a
// revoked or rejected token is an AUTHENTICATION_ERROR.
func (r *Resolver) Resolve(ctx context.Context, token string) (models.CallerIdentity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.Anonymous(), nil
	}

	revoked, err := r.IsRevoked(ctx, token)
	if err != nil {
		r.logger.Error("revocation lookup failed", map[string]interface{}{"error": err.Error()})
		stdErr := apperrors.NewAuthenticationError("revocation lookup failed")
		stdErr.Retryable = true
		return models.Anonymous(), stdErr
	}
	if revoked {
		r.logger.Warn("revoked token presented", nil)
		return models.Anonymous(), apperrors.NewAuthenticationError("token has been revoked")
	}

	info, err := r.validator.ValidateToken(ctx, token)
	if err != nil {
		return models.Anonymous(), err
	}

	return models.CallerIdentity{
		Authenticated: true,
		Email:         strings.ToLower(strings.TrimSpace(info.Email)),
	}, nil
}

func (r *Resolver) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.prefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Revoke blocks token for ttl.
func (r *Resolver) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if err := r.redis.Set(ctx, r.prefix+token, "1", ttl).Err(); err != nil {
		return err
	}
	r.logger.Info("token revoked", map[string]interface{}{"ttl": ttl.String()})
	return nil
}

// Logout revokes token until it would have expired on its own.
func (r *Resolver) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperrors.NewAuthenticationError("missing bearer token")
	}

	ttl := DefaultRevocationTTL
	if info, err := r.validator.ValidateToken(ctx, token); err == nil && info.Exp > 0 {
		if remaining := time.Until(time.Unix(info.Exp, 0)); remaining > 0 {
			ttl = remaining
		}
	}

	if err := r.Revoke(ctx, token, ttl); err != nil {
		r.logger.Error("token revocation failed", map[string]interface{}{"error": err.Error()})
		stdErr := apperrors.NewAuthenticationError("revocation store unavailable")
		stdErr.Retryable = true
		return stdErr
	}
	return nil
}
