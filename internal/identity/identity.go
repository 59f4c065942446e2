// Package identity resolves bearer credentials issued by the hosted auth
// service to end users.
package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/voicedesk/voicedesk/internal/common/apperrors"
	"github.com/voicedesk/voicedesk/internal/config"
)

var (
	ErrUnauthenticated  apperrors.Error = apperrors.New("Unauthorized").SetStatusCode(http.StatusUnauthorized)
	ErrMissingToken     apperrors.Error = ErrUnauthenticated.New("missing bearer token")
	ErrInvalidToken     apperrors.Error = ErrUnauthenticated.New("invalid token")
	ErrProviderFailure  apperrors.Error = ErrUnauthenticated.New("identity provider error")
	ErrIncompleteClaims apperrors.Error = ErrUnauthenticated.New("token has no subject")
)

// User is the authenticated end user. Email and Phone may be empty.
type User struct {
	ID    string `json:"id" mapstructure:"sub"`
	Email string `json:"email,omitempty" mapstructure:"email"`
	Phone string `json:"phone,omitempty" mapstructure:"phone"`
}

// DisplayName is the first non-empty of email, phone and id.
func (u *User) DisplayName() string {
	switch {
	case u.Email != "":
		return u.Email
	case u.Phone != "":
		return u.Phone
	default:
		return u.ID
	}
}

// Provider resolves a raw bearer token to a user. Every failure, including
// an unreachable provider, is reported as an error matching
// ErrUnauthenticated.
type Provider interface {
	GetUser(ctx context.Context, token string) (*User, apperrors.Error)
}

// BearerToken extracts the credential from an Authorization header value.
// The scheme is matched case-insensitively; "" is returned when absent.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// NewProvider builds the provider selected by c.Mode.
func NewProvider(c config.IdentityConfig) (Provider, error) {
	switch c.Mode {
	case config.IdentityModeGoTrue:
		return NewGoTrueClient(c.URL, c.AnonKey, nil), nil
	case config.IdentityModeJWT:
		return NewJWTVerifier([]byte(c.JWTSecret), c.Audience), nil
	default:
		return nil, fmt.Errorf("unsupported identity mode: %q", c.Mode)
	}
}

type userContextKey struct{}

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// UserFromContext returns the user stored by WithUser, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userContextKey{}).(*User)
	return u
}
