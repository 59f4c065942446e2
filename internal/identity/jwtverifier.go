package identity

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"
	"github.com/voicedesk/voicedesk/internal/common/apperrors"
)

// JWTVerifier validates HS256 access tokens locally with the auth service's
// signing secret. It avoids a network round trip per request but cannot see
// server-side revocation.
type JWTVerifier struct {
	secret   []byte
	audience string
}

func NewJWTVerifier(secret []byte, audience string) *JWTVerifier {
	return &JWTVerifier{secret: secret, audience: audience}
}

func (v *JWTVerifier) GetUser(ctx context.Context, token string) (*User, apperrors.Error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Msg("bearer token rejected")
		return nil, ErrInvalidToken.Err(err)
	}

	var user User
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &user,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, ErrProviderFailure.Err(err)
	}
	if err := decoder.Decode(map[string]any(claims)); err != nil {
		return nil, ErrInvalidToken.Err(err)
	}
	if user.ID == "" {
		return nil, ErrIncompleteClaims
	}
	return &user, nil
}
