// Package grant mints the short-lived signed access grants that admit a
// participant to a room on the LiveKit media server.
//
// A grant is an HS256 JWT signed with the server's API secret:
//
//	iss    API key
//	sub    participant identity
//	name   participant display name
//	nbf    issue time
//	exp    issue time + TTL
//	jti    random per grant
//	video  {roomJoin, room, canPublish, canSubscribe}
package grant

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/voicedesk/voicedesk/internal/common/apperrors"
	"github.com/voicedesk/voicedesk/internal/common/uuid"
	"github.com/voicedesk/voicedesk/internal/config"
)

// DefaultTTL matches the media server's own default token lifetime.
const DefaultTTL = 6 * time.Hour

var (
	ErrGrant              apperrors.Error = apperrors.New("grant error").SetStatusCode(http.StatusInternalServerError)
	ErrMissingCredentials apperrors.Error = ErrGrant.New("grant issuer credentials are not configured")
	ErrSigning            apperrors.Error = ErrGrant.New("unable to sign grant")
	ErrInvalidGrant       apperrors.Error = ErrGrant.New("invalid grant").SetStatusCode(http.StatusUnauthorized)
)

// VideoGrant is the room permission set carried in the "video" claim.
type VideoGrant struct {
	RoomJoin     bool   `json:"roomJoin,omitempty"`
	Room         string `json:"room,omitempty"`
	CanPublish   bool   `json:"canPublish"`
	CanSubscribe bool   `json:"canSubscribe"`
}

type Claims struct {
	jwt.RegisteredClaims
	Name  string      `json:"name,omitempty"`
	Video *VideoGrant `json:"video,omitempty"`
}

// Credentials identify this service to the media server. ServerURL is
// optional and only echoed to clients.
type Credentials struct {
	APIKey    string
	APISecret string
	ServerURL string
}

func (c Credentials) Complete() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// CredentialSource yields the credentials to sign with. It is consulted on
// every issue, so credentials can be supplied after startup.
type CredentialSource interface {
	Credentials(ctx context.Context) (Credentials, apperrors.Error)
}

// ConfigCredentials reads credentials from the loaded configuration.
type ConfigCredentials struct{}

func (ConfigCredentials) Credentials(ctx context.Context) (Credentials, apperrors.Error) {
	c := config.Config()
	if c == nil {
		return Credentials{}, ErrMissingCredentials.Msg("configuration not loaded")
	}
	creds := Credentials{
		APIKey:    c.LiveKit.APIKey,
		APISecret: c.LiveKit.APISecret,
		ServerURL: c.LiveKit.URL,
	}
	if !creds.Complete() {
		return creds, ErrMissingCredentials
	}
	return creds, nil
}

// StaticCredentials always returns itself.
type StaticCredentials Credentials

func (s StaticCredentials) Credentials(ctx context.Context) (Credentials, apperrors.Error) {
	creds := Credentials(s)
	if !creds.Complete() {
		return creds, ErrMissingCredentials
	}
	return creds, nil
}

// Request describes the participant and room a grant is for.
type Request struct {
	Identity string
	Name     string
	Room     string
}

// Issuer signs grants.
type Issuer struct {
	TTL time.Duration
	now func() time.Time
}

func NewIssuer(ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{TTL: ttl, now: time.Now}
}

// Issue signs a grant admitting req.Identity to req.Room with publish and
// subscribe rights. It returns the token and its expiry.
func (i *Issuer) Issue(creds Credentials, req Request) (string, time.Time, apperrors.Error) {
	if !creds.Complete() {
		return "", time.Time{}, ErrMissingCredentials
	}
	if req.Identity == "" || req.Room == "" {
		return "", time.Time{}, ErrSigning.Msg("grant needs an identity and a room")
	}
	now := i.now().UTC().Truncate(time.Second)
	expiry := now.Add(i.TTL)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    creds.APIKey,
			Subject:   req.Identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			ID:        uuid.New().String(),
		},
		Name: req.Name,
		Video: &VideoGrant{
			RoomJoin:     true,
			Room:         req.Room,
			CanPublish:   true,
			CanSubscribe: true,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(creds.APISecret))
	if err != nil {
		return "", time.Time{}, ErrSigning.Err(err)
	}
	return token, expiry, nil
}

// Parse verifies token against secret and returns its claims.
func Parse(token, secret string) (*Claims, apperrors.Error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidGrant.Err(err)
	}
	return claims, nil
}

// ParseUnverified decodes token without checking the signature. Used for
// inspection only.
func ParseUnverified(token string) (*Claims, apperrors.Error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, ErrInvalidGrant.Err(err)
	}
	return claims, nil
}
