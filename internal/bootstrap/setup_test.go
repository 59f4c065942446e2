package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/voicedesk/voicedesk/internal/common/apperrors"
	"github.com/voicedesk/voicedesk/internal/common/uuid"
	"github.com/voicedesk/voicedesk/internal/db"
	"github.com/voicedesk/voicedesk/internal/db/dberror"
	"github.com/voicedesk/voicedesk/internal/db/models"
	"github.com/voicedesk/voicedesk/internal/db/sqlite"
	"github.com/voicedesk/voicedesk/internal/grant"
	"github.com/voicedesk/voicedesk/internal/identity"
)

const (
	testJWTSecret = "identity-signing-secret"
	testAPIKey    = "APItest"
	testAPISecret = "grant-signing-secret"
	testServerURL = "wss://voice.example.com"
)

// countingStore records session inserts so tests can assert that failure
// paths perform no writes.
type countingStore struct {
	db.Store
	creates      atomic.Int32
	failOn       bool
	failAgentGet bool
}

func (c *countingStore) GetAgent(ctx context.Context, id uuid.UUID) (*models.Agent, apperrors.Error) {
	if c.failAgentGet {
		return nil, dberror.ErrDatabase.Msg("connection reset")
	}
	return c.Store.GetAgent(ctx, id)
}

func (c *countingStore) CreateSession(ctx context.Context, s *models.Session) apperrors.Error {
	c.creates.Add(1)
	if c.failOn {
		return dberror.ErrDatabase.Msg("insert failed")
	}
	return c.Store.CreateSession(ctx, s)
}

type testEnv struct {
	store  *countingStore
	router chi.Router
	agent  *models.Agent
}

type envOption func(*envConfig)

type envConfig struct {
	creds  grant.CredentialSource
	signer Signer
	opts   []Option
}

func withSigner(sg Signer) envOption {
	return func(e *envConfig) { e.signer = sg }
}

func withCredentials(c grant.CredentialSource) envOption {
	return func(e *envConfig) { e.creds = c }
}

func withServiceOption(o Option) envOption {
	return func(e *envConfig) { e.opts = append(e.opts, o) }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	cfg := &envConfig{
		creds:  grant.StaticCredentials{APIKey: testAPIKey, APISecret: testAPISecret, ServerURL: testServerURL},
		signer: grant.NewIssuer(time.Hour),
	}
	for _, o := range opts {
		o(cfg)
	}

	lite, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "bootstrap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { lite.Close() })

	agent := &models.Agent{UserID: "owner-1", Name: "Front desk", Voice: "alloy", Language: "en-US"}
	require.Nil(t, lite.UpsertAgent(context.Background(), agent))

	store := &countingStore{Store: lite}
	svc := NewService(store, identity.NewJWTVerifier([]byte(testJWTSecret), "authenticated"), cfg.creds, cfg.signer, cfg.opts...)

	r := chi.NewRouter()
	r.Mount("/livekit-token", Router(svc, 0))
	return &testEnv{store: store, router: r, agent: agent}
}

func userToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	base := jwt.MapClaims{
		"aud": "authenticated",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range claims {
		base[k] = v
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, base).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(method, bearer, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/livekit-token", nil)
	} else {
		req = httptest.NewRequest(method, "/livekit-token", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type failingSigner struct{}

func (failingSigner) Issue(grant.Credentials, grant.Request) (string, time.Time, apperrors.Error) {
	return "", time.Time{}, grant.ErrGrant.Msg("signing key rejected")
}

type staticProvider struct{}

func (staticProvider) GetUser(ctx context.Context, token string) (*identity.User, apperrors.Error) {
	if token == "" {
		return nil, identity.ErrMissingToken
	}
	return &identity.User{ID: "static-user"}, nil
}
