package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/voicedesk/voicedesk/internal/agentdef"
	"github.com/voicedesk/voicedesk/internal/common/uuid"
	"github.com/voicedesk/voicedesk/internal/config"
	"github.com/voicedesk/voicedesk/internal/db"
	"github.com/voicedesk/voicedesk/internal/db/models"
	"github.com/voicedesk/voicedesk/internal/grant"
	"github.com/voicedesk/voicedesk/internal/identity"
	"github.com/voicedesk/voicedesk/internal/widget"
)

const (
	jwtSecret = "server-test-identity-secret"
	apiSecret = "server-test-grant-secret"
)

type testServer struct {
	cfg   *config.ConfigParam
	store db.Store
	http  *httptest.Server
	agent *models.Agent
}

func newTestServer(t *testing.T, mutate ...func(*config.ConfigParam)) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.DB.Driver = config.DriverSQLite
	cfg.DB.Path = filepath.Join(t.TempDir(), "server.db")
	cfg.Identity.Mode = config.IdentityModeJWT
	cfg.Identity.JWTSecret = jwtSecret
	cfg.Identity.Audience = "authenticated"
	cfg.LiveKit.APIKey = "APIserver"
	cfg.LiveKit.APISecret = apiSecret
	cfg.LiveKit.URL = "wss://media.example.com"
	for _, m := range mutate {
		m(cfg)
	}
	require.NoError(t, config.ValidateConfig(cfg))
	prev := config.Config()
	config.SetConfig(cfg)
	t.Cleanup(func() { config.SetConfig(prev) })

	injector := do.New()
	do.ProvideValue(injector, cfg)
	RegisterDI(injector)

	srv, err := do.Invoke[*Server](injector)
	require.NoError(t, err)
	store := do.MustInvoke[db.Store](injector)
	t.Cleanup(func() { store.Close() })

	agents, aerr := agentdef.Apply(context.Background(), store, []*agentdef.Definition{{
		Owner:    "tenant-1",
		Name:     "Reception",
		Voice:    "echo",
		Language: "en-GB",
	}})
	require.Nil(t, aerr)

	ts := httptest.NewServer(srv.Router)
	t.Cleanup(ts.Close)
	return &testServer{cfg: cfg, store: store, http: ts, agent: agents[0]}
}

func accessToken(t *testing.T, sub, email string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"aud":   "authenticated",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return token
}

// newAuthService fakes the hosted auth service's one-time code endpoints.
// Verified codes are exchanged for tokens for sub.
func newAuthService(t *testing.T, sub, code string) *httptest.Server {
	var mu sync.Mutex
	requested := map[string]bool{}
	mux := chi.NewRouter()
	mux.Post("/auth/v1/otp", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requested[gjson.GetBytes(body, "email").String()] = true
		mu.Unlock()
		io.WriteString(w, `{}`)
	})
	mux.Post("/auth/v1/verify", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		email := gjson.GetBytes(body, "email").String()
		mu.Lock()
		ok := requested[email] && gjson.GetBytes(body, "token").String() == code
		mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusForbidden)
			io.WriteString(w, `{"msg":"Token has expired or is invalid"}`)
			return
		}
		out, _ := json.Marshal(map[string]string{"access_token": accessToken(t, sub, email)})
		w.Write(out)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestVersionAndReadiness(t *testing.T) {
	ts := newTestServer(t)

	rsp, err := http.Get(ts.http.URL + "/version")
	require.NoError(t, err)
	defer rsp.Body.Close()
	assert.Equal(t, http.StatusOK, rsp.StatusCode)
	var v GetVersionRsp
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(&v))
	assert.Equal(t, ApiVersion, v.ApiVersion)
	assert.Contains(t, v.ServerVersion, ServerVersion)

	ready, err := http.Get(ts.http.URL + "/ready")
	require.NoError(t, err)
	ready.Body.Close()
	assert.Equal(t, http.StatusOK, ready.StatusCode)

	require.NoError(t, ts.store.Close())
	notReady, err := http.Get(ts.http.URL + "/ready")
	require.NoError(t, err)
	defer notReady.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, notReady.StatusCode)
	body, err := io.ReadAll(notReady.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"database unavailable"}`, string(body))
}

func TestSessionRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	userID := uuid.New().String()

	auth := identity.NewGoTrueClient(newAuthService(t, userID, "424242").URL, "anon", nil)

	c := widget.NewClient(ts.http.URL, ts.agent.ID.String(), nil)
	require.NoError(t, c.RequestOtp(ctx, auth, widget.ChannelEmail, "visitor@example.com"))
	assert.ErrorIs(t, c.VerifyOtp(ctx, auth, "000000"), widget.ErrInvalidOtp)
	assert.Equal(t, widget.AwaitingOtp, c.State())
	require.NoError(t, c.VerifyOtp(ctx, auth, "424242"))

	conn, err := c.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "session-"+conn.SessionID, conn.RoomName)
	assert.Equal(t, "wss://media.example.com", conn.ServerURL)

	claims, gerr := grant.Parse(conn.Token, apiSecret)
	require.Nil(t, gerr)
	assert.Equal(t, userID, claims.Subject)
	assert.Equal(t, "visitor@example.com", claims.Name)
	assert.Equal(t, conn.RoomName, claims.Video.Room)

	session, serr := ts.store.GetSession(ctx, uuid.MustParse(conn.SessionID))
	require.Nil(t, serr)
	assert.Equal(t, models.SessionActive, session.Status)

	require.NoError(t, c.Disconnect(ctx))
	assert.Equal(t, widget.Disconnected, c.State())

	session, serr = ts.store.GetSession(ctx, uuid.MustParse(conn.SessionID))
	require.Nil(t, serr)
	assert.Equal(t, models.SessionEnded, session.Status)
	require.NotNil(t, session.EndedAt)
	assert.False(t, session.EndedAt.Before(session.CreatedAt))

	// reconnecting creates a fresh session
	again, err := c.Connect(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, conn.SessionID, again.SessionID)
}

func TestCredentialsReadPerRequest(t *testing.T) {
	ts := newTestServer(t)
	body := `{"agentId":"` + ts.agent.ID.String() + `"}`
	post := func() *http.Response {
		req, err := http.NewRequest(http.MethodPost, ts.http.URL+"/livekit-token", strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+accessToken(t, "user-1", ""))
		rsp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { rsp.Body.Close() })
		return rsp
	}

	ts.cfg.LiveKit.APISecret = ""
	rsp := post()
	assert.Equal(t, http.StatusInternalServerError, rsp.StatusCode)
	var e map[string]string
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(&e))
	assert.Equal(t, "internal server error", e["error"])

	sessions, err := ts.store.ListSessionsByAgent(context.Background(), ts.agent.ID, 0)
	require.Nil(t, err)
	assert.Empty(t, sessions)

	ts.cfg.LiveKit.APISecret = apiSecret
	assert.Equal(t, http.StatusOK, post().StatusCode)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, func(c *config.ConfigParam) { c.Server.HandleCORS = true })

	req, err := http.NewRequest(http.MethodOptions, ts.http.URL+"/livekit-token", nil)
	require.NoError(t, err)
	rsp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	rsp.Body.Close()
	assert.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Equal(t, "*", rsp.Header.Get("Access-Control-Allow-Origin"))

	req, err = http.NewRequest(http.MethodOptions, ts.http.URL+"/sessions/"+uuid.New().String()+"/end", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization")
	rsp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	rsp.Body.Close()
	assert.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Equal(t, "*", rsp.Header.Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)
	rsp, err := http.Get(ts.http.URL + "/nope")
	require.NoError(t, err)
	rsp.Body.Close()
	assert.Equal(t, http.StatusNotFound, rsp.StatusCode)
}
