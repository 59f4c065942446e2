package widget

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		from  State
		event Event
		want  State
	}{
		{Unauthenticated, OtpRequested, AwaitingOtp},
		{AwaitingOtp, OtpRequested, AwaitingOtp},
		{AwaitingOtp, OtpVerified, Idle},
		{AwaitingOtp, OtpBack, Unauthenticated},
		{Idle, ConnectRequested, Connecting},
		{Connecting, ConnectSucceeded, Connected},
		{Connecting, ConnectFailed, Idle},
		{Connected, DisconnectRequested, Disconnected},
		{Disconnected, ConnectRequested, Connecting},
		{Disconnected, SignedOut, Unauthenticated},
		{Idle, SignedOut, Unauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.event.String(), func(t *testing.T) {
			got, err := Transition(tt.from, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	for _, tt := range []struct {
		from  State
		event Event
	}{
		{Unauthenticated, ConnectRequested},
		{Unauthenticated, OtpVerified},
		{Idle, DisconnectRequested},
		{Connecting, ConnectRequested},
		{Connected, SignedOut},
		{Connected, ConnectRequested},
	} {
		got, err := Transition(tt.from, tt.event)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, tt.from, got)
	}
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "AwaitingOtp", AwaitingOtp.String())
	assert.Equal(t, "State(42)", State(42).String())
	assert.Equal(t, "SignedOut", SignedOut.String())
	assert.Equal(t, "Event(-1)", Event(-1).String())
}

func TestValidateContact(t *testing.T) {
	assert.NoError(t, ValidateContact(ChannelEmail, "a@b.co"))
	assert.Error(t, ValidateContact(ChannelEmail, "ab.co"))
	assert.Error(t, ValidateContact(ChannelEmail, "  "))
	assert.NoError(t, ValidateContact(ChannelPhone, "+15550100123"))
	assert.Error(t, ValidateContact(ChannelPhone, "555-0100"))
	assert.Error(t, ValidateContact(Channel("fax"), "5550100123"))
}

func TestNormalizeCode(t *testing.T) {
	code, err := NormalizeCode(" 123-456 ")
	require.NoError(t, err)
	assert.Equal(t, "123456", code)

	for _, bad := range []string{"12345", "1234567", "abcdef", "", "١٢٣٤٥٦"} {
		_, err := NormalizeCode(bad)
		assert.ErrorIs(t, err, ErrInvalidOtp, bad)
	}
}

type fakeOtp struct {
	token   string
	err     error
	sendErr error
	sent    []string
	channel string
	code    string
}

func (f *fakeOtp) SendOtp(ctx context.Context, channel, contact string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, contact)
	return nil
}

func (f *fakeOtp) VerifyOtp(ctx context.Context, channel, contact, code string) (string, error) {
	f.channel = channel
	f.code = code
	return f.token, f.err
}

type fakeAPI struct {
	server     *httptest.Server
	hold       atomic.Bool
	entered    chan struct{}
	release    chan struct{}
	connects   atomic.Int32
	ends       atomic.Int32
	failEnd    atomic.Bool
	failStatus atomic.Int32
	auth       atomic.Value
}

func newFakeAPI(t *testing.T) *fakeAPI {
	api := &fakeAPI{entered: make(chan struct{}), release: make(chan struct{})}
	r := chi.NewRouter()
	r.Post("/livekit-token", func(w http.ResponseWriter, r *http.Request) {
		api.connects.Add(1)
		if api.hold.Load() {
			api.entered <- struct{}{}
			<-api.release
		}
		api.auth.Store(r.Header.Get("Authorization"))
		if status := api.failStatus.Load(); status != 0 {
			w.WriteHeader(int(status))
			io.WriteString(w, `{"error":"Agent not found"}`)
			return
		}
		io.WriteString(w, `{"token":"t","roomName":"session-s1","sessionId":"s1","serverUrl":"wss://media"}`)
	})
	r.Post("/sessions/{id}/end", func(w http.ResponseWriter, r *http.Request) {
		api.ends.Add(1)
		if api.failEnd.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, `{"sessionId":"`+chi.URLParam(r, "id")+`","status":"ended"}`)
	})
	api.server = httptest.NewServer(r)
	t.Cleanup(api.server.Close)
	return api
}

func signedIn(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	c := NewClient(api.server.URL, "agent-1", nil)
	otp := &fakeOtp{token: "access"}
	require.NoError(t, c.RequestOtp(context.Background(), otp, ChannelEmail, "a@b.co"))
	require.NoError(t, c.VerifyOtp(context.Background(), otp, "123456"))
	require.Equal(t, Idle, c.State())
	return c
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	c := NewClient("http://unused", "agent-1", nil)
	v := &fakeOtp{err: errors.New("expired")}
	assert.Error(t, c.RequestOtp(ctx, v, ChannelEmail, "nope"))
	assert.Empty(t, v.sent)
	assert.Equal(t, Unauthenticated, c.State())

	v.sendErr = errors.New("rate limited")
	assert.ErrorIs(t, c.RequestOtp(ctx, v, ChannelPhone, "5550100123"), ErrOtpNotSent)
	assert.Equal(t, Unauthenticated, c.State())

	v.sendErr = nil
	require.NoError(t, c.RequestOtp(ctx, v, ChannelPhone, " 5550100123 "))
	assert.Equal(t, []string{"5550100123"}, v.sent)
	assert.Equal(t, AwaitingOtp, c.State())

	assert.ErrorIs(t, c.VerifyOtp(context.Background(), v, "12 34 56"), ErrInvalidOtp)
	assert.Equal(t, "123456", v.code)
	assert.Equal(t, "phone", v.channel)
	assert.Equal(t, AwaitingOtp, c.State())

	assert.ErrorIs(t, c.VerifyOtp(context.Background(), v, "123"), ErrInvalidOtp)

	require.NoError(t, c.BackToContact())
	assert.Equal(t, Unauthenticated, c.State())
	assert.ErrorIs(t, c.VerifyOtp(context.Background(), v, "123456"), ErrInvalidTransition)
}

func TestConnectAndDisconnect(t *testing.T) {
	api := newFakeAPI(t)
	c := signedIn(t, api)

	conn, err := c.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s1", conn.SessionID)
	assert.Equal(t, "wss://media", conn.ServerURL)
	assert.Equal(t, Connected, c.State())
	assert.Equal(t, "Bearer access", api.auth.Load())
	assert.Equal(t, conn, c.Connection())

	_, err = c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.ErrorIs(t, c.SignOut(), ErrInvalidTransition)

	require.NoError(t, c.Disconnect(context.Background()))
	assert.Equal(t, Disconnected, c.State())
	assert.Nil(t, c.Connection())
	assert.Equal(t, int32(1), api.ends.Load())

	assert.ErrorIs(t, c.Disconnect(context.Background()), ErrNoConnection)
	require.NoError(t, c.SignOut())
	assert.Equal(t, Unauthenticated, c.State())
}

func TestConnectFailureReturnsToIdle(t *testing.T) {
	api := newFakeAPI(t)
	api.failStatus.Store(http.StatusNotFound)
	c := signedIn(t, api)

	_, err := c.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnect)
	assert.Equal(t, Idle, c.State())
	assert.Nil(t, c.Connection())

	api.failStatus.Store(0)
	_, err = c.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), api.connects.Load())
}

func TestStateIsReadableDuringConnect(t *testing.T) {
	api := newFakeAPI(t)
	api.hold.Store(true)
	var once sync.Once
	t.Cleanup(func() { once.Do(func() { close(api.release) }) })
	c := signedIn(t, api)

	done := make(chan error, 1)
	go func() {
		_, err := c.Connect(context.Background())
		done <- err
	}()
	<-api.entered

	assert.Equal(t, Connecting, c.State())
	assert.Nil(t, c.Connection())
	assert.ErrorIs(t, c.SignOut(), ErrInvalidTransition)
	_, err := c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	once.Do(func() { close(api.release) })
	require.NoError(t, <-done)
	assert.Equal(t, Connected, c.State())
	assert.Equal(t, int32(1), api.connects.Load())
}

func TestDisconnectIgnoresTeardownFailure(t *testing.T) {
	api := newFakeAPI(t)
	api.failEnd.Store(true)
	c := signedIn(t, api)

	_, err := c.Connect(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Disconnect(context.Background()))
	assert.Equal(t, Disconnected, c.State())
	assert.Equal(t, int32(1), api.ends.Load())
}
