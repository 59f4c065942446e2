package widget

import (
	"context"
	"net/http"
	"strings"
	"sync"

	jsonitor "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/voicedesk/voicedesk/internal/bootstrap"
	"github.com/voicedesk/voicedesk/internal/common/httpclient"
)

var json = jsonitor.ConfigCompatibleWithStandardLibrary

var (
	ErrConnect      = ErrWidget.New("Failed to connect")
	ErrNoConnection = ErrWidget.New("not connected")
	ErrOtpNotSent   = ErrWidget.New("Failed to send code")
)

// OtpSender asks the hosted auth service to deliver a one-time code.
// *identity.GoTrueClient implements it.
type OtpSender interface {
	SendOtp(ctx context.Context, channel, contact string) error
}

// OtpVerifier exchanges a one-time code for an access token with the
// hosted auth service. *identity.GoTrueClient implements it.
type OtpVerifier interface {
	VerifyOtp(ctx context.Context, channel, contact, code string) (accessToken string, err error)
}

// Connection is what a successful connect hands to the media client.
type Connection = bootstrap.Response

// Client drives one widget for one agent. It is safe for concurrent use.
// Network calls run without holding the lock; the state machine rejects
// operations that arrive while a call is in flight.
type Client struct {
	api     *httpclient.Client
	agentID string

	mu          sync.Mutex
	state       State
	channel     Channel
	contact     string
	accessToken string
	conn        *Connection
}

func NewClient(baseURL, agentID string, hc *http.Client) *Client {
	return &Client{
		api:     httpclient.New(baseURL, hc),
		agentID: agentID,
		state:   Unauthenticated,
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connection returns the current connection, or nil when not connected.
func (c *Client) Connection() *Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	conn := *c.conn
	return &conn
}

// check reports whether e is accepted in the current state without
// applying it.
func (c *Client) check(e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := Transition(c.state, e)
	return err
}

func (c *Client) apply(e Event) error {
	next, err := Transition(c.state, e)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// RequestOtp has the code sent to contact and waits for it. It may be
// called again while awaiting a code to resend.
func (c *Client) RequestOtp(ctx context.Context, sender OtpSender, ch Channel, contact string) error {
	if err := ValidateContact(ch, contact); err != nil {
		return err
	}
	contact = strings.TrimSpace(contact)
	if err := c.check(OtpRequested); err != nil {
		return err
	}
	if err := sender.SendOtp(ctx, string(ch), contact); err != nil {
		return ErrOtpNotSent.Err(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.apply(OtpRequested); err != nil {
		return err
	}
	c.channel = ch
	c.contact = contact
	return nil
}

// BackToContact abandons the pending code.
func (c *Client) BackToContact() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apply(OtpBack)
}

// VerifyOtp checks the code with v and, on success, keeps the access token
// for later API calls.
func (c *Client) VerifyOtp(ctx context.Context, v OtpVerifier, code string) error {
	digits, err := NormalizeCode(code)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if _, err := Transition(c.state, OtpVerified); err != nil {
		c.mu.Unlock()
		return err
	}
	ch, contact := c.channel, c.contact
	c.mu.Unlock()

	token, err := v.VerifyOtp(ctx, string(ch), contact, digits)
	if err != nil {
		return ErrInvalidOtp.Err(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.contact != contact {
		return ErrInvalidTransition.Msg("contact changed while verifying")
	}
	if err := c.apply(OtpVerified); err != nil {
		return err
	}
	c.accessToken = token
	return nil
}

// Connect bootstraps a session for the agent. The widget is Connecting
// while the request is in flight. On failure it returns to Idle and the
// caller may try again.
func (c *Client) Connect(ctx context.Context) (*Connection, error) {
	c.mu.Lock()
	if err := c.apply(ConnectRequested); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	headers := c.authHeaders()
	c.mu.Unlock()

	conn, err := c.bootstrap(ctx, headers)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		_ = c.apply(ConnectFailed)
		return nil, err
	}
	if err := c.apply(ConnectSucceeded); err != nil {
		return nil, err
	}
	c.conn = conn
	out := *conn
	return &out, nil
}

func (c *Client) bootstrap(ctx context.Context, headers map[string]string) (*Connection, error) {
	body, err := json.Marshal(bootstrap.Request{AgentID: c.agentID})
	if err != nil {
		return nil, ErrConnect.Err(err)
	}
	rsp, err := c.api.DoRequest(ctx, httpclient.RequestOptions{
		Method:  http.MethodPost,
		Path:    "/livekit-token",
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("agent_id", c.agentID).Msg("connect failed")
		return nil, ErrConnect.Err(err)
	}
	var conn Connection
	if err := json.Unmarshal(rsp, &conn); err != nil || conn.Token == "" || conn.SessionID == "" {
		return nil, ErrConnect.Msg("unexpected connect response")
	}
	return &conn, nil
}

// Disconnect ends the session. Failing to record the end is logged and
// otherwise ignored; the widget is Disconnected either way.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Connected || c.conn == nil {
		c.mu.Unlock()
		return ErrNoConnection
	}
	if err := c.apply(DisconnectRequested); err != nil {
		c.mu.Unlock()
		return err
	}
	sessionID := c.conn.SessionID
	headers := c.authHeaders()
	c.conn = nil
	c.mu.Unlock()

	_, err := c.api.DoRequest(ctx, httpclient.RequestOptions{
		Method:  http.MethodPost,
		Path:    "/sessions/" + sessionID + "/end",
		Headers: headers,
	})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("session_id", sessionID).Msg("failed to record session end")
	}
	return nil
}

func (c *Client) SignOut() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.apply(SignedOut); err != nil {
		return err
	}
	c.accessToken = ""
	c.contact = ""
	c.channel = ""
	return nil
}

func (c *Client) authHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.accessToken}
}
