package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	jsonitor "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/voicedesk/voicedesk/internal/common/apperrors"
	"github.com/voicedesk/voicedesk/internal/common/httpclient"
)

var json = jsonitor.ConfigCompatibleWithStandardLibrary

// GoTrueClient talks to the hosted auth service. GetUser asks its user
// endpoint who a token belongs to; revoked or expired tokens are rejected
// by the service itself. SendOtp and VerifyOtp run the one-time code
// sign-in.
type GoTrueClient struct {
	client *httpclient.Client
}

func NewGoTrueClient(baseURL, anonKey string, hc *http.Client) *GoTrueClient {
	c := httpclient.New(baseURL, hc)
	c.Headers["apikey"] = anonKey
	return &GoTrueClient{client: c}
}

func (g *GoTrueClient) GetUser(ctx context.Context, token string) (*User, apperrors.Error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	body, err := g.client.DoRequest(ctx, httpclient.RequestOptions{
		Method:  http.MethodGet,
		Path:    "/auth/v1/user",
		Headers: map[string]string{"Authorization": "Bearer " + token},
	})
	if err != nil {
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode < http.StatusInternalServerError {
			log.Ctx(ctx).Debug().Int("status", httpErr.StatusCode).Str("reason", httpErr.Message).Msg("token rejected by identity provider")
			return nil, ErrInvalidToken.Err(err)
		}
		log.Ctx(ctx).Error().Err(err).Msg("identity provider request failed")
		return nil, ErrProviderFailure.Err(err)
	}

	if !gjson.ValidBytes(body) {
		return nil, ErrProviderFailure.Msg("malformed user response")
	}
	result := gjson.ParseBytes(body)
	user := &User{
		ID:    result.Get("id").String(),
		Email: result.Get("email").String(),
		Phone: result.Get("phone").String(),
	}
	if user.ID == "" {
		return nil, ErrIncompleteClaims
	}
	return user, nil
}

// One-time code channels accepted by SendOtp and VerifyOtp.
const (
	OtpChannelEmail = "email"
	OtpChannelPhone = "phone"
)

var (
	ErrOtp         apperrors.Error = apperrors.New("one-time code error").SetStatusCode(http.StatusBadRequest)
	ErrOtpChannel  apperrors.Error = ErrOtp.New("unsupported one-time code channel")
	ErrOtpRejected apperrors.Error = ErrOtp.New("invalid or expired code")
	ErrOtpFailure  apperrors.Error = ErrOtp.New("unable to reach identity provider").SetStatusCode(http.StatusBadGateway)
)

// SendOtp asks the auth service to deliver a one-time code to contact.
// Unknown contacts are signed up on first use.
func (g *GoTrueClient) SendOtp(ctx context.Context, channel, contact string) error {
	field, err := otpField(channel)
	if err != nil {
		return err
	}
	body, jerr := json.Marshal(map[string]any{field: contact, "create_user": true})
	if jerr != nil {
		return ErrOtpFailure.Err(jerr)
	}
	if _, rerr := g.client.DoRequest(ctx, httpclient.RequestOptions{
		Method: http.MethodPost,
		Path:   "/auth/v1/otp",
		Body:   body,
	}); rerr != nil {
		return otpError(ctx, rerr, "one-time code request failed")
	}
	return nil
}

// VerifyOtp exchanges a one-time code for an access token.
func (g *GoTrueClient) VerifyOtp(ctx context.Context, channel, contact, code string) (string, error) {
	field, err := otpField(channel)
	if err != nil {
		return "", err
	}
	verifyType := OtpChannelEmail
	if channel == OtpChannelPhone {
		verifyType = "sms"
	}
	body, jerr := json.Marshal(map[string]any{field: contact, "token": code, "type": verifyType})
	if jerr != nil {
		return "", ErrOtpFailure.Err(jerr)
	}
	rsp, rerr := g.client.DoRequest(ctx, httpclient.RequestOptions{
		Method: http.MethodPost,
		Path:   "/auth/v1/verify",
		Body:   body,
	})
	if rerr != nil {
		return "", otpError(ctx, rerr, "one-time code verification failed")
	}
	token := gjson.GetBytes(rsp, "access_token")
	if token.Type != gjson.String || token.Str == "" {
		return "", ErrOtpFailure.Msg("verify response carries no access token")
	}
	return token.Str, nil
}

func otpField(channel string) (string, error) {
	switch channel {
	case OtpChannelEmail:
		return "email", nil
	case OtpChannelPhone:
		return "phone", nil
	}
	return "", ErrOtpChannel.Msg(fmt.Sprintf("unsupported one-time code channel %q", channel))
}

func otpError(ctx context.Context, err error, msg string) error {
	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode < http.StatusInternalServerError {
		log.Ctx(ctx).Debug().Int("status", httpErr.StatusCode).Str("reason", httpErr.Message).Msg(msg)
		return ErrOtpRejected.Err(err)
	}
	log.Ctx(ctx).Error().Err(err).Msg(msg)
	return ErrOtpFailure.Err(err)
}
