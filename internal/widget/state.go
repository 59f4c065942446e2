// Package widget is the end-user side of a voice session: sign-in by
// one-time password, then connect and disconnect against the voicedesk API.
package widget

import (
	"fmt"
	"net/http"

	"github.com/voicedesk/voicedesk/internal/common/apperrors"
)

type State int

const (
	Unauthenticated State = iota
	AwaitingOtp
	Idle
	Connecting
	Connected
	Disconnected
)

var stateNames = [...]string{"Unauthenticated", "AwaitingOtp", "Idle", "Connecting", "Connected", "Disconnected"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

type Event int

const (
	OtpRequested Event = iota
	OtpVerified
	OtpBack
	ConnectRequested
	ConnectSucceeded
	ConnectFailed
	DisconnectRequested
	SignedOut
)

var eventNames = [...]string{"OtpRequested", "OtpVerified", "OtpBack", "ConnectRequested", "ConnectSucceeded", "ConnectFailed", "DisconnectRequested", "SignedOut"}

func (e Event) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return fmt.Sprintf("Event(%d)", int(e))
	}
	return eventNames[e]
}

var (
	ErrWidget            apperrors.Error = apperrors.New("widget error").SetStatusCode(http.StatusBadRequest)
	ErrInvalidTransition apperrors.Error = ErrWidget.New("invalid transition")
)

type transitionKey struct {
	from  State
	event Event
}

var transitions = map[transitionKey]State{
	{Unauthenticated, OtpRequested}: AwaitingOtp,
	{AwaitingOtp, OtpRequested}:     AwaitingOtp,
	{AwaitingOtp, OtpVerified}:      Idle,
	{AwaitingOtp, OtpBack}:          Unauthenticated,

	{Idle, ConnectRequested}:         Connecting,
	{Disconnected, ConnectRequested}: Connecting,
	{Connecting, ConnectSucceeded}:   Connected,
	{Connecting, ConnectFailed}:      Idle,
	{Connected, DisconnectRequested}: Disconnected,

	{Idle, SignedOut}:         Unauthenticated,
	{Disconnected, SignedOut}: Unauthenticated,
}

// Transition returns the state reached from s on e. A connected session
// must be disconnected before signing out.
func Transition(s State, e Event) (State, error) {
	next, ok := transitions[transitionKey{s, e}]
	if !ok {
		return s, ErrInvalidTransition.Msg(fmt.Sprintf("%s does not accept %s", s, e))
	}
	return next, nil
}
