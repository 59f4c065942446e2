package widget

import (
	"strings"
	"unicode"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPhone Channel = "phone"
)

const (
	minPhoneLength = 10
	otpLength      = 6
)

var (
	ErrInvalidContact = ErrWidget.New("invalid contact")
	ErrInvalidOtp     = ErrWidget.New("Please enter the complete verification code")
)

// ValidateContact checks the address a code will be sent to.
func ValidateContact(ch Channel, contact string) error {
	contact = strings.TrimSpace(contact)
	switch ch {
	case ChannelEmail:
		if contact == "" || !strings.Contains(contact, "@") {
			return ErrInvalidContact.Msg("Please enter a valid email address")
		}
	case ChannelPhone:
		if len(contact) < minPhoneLength {
			return ErrInvalidContact.Msg("Please enter a valid phone number")
		}
	default:
		return ErrInvalidContact.Msg("unsupported channel " + string(ch))
	}
	return nil
}

// NormalizeCode strips everything but digits from code and requires exactly
// six to remain.
func NormalizeCode(code string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			return r
		}
		return -1
	}, code)
	if len(digits) != otpLength {
		return "", ErrInvalidOtp
	}
	return digits, nil
}
