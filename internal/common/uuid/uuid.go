// Package uuid wraps github.com/google/uuid. Identifiers minted here are
// random (version 4) so they cannot be guessed from one another.
package uuid

import "github.com/google/uuid"

type UUID = uuid.UUID

var Nil = uuid.Nil

// NewRandom returns a version 4 UUID.
func NewRandom() (UUID, error) {
	return uuid.NewRandom()
}

// New returns a version 4 UUID and panics if the random source fails.
func New() UUID {
	return uuid.Must(uuid.NewRandom())
}

func Parse(s string) (UUID, error) {
	return uuid.Parse(s)
}

func MustParse(s string) UUID {
	return uuid.MustParse(s)
}

// IsValid reports whether s is a canonical hyphenated UUID.
func IsValid(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
