package api

import (
	"crypto/rand"
	"math/big"
	"regexp"

	"github.com/google/uuid"
)

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	callIDPrefix = "call_"
)

var callIDPattern = regexp.MustCompile(`^call_[a-zA-Z0-9]{24}$`)

// NewSessionID returns a random UUID identifying a chat session.
func NewSessionID() string {
	return uuid.NewString()
}

// ValidateSessionID reports whether id is a well-formed session id.
func ValidateSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// NewCallID generates a tool call ID with the "call_" prefix followed by
// 24 cryptographically random alphanumeric characters. Used when a backend
// returns a tool call without an id.
func NewCallID() string {
	return callIDPrefix + randomAlphanumeric(idLength)
}

// ValidateCallID checks whether the given string was produced by NewCallID.
func ValidateCallID(id string) bool {
	return callIDPattern.MatchString(id)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
