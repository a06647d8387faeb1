// Package pkce generates the verifier/challenge pairs and state nonces used by
// the authorization code flow with Proof Key for Code Exchange (RFC 7636).
package pkce

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/oauth2"

	"github.com/desertthunder/spotsync/internal/shared"
)

const (
	// VerifierBytes is the amount of entropy drawn for a verifier.
	// 64 bytes encode to 86 characters, inside RFC 7636's 43..128 range.
	VerifierBytes = 64
	// StateBytes is the amount of entropy drawn for a CSRF state nonce.
	StateBytes = 32
	// Method is the only challenge method we send.
	Method = "S256"
)

// Pair is a single-use verifier and its derived challenge.
type Pair struct {
	Verifier  string
	Challenge string
}

// Generate draws a new pair from crypto/rand.
func Generate() (Pair, error) {
	return GenerateFrom(rand.Reader)
}

// GenerateFrom draws a new pair from r. Read failures are never papered over
// with a weaker source.
func GenerateFrom(r io.Reader) (Pair, error) {
	verifier, err := randomString(r, VerifierBytes)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Verifier: verifier, Challenge: Challenge(verifier)}, nil
}

// Challenge returns base64url-nopad(SHA-256(verifier)).
func Challenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// NewState returns a random nonce for the authorization request's state parameter.
func NewState() (string, error) {
	return NewStateFrom(rand.Reader)
}

// NewStateFrom is [NewState] with an explicit entropy source.
func NewStateFrom(r io.Reader) (string, error) {
	return randomString(r, StateBytes)
}

func randomString(r io.Reader, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrEntropySourceUnavailable, err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
