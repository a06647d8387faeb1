package pkce

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/desertthunder/spotsync/internal/shared"
)

const unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

func TestGenerate(t *testing.T) {
	t.Run("Verifier Shape", func(t *testing.T) {
		pair, err := Generate()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if n := len(pair.Verifier); n < 43 || n > 128 {
			t.Errorf("verifier length %d outside 43..128", n)
		}
		for _, c := range pair.Verifier {
			if !strings.ContainsRune(unreserved, c) {
				t.Fatalf("verifier contains reserved character %q", c)
			}
		}
	})

	t.Run("Challenge Matches Verifier", func(t *testing.T) {
		for range 20 {
			pair, err := Generate()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			sum := sha256.Sum256([]byte(pair.Verifier))
			want := base64.RawURLEncoding.EncodeToString(sum[:])
			if pair.Challenge != want {
				t.Fatalf("challenge %q, want %q", pair.Challenge, want)
			}
			if strings.Contains(pair.Challenge, "=") {
				t.Fatalf("challenge must not be padded: %q", pair.Challenge)
			}
		}
	})

	t.Run("Known Vector", func(t *testing.T) {
		// RFC 7636 appendix B
		got := Challenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk")
		if got != "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM" {
			t.Errorf("unexpected challenge %q", got)
		}
	})

	t.Run("Deterministic Source", func(t *testing.T) {
		src := bytes.Repeat([]byte{0xff}, VerifierBytes)
		pair, err := GenerateFrom(bytes.NewReader(src))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if pair.Verifier != base64.RawURLEncoding.EncodeToString(src) {
			t.Errorf("verifier not derived from source bytes: %q", pair.Verifier)
		}
	})

	t.Run("Unique Pairs", func(t *testing.T) {
		a, _ := Generate()
		b, _ := Generate()
		if a.Verifier == b.Verifier {
			t.Error("expected distinct verifiers")
		}
	})

	t.Run("Entropy Failure", func(t *testing.T) {
		_, err := GenerateFrom(iotest.ErrReader(errors.New("device gone")))
		if !errors.Is(err, shared.ErrEntropySourceUnavailable) {
			t.Errorf("expected ErrEntropySourceUnavailable, got %v", err)
		}
	})

	t.Run("Short Read", func(t *testing.T) {
		_, err := GenerateFrom(bytes.NewReader(make([]byte, 10)))
		if !errors.Is(err, shared.ErrEntropySourceUnavailable) {
			t.Errorf("expected ErrEntropySourceUnavailable, got %v", err)
		}
	})
}

func TestNewState(t *testing.T) {
	t.Run("Random", func(t *testing.T) {
		a, err := NewState()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		b, _ := NewState()
		if a == "" || a == b {
			t.Errorf("expected distinct non-empty nonces, got %q and %q", a, b)
		}
	})

	t.Run("Entropy Failure", func(t *testing.T) {
		_, err := NewStateFrom(iotest.ErrReader(errors.New("nope")))
		if !errors.Is(err, shared.ErrEntropySourceUnavailable) {
			t.Errorf("expected ErrEntropySourceUnavailable, got %v", err)
		}
	})
}
