package tokenizer

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/layer-3/tollgate/ports"
)

// DefaultTokenBytes is the amount of entropy in a generated token (256 bits)
const DefaultTokenBytes = 32

// RandomTokenizer generates opaque tokens from a cryptographic random source
type RandomTokenizer struct {
	size   int
	source io.Reader
}

// NewRandomTokenizer creates a tokenizer producing tokens of size random bytes.
// A size below 16 falls back to DefaultTokenBytes.
func NewRandomTokenizer(size int) ports.TokenGenerator {
	if size < 16 {
		size = DefaultTokenBytes
	}
	return &RandomTokenizer{size: size, source: rand.Reader}
}

// NewToken returns a new base64url encoded token
func (t *RandomTokenizer) NewToken() (string, error) {
	b := make([]byte, t.size)
	if _, err := io.ReadFull(t.source, b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
