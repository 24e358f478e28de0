package credentials

import (
	"context"
	"crypto/subtle"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/ports"
)

// StaticVerifier checks credentials against a fixed username to password map
type StaticVerifier struct {
	users map[string]string
}

// NewStaticVerifier creates a verifier from a username to password map
func NewStaticVerifier(users map[string]string) ports.CredentialVerifier {
	copied := make(map[string]string, len(users))
	for u, p := range users {
		copied[u] = p
	}
	return &StaticVerifier{users: copied}
}

// Verify compares the password in constant time
func (v *StaticVerifier) Verify(ctx context.Context, username, password string) error {
	want, ok := v.users[username]
	if !ok || username == "" {
		return core.ErrInvalidCredentials
	}

	if subtle.ConstantTimeCompare([]byte(want), []byte(password)) != 1 {
		return core.ErrInvalidCredentials
	}

	return nil
}
