package ports

import "context"

// CredentialVerifier checks a username and password pair.
// It returns core.ErrInvalidCredentials when they do not match.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) error
}
