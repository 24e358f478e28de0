package ports

// TokenGenerator produces opaque session tokens
type TokenGenerator interface {
	NewToken() (string, error)
}
