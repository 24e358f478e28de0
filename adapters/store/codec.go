package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/layer-3/tollgate/core"
)

// record is the stored form of a session; the token itself is the key
type record struct {
	Subject   string    `json:"subject"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func encodeSession(s core.Session) ([]byte, error) {
	payload, err := json.Marshal(record{
		Subject:   s.Subject,
		IssuedAt:  s.IssuedAt.UTC(),
		ExpiresAt: s.ExpiresAt.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return payload, nil
}

func decodeSession(token string, payload []byte) (core.Session, error) {
	var r record
	if err := json.Unmarshal(payload, &r); err != nil {
		return core.Session{}, fmt.Errorf("%w: corrupt session record: %v", core.ErrStoreUnavailable, err)
	}
	return core.Session{
		Token:     token,
		Subject:   r.Subject,
		IssuedAt:  r.IssuedAt,
		ExpiresAt: r.ExpiresAt,
	}, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", core.ErrStoreUnavailable, op, err)
}
