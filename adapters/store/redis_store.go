package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/layer-3/tollgate/core"
)

// RedisStore is a Redis implementation of the SessionStore interface.
// Sessions live under prefix+"session:"+token; a sorted set at prefix+"expiry"
// indexes them by expiry time in microseconds.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis store. The client is owned by the caller.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "tollgate:",
	}
}

// Create stores a session unless its token is already taken
func (s *RedisStore) Create(ctx context.Context, session core.Session) error {
	value, err := encodeSession(session)
	if err != nil {
		return err
	}

	// Redis reclaims the key on its own once the session lifetime has passed
	ok, err := s.client.SetNX(ctx, s.sessionKey(session.Token), value, session.TTL()).Result()
	if err != nil {
		return unavailable("create", err)
	}
	if !ok {
		return core.ErrTokenExists
	}

	err = s.client.ZAdd(ctx, s.expiryKey(), redis.Z{
		Score:  float64(ceilMicro(session.ExpiresAt)),
		Member: session.Token,
	}).Err()
	if err != nil {
		return unavailable("index", err)
	}

	return nil
}

// Get returns the session stored for a token
func (s *RedisStore) Get(ctx context.Context, token string) (core.Session, error) {
	value, err := s.client.Get(ctx, s.sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return core.Session{}, core.ErrTokenNotFound
		}
		return core.Session{}, unavailable("get", err)
	}

	return decodeSession(token, value)
}

// Delete removes a session and its expiry index entry in one transaction
func (s *RedisStore) Delete(ctx context.Context, token string) (core.Session, error) {
	key := s.sessionKey(token)

	var (
		get *redis.StringCmd
		del *redis.IntCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, key)
		del = pipe.Del(ctx, key)
		pipe.ZRem(ctx, s.expiryKey(), token)
		return nil
	})
	// a missing key surfaces as redis.Nil from the GET
	if err != nil && !errors.Is(err, redis.Nil) {
		return core.Session{}, unavailable("delete", err)
	}
	if del.Val() == 0 {
		return core.Session{}, core.ErrTokenNotFound
	}

	session, err := decodeSession(token, []byte(get.Val()))
	if err != nil {
		return core.Session{Token: token}, nil
	}

	return session, nil
}

// ListExpired returns the indexed tokens expiring at or before now
func (s *RedisStore) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	tokens, err := s.client.ZRangeByScore(ctx, s.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMicro(), 10),
	}).Result()
	if err != nil {
		return nil, unavailable("list expired", err)
	}

	return tokens, nil
}

// Close is a no-op, the client is shared and closed by its owner
func (s *RedisStore) Close() error {
	return nil
}

func (s *RedisStore) sessionKey(token string) string {
	return s.prefix + "session:" + token
}

func (s *RedisStore) expiryKey() string {
	return s.prefix + "expiry"
}

// ceilMicro rounds up so an index score never claims expiry before the session does
func ceilMicro(t time.Time) int64 {
	us := t.UnixMicro()
	if t.Sub(time.UnixMicro(us)) > 0 {
		us++
	}
	return us
}
