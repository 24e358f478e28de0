package store

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	lverrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/layer-3/tollgate/core"
)

const (
	sessionPrefix = "s/"
	expiryPrefix  = "x/"
)

// LevelDBStore is an embedded SessionStore backed by LevelDB.
//
// Layout:
//
//	s/<token>                       -> JSON {subject, issued_at, expires_at}
//	x/<expires_at unix nanos><token> -> empty, ordered by expiry for ListExpired
type LevelDBStore struct {
	db *leveldb.DB

	// serialises the existence check and write in Create
	createMu sync.Mutex
}

// NewLevelDBStore opens (or creates) a store in the given directory.
// A corrupted manifest is recovered once before giving up.
func NewLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if lverrors.IsCorrupted(err) {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, unavailable("open", err)
	}

	return &LevelDBStore{db: db}, nil
}

// NewMemLevelDBStore opens a LevelDB store on memory-backed storage
func NewMemLevelDBStore() (*LevelDBStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, unavailable("open", err)
	}

	return &LevelDBStore{db: db}, nil
}

// Create stores a session unless its token is already taken
func (s *LevelDBStore) Create(ctx context.Context, session core.Session) error {
	value, err := encodeSession(session)
	if err != nil {
		return err
	}

	key := sessionKey(session.Token)
	batch := new(leveldb.Batch)
	batch.Put(key, value)
	batch.Put(expiryKey(session.ExpiresAt, session.Token), nil)

	s.createMu.Lock()
	defer s.createMu.Unlock()

	exists, err := s.db.Has(key, nil)
	if err != nil {
		return unavailable("create", err)
	}
	if exists {
		return core.ErrTokenExists
	}

	if err := s.db.Write(batch, nil); err != nil {
		return unavailable("create", err)
	}

	return nil
}

// Get returns the session stored for a token
func (s *LevelDBStore) Get(ctx context.Context, token string) (core.Session, error) {
	value, err := s.db.Get(sessionKey(token), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return core.Session{}, core.ErrTokenNotFound
		}
		return core.Session{}, unavailable("get", err)
	}

	return decodeSession(token, value)
}

// Delete removes a session together with its expiry index entry
func (s *LevelDBStore) Delete(ctx context.Context, token string) (core.Session, error) {
	key := sessionKey(token)

	value, err := s.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return core.Session{}, core.ErrTokenNotFound
		}
		return core.Session{}, unavailable("delete", err)
	}

	batch := new(leveldb.Batch)
	batch.Delete(key)

	// A corrupt record still gets removed; its index entry is left for the next sweep
	session, err := decodeSession(token, value)
	if err == nil {
		batch.Delete(expiryKey(session.ExpiresAt, token))
	} else {
		session = core.Session{Token: token}
	}

	if err := s.db.Write(batch, nil); err != nil {
		return core.Session{}, unavailable("delete", err)
	}

	return session, nil
}

// ListExpired scans the expiry index of a snapshot up to and including now
func (s *LevelDBStore) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, unavailable("snapshot", err)
	}
	defer snap.Release()

	iter := snap.NewIterator(&util.Range{
		Start: []byte(expiryPrefix),
		Limit: expiryBound(now),
	}, nil)
	defer iter.Release()

	var tokens []string
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := iter.Key()
		if len(key) <= len(expiryPrefix)+8 {
			continue
		}
		tokens = append(tokens, string(key[len(expiryPrefix)+8:]))
	}
	if err := iter.Error(); err != nil {
		return nil, unavailable("list expired", err)
	}

	return tokens, nil
}

// Close closes the database
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

func sessionKey(token string) []byte {
	return []byte(sessionPrefix + token)
}

func expiryKey(expiresAt time.Time, token string) []byte {
	key := make([]byte, 0, len(expiryPrefix)+8+len(token))
	key = append(key, expiryPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(expiresAt.UnixNano()))
	return append(key, token...)
}

// expiryBound is the exclusive upper key for sessions expiring at or before now
func expiryBound(now time.Time) []byte {
	key := make([]byte, 0, len(expiryPrefix)+8)
	key = append(key, expiryPrefix...)
	return binary.BigEndian.AppendUint64(key, uint64(now.UnixNano())+1)
}
