package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// storageTable is the field registry for the generic key/value table.
var storageTable = NewTable("storage", "key", "key", "value")

// jsonNull is what a stored SQL-level JSON null decodes to.
var jsonNull = []byte("null")

// Storage is the generic key/value store: string keys mapped to
// JSON-encoded values.
type Storage struct {
	db Querier
}

// NewStorage returns a Storage bound to db (pool or transaction).
func NewStorage(db Querier) *Storage {
	return &Storage{db: db}
}

// Get decodes the value stored under key into out. It reports false when
// the key is absent or holds a JSON null.
func (s *Storage) Get(ctx context.Context, key string, out any) (bool, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, "SELECT value FROM storage WHERE key = $1", key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage get %q: %w", key, err)
	}
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("storage decode %q: %w", key, err)
	}
	return true, nil
}

// Set JSON-encodes value and upserts it under key.
func (s *Storage) Set(ctx context.Context, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage encode %q: %w", key, err)
	}
	return storageTable.Upsert(ctx, s.db, map[string]any{
		"key":   key,
		"value": encoded,
	}, "key = ?", key)
}

// Rm deletes key.
func (s *Storage) Rm(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, "DELETE FROM storage WHERE key = $1", key); err != nil {
		return fmt.Errorf("storage rm %q: %w", key, err)
	}
	return nil
}

// Key is a per-request wrapper around one storage key. The first Get caches
// the raw value for the lifetime of the wrapper; Set and Rm clear the
// cache. Wrappers are request-scoped objects, never shared across
// requests, so cross-request staleness cannot occur.
type Key struct {
	storage *Storage
	key     string

	cached json.RawMessage
	loaded bool
}

// Key returns a wrapper for the given key.
func (s *Storage) Key(key string) *Key {
	return &Key{storage: s, key: key}
}

// ComposeKey derives the draft key for a conversation. A nil thrid keys the
// draft of a brand-new thread.
func (s *Storage) ComposeKey(thrid *int64) *Key {
	if thrid == nil {
		return s.Key("compose:new")
	}
	return s.Key(fmt.Sprintf("compose:%d", *thrid))
}

// FolderKey derives the key tracking sync state for one folder.
func (s *Storage) FolderKey(uid string) *Key {
	return s.Key("folder:" + uid)
}

// Get decodes the key's value into out, hitting the store only on the
// first call.
func (k *Key) Get(ctx context.Context, out any) (bool, error) {
	if !k.loaded {
		var raw json.RawMessage
		ok, err := k.storage.Get(ctx, k.key, &raw)
		if err != nil {
			return false, err
		}
		if ok {
			k.cached = raw
		}
		k.loaded = true
	}
	if k.cached == nil {
		return false, nil
	}
	if err := json.Unmarshal(k.cached, out); err != nil {
		return false, fmt.Errorf("storage decode %q: %w", k.key, err)
	}
	return true, nil
}

// Set writes the value and invalidates the cache.
func (k *Key) Set(ctx context.Context, value any) error {
	k.cached = nil
	k.loaded = false
	return k.storage.Set(ctx, k.key, value)
}

// Rm deletes the value and invalidates the cache.
func (k *Key) Rm(ctx context.Context) error {
	k.cached = nil
	k.loaded = false
	return k.storage.Rm(ctx, k.key)
}
