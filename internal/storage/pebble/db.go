// Package pebblestore wraps a Pebble database for the collector's durable
// state: per-stream watermarks and the reference-data cache. One database
// serves the whole process; callers carve out their own key prefixes.
package pebblestore

import (
	"errors"
	"time"

	"github.com/cockroachdb/pebble"
)

// Options configures the store.
type Options struct {
	// DataDir is the Pebble database directory.
	DataDir string
	// SyncWrites forces a WAL fsync on every Set. Checkpoint durability
	// depends on this; leave it on unless throughput demands otherwise.
	SyncWrites bool
	// WALSyncInterval enables group commit when SyncWrites is off.
	WALSyncInterval time.Duration
}

// DB is a thin durability-policy wrapper around Pebble.
type DB struct {
	inner     *pebble.DB
	writeSync bool
}

// Open creates or opens the database directory.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebblestore: Options.DataDir is required")
	}

	po := &pebble.Options{}
	if !opts.SyncWrites {
		interval := opts.WALSyncInterval
		if interval <= 0 {
			interval = 5 * time.Millisecond
		}
		po.WALMinSyncInterval = func() time.Duration { return interval }
	}

	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}
	return &DB{inner: inner, writeSync: opts.SyncWrites}, nil
}

// Close closes the database.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

// Set writes a key with the configured durability policy. When SyncWrites is
// on, the write has reached stable storage before Set returns.
func (db *DB) Set(key, value []byte) error {
	return db.inner.Set(key, value, db.writeOpts())
}

func (db *DB) writeOpts() *pebble.WriteOptions {
	if db.writeSync {
		return pebble.Sync
	}
	return pebble.NoSync
}

// Get copies the value for key. ok is false when the key does not exist.
func (db *DB) Get(key []byte) (value []byte, ok bool, err error) {
	val, closer, err := db.inner.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer func() {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return append([]byte(nil), val...), true, nil
}

// Delete removes a key; deleting a missing key is not an error.
func (db *DB) Delete(key []byte) error {
	return db.inner.Delete(key, db.writeOpts())
}

// ListPrefix returns every key/value pair under the prefix, with the prefix
// stripped from the returned keys. Used by operator tooling.
func (db *DB) ListPrefix(prefix []byte) (map[string][]byte, error) {
	upper := append(append([]byte(nil), prefix...), 0xff)
	iter, err := db.inner.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upper,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = iter.Close() }()

	out := map[string][]byte{}
	for iter.First(); iter.Valid(); iter.Next() {
		k := string(iter.Key()[len(prefix):])
		out[k] = append([]byte(nil), iter.Value()...)
	}
	return out, iter.Error()
}
