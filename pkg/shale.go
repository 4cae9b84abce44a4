// Package shale is the public API for the embedded LSM-tree key-value
// store: a thin wrapper over internal/storage.Storage.
package shale

import (
	"shale/internal/storage"
)

// DB is one open handle on a data directory. It is not safe for
// concurrent use.
type DB struct {
	s *storage.Storage
}

// Open opens (or creates) the store rooted at dataDir, applying any
// Options over the documented defaults.
func Open(dataDir string, opts ...Option) (*DB, error) {
	s, err := storage.Open(storage.DefaultConfig(dataDir), opts...)
	if err != nil {
		return nil, err
	}
	return &DB{s: s}, nil
}

// Get returns the value stored for key, or ok=false if the key was never
// written or has since been deleted.
func (db *DB) Get(key []byte) (value []byte, ok bool, err error) {
	return db.s.Get(key)
}

// Set stores value under key, overwriting any existing value.
func (db *DB) Set(key, value []byte) error {
	return db.s.Put(key, value)
}

// Delete removes key. Deleting a key that does not exist is not an error.
func (db *DB) Delete(key []byte) error {
	return db.s.Delete(key)
}

// Close flushes no pending state beyond what has already been made
// durable by prior Set/Delete calls, releases the directory lock, and
// closes every open file handle.
func (db *DB) Close() error {
	return db.s.Close()
}
