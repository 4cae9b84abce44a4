package shale

import "shale/internal/storage"

// Sentinel errors a caller can match with errors.Is, re-exported from
// internal/storage so callers never need to import an internal package.
var (
	ErrClosed        = storage.ErrClosed
	ErrKeyTooLarge   = storage.ErrKeyTooLarge
	ErrValueTooLarge = storage.ErrValueTooLarge
	ErrEmptyKey      = storage.ErrEmptyKey
	ErrLocked        = storage.ErrLocked
)
