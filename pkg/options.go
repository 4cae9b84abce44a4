package shale

import "shale/internal/storage"

// Option configures a DB at Open time: a functional-options alias over
// the underlying storage package.
type Option = storage.Option

// WithMemtableFlushBytes overrides the MemTable size threshold (default
// 512 KiB) that triggers a flush to a new Level-0 SSTable.
func WithMemtableFlushBytes(n int) Option { return storage.WithMemtableFlushBytes(n) }

// WithL0TriggerFiles overrides the Level-0 file-count compaction trigger
// (default 4).
func WithL0TriggerFiles(n int) Option { return storage.WithL0TriggerFiles(n) }

// WithL0TriggerBytes overrides the Level-0 byte-size compaction trigger
// (default 2 MiB).
func WithL0TriggerBytes(n int64) Option { return storage.WithL0TriggerBytes(n) }

// WithLevelSizeMultiplier overrides the per-level size growth factor
// (default 4).
func WithLevelSizeMultiplier(n int) Option { return storage.WithLevelSizeMultiplier(n) }

// WithLevelBaseBytes overrides the Level-1 byte-size compaction trigger
// and per-level compaction output split size (default 2 MiB).
func WithLevelBaseBytes(n int64) Option { return storage.WithLevelBaseBytes(n) }

// WithBloomFPRate overrides the target false-positive rate for new
// SSTable Bloom filters (default 0.01).
func WithBloomFPRate(p float64) Option { return storage.WithBloomFPRate(p) }

// WithObserver enables verbose mode and registers obs to receive Events.
func WithObserver(obs Observer) Option { return storage.WithObserver(obs) }
