package storage

// Config holds every engine tunable, with documented defaults. Construct
// one with DefaultConfig and apply Options as a functional-options chain.
type Config struct {
	DataDir string

	MemtableFlushBytes  int
	L0TriggerFiles      int
	L0TriggerBytes      int64
	LevelSizeMultiplier int
	LevelBaseBytes      int64
	BloomFPRate         float64

	Verbose  bool
	Observer Observer
}

// DefaultConfig returns a Config for dataDir with every default applied.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:             dataDir,
		MemtableFlushBytes:  512 * 1024,
		L0TriggerFiles:      4,
		L0TriggerBytes:      2 * 1024 * 1024,
		LevelSizeMultiplier: 4,
		LevelBaseBytes:      2 * 1024 * 1024,
		BloomFPRate:         0.01,
	}
}

// Option mutates a Config at Open time.
type Option func(*Config)

// WithMemtableFlushBytes overrides the MemTable size threshold that
// triggers a flush.
func WithMemtableFlushBytes(n int) Option {
	return func(c *Config) { c.MemtableFlushBytes = n }
}

// WithL0TriggerFiles overrides the Level-0 file-count compaction trigger.
func WithL0TriggerFiles(n int) Option {
	return func(c *Config) { c.L0TriggerFiles = n }
}

// WithL0TriggerBytes overrides the Level-0 byte-size compaction trigger.
func WithL0TriggerBytes(n int64) Option {
	return func(c *Config) { c.L0TriggerBytes = n }
}

// WithLevelSizeMultiplier overrides the per-level size growth factor.
func WithLevelSizeMultiplier(n int) Option {
	return func(c *Config) { c.LevelSizeMultiplier = n }
}

// WithLevelBaseBytes overrides the Level-1 byte-size compaction trigger.
func WithLevelBaseBytes(n int64) Option {
	return func(c *Config) { c.LevelBaseBytes = n }
}

// WithBloomFPRate overrides the target false-positive rate for new SSTable
// Bloom filters.
func WithBloomFPRate(p float64) Option {
	return func(c *Config) { c.BloomFPRate = p }
}

// WithObserver enables verbose mode and registers obs as the event sink.
func WithObserver(obs Observer) Option {
	return func(c *Config) {
		c.Verbose = true
		c.Observer = obs
	}
}

// levelTriggerBytes returns the byte-size compaction trigger for level
// N >= 1: LevelBaseBytes * LevelSizeMultiplier^(N-1).
func (c Config) levelTriggerBytes(level int) int64 {
	trigger := c.LevelBaseBytes
	for i := 1; i < level; i++ {
		trigger *= int64(c.LevelSizeMultiplier)
	}
	return trigger
}
