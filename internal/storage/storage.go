// Package storage is the engine: the only component that mutates the
// level manifest, and the orchestrator of writes, reads, flushes, and
// leveled compaction. Writes go WAL-then-MemTable; reads are tiered
// across the MemTable and Bloom-filtered SSTables.
package storage

import (
	"fmt"
	"os"

	"shale/internal/base"
	"shale/internal/manifest"
	"shale/internal/memtable"
	"shale/internal/wal"
)

// Storage is one open handle on a data directory. It is not safe for
// concurrent use — there is a single logical writer.
type Storage struct {
	config Config

	lock *directoryLock
	m    *manifest.Manifest
	mt   *memtable.MemTable
	log  *wal.WAL

	closed bool
}

// Open creates DataDir if absent, acquires an advisory lock on it, scans
// for existing SSTables to reconstruct the manifest, replays the WAL into
// a fresh MemTable, garbage-collects any leftover orphan files, and
// flushes immediately if the replayed MemTable already exceeds the flush
// threshold.
func Open(config Config, opts ...Option) (*Storage, error) {
	for _, opt := range opts {
		opt(&config)
	}
	if config.DataDir == "" {
		return nil, fmt.Errorf("shale: data_dir must not be empty")
	}

	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return nil, wrapIO("create data directory", err)
	}

	lock, err := acquireLock(config.DataDir)
	if err != nil {
		return nil, err
	}

	s := &Storage{config: config, lock: lock}

	m, referenced, err := manifest.Rebuild(config.DataDir)
	if err != nil {
		lock.release()
		return nil, err
	}
	s.m = m

	if err := s.collectOrphans(referenced); err != nil {
		lock.release()
		return nil, err
	}

	logHandle, err := wal.Open(config.DataDir)
	if err != nil {
		lock.release()
		return nil, err
	}
	s.log = logHandle

	records, err := logHandle.Replay()
	if err != nil {
		lock.release()
		return nil, err
	}
	s.mt = memtable.New()
	for _, r := range records {
		if r.IsTombstone() {
			s.mt.Delete(r.Key)
		} else {
			s.mt.Put(r.Key, r.Value)
		}
	}

	if s.mt.Size() >= config.MemtableFlushBytes && s.mt.Len() > 0 {
		if err := s.flush(); err != nil {
			lock.release()
			return nil, err
		}
	}

	s.notify(OpenCompleted{
		ReplayedRecords: len(records),
		LevelFileCounts: s.levelFileCounts(),
		LevelBytes:      s.levelByteTotals(),
	})

	return s, nil
}

// collectOrphans removes leftover ".sst.tmp" files from a write
// (sstable.Write or flush/compaction output) that crashed before its
// rename, plus any ".sst" file Rebuild did not open into the manifest.
// Since Rebuild derives the manifest directly from the directory listing,
// every syntactically valid, fully-renamed ".sst" file is referenced by
// construction — the only real orphans this sweep catches are ".tmp"
// files whose rename never happened.
func (s *Storage) collectOrphans(referenced map[string]bool) error {
	entries, err := os.ReadDir(s.config.DataDir)
	if err != nil {
		return wrapIO("read data directory", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		path := s.config.DataDir + string(os.PathSeparator) + name

		isTmp := len(name) > 4 && name[len(name)-4:] == ".tmp"
		isUnreferencedSST := len(name) >= 4 && name[len(name)-4:] == ".sst" && !referenced[path]
		if !isTmp && !isUnreferencedSST {
			continue
		}
		if err := os.Remove(path); err != nil {
			return wrapIO("remove orphan file", err)
		}
	}
	return nil
}

func (s *Storage) levelFileCounts() map[int]int {
	counts := make(map[int]int)
	for level := 0; level <= s.m.MaxLevel(); level++ {
		counts[level] = len(s.m.Tables(level))
	}
	return counts
}

func (s *Storage) levelByteTotals() map[int]int64 {
	totals := make(map[int]int64)
	for level := 0; level <= s.m.MaxLevel(); level++ {
		totals[level] = s.m.LevelBytes(level)
	}
	return totals
}

// Put durably records key=value: WAL append, then MemTable insert, then
// a conditional flush and compaction check.
func (s *Storage) Put(key, value []byte) error {
	if s.closed {
		return ErrClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if len(key) > MaxKeySize {
		return ErrKeyTooLarge
	}
	if len(value) > MaxValueSize {
		return ErrValueTooLarge
	}

	if err := s.log.AppendPut(key, value); err != nil {
		return wrapIO("wal append", err)
	}
	s.mt.Put(key, value)

	return s.maybeFlushAndCompact()
}

// Delete records a tombstone for key. Deleting an absent key succeeds.
func (s *Storage) Delete(key []byte) error {
	if s.closed {
		return ErrClosed
	}
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if len(key) > MaxKeySize {
		return ErrKeyTooLarge
	}

	if err := s.log.AppendDelete(key); err != nil {
		return wrapIO("wal append", err)
	}
	s.mt.Delete(key)

	return s.maybeFlushAndCompact()
}

func (s *Storage) maybeFlushAndCompact() error {
	if s.mt.Size() >= s.config.MemtableFlushBytes {
		if err := s.flush(); err != nil {
			return err
		}
	}
	return s.maybeCompact()
}

// Get performs a tiered lookup: MemTable first (a tombstone there ends
// the search with "not found"), then Level 0 newest id first, then Level
// 1..N in order, consulting each SSTable's Bloom filter before scanning
// it.
func (s *Storage) Get(key []byte) ([]byte, bool, error) {
	if s.closed {
		return nil, false, ErrClosed
	}
	if len(key) == 0 {
		return nil, false, ErrEmptyKey
	}

	if v, result := s.mt.Get(key); result != base.Absent {
		if result == base.Tombstoned {
			return nil, false, nil
		}
		return v, true, nil
	}

	l0 := s.m.Tables(0)
	for i := len(l0) - 1; i >= 0; i-- {
		v, result := l0[i].Get(key)
		switch result {
		case base.Present:
			return v, true, nil
		case base.Tombstoned:
			return nil, false, nil
		}
	}

	for level := 1; level <= s.m.MaxLevel(); level++ {
		for _, t := range s.m.Tables(level) {
			v, result := t.Get(key)
			switch result {
			case base.Present:
				return v, true, nil
			case base.Tombstoned:
				return nil, false, nil
			}
		}
	}

	return nil, false, nil
}

// Close releases the directory lock and closes the WAL and every open
// SSTable handle. Any unflushed MemTable content remains recoverable from
// the WAL on the next Open.
func (s *Storage) Close() error {
	if s.closed {
		return ErrClosed
	}
	s.closed = true

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(s.log.Close())
	for level := 0; level <= s.m.MaxLevel(); level++ {
		for _, t := range s.m.Tables(level) {
			record(t.Close())
		}
	}
	record(s.lock.release())

	return firstErr
}
