package storage

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeGarbageFile(path string) error {
	return os.WriteFile(path, []byte("not a real sstable"), 0644)
}

func open(t *testing.T, opts ...Option) (*Storage, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir), opts...)
	require.NoError(t, err)
	return s, dir
}

func TestBasicPutGetDelete(t *testing.T) {
	s, _ := open(t)
	defer s.Close()

	require.NoError(t, s.Put([]byte("name"), []byte("John Doe")))
	v, ok, err := s.Get([]byte("name"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "John Doe", string(v))

	require.NoError(t, s.Delete([]byte("name")))
	_, ok, err = s.Get([]byte("name"))
	require.NoError(t, err)
	require.False(t, ok)
}

// Crash recovery: close without an explicit flush and reopen.
func TestCrashRecovery(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)

	require.NoError(t, s.Put([]byte("a"), []byte("1")))
	require.NoError(t, s.Put([]byte("b"), []byte("2")))
	require.NoError(t, s.Close())

	s2, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s2.Close()

	v, ok, err := s2.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", string(v))

	v, ok, err = s2.Get([]byte("b"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2", string(v))
}

func TestFlushAndLevel0Read(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.MemtableFlushBytes = 1024
	s, err := Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	keys := make([]string, 20)
	for i := 0; i < 20; i++ {
		k := fmt.Sprintf("key-%02d", i)
		v := fmt.Sprintf("%090d", i) // pad to ~100 bytes
		require.NoError(t, s.Put([]byte(k), []byte(v)))
		keys[i] = k
	}

	require.Greater(t, len(s.m.Tables(0)), 0)

	for i, k := range keys {
		v, ok, err := s.Get([]byte(k))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, fmt.Sprintf("%090d", i), string(v))
	}
}

func TestLevel0Compaction(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.MemtableFlushBytes = 32
	cfg.L0TriggerFiles = 4
	s, err := Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 5; i++ {
		k := fmt.Sprintf("flush-key-%d", i)
		require.NoError(t, s.Put([]byte(k), []byte("some-reasonably-sized-value")))
	}

	require.LessOrEqual(t, len(s.m.Tables(0)), 3)
	require.GreaterOrEqual(t, len(s.m.Tables(1)), 1)

	for i := 0; i < 5; i++ {
		k := fmt.Sprintf("flush-key-%d", i)
		_, ok, err := s.Get([]byte(k))
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestOverwriteAcrossLevels(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.MemtableFlushBytes = 1
	s, err := Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put([]byte("x"), []byte("v1")))
	require.NoError(t, s.flush())
	require.NoError(t, s.Put([]byte("x"), []byte("v2")))
	require.NoError(t, s.flush())
	require.NoError(t, s.compactLevel(0))

	v, ok, err := s.Get([]byte("x"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", string(v))
}

func TestTombstoneRemovalAtDeepestLevel(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.MemtableFlushBytes = 1
	s, err := Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put([]byte("x"), []byte("v1")))
	require.NoError(t, s.flush())
	require.NoError(t, s.Delete([]byte("x")))
	require.NoError(t, s.flush())
	require.NoError(t, s.compactLevel(0))

	v, ok, err := s.Get([]byte("x"))
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, v)

	for _, tbl := range s.m.Tables(1) {
		it := tbl.Iterator()
		for {
			rec, ok, err := it.Next()
			require.NoError(t, err)
			if !ok {
				break
			}
			require.False(t, string(rec.Key) == "x" && rec.IsTombstone())
		}
	}
}

func TestDeleteOfAbsentKeySucceeds(t *testing.T) {
	s, _ := open(t)
	defer s.Close()

	require.NoError(t, s.Delete([]byte("never-written")))
}

func TestEmptyKeyRejected(t *testing.T) {
	s, _ := open(t)
	defer s.Close()

	require.ErrorIs(t, s.Put([]byte{}, []byte("v")), ErrEmptyKey)
	require.ErrorIs(t, s.Delete([]byte{}), ErrEmptyKey)
	_, _, err := s.Get([]byte{})
	require.ErrorIs(t, err, ErrEmptyKey)
}

func TestOperationsAfterCloseFail(t *testing.T) {
	s, _ := open(t)
	require.NoError(t, s.Close())

	require.ErrorIs(t, s.Put([]byte("k"), []byte("v")), ErrClosed)
	require.ErrorIs(t, s.Close(), ErrClosed)
}

func TestOpenLocksDirectoryAgainstSecondOpen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s.Close()

	_, err = Open(DefaultConfig(dir))
	require.ErrorIs(t, err, ErrLocked)
}

func TestOrphanTmpFileRemovedOnReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, s.Put([]byte("a"), []byte("1")))
	require.NoError(t, s.flush())
	require.NoError(t, s.Close())

	// Simulate a crash between a flush's temp-file write and its rename.
	orphanPath := dir + "/L0-999.sst.tmp"
	require.NoError(t, writeGarbageFile(orphanPath))

	s2, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s2.Close()

	require.NoFileExists(t, orphanPath)
}

func TestVerboseObserverReceivesEvents(t *testing.T) {
	dir := t.TempDir()
	var events []Event
	cfg := DefaultConfig(dir)
	s, err := Open(cfg, WithObserver(func(e Event) { events = append(events, e) }))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put([]byte("k"), []byte("v")))
	require.NoError(t, s.flush())

	var sawStart, sawComplete bool
	for _, e := range events {
		switch e.(type) {
		case FlushStarted:
			sawStart = true
		case FlushCompleted:
			sawComplete = true
		}
	}
	require.True(t, sawStart)
	require.True(t, sawComplete)
}
