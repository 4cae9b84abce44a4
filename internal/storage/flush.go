package storage

import (
	"shale/internal/memtable"
	"shale/internal/sstable"
)

// flush drains the MemTable, writes it as a new Level-0 SSTable, adds it
// to the manifest, installs a fresh MemTable, and rotates the WAL. Called
// whenever the MemTable's size meets or exceeds the configured threshold,
// from Put/Delete and from Open's post-replay check.
func (s *Storage) flush() error {
	records := s.mt.DrainSorted()
	if len(records) == 0 {
		return nil
	}

	id := s.m.NextID()
	s.notify(FlushStarted{Level: 0, FileID: id, RecordCount: len(records)})

	t, err := sstable.Write(s.config.DataDir, 0, id, records, s.config.BloomFPRate)
	if err != nil {
		return err
	}
	s.m.AddL0(t)

	s.mt = memtable.New()

	if err := s.log.Rotate(); err != nil {
		return err
	}

	s.notify(FlushCompleted{Level: 0, FileID: id, RecordCount: len(records), Bytes: t.Size()})
	return nil
}
