// Package memtable buffers the active write set in sorted order with cheap
// point lookups, backed by a skiplist. Flush triggering and WAL lifetime
// are the owning Storage engine's responsibility, not this package's.
package memtable

import (
	"shale/internal/base"
	"shale/internal/skiplist"
)

// MemTable is an in-memory ordered key -> value-or-tombstone buffer with a
// running byte-size counter.
type MemTable struct {
	skl  *skiplist.Skiplist
	size int
}

// New returns an empty MemTable.
func New() *MemTable {
	return &MemTable{skl: skiplist.New()}
}

// Put inserts or overwrites key's value, adjusting the size counter by
// len(newValue)-len(oldValue) (absence counts as 0).
func (m *MemTable) Put(key, value []byte) {
	m.adjustSize(key, value, base.KindSet)
	m.skl.Set(key, value, base.KindSet)
}

// Delete inserts a tombstone record for key. The size counter treats a
// tombstone's value as zero bytes.
func (m *MemTable) Delete(key []byte) {
	m.adjustSize(key, nil, base.KindDelete)
	m.skl.Set(key, nil, base.KindDelete)
}

func (m *MemTable) adjustSize(key, newValue []byte, kind base.Kind) {
	oldLen := 0
	if oldValue, oldKind, ok := m.skl.Get(key); ok {
		if oldKind != base.KindDelete {
			oldLen = len(oldValue)
		}
	} else {
		// Brand new key: size grows by len(key) plus the new value length.
		m.size += len(key)
	}

	newLen := 0
	if kind != base.KindDelete {
		newLen = len(newValue)
	}
	m.size += newLen - oldLen
}

// Get looks up key, returning whether it was never written, written live, or
// tombstoned.
func (m *MemTable) Get(key []byte) (value []byte, result base.LookupResult) {
	v, kind, ok := m.skl.Get(key)
	if !ok {
		return nil, base.Absent
	}
	if kind == base.KindDelete {
		return nil, base.Tombstoned
	}
	return v, base.Present
}

// Size returns the cumulative logical byte size of all entries, for flush
// threshold checks.
func (m *MemTable) Size() int {
	return m.size
}

// Len returns the number of distinct keys buffered.
func (m *MemTable) Len() int {
	return m.skl.Len()
}

// DrainSorted returns every record in ascending key order. The MemTable must
// not be reused afterward — the caller is expected to replace it with a
// fresh MemTable, since flushing consumes it.
func (m *MemTable) DrainSorted() []base.Record {
	records := make([]base.Record, 0, m.skl.Len())
	m.skl.Ascend(func(key, value []byte, kind base.Kind) bool {
		records = append(records, base.Record{Key: key, Value: value, Kind: kind})
		return true
	})
	return records
}
