// Package manifest tracks which SSTable files belong to the store and at
// what level: the in-memory map from level number to an ordered list of
// SSTable handles. Storage is the only component permitted to mutate it.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"shale/internal/compare"
	"shale/internal/sstable"
)

// Manifest is the reconstructed view of every SSTable on disk, grouped by
// level. Level 0 is kept ordered by ascending id (oldest first, so the
// newest file is the last element and is searched first). Level N >= 1 is
// kept ordered by ascending min key, since those files have disjoint
// ranges.
type Manifest struct {
	levels map[int][]*sstable.Table
	nextID uint64
}

// New returns an empty manifest with id allocation starting at zero.
func New() *Manifest {
	return &Manifest{levels: make(map[int][]*sstable.Table)}
}

// Rebuild scans dir for "L{level}-{id}.sst" files, opens each one, and
// returns a populated manifest plus the set of full paths that were opened
// (so the caller can garbage-collect anything in dir not in that set).
func Rebuild(dir string) (m *Manifest, referenced map[string]bool, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("manifest: read dir: %w", err)
	}

	m = New()
	referenced = make(map[string]bool)
	var maxID uint64
	sawAny := false

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sst") {
			continue
		}
		level, id, ok := sstable.ParseName(e.Name())
		if !ok {
			continue
		}
		path := filepath.Join(dir, e.Name())
		t, err := sstable.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("manifest: open %q: %w", path, err)
		}
		m.levels[level] = append(m.levels[level], t)
		referenced[path] = true
		if !sawAny || id >= maxID {
			maxID = id
			sawAny = true
		}
	}

	for level, tables := range m.levels {
		if level == 0 {
			sort.Slice(tables, func(i, j int) bool { return tables[i].ID < tables[j].ID })
		} else {
			sort.Slice(tables, func(i, j int) bool {
				return compare.Less(tables[i].MinKey(), tables[j].MinKey())
			})
		}
	}

	if sawAny {
		m.nextID = maxID + 1
	}
	return m, referenced, nil
}

// NextID returns a fresh, never-before-used SSTable id and advances the
// counter. On a freshly rebuilt manifest this starts at one plus the
// maximum id observed across every parsed filename.
func (m *Manifest) NextID() uint64 {
	id := m.nextID
	m.nextID++
	return id
}

// Tables returns the tables at level, in the level's canonical search
// order. The returned slice is owned by the manifest; callers must not
// mutate it.
func (m *Manifest) Tables(level int) []*sstable.Table {
	return m.levels[level]
}

// MaxLevel returns the highest level number that currently holds any
// tables, or -1 if the manifest is empty.
func (m *Manifest) MaxLevel() int {
	max := -1
	for level, tables := range m.levels {
		if len(tables) > 0 && level > max {
			max = level
		}
	}
	return max
}

// LevelBytes returns the total on-disk size of every table at level.
func (m *Manifest) LevelBytes(level int) int64 {
	var total int64
	for _, t := range m.levels[level] {
		total += t.Size()
	}
	return total
}

// AddL0 appends a freshly flushed table to Level 0, keeping ascending-id
// order (the new table has the highest id, so it lands at the end).
func (m *Manifest) AddL0(t *sstable.Table) {
	m.levels[0] = append(m.levels[0], t)
}

// ReplaceLevel installs a new set of tables at level, replacing whatever
// was there. For level >= 1 the tables are sorted by min key so the
// disjoint-range search order holds; level 0 is sorted by id.
func (m *Manifest) ReplaceLevel(level int, tables []*sstable.Table) {
	if level == 0 {
		sort.Slice(tables, func(i, j int) bool { return tables[i].ID < tables[j].ID })
	} else {
		sort.Slice(tables, func(i, j int) bool {
			return compare.Less(tables[i].MinKey(), tables[j].MinKey())
		})
	}
	m.levels[level] = tables
}

// RemoveFromLevel returns the tables at level with every table whose id is
// in ids filtered out.
func RemoveFromLevel(tables []*sstable.Table, ids map[uint64]bool) []*sstable.Table {
	kept := make([]*sstable.Table, 0, len(tables))
	for _, t := range tables {
		if !ids[t.ID] {
			kept = append(kept, t)
		}
	}
	return kept
}

// OverlappingAt returns the tables at level whose key range intersects
// [min, max], used by compaction to pull in mandatory Level-N+1 inputs.
func (m *Manifest) OverlappingAt(level int, min, max []byte) []*sstable.Table {
	var out []*sstable.Table
	for _, t := range m.levels[level] {
		if t.Overlaps(min, max) {
			out = append(out, t)
		}
	}
	return out
}
