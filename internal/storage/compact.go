package storage

import (
	"sort"

	"shale/internal/base"
	"shale/internal/compare"
	"shale/internal/manifest"
	"shale/internal/sstable"
)

// maybeCompact repeatedly compacts the lowest eligible level until none
// remains eligible; compacting one level can push the next over its own
// trigger, so the check is re-run until nothing qualifies.
func (s *Storage) maybeCompact() error {
	for {
		level := s.eligibleLevel()
		if level < 0 {
			return nil
		}
		if err := s.compactLevel(level); err != nil {
			return err
		}
	}
}

// eligibleLevel returns the lowest level meeting its compaction trigger, or
// -1 if none is eligible.
func (s *Storage) eligibleLevel() int {
	if len(s.m.Tables(0)) >= s.config.L0TriggerFiles || s.m.LevelBytes(0) >= s.config.L0TriggerBytes {
		return 0
	}
	for level := 1; level <= s.m.MaxLevel(); level++ {
		if s.m.LevelBytes(level) > s.config.levelTriggerBytes(level) {
			return level
		}
	}
	return -1
}

// taggedRecord carries a record alongside the (level, id) of the SSTable
// it came from, so duplicate keys across inputs can be resolved by a
// newest-wins ranking: lower level wins; within the same level, higher id
// wins.
type taggedRecord struct {
	rec   base.Record
	level int
	id    uint64
}

func newer(a, b taggedRecord) taggedRecord {
	if a.level != b.level {
		if a.level < b.level {
			return a
		}
		return b
	}
	if a.id > b.id {
		return a
	}
	return b
}

// compactLevel merges level N with the overlapping files of level N+1 into
// one or more new level-N+1 files.
func (s *Storage) compactLevel(level int) error {
	var inputs []*sstable.Table
	if level == 0 {
		inputs = append(inputs, s.m.Tables(0)...)
	} else {
		// Deterministic input-selection policy for level >= 1: the file with
		// the lowest min key, i.e. the first entry in the level's
		// min-key-ordered list.
		tables := s.m.Tables(level)
		if len(tables) == 0 {
			return nil
		}
		inputs = []*sstable.Table{tables[0]}
	}
	if len(inputs) == 0 {
		return nil
	}

	min, max := combinedRange(inputs)
	overlapping := s.m.OverlappingAt(level+1, min, max)

	inputIDs := make([]uint64, 0, len(inputs)+len(overlapping))
	for _, t := range inputs {
		inputIDs = append(inputIDs, t.ID)
	}
	for _, t := range overlapping {
		inputIDs = append(inputIDs, t.ID)
	}
	s.notify(CompactionStarted{FromLevel: level, ToLevel: level + 1, InputIDs: inputIDs})

	allInputs := append(append([]*sstable.Table{}, inputs...), overlapping...)
	merged, err := mergeInputs(allInputs)
	if err != nil {
		return err
	}

	// level+1 is the deepest level if nothing below it currently holds data.
	deepest := level+1 >= s.m.MaxLevel()
	tombstonesDropped := 0
	if deepest {
		kept := merged[:0]
		for _, r := range merged {
			if r.IsTombstone() {
				tombstonesDropped++
				continue
			}
			kept = append(kept, r)
		}
		merged = kept
	}

	var bytesIn int64
	for _, t := range allInputs {
		bytesIn += t.Size()
	}

	outputs, bytesOut, err := s.writeSplitOutputs(level+1, merged)
	if err != nil {
		return err
	}

	overlappingIDs := make(map[uint64]bool, len(overlapping))
	for _, t := range overlapping {
		overlappingIDs[t.ID] = true
	}
	inputL0IDs := make(map[uint64]bool, len(inputs))
	for _, t := range inputs {
		inputL0IDs[t.ID] = true
	}

	remainingLevel := manifest.RemoveFromLevel(s.m.Tables(level), inputL0IDs)
	remainingNext := manifest.RemoveFromLevel(s.m.Tables(level+1), overlappingIDs)
	remainingNext = append(remainingNext, outputs...)

	s.m.ReplaceLevel(level, remainingLevel)
	s.m.ReplaceLevel(level+1, remainingNext)

	for _, t := range allInputs {
		if err := t.Remove(); err != nil {
			return err
		}
	}

	outputIDs := make([]uint64, len(outputs))
	for i, t := range outputs {
		outputIDs[i] = t.ID
	}
	s.notify(CompactionCompleted{
		OutputIDs:         outputIDs,
		BytesIn:           bytesIn,
		BytesOut:          bytesOut,
		TombstonesDropped: tombstonesDropped,
	})

	return nil
}

func combinedRange(tables []*sstable.Table) (min, max []byte) {
	for _, t := range tables {
		if min == nil || compare.Less(t.MinKey(), min) {
			min = t.MinKey()
		}
		if max == nil || compare.Less(max, t.MaxKey()) {
			max = t.MaxKey()
		}
	}
	return min, max
}

// mergeInputs loads every record from every input table, resolves
// duplicate keys by the newest-wins ranking, and returns the result in
// ascending key order. Table sizes at this scope (bounded by
// level_base_bytes) make an in-memory merge acceptable; a streaming k-way
// merge is a natural future optimization if that stops being true.
func mergeInputs(inputs []*sstable.Table) ([]base.Record, error) {
	winners := make(map[string]taggedRecord)
	for _, t := range inputs {
		it := t.Iterator()
		for {
			rec, ok, err := it.Next()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			tagged := taggedRecord{rec: rec, level: t.Level, id: t.ID}
			if existing, found := winners[string(rec.Key)]; found {
				winners[string(rec.Key)] = newer(existing, tagged)
			} else {
				winners[string(rec.Key)] = tagged
			}
		}
	}

	keys := make([]string, 0, len(winners))
	for k := range winners {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]base.Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, winners[k].rec)
	}
	return out, nil
}

// writeSplitOutputs writes records to one or more new SSTables at level,
// starting a new output once the current one accumulates LevelBaseBytes'
// worth of records.
func (s *Storage) writeSplitOutputs(level int, records []base.Record) ([]*sstable.Table, int64, error) {
	if len(records) == 0 {
		return nil, 0, nil
	}

	var outputs []*sstable.Table
	var totalBytes int64
	var chunk []base.Record
	var chunkSize int64

	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		id := s.m.NextID()
		t, err := sstable.Write(s.config.DataDir, level, id, chunk, s.config.BloomFPRate)
		if err != nil {
			return err
		}
		outputs = append(outputs, t)
		totalBytes += t.Size()
		chunk = nil
		chunkSize = 0
		return nil
	}

	for _, r := range records {
		chunk = append(chunk, r)
		chunkSize += int64(r.Size())
		if chunkSize >= s.config.LevelBaseBytes {
			if err := flush(); err != nil {
				return nil, 0, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, 0, err
	}

	return outputs, totalBytes, nil
}
