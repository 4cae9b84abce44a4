// Package sstable implements the immutable, sorted, Bloom-filtered on-disk
// run: one Bloom filter followed by records in strictly ascending key
// order, EOF-terminated with no footer or index block. Writes go through
// a plain *os.File (see DESIGN.md for why direct I/O was not used); reads
// go through a read-only file-backed mmap.
package sstable

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"shale/internal/base"
	"shale/internal/bloom"
	"shale/internal/compare"
)

const tombstoneSentinel = 0xFFFFFFFF

// Table is a handle to one immutable on-disk sorted run.
type Table struct {
	ID    uint64
	Level int

	path   string
	file   *os.File
	data   []byte
	bloom  *bloom.Filter
	recsAt int // byte offset where the record stream begins

	minKey []byte
	maxKey []byte
	size   int64
}

// Name returns the canonical filename for an SSTable at the given level
// and id: "L{level}-{id}.sst".
func Name(level int, id uint64) string {
	return fmt.Sprintf("L%d-%d.sst", level, id)
}

// ParseName extracts the level and id from a filename of the form
// "L{level}-{id}.sst". ok is false if name does not match.
func ParseName(name string) (level int, id uint64, ok bool) {
	var l int
	var i uint64
	n, err := fmt.Sscanf(name, "L%d-%d.sst", &l, &i)
	if err != nil || n != 2 {
		return 0, 0, false
	}
	return l, i, true
}

// Write constructs a Bloom filter sized for len(records), then writes the
// header and every record to a temporary file, fsyncs it, renames it into
// place as "L{level}-{id}.sst", and fsyncs the containing directory.
// records must already be sorted in strictly ascending key order. The
// returned Table is opened and ready for reads.
func Write(dir string, level int, id uint64, records []base.Record, fpRate float64) (*Table, error) {
	finalPath := filepath.Join(dir, Name(level, id))
	tmpPath := finalPath + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("sstable: create: %w", err)
	}

	filter := bloom.New(len(records), fpRate)
	for _, r := range records {
		filter.Insert(r.Key)
	}
	bloomBytes := filter.Serialize()

	header := make([]byte, 4)
	binary.LittleEndian.PutUint32(header, uint32(len(bloomBytes)))
	if _, err := f.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("sstable: write bloom header: %w", err)
	}
	if _, err := f.Write(bloomBytes); err != nil {
		f.Close()
		return nil, fmt.Errorf("sstable: write bloom: %w", err)
	}

	for _, r := range records {
		if err := writeRecord(f, r); err != nil {
			f.Close()
			return nil, err
		}
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("sstable: fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("sstable: close: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return nil, fmt.Errorf("sstable: rename: %w", err)
	}
	if err := fsyncDir(dir); err != nil {
		return nil, err
	}

	t, err := Open(finalPath)
	if err != nil {
		return nil, err
	}
	t.ID = id
	t.Level = level
	return t, nil
}

func writeRecord(f *os.File, r base.Record) error {
	head := make([]byte, 4+len(r.Key)+4)
	binary.LittleEndian.PutUint32(head[0:4], uint32(len(r.Key)))
	copy(head[4:4+len(r.Key)], r.Key)
	valueSizeOff := 4 + len(r.Key)

	if r.Kind == base.KindDelete {
		binary.LittleEndian.PutUint32(head[valueSizeOff:valueSizeOff+4], tombstoneSentinel)
		_, err := f.Write(head)
		return err
	}

	binary.LittleEndian.PutUint32(head[valueSizeOff:valueSizeOff+4], uint32(len(r.Value)))
	if _, err := f.Write(head); err != nil {
		return err
	}
	if len(r.Value) > 0 {
		if _, err := f.Write(r.Value); err != nil {
			return err
		}
	}
	return nil
}

// Open opens an existing SSTable file, mmaps it, and loads its Bloom filter.
// There is no key index kept in memory; Get performs a linear scan with
// early termination, and min/max keys are computed once here by scanning
// the record stream.
func Open(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sstable: open %q: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("sstable: stat %q: %w", path, err)
	}

	data, err := mmapFile(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	if len(data) < 4 {
		f.Close()
		return nil, fmt.Errorf("sstable: %q: truncated bloom header", path)
	}
	bloomSize := binary.LittleEndian.Uint32(data[0:4])
	if uint32(len(data)) < 4+bloomSize {
		f.Close()
		_ = munmap(data)
		return nil, fmt.Errorf("sstable: %q: truncated bloom filter", path)
	}
	filter, err := bloom.Deserialize(data[4 : 4+bloomSize])
	if err != nil {
		f.Close()
		_ = munmap(data)
		return nil, fmt.Errorf("sstable: %q: %w", path, err)
	}

	t := &Table{
		path:   path,
		file:   f,
		data:   data,
		bloom:  filter,
		recsAt: int(4 + bloomSize),
		size:   info.Size(),
	}

	if level, id, ok := ParseName(filepath.Base(path)); ok {
		t.Level = level
		t.ID = id
	}

	if err := t.scanKeyRange(); err != nil {
		t.Close()
		return nil, err
	}

	return t, nil
}

func (t *Table) scanKeyRange() error {
	it := t.Iterator()
	first := true
	for {
		rec, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if first {
			t.minKey = append([]byte(nil), rec.Key...)
			first = false
		}
		t.maxKey = append([]byte(nil), rec.Key...)
	}
	return nil
}

// Get performs a Bloom-filtered point lookup: if the filter rejects key,
// the result is definitively absent; otherwise records are scanned in
// order until a match is found or a key greater than the query key is
// seen.
func (t *Table) Get(key []byte) (value []byte, result base.LookupResult) {
	if !t.bloom.Contains(key) {
		return nil, base.Absent
	}

	it := t.Iterator()
	for {
		rec, ok, err := it.Next()
		if err != nil || !ok {
			return nil, base.Absent
		}
		cmp := compare.Compare(rec.Key, key)
		if cmp == 0 {
			if rec.Kind == base.KindDelete {
				return nil, base.Tombstoned
			}
			return rec.Value, base.Present
		}
		if cmp > 0 {
			return nil, base.Absent
		}
	}
}

// MinKey returns the smallest key in this table.
func (t *Table) MinKey() []byte { return t.minKey }

// MaxKey returns the largest key in this table.
func (t *Table) MaxKey() []byte { return t.maxKey }

// Size returns the on-disk size in bytes.
func (t *Table) Size() int64 { return t.size }

// Path returns the backing file path.
func (t *Table) Path() string { return t.path }

// Overlaps reports whether this table's key range intersects [min, max].
func (t *Table) Overlaps(min, max []byte) bool {
	if len(t.minKey) == 0 && len(t.maxKey) == 0 {
		return false
	}
	return compare.Compare(t.minKey, max) <= 0 && compare.Compare(t.maxKey, min) >= 0
}

// Iterator returns a fresh cursor over this table's records in ascending
// key order, used by compaction's k-way merge.
func (t *Table) Iterator() *Iterator {
	return &Iterator{data: t.data, offset: t.recsAt}
}

// Close unmaps and closes the backing file.
func (t *Table) Close() error {
	if err := munmap(t.data); err != nil {
		t.file.Close()
		return fmt.Errorf("sstable: munmap %q: %w", t.path, err)
	}
	return t.file.Close()
}

// Remove closes and deletes the backing file. Called only once the
// manifest no longer references this table.
func (t *Table) Remove() error {
	if err := t.Close(); err != nil {
		return err
	}
	if err := os.Remove(t.path); err != nil {
		return fmt.Errorf("sstable: remove %q: %w", t.path, err)
	}
	return nil
}

// Iterator is a forward-only cursor over an SSTable's record stream.
type Iterator struct {
	data   []byte
	offset int
}

// Next decodes and returns the next record, or ok=false at end of stream. A
// truncated trailing record is reported as an error — unlike the WAL, an
// SSTable is written in one fsynced pass and any corruption here is not
// expected to be a crash artifact.
func (it *Iterator) Next() (base.Record, bool, error) {
	if it.offset >= len(it.data) {
		return base.Record{}, false, nil
	}

	if it.offset+4 > len(it.data) {
		return base.Record{}, false, fmt.Errorf("sstable: truncated key-size field")
	}
	keySize := binary.LittleEndian.Uint32(it.data[it.offset : it.offset+4])
	it.offset += 4
	if it.offset+int(keySize) > len(it.data) {
		return base.Record{}, false, fmt.Errorf("sstable: truncated key")
	}
	key := it.data[it.offset : it.offset+int(keySize)]
	it.offset += int(keySize)

	if it.offset+4 > len(it.data) {
		return base.Record{}, false, fmt.Errorf("sstable: truncated value-size field")
	}
	valueSize := binary.LittleEndian.Uint32(it.data[it.offset : it.offset+4])
	it.offset += 4

	if valueSize == tombstoneSentinel {
		return base.Record{Key: key, Kind: base.KindDelete}, true, nil
	}
	if it.offset+int(valueSize) > len(it.data) {
		return base.Record{}, false, fmt.Errorf("sstable: truncated value")
	}
	value := it.data[it.offset : it.offset+int(valueSize)]
	it.offset += int(valueSize)
	return base.Record{Key: key, Value: value, Kind: base.KindSet}, true, nil
}

func fsyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("sstable: open dir for fsync: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sstable: fsync dir: %w", err)
	}
	return nil
}
