package manifest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"shale/internal/base"
	"shale/internal/sstable"
)

func writeTable(t *testing.T, dir string, level int, id uint64, keys ...string) *sstable.Table {
	t.Helper()
	var records []base.Record
	for _, k := range keys {
		records = append(records, base.Record{Key: []byte(k), Value: []byte("v"), Kind: base.KindSet})
	}
	tbl, err := sstable.Write(dir, level, id, records, 0.01)
	require.NoError(t, err)
	return tbl
}

func TestRebuildReconstructsLevelsAndNextID(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, 0, 0, "a").Close()
	writeTable(t, dir, 0, 2, "b").Close()
	writeTable(t, dir, 1, 1, "c").Close()

	m, referenced, err := Rebuild(dir)
	require.NoError(t, err)
	require.Len(t, m.Tables(0), 2)
	require.Len(t, m.Tables(1), 1)
	require.Equal(t, uint64(3), m.NextID())
	require.Len(t, referenced, 3)
	require.True(t, referenced[filepath.Join(dir, sstable.Name(0, 0))])
}

func TestRebuildOrdersL0ByAscendingID(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, 0, 5, "a").Close()
	writeTable(t, dir, 0, 1, "b").Close()
	writeTable(t, dir, 0, 3, "c").Close()

	m, _, err := Rebuild(dir)
	require.NoError(t, err)
	tables := m.Tables(0)
	require.Equal(t, []uint64{1, 3, 5}, []uint64{tables[0].ID, tables[1].ID, tables[2].ID})
}

func TestRebuildOrdersLevelNByMinKey(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, 1, 0, "m").Close()
	writeTable(t, dir, 1, 1, "a").Close()
	writeTable(t, dir, 1, 2, "z").Close()

	m, _, err := Rebuild(dir)
	require.NoError(t, err)
	tables := m.Tables(1)
	require.Equal(t, "a", string(tables[0].MinKey()))
	require.Equal(t, "m", string(tables[1].MinKey()))
	require.Equal(t, "z", string(tables[2].MinKey()))
}

func TestOverlappingAt(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, 1, 0, "a", "c").Close()
	writeTable(t, dir, 1, 1, "f", "h").Close()
	writeTable(t, dir, 1, 2, "x", "z").Close()

	m, _, err := Rebuild(dir)
	require.NoError(t, err)

	overlap := m.OverlappingAt(1, []byte("b"), []byte("g"))
	require.Len(t, overlap, 2)
}

func TestRemoveFromLevel(t *testing.T) {
	dir := t.TempDir()
	a := writeTable(t, dir, 0, 0, "a")
	b := writeTable(t, dir, 0, 1, "b")
	defer a.Close()
	defer b.Close()

	kept := RemoveFromLevel([]*sstable.Table{a, b}, map[uint64]bool{0: true})
	require.Len(t, kept, 1)
	require.Equal(t, uint64(1), kept[0].ID)
}

func TestMaxLevel(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, dir, 0, 0, "a").Close()
	writeTable(t, dir, 2, 1, "b").Close()

	m, _, err := Rebuild(dir)
	require.NoError(t, err)
	require.Equal(t, 2, m.MaxLevel())
}

func TestMaxLevelEmptyManifest(t *testing.T) {
	require.Equal(t, -1, New().MaxLevel())
}
