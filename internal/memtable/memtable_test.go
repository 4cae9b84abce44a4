package memtable

import (
	"testing"

	"github.com/stretchr/testify/require"

	"shale/internal/base"
)

func TestPutGetDelete(t *testing.T) {
	m := New()

	m.Put([]byte("name"), []byte("John Doe"))
	v, result := m.Get([]byte("name"))
	require.Equal(t, base.Present, result)
	require.Equal(t, []byte("John Doe"), v)

	m.Delete([]byte("name"))
	_, result = m.Get([]byte("name"))
	require.Equal(t, base.Tombstoned, result)

	_, result = m.Get([]byte("never-written"))
	require.Equal(t, base.Absent, result)
}

func TestSizeAccounting(t *testing.T) {
	m := New()
	m.Put([]byte("k"), []byte("12345"))
	require.Equal(t, len("k")+len("12345"), m.Size())

	m.Put([]byte("k"), []byte("12"))
	require.Equal(t, len("k")+len("12"), m.Size())

	m.Delete([]byte("k"))
	require.Equal(t, len("k"), m.Size())
}

func TestDrainSortedAscending(t *testing.T) {
	m := New()
	m.Put([]byte("b"), []byte("2"))
	m.Put([]byte("a"), []byte("1"))
	m.Delete([]byte("c"))

	records := m.DrainSorted()
	require.Len(t, records, 3)
	require.Equal(t, "a", string(records[0].Key))
	require.Equal(t, "b", string(records[1].Key))
	require.Equal(t, "c", string(records[2].Key))
	require.True(t, records[2].IsTombstone())
}
