// Package skiplist is a probabilistically balanced ordered map used as the
// memtable's backing structure.
//
// This is a single-writer skiplist: there is one logical writer and no
// concurrent readers during a write, so there is no atomic CAS linking, no
// arena, and no unsafe pointer arithmetic here. Plain garbage-collected
// node pointers are sufficient and far less likely to hide a bug that
// nothing here can catch by running it.
package skiplist

import (
	"math"
	"math/rand"

	"shale/internal/base"
	"shale/internal/compare"
)

const (
	maxHeight = 20
	pValue    = 1 / math.E
)

var probabilities [maxHeight]uint32

func init() {
	// Precompute the per-level promotion probabilities so that only a single
	// random draw is needed per insertion.
	p := 1.0
	for i := 0; i < maxHeight; i++ {
		probabilities[i] = uint32(float64(math.MaxUint32) * p)
		p *= pValue
	}
}

type node struct {
	key   []byte
	value []byte
	kind  base.Kind
	next  []*node // next[i] is the successor at level i; len(next) is this node's height
}

// Skiplist is an ordered map from key to (value, kind), with O(log n)
// expected insert/lookup and O(n) in-order iteration.
type Skiplist struct {
	head   *node
	height int
	rnd    *rand.Rand
	length int
}

// New returns an empty skiplist.
func New() *Skiplist {
	return &Skiplist{
		head:   &node{next: make([]*node, maxHeight)},
		height: 1,
		rnd:    rand.New(rand.NewSource(1)),
	}
}

func (s *Skiplist) randomHeight() int {
	h := 1
	r := s.rnd.Uint32()
	for h < maxHeight && r < probabilities[h] {
		h++
	}
	return h
}

// findGreaterOrEqual walks the tower recording, at each level, the last node
// strictly less than key. update[i] is the node whose next[i] pointer either
// already points to key or is where a new node must be spliced in at level i.
func (s *Skiplist) findGreaterOrEqual(key []byte) (update []*node, found *node) {
	update = make([]*node, maxHeight)
	cur := s.head
	for level := s.height - 1; level >= 0; level-- {
		for cur.next[level] != nil && compare.Less(cur.next[level].key, key) {
			cur = cur.next[level]
		}
		update[level] = cur
	}
	if update[0].next[0] != nil && compare.Equal(update[0].next[0].key, key) {
		found = update[0].next[0]
	}
	return update, found
}

// Set inserts or overwrites the record for key.
func (s *Skiplist) Set(key, value []byte, kind base.Kind) {
	update, found := s.findGreaterOrEqual(key)
	if found != nil {
		found.value = value
		found.kind = kind
		return
	}

	height := s.randomHeight()
	if height > s.height {
		for level := s.height; level < height; level++ {
			update[level] = s.head
		}
		s.height = height
	}

	n := &node{
		key:   key,
		value: value,
		kind:  kind,
		next:  make([]*node, height),
	}
	for level := 0; level < height; level++ {
		n.next[level] = update[level].next[level]
		update[level].next[level] = n
	}
	s.length++
}

// Get returns the record stored for key, if any.
func (s *Skiplist) Get(key []byte) (value []byte, kind base.Kind, ok bool) {
	_, found := s.findGreaterOrEqual(key)
	if found == nil {
		return nil, 0, false
	}
	return found.value, found.kind, true
}

// Len returns the number of distinct keys stored.
func (s *Skiplist) Len() int {
	return s.length
}

// Ascend calls visit for every record in ascending key order, stopping early
// if visit returns false.
func (s *Skiplist) Ascend(visit func(key, value []byte, kind base.Kind) bool) {
	for n := s.head.next[0]; n != nil; n = n.next[0] {
		if !visit(n.key, n.value, n.kind) {
			return
		}
	}
}
