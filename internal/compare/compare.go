// Package compare holds the single byte-slice ordering used throughout the
// engine: plain lexicographic comparison. Keys and values are opaque byte
// strings, so there is no user-pluggable comparator — just one total order
// used everywhere.
package compare

import "bytes"

// Compare returns -1, 0, or +1 as a is less than, equal to, or greater than
// b, lexicographically.
func Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}

// Less reports whether a sorts strictly before b.
func Less(a, b []byte) bool {
	return bytes.Compare(a, b) < 0
}

// Equal reports whether a and b are the same key.
func Equal(a, b []byte) bool {
	return bytes.Equal(a, b)
}
