package shale

// Reader is the point-lookup surface of a DB. There is no range-scan or
// iterator method here.
type Reader interface {
	// Get gets the value for the given key. ok is false if the DB does not
	// contain the key. The caller should not modify the returned slice.
	Get(key []byte) (value []byte, ok bool, err error)
}

// Writer is the mutation surface of a DB.
type Writer interface {
	// Set sets the value for the given key, overwriting any previous value
	// for that key if it exists, and inserting the key-value pair if it
	// does not.
	Set(key, value []byte) error

	// Delete deletes the value for the given key. It is a blind delete,
	// i.e. it does not return an error if the key does not exist.
	Delete(key []byte) error
}

// ReadWriteCloser is the full DB surface, useful for callers that want to
// depend on an interface rather than the concrete *DB type.
type ReadWriteCloser interface {
	Reader
	Writer
	Close() error
}

var _ ReadWriteCloser = (*DB)(nil)
