package shale

import "shale/internal/storage"

// Event, Observer, and the concrete event types are re-exported from
// internal/storage so an observer can be written against this package
// alone.
type (
	Event               = storage.Event
	Observer            = storage.Observer
	FlushStarted        = storage.FlushStarted
	FlushCompleted      = storage.FlushCompleted
	CompactionStarted   = storage.CompactionStarted
	CompactionCompleted = storage.CompactionCompleted
	OpenCompleted       = storage.OpenCompleted
)
