package download

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no item with the given id exists.
	ErrNotFound = errors.New("download: item not found")
	// ErrNotRestartable means restart was requested on an unfinished item.
	ErrNotRestartable = errors.New("download: item has not finished")
	// ErrNotQueued means reorder was requested on an item that already left
	// the queue.
	ErrNotQueued = errors.New("download: item is not queued")
	// ErrNotPaused means resume was requested on an item that is not paused.
	ErrNotPaused = errors.New("download: item is not paused")
	// ErrNotActive means pause was requested on an item that already
	// finished.
	ErrNotActive = errors.New("download: item is not active")
	// ErrBadPosition means a reorder target is outside the queue bounds.
	ErrBadPosition = errors.New("download: position out of range")
	// ErrShutdown means the manager no longer accepts work.
	ErrShutdown = errors.New("download: manager is shut down")
)

// RestrictionError rejects an enqueue under demo-mode policy. It names the
// limit that was hit so the caller can explain it to the user.
type RestrictionError struct {
	Reason string
}

func (e *RestrictionError) Error() string {
	return fmt.Sprintf("download restricted: %s", e.Reason)
}
