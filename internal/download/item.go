// Package download owns the queue of download items: admission, lifecycle,
// ordering and event fan-out. All state lives behind a single manager lock.
package download

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tubeload/tubeload/internal/session"
)

// Status is the lifecycle state of a download item.
type Status int

const (
	StatusQueued Status = iota
	StatusStarting
	StatusActive
	StatusPaused
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusStarting:
		return "starting"
	case StatusActive:
		return "active"
	case StatusPaused:
		return "paused"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the item finished and can only leave this state
// through a restart.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// running reports whether a transfer session is attached.
func (s Status) running() bool {
	return s == StatusStarting || s == StatusActive
}

// Request describes a download to enqueue.
type Request struct {
	URL       string
	Filename  string // preferred filename, derived from the URL when empty
	Dir       string // target directory
	TotalSize int64  // expected size in bytes, 0 when unknown

	// Duration is the clip length, used for restriction checks.
	Duration time.Duration
	// DemoExempt bypasses demo restrictions for this request.
	DemoExempt bool
}

// Item is a queued download. Fields are guarded by the manager lock; external
// callers only ever see Snapshot copies.
type Item struct {
	id      string
	request Request
	dest    string

	status        Status
	bytesReceived int64
	bytesTotal    int64
	lastErr       error

	session session.Handle
	// gen counts session attachments. Callbacks from a detached session
	// carry a stale gen and are ignored.
	gen uint64
}

func newItem(req Request, dest string) *Item {
	return &Item{
		id:         uuid.NewString(),
		request:    req,
		dest:       dest,
		status:     StatusQueued,
		bytesTotal: req.TotalSize,
	}
}

// Snapshot is an immutable view of an item at one point in time.
type Snapshot struct {
	ID            string
	URL           string
	Filename      string
	Dest          string
	Status        Status
	BytesReceived int64
	BytesTotal    int64
	Error         string
	Position      int
}

func (it *Item) snapshot(position int) Snapshot {
	snap := Snapshot{
		ID:            it.id,
		URL:           it.request.URL,
		Filename:      filepath.Base(it.dest),
		Dest:          it.dest,
		Status:        it.status,
		BytesReceived: it.bytesReceived,
		BytesTotal:    it.bytesTotal,
		Position:      position,
	}
	if it.lastErr != nil {
		snap.Error = it.lastErr.Error()
	}
	return snap
}
