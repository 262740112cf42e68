package download

import (
	"fmt"
	"time"

	"github.com/tubeload/tubeload/internal/progress"
)

// Policy applies demo-mode restrictions to enqueue requests. A zero Policy
// allows everything.
type Policy struct {
	Enabled bool
	// MaxClipDuration rejects clips longer than this, 0 for no cap.
	MaxClipDuration time.Duration
	// MaxDownloads caps accepted enqueues over the manager's lifetime,
	// 0 for no cap.
	MaxDownloads int
}

// Check returns a *RestrictionError when req may not be enqueued. enqueued is
// the number of requests accepted so far.
func (p Policy) Check(req Request, enqueued int) error {
	if !p.Enabled || req.DemoExempt {
		return nil
	}
	if p.MaxDownloads > 0 && enqueued >= p.MaxDownloads {
		return &RestrictionError{
			Reason: fmt.Sprintf("demo mode allows %d downloads", p.MaxDownloads),
		}
	}
	if p.MaxClipDuration > 0 && req.Duration > p.MaxClipDuration {
		return &RestrictionError{
			Reason: fmt.Sprintf("demo mode allows clips up to %s",
				progress.FormatDuration(p.MaxClipDuration)),
		}
	}
	return nil
}
