package progress

import (
	"sync"
	"time"
)

const (
	sampleWindow = 10 * time.Second
	maxSamples   = 64
)

type sample struct {
	at    time.Time
	bytes int64
}

// Tracker keeps a rolling window of byte-count samples per download and
// derives transfer rates and completion estimates from them.
type Tracker struct {
	mu      sync.Mutex
	samples map[string][]sample
}

func NewTracker() *Tracker {
	return &Tracker{samples: make(map[string][]sample)}
}

// Record adds a cumulative byte-count sample for id, evicting samples that
// fell out of the rolling window.
func (t *Tracker) Record(id string, at time.Time, bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := append(t.samples[id], sample{at: at, bytes: bytes})
	cutoff := at.Add(-sampleWindow)
	start := 0
	for start < len(s)-1 && s[start].at.Before(cutoff) {
		start++
	}
	s = s[start:]
	if len(s) > maxSamples {
		s = s[len(s)-maxSamples:]
	}
	t.samples[id] = s
}

// Rate returns the transfer rate for id in bytes per second. It is unknown
// until two samples with elapsed time between them exist.
func (t *Tracker) Rate(id string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.samples[id]
	if len(s) < 2 {
		return 0, false
	}
	first, last := s[0], s[len(s)-1]
	elapsed := last.at.Sub(first.at).Seconds()
	if elapsed <= 0 {
		return 0, false
	}
	return float64(last.bytes-first.bytes) / elapsed, true
}

// ETA estimates the remaining time for a download that has received the given
// bytes out of total. Unknown when total is unknown or no rate is available.
func (t *Tracker) ETA(id string, received, total int64) (time.Duration, bool) {
	if total <= 0 || received >= total {
		return 0, false
	}
	rate, ok := t.Rate(id)
	if !ok || rate <= 0 {
		return 0, false
	}
	remaining := float64(total-received) / rate
	return time.Duration(remaining * float64(time.Second)), true
}

// Drop forgets all samples for id.
func (t *Tracker) Drop(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.samples, id)
}
