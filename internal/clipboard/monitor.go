package clipboard

import (
	"context"
	"time"
)

const defaultPollInterval = time.Second

// Monitor polls the clipboard and reports each new URL exactly once.
type Monitor struct {
	validator *Validator
	interval  time.Duration
	onURL     func(string)

	readAll func() (string, error)
	last    string
}

// NewMonitor creates a Monitor that calls onURL for every new URL appearing
// on the clipboard.
func NewMonitor(interval time.Duration, onURL func(string)) *Monitor {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Monitor{
		validator: NewValidator(),
		interval:  interval,
		onURL:     onURL,
		readAll:   clipboardReadAll,
	}
}

// Run polls until ctx is done. The clipboard content present at startup is
// ignored so stale URLs are not re-offered.
func (m *Monitor) Run(ctx context.Context) {
	if text, err := m.readAll(); err == nil {
		m.last = text
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

func (m *Monitor) poll() {
	text, err := m.readAll()
	if err != nil || text == m.last {
		return
	}
	m.last = text
	if u := m.validator.ExtractURL(text); u != "" {
		m.onURL(u)
	}
}
