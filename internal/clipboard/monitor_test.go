package clipboard

import (
	"testing"
)

func TestMonitorReportsNewURLsOnce(t *testing.T) {
	var got []string
	m := NewMonitor(0, func(u string) { got = append(got, u) })

	text := "https://example.com/a.mp4"
	m.readAll = func() (string, error) { return text, nil }

	m.last = "" // startup content already consumed
	m.poll()
	m.poll() // unchanged clipboard must not re-report

	text = "https://example.com/b.mp4"
	m.poll()

	want := []string{"https://example.com/a.mp4", "https://example.com/b.mp4"}
	if len(got) != len(want) {
		t.Fatalf("got %d URLs, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("url[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMonitorIgnoresNonURLs(t *testing.T) {
	calls := 0
	m := NewMonitor(0, func(string) { calls++ })

	m.readAll = func() (string, error) { return "just some notes", nil }
	m.poll()

	if calls != 0 {
		t.Errorf("onURL called %d times for non-URL content", calls)
	}
}
