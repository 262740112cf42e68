package progress

import (
	"testing"
	"time"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name     string
		bytes    int64
		expected string
	}{
		{"zero bytes", 0, "0 bytes"},
		{"single byte", 1, "1 byte"},
		{"small bytes", 500, "500 bytes"},
		{"max bytes before KB", 1023, "1023 bytes"},

		{"exactly 1 KB", 1024, "1 KB"},
		{"round KB", 2048, "2 KB"},
		{"fractional KB", 1536, "1.5 KB"},
		{"large KB", 512 * 1024, "512 KB"},

		{"exactly 1 MB", 1024 * 1024, "1 MB"},
		{"round MB", 5 * 1024 * 1024, "5 MB"},
		{"fractional MB", 1536 * 1024, "1.5 MB"},

		{"exactly 1 GB", 1024 * 1024 * 1024, "1 GB"},
		{"large file size", 1500000000, "1.4 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatSize(tt.bytes)
			if got != tt.expected {
				t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.expected)
			}
		})
	}
}

func TestFormatRate(t *testing.T) {
	got := FormatRate(2048)
	if got != "2 KB/sec" {
		t.Errorf("FormatRate(2048) = %q, want %q", got, "2 KB/sec")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		d        time.Duration
		expected string
	}{
		{"zero", 0, "0 seconds"},
		{"one second", time.Second, "1 second"},
		{"seconds", 45 * time.Second, "45 seconds"},
		{"just under a minute", 59 * time.Second, "59 seconds"},
		{"one minute", 60 * time.Second, "1 minute"},
		{"rounded down", 89 * time.Second, "1 minute"},
		{"rounded up", 91 * time.Second, "2 minutes"},
		{"many minutes", 10 * time.Minute, "10 minutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatDuration(tt.d)
			if got != tt.expected {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.expected)
			}
		})
	}
}
