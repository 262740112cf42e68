// Package progress tracks transfer rates and formats sizes and durations for
// display.
package progress

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

const (
	kb = 1024
	mb = 1024 * kb
	gb = 1024 * mb
)

// FormatSize renders a byte count with binary thresholds: bytes below 1 KB,
// then KB, MB and GB with at most one decimal place.
func FormatSize(bytes int64) string {
	switch {
	case bytes >= gb:
		return trimmed(float64(bytes)/gb) + " GB"
	case bytes >= mb:
		return trimmed(float64(bytes)/mb) + " MB"
	case bytes >= kb:
		return trimmed(float64(bytes)/kb) + " KB"
	case bytes == 1:
		return "1 byte"
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

// FormatRate renders a transfer rate in bytes per second.
func FormatRate(bytesPerSec float64) string {
	return FormatSize(int64(bytesPerSec)) + "/sec"
}

// FormatDuration renders a duration as whole seconds under a minute, rounded
// minutes otherwise.
func FormatDuration(d time.Duration) string {
	secs := int64(math.Round(d.Seconds()))
	if secs < 60 {
		if secs == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", secs)
	}
	mins := int64(math.Round(d.Minutes()))
	if mins == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", mins)
}

// trimmed renders v rounded to one decimal place, dropping a trailing ".0".
func trimmed(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}
