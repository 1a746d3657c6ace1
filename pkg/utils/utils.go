package utils

import (
	"fmt"
	"time"
)

// FormatRoundedUnit renders seconds in the largest whole unit (s, m or h)
func FormatRoundedUnit(seconds int64) string {
	if seconds < 0 {
		seconds = -seconds
	}
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds >= 3600 {
		return fmt.Sprintf("%dh", seconds/3600)
	}
	return fmt.Sprintf("%dm", seconds/60)
}

// FormatDelay renders a grace delay with millisecond precision below a second
func FormatDelay(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d%time.Second == 0 {
		return FormatRoundedUnit(int64(d / time.Second))
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
