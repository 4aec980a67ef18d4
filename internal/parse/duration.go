package parse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ThresholdMinutes parses an "HH:MM" threshold string into total minutes.
// ok is false for malformed input, in which case minutes is 0: a
// misconfigured threshold behaves as an always-expired timer instead of
// aborting the whole cycle. Callers log the mismatch as a data-integrity
// warning.
func ThresholdMinutes(s string) (minutes int, ok bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, false
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 {
		return 0, false
	}
	mins, err := strconv.Atoi(parts[1])
	if err != nil || mins < 0 || mins > 59 {
		return 0, false
	}

	return hours*60 + mins, true
}

// FormatElapsed humanizes a duration as "Xh Ym". The hour component is
// omitted when zero, and the minute component is omitted when zero with a
// nonzero hour count.
func FormatElapsed(d time.Duration) string {
	total := int(d.Minutes())
	if total < 0 {
		total = 0
	}
	hours := total / 60
	mins := total % 60

	switch {
	case hours == 0:
		return fmt.Sprintf("%dm", mins)
	case mins == 0:
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}
