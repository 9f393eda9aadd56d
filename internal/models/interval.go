package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// intervalSuffixes maps label suffixes to their units. Longer suffixes come
// first so "15min" matches "min" before the bare "m" is tried.
var intervalSuffixes = []struct {
	suffix string
	unit   time.Duration
}{
	{"hour", time.Hour},
	{"min", time.Minute},
	{"day", 24 * time.Hour},
	{"h", time.Hour},
	{"m", time.Minute},
	{"d", 24 * time.Hour},
}

// ParseInterval converts an interval label to its nominal duration.
// Accepted labels follow exchange conventions: "1m", "1min", "15min",
// "1h", "1hour", "1d", "1day" and the like.
func ParseInterval(interval string) (time.Duration, error) {
	label := strings.ToLower(strings.TrimSpace(interval))
	if label == "" {
		return 0, fmt.Errorf("interval cannot be empty")
	}

	for _, s := range intervalSuffixes {
		if !strings.HasSuffix(label, s.suffix) {
			continue
		}
		digits := strings.TrimSuffix(label, s.suffix)
		n, err := strconv.Atoi(digits)
		if err != nil || n <= 0 {
			continue
		}
		return time.Duration(n) * s.unit, nil
	}

	return 0, fmt.Errorf("unsupported interval: %s", interval)
}
