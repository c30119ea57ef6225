// Package timespec parses the CLI's --since/--until time filters.
package timespec

import (
	"fmt"
	"time"
)

// Parse turns a time specification into a Unix millisecond timestamp.
// Two formats are accepted:
//   - Go durations ("1h", "30m", "1h30m"), interpreted as that long ago
//   - RFC3339 timestamps ("2026-08-31T13:00:00Z")
func Parse(spec string) (int64, error) {
	if spec == "" {
		return 0, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.UnixMilli(), nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		return time.Now().Add(-d).UnixMilli(), nil
	}

	return 0, fmt.Errorf("invalid time specification: %s (use duration like '1h30m' or RFC3339 like '2026-08-31T13:00:00Z')", spec)
}

// ParseRange parses the since and until specs together. Empty specs yield
// zero, meaning that end of the range is unbounded. A range with both ends
// set must be non-empty.
func ParseRange(since, until string) (sinceMs, untilMs int64, err error) {
	if since != "" {
		if sinceMs, err = Parse(since); err != nil {
			return 0, 0, fmt.Errorf("invalid --since: %w", err)
		}
	}

	if until != "" {
		if untilMs, err = Parse(until); err != nil {
			return 0, 0, fmt.Errorf("invalid --until: %w", err)
		}
	}

	if sinceMs > 0 && untilMs > 0 && sinceMs >= untilMs {
		return 0, 0, fmt.Errorf("--since must be before --until")
	}

	return sinceMs, untilMs, nil
}
