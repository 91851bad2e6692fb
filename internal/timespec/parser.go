package timespec

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Parse parses a --since/--until value relative to now. Accepted forms:
//   - Go durations, meaning that long ago: "1h", "30m", "2h45m"
//   - RFC3339 timestamps: "2026-10-01T13:00:00Z"
//   - calendar dates in now's location: "2026-10-01"
func Parse(spec string, now time.Time) (time.Time, error) {
	if spec == "" {
		return time.Time{}, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(dateLayout, spec, now.Location()); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(spec); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("negative duration %s: use a positive duration meaning 'ago'", spec)
		}
		return now.Add(-d), nil
	}

	return time.Time{}, fmt.Errorf("invalid time specification: %s (use duration like '1h30m', date like '2026-10-01' or RFC3339 like '2026-10-01T13:00:00Z')", spec)
}

// ParseRange parses both --since and --until. Zero times mean "no bound";
// since must come before until when both are set.
func ParseRange(since, until string, now time.Time) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error

	if since != "" {
		if from, err = Parse(since, now); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --since: %w", err)
		}
	}
	if until != "" {
		if to, err = Parse(until, now); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --until: %w", err)
		}
	}

	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("--since must be before --until")
	}
	return from, to, nil
}
