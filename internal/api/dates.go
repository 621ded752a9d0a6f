package api

import (
	"fmt"
	"strconv"
	"time"
)

// parseTimeParam accepts RFC3339, YYYY-MM-DD in loc, or unix seconds. A bare
// date used as an upper bound means the end of that day. Empty means no bound.
func parseTimeParam(value string, endOfDay bool, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}

	if t, err := time.ParseInLocation(time.DateOnly, value, loc); err == nil {
		if endOfDay {
			t = t.AddDate(0, 0, 1).Add(-time.Second)
		}
		return &t, nil
	}

	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		t := time.Unix(secs, 0)
		return &t, nil
	}

	return nil, fmt.Errorf("unrecognized date %q (want RFC3339, YYYY-MM-DD or unix seconds)", value)
}
