package helper_util

import (
	"fmt"
	"time"

	echo_errors "github.com/dev-mohitbeniwal/echo/gatekeeper/errors"
)

// ParseTime parses an RFC3339 timestamp and normalizes it to UTC.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ParseNullableTime accepts what the graph store hands back for an optional
// timestamp property: nothing, a time.Time, or an RFC3339 string.
func ParseNullableTime(value interface{}) (*time.Time, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case time.Time:
		utc := v.UTC()
		return &utc, nil
	case string:
		if v == "" {
			return nil, nil
		}
		t, err := ParseTime(v)
		if err != nil {
			return nil, err
		}
		return &t, nil
	default:
		return nil, fmt.Errorf("unsupported type for time parsing: %T", value)
	}
}

// ParseTimeRange resolves optional RFC3339 bounds. A missing "to" is now and a
// missing "from" is span before "to". The range must be non-empty.
func ParseTimeRange(fromRaw, toRaw string, now time.Time, span time.Duration) (from, to time.Time, err error) {
	to = now.UTC()
	if toRaw != "" {
		if to, err = ParseTime(toRaw); err != nil {
			return from, to, fmt.Errorf("%w: to: %v", echo_errors.ErrInvalidTimeRange, err)
		}
	}
	from = to.Add(-span)
	if fromRaw != "" {
		if from, err = ParseTime(fromRaw); err != nil {
			return from, to, fmt.Errorf("%w: from: %v", echo_errors.ErrInvalidTimeRange, err)
		}
	}
	if !from.Before(to) {
		return from, to, fmt.Errorf("%w: from must be before to", echo_errors.ErrInvalidTimeRange)
	}
	return from, to, nil
}
