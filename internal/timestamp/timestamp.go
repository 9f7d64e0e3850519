// internal/timestamp/timestamp.go
//
// Remote snapshots can carry timestamps in three encodings: the
// backend's native {seconds, nanoseconds} object, a native date value,
// or an ISO-8601 string. Everything is normalized to one canonical
// RFC3339 UTC string before it crosses into client-visible state.
package timestamp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Raw is the backend-native timestamp object.
type Raw struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int32 `json:"nanoseconds"`
}

// Time converts the raw timestamp to a time.Time in UTC.
func (r Raw) Time() time.Time {
	return time.Unix(r.Seconds, int64(r.Nanoseconds)).UTC()
}

// Canonical formats an instant as the canonical string form.
func Canonical(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseCanonical parses a canonical (or plain RFC3339) string.
func ParseCanonical(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// Normalize converts any supported timestamp encoding to the canonical
// string form. Nil input yields the empty string. Unsupported types and
// unparseable strings are errors.
func Normalize(v interface{}) (string, error) {
	switch tv := v.(type) {
	case nil:
		return "", nil
	case time.Time:
		if tv.IsZero() {
			return "", nil
		}
		return Canonical(tv), nil
	case *time.Time:
		if tv == nil || tv.IsZero() {
			return "", nil
		}
		return Canonical(*tv), nil
	case Raw:
		return Canonical(tv.Time()), nil
	case *Raw:
		if tv == nil {
			return "", nil
		}
		return Canonical(tv.Time()), nil
	case string:
		if tv == "" {
			return "", nil
		}
		t, err := ParseCanonical(tv)
		if err != nil {
			return "", err
		}
		return Canonical(t), nil
	case int64:
		return Canonical(fromMillis(tv)), nil
	case int:
		return Canonical(fromMillis(int64(tv))), nil
	case float64:
		return Canonical(fromMillis(int64(tv))), nil
	case json.Number:
		ms, err := tv.Int64()
		if err != nil {
			return "", fmt.Errorf("parse timestamp %q: %w", tv, err)
		}
		return Canonical(fromMillis(ms)), nil
	default:
		return "", fmt.Errorf("unsupported timestamp type %T", v)
	}
}

// fromMillis interprets a number as epoch milliseconds.
func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
