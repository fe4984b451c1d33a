// Package timeline holds the absolute-time primitives shared by the partition
// engine: the fixed Range a track covers and the millisecond encoding used at
// the persistence boundary.
package timeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvertedRange is returned by NewRange when start is after end.
	ErrInvertedRange = errors.New("range start is after range end")
	// ErrSubMillisecond is returned for instants finer than the millisecond
	// resolution boundaries are stored at.
	ErrSubMillisecond = errors.New("instant is not a whole millisecond")
)

// Range is an immutable [Start, End] span of absolute time.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewRange returns the range between start and end. start must not be after
// end and both must be whole milliseconds.
func NewRange(start, end time.Time) (Range, error) {
	if start.After(end) {
		return Range{}, fmt.Errorf("%w: %s > %s", ErrInvertedRange,
			start.Format(time.RFC3339Nano), end.Format(time.RFC3339Nano))
	}
	for _, t := range []time.Time{start, end} {
		if !IsWholeMillis(t) {
			return Range{}, fmt.Errorf("%w: range bound %s", ErrSubMillisecond, t.Format(time.RFC3339Nano))
		}
	}
	return Range{Start: start, End: end}, nil
}

// MustRange is NewRange for literals; it panics on an invalid range.
func MustRange(start, end time.Time) Range {
	r, err := NewRange(start, end)
	if err != nil {
		panic(err)
	}
	return r
}

// Duration returns End - Start.
func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Contains reports whether Start <= t <= End.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// IsEmpty reports whether the range has zero length.
func (r Range) IsEmpty() bool {
	return r.Start.Equal(r.End)
}

// Overlaps reports whether the half-open spans [r.Start, r.End) and
// [start, end) share any instant.
func (r Range) Overlaps(start, end time.Time) bool {
	return start.Before(r.End) && r.Start.Before(end)
}

// Equal reports whether both bounds are the same instants.
func (r Range) Equal(o Range) bool {
	return r.Start.Equal(o.Start) && r.End.Equal(o.End)
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s)", FormatInstant(r.Start), FormatInstant(r.End))
}

// FromMillis converts Unix milliseconds to a UTC instant.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Millis converts an instant to Unix milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// IsWholeMillis reports whether t survives a round trip through Millis.
func IsWholeMillis(t time.Time) bool {
	return FromMillis(Millis(t)).Equal(t)
}

// ParseInstant accepts either integer Unix milliseconds or an RFC 3339
// timestamp with at most millisecond precision.
func ParseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty instant")
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return FromMillis(ms), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("instant %q is neither milliseconds nor RFC 3339: %w", s, err)
	}
	if !IsWholeMillis(t) {
		return time.Time{}, fmt.Errorf("instant %q: %w", s, ErrSubMillisecond)
	}
	return t.UTC(), nil
}

// FormatInstant renders an instant the way ParseInstant reads it back.
func FormatInstant(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
