package models

import (
	"fmt"
	"strings"
	"time"
)

// TimeOfDayKind tags the parse outcome for a wall-clock value.
type TimeOfDayKind int

const (
	// TimeAbsent marks a missing punch. Absent values render as the
	// absence marker and contribute nothing to undertime.
	TimeAbsent TimeOfDayKind = iota
	// TimeValid holds a parsed wall-clock time.
	TimeValid
	// TimeMalformed marks free-text input that failed to parse. It behaves
	// like an absent value everywhere downstream; a single bad punch must
	// not abort the aggregation of a whole date range.
	TimeMalformed
)

// AbsenceMarker is the display placeholder for a missing punch.
const AbsenceMarker = "-"

// TimeOfDay is a validated wall-clock value. It is constructed only through
// ParseTimeOfDay / ClockOf, never raises on malformed input, and is the sole
// time representation consumed by the status deriver and the undertime
// calculator.
type TimeOfDay struct {
	Kind   TimeOfDayKind
	Hour   int
	Minute int
}

// ParseTimeOfDay accepts stored 24-hour values ("08:00:00", "08:00"),
// display values ("8:00 AM"), the absence marker, or empty input. Anything
// else yields a malformed value.
func ParseTimeOfDay(raw string) TimeOfDay {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == AbsenceMarker {
		return TimeOfDay{Kind: TimeAbsent}
	}
	for _, layout := range []string{"15:04:05", "15:04", "3:04 PM", "03:04 PM"} {
		if t, err := time.Parse(layout, strings.ToUpper(trimmed)); err == nil {
			return TimeOfDay{Kind: TimeValid, Hour: t.Hour(), Minute: t.Minute()}
		}
	}
	return TimeOfDay{Kind: TimeMalformed}
}

// ClockOf builds a TimeOfDay from a nullable stored clock string.
func ClockOf(raw *string) TimeOfDay {
	if raw == nil {
		return TimeOfDay{Kind: TimeAbsent}
	}
	return ParseTimeOfDay(*raw)
}

// Valid reports whether the value holds a usable clock time.
func (t TimeOfDay) Valid() bool {
	return t.Kind == TimeValid
}

// MinutesOfDay returns minutes since midnight, or zero for non-valid values.
func (t TimeOfDay) MinutesOfDay() int {
	if t.Kind != TimeValid {
		return 0
	}
	return t.Hour*60 + t.Minute
}

// Display renders the 12-hour form ("8:00 AM") or the absence marker.
func (t TimeOfDay) Display() string {
	if t.Kind != TimeValid {
		return AbsenceMarker
	}
	hour := t.Hour % 12
	if hour == 0 {
		hour = 12
	}
	suffix := "AM"
	if t.Hour >= 12 {
		suffix = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", hour, t.Minute, suffix)
}

// Clock renders the stored 24-hour form ("08:00:00"). Non-valid values
// return an empty string.
func (t TimeOfDay) Clock() string {
	if t.Kind != TimeValid {
		return ""
	}
	return fmt.Sprintf("%02d:%02d:00", t.Hour, t.Minute)
}

// After reports whether t falls strictly after other. Non-valid values never
// compare after anything.
func (t TimeOfDay) After(other TimeOfDay) bool {
	if !t.Valid() || !other.Valid() {
		return false
	}
	return t.MinutesOfDay() > other.MinutesOfDay()
}
