// Package timezone converts between wall-clock strings, IANA zone identifiers and absolute
// instants.
//
// A wall-clock string has the form YYYY-MM-DDTHH:mm[:ss] and carries no offset. It only gets an
// absolute meaning once it is paired with a zone. Every string produced by this package is the
// 19 character form YYYY-MM-DDTHH:mm:ss.
package timezone

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// WallClockLayout is the canonical layout of a wall-clock string.
const WallClockLayout = "2006-01-02T15:04:05"

// DateLayout is the layout of a calendar date.
const DateLayout = "2006-01-02"

var (
	wallClockPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}(:\d{2})?$`)
	datePattern      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	offsetPattern    = regexp.MustCompile(`T.*([Zz]|[+-]\d{2}:?\d{2})$`)
)

var ErrUnknownZone = errors.New("unknown time zone")

// MalformedTimeError reports a date or time value that does not match the expected pattern.
type MalformedTimeError struct {
	Value    string
	Expected string
}

func (e *MalformedTimeError) Error() string {
	return fmt.Sprintf("malformed time %q: expected %s", e.Value, e.Expected)
}

func malformedWallClock(value string) error {
	return &MalformedTimeError{Value: value, Expected: "YYYY-MM-DDTHH:mm[:ss]"}
}

// LoadZone resolves an IANA identifier. The empty string and "Local" are rejected because they
// do not name a zone the caller declared.
func LoadZone(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownZone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownZone, name)
	}
	return loc, nil
}

// IsUTC reports whether the zone name is one of the spellings of UTC.
func IsUTC(name string) bool {
	switch strings.ToUpper(name) {
	case "UTC", "ETC/UTC", "GMT", "ETC/GMT", "Z", "ZULU", "UNIVERSAL":
		return true
	}
	return false
}

// HasOffset reports whether dateTime carries a UTC marker or a numeric offset.
func HasOffset(dateTime string) bool {
	return offsetPattern.MatchString(dateTime)
}

// Canonical pads a wall-clock string to the 19 character form without changing its meaning.
func Canonical(dateTime string) (string, error) {
	if !wallClockPattern.MatchString(dateTime) {
		return "", malformedWallClock(dateTime)
	}
	if len(dateTime) == len("2006-01-02T15:04") {
		dateTime += ":00"
	}
	if _, err := time.Parse(WallClockLayout, dateTime); err != nil {
		return "", malformedWallClock(dateTime)
	}
	return dateTime, nil
}

// ToAbsoluteInstant interprets dateTime as wall-clock time in timeZone.
//
// In the repeated hour of a fall-back transition the earlier of the two instants is returned.
// A wall time inside a spring-forward gap is shifted forward by the length of the gap.
func ToAbsoluteInstant(dateTime string, timeZone string) (time.Time, error) {
	canonical, err := Canonical(dateTime)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := LoadZone(timeZone)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(WallClockLayout, canonical, loc)
	if err != nil {
		return time.Time{}, malformedWallClock(dateTime)
	}
	for _, shift := range []time.Duration{time.Hour, 30 * time.Minute} {
		earlier := t.Add(-shift)
		if earlier.In(loc).Format(WallClockLayout) == canonical {
			return earlier, nil
		}
	}
	return t, nil
}

// FormatInZone renders instant as a wall-clock string in timeZone.
func FormatInZone(instant time.Time, timeZone string) (string, error) {
	loc, err := LoadZone(timeZone)
	if err != nil {
		return "", err
	}
	return instant.In(loc).Format(WallClockLayout), nil
}

// parseWithOffset reads a date-time that carries its own offset or UTC marker.
func parseWithOffset(dateTime string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04Z07:00", "2006-01-02T15:04:05Z0700", "2006-01-02T15:04Z0700"} {
		if t, err := time.Parse(layout, dateTime); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &MalformedTimeError{Value: dateTime, Expected: "RFC 3339 date-time"}
}

// Normalize maps dateTime, declared in sourceZone, onto a wall-clock string in targetZone.
//
//   - an explicit offset or UTC marker is honoured literally
//   - a naive string from a UTC source zone is read as UTC
//   - a naive string from another known zone is converted from that zone
//   - a naive string from an unknown or missing zone is kept verbatim
func Normalize(dateTime string, sourceZone string, targetZone string) (string, error) {
	if _, err := LoadZone(targetZone); err != nil {
		return "", err
	}

	if HasOffset(dateTime) {
		instant, err := parseWithOffset(dateTime)
		if err != nil {
			return "", err
		}
		return FormatInZone(instant, targetZone)
	}

	canonical, err := Canonical(dateTime)
	if err != nil {
		return "", err
	}

	switch {
	case sourceZone == targetZone:
		return canonical, nil
	case IsUTC(sourceZone):
		instant, err := time.ParseInLocation(WallClockLayout, canonical, time.UTC)
		if err != nil {
			return "", malformedWallClock(dateTime)
		}
		return FormatInZone(instant, targetZone)
	}

	if _, err := LoadZone(sourceZone); err == nil {
		instant, err := ToAbsoluteInstant(canonical, sourceZone)
		if err != nil {
			return "", err
		}
		return FormatInZone(instant, targetZone)
	}

	log.Warnf("no reliable source zone (%q) for %s, keeping wall time in %s", sourceZone, canonical, targetZone)
	return canonical, nil
}

// ParseDate validates a YYYY-MM-DD calendar date.
func ParseDate(date string) (time.Time, error) {
	if !datePattern.MatchString(date) {
		return time.Time{}, &MalformedTimeError{Value: date, Expected: "YYYY-MM-DD"}
	}
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, &MalformedTimeError{Value: date, Expected: "YYYY-MM-DD"}
	}
	return t, nil
}

// DayBounds returns the first and the last instant of the calendar date in loc.
func DayBounds(date string, loc *time.Location) (time.Time, time.Time, error) {
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	end := time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, loc).Add(-time.Nanosecond)
	return start, end, nil
}

// NowLocal renders now as wall-clock time in timeZone.
func NowLocal(now time.Time, timeZone string) (string, error) {
	return FormatInZone(now, timeZone)
}
