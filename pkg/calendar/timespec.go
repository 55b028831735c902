package calendar

import (
	"time"

	"github.com/calprompt/calprompt/pkg/timezone"
)

// NormalizeTimeSpec rewrites spec as wall-clock time in targetZone. The result always carries
// targetZone and never an offset. All-day specs keep their date.
func NormalizeTimeSpec(spec TimeSpec, targetZone string) (TimeSpec, error) {
	if _, err := timezone.LoadZone(targetZone); err != nil {
		return TimeSpec{}, err
	}
	if spec.IsAllDay() {
		if _, err := timezone.ParseDate(spec.Date); err != nil {
			return TimeSpec{}, err
		}
		return TimeSpec{Date: spec.Date, TimeZone: targetZone}, nil
	}
	dateTime, err := timezone.Normalize(spec.DateTime, spec.TimeZone, targetZone)
	if err != nil {
		return TimeSpec{}, err
	}
	return TimeSpec{DateTime: dateTime, TimeZone: targetZone}, nil
}

// Instant returns the absolute start of the spec. All-day specs start at midnight in their zone,
// or in UTC when no zone is set.
func (t TimeSpec) Instant() (time.Time, error) {
	if t.IsAllDay() {
		loc := time.UTC
		if t.TimeZone != "" {
			l, err := timezone.LoadZone(t.TimeZone)
			if err != nil {
				return time.Time{}, err
			}
			loc = l
		}
		start, _, err := timezone.DayBounds(t.Date, loc)
		return start, err
	}
	return timezone.ToAbsoluteInstant(t.DateTime, t.TimeZone)
}

// LocalDate returns the calendar date of the spec as seen from loc.
func (t TimeSpec) LocalDate(loc *time.Location) (string, error) {
	if t.IsAllDay() {
		return t.Date, nil
	}
	instant, err := t.Instant()
	if err != nil {
		return "", err
	}
	return instant.In(loc).Format(timezone.DateLayout), nil
}
