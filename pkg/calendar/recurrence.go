package calendar

import (
	"strings"
	"time"

	"github.com/calprompt/calprompt/pkg/timezone"
	log "github.com/sirupsen/logrus"
	"github.com/teambition/rrule-go"
)

// IsRecurring reports whether the event is a series master carrying an RRULE.
func (e Event) IsRecurring() bool {
	return recurrenceRule(e.Recurrence) != ""
}

// NextOccurrence returns the start of the first occurrence that is in progress or starts at or
// after after. Recurring events are expanded from their RRULE.
func (e Event) NextOccurrence(after time.Time) (time.Time, bool) {
	start, duration, ok := e.span()
	if !ok {
		return time.Time{}, false
	}
	r, ok := e.rule(start)
	if !ok {
		if start.Add(duration).After(after) || !start.Before(after) {
			return start, true
		}
		return time.Time{}, false
	}
	next := r.After(after.Add(-duration), false)
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

// OccurrencesBetween returns the starts of the occurrences beginning within [from, to].
func (e Event) OccurrencesBetween(from time.Time, to time.Time) []time.Time {
	start, _, ok := e.span()
	if !ok {
		return nil
	}
	r, ok := e.rule(start)
	if !ok {
		if start.Before(from) || start.After(to) {
			return nil
		}
		return []time.Time{start}
	}
	return r.Between(from, to, true)
}

func (e Event) span() (time.Time, time.Duration, bool) {
	start, err := e.Start.Instant()
	if err != nil {
		return time.Time{}, 0, false
	}
	end, err := e.End.Instant()
	if err != nil || end.Before(start) {
		end = start
	}
	return start, end.Sub(start), true
}

// rule builds the event's RRULE anchored at start in the event's own zone, so daylight saving
// shifts keep the wall clock. Unreadable rules are treated as a single occurrence.
func (e Event) rule(start time.Time) (*rrule.RRule, bool) {
	line := recurrenceRule(e.Recurrence)
	if line == "" {
		return nil, false
	}
	r, err := rrule.StrToRRule(line)
	if err != nil {
		log.Warnf("event %s has unreadable recurrence %q: %v", e.ID, line, err)
		return nil, false
	}
	if loc, err := timezone.LoadZone(e.Start.TimeZone); err == nil {
		start = start.In(loc)
	}
	r.DTStart(start)
	return r, true
}

func recurrenceRule(lines []string) string {
	for _, line := range lines {
		if rule, ok := strings.CutPrefix(line, "RRULE:"); ok {
			return rule
		}
	}
	return ""
}
