package operation

import (
	"github.com/calprompt/calprompt/pkg/calendar"
	"github.com/calprompt/calprompt/pkg/timezone"
	log "github.com/sirupsen/logrus"
)

// Merge overlays the fields present in patch onto fetched. The result always keeps the id and
// etag of fetched, whatever the patch carries. A patch moving only the start keeps the event's
// length by shifting the end along.
func Merge(fetched calendar.Event, patch calendar.EventPatch) calendar.Event {
	merged := fetched
	if patch.Summary != nil {
		merged.Summary = *patch.Summary
	}
	if patch.Location != nil {
		merged.Location = *patch.Location
	}
	if patch.Description != nil {
		merged.Description = *patch.Description
	}
	if patch.Start != nil {
		merged.Start = *patch.Start
		if patch.End == nil {
			merged.End = shiftedEnd(fetched, *patch.Start)
		}
	}
	if patch.End != nil {
		merged.End = *patch.End
	}
	if patch.Recurrence != nil {
		merged.Recurrence = make([]string, len(patch.Recurrence))
		copy(merged.Recurrence, patch.Recurrence)
	}
	if patch.Attendees != nil {
		merged.Attendees = make([]calendar.Attendee, len(patch.Attendees))
		copy(merged.Attendees, patch.Attendees)
	}
	if patch.Reminders != nil {
		merged.Reminders = *patch.Reminders
	}

	merged.ID = fetched.ID
	merged.ETag = fetched.ETag
	return merged
}

// shiftedEnd moves fetched's end so it lies as far after start as it did after the old start.
// When the length cannot be worked out the old end is kept.
func shiftedEnd(fetched calendar.Event, start calendar.TimeSpec) calendar.TimeSpec {
	switch {
	case start.IsAllDay() && fetched.Start.IsAllDay() && fetched.End.IsAllDay():
		oldStart, errStart := timezone.ParseDate(fetched.Start.Date)
		oldEnd, errEnd := timezone.ParseDate(fetched.End.Date)
		newStart, errNew := timezone.ParseDate(start.Date)
		if errStart != nil || errEnd != nil || errNew != nil {
			break
		}
		days := int(oldEnd.Sub(oldStart).Hours() / 24)
		return calendar.TimeSpec{Date: newStart.AddDate(0, 0, days).Format(timezone.DateLayout), TimeZone: start.TimeZone}
	case !start.IsAllDay() && !fetched.Start.IsAllDay() && !fetched.End.IsAllDay():
		oldStart, errStart := fetched.Start.Instant()
		oldEnd, errEnd := fetched.End.Instant()
		newStart, errNew := start.Instant()
		if errStart != nil || errEnd != nil || errNew != nil || oldEnd.Before(oldStart) {
			break
		}
		end, err := timezone.FormatInZone(newStart.Add(oldEnd.Sub(oldStart)), start.TimeZone)
		if err != nil {
			break
		}
		return calendar.TimeSpec{DateTime: end, TimeZone: start.TimeZone}
	}
	log.Debugf("keeping the end of event %s after its start moved to %+v", fetched.ID, start)
	return fetched.End
}
