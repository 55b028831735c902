package google

import (
	"context"
	"strings"
	"time"

	"github.com/calprompt/calprompt/pkg/calendar"
	"github.com/calprompt/calprompt/pkg/timezone"
	log "github.com/sirupsen/logrus"
	gcal "google.golang.org/api/calendar/v3"
)

func toGoogleEvent(event calendar.Event) *gcal.Event {
	return overlayGoogleEvent(&gcal.Event{Id: event.ID, Etag: event.ETag}, event)
}

// overlayGoogleEvent writes the fields calendar.Event models onto item and leaves the rest alone,
// so colours, conference data and attendee responses survive an update. Attendees already on
// item keep their entry; id and etag are never touched.
func overlayGoogleEvent(item *gcal.Event, event calendar.Event) *gcal.Event {
	item.Summary = event.Summary
	item.Location = event.Location
	item.Description = event.Description
	item.Start = toGoogleDateTime(event.Start)
	item.End = toGoogleDateTime(event.End)
	item.Recurrence = event.Recurrence

	known := make(map[string]*gcal.EventAttendee, len(item.Attendees))
	for _, a := range item.Attendees {
		known[strings.ToLower(a.Email)] = a
	}
	item.Attendees = nil
	for _, a := range event.Attendees {
		if existing, ok := known[strings.ToLower(a.Email)]; ok {
			item.Attendees = append(item.Attendees, existing)
			continue
		}
		item.Attendees = append(item.Attendees, &gcal.EventAttendee{Email: a.Email})
	}

	item.Reminders = &gcal.EventReminders{
		UseDefault: event.Reminders.UseDefault,
		// false is a meaningful value here
		ForceSendFields: []string{"UseDefault"},
	}
	for _, o := range event.Reminders.Overrides {
		item.Reminders.Overrides = append(item.Reminders.Overrides, &gcal.EventReminder{
			Method:          o.Method,
			Minutes:         int64(o.Minutes),
			ForceSendFields: []string{"Minutes"},
		})
	}
	return item
}

// toGoogleDateTime sends the wall-clock time together with its zone; Google accepts a dateTime
// without offset when timeZone is set.
func toGoogleDateTime(spec calendar.TimeSpec) *gcal.EventDateTime {
	if spec.IsAllDay() {
		return &gcal.EventDateTime{Date: spec.Date, TimeZone: spec.TimeZone}
	}
	return &gcal.EventDateTime{DateTime: spec.DateTime, TimeZone: spec.TimeZone}
}

func (c *Calendar) fromGoogleEvents(ctx context.Context, items []*gcal.Event) []calendar.Event {
	events := make([]calendar.Event, 0, len(items))
	for _, item := range items {
		if item.Status == "cancelled" {
			continue
		}
		events = append(events, c.fromGoogleEvent(ctx, item))
	}
	return events
}

func (c *Calendar) fromGoogleEvent(ctx context.Context, item *gcal.Event) calendar.Event {
	event := calendar.Event{
		ID:          item.Id,
		ETag:        item.Etag,
		Summary:     item.Summary,
		Location:    item.Location,
		Description: item.Description,
		Start:       c.fromGoogleDateTime(ctx, item.Start, item.Id),
		End:         c.fromGoogleDateTime(ctx, item.End, item.Id),
		Recurrence:  item.Recurrence,
		Status:      item.Status,
		HtmlLink:    item.HtmlLink,
	}
	for _, a := range item.Attendees {
		event.Attendees = append(event.Attendees, calendar.Attendee{Email: a.Email})
	}
	if item.Reminders != nil {
		event.Reminders.UseDefault = item.Reminders.UseDefault
		for _, o := range item.Reminders.Overrides {
			event.Reminders.Overrides = append(event.Reminders.Overrides, calendar.ReminderOverride{
				Method:  o.Method,
				Minutes: int(o.Minutes),
			})
		}
	}
	return event
}

// fromGoogleDateTime turns Google's RFC 3339 instant back into wall-clock time in the event's
// zone, or the calendar's zone when the event has none.
func (c *Calendar) fromGoogleDateTime(ctx context.Context, dt *gcal.EventDateTime, eventId string) calendar.TimeSpec {
	if dt == nil {
		return calendar.TimeSpec{}
	}
	zone := dt.TimeZone
	if zone == "" {
		zone = c.calendarZone(ctx)
	}
	if dt.DateTime == "" {
		return calendar.TimeSpec{Date: dt.Date, TimeZone: zone}
	}

	instant, err := time.Parse(time.RFC3339, dt.DateTime)
	if err != nil {
		log.Warnf("event %s has unreadable dateTime %q: %v", eventId, dt.DateTime, err)
		return calendar.TimeSpec{DateTime: dt.DateTime, TimeZone: zone}
	}
	local, err := timezone.FormatInZone(instant, zone)
	if err != nil {
		log.Warnf("event %s uses unknown zone %q, reading it in UTC", eventId, zone)
		local, _ = timezone.FormatInZone(instant, "UTC")
		zone = "UTC"
	}
	return calendar.TimeSpec{DateTime: local, TimeZone: zone}
}
