package caldav

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/calprompt/calprompt/pkg/calendar"
	"github.com/calprompt/calprompt/pkg/timezone"
	"github.com/emersion/go-ical"
	log "github.com/sirupsen/logrus"
)

const productID = "-//calprompt//CalDAV//EN"

// eventToICS encodes event as a VCALENDAR holding one VEVENT. Timed events are written with
// their TZID so the server keeps the wall-clock time.
func eventToICS(event calendar.Event, now time.Time) (*ical.Calendar, error) {
	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, event.ID)
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	vevent.Props.SetText(ical.PropSummary, event.Summary)
	if event.Description != "" {
		vevent.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		vevent.Props.SetText(ical.PropLocation, event.Location)
	}
	if event.Status != "" {
		vevent.Props.SetText(ical.PropStatus, strings.ToUpper(event.Status))
	}

	if err := setTimeSpec(vevent.Props, ical.PropDateTimeStart, event.Start); err != nil {
		return nil, err
	}
	if err := setTimeSpec(vevent.Props, ical.PropDateTimeEnd, event.End); err != nil {
		return nil, err
	}

	for _, line := range event.Recurrence {
		prop, err := recurrenceProp(line)
		if err != nil {
			return nil, err
		}
		vevent.Props.Add(prop)
	}
	for _, a := range event.Attendees {
		prop := ical.NewProp(ical.PropAttendee)
		prop.Value = "mailto:" + a.Email
		vevent.Props.Add(prop)
	}
	for _, o := range event.Reminders.Overrides {
		vevent.Children = append(vevent.Children, alarm(o, event.Summary))
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Children = append(cal.Children, vevent.Component)
	return cal, nil
}

func setTimeSpec(props ical.Props, name string, spec calendar.TimeSpec) error {
	if spec.IsAllDay() {
		date, err := timezone.ParseDate(spec.Date)
		if err != nil {
			return err
		}
		props.SetDate(name, date)
		return nil
	}
	instant, err := spec.Instant()
	if err != nil {
		return err
	}
	loc, err := timezone.LoadZone(spec.TimeZone)
	if err != nil {
		return err
	}
	props.SetDateTime(name, instant.In(loc))
	return nil
}

// recurrenceProp turns an RFC 5545 content line such as "RDATE;TZID=Europe/Warsaw:20240312T090000"
// into a property.
func recurrenceProp(line string) (*ical.Prop, error) {
	head, value, ok := strings.Cut(line, ":")
	if !ok {
		return nil, fmt.Errorf("recurrence line %q has no value", line)
	}
	parts := strings.Split(head, ";")
	prop := ical.NewProp(strings.ToUpper(parts[0]))
	prop.Value = value
	for _, param := range parts[1:] {
		k, v, ok := strings.Cut(param, "=")
		if !ok {
			return nil, fmt.Errorf("recurrence line %q has a malformed parameter", line)
		}
		prop.Params.Set(strings.ToUpper(k), v)
	}
	return prop, nil
}

func alarm(o calendar.ReminderOverride, summary string) *ical.Component {
	valarm := ical.NewComponent(ical.CompAlarm)
	action := "DISPLAY"
	if o.Method == "email" {
		action = "EMAIL"
	}
	valarm.Props.SetText(ical.PropAction, action)
	trigger := ical.NewProp(ical.PropTrigger)
	trigger.Value = fmt.Sprintf("-PT%dM", o.Minutes)
	valarm.Props.Set(trigger)
	valarm.Props.SetText(ical.PropDescription, summary)
	return valarm
}

// icsToEvent decodes the first VEVENT of cal. Times come back as wall-clock time in the zone
// named by their TZID, UTC otherwise.
func icsToEvent(cal *ical.Calendar, etag string) (calendar.Event, error) {
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		event := calendar.Event{ETag: etag}
		props := comp.Props
		event.ID = text(props, ical.PropUID)
		event.Summary = text(props, ical.PropSummary)
		event.Description = text(props, ical.PropDescription)
		event.Location = text(props, ical.PropLocation)
		event.Status = strings.ToLower(text(props, ical.PropStatus))

		start, err := timeSpec(props.Get(ical.PropDateTimeStart))
		if err != nil {
			return calendar.Event{}, fmt.Errorf("event %s: %w", event.ID, err)
		}
		event.Start = start
		end, err := endSpec(props, start)
		if err != nil {
			return calendar.Event{}, fmt.Errorf("event %s: %w", event.ID, err)
		}
		event.End = end

		for _, name := range []string{ical.PropRecurrenceRule, "EXRULE", ical.PropRecurrenceDates, ical.PropExceptionDates} {
			for _, p := range props.Values(name) {
				event.Recurrence = append(event.Recurrence, contentLine(p))
			}
		}
		for _, p := range props.Values(ical.PropAttendee) {
			email := strings.TrimPrefix(strings.TrimPrefix(p.Value, "mailto:"), "MAILTO:")
			event.Attendees = append(event.Attendees, calendar.Attendee{Email: email})
		}
		for _, child := range comp.Children {
			if child.Name != ical.CompAlarm {
				continue
			}
			if o, ok := reminder(child); ok {
				event.Reminders.Overrides = append(event.Reminders.Overrides, o)
			}
		}
		event.Reminders.UseDefault = len(event.Reminders.Overrides) == 0
		return event, nil
	}
	return calendar.Event{}, fmt.Errorf("no VEVENT in calendar object")
}

func text(props ical.Props, name string) string {
	p := props.Get(name)
	if p == nil {
		return ""
	}
	v, err := p.Text()
	if err != nil {
		return p.Value
	}
	return v
}

func timeSpec(p *ical.Prop) (calendar.TimeSpec, error) {
	if p == nil {
		return calendar.TimeSpec{}, fmt.Errorf("missing %s", ical.PropDateTimeStart)
	}
	zone := p.Params.Get(ical.ParamTimezoneID)
	if p.Params.Get(ical.ParamValue) == string(ical.ValueDate) {
		t, err := p.DateTime(time.UTC)
		if err != nil {
			return calendar.TimeSpec{}, err
		}
		if zone == "" {
			zone = "UTC"
		}
		return calendar.TimeSpec{Date: t.Format(timezone.DateLayout), TimeZone: zone}, nil
	}

	instant, err := p.DateTime(time.UTC)
	if err != nil {
		return calendar.TimeSpec{}, err
	}
	if _, err := timezone.LoadZone(zone); err != nil {
		zone = "UTC"
	}
	local, err := timezone.FormatInZone(instant, zone)
	if err != nil {
		return calendar.TimeSpec{}, err
	}
	return calendar.TimeSpec{DateTime: local, TimeZone: zone}, nil
}

// endSpec reads DTEND, falling back to DURATION and then to the start itself.
func endSpec(props ical.Props, start calendar.TimeSpec) (calendar.TimeSpec, error) {
	if p := props.Get(ical.PropDateTimeEnd); p != nil {
		return timeSpec(p)
	}
	if p := props.Get(ical.PropDuration); p != nil {
		d, err := p.Duration()
		if err != nil {
			return calendar.TimeSpec{}, err
		}
		instant, err := start.Instant()
		if err != nil {
			return calendar.TimeSpec{}, err
		}
		if start.IsAllDay() {
			return calendar.TimeSpec{Date: instant.Add(d).Format(timezone.DateLayout), TimeZone: start.TimeZone}, nil
		}
		local, err := timezone.FormatInZone(instant.Add(d), start.TimeZone)
		if err != nil {
			return calendar.TimeSpec{}, err
		}
		return calendar.TimeSpec{DateTime: local, TimeZone: start.TimeZone}, nil
	}
	return start, nil
}

func contentLine(p ical.Prop) string {
	var b strings.Builder
	b.WriteString(p.Name)
	keys := make([]string, 0, len(p.Params))
	for k := range p.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(";" + k + "=" + strings.Join(p.Params[k], ","))
	}
	b.WriteString(":" + p.Value)
	return b.String()
}

func reminder(valarm *ical.Component) (calendar.ReminderOverride, bool) {
	trigger := valarm.Props.Get(ical.PropTrigger)
	if trigger == nil {
		return calendar.ReminderOverride{}, false
	}
	d, err := trigger.Duration()
	if err != nil {
		log.Debugf("ignoring alarm with absolute trigger %q", trigger.Value)
		return calendar.ReminderOverride{}, false
	}
	method := "popup"
	if strings.EqualFold(text(valarm.Props, ical.PropAction), "EMAIL") {
		method = "email"
	}
	minutes := int(-d / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	return calendar.ReminderOverride{Method: method, Minutes: minutes}, true
}

// objectName is the file name an event is stored under in the collection.
func objectName(uid string) string {
	return url.PathEscape(uid) + ".ics"
}
