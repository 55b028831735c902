package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/calprompt/calprompt/pkg/calendar"
	"github.com/calprompt/calprompt/pkg/engine"
	"github.com/calprompt/calprompt/pkg/timezone"
	log "github.com/sirupsen/logrus"
)

var ErrEmptyPrompt = errors.New("prompt is empty")

// InvalidStructuredOutputError is returned when the engine's tool invocation does not match the
// declared catalog. Raw holds the engine output for diagnostics.
type InvalidStructuredOutputError struct {
	Tool   string
	Raw    string
	Reason string
}

func (e *InvalidStructuredOutputError) Error() string {
	if e.Tool == "" {
		return fmt.Sprintf("invalid structured output: %s", e.Reason)
	}
	return fmt.Sprintf("invalid structured output for %s: %s", e.Tool, e.Reason)
}

// Context is what the extractor tells the engine about the user's clock.
type Context struct {
	TimeZone string
	// NowLocal is the current wall-clock time in TimeZone.
	NowLocal string
}

func NewContext(now time.Time, timeZone string) (Context, error) {
	nowLocal, err := timezone.NowLocal(now, timeZone)
	if err != nil {
		return Context{}, err
	}
	return Context{TimeZone: timeZone, NowLocal: nowLocal}, nil
}

type Extractor struct {
	engine engine.Engine
	tools  []engine.Tool
}

func NewExtractor(e engine.Engine) *Extractor {
	return &Extractor{engine: e, tools: Catalog()}
}

// Extract turns a prompt into exactly one Intent. Times in create and update payloads are
// normalized to c.TimeZone before the intent is returned.
func (x *Extractor) Extract(ctx context.Context, prompt string, c Context) (Intent, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	system, err := systemContext(c)
	if err != nil {
		return nil, err
	}

	reply, err := x.engine.Generate(ctx, []engine.Message{
		engine.SystemMessage(system),
		engine.UserMessage(prompt),
	}, x.tools)
	if err != nil {
		return nil, fmt.Errorf("failed to generate intent: %w", err)
	}

	switch len(reply.ToolCalls) {
	case 0:
		if strings.TrimSpace(reply.Text) == "" {
			return nil, &InvalidStructuredOutputError{Reason: "engine returned neither text nor a tool call"}
		}
		log.Debug("engine answered with plain text")
		return PlainText{Message: reply.Text}, nil
	case 1:
	default:
		names := make([]string, 0, len(reply.ToolCalls))
		for _, call := range reply.ToolCalls {
			names = append(names, call.Name)
		}
		return nil, &InvalidStructuredOutputError{
			Raw:    strings.Join(names, ","),
			Reason: fmt.Sprintf("expected one tool call, got %d", len(reply.ToolCalls)),
		}
	}

	call := reply.ToolCalls[0]
	log.Debugf("engine invoked %s", call.Name)
	in, err := decodeCall(call, c.TimeZone)
	if err != nil {
		var invalid *InvalidStructuredOutputError
		if errors.As(err, &invalid) {
			log.Warnf("rejected engine output for %s: %s; raw: %s", invalid.Tool, invalid.Reason, invalid.Raw)
		}
		return nil, err
	}
	return in, nil
}

func systemContext(c Context) (string, error) {
	now, err := timezone.ToAbsoluteInstant(c.NowLocal, c.TimeZone)
	if err != nil {
		return "", err
	}
	loc, err := timezone.LoadZone(c.TimeZone)
	if err != nil {
		return "", err
	}
	weekday := now.In(loc).Weekday()

	return fmt.Sprintf(`You are a calendar assistant that turns the user's request into exactly one calendar operation.
The user's time zone is %s. The current local time there is %s (%s).
Express every date and time as local wall-clock time YYYY-MM-DDTHH:mm:ss in %s, without Z or an offset, and set timeZone to %s.
Resolve relative expressions such as "tomorrow evening" against the current local time.
To change or delete an event, describe it with query and/or date. Fill eventId only when the user states an explicit event identifier.
If the request is not about the user's calendar, answer briefly in plain text without calling a tool.`,
		c.TimeZone, c.NowLocal, weekday, c.TimeZone, c.TimeZone), nil
}

type eventArgs struct {
	Summary     string              `json:"summary"`
	Location    string              `json:"location"`
	Description string              `json:"description"`
	Start       *calendar.TimeSpec  `json:"start"`
	End         *calendar.TimeSpec  `json:"end"`
	Recurrence  []string            `json:"recurrence"`
	Attendees   []calendar.Attendee `json:"attendees"`
	Reminders   *calendar.Reminders `json:"reminders"`
}

type listArgs struct {
	MaxResults *int `json:"maxResults"`
}

type targetArgs struct {
	EventID string `json:"eventId"`
	Query   string `json:"query"`
	Date    string `json:"date"`
}

type updateArgs struct {
	targetArgs
	Patch *calendar.EventPatch `json:"patch"`
}

// decodeStrict rejects unknown fields and trailing data.
func decodeStrict(raw string, v any) error {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after arguments")
	}
	return nil
}

func decodeCall(call engine.ToolCall, zone string) (Intent, error) {
	invalid := func(reason string) error {
		return &InvalidStructuredOutputError{Tool: call.Name, Raw: call.Arguments, Reason: reason}
	}

	switch call.Name {
	case ToolListEvents:
		var args listArgs
		if err := decodeStrict(call.Arguments, &args); err != nil {
			return nil, invalid(err.Error())
		}
		l := List{}
		if args.MaxResults != nil {
			if *args.MaxResults < 0 {
				return nil, invalid("maxResults must not be negative")
			}
			l.MaxResults = *args.MaxResults
		}
		return l, nil

	case ToolCreateEvent:
		var args eventArgs
		if err := decodeStrict(call.Arguments, &args); err != nil {
			return nil, invalid(err.Error())
		}
		event, err := args.toEvent(zone)
		if err != nil {
			return nil, wrapInvalid(err, invalid)
		}
		return Create{Event: event}, nil

	case ToolUpdateEvent:
		var args updateArgs
		if err := decodeStrict(call.Arguments, &args); err != nil {
			return nil, invalid(err.Error())
		}
		target, err := args.targetArgs.toTarget()
		if err != nil {
			return nil, wrapInvalid(err, invalid)
		}
		if args.Patch == nil || args.Patch.IsEmpty() {
			return nil, invalid("patch changes nothing")
		}
		patch, err := normalizePatch(*args.Patch, zone)
		if err != nil {
			return nil, wrapInvalid(err, invalid)
		}
		return Update{Target: target, Patch: patch}, nil

	case ToolDeleteEvent:
		var args targetArgs
		if err := decodeStrict(call.Arguments, &args); err != nil {
			return nil, invalid(err.Error())
		}
		target, err := args.toTarget()
		if err != nil {
			return nil, wrapInvalid(err, invalid)
		}
		return Delete{Target: target}, nil
	}

	return nil, invalid("unknown tool")
}

// wrapInvalid keeps time and zone errors as they are and turns everything else into an
// InvalidStructuredOutputError.
func wrapInvalid(err error, invalid func(string) error) error {
	var malformed *timezone.MalformedTimeError
	if errors.As(err, &malformed) || errors.Is(err, timezone.ErrUnknownZone) {
		return err
	}
	return invalid(err.Error())
}

func (a targetArgs) toTarget() (Target, error) {
	t := Target{
		EventID:   strings.TrimSpace(a.EventID),
		Query:     strings.TrimSpace(a.Query),
		DateBound: strings.TrimSpace(a.Date),
	}
	if t.IsEmpty() {
		return Target{}, errors.New("one of eventId, query or date is required")
	}
	if t.DateBound != "" {
		if _, err := timezone.ParseDate(t.DateBound); err != nil {
			return Target{}, err
		}
	}
	return t, nil
}

func (a eventArgs) toEvent(zone string) (calendar.Event, error) {
	if strings.TrimSpace(a.Summary) == "" {
		return calendar.Event{}, errors.New("summary is required")
	}
	if a.Start == nil || a.End == nil {
		return calendar.Event{}, errors.New("start and end are required")
	}
	start, err := calendar.NormalizeTimeSpec(*a.Start, zone)
	if err != nil {
		return calendar.Event{}, err
	}
	end, err := calendar.NormalizeTimeSpec(*a.End, zone)
	if err != nil {
		return calendar.Event{}, err
	}
	if err := checkOrder(start, end); err != nil {
		return calendar.Event{}, err
	}
	if err := validateRecurrence(a.Recurrence); err != nil {
		return calendar.Event{}, err
	}
	if err := validateAttendees(a.Attendees); err != nil {
		return calendar.Event{}, err
	}

	event := calendar.Event{
		Summary:     strings.TrimSpace(a.Summary),
		Location:    a.Location,
		Description: a.Description,
		Start:       start,
		End:         end,
		Recurrence:  a.Recurrence,
		Attendees:   a.Attendees,
		Reminders:   calendar.Reminders{UseDefault: true},
	}
	if a.Reminders != nil {
		if err := validateReminders(*a.Reminders); err != nil {
			return calendar.Event{}, err
		}
		event.Reminders = *a.Reminders
	}
	return event, nil
}

func normalizePatch(p calendar.EventPatch, zone string) (calendar.EventPatch, error) {
	if p.Start != nil {
		start, err := calendar.NormalizeTimeSpec(*p.Start, zone)
		if err != nil {
			return calendar.EventPatch{}, err
		}
		p.Start = &start
	}
	if p.End != nil {
		end, err := calendar.NormalizeTimeSpec(*p.End, zone)
		if err != nil {
			return calendar.EventPatch{}, err
		}
		p.End = &end
	}
	if p.Start != nil && p.End != nil {
		if err := checkOrder(*p.Start, *p.End); err != nil {
			return calendar.EventPatch{}, err
		}
	}
	if err := validateRecurrence(p.Recurrence); err != nil {
		return calendar.EventPatch{}, err
	}
	if err := validateAttendees(p.Attendees); err != nil {
		return calendar.EventPatch{}, err
	}
	if p.Reminders != nil {
		if err := validateReminders(*p.Reminders); err != nil {
			return calendar.EventPatch{}, err
		}
	}
	return p, nil
}

func checkOrder(start, end calendar.TimeSpec) error {
	s, err := start.Instant()
	if err != nil {
		return err
	}
	e, err := end.Instant()
	if err != nil {
		return err
	}
	if e.Before(s) {
		return errors.New("end is before start")
	}
	return nil
}

func validateAttendees(attendees []calendar.Attendee) error {
	for _, a := range attendees {
		if _, err := mail.ParseAddress(a.Email); err != nil {
			return fmt.Errorf("invalid attendee email %q", a.Email)
		}
	}
	return nil
}

func validateReminders(r calendar.Reminders) error {
	for _, o := range r.Overrides {
		if o.Method != "email" && o.Method != "popup" {
			return fmt.Errorf("unsupported reminder method %q", o.Method)
		}
		if o.Minutes < 0 || o.Minutes > 40320 {
			return fmt.Errorf("reminder minutes %d out of range", o.Minutes)
		}
	}
	return nil
}
