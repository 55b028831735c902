package event_bus

import "time"

const (
	CalendarEventCreatedType EventType = "calendar.event.created"
	CalendarEventUpdatedType EventType = "calendar.event.updated"
	CalendarEventDeletedType EventType = "calendar.event.deleted"
	PromptHandledType        EventType = "prompt.handled"
)

// CalendarEventChanged is published after a store mutation succeeded. Start and End are zero
// for deletions.
type CalendarEventChanged struct {
	EventID  string
	Summary  string
	Start    time.Time
	End      time.Time
	TimeZone string
}

// PromptHandled is published once per prompt, whatever the outcome.
type PromptHandled struct {
	Intent   string
	Envelope string
	// Error is the failure class, empty on success.
	Error    string
	Duration time.Duration
}
