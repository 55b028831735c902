package calendar

// Event is the store-native representation of a calendar event. It is never owned by the
// pipeline: events are fetched, changed in memory and written back.
type Event struct {
	ID          string     `json:"id,omitempty"`
	ETag        string     `json:"etag,omitempty"`
	Summary     string     `json:"summary"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description,omitempty"`
	Start       TimeSpec   `json:"start"`
	End         TimeSpec   `json:"end"`
	Recurrence  []string   `json:"recurrence"`
	Attendees   []Attendee `json:"attendees"`
	Reminders   Reminders  `json:"reminders"`
	Status      string     `json:"status,omitempty"`
	HtmlLink    string     `json:"htmlLink,omitempty"`
}

// TimeSpec is a wall-clock time paired with the IANA zone that gives it meaning.
// DateTime never carries an offset. Date is only set for all-day events.
type TimeSpec struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone"`
}

func (t TimeSpec) IsAllDay() bool {
	return t.DateTime == "" && t.Date != ""
}

type Attendee struct {
	Email string `json:"email"`
}

type Reminders struct {
	UseDefault bool               `json:"useDefault"`
	Overrides  []ReminderOverride `json:"overrides"`
}

type ReminderOverride struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

// EventPatch is a partial Event. Nil fields are absent and leave the target untouched.
// ID and ETag are accepted on the wire but never applied by a merge.
type EventPatch struct {
	ID          *string    `json:"id,omitempty"`
	ETag        *string    `json:"etag,omitempty"`
	Summary     *string    `json:"summary,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Description *string    `json:"description,omitempty"`
	Start       *TimeSpec  `json:"start,omitempty"`
	End         *TimeSpec  `json:"end,omitempty"`
	Recurrence  []string   `json:"recurrence,omitempty"`
	Attendees   []Attendee `json:"attendees,omitempty"`
	Reminders   *Reminders `json:"reminders,omitempty"`
}

// IsEmpty reports whether the patch would change any writable field.
func (p EventPatch) IsEmpty() bool {
	return p.Summary == nil && p.Location == nil && p.Description == nil &&
		p.Start == nil && p.End == nil && p.Recurrence == nil &&
		p.Attendees == nil && p.Reminders == nil
}

// Candidate is the compact form of an event offered back to the user for disambiguation.
type Candidate struct {
	ID      string   `json:"id"`
	Summary string   `json:"summary"`
	Start   TimeSpec `json:"start"`
	End     TimeSpec `json:"end"`
}

func (e Event) Candidate() Candidate {
	return Candidate{
		ID:      e.ID,
		Summary: e.Summary,
		Start:   e.Start,
		End:     e.End,
	}
}
