package operation

import (
	"encoding/json"
	"fmt"

	"github.com/calprompt/calprompt/pkg/calendar"
)

type EnvelopeType string

const (
	TypeText           EnvelopeType = "text"
	TypeEvents         EnvelopeType = "events"
	TypeEvent          EnvelopeType = "event"
	TypeSuccess        EnvelopeType = "success"
	TypeDisambiguation EnvelopeType = "disambiguation"
)

const (
	MessageNotFound = "No matching event found."
	MessageCreated  = "Event created successfully"
	MessageUpdated  = "Event updated successfully"
	MessageDeleted  = "Event deleted successfully"
)

// Envelope is the single response of a prompt. Only the fields belonging to Type are set and
// only those are marshalled.
type Envelope struct {
	Type       EnvelopeType
	Message    string
	Events     []calendar.Event
	Event      *calendar.Event
	EventID    string
	Candidates []calendar.Candidate
}

func TextEnvelope(message string) Envelope {
	return Envelope{Type: TypeText, Message: message}
}

func EventsEnvelope(events []calendar.Event) Envelope {
	if events == nil {
		events = []calendar.Event{}
	}
	return Envelope{Type: TypeEvents, Events: events}
}

func EventEnvelope(event calendar.Event, message string) Envelope {
	return Envelope{Type: TypeEvent, Event: &event, Message: message}
}

func SuccessEnvelope(eventID string, message string) Envelope {
	return Envelope{Type: TypeSuccess, EventID: eventID, Message: message}
}

func DisambiguationEnvelope(events []calendar.Event) Envelope {
	candidates := make([]calendar.Candidate, 0, len(events))
	for _, e := range events {
		candidates = append(candidates, e.Candidate())
	}
	return Envelope{
		Type:       TypeDisambiguation,
		Message:    fmt.Sprintf("Found %d matching events. Which one did you mean?", len(candidates)),
		Candidates: candidates,
	}
}

type textJSON struct {
	Type    EnvelopeType `json:"type"`
	Message string       `json:"message"`
}

type eventsJSON struct {
	Type   EnvelopeType     `json:"type"`
	Events []calendar.Event `json:"events"`
	Count  int              `json:"count"`
}

type eventJSON struct {
	Type    EnvelopeType    `json:"type"`
	Event   *calendar.Event `json:"event"`
	Message string          `json:"message,omitempty"`
}

type successJSON struct {
	Type    EnvelopeType `json:"type"`
	Success bool         `json:"success"`
	Message string       `json:"message"`
	EventID string       `json:"eventId,omitempty"`
}

type disambiguationJSON struct {
	Type       EnvelopeType         `json:"type"`
	Message    string               `json:"message"`
	Candidates []calendar.Candidate `json:"candidates"`
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case TypeText:
		return json.Marshal(textJSON{e.Type, e.Message})
	case TypeEvents:
		events := e.Events
		if events == nil {
			events = []calendar.Event{}
		}
		return json.Marshal(eventsJSON{e.Type, events, len(events)})
	case TypeEvent:
		return json.Marshal(eventJSON{e.Type, e.Event, e.Message})
	case TypeSuccess:
		return json.Marshal(successJSON{e.Type, true, e.Message, e.EventID})
	case TypeDisambiguation:
		candidates := e.Candidates
		if candidates == nil {
			candidates = []calendar.Candidate{}
		}
		return json.Marshal(disambiguationJSON{e.Type, e.Message, candidates})
	}
	return nil, fmt.Errorf("unknown envelope type %q", e.Type)
}
