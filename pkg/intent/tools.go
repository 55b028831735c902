package intent

import (
	"github.com/calprompt/calprompt/pkg/engine"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	ToolListEvents  = "list_events"
	ToolCreateEvent = "create_event"
	ToolUpdateEvent = "update_event"
	ToolDeleteEvent = "delete_event"
)

func timeSpecSchema(what string) jsonschema.Definition {
	return jsonschema.Definition{
		Type:        jsonschema.Object,
		Description: what,
		Properties: map[string]jsonschema.Definition{
			"dateTime": {
				Type:        jsonschema.String,
				Description: "Local wall-clock time YYYY-MM-DDTHH:mm:ss in the user's time zone, without Z or offset",
			},
			"timeZone": {
				Type:        jsonschema.String,
				Description: "IANA time zone of dateTime, always the user's time zone",
			},
		},
		Required: []string{"dateTime", "timeZone"},
	}
}

func eventProperties() map[string]jsonschema.Definition {
	return map[string]jsonschema.Definition{
		"summary":     {Type: jsonschema.String, Description: "Title of the event"},
		"location":    {Type: jsonschema.String, Description: "Where the event takes place"},
		"description": {Type: jsonschema.String, Description: "Notes for the event"},
		"start":       timeSpecSchema("When the event starts"),
		"end":         timeSpecSchema("When the event ends; one hour after start when the user gives no duration"),
		"recurrence": {
			Type:        jsonschema.Array,
			Description: "RFC 5545 lines such as RRULE:FREQ=WEEKLY;BYDAY=MO, only when the user asks for a repeating event",
			Items:       &jsonschema.Definition{Type: jsonschema.String},
		},
		"attendees": {
			Type: jsonschema.Array,
			Items: &jsonschema.Definition{
				Type:       jsonschema.Object,
				Properties: map[string]jsonschema.Definition{"email": {Type: jsonschema.String}},
				Required:   []string{"email"},
			},
		},
		"reminders": {
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"useDefault": {Type: jsonschema.Boolean},
				"overrides": {
					Type: jsonschema.Array,
					Items: &jsonschema.Definition{
						Type: jsonschema.Object,
						Properties: map[string]jsonschema.Definition{
							"method":  {Type: jsonschema.String, Enum: []string{"email", "popup"}},
							"minutes": {Type: jsonschema.Integer},
						},
						Required: []string{"method", "minutes"},
					},
				},
			},
		},
	}
}

func targetProperties() map[string]jsonschema.Definition {
	return map[string]jsonschema.Definition{
		"eventId": {
			Type:        jsonschema.String,
			Description: "Only when the user gives an explicit event identifier. Never guess one.",
		},
		"query": {
			Type:        jsonschema.String,
			Description: "Words identifying the event, e.g. \"dentist\" or \"lunch with Sam\"",
		},
		"date": {
			Type:        jsonschema.String,
			Description: "Calendar date YYYY-MM-DD of the event when the user mentions one",
		},
	}
}

// Catalog returns the four operations offered to the engine.
func Catalog() []engine.Tool {
	updateProps := targetProperties()
	updateProps["patch"] = jsonschema.Definition{
		Type:        jsonschema.Object,
		Description: "Only the fields that change",
		Properties:  eventProperties(),
	}

	return []engine.Tool{
		{
			Name:        ToolListEvents,
			Description: "List the user's upcoming calendar events",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"maxResults": {Type: jsonschema.Integer, Description: "How many events to return, default 10"},
				},
			},
		},
		{
			Name:        ToolCreateEvent,
			Description: "Create a new calendar event",
			Parameters: jsonschema.Definition{
				Type:       jsonschema.Object,
				Properties: eventProperties(),
				Required:   []string{"summary", "start", "end"},
			},
		},
		{
			Name:        ToolUpdateEvent,
			Description: "Change an existing event. Identify it by query and/or date unless an explicit eventId was given.",
			Parameters: jsonschema.Definition{
				Type:       jsonschema.Object,
				Properties: updateProps,
				Required:   []string{"patch"},
			},
		},
		{
			Name:        ToolDeleteEvent,
			Description: "Delete an existing event. Identify it by query and/or date unless an explicit eventId was given.",
			Parameters: jsonschema.Definition{
				Type:       jsonschema.Object,
				Properties: targetProperties(),
			},
		},
	}
}
