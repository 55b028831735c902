package intent

import "github.com/calprompt/calprompt/pkg/calendar"

type Kind string

const (
	KindList      Kind = "list"
	KindCreate    Kind = "create"
	KindUpdate    Kind = "update"
	KindDelete    Kind = "delete"
	KindPlainText Kind = "text"
)

// Intent is the structured decision extracted from a prompt. The concrete types below are the
// only variants the extractor produces.
type Intent interface {
	Kind() Kind
}

type List struct {
	// MaxResults of zero means the store default.
	MaxResults int
}

type Create struct {
	Event calendar.Event
}

// Target identifies the event an update or delete applies to, either directly by id or by a
// free-text query and/or a calendar date to resolve against the store.
type Target struct {
	EventID   string
	Query     string
	DateBound string
}

func (t Target) IsExplicit() bool {
	return t.EventID != ""
}

func (t Target) IsEmpty() bool {
	return t.EventID == "" && t.Query == "" && t.DateBound == ""
}

type Update struct {
	Target
	Patch calendar.EventPatch
}

type Delete struct {
	Target
}

type PlainText struct {
	Message string
}

func (List) Kind() Kind      { return KindList }
func (Create) Kind() Kind    { return KindCreate }
func (Update) Kind() Kind    { return KindUpdate }
func (Delete) Kind() Kind    { return KindDelete }
func (PlainText) Kind() Kind { return KindPlainText }
