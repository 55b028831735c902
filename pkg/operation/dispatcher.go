package operation

import (
	"context"
	"errors"
	"fmt"

	"github.com/calprompt/calprompt/internal/event_bus"
	"github.com/calprompt/calprompt/pkg/calendar"
	"github.com/calprompt/calprompt/pkg/intent"
	"github.com/calprompt/calprompt/pkg/resolver"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultMaxResults = 10
	MaxResultsLimit   = 250
)

var (
	ErrUnsupportedIntent = errors.New("unsupported intent")
	ErrMissingTarget     = errors.New("update and delete need an event id, a query or a date")
)

type Dispatcher struct {
	resolver         *resolver.Resolver
	eventBus         *event_bus.EventBus
	searchWindowDays int
}

func NewDispatcher(r *resolver.Resolver, eventBus *event_bus.EventBus, searchWindowDays int) *Dispatcher {
	return &Dispatcher{resolver: r, eventBus: eventBus, searchWindowDays: searchWindowDays}
}

// Dispatch executes in against store and wraps the outcome in an Envelope. timeZone is the
// user's zone, used to read date bounds during resolution.
func (d *Dispatcher) Dispatch(ctx context.Context, store calendar.Store, in intent.Intent, timeZone string) (Envelope, error) {
	switch in := in.(type) {
	case intent.PlainText:
		return TextEnvelope(in.Message), nil
	case intent.List:
		return d.list(ctx, store, in)
	case intent.Create:
		return d.create(ctx, store, in)
	case intent.Update:
		return d.update(ctx, store, in, timeZone)
	case intent.Delete:
		return d.delete(ctx, store, in, timeZone)
	}
	return Envelope{}, fmt.Errorf("%w: %T", ErrUnsupportedIntent, in)
}

func (d *Dispatcher) list(ctx context.Context, store calendar.Store, in intent.List) (Envelope, error) {
	maxResults := in.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if maxResults > MaxResultsLimit {
		maxResults = MaxResultsLimit
	}
	events, err := store.List(ctx, maxResults)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to list events: %w", err)
	}
	return EventsEnvelope(events), nil
}

func (d *Dispatcher) create(ctx context.Context, store calendar.Store, in intent.Create) (Envelope, error) {
	event := in.Event
	event.ID = ""
	event.ETag = ""
	created, err := store.Create(ctx, event)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to create event: %w", err)
	}
	log.Infof("created event %s", created.ID)
	d.publish(ctx, event_bus.CalendarEventCreatedType, *created)
	return EventEnvelope(*created, MessageCreated), nil
}

func (d *Dispatcher) update(ctx context.Context, store calendar.Store, in intent.Update, timeZone string) (Envelope, error) {
	id, envelope, err := d.target(ctx, store, in.Target, timeZone)
	if err != nil || id == "" {
		return envelope, err
	}

	fetched, err := store.Get(ctx, id)
	if errors.Is(err, calendar.ErrEventNotFound) {
		return TextEnvelope(MessageNotFound), nil
	}
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to fetch event %s: %w", id, err)
	}

	merged := Merge(*fetched, in.Patch)
	updated, err := store.Update(ctx, fetched.ID, merged)
	if errors.Is(err, calendar.ErrEventNotFound) {
		return TextEnvelope(MessageNotFound), nil
	}
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to update event %s: %w", id, err)
	}
	log.Infof("updated event %s", updated.ID)
	d.publish(ctx, event_bus.CalendarEventUpdatedType, *updated)
	return EventEnvelope(*updated, MessageUpdated), nil
}

func (d *Dispatcher) delete(ctx context.Context, store calendar.Store, in intent.Delete, timeZone string) (Envelope, error) {
	id, envelope, err := d.target(ctx, store, in.Target, timeZone)
	if err != nil || id == "" {
		return envelope, err
	}

	err = store.Delete(ctx, id)
	if errors.Is(err, calendar.ErrEventNotFound) {
		return TextEnvelope(MessageNotFound), nil
	}
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to delete event %s: %w", id, err)
	}
	log.Infof("deleted event %s", id)
	d.publish(ctx, event_bus.CalendarEventDeletedType, calendar.Event{ID: id})
	return SuccessEnvelope(id, MessageDeleted), nil
}

// target returns the id of the single event t refers to. When there is no single event it
// returns an empty id and the envelope to answer with instead.
func (d *Dispatcher) target(ctx context.Context, store calendar.Store, t intent.Target, timeZone string) (string, Envelope, error) {
	if t.IsExplicit() {
		return t.EventID, Envelope{}, nil
	}
	if t.IsEmpty() {
		return "", Envelope{}, ErrMissingTarget
	}

	matches, err := d.resolver.Resolve(ctx, store, resolver.Query{
		FreeText:         t.Query,
		DateBound:        t.DateBound,
		SearchWindowDays: d.searchWindowDays,
		TimeZone:         timeZone,
	})
	if err != nil {
		return "", Envelope{}, err
	}

	switch len(matches) {
	case 0:
		return "", TextEnvelope(MessageNotFound), nil
	case 1:
		return matches[0].ID, Envelope{}, nil
	}
	log.Debugf("%d events match %q on %q, asking the user", len(matches), t.Query, t.DateBound)
	return "", DisambiguationEnvelope(matches), nil
}

// publish notifies subscribers of a mutation that already happened; a subscriber failure does
// not fail the request.
func (d *Dispatcher) publish(ctx context.Context, eventType event_bus.EventType, event calendar.Event) {
	if d.eventBus == nil {
		return
	}
	changed := event_bus.CalendarEventChanged{
		EventID:  event.ID,
		Summary:  event.Summary,
		TimeZone: event.Start.TimeZone,
	}
	if start, err := event.Start.Instant(); err == nil {
		changed.Start = start
	}
	if end, err := event.End.Instant(); err == nil {
		changed.End = end
	}
	if err := d.eventBus.Publish(event_bus.NewEvent(ctx, eventType, changed)); err != nil {
		log.Errorf("failed to publish %s for %s: %v", eventType, event.ID, err)
	}
}
