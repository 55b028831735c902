package caldav

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/calprompt/calprompt/internal/utils"
	"github.com/calprompt/calprompt/pkg/calendar"
	"github.com/calprompt/calprompt/pkg/credential"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// listHorizon bounds the upcoming-events query; CalDAV has no "next N events" request.
const listHorizon = 365 * 24 * time.Hour

// Calendar is a calendar.Store backed by one CalDAV calendar collection. Event ids are the
// iCalendar UIDs; each event lives in its own object resource named after the UID.
type Calendar struct {
	client  *caldav.Client
	status  *statusTransport
	path    string
	timeout time.Duration
	clock   utils.Clock
}

func newCalDAVCalendar(client *caldav.Client, status *statusTransport, path string, timeout time.Duration, clock utils.Clock) *Calendar {
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return &Calendar{
		client:  client,
		status:  status,
		path:    path,
		timeout: timeout,
		clock:   clock,
	}
}

func (c *Calendar) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Calendar) objectPath(id string) string {
	return c.path + objectName(id)
}

func (c *Calendar) List(ctx context.Context, maxResults int) ([]calendar.Event, error) {
	now := c.clock.Now()
	events, err := c.query(ctx, now, now.Add(listHorizon))
	if err != nil {
		return nil, err
	}
	upcoming := events[:0]
	for _, e := range events {
		if _, ok := e.event.NextOccurrence(now); ok {
			upcoming = append(upcoming, e)
		}
	}
	sortByOccurrence(upcoming)
	if len(upcoming) > maxResults {
		upcoming = upcoming[:maxResults]
	}
	return unwrap(upcoming), nil
}

func (c *Calendar) ListRange(ctx context.Context, from time.Time, to time.Time) ([]calendar.Event, error) {
	events, err := c.query(ctx, from, to)
	if err != nil {
		return nil, err
	}
	sortByOccurrence(events)
	return unwrap(events), nil
}

type occurrence struct {
	event calendar.Event
	at    time.Time
}

// query asks the server for every VEVENT overlapping [from, to]. Recurring events come back
// once, keyed by their first occurrence at or after from.
func (c *Calendar) query(ctx context.Context, from time.Time, to time.Time) ([]occurrence, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     "VCALENDAR",
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{
				{
					Name:  "VEVENT",
					Start: from,
					End:   to,
				},
			},
		},
	}
	objects, err := c.client.QueryCalendar(ctx, c.path, query)
	if err != nil {
		return nil, c.storeError("query calendar", err)
	}

	events := make([]occurrence, 0, len(objects))
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		event, err := icsToEvent(obj.Data, obj.ETag)
		if err != nil {
			log.Warnf("skipping unreadable calendar object %s: %v", obj.Path, err)
			continue
		}
		if event.Status == "cancelled" {
			continue
		}
		at, ok := event.NextOccurrence(from)
		if !ok {
			at, _ = event.Start.Instant()
		}
		events = append(events, occurrence{event: event, at: at})
	}
	return events, nil
}

func (c *Calendar) Get(ctx context.Context, id string) (*calendar.Event, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	obj, err := c.client.GetCalendarObject(ctx, c.objectPath(id))
	if err != nil {
		return nil, c.storeError("get event "+id, err)
	}
	event, err := icsToEvent(obj.Data, obj.ETag)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", calendar.ErrStoreUnavailable, err)
	}
	return &event, nil
}

func (c *Calendar) Create(ctx context.Context, event calendar.Event) (*calendar.Event, error) {
	event.ID = uuid.NewString()
	log.Debugf("creating event %q as %s", event.Summary, event.ID)
	return c.put(ctx, "create event", event)
}

// Update replaces the stored object. No If-Match is sent, so the last write wins.
func (c *Calendar) Update(ctx context.Context, id string, event calendar.Event) (*calendar.Event, error) {
	if _, err := c.Get(ctx, id); err != nil {
		return nil, err
	}
	event.ID = id
	return c.put(ctx, "update event "+id, event)
}

func (c *Calendar) put(ctx context.Context, operation string, event calendar.Event) (*calendar.Event, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	cal, err := eventToICS(event, c.clock.Now())
	if err != nil {
		return nil, err
	}
	obj, err := c.client.PutCalendarObject(ctx, c.objectPath(event.ID), cal)
	if err != nil {
		return nil, c.storeError(operation, err)
	}
	event.ETag = obj.ETag
	return &event, nil
}

func (c *Calendar) Delete(ctx context.Context, id string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.client.RemoveAll(ctx, c.objectPath(id)); err != nil {
		return c.storeError("delete event "+id, err)
	}
	return nil
}

// storeError maps a CalDAV failure onto the store errors using the status of the last response.
func (c *Calendar) storeError(operation string, err error) error {
	switch c.status.last() {
	case http.StatusNotFound, http.StatusGone:
		return fmt.Errorf("%w: %s", calendar.ErrEventNotFound, operation)
	case http.StatusUnauthorized:
		log.Warnf("CalDAV server rejected the credential on %s", operation)
		return fmt.Errorf("%w: %w: %s", calendar.ErrStoreUnavailable, credential.ErrExpired, operation)
	}
	log.Errorf("unable to %s over CalDAV: %v", operation, err)
	return fmt.Errorf("%w: unable to %s: %v", calendar.ErrStoreUnavailable, operation, err)
}

func sortByOccurrence(events []occurrence) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].at.Before(events[j].at)
	})
}

func unwrap(events []occurrence) []calendar.Event {
	out := make([]calendar.Event, 0, len(events))
	for _, e := range events {
		out = append(out, e.event)
	}
	return out
}
