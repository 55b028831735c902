package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/calprompt/calprompt/internal/utils"
	"github.com/calprompt/calprompt/pkg/calendar"
	"github.com/calprompt/calprompt/pkg/credential"
	log "github.com/sirupsen/logrus"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

// Calendar is a calendar.Store backed by one Google calendar.
type Calendar struct {
	service    *gcal.Service
	calendarId string
	timeout    time.Duration
	clock      utils.Clock
	// zone is the calendar's own time zone, used for events that carry none
	zone string
}

func newGoogleCalendar(service *gcal.Service, calendarId string, timeout time.Duration, clock utils.Clock) *Calendar {
	return &Calendar{
		service:    service,
		calendarId: calendarId,
		timeout:    timeout,
		clock:      clock,
	}
}

func (c *Calendar) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Calendar) List(ctx context.Context, maxResults int) ([]calendar.Event, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	result, err := c.service.Events.List(c.calendarId).
		TimeMin(c.clock.Now().Format(time.RFC3339)).
		MaxResults(int64(maxResults)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, storeError("list events", err)
	}
	if result.TimeZone != "" {
		c.zone = result.TimeZone
	}
	return c.fromGoogleEvents(ctx, result.Items), nil
}

func (c *Calendar) ListRange(ctx context.Context, from time.Time, to time.Time) ([]calendar.Event, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var items []*gcal.Event
	err := c.service.Events.List(c.calendarId).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250).
		Pages(ctx, func(page *gcal.Events) error {
			if page.TimeZone != "" {
				c.zone = page.TimeZone
			}
			items = append(items, page.Items...)
			return nil
		})
	if err != nil {
		return nil, storeError("list events", err)
	}
	return c.fromGoogleEvents(ctx, items), nil
}

func (c *Calendar) Get(ctx context.Context, id string) (*calendar.Event, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	item, err := c.service.Events.Get(c.calendarId, id).Context(ctx).Do()
	if err != nil {
		return nil, storeError("get event "+id, err)
	}
	event := c.fromGoogleEvent(ctx, item)
	return &event, nil
}

func (c *Calendar) Create(ctx context.Context, event calendar.Event) (*calendar.Event, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	log.Debugf("inserting event %q into calendar %s", event.Summary, c.calendarId)
	item, err := c.service.Events.Insert(c.calendarId, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return nil, storeError("insert event", err)
	}
	created := c.fromGoogleEvent(ctx, item)
	return &created, nil
}

// Update overlays event onto the stored Google event and writes it back, keeping the fields
// calendar.Event does not model. The etag travels in the body only; Google does not treat it
// as a precondition, so the last write wins.
func (c *Calendar) Update(ctx context.Context, id string, event calendar.Event) (*calendar.Event, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	current, err := c.service.Events.Get(c.calendarId, id).Context(ctx).Do()
	if err != nil {
		return nil, storeError("get event "+id, err)
	}
	item, err := c.service.Events.Update(c.calendarId, id, overlayGoogleEvent(current, event)).Context(ctx).Do()
	if err != nil {
		return nil, storeError("update event "+id, err)
	}
	updated := c.fromGoogleEvent(ctx, item)
	return &updated, nil
}

func (c *Calendar) Delete(ctx context.Context, id string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.service.Events.Delete(c.calendarId, id).Context(ctx).Do(); err != nil {
		return storeError("delete event "+id, err)
	}
	return nil
}

// calendarZone returns the zone of the calendar itself, fetching it once.
func (c *Calendar) calendarZone(ctx context.Context) string {
	if c.zone != "" {
		return c.zone
	}
	cal, err := c.service.Calendars.Get(c.calendarId).Context(ctx).Do()
	if err != nil {
		log.Warnf("unable to read time zone of calendar %s, falling back to UTC: %v", c.calendarId, err)
		c.zone = "UTC"
		return c.zone
	}
	c.zone = cal.TimeZone
	if c.zone == "" {
		c.zone = "UTC"
	}
	return c.zone
}

// storeError maps a Google API failure onto the store errors.
func storeError(operation string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound, http.StatusGone:
			return fmt.Errorf("%w: %s", calendar.ErrEventNotFound, operation)
		case http.StatusUnauthorized:
			log.Warnf("Google Calendar rejected the credential on %s", operation)
			return fmt.Errorf("%w: %w: %s", calendar.ErrStoreUnavailable, credential.ErrExpired, operation)
		}
	}
	log.Errorf("unable to %s in Google Calendar: %v", operation, err)
	return fmt.Errorf("%w: unable to %s: %v", calendar.ErrStoreUnavailable, operation, err)
}
