package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/calprompt/calprompt/internal/utils"
	"github.com/calprompt/calprompt/pkg/calendar"
	"github.com/calprompt/calprompt/pkg/timezone"
	log "github.com/sirupsen/logrus"
)

const DefaultSearchWindowDays = 30

var ErrEmptyQuery = errors.New("event query needs free text or a date")

// Query describes an event the user referred to without naming its id.
type Query struct {
	FreeText string
	// DateBound is a YYYY-MM-DD date the event must fall on, as seen from TimeZone.
	DateBound        string
	SearchWindowDays int
	// TimeZone is the user's zone. Empty means UTC.
	TimeZone string
}

type Resolver struct {
	clock utils.Clock
}

func NewResolver(clock utils.Clock) *Resolver {
	return &Resolver{clock: clock}
}

// Resolve lists the events in the search window and keeps those matching q. It never picks
// among several matches; an empty result is not an error.
func (r *Resolver) Resolve(ctx context.Context, store calendar.Store, q Query) ([]calendar.Event, error) {
	q.FreeText = strings.TrimSpace(q.FreeText)
	q.DateBound = strings.TrimSpace(q.DateBound)
	if q.FreeText == "" && q.DateBound == "" {
		return nil, ErrEmptyQuery
	}
	if q.SearchWindowDays < 0 {
		q.SearchWindowDays = 0
	}

	loc := time.UTC
	if q.TimeZone != "" {
		l, err := timezone.LoadZone(q.TimeZone)
		if err != nil {
			return nil, err
		}
		loc = l
	}

	now := r.clock.Now()
	from, to := now, now.AddDate(0, 0, q.SearchWindowDays)
	if q.DateBound != "" {
		dayStart, dayEnd, err := timezone.DayBounds(q.DateBound, loc)
		if err != nil {
			return nil, err
		}
		// a named day is always searched in full, even when it lies outside the window
		if dayStart.Before(from) {
			from = dayStart
		}
		if dayEnd.After(to) {
			to = dayEnd
		}
	}

	events, err := store.ListRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for resolution: %w", err)
	}

	matcher := newMatcher(q.FreeText)
	matched := make([]calendar.Event, 0)
	for _, event := range events {
		if q.DateBound != "" && !onDate(event, q.DateBound, loc) {
			continue
		}
		if !matcher.matches(event) {
			continue
		}
		matched = append(matched, event)
	}
	log.Debugf("resolved %d of %d events for query %q on %q", len(matched), len(events), q.FreeText, q.DateBound)
	return matched, nil
}

// onDate reports whether the event, or one occurrence of a recurring series, starts on date.
// Events whose times cannot be read never match.
func onDate(event calendar.Event, date string, loc *time.Location) bool {
	if event.IsRecurring() {
		dayStart, dayEnd, err := timezone.DayBounds(date, loc)
		if err != nil {
			return false
		}
		return len(event.OccurrencesBetween(dayStart, dayEnd)) > 0
	}
	startDate, err := event.Start.LocalDate(loc)
	if err != nil {
		log.Warnf("skipping event %s with unreadable start: %v", event.ID, err)
		return false
	}
	return startDate == date
}
