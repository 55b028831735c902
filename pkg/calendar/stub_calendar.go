package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StubCalendar is an in-memory Store. It records every call so tests can assert how many
// reads and mutations a pipeline run issued.
type StubCalendar struct {
	mu     sync.Mutex
	data   map[string]Event
	now    func() time.Time
	Calls  StubCalls
	Writes []Event
	// Err, when set, is returned from every call wrapped in ErrStoreUnavailable.
	Err error
}

type StubCalls struct {
	List      int
	ListRange int
	Get       int
	Create    int
	Update    int
	Delete    int
}

// Mutations is the number of calls that changed the store.
func (c StubCalls) Mutations() int {
	return c.Create + c.Update + c.Delete
}

func NewStubCalendar(now func() time.Time) *StubCalendar {
	if now == nil {
		now = time.Now
	}
	return &StubCalendar{data: map[string]Event{}, now: now}
}

// Seed stores events without counting calls. Events without an ID get one.
func (c *StubCalendar) Seed(events ...Event) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	seeded := make([]Event, 0, len(events))
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.ETag == "" {
			e.ETag = uuid.NewString()
		}
		c.data[e.ID] = e
		seeded = append(seeded, e)
	}
	return seeded
}

func (c *StubCalendar) failure() error {
	if c.Err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, c.Err)
	}
	return nil
}

func (c *StubCalendar) List(ctx context.Context, maxResults int) ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls.List++
	if err := c.failure(); err != nil {
		return nil, err
	}
	now := c.now()
	events := c.sorted(now, func(start, end time.Time) bool {
		return end.After(now)
	})
	if len(events) > maxResults {
		events = events[:maxResults]
	}
	return events, nil
}

func (c *StubCalendar) ListRange(ctx context.Context, from time.Time, to time.Time) ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls.ListRange++
	if err := c.failure(); err != nil {
		return nil, err
	}
	return c.sorted(from, func(start, end time.Time) bool {
		return start.Before(to) && end.After(from)
	}), nil
}

// sorted filters and orders events by start. A recurring series is judged by its next occurrence
// at or after after, the way a CalDAV server returns series masters.
func (c *StubCalendar) sorted(after time.Time, keep func(start, end time.Time) bool) []Event {
	type timed struct {
		event Event
		start time.Time
	}
	var matched []timed
	for _, e := range c.data {
		start, errStart := e.Start.Instant()
		end, errEnd := e.End.Instant()
		if errStart != nil || errEnd != nil {
			continue
		}
		if e.IsRecurring() {
			next, ok := e.NextOccurrence(after)
			if !ok {
				continue
			}
			start, end = next, next.Add(end.Sub(start))
		}
		if keep(start, end) {
			matched = append(matched, timed{e, start})
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].start.Before(matched[j].start)
	})
	events := make([]Event, 0, len(matched))
	for _, m := range matched {
		events = append(events, m.event)
	}
	return events
}

func (c *StubCalendar) Get(ctx context.Context, id string) (*Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls.Get++
	if err := c.failure(); err != nil {
		return nil, err
	}
	e, ok := c.data[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	return &e, nil
}

func (c *StubCalendar) Create(ctx context.Context, event Event) (*Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls.Create++
	if err := c.failure(); err != nil {
		return nil, err
	}
	event.ID = uuid.NewString()
	event.ETag = uuid.NewString()
	if event.Status == "" {
		event.Status = "confirmed"
	}
	c.data[event.ID] = event
	c.Writes = append(c.Writes, event)
	return &event, nil
}

func (c *StubCalendar) Update(ctx context.Context, id string, event Event) (*Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls.Update++
	c.Writes = append(c.Writes, event)
	if err := c.failure(); err != nil {
		return nil, err
	}
	if _, ok := c.data[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	event.ID = id
	event.ETag = uuid.NewString()
	c.data[id] = event
	return &event, nil
}

func (c *StubCalendar) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls.Delete++
	if err := c.failure(); err != nil {
		return err
	}
	if _, ok := c.data[id]; !ok {
		return fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	delete(c.data, id)
	return nil
}

// Events returns a snapshot of the stored events keyed by id.
func (c *StubCalendar) Events() map[string]Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := make(map[string]Event, len(c.data))
	for k, v := range c.data {
		snapshot[k] = v
	}
	return snapshot
}

func (c *StubCalendar) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = map[string]Event{}
	c.Calls = StubCalls{}
	c.Writes = nil
}
