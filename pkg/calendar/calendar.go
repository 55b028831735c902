package calendar

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable wraps every failure coming back from a calendar backend.
var ErrStoreUnavailable = errors.New("calendar store unavailable")

// ErrEventNotFound is returned by Get when the store has no event with the given id.
var ErrEventNotFound = errors.New("calendar event not found")

// PrimaryCalendarId is the only calendar the pipeline talks to.
const PrimaryCalendarId = "primary"

// Store is the CRUD surface of the single calendar the pipeline operates on.
type Store interface {
	// List returns up to maxResults upcoming events in chronological order.
	List(ctx context.Context, maxResults int) ([]Event, error)
	// ListRange returns the events overlapping [from, to] in chronological order.
	ListRange(ctx context.Context, from time.Time, to time.Time) ([]Event, error)
	Get(ctx context.Context, id string) (*Event, error)
	Create(ctx context.Context, event Event) (*Event, error)
	Update(ctx context.Context, id string, event Event) (*Event, error)
	Delete(ctx context.Context, id string) error
}

// StoreFactory builds a Store bound to the bearer credential of the current request.
type StoreFactory func(ctx context.Context, accessToken string) (Store, error)
