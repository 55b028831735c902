package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/calprompt/calprompt/internal/utils"
	"github.com/calprompt/calprompt/pkg/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(dateTime string) calendar.TimeSpec {
	return calendar.TimeSpec{DateTime: dateTime, TimeZone: "UTC"}
}

func setupResolverTest(t *testing.T) (*Resolver, *calendar.StubCalendar) {
	clock := &utils.MockClock{FixedNow: time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)}
	store := calendar.NewStubCalendar(clock.Now)
	store.Seed(
		calendar.Event{ID: "dentist-1", Summary: "Dentist", Start: at("2024-03-12T09:00:00"), End: at("2024-03-12T10:00:00")},
		calendar.Event{ID: "dentist-2", Summary: "Dentist follow-up", Start: at("2024-03-20T09:00:00"), End: at("2024-03-20T09:30:00")},
		calendar.Event{ID: "lunch", Summary: "Lunch", Location: "Cafe Luna",
			Attendees: []calendar.Attendee{{Email: "sam@example.com"}},
			Start:     at("2024-03-11T12:00:00"), End: at("2024-03-11T13:00:00")},
		calendar.Event{ID: "standup", Summary: "Team meeting", Description: "Weekly sync",
			Start: at("2024-03-11T09:00:00"), End: at("2024-03-11T09:30:00")},
		calendar.Event{ID: "past", Summary: "Dentist", Start: at("2024-03-01T09:00:00"), End: at("2024-03-01T10:00:00")},
		calendar.Event{ID: "far", Summary: "Dentist", Start: at("2024-05-01T09:00:00"), End: at("2024-05-01T10:00:00")},
	)
	t.Cleanup(store.Cleanup)
	return NewResolver(clock), store
}

func ids(events []calendar.Event) []string {
	result := make([]string, 0, len(events))
	for _, e := range events {
		result = append(result, e.ID)
	}
	return result
}

func TestResolver_Resolve(t *testing.T) {
	testCases := []struct {
		name  string
		query Query
		want  []string
	}{
		{
			name:  "keyword in summary within window",
			query: Query{FreeText: "dentist", SearchWindowDays: 30},
			want:  []string{"dentist-1", "dentist-2"},
		},
		{
			name:  "stop words and generic words are ignored",
			query: Query{FreeText: "my DENTIST appointment", SearchWindowDays: 30},
			want:  []string{"dentist-1", "dentist-2"},
		},
		{
			name:  "narrower window",
			query: Query{FreeText: "dentist", SearchWindowDays: 5},
			want:  []string{"dentist-1"},
		},
		{
			name:  "attendee email",
			query: Query{FreeText: "lunch with sam", SearchWindowDays: 30},
			want:  []string{"lunch"},
		},
		{
			name:  "location",
			query: Query{FreeText: "cafe luna", SearchWindowDays: 30},
			want:  []string{"lunch"},
		},
		{
			name:  "description",
			query: Query{FreeText: "weekly sync", SearchWindowDays: 30},
			want:  []string{"standup"},
		},
		{
			name:  "generic word on its own",
			query: Query{FreeText: "meeting", SearchWindowDays: 30},
			want:  []string{"standup"},
		},
		{
			name:  "generic word after stop words",
			query: Query{FreeText: "my meeting", SearchWindowDays: 30},
			want:  []string{"standup"},
		},
		{
			name:  "generic words in plural",
			query: Query{FreeText: "the meetings", SearchWindowDays: 30},
			want:  []string{"standup"},
		},
		{
			name:  "generic word absent from every event",
			query: Query{FreeText: "the appointment", SearchWindowDays: 30},
			want:  []string{},
		},
		{
			name:  "stop words only match as phrase",
			query: Query{FreeText: "with", SearchWindowDays: 30},
			want:  []string{},
		},
		{
			name:  "date only",
			query: Query{DateBound: "2024-03-11", SearchWindowDays: 30},
			want:  []string{"standup", "lunch"},
		},
		{
			name:  "text and date",
			query: Query{FreeText: "dentist", DateBound: "2024-03-20", SearchWindowDays: 30},
			want:  []string{"dentist-2"},
		},
		{
			name:  "date outside the window widens the search",
			query: Query{FreeText: "dentist", DateBound: "2024-05-01", SearchWindowDays: 30},
			want:  []string{"far"},
		},
		{
			name:  "past date",
			query: Query{FreeText: "dentist", DateBound: "2024-03-01", SearchWindowDays: 30},
			want:  []string{"past"},
		},
		{
			name:  "no match",
			query: Query{FreeText: "yoga", SearchWindowDays: 30},
			want:  []string{},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, store := setupResolverTest(t)

			events, err := r.Resolve(context.Background(), store, tc.query)

			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(events))
			assert.Equal(t, 0, store.Calls.Mutations())
		})
	}
}

func TestResolver_DateMatchesRecurringOccurrence(t *testing.T) {
	r, store := setupResolverTest(t)
	store.Seed(calendar.Event{
		ID:         "weekly-standup",
		Summary:    "Standup",
		Start:      calendar.TimeSpec{DateTime: "2024-03-04T09:00:00", TimeZone: "Europe/Warsaw"},
		End:        calendar.TimeSpec{DateTime: "2024-03-04T09:15:00", TimeZone: "Europe/Warsaw"},
		Recurrence: []string{"RRULE:FREQ=WEEKLY"},
	})

	events, err := r.Resolve(context.Background(), store, Query{
		FreeText:         "standup",
		DateBound:        "2024-03-18",
		SearchWindowDays: 30,
		TimeZone:         "Europe/Warsaw",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"weekly-standup"}, ids(events))

	events, err = r.Resolve(context.Background(), store, Query{
		FreeText:         "standup",
		DateBound:        "2024-03-19",
		SearchWindowDays: 30,
		TimeZone:         "Europe/Warsaw",
	})

	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestResolver_DateIsReadInUserZone(t *testing.T) {
	r, store := setupResolverTest(t)

	// UTC+14: the 09:00Z standup is 23:00 on the 11th, the 12:00Z lunch is already the 12th
	events, err := r.Resolve(context.Background(), store, Query{
		DateBound:        "2024-03-11",
		SearchWindowDays: 30,
		TimeZone:         "Pacific/Kiritimati",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"standup"}, ids(events))

	events, err = r.Resolve(context.Background(), store, Query{
		DateBound:        "2024-03-12",
		SearchWindowDays: 30,
		TimeZone:         "America/Los_Angeles",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"dentist-1"}, ids(events))
}

func TestResolver_EmptyQuery(t *testing.T) {
	r, store := setupResolverTest(t)

	_, err := r.Resolve(context.Background(), store, Query{FreeText: "  ", SearchWindowDays: 30})

	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Equal(t, 0, store.Calls.ListRange)
}

func TestResolver_StoreFailure(t *testing.T) {
	r, store := setupResolverTest(t)
	store.Err = errors.New("connection reset")

	_, err := r.Resolve(context.Background(), store, Query{FreeText: "dentist", SearchWindowDays: 30})

	assert.ErrorIs(t, err, calendar.ErrStoreUnavailable)
}

func TestResolver_UnknownZone(t *testing.T) {
	r, store := setupResolverTest(t)

	_, err := r.Resolve(context.Background(), store, Query{FreeText: "dentist", TimeZone: "Nowhere/City"})

	assert.Error(t, err)
}
