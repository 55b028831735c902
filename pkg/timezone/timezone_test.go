package timezone

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testZones = []string{"UTC", "America/New_York", "Europe/Warsaw", "Asia/Kolkata", "Australia/Lord_Howe", "Pacific/Chatham"}

func TestToAbsoluteInstant(t *testing.T) {
	instant, err := ToAbsoluteInstant("2024-03-11T12:00:00", "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 11, 16, 0, 0, 0, time.UTC), instant.UTC())

	instant, err = ToAbsoluteInstant("2024-03-11T12:00", "Europe/Warsaw")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 11, 11, 0, 0, 0, time.UTC), instant.UTC())
}

func TestToAbsoluteInstant_Malformed(t *testing.T) {
	testCases := []string{
		"",
		"2024-03-11",
		"2024-03-11 12:00:00",
		"11/03/2024 12:00",
		"2024-03-11T12:00:00Z",
		"2024-03-11T12:00:00+01:00",
		"2024-02-30T12:00:00",
		"2024-03-11T25:00:00",
	}
	for _, tc := range testCases {
		t.Run(tc, func(t *testing.T) {
			_, err := ToAbsoluteInstant(tc, "UTC")
			var malformed *MalformedTimeError
			assert.True(t, errors.As(err, &malformed), "expected MalformedTimeError, got %v", err)
		})
	}
}

func TestToAbsoluteInstant_UnknownZone(t *testing.T) {
	for _, zone := range []string{"", "Local", "Mars/Olympus_Mons"} {
		_, err := ToAbsoluteInstant("2024-03-11T12:00:00", zone)
		assert.ErrorIs(t, err, ErrUnknownZone)
	}
}

func TestRoundTrip_InstantThroughWallClock(t *testing.T) {
	start := time.Date(2023, 12, 31, 22, 17, 5, 0, time.UTC)
	for _, zone := range testZones {
		t.Run(zone, func(t *testing.T) {
			// hourly steps over more than a year cover both DST transitions of every zone
			for i := 0; i < 24*400; i += 7 {
				instant := start.Add(time.Duration(i) * time.Hour)
				wall, err := FormatInZone(instant, zone)
				require.NoError(t, err)
				require.Len(t, wall, 19)

				back, err := ToAbsoluteInstant(wall, zone)
				require.NoError(t, err)

				// the repeated hour of a fall-back transition maps to its earlier instant
				if !back.Equal(instant) {
					again, err := FormatInZone(back, zone)
					require.NoError(t, err)
					assert.Equal(t, wall, again)
					assert.True(t, back.Before(instant), "instant %s came back as %s in %s", instant, back, zone)
					continue
				}
				assert.True(t, back.Equal(instant))
			}
		})
	}
}

func TestRoundTrip_WallClockThroughInstant(t *testing.T) {
	walls := []string{"2024-01-15T09:30:00", "2024-07-04T23:59:59", "2024-11-03T12:00:00", "2025-02-28T00:00:00"}
	for _, zone := range testZones {
		for _, wall := range walls {
			instant, err := ToAbsoluteInstant(wall, zone)
			require.NoError(t, err)
			back, err := FormatInZone(instant, zone)
			require.NoError(t, err)
			assert.Equal(t, wall, back, "zone %s", zone)
		}
	}
}

func TestToAbsoluteInstant_FallBackPicksEarlier(t *testing.T) {
	instant, err := ToAbsoluteInstant("2024-11-03T01:30:00", "America/New_York")
	require.NoError(t, err)
	// 01:30 EDT, not 01:30 EST
	assert.Equal(t, time.Date(2024, 11, 3, 5, 30, 0, 0, time.UTC), instant.UTC())
}

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name       string
		dateTime   string
		sourceZone string
		targetZone string
		want       string
	}{
		{"naive in target zone", "2024-03-11T12:00:00", "America/New_York", "America/New_York", "2024-03-11T12:00:00"},
		{"naive without seconds", "2024-03-11T12:00", "America/New_York", "America/New_York", "2024-03-11T12:00:00"},
		{"zulu marker", "2024-03-11T16:00:00Z", "", "America/New_York", "2024-03-11T12:00:00"},
		{"zulu with fraction", "2024-03-11T16:00:00.000Z", "America/New_York", "America/New_York", "2024-03-11T12:00:00"},
		{"numeric offset", "2024-03-11T17:00:00+01:00", "Europe/Warsaw", "America/New_York", "2024-03-11T12:00:00"},
		{"offset without colon", "2024-03-11T17:00:00+0100", "", "America/New_York", "2024-03-11T12:00:00"},
		{"naive utc source", "2024-03-11T16:00:00", "UTC", "America/New_York", "2024-03-11T12:00:00"},
		{"naive etc/utc source", "2024-03-11T16:00:00", "Etc/UTC", "America/New_York", "2024-03-11T12:00:00"},
		{"naive foreign source", "2024-03-11T17:00:00", "Europe/Warsaw", "America/New_York", "2024-03-11T12:00:00"},
		{"naive missing source", "2024-03-11T12:00:00", "", "America/New_York", "2024-03-11T12:00:00"},
		{"naive unknown source", "2024-03-11T12:00:00", "Eastern", "America/New_York", "2024-03-11T12:00:00"},
		{"into utc", "2024-03-11T12:00:00", "America/New_York", "UTC", "2024-03-11T16:00:00"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.dateTime, tc.sourceZone, tc.targetZone)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.False(t, HasOffset(got))

			again, err := Normalize(got, tc.targetZone, tc.targetZone)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestNormalize_Errors(t *testing.T) {
	_, err := Normalize("tomorrow at noon", "UTC", "UTC")
	var malformed *MalformedTimeError
	assert.True(t, errors.As(err, &malformed))

	_, err = Normalize("2024-03-11T12:00:00Z", "UTC", "Nowhere/Special")
	assert.ErrorIs(t, err, ErrUnknownZone)

	_, err = Normalize("2024-03-11T99:00:00+01:00", "UTC", "UTC")
	assert.True(t, errors.As(err, &malformed))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-11")
	require.NoError(t, err)
	assert.Equal(t, 11, d.Day())

	for _, bad := range []string{"2024-3-11", "2024-03-32", "tomorrow", "2024-03-11T00:00:00"} {
		_, err := ParseDate(bad)
		var malformed *MalformedTimeError
		assert.True(t, errors.As(err, &malformed), bad)
	}
}

func TestDayBounds(t *testing.T) {
	loc, err := LoadZone("America/New_York")
	require.NoError(t, err)

	start, end, err := DayBounds("2024-03-10", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 5, 0, 0, 0, time.UTC), start.UTC())
	// DST starts that day, so the day is 23 hours long
	assert.Equal(t, 23*time.Hour, end.Add(time.Nanosecond).Sub(start))
}
