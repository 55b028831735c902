package calendar

import (
	"testing"
	"time"

	"github.com/calprompt/calprompt/pkg/timezone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTimeSpec(t *testing.T) {
	const target = "America/New_York"
	testCases := []struct {
		name string
		spec TimeSpec
		want TimeSpec
	}{
		{
			name: "wall clock already in target zone",
			spec: TimeSpec{DateTime: "2024-03-11T12:00:00", TimeZone: target},
			want: TimeSpec{DateTime: "2024-03-11T12:00:00", TimeZone: target},
		},
		{
			name: "short wall clock is canonicalized",
			spec: TimeSpec{DateTime: "2024-03-11T12:00", TimeZone: target},
			want: TimeSpec{DateTime: "2024-03-11T12:00:00", TimeZone: target},
		},
		{
			name: "utc instant with Z",
			spec: TimeSpec{DateTime: "2024-03-11T16:00:00Z"},
			want: TimeSpec{DateTime: "2024-03-11T12:00:00", TimeZone: target},
		},
		{
			name: "numeric offset",
			spec: TimeSpec{DateTime: "2024-03-11T18:00:00+02:00", TimeZone: "Europe/Warsaw"},
			want: TimeSpec{DateTime: "2024-03-11T12:00:00", TimeZone: target},
		},
		{
			name: "naive time in UTC",
			spec: TimeSpec{DateTime: "2024-03-11T16:00:00", TimeZone: "UTC"},
			want: TimeSpec{DateTime: "2024-03-11T12:00:00", TimeZone: target},
		},
		{
			name: "naive time in another known zone",
			spec: TimeSpec{DateTime: "2024-03-11T17:00:00", TimeZone: "Europe/London"},
			want: TimeSpec{DateTime: "2024-03-11T13:00:00", TimeZone: target},
		},
		{
			name: "unknown source zone keeps the wall clock",
			spec: TimeSpec{DateTime: "2024-03-11T12:00:00", TimeZone: "Mars/Olympus"},
			want: TimeSpec{DateTime: "2024-03-11T12:00:00", TimeZone: target},
		},
		{
			name: "missing source zone keeps the wall clock",
			spec: TimeSpec{DateTime: "2024-03-11T12:00:00"},
			want: TimeSpec{DateTime: "2024-03-11T12:00:00", TimeZone: target},
		},
		{
			name: "all-day keeps its date",
			spec: TimeSpec{Date: "2024-03-11", TimeZone: "UTC"},
			want: TimeSpec{Date: "2024-03-11", TimeZone: target},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeTimeSpec(tc.spec, target)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, target, got.TimeZone)

			again, err := NormalizeTimeSpec(got, target)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestNormalizeTimeSpec_Errors(t *testing.T) {
	var malformed *timezone.MalformedTimeError

	_, err := NormalizeTimeSpec(TimeSpec{DateTime: "tomorrow at noon", TimeZone: "UTC"}, "UTC")
	assert.ErrorAs(t, err, &malformed)

	_, err = NormalizeTimeSpec(TimeSpec{Date: "11/03/2024"}, "UTC")
	assert.ErrorAs(t, err, &malformed)

	_, err = NormalizeTimeSpec(TimeSpec{DateTime: "2024-03-11T12:00:00", TimeZone: "UTC"}, "Nowhere/City")
	assert.ErrorIs(t, err, timezone.ErrUnknownZone)
}

func TestTimeSpec_LocalDate(t *testing.T) {
	spec := TimeSpec{DateTime: "2024-03-11T23:30:00", TimeZone: "UTC"}
	warsaw, err := time.LoadLocation("Europe/Warsaw")
	require.NoError(t, err)

	date, err := spec.LocalDate(warsaw)

	require.NoError(t, err)
	assert.Equal(t, "2024-03-12", date)

	date, err = TimeSpec{Date: "2024-03-11"}.LocalDate(warsaw)

	require.NoError(t, err)
	assert.Equal(t, "2024-03-11", date)
}
