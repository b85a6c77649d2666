package flightplan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func stay(min, max int) *StayWindow {
	return &StayWindow{MinDays: min, MaxDays: max}
}

func TestAppendLegContiguity(t *testing.T) {
	d := Draft{}
	d, err := d.AppendLeg(Leg{Origin: "BER", Destination: "LIS", Stay: stay(2, 4)})
	require.NoError(t, err)

	// The next leg must depart from the previous destination.
	_, err = d.AppendLeg(Leg{Origin: "MAD", Destination: "BER"})
	var legErr *InvalidLegError
	require.ErrorAs(t, err, &legErr)

	d, err = d.AppendLeg(Leg{Origin: "LIS", Destination: "BER"})
	require.NoError(t, err)
	assert.Len(t, d.Legs, 2)
}

func TestAppendLegSelfLoop(t *testing.T) {
	d := Draft{}
	_, err := d.AppendLeg(Leg{Origin: "BER", Destination: "BER"})
	var legErr *InvalidLegError
	require.ErrorAs(t, err, &legErr)
}

func TestAppendLegStayBounds(t *testing.T) {
	cases := []struct {
		name string
		stay *StayWindow
		ok   bool
	}{
		{"min below one", stay(0, 3), false},
		{"inverted", stay(5, 2), false},
		{"over a year", stay(1, 400), false},
		{"single length", stay(3, 3), true},
		{"full year", stay(1, 365), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Draft{}.AppendLeg(Leg{Origin: "BER", Destination: "LIS", Stay: tc.stay})
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAppendLegCopyOnWrite(t *testing.T) {
	base, err := Draft{}.AppendLeg(Leg{Origin: "BER", Destination: "LIS"})
	require.NoError(t, err)

	grown, err := base.AppendLeg(Leg{Origin: "LIS", Destination: "MAD"})
	require.NoError(t, err)

	// The prior value must be untouched.
	assert.Len(t, base.Legs, 1)
	assert.Len(t, grown.Legs, 2)
}

func TestSetDepartureWindow(t *testing.T) {
	now := day(2026, 3, 1)

	d, err := Draft{}.setDepartureWindowAt(day(2026, 3, 10), day(2026, 3, 14), now)
	require.NoError(t, err)
	assert.Equal(t, 5, d.Window.Days())

	// Single-day windows express fixed dates and are valid.
	d, err = Draft{}.setDepartureWindowAt(day(2026, 3, 10), day(2026, 3, 10), now)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Window.Days())

	var rangeErr *InvalidDateRangeError
	_, err = Draft{}.setDepartureWindowAt(day(2026, 3, 14), day(2026, 3, 10), now)
	require.ErrorAs(t, err, &rangeErr)

	_, err = Draft{}.setDepartureWindowAt(day(2026, 2, 20), day(2026, 3, 10), now)
	require.ErrorAs(t, err, &rangeErr)
}

func TestApplyFilterSets(t *testing.T) {
	d, err := Draft{}.AppendLeg(Leg{Origin: "BER", Destination: "LIS", Stay: stay(2, 2)})
	require.NoError(t, err)
	d, err = d.AppendLeg(Leg{Origin: "LIS", Destination: "BER"})
	require.NoError(t, err)

	fs := FilterSet{Adults: 2, MaxStops: 1, MaxLayoverHours: 5}
	all := d.ApplyFilterSetToAllLegs(fs)
	assert.True(t, all.SameFilters)
	for _, leg := range all.Legs {
		assert.Equal(t, fs, leg.Filters)
	}
	// Source draft untouched.
	assert.Equal(t, FilterSet{}, d.Legs[0].Filters)

	one, err := d.ApplyFilterSetToLeg(1, fs)
	require.NoError(t, err)
	assert.Equal(t, FilterSet{}, one.Legs[0].Filters)
	assert.Equal(t, fs, one.Legs[1].Filters)

	_, err = d.ApplyFilterSetToLeg(2, fs)
	assert.Error(t, err)
}

func TestIsFlexible(t *testing.T) {
	now := day(2026, 3, 1)

	fixed, err := Draft{}.AppendLeg(Leg{Origin: "BER", Destination: "LIS"})
	require.NoError(t, err)
	fixed, err = fixed.setDepartureWindowAt(day(2026, 3, 10), day(2026, 3, 10), now)
	require.NoError(t, err)
	assert.False(t, fixed.IsFlexible())

	wide, err := fixed.setDepartureWindowAt(day(2026, 3, 10), day(2026, 3, 12), now)
	require.NoError(t, err)
	assert.True(t, wide.IsFlexible())

	// A one-day window with a wide stay window is still flexible.
	staying, err := Draft{}.AppendLeg(Leg{Origin: "BER", Destination: "LIS", Stay: stay(2, 4)})
	require.NoError(t, err)
	staying, err = staying.setDepartureWindowAt(day(2026, 3, 10), day(2026, 3, 10), now)
	require.NoError(t, err)
	assert.True(t, staying.IsFlexible())
}
