package flightplan

import (
	"fmt"
	"time"
)

// StopsUnlimited is the MaxStops sentinel meaning "any number of stops".
const StopsUnlimited = -1

// MaxStayDays is the upper bound for a leg's stay window.
const MaxStayDays = 365

// FilterSet holds the per-leg search filters.
type FilterSet struct {
	Adults           int    // >= 1
	Children         int    // >= 0
	PreferredAirline string // IATA carrier code, empty means "any"
	CheckedBaggage   bool
	MaxStops         int // 0, 1, 2 or StopsUnlimited
	MaxLayoverHours  int // meaningful only when MaxStops != 0
}

// StayWindow bounds how long the traveler remains before departing on
// the next leg, in whole days, inclusive on both ends.
type StayWindow struct {
	MinDays int
	MaxDays int
}

// Width returns the number of distinct stay lengths the window allows.
func (w StayWindow) Width() int {
	return w.MaxDays - w.MinDays + 1
}

// Leg is one directional origin->destination hop.
// Stay is nil for a closing leg whose departure date is fully derived
// (the "return to a fixed point" case); such a leg terminates the chain.
type Leg struct {
	Origin      string
	Destination string
	Stay        *StayWindow
	Filters     FilterSet
}

// DateWindow is the calendar range over which the first departure may
// fall. Start and End are date-granular (midnight UTC), both inclusive.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of calendar days the window spans, inclusive.
func (w DateWindow) Days() int {
	s := dateOnly(w.Start)
	e := dateOnly(w.End)
	return int(e.Sub(s)/(24*time.Hour)) + 1
}

// dateOnly truncates a time to its calendar date in UTC.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Draft is the itinerary under construction. It is a value: mutating
// methods return a new Draft and never modify the receiver, so callers
// can keep prior versions for back-navigation without defensive copies.
type Draft struct {
	Legs        []Leg
	Window      DateWindow
	Budget      float64
	OriginLabel string
	SameFilters bool // one filter set applied to every leg
}

// InvalidLegError reports a leg that violates the chain invariants.
type InvalidLegError struct {
	Reason string
}

func (e *InvalidLegError) Error() string {
	return "invalid leg: " + e.Reason
}

// InvalidDateRangeError reports a departure window that violates the
// date invariants.
type InvalidDateRangeError struct {
	Reason string
}

func (e *InvalidDateRangeError) Error() string {
	return "invalid date range: " + e.Reason
}

// AppendLeg returns a copy of the draft with leg appended. It fails
// with InvalidLegError when the leg is a self-loop, breaks contiguity
// with the previous leg, or carries a malformed stay window.
func (d Draft) AppendLeg(leg Leg) (Draft, error) {
	if leg.Origin == "" || leg.Destination == "" {
		return d, &InvalidLegError{Reason: "origin and destination are required"}
	}
	if leg.Origin == leg.Destination {
		return d, &InvalidLegError{Reason: fmt.Sprintf("origin and destination are both %s", leg.Origin)}
	}
	if n := len(d.Legs); n > 0 && d.Legs[n-1].Destination != leg.Origin {
		return d, &InvalidLegError{Reason: fmt.Sprintf(
			"leg must depart from %s, not %s", d.Legs[n-1].Destination, leg.Origin)}
	}
	if leg.Stay != nil {
		if leg.Stay.MinDays < 1 || leg.Stay.MinDays > leg.Stay.MaxDays || leg.Stay.MaxDays > MaxStayDays {
			return d, &InvalidLegError{Reason: fmt.Sprintf(
				"stay window [%d, %d] is out of bounds", leg.Stay.MinDays, leg.Stay.MaxDays)}
		}
		// Copy the window so the caller cannot mutate the draft through it.
		stay := *leg.Stay
		leg.Stay = &stay
	}

	out := d
	out.Legs = make([]Leg, len(d.Legs)+1)
	copy(out.Legs, d.Legs)
	out.Legs[len(d.Legs)] = leg
	return out, nil
}

// SetDepartureWindow returns a copy of the draft with the departure
// window set. It fails with InvalidDateRangeError when end precedes
// start or start is before today. A single-day window (end == start)
// is valid: that is how fixed-date configurations are expressed.
func (d Draft) SetDepartureWindow(start, end time.Time) (Draft, error) {
	return d.setDepartureWindowAt(start, end, time.Now())
}

// setDepartureWindowAt is SetDepartureWindow with an injectable clock.
func (d Draft) setDepartureWindowAt(start, end, now time.Time) (Draft, error) {
	s := dateOnly(start)
	e := dateOnly(end)
	today := dateOnly(now)
	if s.Before(today) {
		return d, &InvalidDateRangeError{Reason: fmt.Sprintf(
			"start date %s is in the past", s.Format("2006-01-02"))}
	}
	if e.Before(s) {
		return d, &InvalidDateRangeError{Reason: fmt.Sprintf(
			"end date %s is before start date %s", e.Format("2006-01-02"), s.Format("2006-01-02"))}
	}
	out := d
	out.Window = DateWindow{Start: s, End: e}
	return out, nil
}

// ApplyFilterSetToAllLegs returns a copy of the draft with fs applied
// to every leg.
func (d Draft) ApplyFilterSetToAllLegs(fs FilterSet) Draft {
	out := d
	out.Legs = make([]Leg, len(d.Legs))
	copy(out.Legs, d.Legs)
	for i := range out.Legs {
		out.Legs[i].Filters = fs
	}
	out.SameFilters = true
	return out
}

// ApplyFilterSetToLeg returns a copy of the draft with fs applied to
// the leg at index.
func (d Draft) ApplyFilterSetToLeg(index int, fs FilterSet) (Draft, error) {
	if index < 0 || index >= len(d.Legs) {
		return d, &InvalidLegError{Reason: fmt.Sprintf("leg index %d out of range", index)}
	}
	out := d
	out.Legs = make([]Leg, len(d.Legs))
	copy(out.Legs, d.Legs)
	out.Legs[index].Filters = fs
	return out, nil
}

// IsFlexible reports whether the draft's dates are expressed as ranges
// rather than fixed single dates: a multi-day departure window or any
// stay window wider than one length makes it flexible.
func (d Draft) IsFlexible() bool {
	if d.Window.Days() > 1 {
		return true
	}
	for _, leg := range d.Legs {
		if leg.Stay != nil && leg.Stay.Width() > 1 {
			return true
		}
	}
	return false
}
