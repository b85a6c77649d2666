package flightplan

import "time"

// CombinationCount returns the exact number of distinct concrete
// itineraries the draft expands to. The first leg's departure date
// ranges over every day of the departure window; each leg with a stay
// window contributes an independent choice of stay length. The chain
// arithmetic never filters a combination out, so the count is the
// closed-form product
//
//	days(window) × Π (maxStay_i − minStay_i + 1)
//
// and no enumeration is performed. A leg without a stay window
// contributes a factor of 1.
func CombinationCount(d Draft) int64 {
	count := int64(d.Window.Days())
	for _, leg := range d.Legs {
		if leg.Stay != nil {
			count *= int64(leg.Stay.Width())
		}
	}
	return count
}

// SearchCallCount returns how many underlying search calls executing
// the draft requires: one call per leg per concrete itinerary.
func SearchCallCount(d Draft) int64 {
	return CombinationCount(d) * int64(len(d.Legs))
}

// Itinerary is one concrete instance of a draft: the first departure
// date plus every date derived from the chosen stay lengths, in chain
// order. LegDates[0] always equals Departure; when the final leg has a
// stay window, the trailing entry is the derived return date.
type Itinerary struct {
	Departure time.Time
	LegDates  []time.Time
}

// Enumerate materializes every concrete itinerary of the draft, in
// departure-date order, stays varying fastest on the last leg. It
// shares the window/stay model with CombinationCount so the two cannot
// drift; callers that only need a count must use CombinationCount
// instead.
func Enumerate(d Draft) []Itinerary {
	out := make([]Itinerary, 0, CombinationCount(d))
	days := d.Window.Days()
	for i := 0; i < days; i++ {
		d0 := dateOnly(d.Window.Start).AddDate(0, 0, i)
		out = expandLegs(out, d.Legs, 0, d0, []time.Time{d0})
	}
	return out
}

// expandLegs branches over legs[idx]'s stay window; legDates[idx] is
// that leg's departure date. A leg without a stay window terminates
// the chain.
func expandLegs(out []Itinerary, legs []Leg, idx int, d0 time.Time, legDates []time.Time) []Itinerary {
	if idx >= len(legs) || legs[idx].Stay == nil {
		it := Itinerary{Departure: d0, LegDates: make([]time.Time, len(legDates))}
		copy(it.LegDates, legDates)
		return append(out, it)
	}
	stay := legs[idx].Stay
	for s := stay.MinDays; s <= stay.MaxDays; s++ {
		next := legDates[idx].AddDate(0, 0, s)
		out = expandLegs(out, legs, idx+1, d0, append(legDates, next))
	}
	return out
}
