package flightplan

import "fmt"

// Quota is the per-subscription-tier limit set. Read-only from the
// wizard's perspective.
type Quota struct {
	MaxFixedRoutes    int // single fixed-date configurations
	MaxFlexibleRoutes int // date-range configurations
	MaxLegs           int // legs per multi-leg configuration
	MaxCombinations   int64
}

// UsageCounts is how many configurations of each kind the user
// already has.
type UsageCounts struct {
	Fixed    int
	Flexible int
}

// Gate identifies which admission gate produced a denial, so the
// wizard can route the user back to the step that owns the offending
// parameter.
type Gate int

const (
	GateNone Gate = iota
	GateRouteCount
	GateLegCount
	GateCombinations
)

// Decision is the outcome of an admission check. Reason is empty when
// Allowed and user-presentable otherwise, including the offending
// number and the quota it exceeds.
type Decision struct {
	Allowed bool
	Gate    Gate
	Reason  string
}

// CheckAdmission gates a candidate draft against the subscription
// quota. Two independent gates both must pass: the count-of-routes
// gate (existing configurations and legs per configuration) and the
// combination-budget gate (CombinationCount within quota).
func CheckAdmission(usage UsageCounts, quota Quota, candidate Draft) Decision {
	if candidate.IsFlexible() {
		if usage.Flexible >= quota.MaxFlexibleRoutes {
			return Decision{
				Gate: GateRouteCount,
				Reason: fmt.Sprintf(
					"You already have %d flexible-date configurations, and your plan allows %d. Delete one with /delete or make the dates fixed.",
					usage.Flexible, quota.MaxFlexibleRoutes),
			}
		}
	} else if usage.Fixed >= quota.MaxFixedRoutes {
		return Decision{
			Gate: GateRouteCount,
			Reason: fmt.Sprintf(
				"You already have %d fixed-date configurations, and your plan allows %d. Delete one with /delete first.",
				usage.Fixed, quota.MaxFixedRoutes),
		}
	}

	if len(candidate.Legs) > quota.MaxLegs {
		return Decision{
			Gate: GateLegCount,
			Reason: fmt.Sprintf(
				"This trip has %d legs, and your plan allows %d per configuration.",
				len(candidate.Legs), quota.MaxLegs),
		}
	}

	if count := CombinationCount(candidate); count > quota.MaxCombinations {
		return Decision{
			Gate: GateCombinations,
			Reason: fmt.Sprintf(
				"These dates expand to %d itinerary combinations, and your plan allows %d. Narrow the departure window or the stay windows.",
				count, quota.MaxCombinations),
		}
	}

	return Decision{Allowed: true}
}
