package storage

import "github.com/iabalyuk/farewizard/flightplan"

// Subscription tiers. The tier lives in the users table; anyone
// without a row is on the free tier.
const (
	TierFree = "free"
	TierPro  = "pro"
)

// tierQuotas maps a subscription tier to its limits.
var tierQuotas = map[string]flightplan.Quota{
	TierFree: {
		MaxFixedRoutes:    2,
		MaxFlexibleRoutes: 1,
		MaxLegs:           3,
		MaxCombinations:   500,
	},
	TierPro: {
		MaxFixedRoutes:    10,
		MaxFlexibleRoutes: 5,
		MaxLegs:           6,
		MaxCombinations:   5000,
	},
}

// QuotaForTier returns the quota for a tier, falling back to the free
// tier for unknown values.
func QuotaForTier(tier string) flightplan.Quota {
	if q, ok := tierQuotas[tier]; ok {
		return q
	}
	return tierQuotas[TierFree]
}
