package storage

import (
	"time"

	"github.com/iabalyuk/farewizard/flightplan"
)

// SavedConfiguration is a committed draft as stored for background
// price checking.
type SavedConfiguration struct {
	ID        string
	ChatID    int64
	Kind      string // KindFixed or KindFlexible
	Draft     flightplan.Draft
	CreatedAt time.Time
}

// Configuration kinds. Fixed means every date in the configuration is
// a single concrete day; flexible means at least one date is a range.
const (
	KindFixed    = "fixed"
	KindFlexible = "flexible"
)

// Interface defines the contract for configuration storage
type Interface interface {
	// SaveConfiguration persists a completed draft for chatID as one
	// unit and returns its id.
	SaveConfiguration(chatID int64, draft flightplan.Draft) (string, error)

	// LoadUserConfigurations returns the user's configurations, oldest
	// first. Feeds the preset resolver and /list.
	LoadUserConfigurations(chatID int64) ([]SavedConfiguration, error)

	// LoadUserCounts returns how many fixed and flexible
	// configurations the user currently has. Feeds admission control.
	LoadUserCounts(chatID int64) (flightplan.UsageCounts, error)

	// DeleteConfiguration removes one configuration owned by chatID.
	DeleteConfiguration(chatID int64, id string) error

	// GetQuota returns the quota for the user's subscription tier.
	// Unknown users fall back to the free tier.
	GetQuota(chatID int64) (flightplan.Quota, error)

	// ListConfigurations returns every stored configuration, for the
	// background sweeper.
	ListConfigurations() ([]SavedConfiguration, error)

	// DeleteExpired removes configurations whose departure window ends
	// before cutoff and returns them so their owners can be notified.
	DeleteExpired(cutoff time.Time) ([]SavedConfiguration, error)

	// Close flushes and closes the underlying store.
	Close() error
}

// KindOf classifies a draft for quota accounting.
func KindOf(d flightplan.Draft) string {
	if d.IsFlexible() {
		return KindFlexible
	}
	return KindFixed
}
