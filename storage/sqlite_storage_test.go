package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iabalyuk/farewizard/flightplan"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testDraft(t *testing.T, windowStart, windowEnd time.Time, stayMin, stayMax int) flightplan.Draft {
	t.Helper()
	leg := flightplan.Leg{Origin: "BER", Destination: "LIS"}
	if stayMin > 0 {
		leg.Stay = &flightplan.StayWindow{MinDays: stayMin, MaxDays: stayMax}
	}
	d, err := flightplan.Draft{}.AppendLeg(leg)
	require.NoError(t, err)
	d.Window = flightplan.DateWindow{Start: windowStart, End: windowEnd}
	d.OriginLabel = "Berlin (BER)"
	d.Budget = 250
	return d
}

func TestSaveAndLoadConfiguration(t *testing.T) {
	s := newTestStorage(t)
	start := time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC)

	draft := testDraft(t, start, start.AddDate(0, 0, 4), 2, 4)
	id, err := s.SaveConfiguration(42, draft)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	configs, err := s.LoadUserConfigurations(42)
	require.NoError(t, err)
	require.Len(t, configs, 1)

	got := configs[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, int64(42), got.ChatID)
	assert.Equal(t, KindFlexible, got.Kind)
	assert.Equal(t, "BER", got.Draft.Legs[0].Origin)
	assert.Equal(t, 250.0, got.Draft.Budget)
	require.NotNil(t, got.Draft.Legs[0].Stay)
	assert.Equal(t, 4, got.Draft.Legs[0].Stay.MaxDays)

	// Other users see nothing.
	other, err := s.LoadUserConfigurations(43)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestLoadUserCounts(t *testing.T) {
	s := newTestStorage(t)
	start := time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.SaveConfiguration(42, testDraft(t, start, start, 0, 0)) // fixed
	require.NoError(t, err)
	_, err = s.SaveConfiguration(42, testDraft(t, start, start.AddDate(0, 0, 2), 0, 0)) // flexible
	require.NoError(t, err)
	_, err = s.SaveConfiguration(42, testDraft(t, start, start, 2, 4)) // flexible via stay window
	require.NoError(t, err)

	counts, err := s.LoadUserCounts(42)
	require.NoError(t, err)
	assert.Equal(t, flightplan.UsageCounts{Fixed: 1, Flexible: 2}, counts)
}

func TestDeleteConfiguration(t *testing.T) {
	s := newTestStorage(t)
	start := time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC)

	id, err := s.SaveConfiguration(42, testDraft(t, start, start, 0, 0))
	require.NoError(t, err)

	// Another user cannot delete it.
	assert.Error(t, s.DeleteConfiguration(43, id))

	require.NoError(t, s.DeleteConfiguration(42, id))
	configs, err := s.LoadUserConfigurations(42)
	require.NoError(t, err)
	assert.Empty(t, configs)

	assert.Error(t, s.DeleteConfiguration(42, id))
}

func TestGetQuotaTiers(t *testing.T) {
	s := newTestStorage(t)

	// Unknown user falls back to the free tier.
	q, err := s.GetQuota(42)
	require.NoError(t, err)
	assert.Equal(t, QuotaForTier(TierFree), q)

	require.NoError(t, s.SetUserTier(42, TierPro))
	q, err = s.GetQuota(42)
	require.NoError(t, err)
	assert.Equal(t, QuotaForTier(TierPro), q)

	assert.Error(t, s.SetUserTier(42, "platinum"))
}

func TestDeleteExpired(t *testing.T) {
	s := newTestStorage(t)
	past := time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC)
	future := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.SaveConfiguration(42, testDraft(t, past, past.AddDate(0, 0, 2), 0, 0))
	require.NoError(t, err)
	keepID, err := s.SaveConfiguration(42, testDraft(t, future, future.AddDate(0, 0, 2), 0, 0))
	require.NoError(t, err)

	expired, err := s.DeleteExpired(time.Date(2030, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, int64(42), expired[0].ChatID)

	remaining, err := s.ListConfigurations()
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, keepID, remaining[0].ID)

	// Nothing left to expire.
	expired, err = s.DeleteExpired(time.Date(2030, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, expired)
}
