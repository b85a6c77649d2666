package bot

import (
	"fmt"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iabalyuk/farewizard/flightplan"
)

const testChat int64 = 42

// futureDate formats a date n days from now the way users type it.
func futureDate(n int) string {
	return time.Now().AddDate(0, 0, n).Format("2006-01-02")
}

func TestRouteWizardEndToEnd(t *testing.T) {
	store := newFakeStore()
	b, api := newTestBot(t, store)

	b.startWizard(testChat, ModeRoute)
	assert.Contains(t, api.lastText(), "Where do you fly from?")

	put(t, b, testChat, "Berlin")
	assert.Equal(t, StageOriginPick, session(t, b, testChat).Stage)
	assert.Contains(t, api.lastText(), "Did you mean Berlin (BER)")

	put(t, b, testChat, "pick:0")
	put(t, b, testChat, "Lisbon")
	put(t, b, testChat, "pick:0")
	assert.Equal(t, StageTripType, session(t, b, testChat).Stage)

	put(t, b, testChat, "roundtrip")
	put(t, b, testChat, "2") // min stay
	put(t, b, testChat, "4") // max stay
	assert.Equal(t, StageDepartStart, session(t, b, testChat).Stage)

	put(t, b, testChat, futureDate(30))
	put(t, b, testChat, futureDate(32))
	// Route mode goes straight to filters; the combination note was sent.
	assert.Equal(t, StageAdults, session(t, b, testChat).Stage)
	assert.Contains(t, api.texts()[len(api.texts())-2], "9 itinerary combinations")

	put(t, b, testChat, "2")   // adults
	put(t, b, testChat, "1")   // children
	put(t, b, testChat, "LH")  // airline
	put(t, b, testChat, "yes") // baggage
	put(t, b, testChat, "1")   // stops
	put(t, b, testChat, "5")   // layover
	assert.Equal(t, StageBudget, session(t, b, testChat).Stage)

	put(t, b, testChat, "250")
	assert.Equal(t, StageConfirm, session(t, b, testChat).Stage)
	assert.Contains(t, api.lastText(), "9 itinerary combinations")

	put(t, b, testChat, "save")

	// Session is gone and the configuration was persisted as one unit.
	_, ok := b.sessions.Get(testChat)
	assert.False(t, ok)
	require.Len(t, store.configs, 1)

	draft := store.configs[0].Draft
	require.Len(t, draft.Legs, 1)
	assert.Equal(t, "BER", draft.Legs[0].Origin)
	assert.Equal(t, "LIS", draft.Legs[0].Destination)
	require.NotNil(t, draft.Legs[0].Stay)
	assert.Equal(t, 2, draft.Legs[0].Stay.MinDays)
	assert.Equal(t, 4, draft.Legs[0].Stay.MaxDays)
	assert.Equal(t, 250.0, draft.Budget)
	assert.Equal(t, "Berlin (BER)", draft.OriginLabel)
	assert.Equal(t, flightplan.FilterSet{
		Adults: 2, Children: 1, PreferredAirline: "LH",
		CheckedBaggage: true, MaxStops: 1, MaxLayoverHours: 5,
	}, draft.Legs[0].Filters)
	assert.Equal(t, int64(9), flightplan.CombinationCount(draft))
}

func TestTripWizardWithReturnLeg(t *testing.T) {
	store := newFakeStore()
	b, _ := newTestBot(t, store)

	b.startWizard(testChat, ModeTrip)
	put(t, b, testChat, "BER")
	put(t, b, testChat, "pick:0")
	put(t, b, testChat, "Lisbon")
	put(t, b, testChat, "pick:0")
	assert.Equal(t, StageStayMin, session(t, b, testChat).Stage)

	put(t, b, testChat, "2")
	put(t, b, testChat, "2")
	assert.Equal(t, StageAddMore, session(t, b, testChat).Stage)

	put(t, b, testChat, "return")
	put(t, b, testChat, futureDate(30))
	put(t, b, testChat, futureDate(31))
	assert.Equal(t, StageFilterMode, session(t, b, testChat).Stage)

	put(t, b, testChat, "all")
	put(t, b, testChat, "1")
	put(t, b, testChat, "0")
	put(t, b, testChat, "any")
	put(t, b, testChat, "no")
	put(t, b, testChat, "0") // direct, so no layover step
	assert.Equal(t, StageBudget, session(t, b, testChat).Stage)

	put(t, b, testChat, "300")
	put(t, b, testChat, "save")

	require.Len(t, store.configs, 1)
	draft := store.configs[0].Draft
	require.Len(t, draft.Legs, 2)
	assert.Equal(t, "LIS", draft.Legs[1].Origin)
	assert.Equal(t, "BER", draft.Legs[1].Destination)
	assert.Nil(t, draft.Legs[1].Stay)
	assert.True(t, draft.SameFilters)
	// 2 window days x stay width 1 x final leg factor 1.
	assert.Equal(t, int64(2), flightplan.CombinationCount(draft))
}

func TestInvalidInputRepromptsInPlace(t *testing.T) {
	store := newFakeStore()
	b, api := newTestBot(t, store)

	b.startWizard(testChat, ModeTrip)
	put(t, b, testChat, "BER")
	put(t, b, testChat, "pick:0")
	put(t, b, testChat, "Lisbon")
	put(t, b, testChat, "pick:0")

	original := api.lastText()
	before := *session(t, b, testChat)

	put(t, b, testChat, "not a number")

	s := session(t, b, testChat)
	assert.Equal(t, StageStayMin, s.Stage)
	assert.Equal(t, before.Draft, s.Draft)
	assert.Equal(t, before.Scratch, s.Scratch)
	// Same prompt with an error line on top, never a silent advance.
	assert.Contains(t, api.lastText(), "⚠️")
	assert.Contains(t, api.lastText(), original)
}

func TestBackRestoresPriorPromptExactly(t *testing.T) {
	store := newFakeStore()
	b, api := newTestBot(t, store)

	b.startWizard(testChat, ModeTrip)
	put(t, b, testChat, "BER")
	put(t, b, testChat, "pick:0")
	put(t, b, testChat, "Lisbon")
	put(t, b, testChat, "pick:0")

	stayMinPrompt := api.lastText()
	before := *session(t, b, testChat)

	put(t, b, testChat, "3") // forward to StageStayMax
	assert.Equal(t, StageStayMax, session(t, b, testChat).Stage)

	put(t, b, testChat, cbBack)

	s := session(t, b, testChat)
	assert.Equal(t, StageStayMin, s.Stage)
	assert.Equal(t, before.Draft, s.Draft)
	assert.Equal(t, before.Scratch, s.Scratch)
	assert.Equal(t, stayMinPrompt, api.lastText())
}

func TestAddMoreOfferedOnlyBelowLegCap(t *testing.T) {
	store := newFakeStore()
	b, _ := newTestBot(t, store)

	// Free tier allows 3 legs; one slot is reserved for the return.
	b.startWizard(testChat, ModeTrip)
	s := session(t, b, testChat)
	require.Equal(t, 3, s.Quota.MaxLegs)

	put(t, b, testChat, "BER")
	put(t, b, testChat, "pick:0")
	put(t, b, testChat, "Lisbon")
	put(t, b, testChat, "pick:0")
	put(t, b, testChat, "2")
	put(t, b, testChat, "2")
	// One leg: adding another city is still offered.
	assert.True(t, keyboardContains(addMoreKeyboard(session(t, b, testChat)), "add"))

	put(t, b, testChat, "add")
	put(t, b, testChat, "Madrid")
	put(t, b, testChat, "pick:0")
	put(t, b, testChat, "1")
	put(t, b, testChat, "1")

	// Two legs == maxLegs-1: the option disappears and text input for
	// it is rejected.
	s = session(t, b, testChat)
	require.Len(t, s.Draft.Legs, 2)
	assert.False(t, keyboardContains(addMoreKeyboard(s), "add"))

	put(t, b, testChat, "add")
	assert.Equal(t, StageAddMore, session(t, b, testChat).Stage)

	put(t, b, testChat, "return")
	s = session(t, b, testChat)
	require.Len(t, s.Draft.Legs, 3)
	assert.Equal(t, StageDepartStart, s.Stage)
}

func TestAdmissionDenialReturnsToDates(t *testing.T) {
	store := newFakeStore()
	store.quota.MaxCombinations = 20
	b, api := newTestBot(t, store)

	b.startWizard(testChat, ModeRoute)
	put(t, b, testChat, "BER")
	put(t, b, testChat, "pick:0")
	put(t, b, testChat, "Lisbon")
	put(t, b, testChat, "pick:0")
	put(t, b, testChat, "roundtrip")
	put(t, b, testChat, "1")
	put(t, b, testChat, "7") // stay width 7

	departPrompt := api.lastText()
	put(t, b, testChat, futureDate(30))
	put(t, b, testChat, futureDate(32)) // 3 days x 7 = 21 > 20

	s := session(t, b, testChat)
	assert.Equal(t, StageDepartStart, s.Stage)
	assert.True(t, s.Draft.Window.Start.IsZero(), "denied window must not stick")

	texts := api.texts()
	denial := texts[len(texts)-2]
	assert.Contains(t, denial, "21")
	assert.Contains(t, denial, "20")
	// The date prompt is re-rendered, not a dead end.
	assert.Equal(t, departPrompt, texts[len(texts)-1])

	// A narrower window passes.
	put(t, b, testChat, futureDate(30))
	put(t, b, testChat, futureDate(31)) // 2 x 7 = 14
	assert.Equal(t, StageAdults, session(t, b, testChat).Stage)
}

func TestPersistFailureKeepsSession(t *testing.T) {
	store := newFakeStore()
	b, api := newTestBot(t, store)

	b.startWizard(testChat, ModeRoute)
	for _, in := range []string{"BER", "pick:0", "Lisbon", "pick:0", "oneway",
		futureDate(30), futureDate(30), "1", "0", "any", "no", "0", "100"} {
		put(t, b, testChat, in)
	}
	require.Equal(t, StageConfirm, session(t, b, testChat).Stage)

	store.saveErr = fmt.Errorf("disk full")
	put(t, b, testChat, "save")

	// Session preserved at confirm so the user can retry.
	assert.Equal(t, StageConfirm, session(t, b, testChat).Stage)
	assert.Contains(t, api.lastText(), "try again")
	assert.Empty(t, store.configs)

	store.saveErr = nil
	put(t, b, testChat, "save")
	_, ok := b.sessions.Get(testChat)
	assert.False(t, ok)
	assert.Len(t, store.configs, 1)
}

func TestStaleInputIsRejectedNotReapplied(t *testing.T) {
	store := newFakeStore()
	b, _ := newTestBot(t, store)

	b.startWizard(testChat, ModeTrip)
	put(t, b, testChat, "BER")
	put(t, b, testChat, "pick:0")
	put(t, b, testChat, "Lisbon")
	put(t, b, testChat, "pick:0")
	put(t, b, testChat, "2")
	put(t, b, testChat, "2")
	require.Equal(t, StageAddMore, session(t, b, testChat).Stage)

	put(t, b, testChat, "done")
	require.Equal(t, StageDepartStart, session(t, b, testChat).Stage)

	// Re-sending the already-consumed choice hits the new stage's
	// handler and is rejected, not applied twice.
	put(t, b, testChat, "done")
	s := session(t, b, testChat)
	assert.Equal(t, StageDepartStart, s.Stage)
	assert.Len(t, s.Draft.Legs, 1)
}

func TestPresetAppliedToAllLegs(t *testing.T) {
	store := newFakeStore()
	store.quota.MaxFlexibleRoutes = 2 // the seeded config must not trip admission
	filters := flightplan.FilterSet{Adults: 2, PreferredAirline: "LH", MaxStops: 1, MaxLayoverHours: 6}
	seedConfiguration(t, store, testChat, filters)

	b, api := newTestBot(t, store)
	b.startWizard(testChat, ModeTrip)
	require.Len(t, session(t, b, testChat).Presets, 1)

	put(t, b, testChat, "BER")
	put(t, b, testChat, "pick:0")
	put(t, b, testChat, "Madrid")
	put(t, b, testChat, "pick:0")
	put(t, b, testChat, "3")
	put(t, b, testChat, "3")
	put(t, b, testChat, "return")
	put(t, b, testChat, futureDate(40))
	put(t, b, testChat, futureDate(41))
	require.Equal(t, StageFilterMode, session(t, b, testChat).Stage)

	put(t, b, testChat, "preset:0")

	s := session(t, b, testChat)
	assert.Equal(t, StageBudget, s.Stage)
	for _, leg := range s.Draft.Legs {
		assert.Equal(t, filters, leg.Filters)
	}
	assert.Contains(t, api.texts()[len(api.texts())-2], "Applied")
}

func TestReturnHiddenWhenChainEndsAtOrigin(t *testing.T) {
	store := newFakeStore()
	b, _ := newTestBot(t, store)

	// Build BER -> LIS -> BER by hand: the chain already ends at the
	// trip's origin, so a closing return leg would be a self-loop.
	b.startWizard(testChat, ModeTrip)
	for _, in := range []string{"BER", "pick:0", "Lisbon", "pick:0", "2", "2",
		"add", "BER", "pick:0", "1", "1"} {
		put(t, b, testChat, in)
	}
	s := session(t, b, testChat)
	require.Equal(t, StageAddMore, s.Stage)
	require.Len(t, s.Draft.Legs, 2)
	require.Equal(t, "BER", s.Draft.Legs[1].Destination)

	assert.False(t, keyboardContains(addMoreKeyboard(s), "return"))

	// Text input for the hidden choice re-prompts instead of killing
	// the session.
	put(t, b, testChat, "return")
	s = session(t, b, testChat)
	assert.Equal(t, StageAddMore, s.Stage)
	assert.Len(t, s.Draft.Legs, 2)

	put(t, b, testChat, "done")
	assert.Equal(t, StageDepartStart, session(t, b, testChat).Stage)
}

func TestRoutePresetsOfferedAfterDates(t *testing.T) {
	store := newFakeStore()
	filters := flightplan.FilterSet{Adults: 2, PreferredAirline: "LH", MaxStops: 1, MaxLayoverHours: 6}
	seedConfiguration(t, store, testChat, filters)

	b, _ := newTestBot(t, store)
	b.startWizard(testChat, ModeRoute)
	require.Len(t, session(t, b, testChat).Presets, 1)

	// A one-way fixed-date draft, so the seeded flexible config does
	// not consume the candidate's quota slot.
	for _, in := range []string{"BER", "pick:0", "Lisbon", "pick:0", "oneway",
		futureDate(30), futureDate(30)} {
		put(t, b, testChat, in)
	}

	s := session(t, b, testChat)
	require.Equal(t, StageFilterMode, s.Stage)
	kb := filterModeKeyboard(s)
	assert.True(t, keyboardContains(kb, "preset:0"))
	assert.True(t, keyboardContains(kb, "all"))
	// One leg, so there is no per-leg question.
	assert.False(t, keyboardContains(kb, "perleg"))

	put(t, b, testChat, "preset:0")
	s = session(t, b, testChat)
	assert.Equal(t, StageBudget, s.Stage)
	assert.Equal(t, filters, s.Draft.Legs[0].Filters)
}

func TestRouteWithoutPresetsSkipsFilterMode(t *testing.T) {
	store := newFakeStore()
	b, _ := newTestBot(t, store)

	b.startWizard(testChat, ModeRoute)
	for _, in := range []string{"BER", "pick:0", "Lisbon", "pick:0", "oneway",
		futureDate(30), futureDate(30)} {
		put(t, b, testChat, in)
	}
	assert.Equal(t, StageAdults, session(t, b, testChat).Stage)
}

func TestEntryRefusedAtFullQuota(t *testing.T) {
	store := newFakeStore()
	store.quota = flightplan.Quota{MaxFixedRoutes: 1, MaxFlexibleRoutes: 1, MaxLegs: 3, MaxCombinations: 500}
	seedConfiguration(t, store, testChat, flightplan.FilterSet{Adults: 1})      // flexible
	seedFixedConfiguration(t, store, testChat, flightplan.FilterSet{Adults: 1}) // fixed

	b, api := newTestBot(t, store)
	b.startWizard(testChat, ModeRoute)

	_, ok := b.sessions.Get(testChat)
	assert.False(t, ok)
	assert.Contains(t, api.lastText(), "/delete")
}

// keyboardContains reports whether any button in the markup carries
// the given callback data.
func keyboardContains(kb tgbotapi.InlineKeyboardMarkup, data string) bool {
	for _, row := range kb.InlineKeyboard {
		for _, button := range row {
			if button.CallbackData != nil && *button.CallbackData == data {
				return true
			}
		}
	}
	return false
}

// seedConfiguration stores a flexible configuration with the given
// filters for presets and quota tests.
func seedConfiguration(t *testing.T, store *fakeStore, chatID int64, filters flightplan.FilterSet) {
	t.Helper()
	d, err := flightplan.Draft{}.AppendLeg(flightplan.Leg{
		Origin: "BER", Destination: "LIS",
		Stay:    &flightplan.StayWindow{MinDays: 2, MaxDays: 4},
		Filters: filters,
	})
	require.NoError(t, err)
	d.Window = flightplan.DateWindow{
		Start: time.Now().AddDate(0, 1, 0),
		End:   time.Now().AddDate(0, 1, 2),
	}
	_, err = store.SaveConfiguration(chatID, d)
	require.NoError(t, err)
}

// seedFixedConfiguration stores a fixed-date configuration.
func seedFixedConfiguration(t *testing.T, store *fakeStore, chatID int64, filters flightplan.FilterSet) {
	t.Helper()
	d, err := flightplan.Draft{}.AppendLeg(flightplan.Leg{
		Origin: "BER", Destination: "OPO", Filters: filters,
	})
	require.NoError(t, err)
	fixed := time.Now().AddDate(0, 1, 0)
	d.Window = flightplan.DateWindow{Start: fixed, End: fixed}
	_, err = store.SaveConfiguration(chatID, d)
	require.NoError(t, err)
}
