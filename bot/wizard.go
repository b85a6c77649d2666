package bot

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/iabalyuk/farewizard/airports"
	"github.com/iabalyuk/farewizard/flightplan"
)

// invalidInputError marks input that fails a step's local validation.
// The engine re-renders the same prompt with the message prepended and
// never advances the session.
type invalidInputError struct {
	msg string
}

func (e *invalidInputError) Error() string {
	return e.msg
}

func invalidInput(format string, args ...interface{}) error {
	return &invalidInputError{msg: fmt.Sprintf(format, args...)}
}

// stepResult is a handler's verdict: either a forward transition to
// next (optionally preceded by informational notes), a rewind to an
// earlier stage, or a terminal commit/cancel.
type stepResult struct {
	next     Stage
	notes    []string
	rewind   bool
	rewindTo Stage
	commit   bool
	cancel   bool
}

// stepHandler consumes (session, raw input) and returns the result.
// Handlers mutate draft and scratch but never the stage or history;
// those belong to the engine.
type stepHandler func(s *Session, in string) (stepResult, error)

// buildHandlers constructs the state -> handler dispatch table.
func (b *Bot) buildHandlers() map[Stage]stepHandler {
	return map[Stage]stepHandler{
		StageOrigin:          b.handleOriginStep,
		StageOriginPick:      b.handleOriginPickStep,
		StageDestination:     b.handleDestinationStep,
		StageDestinationPick: b.handleDestinationPickStep,
		StageTripType:        b.handleTripTypeStep,
		StageStayMin:         b.handleStayMinStep,
		StageStayMax:         b.handleStayMaxStep,
		StageAddMore:         b.handleAddMoreStep,
		StageDepartStart:     b.handleDepartStartStep,
		StageDepartEnd:       b.handleDepartEndStep,
		StageFilterMode:      b.handleFilterModeStep,
		StageAdults:          b.handleAdultsStep,
		StageChildren:        b.handleChildrenStep,
		StageAirline:         b.handleAirlineStep,
		StageBaggage:         b.handleBaggageStep,
		StageStops:           b.handleStopsStep,
		StageLayover:         b.handleLayoverStep,
		StageBudget:          b.handleBudgetStep,
		StageConfirm:         b.handleConfirmStep,
	}
}

// dispatch feeds one input into the session's current step handler and
// applies the result. The caller holds the chat's lock.
func (b *Bot) dispatch(s *Session, in string) {
	in = strings.TrimSpace(in)

	switch in {
	case cbBack:
		if !s.popHistory() {
			b.sendPrompt(s, "There is nothing to go back to.")
			return
		}
		b.sessions.Set(s.ChatID, s)
		b.sendPrompt(s, "")
		return
	case cbCancel:
		b.sessions.Delete(s.ChatID)
		b.sendText(s.ChatID, "Okay, the configuration was discarded. Start again with /route or /trip.", nil)
		return
	}

	handler, ok := b.handlers[s.Stage]
	if !ok {
		log.Printf("No handler for stage %d in chat %d, aborting session", s.Stage, s.ChatID)
		b.abortSession(s.ChatID)
		return
	}

	// Snapshot before the handler runs so invalid input leaves the
	// session byte-for-byte unchanged and a successful transition can
	// record the prior state for Back.
	snap := snapshot{Stage: s.Stage, Draft: s.Draft, Scratch: s.Scratch}

	result, err := handler(s, in)
	if err != nil {
		var invalid *invalidInputError
		if errors.As(err, &invalid) {
			s.Draft = snap.Draft
			s.Scratch = snap.Scratch
			b.sessions.Set(s.ChatID, s)
			b.sendPrompt(s, "⚠️ "+invalid.msg)
			return
		}
		// Unexpected error: no-partial-state policy, drop the session.
		log.Printf("Step handler failed for chat %d at stage %d: %v", s.ChatID, s.Stage, err)
		b.abortSession(s.ChatID)
		return
	}

	for _, note := range result.notes {
		b.sendText(s.ChatID, note, nil)
	}

	switch {
	case result.commit, result.cancel:
		b.sessions.Delete(s.ChatID)
		return
	case result.rewind:
		if !s.rewindTo(result.rewindTo) {
			log.Printf("Cannot rewind chat %d to stage %d, aborting session", s.ChatID, result.rewindTo)
			b.abortSession(s.ChatID)
			return
		}
	default:
		s.history = append(s.history, snap)
		s.Stage = result.next
	}

	b.sessions.Set(s.ChatID, s)
	b.sendPrompt(s, "")
}

// abortSession drops the session and reports a generic failure.
func (b *Bot) abortSession(chatID int64) {
	b.sessions.Delete(chatID)
	b.sendText(chatID, "Something went wrong and the configuration was discarded. Start again with /route or /trip.", nil)
}

// sendPrompt renders the current stage's prompt, optionally preceded
// by a headline (an error line or informational note).
func (b *Bot) sendPrompt(s *Session, headline string) {
	text, keyboard := renderPrompt(s)
	if headline != "" {
		text = headline + "\n\n" + text
	}
	b.sendText(s.ChatID, text, keyboard)
}

// --- Step handlers ---

func (b *Bot) handleOriginStep(s *Session, in string) (stepResult, error) {
	return b.searchAirports(s, in, StageOriginPick)
}

func (b *Bot) handleDestinationStep(s *Session, in string) (stepResult, error) {
	return b.searchAirports(s, in, StageDestinationPick)
}

// searchLimit caps how many airport matches one search step shows.
const searchLimit = 6

// searchAirports runs the shared text-search step for origin and
// destination: >=2 matches ask the user to disambiguate, exactly 1
// auto-confirms with a yes/no, 0 reports not found.
func (b *Bot) searchAirports(s *Session, in string, pickStage Stage) (stepResult, error) {
	query := strings.TrimSpace(in)
	if len(query) < 2 {
		return stepResult{}, invalidInput("Send at least two characters of a city name or an airport code.")
	}
	matches := b.airports.SearchByText(query, searchLimit)
	if len(matches) == 0 {
		return stepResult{}, invalidInput("No airport matches %q. Try another spelling.", query)
	}
	s.Scratch.Candidates = matches
	return stepResult{next: pickStage}, nil
}

func (b *Bot) handleOriginPickStep(s *Session, in string) (stepResult, error) {
	if in == "retry" {
		s.Scratch.Candidates = nil
		return stepResult{next: StageOrigin}, nil
	}
	picked, err := pickCandidate(s, in)
	if err != nil {
		return stepResult{}, err
	}
	s.Scratch.Origin = &picked
	s.Scratch.Candidates = nil
	s.Draft.OriginLabel = picked.Label()
	return stepResult{next: StageDestination}, nil
}

func (b *Bot) handleDestinationPickStep(s *Session, in string) (stepResult, error) {
	if in == "retry" {
		s.Scratch.Candidates = nil
		return stepResult{next: StageDestination}, nil
	}
	picked, err := pickCandidate(s, in)
	if err != nil {
		return stepResult{}, err
	}
	if picked.Code == chainTail(s) {
		return stepResult{}, invalidInput("You are already in %s. Pick a different city.", picked.City)
	}
	s.Scratch.Destination = &picked
	s.Scratch.Candidates = nil
	if s.Mode == ModeRoute {
		return stepResult{next: StageTripType}, nil
	}
	return stepResult{next: StageStayMin}, nil
}

// pickCandidate resolves a "pick:N" callback against the pending
// candidate list.
func pickCandidate(s *Session, in string) (airports.Airport, error) {
	if !strings.HasPrefix(in, "pick:") {
		return airports.Airport{}, invalidInput("Please pick an airport with the buttons.")
	}
	idx, err := strconv.Atoi(strings.TrimPrefix(in, "pick:"))
	if err != nil || idx < 0 || idx >= len(s.Scratch.Candidates) {
		return airports.Airport{}, invalidInput("Please pick an airport with the buttons.")
	}
	return s.Scratch.Candidates[idx], nil
}

func (b *Bot) handleTripTypeStep(s *Session, in string) (stepResult, error) {
	switch in {
	case "oneway":
		draft, err := s.Draft.AppendLeg(flightplan.Leg{
			Origin:      s.Scratch.Origin.Code,
			Destination: s.Scratch.Destination.Code,
		})
		if err != nil {
			return stepResult{}, err
		}
		s.Draft = draft
		s.Scratch.Destination = nil
		return stepResult{next: StageDepartStart}, nil
	case "roundtrip":
		return stepResult{next: StageStayMin}, nil
	}
	return stepResult{}, invalidInput("Please choose one-way or round trip with the buttons.")
}

func (b *Bot) handleStayMinStep(s *Session, in string) (stepResult, error) {
	n, err := strconv.Atoi(strings.TrimSpace(in))
	if err != nil || n < 1 || n > flightplan.MaxStayDays {
		return stepResult{}, invalidInput("Send the minimum stay as a number of days between 1 and %d.", flightplan.MaxStayDays)
	}
	s.Scratch.StayMin = n
	return stepResult{next: StageStayMax}, nil
}

func (b *Bot) handleStayMaxStep(s *Session, in string) (stepResult, error) {
	n, err := strconv.Atoi(strings.TrimSpace(in))
	if err != nil || n < s.Scratch.StayMin || n > flightplan.MaxStayDays {
		return stepResult{}, invalidInput("Send the maximum stay as a number between %d and %d.", s.Scratch.StayMin, flightplan.MaxStayDays)
	}

	leg := flightplan.Leg{
		Origin:      chainTail(s),
		Destination: s.Scratch.Destination.Code,
		Stay:        &flightplan.StayWindow{MinDays: s.Scratch.StayMin, MaxDays: n},
	}
	draft, err := s.Draft.AppendLeg(leg)
	if err != nil {
		return stepResult{}, err
	}
	s.Draft = draft
	s.Scratch.Destination = nil
	s.Scratch.StayMin = 0

	if s.Mode == ModeRoute {
		return stepResult{next: StageDepartStart}, nil
	}
	return stepResult{next: StageAddMore}, nil
}

func (b *Bot) handleAddMoreStep(s *Session, in string) (stepResult, error) {
	switch in {
	case "add":
		// The keyboard omits this choice at the cap, but input can
		// still arrive as text.
		if len(s.Draft.Legs) >= s.Quota.MaxLegs-1 {
			return stepResult{}, invalidInput("Your plan allows %d legs per trip, and one slot is reserved for the return. Choose Return or Done.", s.Quota.MaxLegs)
		}
		return stepResult{next: StageDestination}, nil
	case "return":
		// The keyboard omits this choice when the chain already ends
		// at the origin, but input can arrive as text here too.
		if chainTail(s) == s.Draft.Legs[0].Origin {
			return stepResult{}, invalidInput("You are already back in %s. Choose Done to pick dates.", s.Draft.Legs[0].Origin)
		}
		draft, err := s.Draft.AppendLeg(flightplan.Leg{
			Origin:      chainTail(s),
			Destination: s.Draft.Legs[0].Origin,
		})
		if err != nil {
			return stepResult{}, err
		}
		s.Draft = draft
		return stepResult{next: StageDepartStart}, nil
	case "done":
		return stepResult{next: StageDepartStart}, nil
	}
	return stepResult{}, invalidInput("Please choose what to do next with the buttons.")
}

func (b *Bot) handleDepartStartStep(s *Session, in string) (stepResult, error) {
	d, err := parseDate(in)
	if err != nil {
		return stepResult{}, invalidInput("Send the date as YYYY-MM-DD or DD.MM.YYYY.")
	}
	if d.Before(todayUTC()) {
		return stepResult{}, invalidInput("%s is in the past. Send a future date.", d.Format(displayDateFormat))
	}
	s.Scratch.DepartStart = d
	return stepResult{next: StageDepartEnd}, nil
}

func (b *Bot) handleDepartEndStep(s *Session, in string) (stepResult, error) {
	end, err := parseDate(in)
	if err != nil {
		return stepResult{}, invalidInput("Send the date as YYYY-MM-DD or DD.MM.YYYY.")
	}
	draft, err := s.Draft.SetDepartureWindow(s.Scratch.DepartStart, end)
	if err != nil {
		var rangeErr *flightplan.InvalidDateRangeError
		if errors.As(err, &rangeErr) {
			return stepResult{}, invalidInput("That window does not work: %s.", rangeErr.Reason)
		}
		return stepResult{}, err
	}
	s.Draft = draft

	// The combination budget must be gated here: this is the last
	// input that can change the computed count.
	result, denied, err := b.runAdmission(s)
	if err != nil {
		return stepResult{}, err
	}
	if denied {
		return result, nil
	}

	count := flightplan.CombinationCount(s.Draft)
	note := fmt.Sprintf("✅ These dates expand to %d itinerary combinations, within your plan's limit of %d.",
		count, s.Quota.MaxCombinations)

	s.Scratch.FilterLeg = -1
	s.Scratch.Filters = flightplan.FilterSet{}
	// Trip mode always asks all-legs vs per-leg; route mode has only
	// one leg, so the step exists there just to offer saved presets.
	if s.Mode == ModeTrip || len(s.Presets) > 0 {
		return stepResult{next: StageFilterMode, notes: []string{note}}, nil
	}
	return stepResult{next: StageAdults, notes: []string{note}}, nil
}

// runAdmission checks both quota gates against fresh usage counts.
// When denied it returns the routing the wizard must take: back to the
// step owning the offending parameter.
func (b *Bot) runAdmission(s *Session) (stepResult, bool, error) {
	counts, err := b.storage.LoadUserCounts(s.ChatID)
	if err != nil {
		log.Printf("Usage counts unavailable for chat %d: %v", s.ChatID, err)
		return stepResult{}, true, invalidInput("Could not verify your quota right now. Please try again.")
	}
	decision := flightplan.CheckAdmission(counts, s.Quota, s.Draft)
	if decision.Allowed {
		return stepResult{}, false, nil
	}
	switch decision.Gate {
	case flightplan.GateCombinations:
		return stepResult{
			rewind:   true,
			rewindTo: StageDepartStart,
			notes:    []string{"🚫 " + decision.Reason + "\n\nLet's pick the dates again."},
		}, true, nil
	default:
		// Route or leg count cannot be fixed from inside the wizard.
		return stepResult{
			cancel: true,
			notes:  []string{"🚫 " + decision.Reason},
		}, true, nil
	}
}

func (b *Bot) handleFilterModeStep(s *Session, in string) (stepResult, error) {
	switch {
	case in == "all":
		s.Scratch.FilterLeg = -1
		return stepResult{next: StageAdults}, nil
	case in == "perleg":
		s.Scratch.FilterLeg = 0
		return stepResult{next: StageAdults}, nil
	case strings.HasPrefix(in, "preset:"):
		idx, err := strconv.Atoi(strings.TrimPrefix(in, "preset:"))
		if err != nil || idx < 0 || idx >= len(s.Presets) {
			return stepResult{}, invalidInput("That preset is no longer available. Use the buttons.")
		}
		preset := s.Presets[idx]
		s.Draft = s.Draft.ApplyFilterSetToAllLegs(preset.Filters)
		note := fmt.Sprintf("↩️ Applied your %s filters to every leg.", preset.SourceLabel)
		return stepResult{next: StageBudget, notes: []string{note}}, nil
	}
	return stepResult{}, invalidInput("Please choose a filter mode with the buttons.")
}

func (b *Bot) handleAdultsStep(s *Session, in string) (stepResult, error) {
	n, err := strconv.Atoi(strings.TrimSpace(in))
	if err != nil || n < 1 || n > 9 {
		return stepResult{}, invalidInput("Send the number of adults, between 1 and 9.")
	}
	s.Scratch.Filters.Adults = n
	return stepResult{next: StageChildren}, nil
}

func (b *Bot) handleChildrenStep(s *Session, in string) (stepResult, error) {
	n, err := strconv.Atoi(strings.TrimSpace(in))
	if err != nil || n < 0 || n > 9 {
		return stepResult{}, invalidInput("Send the number of children, between 0 and 9.")
	}
	s.Scratch.Filters.Children = n
	return stepResult{next: StageAirline}, nil
}

func (b *Bot) handleAirlineStep(s *Session, in string) (stepResult, error) {
	if in == "any" {
		s.Scratch.Filters.PreferredAirline = ""
		return stepResult{next: StageBaggage}, nil
	}
	code := strings.ToUpper(strings.TrimSpace(in))
	if len(code) != 2 || !isAlphanumeric(code) {
		return stepResult{}, invalidInput("Airline codes are two letters or digits, e.g. LH or U2. Send a code or pick Any.")
	}
	s.Scratch.Filters.PreferredAirline = code
	return stepResult{next: StageBaggage}, nil
}

func (b *Bot) handleBaggageStep(s *Session, in string) (stepResult, error) {
	switch in {
	case "yes":
		s.Scratch.Filters.CheckedBaggage = true
	case "no":
		s.Scratch.Filters.CheckedBaggage = false
	default:
		return stepResult{}, invalidInput("Please answer with the Yes or No button.")
	}
	return stepResult{next: StageStops}, nil
}

func (b *Bot) handleStopsStep(s *Session, in string) (stepResult, error) {
	switch in {
	case "0", "1", "2":
		s.Scratch.Filters.MaxStops, _ = strconv.Atoi(in)
	case "unlimited":
		s.Scratch.Filters.MaxStops = flightplan.StopsUnlimited
	default:
		return stepResult{}, invalidInput("Please pick the number of stops with the buttons.")
	}
	if s.Scratch.Filters.MaxStops == 0 {
		s.Scratch.Filters.MaxLayoverHours = 0
		return b.finishFilterSet(s)
	}
	return stepResult{next: StageLayover}, nil
}

func (b *Bot) handleLayoverStep(s *Session, in string) (stepResult, error) {
	n, err := strconv.Atoi(strings.TrimSpace(in))
	if err != nil || n < 1 || n > 24 {
		return stepResult{}, invalidInput("Send the longest acceptable layover in hours, between 1 and 24.")
	}
	s.Scratch.Filters.MaxLayoverHours = n
	return b.finishFilterSet(s)
}

// finishFilterSet commits the collected filter set to its target legs
// and decides whether another leg still needs filters.
func (b *Bot) finishFilterSet(s *Session) (stepResult, error) {
	if s.Scratch.FilterLeg < 0 {
		s.Draft = s.Draft.ApplyFilterSetToAllLegs(s.Scratch.Filters)
		return stepResult{next: StageBudget}, nil
	}

	draft, err := s.Draft.ApplyFilterSetToLeg(s.Scratch.FilterLeg, s.Scratch.Filters)
	if err != nil {
		return stepResult{}, err
	}
	s.Draft = draft

	if s.Scratch.FilterLeg+1 < len(s.Draft.Legs) {
		s.Scratch.FilterLeg++
		s.Scratch.Filters = flightplan.FilterSet{}
		return stepResult{next: StageAdults}, nil
	}
	return stepResult{next: StageBudget}, nil
}

func (b *Bot) handleBudgetStep(s *Session, in string) (stepResult, error) {
	amount, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(in), ",", "."), 64)
	if err != nil || amount <= 0 {
		return stepResult{}, invalidInput("Send the price threshold as a positive number, e.g. 250.")
	}
	s.Draft.Budget = amount
	return stepResult{next: StageConfirm}, nil
}

func (b *Bot) handleConfirmStep(s *Session, in string) (stepResult, error) {
	if in != "save" {
		return stepResult{}, invalidInput("Please confirm with the Save or Discard button.")
	}

	// Usage may have changed since the date step; re-run both gates
	// so the commit itself can never overshoot the quota.
	result, denied, err := b.runAdmission(s)
	if err != nil {
		return stepResult{}, err
	}
	if denied {
		return result, nil
	}

	id, err := b.storage.SaveConfiguration(s.ChatID, s.Draft)
	if err != nil {
		// The session survives a persist failure so the user can
		// retry without re-entering everything.
		log.Printf("Failed to save configuration for chat %d: %v", s.ChatID, err)
		return stepResult{}, invalidInput("Could not save the configuration right now. Press Save to try again.")
	}

	log.Printf("Saved configuration %s for chat %d (%d combinations)", id, s.ChatID, flightplan.CombinationCount(s.Draft))
	note := fmt.Sprintf("💾 Saved! I will start watching prices for %s. See it anytime with /list.", configLabel(s.Draft))
	return stepResult{commit: true, notes: []string{note}}, nil
}

// isAlphanumeric reports whether the string is ASCII letters/digits only.
func isAlphanumeric(s string) bool {
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// todayUTC is the current calendar date at midnight UTC.
func todayUTC() time.Time {
	y, m, d := time.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
