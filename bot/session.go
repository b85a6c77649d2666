package bot

import (
	"sync"
	"time"

	"github.com/iabalyuk/farewizard/airports"
	"github.com/iabalyuk/farewizard/flightplan"
)

// Stage represents the wizard step a session is currently waiting on
type Stage int

const (
	StageIdle Stage = iota
	StageOrigin
	StageOriginPick
	StageDestination
	StageDestinationPick
	StageTripType
	StageStayMin
	StageStayMax
	StageAddMore
	StageDepartStart
	StageDepartEnd
	StageFilterMode
	StageAdults
	StageChildren
	StageAirline
	StageBaggage
	StageStops
	StageLayover
	StageBudget
	StageConfirm
)

// Mode selects which of the two wizard flows a session runs
type Mode int

const (
	// ModeRoute is the single-leg flow: one hop, optionally with a
	// stay window deriving the return date.
	ModeRoute Mode = iota
	// ModeTrip is the multi-leg flow with the add-another-city loop.
	ModeTrip
)

// Scratch holds transient per-step fields that are not yet committed
// to the draft. Each field is owned by the stages noted next to it and
// is only meaningful while one of those stages is current or ahead.
type Scratch struct {
	// StageOrigin / StageOriginPick / StageDestination / StageDestinationPick
	Candidates  []airports.Airport // pending pick list from a text search
	Origin      *airports.Airport  // confirmed trip origin, set before the first leg exists
	Destination *airports.Airport  // candidate destination, committed to the draft at leg append

	// StageStayMin
	StayMin int

	// StageDepartStart
	DepartStart time.Time

	// Filter collection stages. FilterLeg is the index of the leg the
	// filters under construction belong to, or -1 when one set is
	// applied to every leg.
	FilterLeg int
	Filters   flightplan.FilterSet
}

// Session represents the state of one chat's wizard interaction.
// Exclusively owned by the wizard engine.
type Session struct {
	ChatID  int64
	Mode    Mode
	Stage   Stage
	Draft   flightplan.Draft
	Scratch Scratch

	// Quota is loaded once at wizard entry; usage counts are re-read
	// whenever admission runs so deletions in between are respected.
	Quota flightplan.Quota

	// Presets resolved at wizard entry, offered on the filter-mode step.
	Presets []Preset

	// history holds one snapshot per completed forward transition so
	// that Back can restore the exact prior prompt.
	history []snapshot
}

// snapshot is the restorable part of a session. Draft is copy-on-write
// and Scratch is replaced, never mutated in place, by handlers, so a
// shallow copy is a faithful snapshot.
type snapshot struct {
	Stage   Stage
	Draft   flightplan.Draft
	Scratch Scratch
}

// pushHistory records the current state before a forward transition.
func (s *Session) pushHistory() {
	s.history = append(s.history, snapshot{Stage: s.Stage, Draft: s.Draft, Scratch: s.Scratch})
}

// popHistory restores the most recent snapshot. It reports false when
// there is nothing to go back to.
func (s *Session) popHistory() bool {
	if len(s.history) == 0 {
		return false
	}
	top := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	s.Stage = top.Stage
	s.Draft = top.Draft
	s.Scratch = top.Scratch
	return true
}

// rewindTo unwinds history until the given stage is current again,
// restoring draft and scratch as they were when that stage last
// prompted. Used when admission control sends the user back to the
// step owning the offending parameter. Reports false when the stage is
// not in the history.
func (s *Session) rewindTo(stage Stage) bool {
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].Stage == stage {
			top := s.history[i]
			s.history = s.history[:i]
			s.Stage = top.Stage
			s.Draft = top.Draft
			s.Scratch = top.Scratch
			return true
		}
	}
	return false
}

// SessionStore is the injected keyed session storage. Get/Set/Delete
// have last-write-wins semantics; the engine serializes access per
// chat so no optimistic concurrency is needed.
type SessionStore interface {
	Get(chatID int64) (*Session, bool)
	Set(chatID int64, s *Session)
	Delete(chatID int64)
}

// MemorySessionStore is the in-memory SessionStore used in production.
// Sessions are deliberately not persisted: a partially-built draft is
// never resumed across restarts.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemorySessionStore creates an empty in-memory session store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[int64]*Session)}
}

// Get returns the session for chatID, if any
func (m *MemorySessionStore) Get(chatID int64) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[chatID]
	return s, ok
}

// Set stores the session for chatID
func (m *MemorySessionStore) Set(chatID int64, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[chatID] = s
}

// Delete removes the session for chatID
func (m *MemorySessionStore) Delete(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
}
