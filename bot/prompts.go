package bot

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iabalyuk/farewizard/flightplan"
	"github.com/iabalyuk/farewizard/storage"
)

// Date formats accepted from users, tried in order.
var inputDateFormats = []string{"2006-01-02", "02.01.2006"}

const displayDateFormat = "02.01.2006"

// parseDate parses a user-entered calendar date.
func parseDate(text string) (time.Time, error) {
	trimmed := strings.TrimSpace(text)
	for _, format := range inputDateFormats {
		if t, err := time.Parse(format, trimmed); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", trimmed)
}

// chainTail returns the airport code the next leg must depart from.
func chainTail(s *Session) string {
	if n := len(s.Draft.Legs); n > 0 {
		return s.Draft.Legs[n-1].Destination
	}
	if s.Scratch.Origin != nil {
		return s.Scratch.Origin.Code
	}
	return ""
}

// filterLegContext names the leg the filter stages are collecting for,
// or "" in all-legs mode.
func filterLegContext(s *Session) string {
	if s.Scratch.FilterLeg < 0 || s.Scratch.FilterLeg >= len(s.Draft.Legs) {
		return ""
	}
	leg := s.Draft.Legs[s.Scratch.FilterLeg]
	return fmt.Sprintf("Leg %d (%s→%s): ", s.Scratch.FilterLeg+1, leg.Origin, leg.Destination)
}

// renderPrompt regenerates the prompt for the session's current stage
// purely from the session, so Back can reproduce it byte for byte.
func renderPrompt(s *Session) (string, *tgbotapi.InlineKeyboardMarkup) {
	switch s.Stage {
	case StageOrigin:
		return "Where do you fly from? Send a city name or an airport code.", nil

	case StageOriginPick, StageDestinationPick:
		if len(s.Scratch.Candidates) == 1 {
			kb := yesNoKeyboard("pick:0", "retry")
			return fmt.Sprintf("Did you mean %s, %s?", s.Scratch.Candidates[0].Label(), s.Scratch.Candidates[0].Country), &kb
		}
		kb := candidatesKeyboard(s.Scratch.Candidates)
		return "Several airports match. Pick one:", &kb

	case StageDestination:
		if s.Mode == ModeTrip && len(s.Draft.Legs) > 0 {
			kb := backOnlyKeyboard()
			return fmt.Sprintf("Where to next from %s? Send a city name or an airport code.", chainTail(s)), &kb
		}
		kb := backOnlyKeyboard()
		return fmt.Sprintf("Where to from %s? Send a city name or an airport code.", chainTail(s)), &kb

	case StageTripType:
		kb := tripTypeKeyboard()
		return "One-way, or a round trip?", &kb

	case StageStayMin:
		kb := backOnlyKeyboard()
		city := destinationCity(s)
		if s.Mode == ModeRoute {
			return fmt.Sprintf("How many days will you stay in %s at minimum before flying back? Send a number.", city), &kb
		}
		return fmt.Sprintf("How many days will you stay in %s at minimum? Send a number.", city), &kb

	case StageStayMax:
		kb := backOnlyKeyboard()
		return fmt.Sprintf("And at most? Send a number not below %d.", s.Scratch.StayMin), &kb

	case StageAddMore:
		kb := addMoreKeyboard(s)
		leg := s.Draft.Legs[len(s.Draft.Legs)-1]
		return fmt.Sprintf("Leg %s→%s added. What next?", leg.Origin, leg.Destination), &kb

	case StageDepartStart:
		kb := backOnlyKeyboard()
		return fmt.Sprintf("Earliest departure date from %s? Send it as YYYY-MM-DD or DD.MM.YYYY.", s.Draft.Legs[0].Origin), &kb

	case StageDepartEnd:
		kb := backOnlyKeyboard()
		return fmt.Sprintf("Latest departure date? Send %s again for that exact day.",
			s.Scratch.DepartStart.Format(displayDateFormat)), &kb

	case StageFilterMode:
		kb := filterModeKeyboard(s)
		if s.Mode == ModeRoute {
			return "You have used these filters before. Reuse a set, or start fresh?", &kb
		}
		return "Apply the same search filters to every leg, or set them per leg?", &kb

	case StageAdults:
		kb := backOnlyKeyboard()
		return filterLegContext(s) + "How many adult passengers? (1-9)", &kb

	case StageChildren:
		kb := backOnlyKeyboard()
		return filterLegContext(s) + "How many children? (0-9)", &kb

	case StageAirline:
		kb := airlineKeyboard()
		return filterLegContext(s) + "Preferred airline? Send its two-character code, or pick Any.", &kb

	case StageBaggage:
		kb := yesNoKeyboard("yes", "no")
		return filterLegContext(s) + "Do you need checked baggage?", &kb

	case StageStops:
		kb := stopsKeyboard()
		return filterLegContext(s) + "How many stops at most?", &kb

	case StageLayover:
		kb := backOnlyKeyboard()
		return filterLegContext(s) + "Longest acceptable layover, in hours? (1-24)", &kb

	case StageBudget:
		kb := backOnlyKeyboard()
		return "Notify you when the total price drops below what amount? Send a number, e.g. 250.", &kb

	case StageConfirm:
		kb := confirmKeyboard()
		return confirmSummary(s), &kb
	}
	return "Something went wrong. Use /route or /trip to start over.", nil
}

// destinationCity is the display name of the city the stay stages ask
// about: the pending candidate destination.
func destinationCity(s *Session) string {
	if s.Scratch.Destination != nil {
		return s.Scratch.Destination.City
	}
	return chainTail(s)
}

// confirmSummary renders the full draft for the confirmation prompt.
func confirmSummary(s *Session) string {
	var b strings.Builder
	b.WriteString("Here is your configuration:\n\n")
	for i, leg := range s.Draft.Legs {
		b.WriteString(fmt.Sprintf("%d. %s → %s", i+1, leg.Origin, leg.Destination))
		if leg.Stay != nil {
			if leg.Stay.MinDays == leg.Stay.MaxDays {
				b.WriteString(fmt.Sprintf(", stay %d days", leg.Stay.MinDays))
			} else {
				b.WriteString(fmt.Sprintf(", stay %d-%d days", leg.Stay.MinDays, leg.Stay.MaxDays))
			}
		}
		b.WriteString("\n")
		b.WriteString("   " + filterSummary(leg.Filters) + "\n")
	}
	b.WriteString(fmt.Sprintf("\nDeparture between %s and %s\n",
		s.Draft.Window.Start.Format(displayDateFormat),
		s.Draft.Window.End.Format(displayDateFormat)))
	b.WriteString(fmt.Sprintf("Price alert below %.2f\n", s.Draft.Budget))
	b.WriteString(fmt.Sprintf("This expands to %d itinerary combinations.\n\nSave it?",
		flightplan.CombinationCount(s.Draft)))
	return b.String()
}

// filterSummary renders one leg's filter set for summaries.
func filterSummary(fs flightplan.FilterSet) string {
	parts := []string{fmt.Sprintf("%d adult(s)", fs.Adults)}
	if fs.Children > 0 {
		parts = append(parts, fmt.Sprintf("%d child(ren)", fs.Children))
	}
	if fs.PreferredAirline != "" {
		parts = append(parts, "airline "+fs.PreferredAirline)
	} else {
		parts = append(parts, "any airline")
	}
	if fs.CheckedBaggage {
		parts = append(parts, "checked bag")
	}
	switch fs.MaxStops {
	case flightplan.StopsUnlimited:
		parts = append(parts, "any stops")
	case 0:
		parts = append(parts, "direct only")
	default:
		parts = append(parts, fmt.Sprintf("max %d stop(s), layover ≤%dh", fs.MaxStops, fs.MaxLayoverHours))
	}
	return strings.Join(parts, ", ")
}

// configurationLine renders one saved configuration for /list.
func configurationLine(index int, cfg storage.SavedConfiguration) string {
	return fmt.Sprintf("%d. %s, %s – %s, %s, %d combinations",
		index,
		configLabel(cfg.Draft),
		cfg.Draft.Window.Start.Format(displayDateFormat),
		cfg.Draft.Window.End.Format(displayDateFormat),
		cfg.Kind,
		flightplan.CombinationCount(cfg.Draft))
}
