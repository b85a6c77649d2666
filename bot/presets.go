package bot

import (
	"fmt"
	"log"
	"strings"

	"github.com/iabalyuk/farewizard/flightplan"
	"github.com/iabalyuk/farewizard/storage"
)

// presetLimit caps how many presets are offered on the filter-mode step.
const presetLimit = 6

// Preset is a previously-used filter combination offered as a one-tap
// selection. SourceLabel names the configuration it came from, e.g.
// "BER→LIS". Presets are advisory: applying one is just
// ApplyFilterSetToAllLegs on the draft.
type Preset struct {
	Filters     flightplan.FilterSet
	SourceLabel string
}

// historyReader is the narrow read interface the preset resolver needs.
type historyReader interface {
	LoadUserConfigurations(chatID int64) ([]storage.SavedConfiguration, error)
}

// resolvePresets derives up to presetLimit deduplicated presets from
// the user's saved configurations, oldest first. On any read error it
// returns an empty list: presets are an optimization, never a
// requirement to proceed.
func resolvePresets(history historyReader, chatID int64) []Preset {
	configs, err := history.LoadUserConfigurations(chatID)
	if err != nil {
		log.Printf("Presets unavailable for chat %d: %v", chatID, err)
		return nil
	}

	seen := make(map[string]bool)
	var out []Preset
	for _, cfg := range configs {
		for _, leg := range cfg.Draft.Legs {
			key := filterKey(leg.Filters)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, Preset{
				Filters:     leg.Filters,
				SourceLabel: configLabel(cfg.Draft),
			})
			if len(out) == presetLimit {
				return out
			}
		}
	}
	return out
}

// filterKey is the canonical dedup key of a filter set: stable field
// order, airline normalized to upper case, layover zeroed when it is
// meaningless (no stops allowed).
func filterKey(fs flightplan.FilterSet) string {
	layover := fs.MaxLayoverHours
	if fs.MaxStops == 0 {
		layover = 0
	}
	return fmt.Sprintf("%d|%d|%s|%t|%d|%d",
		fs.Adults, fs.Children,
		strings.ToUpper(strings.TrimSpace(fs.PreferredAirline)),
		fs.CheckedBaggage, fs.MaxStops, layover)
}

// configLabel renders a configuration as "first origin→last destination".
func configLabel(d flightplan.Draft) string {
	if len(d.Legs) == 0 {
		return "?"
	}
	return fmt.Sprintf("%s→%s", d.Legs[0].Origin, d.Legs[len(d.Legs)-1].Destination)
}

// presetSummary renders a preset for its keyboard button.
func presetSummary(p Preset) string {
	parts := []string{fmt.Sprintf("%d ad", p.Filters.Adults)}
	if p.Filters.Children > 0 {
		parts = append(parts, fmt.Sprintf("%d ch", p.Filters.Children))
	}
	if p.Filters.PreferredAirline != "" {
		parts = append(parts, p.Filters.PreferredAirline)
	}
	if p.Filters.CheckedBaggage {
		parts = append(parts, "bag")
	}
	switch p.Filters.MaxStops {
	case flightplan.StopsUnlimited:
		parts = append(parts, "any stops")
	case 0:
		parts = append(parts, "direct")
	default:
		parts = append(parts, fmt.Sprintf("≤%d stops", p.Filters.MaxStops))
	}
	return fmt.Sprintf("%s (%s)", strings.Join(parts, ", "), p.SourceLabel)
}
