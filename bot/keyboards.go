package bot

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iabalyuk/farewizard/airports"
)

// Callback data values the engine understands regardless of stage.
const (
	cbBack   = "back"
	cbCancel = "cancel"
)

// backRow is the shared Back/Cancel row appended to every wizard
// keyboard past the first step.
func backRow() []tgbotapi.InlineKeyboardButton {
	return []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", cbBack),
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", cbCancel),
	}
}

// backOnlyKeyboard is the keyboard for free-text stages: no choices,
// just navigation.
func backOnlyKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(backRow())
}

// yesNoKeyboard returns a two-button confirm keyboard with the given
// callback values, plus navigation.
func yesNoKeyboard(yesData, noData string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("✅ Yes", yesData),
			tgbotapi.NewInlineKeyboardButtonData("❌ No", noData),
		},
		backRow(),
	)
}

// candidatesKeyboard lists airport search matches, one per row.
func candidatesKeyboard(candidates []airports.Airport) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, a := range candidates {
		label := fmt.Sprintf("%s, %s", a.Label(), a.Country)
		button := tgbotapi.NewInlineKeyboardButtonData(label, "pick:"+strconv.Itoa(i))
		rows = append(rows, []tgbotapi.InlineKeyboardButton{button})
	}
	rows = append(rows, backRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// tripTypeKeyboard offers the single-leg flow's shape choice.
func tripTypeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("➡️ One-way", "oneway"),
			tgbotapi.NewInlineKeyboardButtonData("🔄 Round trip", "roundtrip"),
		},
		backRow(),
	)
}

// addMoreKeyboard offers the multi-leg loop's continuations. "Add
// another city" appears only while a slot remains below the leg quota,
// reserving one slot for the closing return leg. "Return" disappears
// when the chain already ends at the trip's origin.
func addMoreKeyboard(s *Session) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	if len(s.Draft.Legs) < s.Quota.MaxLegs-1 {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("🏙 Add another city", "add"),
		})
	}
	origin := s.Draft.Legs[0].Origin
	if chainTail(s) != origin {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🏠 Return to %s", origin), "return"),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("✅ Done, pick dates", "done"),
	})
	rows = append(rows, backRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// filterModeKeyboard offers all-legs vs per-leg filter collection plus
// up to presetLimit one-tap presets from the user's history. A
// single-leg route has no all/per-leg question, only the presets.
func filterModeKeyboard(s *Session) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	if s.Mode == ModeTrip {
		rows = append(rows,
			[]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("Same filters for all legs", "all")},
			[]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("Set filters per leg", "perleg")},
		)
	} else {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("Set filters now", "all"),
		})
	}
	for i, p := range s.Presets {
		button := tgbotapi.NewInlineKeyboardButtonData("↩️ "+presetSummary(p), "preset:"+strconv.Itoa(i))
		rows = append(rows, []tgbotapi.InlineKeyboardButton{button})
	}
	rows = append(rows, backRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// airlineKeyboard lets the user skip the airline filter.
func airlineKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("Any airline", "any"),
		},
		backRow(),
	)
}

// stopsKeyboard offers the max-stops choices.
func stopsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("Direct", "0"),
			tgbotapi.NewInlineKeyboardButtonData("1", "1"),
			tgbotapi.NewInlineKeyboardButtonData("2", "2"),
			tgbotapi.NewInlineKeyboardButtonData("Any", "unlimited"),
		},
		backRow(),
	)
}

// confirmKeyboard is the final save/discard choice.
func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("💾 Save", "save"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Discard", cbCancel),
		},
		backRow(),
	)
}
