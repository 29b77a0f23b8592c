// Package export renders a resolved booking day and a selection to a spreadsheet.
package export

import (
	"fmt"
	"sort"
	"time"

	"courtbook/internal/model"
)

var slotColumns = []string{"Resource", "Date", "Time", "Status", "Available", "Price", "Original price", "Promotion"}

var selectionColumns = []string{"Resource", "Start", "End", "Price"}

// Day is what gets exported for one date.
type Day struct {
	Date      time.Time
	Slots     map[string][]model.ScheduleSlot
	Errors    map[string]error
	Selection model.Selection
	Breakdown *model.PriceBreakdown
}

// Filename returns "slots_YYYY-MM-DD.xlsx".
func Filename(date time.Time) string {
	return fmt.Sprintf("slots_%s.xlsx", date.Format(model.DateLayout))
}

// WriteDay writes one "Slots" sheet with every resolved slot and, when
// anything is selected, a "Selection" sheet with the booking lines and totals.
// Resources whose fetch failed are listed with their error.
func WriteDay(w SheetWriter, day Day) error {
	if err := w.AddSheet("Slots"); err != nil {
		return err
	}
	if err := w.WriteHeader(slotColumns); err != nil {
		return err
	}

	date := day.Date.Format(model.DateLayout)
	for _, id := range sortedKeys(day.Slots, day.Errors) {
		if fetchErr, failed := day.Errors[id]; failed {
			if err := w.WriteRow([]any{id, date, "", "ERROR", false, "", "", fetchErr.Error()}); err != nil {
				return err
			}
			continue
		}
		for _, s := range day.Slots[id] {
			row := []any{id, date, s.DisplayTime, string(s.Status), s.IsAvailable, s.Price, s.OriginalPrice, s.PromotionName}
			if err := w.WriteRow(row); err != nil {
				return err
			}
		}
	}

	if day.Selection.IsEmpty() {
		return nil
	}

	if err := w.AddSheet("Selection"); err != nil {
		return err
	}
	if err := w.WriteHeader(selectionColumns); err != nil {
		return err
	}
	for _, id := range sortedKeys(day.Selection, nil) {
		for _, s := range day.Selection[id] {
			if err := w.WriteRow([]any{id, s.StartTime, s.EndTime, s.Price}); err != nil {
				return err
			}
		}
	}

	if day.Breakdown != nil {
		b := day.Breakdown
		totals := [][]any{
			{"Subtotal", "", "", b.Subtotal},
			{"Tax", "", "", b.Tax},
			{"Minimum deposit", "", "", b.MinimumDeposit},
			{"Total", "", "", b.Total},
		}
		for _, row := range totals {
			if err := w.WriteRow(row); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V, extra map[string]error) []string {
	seen := make(map[string]bool, len(m)+len(extra))
	keys := make([]string, 0, len(m)+len(extra))
	for k := range m {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range extra {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
