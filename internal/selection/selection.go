// Package selection implements the per-slot select/deselect toggle over an
// immutable Selection value.
package selection

import (
	"sort"
	"time"

	"courtbook/internal/model"
	"courtbook/internal/promotion"
	"courtbook/internal/slots"
)

// IsSelected reports whether a slot with the same key is in sel.
func IsSelected(sel model.Selection, slot *model.ScheduleSlot) bool {
	return indexOf(sel[slot.ResourceID], slot.Key()) >= 0
}

// Toggle flips the selection state of slot. It returns the new selection and
// whether anything changed; sel itself is never modified.
func Toggle(sel model.Selection, resource *model.Resource, slot model.ScheduleSlot, now time.Time) (model.Selection, bool) {
	if IsSelected(sel, &slot) {
		return Deselect(sel, slot.Key())
	}
	return Select(sel, resource, slot, now)
}

// Select adds slot priced with the first active promotion of resource.
// Unavailable or already selected slots are a no-op.
func Select(sel model.Selection, resource *model.Resource, slot model.ScheduleSlot, now time.Time) (model.Selection, bool) {
	if !slot.IsAvailable || IsSelected(sel, &slot) {
		return sel, false
	}

	priced := promotion.Apply(slot, resource, now)
	out := sel.Clone()
	list := append(out[slot.ResourceID], priced)
	slots.SortByStart(list)
	out[slot.ResourceID] = list
	return out, true
}

// Deselect removes the slot identified by key. A resource whose list becomes
// empty is removed from the selection.
func Deselect(sel model.Selection, key model.SlotKey) (model.Selection, bool) {
	idx := indexOf(sel[key.ResourceID], key)
	if idx < 0 {
		return sel, false
	}

	out := sel.Clone()
	list := out[key.ResourceID]
	list = append(list[:idx], list[idx+1:]...)
	if len(list) == 0 {
		delete(out, key.ResourceID)
	} else {
		out[key.ResourceID] = list
	}
	return out, true
}

// Flatten returns the selected slots as booking details ordered by resource
// id and then start time.
func Flatten(sel model.Selection) []model.BookingDetail {
	ids := make([]string, 0, len(sel))
	for id := range sel {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	details := make([]model.BookingDetail, 0, sel.Len())
	for _, id := range ids {
		for _, s := range sel[id] {
			details = append(details, model.BookingDetail{
				ResourceID: id,
				StartTime:  s.StartTime,
				EndTime:    s.EndTime,
			})
		}
	}
	return details
}

// Merge returns the union of a and b. Slots present in both are kept once.
func Merge(a, b model.Selection) model.Selection {
	out := a.Clone()
	for id, list := range b {
		for _, s := range list {
			if indexOf(out[id], s.Key()) >= 0 {
				continue
			}
			out[id] = append(out[id], s)
		}
		slots.SortByStart(out[id])
	}
	return out
}

// Reprice re-applies promotions to every selected slot as of now.
func Reprice(sel model.Selection, resources map[string]*model.Resource, now time.Time) model.Selection {
	out := make(model.Selection, len(sel))
	for id, list := range sel {
		priced := make([]model.ScheduleSlot, len(list))
		for i, s := range list {
			priced[i] = promotion.Apply(s, resources[id], now)
		}
		out[id] = priced
	}
	return out
}

func indexOf(list []model.ScheduleSlot, key model.SlotKey) int {
	for i := range list {
		if list[i].Key() == key {
			return i
		}
	}
	return -1
}
