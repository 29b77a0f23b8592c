package selection

import (
	"testing"
	"time"

	"courtbook/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func slot(resourceID, start, end string, price float64, available bool) model.ScheduleSlot {
	return model.ScheduleSlot{
		ResourceID:    resourceID,
		Date:          time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
		StartTime:     start,
		EndTime:       end,
		Status:        model.StatusAvailable,
		Price:         price,
		OriginalPrice: price,
		IsAvailable:   available,
		DisplayTime:   start + " - " + end,
	}
}

func promoResource(id string, pct float64, from, to time.Time) *model.Resource {
	return &model.Resource{
		ID: id,
		Promotions: []model.Promotion{{
			ID: "p-" + id, Name: "Promo", DiscountType: model.DiscountPercentage, DiscountValue: &pct,
			ValidFrom: from, ValidTo: to,
		}},
	}
}

func TestToggle_SelectThenDeselectRestoresState(t *testing.T) {
	r := &model.Resource{ID: "c1"}
	before := model.Selection{
		"c1": {slot("c1", "08:00", "09:00", 100000, true), slot("c1", "11:00", "12:00", 100000, true)},
		"c2": {slot("c2", "09:00", "10:00", 50000, true)},
	}
	snapshot := before.Clone()

	selected, changed := Toggle(before, r, slot("c1", "10:00", "11:00", 100000, true), now)
	require.True(t, changed)
	require.Len(t, selected["c1"], 3)
	assert.Equal(t, "10:00", selected["c1"][1].StartTime)
	assert.Equal(t, snapshot, before, "input must not be mutated")

	after, changed := Toggle(selected, r, slot("c1", "10:00", "11:00", 100000, true), now)
	require.True(t, changed)
	assert.Equal(t, before, after)
}

func TestToggle_EmptyResourceKeyIsRemoved(t *testing.T) {
	r := &model.Resource{ID: "c1"}
	sel := model.Selection{}

	sel, _ = Toggle(sel, r, slot("c1", "09:00", "10:00", 100000, true), now)
	assert.Contains(t, sel, "c1")

	sel, _ = Toggle(sel, r, slot("c1", "09:00", "10:00", 100000, true), now)
	assert.NotContains(t, sel, "c1")
	assert.Equal(t, model.Selection{}, sel)
}

func TestSelect_UnavailableIsNoop(t *testing.T) {
	sel := model.Selection{}
	out, changed := Select(sel, nil, slot("c1", "09:00", "10:00", 100000, false), now)
	assert.False(t, changed)
	assert.Empty(t, out)

	booked := slot("c1", "10:00", "11:00", 100000, false)
	booked.Status = model.StatusBooked
	out, changed = Toggle(sel, nil, booked, now)
	assert.False(t, changed)
	assert.Empty(t, out)
}

func TestSelect_AppliesActivePromotion(t *testing.T) {
	r := promoResource("c1", 20, now.Add(-time.Hour), now.Add(time.Hour))
	s := slot("c1", "09:00", "10:00", 100000, true)

	sel, changed := Select(model.Selection{}, r, s, now)
	require.True(t, changed)
	assert.Equal(t, 80000.0, sel["c1"][0].Price)
	assert.Equal(t, 100000.0, sel["c1"][0].OriginalPrice)

	// deselect, wait for the promotion to expire, reselect
	sel, _ = Deselect(sel, s.Key())
	later := now.Add(2 * time.Hour)
	sel, changed = Select(sel, r, s, later)
	require.True(t, changed)
	assert.Equal(t, 100000.0, sel["c1"][0].Price)
}

func TestDeselect_Unknown(t *testing.T) {
	sel := model.Selection{"c1": {slot("c1", "09:00", "10:00", 1, true)}}
	out, changed := Deselect(sel, model.SlotKey{ResourceID: "c1", StartTime: "10:00", EndTime: "11:00"})
	assert.False(t, changed)
	assert.Equal(t, sel, out)
}

func TestFlatten(t *testing.T) {
	sel := model.Selection{
		"c2": {slot("c2", "07:00", "08:00", 1, true)},
		"c1": {slot("c1", "09:00", "10:00", 1, true), slot("c1", "10:00", "11:00", 1, true)},
	}
	assert.Equal(t, []model.BookingDetail{
		{ResourceID: "c1", StartTime: "09:00", EndTime: "10:00"},
		{ResourceID: "c1", StartTime: "10:00", EndTime: "11:00"},
		{ResourceID: "c2", StartTime: "07:00", EndTime: "08:00"},
	}, Flatten(sel))
	assert.Empty(t, Flatten(model.Selection{}))
}

func TestMerge(t *testing.T) {
	a := model.Selection{"c1": {slot("c1", "10:00", "11:00", 1, true)}}
	b := model.Selection{
		"c1": {slot("c1", "08:00", "09:00", 1, true), slot("c1", "10:00", "11:00", 1, true)},
		"c2": {slot("c2", "08:00", "09:00", 1, true)},
	}
	m := Merge(a, b)
	require.Len(t, m["c1"], 2)
	assert.Equal(t, "08:00", m["c1"][0].StartTime)
	assert.Len(t, m["c2"], 1)
	assert.Len(t, a["c1"], 1)
}

func TestReprice(t *testing.T) {
	r := promoResource("c1", 50, now.Add(-time.Hour), now.Add(time.Hour))
	sel, _ := Select(model.Selection{}, r, slot("c1", "09:00", "10:00", 100000, true), now)
	require.Equal(t, 50000.0, sel["c1"][0].Price)

	repriced := Reprice(sel, map[string]*model.Resource{"c1": r}, now.Add(3*time.Hour))
	assert.Equal(t, 100000.0, repriced["c1"][0].Price)
	assert.Equal(t, 50000.0, sel["c1"][0].Price)
}
