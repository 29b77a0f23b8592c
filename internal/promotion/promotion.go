// Package promotion evaluates time-bounded discounts attached to resources.
package promotion

import (
	"math"
	"time"

	"courtbook/internal/model"
)

// Active returns the resource promotions valid at now, in list order.
func Active(resource *model.Resource, now time.Time) []model.Promotion {
	if resource == nil {
		return nil
	}
	var active []model.Promotion
	for _, p := range resource.Promotions {
		if p.ActiveAt(now) {
			active = append(active, p)
		}
	}
	return active
}

// First returns the first active promotion in list order.
// It does not look for the best discount.
func First(resource *model.Resource, now time.Time) (model.Promotion, bool) {
	active := Active(resource, now)
	if len(active) == 0 {
		return model.Promotion{}, false
	}
	return active[0], true
}

// DiscountedPrice applies promo to base. A missing or non-numeric discount
// value, or an unknown discount type, leaves the price unchanged.
func DiscountedPrice(base float64, promo *model.Promotion) float64 {
	if promo == nil {
		return base
	}
	v := promo.Value()

	var price float64
	switch promo.DiscountType {
	case model.DiscountPercentage:
		price = base * (1 - v/100)
	case model.DiscountFixed:
		price = base - v
	default:
		return base
	}
	return math.Max(0, price)
}

// Apply returns a copy of slot priced with the first promotion active at now.
// OriginalPrice always holds the undiscounted price.
func Apply(slot model.ScheduleSlot, resource *model.Resource, now time.Time) model.ScheduleSlot {
	base := slot.OriginalPrice
	if base == 0 {
		base = slot.Price
	}
	slot.OriginalPrice = base
	slot.Price = base
	slot.PromotionName = ""

	promo, ok := First(resource, now)
	if !ok {
		return slot
	}
	slot.Price = DiscountedPrice(base, &promo)
	slot.PromotionName = promo.Name
	return slot
}
