package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ResourceKind distinguishes bookable entities.
type ResourceKind string

const (
	KindCourt   ResourceKind = "court"
	KindCoach   ResourceKind = "coach"
	KindPackage ResourceKind = "package"
)

// WeeklyWindow is one entry of a recurring dayOfWeek schedule.
type WeeklyWindow struct {
	Days  []time.Weekday `json:"days" yaml:"days"`
	Start string         `json:"start" yaml:"start"` // "06:00"
	End   string         `json:"end" yaml:"end"`     // "22:00"
}

// Resource is a court or a coach. It is owned by the backend and treated as read-only.
type Resource struct {
	ID         string         `json:"id"`
	Kind       ResourceKind   `json:"kind"`
	Name       string         `json:"name"`
	Schedule   []WeeklyWindow `json:"dayOfWeek,omitempty"`
	Promotions []Promotion    `json:"promotions,omitempty"`
}

// OpenOn reports whether the weekly schedule covers the weekday of date.
// A resource without a schedule definition is treated as always open.
func (r *Resource) OpenOn(date time.Time) bool {
	if len(r.Schedule) == 0 {
		return true
	}
	wd := date.Weekday()
	for _, w := range r.Schedule {
		for _, d := range w.Days {
			if d == wd {
				return true
			}
		}
	}
	return false
}

// DiscountType is the kind of reduction a promotion applies.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// ErrPercentageOutOfRange is returned by Promotion.Validate.
var ErrPercentageOutOfRange = errors.New("percentage discount must be within [0,100]")

// Promotion is a time-bounded discount rule attached to a resource or package.
type Promotion struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	TargetID      string       `json:"targetId"`
	DiscountType  DiscountType `json:"discountType"`
	DiscountValue *float64     `json:"discountValue,omitempty"` // nil when the backend omitted it
	ValidFrom     time.Time    `json:"validFrom"`
	ValidTo       time.Time    `json:"validTo"`
}

// Value returns the discount value, or 0 when it is missing or not a number.
func (p *Promotion) Value() float64 {
	if p.DiscountValue == nil {
		return 0
	}
	v := *p.DiscountValue
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Validate checks the percentage range invariant.
func (p *Promotion) Validate() error {
	if p.DiscountType != DiscountPercentage {
		return nil
	}
	v := p.Value()
	if v < 0 || v > 100 {
		return fmt.Errorf("promotion %s: %w", p.ID, ErrPercentageOutOfRange)
	}
	return nil
}

// ActiveAt reports validFrom <= now < validTo.
func (p *Promotion) ActiveAt(now time.Time) bool {
	return !now.Before(p.ValidFrom) && now.Before(p.ValidTo)
}
