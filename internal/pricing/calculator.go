// Package pricing computes client-side price estimates for a selection and
// reconciles them with the authoritative server quote.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"courtbook/internal/model"
	"courtbook/internal/selection"
)

const (
	DefaultTaxRate     = 0.10
	DefaultDepositRate = 0.30
)

// ErrEmptySelection is returned by Quote when nothing is selected.
var ErrEmptySelection = errors.New("selection is empty")

// PriceQuoter returns the authoritative price of a booking request.
type PriceQuoter interface {
	CalculatePrice(ctx context.Context, req model.PriceRequest) (*model.PriceDetails, error)
}

// Calculator holds the rates used for client-side estimates. Rates may be
// swapped at runtime by SetRates.
type Calculator struct {
	mu          sync.RWMutex
	taxRate     float64
	depositRate float64
}

// NewCalculator creates a calculator. A zero rate is honoured; negative
// rates fall back to defaults.
func NewCalculator(taxRate, depositRate float64) *Calculator {
	if taxRate < 0 {
		taxRate = DefaultTaxRate
	}
	if depositRate < 0 {
		depositRate = DefaultDepositRate
	}
	return &Calculator{taxRate: taxRate, depositRate: depositRate}
}

// DefaultCalculator uses DefaultTaxRate and DefaultDepositRate.
func DefaultCalculator() *Calculator {
	return NewCalculator(DefaultTaxRate, DefaultDepositRate)
}

// Rates returns the current tax and deposit rates.
func (c *Calculator) Rates() (taxRate, depositRate float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.taxRate, c.depositRate
}

// SetRates replaces the rates; negative values keep the current ones.
func (c *Calculator) SetRates(taxRate, depositRate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if taxRate >= 0 {
		c.taxRate = taxRate
	}
	if depositRate >= 0 {
		c.depositRate = depositRate
	}
}

// Subtotal sums the effective price of every selected slot.
func (c *Calculator) Subtotal(sel model.Selection) float64 {
	var sum float64
	for _, list := range sel {
		for _, s := range list {
			sum += s.Price
		}
	}
	return sum
}

// Tax is the advisory tax estimate of the selection.
func (c *Calculator) Tax(sel model.Selection) float64 {
	taxRate, _ := c.Rates()
	return c.Subtotal(sel) * taxRate
}

// Total is subtotal plus tax.
func (c *Calculator) Total(sel model.Selection) float64 {
	taxRate, _ := c.Rates()
	subtotal := c.Subtotal(sel)
	return subtotal + subtotal*taxRate
}

// Estimate returns the client-only breakdown used before the server quote arrives.
func (c *Calculator) Estimate(sel model.Selection) model.PriceBreakdown {
	taxRate, depositRate := c.Rates()
	subtotal := c.Subtotal(sel)
	tax := subtotal * taxRate
	return model.PriceBreakdown{
		Subtotal:       subtotal,
		Tax:            tax,
		MinimumDeposit: subtotal * depositRate,
		Total:          subtotal + tax,
	}
}

// Reconcile overlays the server quote on an estimate. Total and
// MinimumDeposit come from details when present; the local tax stays advisory.
func Reconcile(estimate model.PriceBreakdown, details *model.PriceDetails) model.PriceBreakdown {
	if details == nil {
		estimate.Authoritative = false
		return estimate
	}
	estimate.Total = details.TotalPrice
	estimate.MinimumDeposit = details.MinimumDeposit
	estimate.Authoritative = true
	return estimate
}

// Quote asks the server for the authoritative price. On failure the client
// estimate is returned together with the error.
func (c *Calculator) Quote(ctx context.Context, quoter PriceQuoter, date time.Time, sel model.Selection) (model.PriceBreakdown, *model.PriceDetails, error) {
	estimate := c.Estimate(sel)
	if sel.IsEmpty() {
		return estimate, nil, ErrEmptySelection
	}

	details, err := quoter.CalculatePrice(ctx, model.PriceRequest{
		BookingDate:    date.Format(model.DateLayout),
		BookingDetails: selection.Flatten(sel),
	})
	if err != nil {
		return estimate, nil, fmt.Errorf("calculate price: %w", err)
	}
	return Reconcile(estimate, details), details, nil
}
