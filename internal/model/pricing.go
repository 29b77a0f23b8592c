package model

import "time"

// PriceBreakdown is the price of a selection. Authoritative is true only when
// Total and MinimumDeposit come from the server quote.
type PriceBreakdown struct {
	Subtotal       float64 `json:"subtotal"`
	Tax            float64 `json:"tax"`
	MinimumDeposit float64 `json:"minimumDeposit"`
	Total          float64 `json:"total"`
	Authoritative  bool    `json:"authoritative"`
}

// WalletBalance is a freshly fetched wallet balance.
type WalletBalance struct {
	Amount    float64   `json:"balance"`
	FetchedAt time.Time `json:"-"`
}

// PaymentMode is the amount a user commits to at submit time.
type PaymentMode string

const (
	PaymentDeposit PaymentMode = "deposit"
	PaymentFull    PaymentMode = "full"
)

// Valid reports whether m is a known mode.
func (m PaymentMode) Valid() bool {
	return m == PaymentDeposit || m == PaymentFull
}
