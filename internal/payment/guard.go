// Package payment decides which payment modes a wallet balance can afford.
package payment

import (
	"courtbook/internal/metrics"
	"courtbook/internal/model"
)

// Affordability reports which payment modes the balance covers.
type Affordability struct {
	CanDeposit bool
	CanFull    bool
}

// Blocker names a dialog the UI must show instead of proceeding.
type Blocker string

const (
	BlockerNone Blocker = ""
	// BlockerFullUnaffordable: full payment is not covered; mode unchanged.
	BlockerFullUnaffordable Blocker = "full_unaffordable"
	// BlockerDepositUnaffordable: not even the deposit is covered; remediation is a top-up.
	BlockerDepositUnaffordable Blocker = "deposit_unaffordable"
)

// Notice is a user-facing explanation of a forced mode change.
type Notice string

const (
	NoticeNone              Notice = ""
	NoticeFellBackToDeposit Notice = "balance no longer covers full payment; switched to deposit"
)

// Decision is the result of choosing or reconciling a payment mode.
type Decision struct {
	Mode    model.PaymentMode
	Changed bool
	Blocker Blocker
	Notice  Notice
}

// Blocked reports whether the UI must show a blocker instead of submitting.
func (d Decision) Blocked() bool {
	return d.Blocker != BlockerNone
}

// Evaluate compares a balance to the breakdown. A balance below the minimum
// deposit affords neither mode.
func Evaluate(balance model.WalletBalance, price model.PriceBreakdown) Affordability {
	canDeposit := balance.Amount >= price.MinimumDeposit
	return Affordability{
		CanDeposit: canDeposit,
		CanFull:    canDeposit && balance.Amount >= price.Total,
	}
}

// RequiredAmount is what mode charges for price.
func RequiredAmount(mode model.PaymentMode, price model.PriceBreakdown) float64 {
	if mode == model.PaymentFull {
		return price.Total
	}
	return price.MinimumDeposit
}

// ChooseMode handles a user request to switch to requested. Choosing full
// while it is unaffordable leaves the mode unchanged and raises a blocker.
func ChooseMode(current, requested model.PaymentMode, aff Affordability) Decision {
	if !current.Valid() {
		current = model.PaymentDeposit
	}
	switch requested {
	case model.PaymentFull:
		if !aff.CanFull {
			metrics.IncPaymentGuardBlock(string(BlockerFullUnaffordable))
			return Decision{Mode: current, Blocker: BlockerFullUnaffordable}
		}
	case model.PaymentDeposit:
		if !aff.CanDeposit {
			metrics.IncPaymentGuardBlock(string(BlockerDepositUnaffordable))
			return Decision{Mode: model.PaymentDeposit, Changed: current != model.PaymentDeposit, Blocker: BlockerDepositUnaffordable}
		}
	default:
		return Decision{Mode: current}
	}
	return Decision{Mode: requested, Changed: requested != current}
}

// Reconcile re-checks a previously chosen mode after the balance or price
// changed. An unaffordable full payment falls back to deposit with a notice.
func Reconcile(current model.PaymentMode, aff Affordability) Decision {
	d := Decision{Mode: current}
	if !current.Valid() {
		d.Mode = model.PaymentDeposit
		d.Changed = true
	}
	if d.Mode == model.PaymentFull && !aff.CanFull {
		d.Mode = model.PaymentDeposit
		d.Changed = true
		d.Notice = NoticeFellBackToDeposit
	}
	if !aff.CanDeposit {
		metrics.IncPaymentGuardBlock(string(BlockerDepositUnaffordable))
		d.Blocker = BlockerDepositUnaffordable
	}
	return d
}
