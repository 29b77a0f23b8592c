// Package booking submits a selection as a booking followed by its payment.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"courtbook/internal/metrics"
	"courtbook/internal/model"
	"courtbook/internal/payment"
	"courtbook/internal/pricing"
	"courtbook/internal/selection"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WalletReader fetches the current wallet balance.
type WalletReader interface {
	GetWalletBalance(ctx context.Context) (*model.WalletBalance, error)
}

// Backend is the set of collaborators a submit needs.
type Backend interface {
	WalletReader
	CreateBooking(ctx context.Context, req model.BookingRequest) (*model.BookingResponse, error)
	ProcessPayment(ctx context.Context, req model.PaymentRequest) error
}

var errEmptyBalance = errors.New("empty wallet balance response")

// Status discriminates submit outcomes.
type Status string

const (
	// StatusConfirmed: booking created and paid.
	StatusConfirmed Status = "confirmed"
	// StatusRejected: a precondition failed before any booking call.
	StatusRejected Status = "rejected"
	// StatusBookingFailed: createBooking failed, no payment attempted.
	StatusBookingFailed Status = "booking_failed"
	// StatusPaymentPending: booking exists but its payment failed.
	StatusPaymentPending Status = "payment_pending"
)

// Result is the outcome of Submit or RetryPayment.
type Result struct {
	Status    Status
	BookingID string
	Booking   *model.BookingResponse
	Mode      model.PaymentMode
	Amount    float64
	// Authoritative is false when Amount came from a client estimate.
	Authoritative bool
	Err           error
}

// Remediation tells the caller what to offer the user next.
func (r *Result) Remediation() Remediation {
	switch r.Status {
	case StatusPaymentPending:
		return RemediationRetryPayment
	case StatusBookingFailed:
		return RemediationRetryBooking
	case StatusRejected:
		var funds *InsufficientFundsError
		if errors.As(r.Err, &funds) {
			return funds.Remediation()
		}
	}
	return RemediationNone
}

// SubmitRequest is the snapshot submitted by the UI.
type SubmitRequest struct {
	Date      time.Time
	Selection model.Selection
	Mode      model.PaymentMode
	Note      string
	// Breakdown is the latest price; nil means estimate locally.
	Breakdown *model.PriceBreakdown
}

// Config configures an Orchestrator.
type Config struct {
	ProviderID string
	Calculator *pricing.Calculator
	// NewReference generates payment reference ids. Default: uuid.NewString.
	NewReference func() string
}

// Orchestrator sequences wallet re-check, booking creation and payment.
type Orchestrator struct {
	backend    Backend
	providerID string
	calc       *pricing.Calculator
	newRef     func() string
	logger     *zerolog.Logger
}

// NewOrchestrator creates a new booking orchestrator.
func NewOrchestrator(backend Backend, cfg Config, logger *zerolog.Logger) *Orchestrator {
	if cfg.Calculator == nil {
		cfg.Calculator = pricing.DefaultCalculator()
	}
	if cfg.NewReference == nil {
		cfg.NewReference = uuid.NewString
	}
	if cfg.ProviderID == "" {
		cfg.ProviderID = "wallet"
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Orchestrator{
		backend:    backend,
		providerID: cfg.ProviderID,
		calc:       cfg.Calculator,
		newRef:     cfg.NewReference,
		logger:     logger,
	}
}

// Submit validates req, re-checks the wallet and then creates the booking and
// its payment, in that order. Every outcome is returned as a Result.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) Result {
	res := o.submit(ctx, req)
	metrics.IncBookingSubmitted(string(res.Status))

	ev := o.logger.Info()
	if res.Err != nil {
		ev = o.logger.Warn().Err(res.Err)
	}
	ev.Str("status", string(res.Status)).
		Str("booking_id", res.BookingID).
		Str("mode", string(res.Mode)).
		Float64("amount", res.Amount).
		Msg("booking submit finished")
	return res
}

func (o *Orchestrator) submit(ctx context.Context, req SubmitRequest) Result {
	if err := validate(req); err != nil {
		return Result{Status: StatusRejected, Mode: req.Mode, Err: err}
	}

	breakdown := o.calc.Estimate(req.Selection)
	if req.Breakdown != nil {
		breakdown = *req.Breakdown
	}
	amount := payment.RequiredAmount(req.Mode, breakdown)
	res := Result{Mode: req.Mode, Amount: amount, Authoritative: breakdown.Authoritative}

	balance, err := o.backend.GetWalletBalance(ctx)
	if err == nil && balance == nil {
		err = errEmptyBalance
	}
	if err != nil {
		res.Status = StatusRejected
		res.Err = fmt.Errorf("fetch wallet balance: %w", err)
		return res
	}
	if balance.Amount < amount {
		res.Status = StatusRejected
		res.Err = &InsufficientFundsError{Mode: req.Mode, Balance: balance.Amount, Required: amount}
		return res
	}

	created, err := o.backend.CreateBooking(ctx, model.BookingRequest{
		BookingDate:    req.Date.Format(model.DateLayout),
		BookingDetails: selection.Flatten(req.Selection),
		PaymentType:    req.Mode,
		Note:           strings.TrimSpace(req.Note),
	})
	if err == nil && (created == nil || created.ID == "") {
		err = fmt.Errorf("booking response without id")
	}
	if err != nil {
		res.Status = StatusBookingFailed
		res.Err = &BookingCreationError{Err: err}
		return res
	}
	res.Booking = created
	res.BookingID = created.ID

	if err := o.pay(ctx, created.ID, req.Mode, amount); err != nil {
		res.Status = StatusPaymentPending
		res.Err = err
		return res
	}
	res.Status = StatusConfirmed
	return res
}

// RetryPayment re-issues only the payment for a booking left in
// StatusPaymentPending. The wallet is re-checked first.
func (o *Orchestrator) RetryPayment(ctx context.Context, bookingID string, mode model.PaymentMode, amount float64) Result {
	res := Result{Mode: mode, Amount: amount, BookingID: bookingID, Authoritative: true}
	switch {
	case bookingID == "":
		res.Status = StatusRejected
		res.Err = &ValidationError{Field: "booking_id", Reason: "required"}
	case !mode.Valid():
		res.Status = StatusRejected
		res.Err = &ValidationError{Field: "payment_mode", Reason: "must be deposit or full"}
	}
	if res.Err != nil {
		return res
	}

	balance, err := o.backend.GetWalletBalance(ctx)
	if err == nil && balance == nil {
		err = errEmptyBalance
	}
	if err != nil {
		res.Status = StatusPaymentPending
		res.Err = &PaymentProcessingError{BookingID: bookingID, Amount: amount, Err: fmt.Errorf("fetch wallet balance: %w", err)}
		return res
	}
	if balance.Amount < amount {
		res.Status = StatusPaymentPending
		res.Err = &PaymentProcessingError{
			BookingID: bookingID,
			Amount:    amount,
			Err:       &InsufficientFundsError{Mode: mode, Balance: balance.Amount, Required: amount},
		}
		return res
	}

	if err := o.pay(ctx, bookingID, mode, amount); err != nil {
		res.Status = StatusPaymentPending
		res.Err = err
	} else {
		res.Status = StatusConfirmed
	}
	metrics.IncBookingSubmitted(string(res.Status))
	o.logger.Info().Str("booking_id", bookingID).Str("status", string(res.Status)).Msg("payment retry finished")
	return res
}

func (o *Orchestrator) pay(ctx context.Context, bookingID string, mode model.PaymentMode, amount float64) error {
	err := o.backend.ProcessPayment(ctx, model.PaymentRequest{
		Amount:      amount,
		ReferenceID: o.newRef(),
		BookingID:   bookingID,
		PaymentType: mode,
		ProviderID:  o.providerID,
		Status:      model.PaymentStatusCompleted,
	})
	if err != nil {
		return &PaymentProcessingError{BookingID: bookingID, Amount: amount, Err: err}
	}
	return nil
}

func validate(req SubmitRequest) error {
	if req.Selection.IsEmpty() {
		return &ValidationError{Field: "selection", Reason: "select at least one slot"}
	}
	if req.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "required"}
	}
	if !req.Mode.Valid() {
		return &ValidationError{Field: "payment_mode", Reason: "must be deposit or full"}
	}
	return nil
}
