package booking

import (
	"fmt"

	"courtbook/internal/model"
)

// Remediation is the action the UI offers next to an error.
type Remediation string

const (
	RemediationNone         Remediation = ""
	RemediationTopUp        Remediation = "top_up"
	RemediationRetryBooking Remediation = "retry_booking"
	RemediationRetryPayment Remediation = "retry_payment"
)

// ValidationError is a local precondition failure; no external call was made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InsufficientFundsError is returned when the fresh wallet balance does not
// cover the chosen payment mode.
type InsufficientFundsError struct {
	Mode     model.PaymentMode
	Balance  float64
	Required float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("wallet balance %.2f below %.2f required for %s payment", e.Balance, e.Required, e.Mode)
}

// Remediation suggests a top-up.
func (e *InsufficientFundsError) Remediation() Remediation {
	return RemediationTopUp
}

// Shortfall is the amount missing from the wallet.
func (e *InsufficientFundsError) Shortfall() float64 {
	return e.Required - e.Balance
}

// BookingCreationError wraps a failed createBooking call. Retrying the whole
// submit is safe.
type BookingCreationError struct {
	Err error
}

func (e *BookingCreationError) Error() string {
	return fmt.Sprintf("create booking: %v", e.Err)
}

func (e *BookingCreationError) Unwrap() error {
	return e.Err
}

// PaymentProcessingError wraps a failed processPayment call made after the
// booking was created. Only the payment must be retried.
type PaymentProcessingError struct {
	BookingID string
	Amount    float64
	Err       error
}

func (e *PaymentProcessingError) Error() string {
	return fmt.Sprintf("booking %s created, payment of %.2f failed: %v", e.BookingID, e.Amount, e.Err)
}

func (e *PaymentProcessingError) Unwrap() error {
	return e.Err
}
