package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvalidSubscription  = errors.New("invalid subscription")
	ErrInvalidStatus        = errors.New("invalid subscription status")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrAlreadyActive        = errors.New("subscription is already active")
	ErrNotCancelled         = errors.New("subscription is not cancelled")
	ErrCustomerInactive     = errors.New("customer is not active")
)

// OutstandingBalanceError rejects a standard reactivation while unpaid
// invoices remain, naming the amount the customer has to settle first.
type OutstandingBalanceError struct {
	Balance decimal.Decimal
}

func (e *OutstandingBalanceError) Error() string {
	return fmt.Sprintf("outstanding balance of %s must be settled before reactivation", e.Balance.StringFixed(2))
}

var ErrOutstandingBalance = errors.New("outstanding balance unsettled")

func (e *OutstandingBalanceError) Is(target error) bool {
	return target == ErrOutstandingBalance
}
