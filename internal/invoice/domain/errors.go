package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrInvalidInvoice     = errors.New("invalid invoice")
	ErrInvoiceAlreadyPaid = errors.New("invoice already paid")
	// ErrDuplicateInvoice signals an open invoice already exists for the
	// subscription. Billing ticks treat it as a silent skip; explicit
	// generation surfaces it to the caller.
	ErrDuplicateInvoice = errors.New("duplicate unpaid invoice")
	ErrAmountMismatch   = errors.New("payment amount mismatch")
)

// AmountMismatchError carries the expected and received amounts so a
// rejected confirmation can explain the difference to the payer.
type AmountMismatchError struct {
	Expected decimal.Decimal
	Received decimal.Decimal
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("payment amount mismatch: expected %s, received %s",
		e.Expected.StringFixed(2), e.Received.StringFixed(2))
}

func (e *AmountMismatchError) Is(target error) bool {
	return target == ErrAmountMismatch
}
