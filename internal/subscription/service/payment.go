package service

import (
	"context"
	"strings"

	invoicedomain "github.com/kolektahq/kolekta/internal/invoice/domain"
	"github.com/kolektahq/kolekta/internal/subscription/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ConfirmPaymentRequest struct {
	InvoiceID string
	Amount    decimal.Decimal
	Reference string
}

type ConfirmPaymentResponse struct {
	Subscription domain.Subscription   `json:"subscription"`
	Invoice      invoicedomain.Invoice `json:"invoice"`
}

// ConfirmPayment settles an invoice. The amount must match the invoice
// total (base plus late fee) exactly. Confirmation always wins a race
// with the enforcement driver: both lock the invoice row, and whichever
// finds it already paid backs off without touching it.
func (s *Service) ConfirmPayment(ctx context.Context, req ConfirmPaymentRequest) (ConfirmPaymentResponse, error) {
	invoiceID, err := s.parseID(req.InvoiceID, invoicedomain.ErrInvalidInvoice)
	if err != nil {
		return ConfirmPaymentResponse{}, err
	}

	var resp ConfirmPaymentResponse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.invoiceRepo.FindByIDForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		if invoice.Status == invoicedomain.InvoiceStatusPaid {
			return invoicedomain.ErrInvoiceAlreadyPaid
		}
		if !invoice.Status.Open() {
			return invoicedomain.ErrInvalidInvoice
		}

		expected := invoice.TotalDue()
		if !req.Amount.Equal(expected) {
			return &invoicedomain.AmountMismatchError{Expected: expected, Received: req.Amount}
		}

		subscription, err := s.repo.FindByIDForUpdate(ctx, tx, invoice.SubscriptionID)
		if err != nil {
			return err
		}
		if subscription == nil {
			return domain.ErrSubscriptionNotFound
		}

		now := s.clock.Now(ctx)

		invoice.Status = invoicedomain.InvoiceStatusPaid
		invoice.PaidAt = &now
		if ref := strings.TrimSpace(req.Reference); ref != "" {
			invoice.PaymentReference = &ref
		}
		invoice.UpdatedAt = now
		if err := s.invoiceRepo.Update(ctx, tx, invoice); err != nil {
			return err
		}

		subscription.PaymentStatus = domain.PaymentStatusPaid
		subscription.PaymentConfirmedAt = &now
		subscription.GracePeriodEnd = nil

		switch subscription.Status {
		case domain.StatusPendingPayment:
			// First payment: billing starts now.
			if err := s.transition(subscription, domain.StatusActive, now); err != nil {
				return err
			}
			start := now
			next := now.AddDate(0, 0, s.cfg.PeriodDays)
			subscription.BillingStartDate = &start
			subscription.NextBillingDate = &next
			if err := s.activateSchedule(ctx, tx, subscription.ID, now, now); err != nil {
				return err
			}
		case domain.StatusSuspended:
			// Payment received while suspended: standard reactivation,
			// billing cycle resumes where it left off.
			if err := s.transition(subscription, domain.StatusActive, now); err != nil {
				return err
			}
			next := now.AddDate(0, 0, s.cfg.PeriodDays)
			subscription.NextBillingDate = &next
			if err := s.activateSchedule(ctx, tx, subscription.ID, now, now); err != nil {
				return err
			}
		case domain.StatusActive:
			// Mid-cycle settlement; any pending suspension is moot now
			// that the invoice is paid.
			subscription.UpdatedAt = now
		case domain.StatusCancelled:
			// Settling old debt ahead of reactivation. Status does not
			// change here; RequestReactivation owns that transition.
			subscription.UpdatedAt = now
		}

		if err := s.repo.Update(ctx, tx, subscription); err != nil {
			return err
		}

		resp = ConfirmPaymentResponse{Subscription: *subscription, Invoice: *invoice}
		return nil
	})
	if err != nil {
		return ConfirmPaymentResponse{}, err
	}

	s.log.Info("payment confirmed",
		zap.String("invoice_id", req.InvoiceID),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("subscription_status", string(resp.Subscription.Status)),
	)
	return resp, nil
}

// SubmitPaymentReference records a customer-submitted payment (e.g. a
// GCash reference) awaiting verification. While a reference is pending,
// the enforcement driver will not suspend over the invoice.
func (s *Service) SubmitPaymentReference(ctx context.Context, invoiceID string, reference string) (invoicedomain.Invoice, error) {
	id, err := s.parseID(invoiceID, invoicedomain.ErrInvalidInvoice)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidInvoice
	}

	var out invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.invoiceRepo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		if invoice.Status == invoicedomain.InvoiceStatusPaid {
			return invoicedomain.ErrInvoiceAlreadyPaid
		}
		if !invoice.Status.Open() {
			return invoicedomain.ErrInvalidInvoice
		}

		now := s.clock.Now(ctx)
		invoice.PaymentReference = &reference
		invoice.UpdatedAt = now
		if err := s.invoiceRepo.Update(ctx, tx, invoice); err != nil {
			return err
		}

		out = *invoice
		return nil
	})
	return out, err
}
