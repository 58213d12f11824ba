package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/kolektahq/kolekta/internal/invoice/domain"
	"github.com/kolektahq/kolekta/internal/subscription/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OverdueResult reports what a single overdue event changed.
type OverdueResult struct {
	MarkedOverdue  bool
	LateFeeApplied bool
}

// MarkInvoiceOverdue flips an unpaid invoice past its grace period to
// overdue and applies the flat late fee once. The invoice status is
// re-checked under the row lock immediately before mutating, so a
// payment confirmed between scan and event wins the race and this
// becomes a no-op.
func (s *Service) MarkInvoiceOverdue(ctx context.Context, invoiceID snowflake.ID) (OverdueResult, error) {
	var result OverdueResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.invoiceRepo.FindByIDForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		if invoice.Status != invoicedomain.InvoiceStatusUnpaid {
			return nil
		}

		now := s.clock.Now(ctx)
		graceEnd := invoice.DueDate.AddDate(0, 0, s.cfg.GraceDays)
		if !now.After(graceEnd) {
			return nil
		}

		invoice.Status = invoicedomain.InvoiceStatusOverdue
		invoice.UpdatedAt = now
		result.MarkedOverdue = true

		applied, err := s.invoiceSvc.ApplyLateFee(ctx, tx, invoice, now)
		if err != nil {
			return err
		}
		result.LateFeeApplied = applied

		subscription, err := s.repo.FindByIDForUpdate(ctx, tx, invoice.SubscriptionID)
		if err != nil {
			return err
		}
		if subscription != nil {
			subscription.GracePeriodEnd = &graceEnd
			subscription.UpdatedAt = now
			if err := s.repo.Update(ctx, tx, subscription); err != nil {
				return err
			}
		}
		return nil
	})
	return result, err
}

// SuspendOverdue suspends a subscription whose invoice has been overdue
// past the suspension threshold. A submitted-but-unverified payment
// reference on the invoice blocks suspension until it is reviewed.
func (s *Service) SuspendOverdue(ctx context.Context, subscriptionID snowflake.ID) (bool, error) {
	var suspended bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscription, err := s.repo.FindByIDForUpdate(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if subscription == nil {
			return domain.ErrSubscriptionNotFound
		}
		if subscription.Status != domain.StatusActive {
			return nil
		}

		invoice, err := s.invoiceRepo.FindOpenBySubscription(ctx, tx, subscription.ID)
		if err != nil {
			return err
		}
		if invoice == nil || invoice.Status != invoicedomain.InvoiceStatusOverdue {
			return nil
		}
		if invoice.PaymentReference != nil {
			return nil
		}

		now := s.clock.Now(ctx)
		threshold := invoice.DueDate.AddDate(0, 0, s.cfg.SuspendAfterDays)
		if !now.After(threshold) {
			return nil
		}

		if err := s.transition(subscription, domain.StatusSuspended, now); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, tx, subscription); err != nil {
			return err
		}
		// Collections stop until payment resumes the subscription.
		if _, err := s.scheduleRepo.CancelFuture(ctx, tx, subscription.ID, now, now); err != nil {
			return err
		}

		suspended = true
		return nil
	})
	if suspended {
		s.log.Warn("subscription suspended for non-payment",
			zap.String("subscription_id", subscriptionID.String()))
	}
	return suspended, err
}

// CancelSuspended cancels a subscription that has sat suspended past the
// cancellation threshold with no payment.
func (s *Service) CancelSuspended(ctx context.Context, subscriptionID snowflake.ID) (bool, error) {
	var cancelled bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscription, err := s.repo.FindByIDForUpdate(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if subscription == nil {
			return domain.ErrSubscriptionNotFound
		}
		if subscription.Status != domain.StatusSuspended || subscription.SuspendedAt == nil {
			return nil
		}

		now := s.clock.Now(ctx)
		threshold := subscription.SuspendedAt.AddDate(0, 0, s.cfg.CancelAfterDays)
		if !now.After(threshold) {
			return nil
		}

		if err := s.transition(subscription, domain.StatusCancelled, now); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, tx, subscription); err != nil {
			return err
		}
		if _, err := s.scheduleRepo.CancelAll(ctx, tx, subscription.ID, now); err != nil {
			return err
		}

		cancelled = true
		return nil
	})
	if cancelled {
		s.log.Warn("subscription cancelled after prolonged suspension",
			zap.String("subscription_id", subscriptionID.String()))
	}
	return cancelled, err
}

// BillSubscription generates the next monthly invoice for an active
// subscription whose billing date has arrived. A still-open previous
// invoice makes this a silent skip; the cycle counter only moves on
// successful generation.
func (s *Service) BillSubscription(ctx context.Context, subscriptionID snowflake.ID) (bool, error) {
	var generated bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscription, err := s.repo.FindByIDForUpdate(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if subscription == nil {
			return domain.ErrSubscriptionNotFound
		}
		if subscription.Status != domain.StatusActive || subscription.NextBillingDate == nil {
			return nil
		}

		now := s.clock.Now(ctx)
		if subscription.NextBillingDate.After(now) {
			return nil
		}

		price, err := s.planPrice(ctx, tx, subscription.PlanID)
		if err != nil {
			return err
		}

		if _, err := s.invoiceSvc.Generate(ctx, tx, subscription.ID, subscription.CustomerID, price, now); err != nil {
			if errors.Is(err, invoicedomain.ErrDuplicateInvoice) {
				return nil
			}
			return err
		}

		subscription.BillingCycleCount++
		subscription.PaymentStatus = domain.PaymentStatusPending
		next := subscription.NextBillingDate.AddDate(0, 0, s.cfg.PeriodDays)
		subscription.NextBillingDate = &next
		subscription.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, subscription); err != nil {
			return err
		}
		// Next cycle's pickups.
		if err := s.activateSchedule(ctx, tx, subscription.ID, now, now); err != nil {
			return err
		}

		generated = true
		return nil
	})
	return generated, err
}
