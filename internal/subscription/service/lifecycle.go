package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/kolektahq/kolekta/internal/invoice/domain"
	plandomain "github.com/kolektahq/kolekta/internal/plan/domain"
	"github.com/kolektahq/kolekta/internal/subscription/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RequestCancellation cancels an active or suspended subscription.
// Remaining schedule entries are cancelled; invoices are left untouched
// so any debt survives for reactivation checks.
func (s *Service) RequestCancellation(ctx context.Context, subscriptionID string) (domain.Subscription, error) {
	id, err := s.parseID(subscriptionID, domain.ErrInvalidSubscription)
	if err != nil {
		return domain.Subscription{}, err
	}

	var out domain.Subscription
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscription, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if subscription == nil {
			return domain.ErrSubscriptionNotFound
		}

		now := s.clock.Now(ctx)
		if err := s.transition(subscription, domain.StatusCancelled, now); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, tx, subscription); err != nil {
			return err
		}
		if _, err := s.scheduleRepo.CancelAll(ctx, tx, id, now); err != nil {
			return err
		}

		out = *subscription
		return nil
	})
	if err != nil {
		return domain.Subscription{}, err
	}

	s.log.Info("subscription cancelled", zap.String("subscription_id", subscriptionID))
	return out, nil
}

// RequestReactivation brings a cancelled subscription back. Within the
// reactivation window the standard path applies: outstanding invoices
// must already be settled and the billing cycle count is preserved.
// Past the window the enhanced path archives stale debt, resets the
// cycle counter, and issues a fresh invoice.
func (s *Service) RequestReactivation(ctx context.Context, subscriptionID string) (domain.Subscription, error) {
	id, err := s.parseID(subscriptionID, domain.ErrInvalidSubscription)
	if err != nil {
		return domain.Subscription{}, err
	}

	var out domain.Subscription
	var enhanced bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscription, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if subscription == nil {
			return domain.ErrSubscriptionNotFound
		}
		if subscription.Status != domain.StatusCancelled || subscription.CancelledAt == nil {
			return domain.ErrNotCancelled
		}

		now := s.clock.Now(ctx)
		windowEnd := subscription.CancelledAt.AddDate(0, 0, s.cfg.ReactivationWindowDays)
		enhanced = now.After(windowEnd)

		if enhanced {
			if err := s.reactivateEnhanced(ctx, tx, subscription, now); err != nil {
				return err
			}
		} else {
			if err := s.reactivateStandard(ctx, tx, subscription, now); err != nil {
				return err
			}
		}

		out = *subscription
		return nil
	})
	if err != nil {
		return domain.Subscription{}, err
	}

	s.log.Info("subscription reactivated",
		zap.String("subscription_id", subscriptionID),
		zap.Bool("enhanced", enhanced),
	)
	return out, nil
}

// reactivateStandard resumes a recently-cancelled subscription with its
// billing history intact.
func (s *Service) reactivateStandard(ctx context.Context, tx *gorm.DB, subscription *domain.Subscription, now time.Time) error {
	balance, err := s.outstandingBalance(ctx, tx, subscription.ID)
	if err != nil {
		return err
	}
	if balance.IsPositive() {
		return &domain.OutstandingBalanceError{Balance: balance}
	}

	if err := s.transition(subscription, domain.StatusActive, now); err != nil {
		return err
	}
	next := now.AddDate(0, 0, s.cfg.PeriodDays)
	subscription.NextBillingDate = &next

	if err := s.repo.Update(ctx, tx, subscription); err != nil {
		return err
	}
	return s.activateSchedule(ctx, tx, subscription.ID, now, now)
}

// reactivateEnhanced gives a long-cancelled customer a clean restart:
// stale open invoices are archived, the cycle counter resets, and a new
// invoice for the current plan price is generated.
func (s *Service) reactivateEnhanced(ctx context.Context, tx *gorm.DB, subscription *domain.Subscription, now time.Time) error {
	archived, err := s.invoiceSvc.ArchiveStale(ctx, tx, subscription.ID, now)
	if err != nil {
		return err
	}
	if archived > 0 {
		s.log.Info("archived stale invoices",
			zap.String("subscription_id", subscription.ID.String()),
			zap.Int64("count", archived),
		)
	}

	price, err := s.planPrice(ctx, tx, subscription.PlanID)
	if err != nil {
		return err
	}

	if err := s.transition(subscription, domain.StatusActive, now); err != nil {
		return err
	}
	subscription.BillingCycleCount = 0
	subscription.PaymentStatus = domain.PaymentStatusPending
	start := now
	next := now.AddDate(0, 0, s.cfg.PeriodDays)
	subscription.BillingStartDate = &start
	subscription.NextBillingDate = &next

	if err := s.repo.Update(ctx, tx, subscription); err != nil {
		return err
	}

	// Welcome-back invoice. Any remaining open invoice younger than the
	// stale cutoff still blocks this with a duplicate error.
	if _, err := s.invoiceSvc.Generate(ctx, tx, subscription.ID, subscription.CustomerID, price, now); err != nil {
		return err
	}
	return s.activateSchedule(ctx, tx, subscription.ID, now, now)
}

func (s *Service) planPrice(ctx context.Context, tx *gorm.DB, planID snowflake.ID) (decimal.Decimal, error) {
	plan, err := s.planRepo.FindByID(ctx, tx, planID)
	if err != nil {
		return decimal.Zero, err
	}
	if plan == nil {
		return decimal.Zero, plandomain.ErrPlanNotFound
	}
	return plan.Price, nil
}

// outstandingBalance sums open invoices; used for rejection messages.
func (s *Service) outstandingBalance(ctx context.Context, tx *gorm.DB, subscriptionID snowflake.ID) (decimal.Decimal, error) {
	invoices, err := s.invoiceRepo.ListBySubscription(ctx, tx, subscriptionID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, invoice := range invoices {
		if invoice.Status == invoicedomain.InvoiceStatusUnpaid || invoice.Status == invoicedomain.InvoiceStatusOverdue {
			total = total.Add(invoice.TotalDue())
		}
	}
	return total, nil
}
