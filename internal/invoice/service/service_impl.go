package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kolektahq/kolekta/internal/clock"
	"github.com/kolektahq/kolekta/internal/config"
	"github.com/kolektahq/kolekta/internal/invoice/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service generates and mutates invoices. All writes go through the
// transaction handed in by the caller so invoice and subscription state
// change together or not at all.
type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	cfg   config.BillingConfig
	repo  domain.Repository
}

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config config.Config
	Repo   domain.Repository
}

func New(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,
		clock: p.Clock,
		cfg:   p.Config.Billing,
		repo:  p.Repo,
	}
}

// Generate creates the next invoice for a subscription. At most one open
// invoice may exist per subscription; a second request fails with
// ErrDuplicateInvoice rather than silently stacking debt.
func (s *Service) Generate(
	ctx context.Context,
	tx *gorm.DB,
	subscriptionID snowflake.ID,
	customerID snowflake.ID,
	amount decimal.Decimal,
	now time.Time,
) (*domain.Invoice, error) {
	if subscriptionID == 0 || customerID == 0 {
		return nil, domain.ErrInvalidInvoice
	}
	if amount.IsNegative() {
		return nil, domain.ErrInvalidInvoice
	}

	open, err := s.repo.FindOpenBySubscription(ctx, tx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, domain.ErrDuplicateInvoice
	}

	number, err := s.nextInvoiceNumber(ctx, tx, subscriptionID, now)
	if err != nil {
		return nil, err
	}

	invoice := &domain.Invoice{
		ID:             s.genID.Generate(),
		SubscriptionID: subscriptionID,
		CustomerID:     customerID,
		InvoiceNumber:  number,
		Currency:       s.cfg.Currency,
		Amount:         amount,
		LateFee:        decimal.Zero,
		Status:         domain.InvoiceStatusUnpaid,
		GeneratedDate:  now,
		DueDate:        now.AddDate(0, 0, s.cfg.PeriodDays),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, tx, invoice); err != nil {
		return nil, err
	}

	s.log.Info("invoice generated",
		zap.String("invoice_number", number),
		zap.String("subscription_id", subscriptionID.String()),
		zap.String("amount", amount.StringFixed(2)),
	)
	return invoice, nil
}

// ApplyLateFee adds the configured flat fee exactly once. Re-running the
// enforcement driver on an already-penalized invoice is a no-op.
func (s *Service) ApplyLateFee(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice, now time.Time) (bool, error) {
	if invoice == nil {
		return false, domain.ErrInvalidInvoice
	}
	if !invoice.LateFee.IsZero() {
		return false, nil
	}

	invoice.LateFee = s.cfg.LateFeeAmount()
	invoice.UpdatedAt = now
	if err := s.repo.Update(ctx, tx, invoice); err != nil {
		return false, err
	}
	return true, nil
}

// ArchiveStale archives open invoices older than the stale threshold.
// Enhanced reactivation calls it so returning customers start clean.
func (s *Service) ArchiveStale(ctx context.Context, tx *gorm.DB, subscriptionID snowflake.ID, now time.Time) (int64, error) {
	cutoff := now.AddDate(0, 0, -s.cfg.StaleInvoiceDays)
	return s.repo.ArchiveStaleOpen(ctx, tx, subscriptionID, cutoff, now)
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice == nil {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}
	return *invoice, nil
}

func (s *Service) ListBySubscription(ctx context.Context, subscriptionID snowflake.ID) ([]*domain.Invoice, error) {
	return s.repo.ListBySubscription(ctx, s.db, subscriptionID)
}

// nextInvoiceNumber builds a human-readable number unique per
// subscription and year, e.g. INV-2026-1951204860915816448-03.
func (s *Service) nextInvoiceNumber(ctx context.Context, tx *gorm.DB, subscriptionID snowflake.ID, now time.Time) (string, error) {
	year := now.Year()
	count, err := s.repo.CountBySubscriptionYear(ctx, tx, subscriptionID, year)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("INV-%d-%s-%02d", year, subscriptionID.String(), count+1), nil
}
