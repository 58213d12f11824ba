package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kolektahq/kolekta/internal/invoice/domain"
	"github.com/kolektahq/kolekta/pkg/db"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice) error {
	return tx.WithContext(ctx).Create(invoice).Error
}

func (r *repository) Update(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice) error {
	return tx.WithContext(ctx).Save(invoice).Error
}

func (r *repository) FindByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.findOne(tx.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.findOne(db.ForUpdate(tx.WithContext(ctx)).Where("id = ?", id))
}

func (r *repository) FindOpenBySubscription(ctx context.Context, tx *gorm.DB, subscriptionID snowflake.ID) (*domain.Invoice, error) {
	return r.findOne(tx.WithContext(ctx).
		Where("subscription_id = ? AND status IN ?", subscriptionID,
			[]domain.InvoiceStatus{domain.InvoiceStatusUnpaid, domain.InvoiceStatusOverdue}).
		Order("generated_date desc"))
}

func (r *repository) ListBySubscription(ctx context.Context, tx *gorm.DB, subscriptionID snowflake.ID) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	err := tx.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("generated_date desc").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repository) CountBySubscriptionYear(ctx context.Context, tx *gorm.DB, subscriptionID snowflake.ID, year int) (int64, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	var count int64
	err := tx.WithContext(ctx).Model(&domain.Invoice{}).
		Where("subscription_id = ? AND generated_date >= ? AND generated_date < ?", subscriptionID, start, end).
		Count(&count).Error
	return count, err
}

func (r *repository) ListUnpaidDueBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	err := tx.WithContext(ctx).
		Where("status = ? AND due_date < ?", domain.InvoiceStatusUnpaid, cutoff).
		Order("due_date asc").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repository) ListOverdueDueBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	err := tx.WithContext(ctx).
		Where("status = ? AND due_date < ?", domain.InvoiceStatusOverdue, cutoff).
		Order("due_date asc").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repository) ArchiveStaleOpen(ctx context.Context, tx *gorm.DB, subscriptionID snowflake.ID, cutoff, now time.Time) (int64, error) {
	result := tx.WithContext(ctx).Model(&domain.Invoice{}).
		Where("subscription_id = ? AND status IN ? AND generated_date < ?", subscriptionID,
			[]domain.InvoiceStatus{domain.InvoiceStatusUnpaid, domain.InvoiceStatusOverdue}, cutoff).
		Updates(map[string]any{"status": domain.InvoiceStatusArchived, "updated_at": now})
	return result.RowsAffected, result.Error
}

func (r *repository) findOne(query *gorm.DB) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := query.First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}
