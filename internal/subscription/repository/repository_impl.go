package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kolektahq/kolekta/internal/subscription/domain"
	"github.com/kolektahq/kolekta/pkg/db"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, tx *gorm.DB, subscription *domain.Subscription) error {
	return tx.WithContext(ctx).Create(subscription).Error
}

func (r *repository) Update(ctx context.Context, tx *gorm.DB, subscription *domain.Subscription) error {
	return tx.WithContext(ctx).Save(subscription).Error
}

func (r *repository) FindByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Subscription, error) {
	return r.findOne(tx.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Subscription, error) {
	return r.findOne(db.ForUpdate(tx.WithContext(ctx)).Where("id = ?", id))
}

func (r *repository) FindOpenByCustomer(ctx context.Context, tx *gorm.DB, customerID snowflake.ID) (*domain.Subscription, error) {
	return r.findOne(tx.WithContext(ctx).
		Where("customer_id = ? AND status != ?", customerID, domain.StatusCancelled).
		Order("created_at desc"))
}

func (r *repository) ListBillingDue(ctx context.Context, tx *gorm.DB, now time.Time) ([]*domain.Subscription, error) {
	var subscriptions []*domain.Subscription
	err := tx.WithContext(ctx).
		Where("status = ? AND next_billing_date IS NOT NULL AND next_billing_date <= ?", domain.StatusActive, now).
		Order("next_billing_date asc").
		Find(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (r *repository) ListSuspendedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]*domain.Subscription, error) {
	var subscriptions []*domain.Subscription
	err := tx.WithContext(ctx).
		Where("status = ? AND suspended_at IS NOT NULL AND suspended_at < ?", domain.StatusSuspended, cutoff).
		Order("suspended_at asc").
		Find(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (r *repository) findOne(query *gorm.DB) (*domain.Subscription, error) {
	var subscription domain.Subscription
	err := query.First(&subscription).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}
