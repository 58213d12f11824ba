package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kolektahq/kolekta/internal/collection/domain"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) InsertBatch(ctx context.Context, tx *gorm.DB, entries []domain.ScheduleEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&entries).Error
}

func (r *repository) CancelFuture(ctx context.Context, tx *gorm.DB, subscriptionID snowflake.ID, from time.Time, now time.Time) (int64, error) {
	result := tx.WithContext(ctx).Model(&domain.ScheduleEntry{}).
		Where("subscription_id = ? AND status = ? AND collection_date >= ?",
			subscriptionID, domain.EntryStatusScheduled, from).
		Updates(map[string]any{"status": domain.EntryStatusCancelled, "updated_at": now})
	return result.RowsAffected, result.Error
}

func (r *repository) CancelAll(ctx context.Context, tx *gorm.DB, subscriptionID snowflake.ID, now time.Time) (int64, error) {
	result := tx.WithContext(ctx).Model(&domain.ScheduleEntry{}).
		Where("subscription_id = ? AND status = ?", subscriptionID, domain.EntryStatusScheduled).
		Updates(map[string]any{"status": domain.EntryStatusCancelled, "updated_at": now})
	return result.RowsAffected, result.Error
}

func (r *repository) ListUpcoming(ctx context.Context, tx *gorm.DB, subscriptionID snowflake.ID, from time.Time) ([]*domain.ScheduleEntry, error) {
	var entries []*domain.ScheduleEntry
	err := tx.WithContext(ctx).
		Where("subscription_id = ? AND status = ? AND collection_date >= ?",
			subscriptionID, domain.EntryStatusScheduled, from).
		Order("collection_date asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
