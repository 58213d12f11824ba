// Package domain contains collection schedule entries. The lifecycle
// engine activates and cancels these as a side effect of subscription
// transitions; route execution itself is handled by the collector app.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type EntryStatus string

const (
	EntryStatusScheduled EntryStatus = "scheduled"
	EntryStatusDone      EntryStatus = "done"
	EntryStatusCancelled EntryStatus = "cancelled"
)

// ScheduleEntry is one planned pickup for a subscription.
type ScheduleEntry struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	SubscriptionID snowflake.ID `gorm:"not null;index" json:"subscription_id"`
	CollectionDate time.Time    `gorm:"not null;index" json:"collection_date"`
	Status         EntryStatus  `gorm:"type:text;not null;default:scheduled" json:"status"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`
}

func (ScheduleEntry) TableName() string { return "collection_schedule_entries" }

type Repository interface {
	InsertBatch(ctx context.Context, db *gorm.DB, entries []ScheduleEntry) error
	// CancelFuture cancels scheduled entries on or after the given date.
	CancelFuture(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, from time.Time, now time.Time) (int64, error)
	// CancelAll cancels every remaining scheduled entry.
	CancelAll(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, now time.Time) (int64, error)
	ListUpcoming(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, from time.Time) ([]*ScheduleEntry, error)
}
