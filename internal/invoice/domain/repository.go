package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	Update(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	// FindOpenBySubscription returns the current open (unpaid or overdue)
	// invoice for the subscription, newest first, or nil.
	FindOpenBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) (*Invoice, error)
	ListBySubscription(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]*Invoice, error)
	CountBySubscriptionYear(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, year int) (int64, error)
	// ListUnpaidDueBefore returns unpaid invoices whose due date is strictly
	// before the cutoff. The enforcement driver feeds these as overdue events.
	ListUnpaidDueBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]*Invoice, error)
	// ListOverdueDueBefore returns overdue invoices past the suspension cutoff.
	ListOverdueDueBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]*Invoice, error)
	// ArchiveStaleOpen archives open invoices generated before the cutoff.
	// Used by enhanced reactivation to clear long-cancelled debt.
	ArchiveStaleOpen(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID, cutoff, now time.Time) (int64, error)
}
