package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	Update(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	// FindOpenByCustomer returns the customer's non-cancelled subscription,
	// if any. One live subscription per customer.
	FindOpenByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) (*Subscription, error)
	// ListBillingDue returns active subscriptions whose next billing date
	// is at or before now.
	ListBillingDue(ctx context.Context, db *gorm.DB, now time.Time) ([]*Subscription, error)
	// ListSuspendedBefore returns suspended subscriptions whose
	// suspension started strictly before the cutoff.
	ListSuspendedBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]*Subscription, error)
}
