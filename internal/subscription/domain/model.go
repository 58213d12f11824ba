// Package domain contains the subscription lifecycle models. The status
// enum and transition rules here are the single source of truth; nothing
// outside the lifecycle engine writes subscription status.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type SubscriptionStatus string

const (
	StatusPendingPayment SubscriptionStatus = "pending_payment"
	StatusActive         SubscriptionStatus = "active"
	StatusSuspended      SubscriptionStatus = "suspended"
	StatusCancelled      SubscriptionStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentMethodCash  PaymentMethod = "cash"
	PaymentMethodGCash PaymentMethod = "gcash"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Subscription is one resident's enrollment in a collection plan.
// Rows are never hard-deleted; cancelled subscriptions stay for
// historical billing reports.
type Subscription struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	CustomerID snowflake.ID `gorm:"not null;index" json:"customer_id"`
	PlanID     snowflake.ID `gorm:"not null;index" json:"plan_id"`

	Status        SubscriptionStatus `gorm:"type:text;not null;default:pending_payment;index" json:"status"`
	PaymentMethod PaymentMethod      `gorm:"type:text;not null" json:"payment_method"`
	PaymentStatus PaymentStatus      `gorm:"type:text;not null;default:pending" json:"payment_status"`

	BillingStartDate  *time.Time `json:"billing_start_date,omitempty"`
	NextBillingDate   *time.Time `gorm:"index" json:"next_billing_date,omitempty"`
	BillingCycleCount int        `gorm:"not null;default:0" json:"billing_cycle_count"`
	GracePeriodEnd    *time.Time `json:"grace_period_end,omitempty"`

	SuspendedAt        *time.Time `json:"suspended_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	ReactivatedAt      *time.Time `json:"reactivated_at,omitempty"`
	PaymentConfirmedAt *time.Time `json:"payment_confirmed_at,omitempty"`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null" json:"updated_at"`
}

func (Subscription) TableName() string { return "customer_subscriptions" }

// IsValidStatus reports whether the value is a member of the closed
// status enum. Incoming strings are rejected before any comparison.
func IsValidStatus(status SubscriptionStatus) bool {
	switch status {
	case StatusPendingPayment, StatusActive, StatusSuspended, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTransitionAllowed is the transition table. pending_payment may not
// skip straight to suspended or cancelled: there is no payment history
// to enforce against.
func IsTransitionAllowed(current, target SubscriptionStatus) bool {
	switch current {
	case StatusPendingPayment:
		return target == StatusActive
	case StatusActive:
		return target == StatusSuspended || target == StatusCancelled
	case StatusSuspended:
		return target == StatusActive || target == StatusCancelled
	case StatusCancelled:
		return target == StatusActive
	default:
		return false
	}
}
