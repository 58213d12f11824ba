// Package domain contains invoice models for the subscription billing core.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type InvoiceStatus string

const (
	InvoiceStatusUnpaid    InvoiceStatus = "unpaid"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusArchived  InvoiceStatus = "archived"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Open reports whether the invoice still represents collectible debt.
func (s InvoiceStatus) Open() bool {
	return s == InvoiceStatusUnpaid || s == InvoiceStatusOverdue
}

// Invoice is one billing-period charge against a subscription.
// DueDate is always GeneratedDate plus the configured billing period.
type Invoice struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	SubscriptionID snowflake.ID      `gorm:"not null;index" json:"subscription_id"`
	CustomerID     snowflake.ID      `gorm:"not null;index" json:"customer_id"`
	InvoiceNumber  string            `gorm:"type:text;not null;uniqueIndex" json:"invoice_number"`
	Currency       string            `gorm:"type:text;not null" json:"currency"`
	Amount         decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"amount"`
	LateFee        decimal.Decimal   `gorm:"type:numeric(12,2);not null;default:0" json:"late_fee"`
	Status         InvoiceStatus     `gorm:"type:text;not null;default:unpaid" json:"status"`
	GeneratedDate  time.Time         `gorm:"not null" json:"generated_date"`
	DueDate        time.Time         `gorm:"not null;index" json:"due_date"`
	PaidAt         *time.Time        `json:"paid_at,omitempty"`
	// PaymentReference records a submitted but not yet verified payment
	// (e.g. a GCash reference number awaiting review).
	PaymentReference *string           `gorm:"type:text" json:"payment_reference,omitempty"`
	Metadata         datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt        time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"not null" json:"updated_at"`
}

func (Invoice) TableName() string { return "invoices" }

// TotalDue is the amount a payment must match exactly: base amount plus
// any applied late fee.
func (i Invoice) TotalDue() decimal.Decimal {
	return i.Amount.Add(i.LateFee)
}
