// Package domain contains credit pack purchase models.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// PurchaseStatus tracks a credit pack purchase through settlement.
type PurchaseStatus string

const (
	StatusPending   PurchaseStatus = "pending"
	StatusCompleted PurchaseStatus = "completed"
	StatusFailed    PurchaseStatus = "failed"
)

var ErrPurchaseNotFound = errors.New("credit_pack_purchase_not_found")

// Purchase is one pending or settled credit pack order. Credits are
// granted through the ledger only when the purchase completes.
type Purchase struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	AccountID   snowflake.ID   `gorm:"not null;index" json:"account_id"`
	PackSize    int64          `gorm:"not null" json:"pack_size"`
	Status      PurchaseStatus `gorm:"type:text;not null;default:pending" json:"status"`
	InvoiceID   *snowflake.ID  `json:"invoice_id,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (Purchase) TableName() string { return "credit_pack_purchases" }

// Repository persists credit pack purchases.
type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Purchase, error)
	// MarkCompleted flips a pending purchase to completed and reports
	// whether this call made the change.
	MarkCompleted(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}
