// Package domain contains the invoice model used by webhook settlement.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InvoiceStatus is the settlement state of an invoice.
type InvoiceStatus string

const (
	StatusOpen          InvoiceStatus = "open"
	StatusPaid          InvoiceStatus = "paid"
	StatusUncollectible InvoiceStatus = "uncollectible"
)

var (
	ErrInvoiceNotFound    = errors.New("invoice_not_found")
	ErrInvoiceNotEditable = errors.New("invoice_not_editable")
)

// Invoice mirrors the billing provider's invoice for an account.
type Invoice struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	AccountID     snowflake.ID      `gorm:"not null;index" json:"account_id"`
	Status        InvoiceStatus     `gorm:"type:text;not null;default:open" json:"status"`
	Total         int64             `gorm:"not null;default:0" json:"total"`
	AmountPaid    int64             `gorm:"not null;default:0" json:"amount_paid"`
	AmountDue     int64             `gorm:"not null;default:0" json:"amount_due"`
	ProviderRef   *string           `json:"provider_ref,omitempty"`
	FailureReason *string           `json:"failure_reason,omitempty"`
	PaidAt        *time.Time        `json:"paid_at,omitempty"`
	FailedAt      *time.Time        `json:"failed_at,omitempty"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Service settles invoices from provider webhooks. MarkPaid is
// idempotent; settling a paid invoice again is a no-op.
type Service interface {
	MarkPaid(ctx context.Context, invoiceID snowflake.ID, providerRef string) error
	// MarkPaidTx is MarkPaid inside the caller's transaction.
	MarkPaidTx(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID, providerRef string) error
	MarkFailed(ctx context.Context, invoiceID snowflake.ID, reason string) error
	FindByID(ctx context.Context, invoiceID snowflake.ID) (*Invoice, error)
}
