// Package domain contains the immutable credit ledger model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EntryType classifies a balance change.
type EntryType string

const (
	EntryTypeAllocation       EntryType = "allocation"
	EntryTypePurchase         EntryType = "purchase"
	EntryTypeDeduction        EntryType = "deduction"
	EntryTypeDeductionFailure EntryType = "deduction_failure"
	EntryTypeReservation      EntryType = "reservation"
	EntryTypeRelease          EntryType = "release"
	EntryTypeAdjustment       EntryType = "adjustment"
	EntryTypeRefund           EntryType = "refund"
	EntryTypeReset            EntryType = "reset"
	EntryTypeBonus            EntryType = "bonus"
)

// Entry is one append-only record of a balance change. BalanceAfter is
// always BalanceBefore + Amount, and exactly one entry is written in the
// same transaction as the balance update it describes.
type Entry struct {
	ID                   snowflake.ID      `gorm:"primaryKey" json:"id"`
	AccountID            snowflake.ID      `gorm:"not null;index" json:"account_id"`
	Type                 EntryType         `gorm:"type:text;not null" json:"type"`
	Amount               int64             `gorm:"not null" json:"amount"`
	BalanceBefore        int64             `gorm:"not null" json:"balance_before"`
	BalanceAfter         int64             `gorm:"not null" json:"balance_after"`
	ScrapeJobID          *snowflake.ID     `gorm:"index" json:"scrape_job_id,omitempty"`
	CreditPackPurchaseID *snowflake.ID     `json:"credit_pack_purchase_id,omitempty"`
	InvoiceID            *snowflake.ID     `json:"invoice_id,omitempty"`
	Description          string            `gorm:"type:text;not null;default:''" json:"description"`
	Metadata             datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt            time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Entry) TableName() string { return "credit_ledger" }
