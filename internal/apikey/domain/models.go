// Package domain contains API key models for access gating.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// KeyStatus is the activation state of an API key.
type KeyStatus string

const (
	KeyStatusActive   KeyStatus = "active"
	KeyStatusInactive KeyStatus = "inactive"
)

// APIKey is one credential of an account. Escalation toggles status in
// bulk; the key material itself lives outside the billing core.
type APIKey struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	AccountID snowflake.ID `gorm:"not null;index" json:"account_id"`
	Name      string       `gorm:"type:text;not null;default:''" json:"name"`
	Status    KeyStatus    `gorm:"type:text;not null;default:active" json:"status"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (APIKey) TableName() string { return "api_keys" }

// Repository persists API keys.
type Repository interface {
	SetStatusForAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID, from, to KeyStatus) error
}

// Gate flips an account's keys during payment-failure escalation and
// recovery. Methods take the enclosing transaction so key state moves
// together with the account status change.
type Gate interface {
	DeactivateAll(ctx context.Context, tx *gorm.DB, accountID snowflake.ID) error
	ReactivateAll(ctx context.Context, tx *gorm.DB, accountID snowflake.ID) error
}
