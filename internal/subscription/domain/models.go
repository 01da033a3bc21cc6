// Package domain contains the provider subscription mirror.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// SubscriptionStatus mirrors the provider's subscription state.
type SubscriptionStatus string

const (
	StatusActive      SubscriptionStatus = "active"
	StatusNonRenewing SubscriptionStatus = "non_renewing"
	StatusCanceled    SubscriptionStatus = "canceled"
)

var ErrSubscriptionNotFound = errors.New("subscription_not_found")

// Subscription links an account to its provider-side subscription.
// ProviderCode is the provider's identifier and is unique.
type Subscription struct {
	ID                snowflake.ID       `gorm:"primaryKey" json:"id"`
	AccountID         snowflake.ID       `gorm:"not null;index" json:"account_id"`
	ProviderCode      string             `gorm:"type:text;not null;uniqueIndex" json:"provider_code"`
	Status            SubscriptionStatus `gorm:"type:text;not null;default:active" json:"status"`
	CancelAtPeriodEnd bool               `gorm:"not null;default:false" json:"cancel_at_period_end"`
	CanceledAt        *time.Time         `json:"canceled_at,omitempty"`
	EndedAt           *time.Time         `json:"ended_at,omitempty"`
	CreatedAt         time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt         time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// Repository persists subscription mirrors.
type Repository interface {
	FindByProviderCode(ctx context.Context, db *gorm.DB, providerCode string) (*Subscription, error)
	MarkCanceled(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	SetCancelAtPeriodEnd(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}
