// Package domain contains the payment failure escalation model.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Stage is the escalation level of an unresolved payment failure.
// Stages only move forward; resolution is possible from any stage.
type Stage string

const (
	StageGrace      Stage = "grace"
	StageRetry      Stage = "retry"
	StageRestricted Stage = "restricted"
	StageSuspended  Stage = "suspended"
	StageCanceled   Stage = "canceled"
)

// Resolution reasons accepted by ClearFailure.
const (
	ResolvedByPaymentSucceeded     = "payment_succeeded"
	ResolvedByPaymentMethodUpdated = "payment_method_updated"
	ResolvedByManualResolution     = "manual_resolution"
	ResolvedBySubscriptionCanceled = "subscription_canceled"
)

// Record tracks one payment failure episode for an account. At most one
// unresolved record exists per account; repeated failures bump the retry
// count on the open record instead of creating new ones.
type Record struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	AccountID       snowflake.ID  `gorm:"not null;index" json:"account_id"`
	InvoiceID       *snowflake.ID `json:"invoice_id,omitempty"`
	SubscriptionID  *snowflake.ID `json:"subscription_id,omitempty"`
	FailureCode     string        `gorm:"type:text;not null;default:''" json:"failure_code"`
	FailureMessage  string        `gorm:"type:text;not null;default:''" json:"failure_message"`
	EscalationStage Stage         `gorm:"type:text;not null;default:grace" json:"escalation_stage"`
	FirstFailedAt   time.Time     `gorm:"not null" json:"first_failed_at"`
	LastRetryAt     *time.Time    `json:"last_retry_at,omitempty"`
	NextRetryAt     *time.Time    `json:"next_retry_at,omitempty"`
	GracePeriodEnd  *time.Time    `json:"grace_period_end,omitempty"`
	RestrictedAt    *time.Time    `json:"restricted_at,omitempty"`
	SuspendedAt     *time.Time    `json:"suspended_at,omitempty"`
	RetryCount      int           `gorm:"not null;default:0" json:"retry_count"`
	MaxRetries      int           `gorm:"not null;default:4" json:"max_retries"`
	IsResolved      bool          `gorm:"not null;default:false" json:"is_resolved"`
	ResolvedAt      *time.Time    `json:"resolved_at,omitempty"`
	ResolvedBy      *string       `json:"resolved_by,omitempty"`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Record) TableName() string { return "payment_failures" }

// EffectiveMaxRetries returns the record's retry cap, falling back to
// the configured default when the record carries none.
func (r *Record) EffectiveMaxRetries(fallback int) int {
	if r.MaxRetries > 0 {
		return r.MaxRetries
	}
	return fallback
}

// DueFilter bounds the sweep query to records whose current stage
// deadline has already passed. The *Before fields are anchor cutoffs,
// precomputed as now minus the stage's dwell.
type DueFilter struct {
	Now              time.Time
	GraceBefore      time.Time
	RestrictedBefore time.Time
	SuspendedBefore  time.Time
	// DefaultMaxRetries substitutes for records that carry no cap.
	DefaultMaxRetries int
}

// StageUpdate carries the fields a single escalation step writes.
type StageUpdate struct {
	ID           snowflake.ID
	Stage        Stage
	NextRetryAt  *time.Time
	RestrictedAt *time.Time
	SuspendedAt  *time.Time
}

// Repository persists payment failure records.
type Repository interface {
	// FindUnresolved returns the open record for the account, or nil.
	FindUnresolved(ctx context.Context, tx *gorm.DB, accountID snowflake.ID) (*Record, error)
	Create(ctx context.Context, tx *gorm.DB, record *Record) error
	IncrementRetry(ctx context.Context, tx *gorm.DB, id snowflake.ID, at time.Time) error
	ApplyEscalation(ctx context.Context, tx *gorm.DB, update StageUpdate, at time.Time) error
	Resolve(ctx context.Context, tx *gorm.DB, id snowflake.ID, resolvedBy string, at time.Time) error
	// ListDue returns open records whose stage deadline has passed,
	// oldest first, so parked records cannot crowd due ones out of the
	// sweep batch.
	ListDue(ctx context.Context, filter DueFilter, limit int) ([]Record, error)
}
