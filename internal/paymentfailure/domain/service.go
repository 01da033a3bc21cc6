package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// FailureInput describes a new payment failure reported by the provider.
type FailureInput struct {
	AccountID      snowflake.ID
	InvoiceID      *snowflake.ID
	SubscriptionID *snowflake.ID
	FailureCode    string
	FailureMessage string
	// MaxRetries overrides the configured default when > 0.
	MaxRetries int
}

// FailureState is the customer-facing view of an account's failure.
type FailureState struct {
	HasFailure         bool       `json:"has_failure"`
	Stage              Stage      `json:"stage,omitempty"`
	RetryCount         int        `json:"retry_count,omitempty"`
	DaysInStage        int        `json:"days_in_stage,omitempty"`
	NextEscalationDate *time.Time `json:"next_escalation_date,omitempty"`
}

// SweepResult summarizes one escalation pass.
type SweepResult struct {
	Scanned   int `json:"scanned"`
	Escalated int `json:"escalated"`
	Skipped   int `json:"skipped"`
}

// Service runs the payment failure escalation machine.
type Service interface {
	// RecordFailure opens a failure record at the grace stage, or bumps
	// the retry count when one is already open.
	RecordFailure(ctx context.Context, input FailureInput) (*Record, error)
	// ProcessEscalation advances every due record by exactly one stage.
	ProcessEscalation(ctx context.Context) (SweepResult, error)
	// ClearFailure resolves the open record and restores account access.
	// No-op when nothing is open.
	ClearFailure(ctx context.Context, accountID snowflake.ID, resolvedBy string) error
	// ClearFailureTx is ClearFailure inside the caller's transaction.
	ClearFailureTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, resolvedBy string) error
	// RetryPayment reports whether another payment retry may be attempted.
	RetryPayment(ctx context.Context, accountID snowflake.ID) (bool, error)
	FailureState(ctx context.Context, accountID snowflake.ID) (FailureState, error)
}
