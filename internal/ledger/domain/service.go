package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrInvalidAmount                     = errors.New("invalid_amount")
	ErrInsufficientCredits               = errors.New("insufficient_credits")
	ErrInsufficientCreditsForReservation = errors.New("insufficient_credits_for_reservation")
	ErrNegativeBalance                   = errors.New("negative_balance")
)

// MutationResult reports the outcome of one balance change.
type MutationResult struct {
	NewBalance    int64        `json:"new_balance"`
	LedgerEntryID snowflake.ID `json:"ledger_entry_id"`
}

// BalanceInfo is the read-only balance view.
type BalanceInfo struct {
	Balance    int64 `json:"balance"`
	CycleUsage int64 `json:"cycle_usage"`
}

// UsageSummary aggregates ledger movement inside a time range.
type UsageSummary struct {
	TotalDeducted int64 `json:"total_deducted"`
	TotalAdded    int64 `json:"total_added"`
	NetChange     int64 `json:"net_change"`
}

// DeductOptions tunes a deduction.
type DeductOptions struct {
	ScrapeJobID *snowflake.ID
	// Type overrides the entry type for failed-job bookkeeping; only
	// EntryTypeDeductionFailure is meaningful here.
	Type     EntryType
	Metadata map[string]any
}

// Service mutates account balances. Every mutation runs in a single
// transaction holding an exclusive lock on the account row.
type Service interface {
	Allocate(ctx context.Context, accountID snowflake.ID, amount int64, description string, metadata map[string]any) (*MutationResult, error)
	Deduct(ctx context.Context, accountID snowflake.ID, amount int64, description string, opts DeductOptions) (*MutationResult, error)
	Reserve(ctx context.Context, accountID snowflake.ID, amount int64, scrapeJobID snowflake.ID, description string) (*MutationResult, error)
	Release(ctx context.Context, accountID snowflake.ID, amount int64, scrapeJobID snowflake.ID, description string) (*MutationResult, error)
	ResetCycle(ctx context.Context, accountID snowflake.ID, newAllocation int64) (*MutationResult, error)
	PurchasePack(ctx context.Context, accountID snowflake.ID, packSize int64, purchaseID snowflake.ID, description string) (*MutationResult, error)
	// PurchasePackTx is PurchasePack inside the caller's transaction.
	PurchasePackTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, packSize int64, purchaseID snowflake.ID, description string) (*MutationResult, error)
	Adjust(ctx context.Context, accountID snowflake.ID, delta int64, description string, metadata map[string]any) (*MutationResult, error)

	Balance(ctx context.Context, accountID snowflake.ID) (BalanceInfo, error)
	Usage(ctx context.Context, accountID snowflake.ID, start, end time.Time) (UsageSummary, error)
	HasEnough(ctx context.Context, accountID snowflake.ID, required int64) (bool, error)
	RecentActivity(ctx context.Context, accountID snowflake.ID, limit int) ([]Entry, error)
	EntriesByJob(ctx context.Context, scrapeJobID snowflake.ID) ([]Entry, error)
}

// Repository persists ledger entries. Inserts only; the ledger is the
// audit trail and is never edited.
type Repository interface {
	Insert(ctx context.Context, tx *gorm.DB, entry *Entry) error
	Usage(ctx context.Context, accountID snowflake.ID, start, end time.Time) (UsageSummary, error)
	Recent(ctx context.Context, accountID snowflake.ID, limit int) ([]Entry, error)
	ByJob(ctx context.Context, scrapeJobID snowflake.ID) ([]Entry, error)
}
