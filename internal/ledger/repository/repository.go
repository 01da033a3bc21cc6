// Package repository implements ledger entry persistence on gorm.
package repository

import (
	"context"
	"time"

	"github.com/KristianHans04/ScraperX-sub001/internal/ledger/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

// Provide constructs the ledger repository.
func Provide(db *gorm.DB) domain.Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, tx *gorm.DB, entry *domain.Entry) error {
	return tx.WithContext(ctx).Create(entry).Error
}

// Usage aggregates ledger movement in [start, end). Reservation and
// release rows net out against each other and are excluded, matching
// how cycle usage is reported to customers.
func (r *Repository) Usage(ctx context.Context, accountID snowflake.ID, start, end time.Time) (domain.UsageSummary, error) {
	var summary domain.UsageSummary
	err := r.db.WithContext(ctx).Raw(
		`SELECT
			COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0) AS total_deducted,
			COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0) AS total_added,
			COALESCE(SUM(amount), 0) AS net_change
		 FROM credit_ledger
		 WHERE account_id = ?
		   AND created_at >= ?
		   AND created_at < ?
		   AND type IN (?, ?, ?, ?, ?, ?)`,
		accountID,
		start,
		end,
		domain.EntryTypeDeduction,
		domain.EntryTypeDeductionFailure,
		domain.EntryTypePurchase,
		domain.EntryTypeAllocation,
		domain.EntryTypeAdjustment,
		domain.EntryTypeBonus,
	).Scan(&summary).Error
	if err != nil {
		return domain.UsageSummary{}, err
	}
	return summary, nil
}

func (r *Repository) Recent(ctx context.Context, accountID snowflake.ID, limit int) ([]domain.Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	var entries []domain.Entry
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *Repository) ByJob(ctx context.Context, scrapeJobID snowflake.ID) ([]domain.Entry, error) {
	var entries []domain.Entry
	err := r.db.WithContext(ctx).
		Where("scrape_job_id = ?", scrapeJobID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
