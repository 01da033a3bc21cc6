// Package repository implements payment failure persistence on gorm.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/KristianHans04/ScraperX-sub001/internal/paymentfailure/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

// Provide constructs the payment failure repository.
func Provide(db *gorm.DB) domain.Repository {
	return &Repository{db: db}
}

func (r *Repository) FindUnresolved(ctx context.Context, tx *gorm.DB, accountID snowflake.ID) (*domain.Record, error) {
	q := tx.WithContext(ctx)
	// sqlite has no row locks; its single writer already serializes these.
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var record domain.Record
	err := q.
		Where("account_id = ? AND is_resolved = ?", accountID, false).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *Repository) Create(ctx context.Context, tx *gorm.DB, record *domain.Record) error {
	return tx.WithContext(ctx).Create(record).Error
}

func (r *Repository) IncrementRetry(ctx context.Context, tx *gorm.DB, id snowflake.ID, at time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE payment_failures
		 SET retry_count = retry_count + 1, last_retry_at = ?, updated_at = ?
		 WHERE id = ?`,
		at,
		at,
		id,
	).Error
}

func (r *Repository) ApplyEscalation(ctx context.Context, tx *gorm.DB, update domain.StageUpdate, at time.Time) error {
	fields := map[string]any{
		"escalation_stage": update.Stage,
		"updated_at":       at,
	}
	if update.NextRetryAt != nil {
		fields["next_retry_at"] = *update.NextRetryAt
	}
	if update.RestrictedAt != nil {
		fields["restricted_at"] = *update.RestrictedAt
	}
	if update.SuspendedAt != nil {
		fields["suspended_at"] = *update.SuspendedAt
	}
	return tx.WithContext(ctx).
		Model(&domain.Record{}).
		Where("id = ?", update.ID).
		Updates(fields).Error
}

func (r *Repository) Resolve(ctx context.Context, tx *gorm.DB, id snowflake.ID, resolvedBy string, at time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE payment_failures
		 SET is_resolved = true, resolved_at = ?, resolved_by = ?, updated_at = ?
		 WHERE id = ? AND is_resolved = false`,
		at,
		resolvedBy,
		at,
		id,
	).Error
}

// ListDue filters on the stage deadlines in SQL. Canceled records are
// terminal and never match; retry records match only once their cap is
// reached and the scheduled retry has elapsed.
func (r *Repository) ListDue(ctx context.Context, filter domain.DueFilter, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []domain.Record
	err := r.db.WithContext(ctx).
		Where(`is_resolved = ? AND (
			(escalation_stage = ? AND (grace_period_end <= ? OR (grace_period_end IS NULL AND first_failed_at <= ?)))
			OR (escalation_stage = ? AND retry_count >= (CASE WHEN max_retries > 0 THEN max_retries ELSE ? END)
				AND (next_retry_at IS NULL OR next_retry_at <= ?))
			OR (escalation_stage = ? AND COALESCE(restricted_at, first_failed_at) <= ?)
			OR (escalation_stage = ? AND COALESCE(suspended_at, first_failed_at) <= ?)
		)`,
			false,
			domain.StageGrace, filter.Now, filter.GraceBefore,
			domain.StageRetry, filter.DefaultMaxRetries, filter.Now,
			domain.StageRestricted, filter.RestrictedBefore,
			domain.StageSuspended, filter.SuspendedBefore,
		).
		Order("first_failed_at ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
