// Package repository implements credit pack purchase persistence on gorm.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/KristianHans04/ScraperX-sub001/internal/creditpack/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository struct{}

// Provide constructs the credit pack repository.
func Provide() domain.Repository {
	return &Repository{}
}

func (r *Repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Purchase, error) {
	var purchase domain.Purchase
	err := db.WithContext(ctx).Where("id = ?", id).Take(&purchase).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrPurchaseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// MarkCompleted guards on the pending status so replayed webhooks
// cannot settle a purchase twice.
func (r *Repository) MarkCompleted(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE credit_pack_purchases
		 SET status = ?, completed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusCompleted,
		at,
		at,
		id,
		domain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE credit_pack_purchases
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusFailed,
		at,
		id,
		domain.StatusPending,
	).Error
}
