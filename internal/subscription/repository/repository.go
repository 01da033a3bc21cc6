// Package repository implements subscription persistence on gorm.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/KristianHans04/ScraperX-sub001/internal/subscription/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository struct{}

// Provide constructs the subscription repository.
func Provide() domain.Repository {
	return &Repository{}
}

func (r *Repository) FindByProviderCode(ctx context.Context, db *gorm.DB, providerCode string) (*domain.Subscription, error) {
	var subscription domain.Subscription
	err := db.WithContext(ctx).Where("provider_code = ?", providerCode).Take(&subscription).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (r *Repository) MarkCanceled(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, canceled_at = ?, ended_at = ?, updated_at = ?
		 WHERE id = ?`,
		domain.StatusCanceled,
		at,
		at,
		at,
		id,
	).Error
}

func (r *Repository) SetCancelAtPeriodEnd(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, cancel_at_period_end = true, canceled_at = ?, updated_at = ?
		 WHERE id = ?`,
		domain.StatusNonRenewing,
		at,
		at,
		id,
	).Error
}
