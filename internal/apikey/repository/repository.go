// Package repository implements API key persistence on gorm.
package repository

import (
	"context"
	"time"

	"github.com/KristianHans04/ScraperX-sub001/internal/apikey/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository struct{}

// Provide constructs the API key repository.
func Provide() domain.Repository {
	return &Repository{}
}

func (r *Repository) SetStatusForAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID, from, to domain.KeyStatus) error {
	return db.WithContext(ctx).Exec(
		`UPDATE api_keys SET status = ?, updated_at = ? WHERE account_id = ? AND status = ?`,
		to,
		time.Now().UTC(),
		accountID,
		from,
	).Error
}
