// Package repository implements webhook event persistence on gorm.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/KristianHans04/ScraperX-sub001/internal/webhook/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository struct{}

// Provide constructs the webhook event repository.
func Provide() domain.Repository {
	return &Repository{}
}

// Claim races concurrent deliveries of the same event on the unique
// event_id index; exactly one insert wins.
func (r *Repository) Claim(ctx context.Context, db *gorm.DB, record *domain.EventRecord) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO webhook_events (id, provider, event_id, event_type, payload, received_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (event_id) DO NOTHING`,
		record.ID,
		record.Provider,
		record.EventID,
		record.EventType,
		record.Payload,
		record.ReceivedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) Find(ctx context.Context, db *gorm.DB, eventID string) (*domain.EventRecord, error) {
	var record domain.EventRecord
	err := db.WithContext(ctx).Where("event_id = ?", eventID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Release drops an unprocessed claim so the event can be claimed
// again. Processed rows are never touched, so a racing MarkProcessed
// wins over a stale-claim takeover.
func (r *Repository) Release(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM webhook_events WHERE id = ? AND processed_at IS NULL`,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE webhook_events SET processed_at = ? WHERE id = ?`,
		at,
		id,
	).Error
}
