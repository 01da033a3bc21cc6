// Package domain contains the webhook event record and ingestion contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	// ErrEventInProgress means another delivery of the same event holds
	// the claim and has not finished; the provider should redeliver.
	ErrEventInProgress = errors.New("event_in_progress")
)

// EventRecord is the dedup claim for one provider event. The row is
// inserted before any side effect runs and ProcessedAt is stamped last.
// A failed dispatch releases the claim; a crash mid-dispatch leaves an
// unprocessed claim that a later redelivery takes over once stale.
type EventRecord struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	Provider    string         `gorm:"type:text;not null" json:"provider"`
	EventID     string         `gorm:"type:text;not null;uniqueIndex" json:"event_id"`
	EventType   string         `gorm:"type:text;not null;default:''" json:"event_type"`
	Payload     datatypes.JSON `gorm:"type:jsonb" json:"payload,omitempty"`
	ReceivedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"received_at"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
}

// TableName sets the database table name.
func (EventRecord) TableName() string { return "webhook_events" }

// Service ingests provider webhooks exactly once.
type Service interface {
	Process(ctx context.Context, payload []byte, signature string) error
}

// Repository persists webhook event claims.
type Repository interface {
	// Claim inserts the record and reports whether this call won the
	// claim. A false return means the event id already exists.
	Claim(ctx context.Context, db *gorm.DB, record *EventRecord) (bool, error)
	Find(ctx context.Context, db *gorm.DB, eventID string) (*EventRecord, error)
	// Release drops an unprocessed claim and reports whether a row was
	// removed. Processed rows are never released.
	Release(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}
