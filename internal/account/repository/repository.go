// Package repository implements the account store on gorm.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/KristianHans04/ScraperX-sub001/internal/account/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

// Provide constructs the account repository.
func Provide(db *gorm.DB) domain.Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *Repository) LockByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	q := tx.WithContext(ctx)
	// sqlite has no row locks; its single writer already serializes these.
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var account domain.Account
	err := q.Where("id = ?", id).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *Repository) ApplyBalance(ctx context.Context, tx *gorm.DB, id snowflake.ID, balance int64, usageDelta int64) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE accounts
		 SET balance = ?, cycle_usage = cycle_usage + ?, updated_at = ?
		 WHERE id = ?`,
		balance,
		usageDelta,
		time.Now().UTC(),
		id,
	).Error
}

func (r *Repository) ResetCycle(ctx context.Context, tx *gorm.DB, id snowflake.ID, balance int64) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE accounts
		 SET balance = ?, cycle_usage = 0, updated_at = ?
		 WHERE id = ?`,
		balance,
		time.Now().UTC(),
		id,
	).Error
}

func (r *Repository) UpdateStatus(ctx context.Context, tx *gorm.DB, id snowflake.ID, status domain.Status) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE accounts SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		time.Now().UTC(),
		id,
	).Error
}

func (r *Repository) UpdatePlan(ctx context.Context, tx *gorm.DB, id snowflake.ID, plan domain.Plan) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE accounts SET plan = ?, updated_at = ? WHERE id = ?`,
		plan,
		time.Now().UTC(),
		id,
	).Error
}

func (r *Repository) StampLastPayment(ctx context.Context, tx *gorm.DB, id snowflake.ID, at time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE accounts SET last_payment_at = ?, updated_at = ? WHERE id = ?`,
		at,
		time.Now().UTC(),
		id,
	).Error
}
