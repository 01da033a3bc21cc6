// Package domain contains the account model shared by the billing core.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Plan is the subscription tier of an account.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Status is the access level of an account.
type Status string

const (
	StatusActive     Status = "active"
	StatusRestricted Status = "restricted"
	StatusSuspended  Status = "suspended"
)

var ErrAccountNotFound = errors.New("account_not_found")

// Account holds the credit balance and access state for one customer.
// Balance stays non-negative for every plan except enterprise, which
// runs unmetered.
type Account struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	Email         string       `gorm:"type:text;not null;default:''" json:"email"`
	Balance       int64        `gorm:"not null;default:0" json:"balance"`
	CycleUsage    int64        `gorm:"not null;default:0" json:"cycle_usage"`
	Plan          Plan         `gorm:"type:text;not null;default:free" json:"plan"`
	Status        Status       `gorm:"type:text;not null;default:active" json:"status"`
	LastPaymentAt *time.Time   `json:"last_payment_at,omitempty"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

// Unlimited reports whether the account is exempt from balance checks.
func (a *Account) Unlimited() bool { return a.Plan == PlanEnterprise }

// Repository persists accounts. Mutating methods take the enclosing
// transaction so balance writes stay inside one locked unit of work.
type Repository interface {
	FindByID(ctx context.Context, id snowflake.ID) (*Account, error)
	// LockByID acquires an exclusive row lock for the transaction lifetime.
	LockByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Account, error)
	// ApplyBalance sets the balance and adds usageDelta to cycle usage.
	ApplyBalance(ctx context.Context, tx *gorm.DB, id snowflake.ID, balance int64, usageDelta int64) error
	// ResetCycle sets the balance and zeroes cycle usage.
	ResetCycle(ctx context.Context, tx *gorm.DB, id snowflake.ID, balance int64) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id snowflake.ID, status Status) error
	UpdatePlan(ctx context.Context, tx *gorm.DB, id snowflake.ID, plan Plan) error
	StampLastPayment(ctx context.Context, tx *gorm.DB, id snowflake.ID, at time.Time) error
}
