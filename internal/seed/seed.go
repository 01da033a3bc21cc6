// Package seed bootstraps development data at startup.
package seed

import (
	"context"
	"errors"
	"time"

	accountdomain "github.com/KristianHans04/ScraperX-sub001/internal/account/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const (
	demoAccountEmail   = "demo@scraperx.dev"
	demoAccountBalance = 1000
)

// EnsureDemoAccount seeds a demo account with starter credits so local
// environments have something to bill against. Safe to run repeatedly.
func EnsureDemoAccount(db *gorm.DB, node *snowflake.Node) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if node == nil {
		return errors.New("seed id generator is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing accountdomain.Account
		err := tx.WithContext(ctx).
			Where("email = ?", demoAccountEmail).
			Take(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now().UTC()
		account := accountdomain.Account{
			ID:        node.Generate(),
			Email:     demoAccountEmail,
			Balance:   demoAccountBalance,
			Plan:      accountdomain.PlanFree,
			Status:    accountdomain.StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.WithContext(ctx).Create(&account).Error
	})
}
