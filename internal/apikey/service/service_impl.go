// Package service implements the API key gate.
package service

import (
	"context"

	"github.com/KristianHans04/ScraperX-sub001/internal/apikey/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log  *zap.Logger
	Repo domain.Repository
}

type Gate struct {
	log  *zap.Logger
	repo domain.Repository
}

// NewGate constructs the API key gate.
func NewGate(p Params) domain.Gate {
	return &Gate{
		log:  p.Log.Named("apikey.gate"),
		repo: p.Repo,
	}
}

func (g *Gate) DeactivateAll(ctx context.Context, tx *gorm.DB, accountID snowflake.ID) error {
	if err := g.repo.SetStatusForAccount(ctx, tx, accountID, domain.KeyStatusActive, domain.KeyStatusInactive); err != nil {
		return err
	}
	g.log.Info("api keys deactivated", zap.String("account_id", accountID.String()))
	return nil
}

func (g *Gate) ReactivateAll(ctx context.Context, tx *gorm.DB, accountID snowflake.ID) error {
	if err := g.repo.SetStatusForAccount(ctx, tx, accountID, domain.KeyStatusInactive, domain.KeyStatusActive); err != nil {
		return err
	}
	g.log.Info("api keys reactivated", zap.String("account_id", accountID.String()))
	return nil
}
