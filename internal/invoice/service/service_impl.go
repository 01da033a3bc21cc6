// Package service implements invoice settlement.
package service

import (
	"context"
	"errors"

	accountdomain "github.com/KristianHans04/ScraperX-sub001/internal/account/domain"
	"github.com/KristianHans04/ScraperX-sub001/internal/clock"
	"github.com/KristianHans04/ScraperX-sub001/internal/invoice/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Accounts accountdomain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	accounts accountdomain.Repository
}

// NewService constructs the invoice service.
func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("invoice.service"),
		clock:    p.Clock,
		accounts: p.Accounts,
	}
}

// MarkPaid settles the invoice and stamps the account's last payment
// time. Already-paid invoices are left alone.
func (s *Service) MarkPaid(ctx context.Context, invoiceID snowflake.ID, providerRef string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.MarkPaidTx(ctx, tx, invoiceID, providerRef)
	})
}

// MarkPaidTx is MarkPaid inside the caller's transaction.
func (s *Service) MarkPaidTx(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID, providerRef string) error {
	now := s.clock.Now()

	invoice, err := findForUpdate(ctx, tx, invoiceID)
	if err != nil {
		return err
	}
	if invoice.Status == domain.StatusPaid {
		return nil
	}

	err = tx.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, amount_paid = total, amount_due = 0,
		     provider_ref = ?, paid_at = ?, updated_at = ?
		 WHERE id = ?`,
		domain.StatusPaid,
		providerRef,
		now,
		now,
		invoiceID,
	).Error
	if err != nil {
		return err
	}
	return s.accounts.StampLastPayment(ctx, tx, invoice.AccountID, now)
}

// MarkFailed flags the invoice as uncollectible. Paid invoices cannot
// be failed.
func (s *Service) MarkFailed(ctx context.Context, invoiceID snowflake.ID, reason string) error {
	now := s.clock.Now()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := findForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status == domain.StatusPaid {
			return domain.ErrInvoiceNotEditable
		}

		return tx.WithContext(ctx).Exec(
			`UPDATE invoices
			 SET status = ?, failure_reason = ?, failed_at = ?, updated_at = ?
			 WHERE id = ?`,
			domain.StatusUncollectible,
			reason,
			now,
			now,
			invoiceID,
		).Error
	})
}

func (s *Service) FindByID(ctx context.Context, invoiceID snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := s.db.WithContext(ctx).Where("id = ?", invoiceID).Take(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func findForUpdate(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := tx.WithContext(ctx).Where("id = ?", invoiceID).Take(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}
