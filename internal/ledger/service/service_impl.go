// Package service implements the credit ledger service.
package service

import (
	"context"
	"time"

	accountdomain "github.com/KristianHans04/ScraperX-sub001/internal/account/domain"
	"github.com/KristianHans04/ScraperX-sub001/internal/clock"
	"github.com/KristianHans04/ScraperX-sub001/internal/events"
	"github.com/KristianHans04/ScraperX-sub001/internal/ledger/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Accounts accountdomain.Repository
	Entries  domain.Repository
	Outbox   *events.Outbox
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	accounts accountdomain.Repository
	entries  domain.Repository
	outbox   *events.Outbox
}

// NewService constructs the credit ledger service.
func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("credit.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		accounts: p.Accounts,
		entries:  p.Entries,
		outbox:   p.Outbox,
	}
}

func (s *Service) Allocate(ctx context.Context, accountID snowflake.ID, amount int64, description string, metadata map[string]any) (*domain.MutationResult, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var result *domain.MutationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.accounts.LockByID(ctx, tx, accountID)
		if err != nil {
			return err
		}

		var txErr error
		result, txErr = s.commit(ctx, tx, account, account.Balance+amount, 0, &domain.Entry{
			Type:        domain.EntryTypeAllocation,
			Amount:      amount,
			Description: description,
			Metadata:    toJSONMap(metadata),
		})
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) Deduct(ctx context.Context, accountID snowflake.ID, amount int64, description string, opts domain.DeductOptions) (*domain.MutationResult, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	entryType := domain.EntryTypeDeduction
	if opts.Type == domain.EntryTypeDeductionFailure {
		entryType = domain.EntryTypeDeductionFailure
	}

	var result *domain.MutationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.accounts.LockByID(ctx, tx, accountID)
		if err != nil {
			return err
		}

		balanceAfter := account.Balance - amount
		if balanceAfter < 0 && !account.Unlimited() {
			return domain.ErrInsufficientCredits
		}

		var txErr error
		result, txErr = s.commit(ctx, tx, account, balanceAfter, amount, &domain.Entry{
			Type:        entryType,
			Amount:      -amount,
			ScrapeJobID: opts.ScrapeJobID,
			Description: description,
			Metadata:    toJSONMap(opts.Metadata),
		})
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) Reserve(ctx context.Context, accountID snowflake.ID, amount int64, scrapeJobID snowflake.ID, description string) (*domain.MutationResult, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var result *domain.MutationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.accounts.LockByID(ctx, tx, accountID)
		if err != nil {
			return err
		}

		balanceAfter := account.Balance - amount
		if balanceAfter < 0 && !account.Unlimited() {
			return domain.ErrInsufficientCreditsForReservation
		}

		var txErr error
		result, txErr = s.commit(ctx, tx, account, balanceAfter, 0, &domain.Entry{
			Type:        domain.EntryTypeReservation,
			Amount:      -amount,
			ScrapeJobID: &scrapeJobID,
			Description: description,
			Metadata:    datatypes.JSONMap{"reserved": true},
		})
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) Release(ctx context.Context, accountID snowflake.ID, amount int64, scrapeJobID snowflake.ID, description string) (*domain.MutationResult, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var result *domain.MutationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.accounts.LockByID(ctx, tx, accountID)
		if err != nil {
			return err
		}

		var txErr error
		result, txErr = s.commit(ctx, tx, account, account.Balance+amount, 0, &domain.Entry{
			Type:        domain.EntryTypeRelease,
			Amount:      amount,
			ScrapeJobID: &scrapeJobID,
			Description: description,
			Metadata:    datatypes.JSONMap{"released": true},
		})
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ResetCycle replaces the balance with the new cycle allocation and
// zeroes cycle usage. Replacement, not rollover: credits left over from
// the previous cycle do not carry forward.
func (s *Service) ResetCycle(ctx context.Context, accountID snowflake.ID, newAllocation int64) (*domain.MutationResult, error) {
	if newAllocation < 0 {
		return nil, domain.ErrInvalidAmount
	}

	var result *domain.MutationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.accounts.LockByID(ctx, tx, accountID)
		if err != nil {
			return err
		}

		entry := &domain.Entry{
			ID:            s.genID.Generate(),
			AccountID:     account.ID,
			Type:          domain.EntryTypeReset,
			Amount:        newAllocation - account.Balance,
			BalanceBefore: account.Balance,
			BalanceAfter:  newAllocation,
			Description:   "billing cycle reset",
			Metadata:      datatypes.JSONMap{"cycle_reset": true},
			CreatedAt:     s.clock.Now(),
		}

		if err := s.accounts.ResetCycle(ctx, tx, account.ID, newAllocation); err != nil {
			return err
		}
		if err := s.entries.Insert(ctx, tx, entry); err != nil {
			return err
		}
		if err := s.publishEntry(ctx, tx, entry); err != nil {
			return err
		}

		result = &domain.MutationResult{NewBalance: newAllocation, LedgerEntryID: entry.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) PurchasePack(ctx context.Context, accountID snowflake.ID, packSize int64, purchaseID snowflake.ID, description string) (*domain.MutationResult, error) {
	var result *domain.MutationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.PurchasePackTx(ctx, tx, accountID, packSize, purchaseID, description)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PurchasePackTx credits the pack inside the caller's transaction, so
// webhook settlement commits the grant together with the purchase flip.
func (s *Service) PurchasePackTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, packSize int64, purchaseID snowflake.ID, description string) (*domain.MutationResult, error) {
	if packSize <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	account, err := s.accounts.LockByID(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, tx, account, account.Balance+packSize, 0, &domain.Entry{
		Type:                 domain.EntryTypePurchase,
		Amount:               packSize,
		CreditPackPurchaseID: &purchaseID,
		Description:          description,
		Metadata:             datatypes.JSONMap{"pack_size": packSize},
	})
}

func (s *Service) Adjust(ctx context.Context, accountID snowflake.ID, delta int64, description string, metadata map[string]any) (*domain.MutationResult, error) {
	var result *domain.MutationResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.accounts.LockByID(ctx, tx, accountID)
		if err != nil {
			return err
		}

		balanceAfter := account.Balance + delta
		if balanceAfter < 0 {
			return domain.ErrNegativeBalance
		}

		var txErr error
		result, txErr = s.commit(ctx, tx, account, balanceAfter, 0, &domain.Entry{
			Type:        domain.EntryTypeAdjustment,
			Amount:      delta,
			Description: description,
			Metadata:    toJSONMap(metadata),
		})
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) Balance(ctx context.Context, accountID snowflake.ID) (domain.BalanceInfo, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return domain.BalanceInfo{}, err
	}
	return domain.BalanceInfo{Balance: account.Balance, CycleUsage: account.CycleUsage}, nil
}

func (s *Service) Usage(ctx context.Context, accountID snowflake.ID, start, end time.Time) (domain.UsageSummary, error) {
	return s.entries.Usage(ctx, accountID, start, end)
}

func (s *Service) HasEnough(ctx context.Context, accountID snowflake.ID, required int64) (bool, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return false, err
	}
	if account.Unlimited() {
		return true, nil
	}
	return account.Balance >= required, nil
}

func (s *Service) RecentActivity(ctx context.Context, accountID snowflake.ID, limit int) ([]domain.Entry, error) {
	return s.entries.Recent(ctx, accountID, limit)
}

func (s *Service) EntriesByJob(ctx context.Context, scrapeJobID snowflake.ID) ([]domain.Entry, error) {
	return s.entries.ByJob(ctx, scrapeJobID)
}

// commit writes the new balance and exactly one ledger entry inside the
// caller's transaction. The entry arrives with type, amount, refs and
// description set; balances and identifiers are filled here.
func (s *Service) commit(ctx context.Context, tx *gorm.DB, account *accountdomain.Account, balanceAfter int64, usageDelta int64, entry *domain.Entry) (*domain.MutationResult, error) {
	entry.ID = s.genID.Generate()
	entry.AccountID = account.ID
	entry.BalanceBefore = account.Balance
	entry.BalanceAfter = balanceAfter
	entry.CreatedAt = s.clock.Now()

	if err := s.accounts.ApplyBalance(ctx, tx, account.ID, balanceAfter, usageDelta); err != nil {
		return nil, err
	}
	if err := s.entries.Insert(ctx, tx, entry); err != nil {
		return nil, err
	}
	if err := s.publishEntry(ctx, tx, entry); err != nil {
		return nil, err
	}

	return &domain.MutationResult{NewBalance: balanceAfter, LedgerEntryID: entry.ID}, nil
}

func (s *Service) publishEntry(ctx context.Context, tx *gorm.DB, entry *domain.Entry) error {
	return s.outbox.PublishTx(ctx, tx, events.Event{
		AccountID: entry.AccountID,
		Type:      events.EventLedgerEntryCreated,
		Payload: events.LedgerEntryPayload{
			LedgerEntryID: entry.ID.String(),
			EntryType:     string(entry.Type),
			Amount:        entry.Amount,
			BalanceAfter:  entry.BalanceAfter,
		}.ToMap(),
		DedupeKey: "ledger_entry:" + entry.ID.String(),
	})
}

func toJSONMap(metadata map[string]any) datatypes.JSONMap {
	if metadata == nil {
		return nil
	}
	return datatypes.JSONMap(metadata)
}
