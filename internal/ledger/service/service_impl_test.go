package service

import (
	"context"
	"errors"
	"testing"
	"time"

	accountdomain "github.com/KristianHans04/ScraperX-sub001/internal/account/domain"
	accountrepo "github.com/KristianHans04/ScraperX-sub001/internal/account/repository"
	"github.com/KristianHans04/ScraperX-sub001/internal/clock"
	"github.com/KristianHans04/ScraperX-sub001/internal/events"
	"github.com/KristianHans04/ScraperX-sub001/internal/ledger/domain"
	ledgerrepo "github.com/KristianHans04/ScraperX-sub001/internal/ledger/repository"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestDeductSubtractsAndRecordsEntry(t *testing.T) {
	svc, db, _ := newTestService(t)
	insertAccount(t, db, 1, 500, accountdomain.PlanPro)

	result, err := svc.Deduct(context.Background(), 1, 100, "scrape batch", domain.DeductOptions{})
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if result.NewBalance != 400 {
		t.Fatalf("expected balance 400, got %d", result.NewBalance)
	}

	account := fetchAccount(t, db, 1)
	if account.Balance != 400 {
		t.Fatalf("expected stored balance 400, got %d", account.Balance)
	}
	if account.CycleUsage != 100 {
		t.Fatalf("expected cycle usage 100, got %d", account.CycleUsage)
	}

	var entry domain.Entry
	if err := db.Where("id = ?", result.LedgerEntryID).Take(&entry).Error; err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if entry.Type != domain.EntryTypeDeduction {
		t.Fatalf("expected deduction entry, got %s", entry.Type)
	}
	if entry.Amount != -100 || entry.BalanceBefore != 500 || entry.BalanceAfter != 400 {
		t.Fatalf("unexpected entry amounts: %+v", entry)
	}
	if count := countEvents(t, db, 1); count != 1 {
		t.Fatalf("expected 1 outbox event, got %d", count)
	}
}

func TestDeductRejectsOverdraw(t *testing.T) {
	svc, db, _ := newTestService(t)
	insertAccount(t, db, 2, 400, accountdomain.PlanPro)

	_, err := svc.Deduct(context.Background(), 2, 1000, "big batch", domain.DeductOptions{})
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("expected insufficient credits, got %v", err)
	}

	account := fetchAccount(t, db, 2)
	if account.Balance != 400 {
		t.Fatalf("balance changed on rejected deduction: %d", account.Balance)
	}
	if count := countEntries(t, db, 2); count != 0 {
		t.Fatalf("expected no ledger rows, got %d", count)
	}
}

func TestDeductEnterpriseGoesNegative(t *testing.T) {
	svc, db, _ := newTestService(t)
	insertAccount(t, db, 3, 50, accountdomain.PlanEnterprise)

	result, err := svc.Deduct(context.Background(), 3, 200, "unmetered batch", domain.DeductOptions{})
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if result.NewBalance != -150 {
		t.Fatalf("expected balance -150, got %d", result.NewBalance)
	}
}

func TestAllocateAddsCredits(t *testing.T) {
	svc, db, _ := newTestService(t)
	insertAccount(t, db, 4, 100, accountdomain.PlanFree)

	result, err := svc.Allocate(context.Background(), 4, 250, "plan allocation", nil)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if result.NewBalance != 350 {
		t.Fatalf("expected balance 350, got %d", result.NewBalance)
	}

	if _, err := svc.Allocate(context.Background(), 4, 0, "noop", nil); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := svc.Allocate(context.Background(), 4, -10, "negative", nil); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestAllocateUnknownAccount(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Allocate(context.Background(), 999, 100, "ghost", nil)
	if !errors.Is(err, accountdomain.ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
}

func TestReserveAndReleaseRoundTrip(t *testing.T) {
	svc, db, clk := newTestService(t)
	insertAccount(t, db, 5, 300, accountdomain.PlanPro)
	jobID := snowflake.ID(7001)

	reserved, err := svc.Reserve(context.Background(), 5, 30, jobID, "job hold")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if reserved.NewBalance != 270 {
		t.Fatalf("expected balance 270 after reserve, got %d", reserved.NewBalance)
	}

	clk.Advance(time.Minute)

	released, err := svc.Release(context.Background(), 5, 30, jobID, "job canceled")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.NewBalance != 300 {
		t.Fatalf("expected balance 300 after release, got %d", released.NewBalance)
	}

	account := fetchAccount(t, db, 5)
	if account.CycleUsage != 0 {
		t.Fatalf("reserve/release should not touch cycle usage, got %d", account.CycleUsage)
	}

	entries, err := svc.EntriesByJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("entries by job: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 job entries, got %d", len(entries))
	}
	if entries[0].Type != domain.EntryTypeReservation || entries[1].Type != domain.EntryTypeRelease {
		t.Fatalf("unexpected entry types: %s, %s", entries[0].Type, entries[1].Type)
	}
}

func TestReserveRejectsOverdraw(t *testing.T) {
	svc, db, _ := newTestService(t)
	insertAccount(t, db, 6, 20, accountdomain.PlanPro)

	_, err := svc.Reserve(context.Background(), 6, 30, 7002, "job hold")
	if !errors.Is(err, domain.ErrInsufficientCreditsForReservation) {
		t.Fatalf("expected reservation rejection, got %v", err)
	}
}

func TestResetCycleReplacesBalance(t *testing.T) {
	svc, db, _ := newTestService(t)
	insertAccount(t, db, 7, 120, accountdomain.PlanPro)
	if err := db.Exec(`UPDATE accounts SET cycle_usage = 880 WHERE id = ?`, 7).Error; err != nil {
		t.Fatalf("set usage: %v", err)
	}

	result, err := svc.ResetCycle(context.Background(), 7, 1000)
	if err != nil {
		t.Fatalf("reset cycle: %v", err)
	}
	if result.NewBalance != 1000 {
		t.Fatalf("expected balance 1000, got %d", result.NewBalance)
	}

	account := fetchAccount(t, db, 7)
	if account.Balance != 1000 || account.CycleUsage != 0 {
		t.Fatalf("expected 1000/0 after reset, got %d/%d", account.Balance, account.CycleUsage)
	}

	var entry domain.Entry
	if err := db.Where("id = ?", result.LedgerEntryID).Take(&entry).Error; err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if entry.Type != domain.EntryTypeReset || entry.Amount != 880 {
		t.Fatalf("unexpected reset entry: type=%s amount=%d", entry.Type, entry.Amount)
	}

	if _, err := svc.ResetCycle(context.Background(), 7, -5); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount for negative allocation, got %v", err)
	}
	if _, err := svc.ResetCycle(context.Background(), 7, 0); err != nil {
		t.Fatalf("zero allocation should be accepted: %v", err)
	}
}

func TestPurchasePackAddsCredits(t *testing.T) {
	svc, db, _ := newTestService(t)
	insertAccount(t, db, 8, 10, accountdomain.PlanFree)

	result, err := svc.PurchasePack(context.Background(), 8, 5000, 9001, "starter pack")
	if err != nil {
		t.Fatalf("purchase pack: %v", err)
	}
	if result.NewBalance != 5010 {
		t.Fatalf("expected balance 5010, got %d", result.NewBalance)
	}

	var entry domain.Entry
	if err := db.Where("id = ?", result.LedgerEntryID).Take(&entry).Error; err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if entry.CreditPackPurchaseID == nil || *entry.CreditPackPurchaseID != 9001 {
		t.Fatalf("expected purchase reference, got %+v", entry.CreditPackPurchaseID)
	}
}

func TestAdjustEnforcesFloor(t *testing.T) {
	svc, db, _ := newTestService(t)
	insertAccount(t, db, 9, 100, accountdomain.PlanPro)

	if _, err := svc.Adjust(context.Background(), 9, -150, "support correction", nil); !errors.Is(err, domain.ErrNegativeBalance) {
		t.Fatalf("expected negative balance rejection, got %v", err)
	}

	result, err := svc.Adjust(context.Background(), 9, -60, "support correction", nil)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if result.NewBalance != 40 {
		t.Fatalf("expected balance 40, got %d", result.NewBalance)
	}

	account := fetchAccount(t, db, 9)
	if account.CycleUsage != 0 {
		t.Fatalf("adjust should not touch cycle usage, got %d", account.CycleUsage)
	}
}

func TestUsageExcludesReservations(t *testing.T) {
	svc, db, clk := newTestService(t)
	insertAccount(t, db, 10, 1000, accountdomain.PlanPro)
	start := clk.Now().Add(-time.Hour)

	if _, err := svc.Deduct(context.Background(), 10, 100, "batch", domain.DeductOptions{}); err != nil {
		t.Fatalf("deduct: %v", err)
	}
	clk.Advance(time.Minute)
	if _, err := svc.Allocate(context.Background(), 10, 40, "bonus", nil); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	clk.Advance(time.Minute)
	if _, err := svc.Reserve(context.Background(), 10, 500, 7003, "hold"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	summary, err := svc.Usage(context.Background(), 10, start, clk.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if summary.TotalDeducted != 100 {
		t.Fatalf("expected 100 deducted, got %d", summary.TotalDeducted)
	}
	if summary.TotalAdded != 40 {
		t.Fatalf("expected 40 added, got %d", summary.TotalAdded)
	}
	if summary.NetChange != -60 {
		t.Fatalf("expected net -60, got %d", summary.NetChange)
	}
}

func TestHasEnough(t *testing.T) {
	svc, db, _ := newTestService(t)
	insertAccount(t, db, 11, 100, accountdomain.PlanPro)
	insertAccount(t, db, 12, 0, accountdomain.PlanEnterprise)

	ok, err := svc.HasEnough(context.Background(), 11, 100)
	if err != nil || !ok {
		t.Fatalf("expected enough at exact balance, got %v %v", ok, err)
	}
	ok, err = svc.HasEnough(context.Background(), 11, 101)
	if err != nil || ok {
		t.Fatalf("expected not enough above balance, got %v %v", ok, err)
	}
	ok, err = svc.HasEnough(context.Background(), 12, 1000000)
	if err != nil || !ok {
		t.Fatalf("enterprise should always have enough, got %v %v", ok, err)
	}
}

func TestRecentActivityOrdersNewestFirst(t *testing.T) {
	svc, db, clk := newTestService(t)
	insertAccount(t, db, 13, 1000, accountdomain.PlanPro)

	if _, err := svc.Deduct(context.Background(), 13, 10, "first", domain.DeductOptions{}); err != nil {
		t.Fatalf("deduct: %v", err)
	}
	clk.Advance(time.Minute)
	if _, err := svc.Deduct(context.Background(), 13, 20, "second", domain.DeductOptions{}); err != nil {
		t.Fatalf("deduct: %v", err)
	}

	entries, err := svc.RecentActivity(context.Background(), 13, 10)
	if err != nil {
		t.Fatalf("recent activity: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Description != "second" {
		t.Fatalf("expected newest first, got %q", entries[0].Description)
	}
}

func newTestService(t *testing.T) (domain.Service, *gorm.DB, *clock.Fixed) {
	t.Helper()
	db := setupLedgerTestDB(t)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	clk := &clock.Fixed{Time: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Accounts: accountrepo.Provide(db),
		Entries:  ledgerrepo.Provide(db),
		Outbox:   events.NewOutbox(db, node),
	})
	return svc, db, clk
}

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id BIGINT PRIMARY KEY,
			email TEXT NOT NULL DEFAULT '',
			balance BIGINT NOT NULL DEFAULT 0,
			cycle_usage BIGINT NOT NULL DEFAULT 0,
			plan TEXT NOT NULL DEFAULT 'free',
			status TEXT NOT NULL DEFAULT 'active',
			last_payment_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS credit_ledger (
			id BIGINT PRIMARY KEY,
			account_id BIGINT NOT NULL,
			type TEXT NOT NULL,
			amount BIGINT NOT NULL,
			balance_before BIGINT NOT NULL,
			balance_after BIGINT NOT NULL,
			scrape_job_id BIGINT,
			credit_pack_purchase_id BIGINT,
			invoice_id BIGINT,
			description TEXT NOT NULL DEFAULT '',
			metadata TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS credit_events (
			id BIGINT PRIMARY KEY,
			account_id BIGINT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT,
			dedupe_key TEXT,
			published BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (account_id, dedupe_key)
		)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func insertAccount(t *testing.T, db *gorm.DB, id snowflake.ID, balance int64, plan accountdomain.Plan) {
	t.Helper()
	if err := db.Exec(
		`INSERT INTO accounts (id, email, balance, plan, status)
		 VALUES (?, ?, ?, ?, 'active')`,
		id,
		"acct@example.com",
		balance,
		plan,
	).Error; err != nil {
		t.Fatalf("insert account: %v", err)
	}
}

func fetchAccount(t *testing.T, db *gorm.DB, id snowflake.ID) *accountdomain.Account {
	t.Helper()
	var account accountdomain.Account
	if err := db.Where("id = ?", id).Take(&account).Error; err != nil {
		t.Fatalf("fetch account: %v", err)
	}
	return &account
}

func countEntries(t *testing.T, db *gorm.DB, accountID snowflake.ID) int64 {
	t.Helper()
	var count int64
	if err := db.Raw(`SELECT COUNT(*) FROM credit_ledger WHERE account_id = ?`, accountID).Scan(&count).Error; err != nil {
		t.Fatalf("count entries: %v", err)
	}
	return count
}

func countEvents(t *testing.T, db *gorm.DB, accountID snowflake.ID) int64 {
	t.Helper()
	var count int64
	if err := db.Raw(`SELECT COUNT(*) FROM credit_events WHERE account_id = ?`, accountID).Scan(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	return count
}
