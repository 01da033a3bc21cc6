package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	accountdomain "github.com/KristianHans04/ScraperX-sub001/internal/account/domain"
	accountrepo "github.com/KristianHans04/ScraperX-sub001/internal/account/repository"
	"github.com/KristianHans04/ScraperX-sub001/internal/clock"
	"github.com/KristianHans04/ScraperX-sub001/internal/config"
	"github.com/KristianHans04/ScraperX-sub001/internal/events"
	ledgerdomain "github.com/KristianHans04/ScraperX-sub001/internal/ledger/domain"
	ledgerrepo "github.com/KristianHans04/ScraperX-sub001/internal/ledger/repository"
	ledgerservice "github.com/KristianHans04/ScraperX-sub001/internal/ledger/service"
	webhookdomain "github.com/KristianHans04/ScraperX-sub001/internal/webhook/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestGetCreditsReturnsBalance(t *testing.T) {
	engine, db := newTestServer(t)
	insertServerAccount(t, db, 42, 750)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/accounts/42/credits", nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"balance":750`) {
		t.Fatalf("balance missing from response: %s", rec.Body.String())
	}
}

func TestGetCreditsUnknownAccountIs404(t *testing.T) {
	engine, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/accounts/999/credits", nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetCreditsRejectsMalformedID(t *testing.T) {
	engine, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/accounts/not-a-number/credits", nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAdjustCreditsRejectsZeroDelta(t *testing.T) {
	engine, db := newTestServer(t)
	insertServerAccount(t, db, 43, 100)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/accounts/43/credits/adjust",
		strings.NewReader(`{"delta":0,"description":"noop"}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdjustCreditsAppliesDelta(t *testing.T) {
	engine, db := newTestServer(t)
	insertServerAccount(t, db, 44, 100)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/accounts/44/credits/adjust",
		strings.NewReader(`{"delta":-40,"description":"support correction"}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"new_balance":60`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestAdjustCreditsFloorMapsTo400(t *testing.T) {
	engine, db := newTestServer(t)
	insertServerAccount(t, db, 45, 10)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/accounts/45/credits/adjust",
		strings.NewReader(`{"delta":-50,"description":"too deep"}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "negative_balance") {
		t.Fatalf("expected negative_balance code: %s", rec.Body.String())
	}
}

func TestIngestWebhookRequiresSignature(t *testing.T) {
	engine, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/provider",
		strings.NewReader(`{"event":"charge.success"}`))
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without signature header, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	engine, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAbortWithErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ledgerdomain.ErrInvalidAmount, http.StatusBadRequest},
		{ledgerdomain.ErrInsufficientCredits, http.StatusPaymentRequired},
		{accountdomain.ErrAccountNotFound, http.StatusNotFound},
		{webhookdomain.ErrInvalidSignature, http.StatusUnauthorized},
		{webhookdomain.ErrEventInProgress, http.StatusConflict},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		AbortWithError(c, tc.err)
		if rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}

func newTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupServerTestDB(t)
	node, err := snowflake.NewNode(4)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	log := zap.NewNop()
	clk := &clock.Fixed{Time: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)}

	credits := ledgerservice.NewService(ledgerservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Accounts: accountrepo.Provide(db),
		Entries:  ledgerrepo.Provide(db),
		Outbox:   events.NewOutbox(db, node),
	})

	srv := NewServer(Params{
		DB:      db,
		Log:     log,
		Cfg:     config.Config{Environment: "test"},
		Credits: credits,
	})
	engine := NewEngine(config.Config{Environment: "test"}, log)
	srv.RegisterRoutes(engine)
	return engine, db
}

func setupServerTestDB(t *testing.T) *gorm.DB {
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
			plan TEXT NOT NULL DEFAULT 'pro',
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

func insertServerAccount(t *testing.T, db *gorm.DB, id snowflake.ID, balance int64) {
	t.Helper()
	if err := db.Exec(
		`INSERT INTO accounts (id, email, balance, plan, status)
		 VALUES (?, 'acct@example.com', ?, 'pro', 'active')`,
		id,
		balance,
	).Error; err != nil {
		t.Fatalf("insert account: %v", err)
	}
}
