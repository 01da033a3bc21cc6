// Package service implements the payment provider webhook ingestor.
package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KristianHans04/ScraperX-sub001/internal/clock"
	"github.com/KristianHans04/ScraperX-sub001/internal/config"
	creditpackdomain "github.com/KristianHans04/ScraperX-sub001/internal/creditpack/domain"
	invoicedomain "github.com/KristianHans04/ScraperX-sub001/internal/invoice/domain"
	ledgerdomain "github.com/KristianHans04/ScraperX-sub001/internal/ledger/domain"
	failuredomain "github.com/KristianHans04/ScraperX-sub001/internal/paymentfailure/domain"
	subscriptiondomain "github.com/KristianHans04/ScraperX-sub001/internal/subscription/domain"
	"github.com/KristianHans04/ScraperX-sub001/internal/webhook/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const provider = "paystack"

// claimStaleAfter bounds how long an unprocessed claim can block
// redeliveries. A delivery that died between claiming and finishing
// loses the claim to the next redelivery after this window.
const claimStaleAfter = 5 * time.Minute

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Cfg           config.Config
	Repo          domain.Repository
	Credits       ledgerdomain.Service
	Failures      failuredomain.Service
	Invoices      invoicedomain.Service
	Subscriptions subscriptiondomain.Repository
	Packs         creditpackdomain.Repository
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	secret        []byte
	repo          domain.Repository
	credits       ledgerdomain.Service
	failures      failuredomain.Service
	invoices      invoicedomain.Service
	subscriptions subscriptiondomain.Repository
	packs         creditpackdomain.Repository
}

// NewService constructs the webhook ingestor.
func NewService(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("webhook.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		secret:        []byte(strings.TrimSpace(p.Cfg.WebhookSecret)),
		repo:          p.Repo,
		credits:       p.Credits,
		failures:      p.Failures,
		invoices:      p.Invoices,
		subscriptions: p.Subscriptions,
		packs:         p.Packs,
	}
}

// envelope is the provider's webhook shape. Snowflake ids inside
// metadata are decoded from raw JSON to avoid float64 truncation.
type envelope struct {
	Event string    `json:"event"`
	Data  eventData `json:"data"`
}

type eventData struct {
	ID               json.Number                `json:"id"`
	Reference        string                     `json:"reference"`
	Message          string                     `json:"message"`
	GatewayResponse  string                     `json:"gateway_response"`
	SubscriptionCode string                     `json:"subscription_code"`
	Metadata         map[string]json.RawMessage `json:"metadata"`
}

func (s *Service) Process(ctx context.Context, payload []byte, signature string) error {
	if err := s.verify(payload, signature); err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return domain.ErrInvalidPayload
	}
	eventType := strings.TrimSpace(env.Event)
	eventID := env.Data.ID.String()
	if eventID == "" {
		eventID = strings.TrimSpace(env.Data.Reference)
	}
	if eventType == "" || eventID == "" {
		return domain.ErrInvalidPayload
	}

	record := &domain.EventRecord{
		ID:         s.genID.Generate(),
		Provider:   provider,
		EventID:    eventID,
		EventType:  eventType,
		Payload:    datatypes.JSON(payload),
		ReceivedAt: s.clock.Now(),
	}
	claimed, err := s.repo.Claim(ctx, s.db, record)
	if err != nil {
		return err
	}
	if !claimed {
		stored, err := s.repo.Find(ctx, s.db, eventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return domain.ErrEventInProgress
		}
		if stored.ProcessedAt != nil {
			s.log.Info("webhook event replayed, skipping",
				zap.String("event_id", eventID),
				zap.String("event_type", eventType),
			)
			return nil
		}
		// An unprocessed claim this old belongs to a delivery that died
		// mid-dispatch; take it over so the event is not lost.
		if s.clock.Now().Sub(stored.ReceivedAt) < claimStaleAfter {
			return domain.ErrEventInProgress
		}
		released, err := s.repo.Release(ctx, s.db, stored.ID)
		if err != nil {
			return err
		}
		if !released {
			return domain.ErrEventInProgress
		}
		claimed, err = s.repo.Claim(ctx, s.db, record)
		if err != nil {
			return err
		}
		if !claimed {
			return domain.ErrEventInProgress
		}
		s.log.Warn("stale webhook claim taken over",
			zap.String("event_id", eventID),
			zap.String("event_type", eventType),
		)
	}

	if err := s.dispatch(ctx, env); err != nil {
		// Drop the claim so the provider's redelivery can run the
		// dispatch again instead of hitting the dedup guard.
		if _, releaseErr := s.repo.Release(ctx, s.db, record.ID); releaseErr != nil {
			s.log.Error("webhook claim release failed",
				zap.String("event_id", eventID),
				zap.Error(releaseErr),
			)
		}
		return err
	}

	return s.repo.MarkProcessed(ctx, s.db, record.ID, s.clock.Now())
}

func (s *Service) verify(payload []byte, signature string) error {
	if len(s.secret) == 0 {
		return domain.ErrInvalidSignature
	}
	mac := hmac.New(sha512.New, s.secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	given := strings.ToLower(strings.TrimSpace(signature))
	if !hmac.Equal([]byte(expected), []byte(given)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, env envelope) error {
	switch env.Event {
	case "charge.success":
		return s.handleChargeSuccess(ctx, env.Data)
	case "charge.failed":
		return s.handleChargeFailed(ctx, env.Data)
	case "subscription.disable":
		return s.handleSubscriptionDisable(ctx, env.Data)
	case "subscription.not_renew":
		return s.handleSubscriptionNotRenew(ctx, env.Data)
	default:
		// invoice.*, transfer.*, subscription.create and anything new
		// are acknowledged without effect.
		s.log.Info("webhook event acknowledged without effect",
			zap.String("event_type", env.Event),
		)
		return nil
	}
}

func (s *Service) handleChargeSuccess(ctx context.Context, data eventData) error {
	if purchaseID := metaID(data.Metadata, "creditPackPurchaseId"); purchaseID != nil {
		if err := s.settlePackPurchase(ctx, *purchaseID, data.Reference); err != nil {
			return err
		}
	}

	if invoiceID := metaID(data.Metadata, "invoiceId"); invoiceID != nil {
		invoice, err := s.invoices.FindByID(ctx, *invoiceID)
		if errors.Is(err, invoicedomain.ErrInvoiceNotFound) {
			s.log.Warn("charge.success references unknown invoice",
				zap.String("invoice_id", invoiceID.String()),
			)
			return nil
		}
		if err != nil {
			return err
		}
		if invoice.Status == invoicedomain.StatusPaid {
			return nil
		}
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.invoices.MarkPaidTx(ctx, tx, *invoiceID, data.Reference); err != nil {
				return err
			}
			return s.failures.ClearFailureTx(ctx, tx, invoice.AccountID, failuredomain.ResolvedByPaymentSucceeded)
		})
	}

	return nil
}

// settlePackPurchase commits the status flip, the credit grant, the
// invoice settlement and the failure resolution as one transaction, so
// a redelivery after any partial error starts from a clean purchase.
func (s *Service) settlePackPurchase(ctx context.Context, purchaseID snowflake.ID, reference string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		purchase, err := s.packs.FindByID(ctx, tx, purchaseID)
		if errors.Is(err, creditpackdomain.ErrPurchaseNotFound) {
			s.log.Warn("charge.success references unknown purchase",
				zap.String("purchase_id", purchaseID.String()),
			)
			return nil
		}
		if err != nil {
			return err
		}

		settled, err := s.packs.MarkCompleted(ctx, tx, purchase.ID, s.clock.Now())
		if err != nil {
			return err
		}
		if !settled {
			return nil
		}

		description := fmt.Sprintf("credit pack purchase - %d credits", purchase.PackSize)
		if _, err := s.credits.PurchasePackTx(ctx, tx, purchase.AccountID, purchase.PackSize, purchase.ID, description); err != nil {
			return err
		}
		if purchase.InvoiceID != nil {
			if err := s.invoices.MarkPaidTx(ctx, tx, *purchase.InvoiceID, reference); err != nil {
				return err
			}
		}
		return s.failures.ClearFailureTx(ctx, tx, purchase.AccountID, failuredomain.ResolvedByPaymentSucceeded)
	})
}

func (s *Service) handleChargeFailed(ctx context.Context, data eventData) error {
	accountID := metaID(data.Metadata, "accountId")
	if accountID == nil {
		s.log.Warn("charge.failed without account metadata, acknowledged")
		return nil
	}

	message := strings.TrimSpace(data.Message)
	if message == "" {
		message = "payment failed"
	}
	if _, err := s.failures.RecordFailure(ctx, failuredomain.FailureInput{
		AccountID:      *accountID,
		InvoiceID:      metaID(data.Metadata, "invoiceId"),
		SubscriptionID: metaID(data.Metadata, "subscriptionId"),
		FailureCode:    data.GatewayResponse,
		FailureMessage: message,
	}); err != nil {
		return err
	}

	if purchaseID := metaID(data.Metadata, "creditPackPurchaseId"); purchaseID != nil {
		if err := s.packs.MarkFailed(ctx, s.db, *purchaseID, s.clock.Now()); err != nil {
			return err
		}
	}

	if invoiceID := metaID(data.Metadata, "invoiceId"); invoiceID != nil {
		err := s.invoices.MarkFailed(ctx, *invoiceID, data.GatewayResponse)
		if errors.Is(err, invoicedomain.ErrInvoiceNotFound) || errors.Is(err, invoicedomain.ErrInvoiceNotEditable) {
			s.log.Warn("charge.failed invoice not failable",
				zap.String("invoice_id", invoiceID.String()),
				zap.Error(err),
			)
			return nil
		}
		return err
	}
	return nil
}

func (s *Service) handleSubscriptionDisable(ctx context.Context, data eventData) error {
	subscription, err := s.findSubscription(ctx, data.SubscriptionCode)
	if err != nil || subscription == nil {
		return err
	}
	return s.subscriptions.MarkCanceled(ctx, s.db, subscription.ID, s.clock.Now())
}

func (s *Service) handleSubscriptionNotRenew(ctx context.Context, data eventData) error {
	subscription, err := s.findSubscription(ctx, data.SubscriptionCode)
	if err != nil || subscription == nil {
		return err
	}
	return s.subscriptions.SetCancelAtPeriodEnd(ctx, s.db, subscription.ID, s.clock.Now())
}

func (s *Service) findSubscription(ctx context.Context, code string) (*subscriptiondomain.Subscription, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	subscription, err := s.subscriptions.FindByProviderCode(ctx, s.db, code)
	if errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) {
		s.log.Warn("webhook references unknown subscription", zap.String("code", code))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return subscription, nil
}

// metaID decodes a snowflake id stored as a JSON string or number.
func metaID(meta map[string]json.RawMessage, key string) *snowflake.ID {
	raw, ok := meta[key]
	if !ok {
		return nil
	}
	value := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if value == "" || value == "null" {
		return nil
	}
	id, err := snowflake.ParseString(value)
	if err != nil {
		return nil
	}
	return &id
}
