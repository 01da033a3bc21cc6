// Package service implements the payment failure escalation machine.
package service

import (
	"context"
	"time"

	accountdomain "github.com/KristianHans04/ScraperX-sub001/internal/account/domain"
	apikeydomain "github.com/KristianHans04/ScraperX-sub001/internal/apikey/domain"
	"github.com/KristianHans04/ScraperX-sub001/internal/clock"
	"github.com/KristianHans04/ScraperX-sub001/internal/events"
	"github.com/KristianHans04/ScraperX-sub001/internal/paymentfailure/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sweepBatchSize = 200

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Accounts accountdomain.Repository
	Keys     apikeydomain.Gate
	Records  domain.Repository
	Outbox   *events.Outbox
	Timing   Timing `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	accounts accountdomain.Repository
	keys     apikeydomain.Gate
	records  domain.Repository
	outbox   *events.Outbox
	timing   Timing
}

// NewService constructs the payment failure service.
func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("paymentfailure.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		accounts: p.Accounts,
		keys:     p.Keys,
		records:  p.Records,
		outbox:   p.Outbox,
		timing:   p.Timing.withDefaults(),
	}
}

func (s *Service) RecordFailure(ctx context.Context, input domain.FailureInput) (*domain.Record, error) {
	now := s.clock.Now()

	var record *domain.Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.records.FindUnresolved(ctx, tx, input.AccountID)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := s.records.IncrementRetry(ctx, tx, existing.ID, now); err != nil {
				return err
			}
			existing.RetryCount++
			lastRetry := now
			existing.LastRetryAt = &lastRetry
			record = existing
			return nil
		}

		graceEnd := now.Add(s.timing.GracePeriod)
		maxRetries := input.MaxRetries
		if maxRetries <= 0 {
			maxRetries = s.timing.MaxRetries
		}
		record = &domain.Record{
			ID:              s.genID.Generate(),
			AccountID:       input.AccountID,
			InvoiceID:       input.InvoiceID,
			SubscriptionID:  input.SubscriptionID,
			FailureCode:     input.FailureCode,
			FailureMessage:  input.FailureMessage,
			EscalationStage: domain.StageGrace,
			FirstFailedAt:   now,
			GracePeriodEnd:  &graceEnd,
			MaxRetries:      maxRetries,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.records.Create(ctx, tx, record); err != nil {
			return err
		}
		// Grace keeps full access; clear any stale restriction.
		if err := s.accounts.UpdateStatus(ctx, tx, input.AccountID, accountdomain.StatusActive); err != nil {
			return err
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			AccountID: input.AccountID,
			Type:      events.EventPaymentFailureRecorded,
			Payload: map[string]any{
				"failure_id":   record.ID.String(),
				"failure_code": record.FailureCode,
			},
			DedupeKey: "payment_failure_recorded:" + record.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ProcessEscalation advances each due record one stage. Due-ness is
// filtered in the query so long-parked records cannot starve due ones
// out of the batch. Accounts are escalated in their own transactions
// so one bad row cannot wedge the whole sweep.
func (s *Service) ProcessEscalation(ctx context.Context) (domain.SweepResult, error) {
	now := s.clock.Now()
	candidates, err := s.records.ListDue(ctx, domain.DueFilter{
		Now:               now,
		GraceBefore:       now.Add(-s.timing.GracePeriod),
		RestrictedBefore:  now.Add(-s.timing.RestrictedDwell),
		SuspendedBefore:   now.Add(-s.timing.SuspendedDwell),
		DefaultMaxRetries: s.timing.MaxRetries,
	}, sweepBatchSize)
	if err != nil {
		return domain.SweepResult{}, err
	}

	result := domain.SweepResult{Scanned: len(candidates)}
	for i := range candidates {
		accountID := candidates[i].AccountID
		escalated, err := s.escalateAccount(ctx, accountID)
		if err != nil {
			result.Skipped++
			s.log.Error("escalation failed, skipping account",
				zap.String("account_id", accountID.String()),
				zap.Error(err),
			)
			continue
		}
		if escalated {
			result.Escalated++
		}
	}
	return result, nil
}

func (s *Service) escalateAccount(ctx context.Context, accountID snowflake.ID) (bool, error) {
	now := s.clock.Now()

	escalated := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.records.FindUnresolved(ctx, tx, accountID)
		if err != nil {
			return err
		}
		stage, ok := decideEscalation(record, now, s.timing)
		if !ok {
			return nil
		}

		update := domain.StageUpdate{ID: record.ID, Stage: stage}
		switch stage {
		case domain.StageRetry:
			nextRetry := now.Add(s.timing.RetryInterval)
			update.NextRetryAt = &nextRetry

		case domain.StageRestricted:
			restrictedAt := now
			update.RestrictedAt = &restrictedAt
			if err := s.accounts.UpdateStatus(ctx, tx, accountID, accountdomain.StatusRestricted); err != nil {
				return err
			}
			if err := s.keys.DeactivateAll(ctx, tx, accountID); err != nil {
				return err
			}

		case domain.StageSuspended:
			suspendedAt := now
			update.SuspendedAt = &suspendedAt
			if err := s.accounts.UpdateStatus(ctx, tx, accountID, accountdomain.StatusSuspended); err != nil {
				return err
			}
			if err := s.keys.DeactivateAll(ctx, tx, accountID); err != nil {
				return err
			}

		case domain.StageCanceled:
			// Account stays suspended; only the paid plan is dropped.
			if err := s.accounts.UpdatePlan(ctx, tx, accountID, accountdomain.PlanFree); err != nil {
				return err
			}
		}

		if err := s.records.ApplyEscalation(ctx, tx, update, now); err != nil {
			return err
		}
		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			AccountID: accountID,
			Type:      events.EventPaymentFailureEscalated,
			Payload: events.EscalationPayload{
				FailureID: record.ID.String(),
				Stage:     string(stage),
			}.ToMap(),
			DedupeKey: "payment_failure_escalated:" + record.ID.String() + ":" + string(stage),
		}); err != nil {
			return err
		}

		escalated = true
		s.log.Info("payment failure escalated",
			zap.String("account_id", accountID.String()),
			zap.String("stage", string(stage)),
		)
		return nil
	})
	if err != nil {
		return false, err
	}
	return escalated, nil
}

func (s *Service) ClearFailure(ctx context.Context, accountID snowflake.ID, resolvedBy string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.ClearFailureTx(ctx, tx, accountID, resolvedBy)
	})
}

// ClearFailureTx is ClearFailure inside the caller's transaction.
func (s *Service) ClearFailureTx(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, resolvedBy string) error {
	now := s.clock.Now()

	record, err := s.records.FindUnresolved(ctx, tx, accountID)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}

	if err := s.records.Resolve(ctx, tx, record.ID, resolvedBy, now); err != nil {
		return err
	}
	if err := s.accounts.UpdateStatus(ctx, tx, accountID, accountdomain.StatusActive); err != nil {
		return err
	}
	if err := s.keys.ReactivateAll(ctx, tx, accountID); err != nil {
		return err
	}
	return s.outbox.PublishTx(ctx, tx, events.Event{
		AccountID: accountID,
		Type:      events.EventPaymentFailureResolved,
		Payload: map[string]any{
			"failure_id":  record.ID.String(),
			"resolved_by": resolvedBy,
		},
		DedupeKey: "payment_failure_resolved:" + record.ID.String(),
	})
}

// RetryPayment consumes one retry attempt. The caller performs the
// actual out-of-band charge when this returns true.
func (s *Service) RetryPayment(ctx context.Context, accountID snowflake.ID) (bool, error) {
	allowed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.records.FindUnresolved(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if record == nil {
			return nil
		}
		if record.RetryCount >= record.EffectiveMaxRetries(s.timing.MaxRetries) {
			return nil
		}
		if err := s.records.IncrementRetry(ctx, tx, record.ID, s.clock.Now()); err != nil {
			return err
		}
		allowed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return allowed, nil
}

func (s *Service) FailureState(ctx context.Context, accountID snowflake.ID) (domain.FailureState, error) {
	record, err := s.records.FindUnresolved(ctx, s.db, accountID)
	if err != nil {
		return domain.FailureState{}, err
	}
	if record == nil {
		return domain.FailureState{}, nil
	}

	now := s.clock.Now()
	state := domain.FailureState{
		HasFailure: true,
		Stage:      record.EscalationStage,
		RetryCount: record.RetryCount,
	}

	anchor := record.FirstFailedAt
	switch record.EscalationStage {
	case domain.StageRestricted:
		if record.RestrictedAt != nil {
			anchor = *record.RestrictedAt
		}
	case domain.StageSuspended, domain.StageCanceled:
		if record.SuspendedAt != nil {
			anchor = *record.SuspendedAt
		}
	}
	if days := int(now.Sub(anchor) / (24 * time.Hour)); days > 0 {
		state.DaysInStage = days
	}

	switch record.EscalationStage {
	case domain.StageGrace:
		state.NextEscalationDate = record.GracePeriodEnd
	case domain.StageRetry:
		state.NextEscalationDate = record.NextRetryAt
	case domain.StageRestricted:
		if record.RestrictedAt != nil {
			next := record.RestrictedAt.Add(s.timing.RestrictedDwell)
			state.NextEscalationDate = &next
		}
	case domain.StageSuspended:
		if record.SuspendedAt != nil {
			next := record.SuspendedAt.Add(s.timing.SuspendedDwell)
			state.NextEscalationDate = &next
		}
	}

	return state, nil
}
