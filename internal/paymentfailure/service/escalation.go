package service

import (
	"time"

	"github.com/KristianHans04/ScraperX-sub001/internal/config"
	"github.com/KristianHans04/ScraperX-sub001/internal/paymentfailure/domain"
)

// Timing holds the escalation schedule. Dwells for restricted and
// suspended are measured from the stage's own timestamp, not from the
// first failure.
type Timing struct {
	GracePeriod     time.Duration
	RetryInterval   time.Duration
	RestrictedDwell time.Duration
	SuspendedDwell  time.Duration
	MaxRetries      int
}

// DefaultTiming returns the production escalation schedule.
func DefaultTiming() Timing {
	return Timing{
		GracePeriod:     3 * 24 * time.Hour,
		RetryInterval:   24 * time.Hour,
		RestrictedDwell: 7 * 24 * time.Hour,
		SuspendedDwell:  14 * 24 * time.Hour,
		MaxRetries:      4,
	}
}

func (t Timing) withDefaults() Timing {
	defaults := DefaultTiming()
	if t.GracePeriod <= 0 {
		t.GracePeriod = defaults.GracePeriod
	}
	if t.RetryInterval <= 0 {
		t.RetryInterval = defaults.RetryInterval
	}
	if t.RestrictedDwell <= 0 {
		t.RestrictedDwell = defaults.RestrictedDwell
	}
	if t.SuspendedDwell <= 0 {
		t.SuspendedDwell = defaults.SuspendedDwell
	}
	if t.MaxRetries <= 0 {
		t.MaxRetries = defaults.MaxRetries
	}
	return t
}

// TimingFromConfig builds the schedule from environment overrides,
// falling back to the defaults for unset values.
func TimingFromConfig(cfg config.Config) Timing {
	return Timing{
		GracePeriod:     time.Duration(cfg.GracePeriodDays) * 24 * time.Hour,
		RetryInterval:   time.Duration(cfg.RetryIntervalHours) * time.Hour,
		RestrictedDwell: time.Duration(cfg.RestrictedDwellDays) * 24 * time.Hour,
		SuspendedDwell:  time.Duration(cfg.SuspendedDwellDays) * 24 * time.Hour,
		MaxRetries:      cfg.MaxPaymentRetries,
	}.withDefaults()
}

// decideEscalation reports the next stage for an unresolved record at
// the given instant. ok is false when the record is not yet due or the
// stage is terminal. Pure; all writes happen in the caller.
func decideEscalation(record *domain.Record, now time.Time, timing Timing) (domain.Stage, bool) {
	if record == nil || record.IsResolved {
		return "", false
	}

	switch record.EscalationStage {
	case domain.StageGrace:
		deadline := record.FirstFailedAt.Add(timing.GracePeriod)
		if record.GracePeriodEnd != nil {
			deadline = *record.GracePeriodEnd
		}
		if !now.Before(deadline) {
			return domain.StageRetry, true
		}

	case domain.StageRetry:
		if record.RetryCount < record.EffectiveMaxRetries(timing.MaxRetries) {
			return "", false
		}
		if record.NextRetryAt == nil || !now.Before(*record.NextRetryAt) {
			return domain.StageRestricted, true
		}

	case domain.StageRestricted:
		anchor := record.FirstFailedAt
		if record.RestrictedAt != nil {
			anchor = *record.RestrictedAt
		}
		if !now.Before(anchor.Add(timing.RestrictedDwell)) {
			return domain.StageSuspended, true
		}

	case domain.StageSuspended:
		anchor := record.FirstFailedAt
		if record.SuspendedAt != nil {
			anchor = *record.SuspendedAt
		}
		if !now.Before(anchor.Add(timing.SuspendedDwell)) {
			return domain.StageCanceled, true
		}
	}

	return "", false
}
