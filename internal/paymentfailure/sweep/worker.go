// Package sweep periodically advances due payment failures. It stands
// in for an external scheduler; the escalation semantics live in the
// payment failure service.
package sweep

import (
	"context"
	"time"

	"github.com/KristianHans04/ScraperX-sub001/internal/paymentfailure/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Failures domain.Service
	Config   Config `optional:"true"`
}

type Worker struct {
	log      *zap.Logger
	failures domain.Service
	cfg      Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		log:      p.Log.Named("escalation.sweep"),
		failures: p.Failures,
		cfg:      p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("escalation sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) RunOnce(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, w.cfg.RunTimeout)
	defer cancel()

	result, err := w.failures.ProcessEscalation(runCtx)
	if err != nil {
		return err
	}
	if result.Escalated > 0 || result.Skipped > 0 {
		w.log.Info("escalation sweep finished",
			zap.Int("scanned", result.Scanned),
			zap.Int("escalated", result.Escalated),
			zap.Int("skipped", result.Skipped),
		)
	}
	return nil
}
