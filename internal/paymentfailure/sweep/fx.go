package sweep

import (
	"context"

	"github.com/KristianHans04/ScraperX-sub001/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("escalation.sweep",
	fx.Provide(func(cfg config.Config) Config {
		return Config{PollInterval: cfg.SweepInterval}
	}),
	fx.Provide(NewWorker),
	fx.Invoke(runWorker),
)

func runWorker(lc fx.Lifecycle, cfg config.Config, worker *Worker) {
	// A non-positive interval means an external scheduler drives sweeps
	// through the internal endpoint instead.
	if cfg.SweepInterval <= 0 {
		return
	}

	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go worker.RunForever(runCtx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
