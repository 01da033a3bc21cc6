package paymentfailure

import (
	"github.com/KristianHans04/ScraperX-sub001/internal/config"
	"github.com/KristianHans04/ScraperX-sub001/internal/paymentfailure/repository"
	"github.com/KristianHans04/ScraperX-sub001/internal/paymentfailure/service"
	"go.uber.org/fx"
)

var Module = fx.Module("paymentfailure.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(cfg config.Config) service.Timing {
		return service.TimingFromConfig(cfg)
	}),
	fx.Provide(service.NewService),
)
