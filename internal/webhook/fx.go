package webhook

import (
	"github.com/KristianHans04/ScraperX-sub001/internal/webhook/repository"
	"github.com/KristianHans04/ScraperX-sub001/internal/webhook/service"
	"go.uber.org/fx"
)

var Module = fx.Module("webhook.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
