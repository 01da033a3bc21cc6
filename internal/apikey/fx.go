package apikey

import (
	"github.com/KristianHans04/ScraperX-sub001/internal/apikey/repository"
	"github.com/KristianHans04/ScraperX-sub001/internal/apikey/service"
	"go.uber.org/fx"
)

var Module = fx.Module("apikey.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewGate),
)
