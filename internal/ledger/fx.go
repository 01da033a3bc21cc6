package ledger

import (
	"github.com/KristianHans04/ScraperX-sub001/internal/ledger/repository"
	"github.com/KristianHans04/ScraperX-sub001/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("credit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
