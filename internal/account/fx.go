package account

import (
	"github.com/KristianHans04/ScraperX-sub001/internal/account/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("account",
	fx.Provide(repository.Provide),
)
