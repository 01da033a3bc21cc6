package subscription

import (
	"github.com/KristianHans04/ScraperX-sub001/internal/subscription/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.repository",
	fx.Provide(repository.Provide),
)
