package creditpack

import (
	"github.com/KristianHans04/ScraperX-sub001/internal/creditpack/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("creditpack.repository",
	fx.Provide(repository.Provide),
)
