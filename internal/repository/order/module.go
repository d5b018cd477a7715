package order

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/upfit/internal/config"
	"github.com/Additional-Code/upfit/internal/database"
)

// Module provides the order repository to Fx.
var Module = fx.Provide(New)

// New picks the backend named by ORDERS_REPOSITORY.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) Repository {
	if !cfg.UsesDatabase() {
		logger.Info("order repository running in memory")
		return NewMemoryRepository()
	}
	return NewBunRepository(conns)
}
