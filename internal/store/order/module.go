package order

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/upfit/internal/config"
	"github.com/Additional-Code/upfit/internal/identifier"
	"github.com/Additional-Code/upfit/internal/lifecycle"
	"github.com/Additional-Code/upfit/internal/observability"
	repository "github.com/Additional-Code/upfit/internal/repository/order"
)

// Module provides the order store to Fx.
var Module = fx.Provide(NewFromConfig)

// Params defines dependencies for constructing the Store.
type Params struct {
	fx.In

	Repository    repository.Repository
	Config        config.Config
	Logger        *zap.Logger
	Observability *observability.Manager `optional:"true"`
}

// NewFromConfig builds the store from application configuration.
func NewFromConfig(p Params) (*Store, error) {
	return New(p.Repository, Options{
		Gaps: lifecycle.Gaps{
			OEMToUpfit:      p.Config.Orders.OEMToUpfit,
			UpfitToDelivery: p.Config.Orders.UpfitToDelivery,
		},
		Identifiers: identifier.Config{
			WMI:        p.Config.Orders.VINPrefix,
			StockStart: p.Config.Orders.StockStart,
			VINStart:   p.Config.Orders.VINStart,
		},
		Logger: p.Logger,
		Meter:  p.Observability.Meter("github.com/Additional-Code/upfit/store/order"),
	})
}
