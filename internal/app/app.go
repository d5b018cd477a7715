package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/upfit/internal/cache"
	"github.com/Additional-Code/upfit/internal/config"
	"github.com/Additional-Code/upfit/internal/database"
	"github.com/Additional-Code/upfit/internal/logger"
	"github.com/Additional-Code/upfit/internal/messaging"
	"github.com/Additional-Code/upfit/internal/observability"
	repositoryorder "github.com/Additional-Code/upfit/internal/repository/order"
	grpcserver "github.com/Additional-Code/upfit/internal/server/grpc"
	httpserver "github.com/Additional-Code/upfit/internal/server/http"
	serviceorder "github.com/Additional-Code/upfit/internal/service/order"
	storeorder "github.com/Additional-Code/upfit/internal/store/order"
	transporthttp "github.com/Additional-Code/upfit/internal/transport/http"
	"github.com/Additional-Code/upfit/internal/worker"
	workerorder "github.com/Additional-Code/upfit/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	repositoryorder.Module,
	storeorder.Module,
	serviceorder.Module,
)

// Servers exposes the HTTP API and the gRPC health endpoint.
var Servers = fx.Options(
	httpserver.Module,
	transporthttp.Module,
	grpcserver.Module,
)

// Background runs event consumers and scheduled jobs.
var Background = fx.Options(
	worker.Module,
	worker.SchedulerModule,
	workerorder.Module,
)

// HTTP wires the API servers on top of the core modules.
var HTTP = fx.Options(
	Core,
	Servers,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	Background,
)

// Standalone runs the API and the background processing in one process,
// which the in-memory message bus requires.
var Standalone = fx.Options(
	Core,
	Servers,
	Background,
)

// Module is the default application wiring (API only).
var Module = HTTP
