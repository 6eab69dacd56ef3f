package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/bloom/internal/archive"
	"github.com/Additional-Code/bloom/internal/cache"
	"github.com/Additional-Code/bloom/internal/config"
	"github.com/Additional-Code/bloom/internal/database"
	"github.com/Additional-Code/bloom/internal/logger"
	"github.com/Additional-Code/bloom/internal/messaging"
	"github.com/Additional-Code/bloom/internal/observability"
	repositoryorder "github.com/Additional-Code/bloom/internal/repository/order"
	grpcserver "github.com/Additional-Code/bloom/internal/server/grpc"
	httpserver "github.com/Additional-Code/bloom/internal/server/http"
	"github.com/Additional-Code/bloom/internal/service/lifecycle"
	serviceorder "github.com/Additional-Code/bloom/internal/service/order"
	"github.com/Additional-Code/bloom/internal/service/query"
	transporthttp "github.com/Additional-Code/bloom/internal/transport/http"
	"github.com/Additional-Code/bloom/internal/worker"
	workerorder "github.com/Additional-Code/bloom/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	logger.Module,
	logger.WithFxEvents,
	observability.Module,
	database.Module,
	repositoryorder.Module,
	cache.Module,
	messaging.Module,
	archive.Module,
	lifecycle.Module,
	query.Module,
	serviceorder.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
)

// GRPC adds the gRPC server, which carries the health service.
var GRPC = fx.Options(
	grpcserver.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
