//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/saltymaverick/Chloe-alpha-sub002/pkg/config"
	"github.com/saltymaverick/Chloe-alpha-sub002/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideCache,

		// Repositories
		ProvideHistory,
		ProvideSnapshotStore,
		ProvideDecisionPublisher,

		// Pipeline and use cases
		ProvideRiskGate,
		ProvidePipeline,
		ProvideTickProcessor,
		ProvideKafkaConsumer,
		ProvideSignalTicksHandler,

		// HTTP
		ProvideRateLimiter,
		ProvideHealthChecks,
		ProvideHTTPHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
