//go:build wireinject
// +build wireinject

package di

import (
	"FinForecast/pkg/config"
	"FinForecast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Metrics
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideClickHouseClient,
		ProvideCache,

		// Repositories
		ProvideReportStore,
		ProvideCandleSource,
		ProvideReportSinks,

		// Use cases
		ProvideHub,
		ProvidePipeline,

		// HTTP
		ProvideRateLimiter,
		ProvideRunsHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
