//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"OptArb/pkg/config"
	"OptArb/pkg/server"
)

var infraSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideResultStorage,
	ProvideRiskStore,
)

// InitializePipelineApp wires one instrument pipeline with its status API.
func InitializePipelineApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		ProvideBrokerClient,
		ProvideResultPublisher,
		ProvideHistoryLoader,
		ProvidePricer,
		ProvideResultHub,
		ProvideResultsCache,
		ProvideResultProcessor,
		ProvidePipeline,
		ProvidePipelineApp,
	)
	return nil, nil, nil
}

// InitializeRiskApp wires the risk aggregation engine.
func InitializeRiskApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideRiskStore,
		ProvideBrokerClient,
		ProvideRiskEngine,
		ProvideRiskApp,
	)
	return nil, nil, nil
}

// InitializeSinkApp wires the results consumer that persists into ClickHouse.
func InitializeSinkApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideResultStorage,
		ProvideKafkaConsumer,
		ProvideKafkaResultsHandler,
		ProvideResultsCache,
		ProvideSinkApp,
	)
	return nil, nil, nil
}
