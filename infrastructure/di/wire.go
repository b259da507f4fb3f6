//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"imagio-backend/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideS3Client,
	ProvideEventBridgeClient,
	ProvideDomainConfig,
	ProvideImageRepository,
	ProvideBlobStore,
	ProvideGenerationProvider,
	ProvideVisionAnalyzer,
	ProvideImageProcessor,
	ProvideEventStore,
	ProvideEventPublisher,
	ProvideOutboxProcessor,
	ProvideGenerationLimiter,
	ProvideDistributedLock,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideInMemoryCache,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
