package di

import (
	"imagio-backend/application/commands/bus"
	"imagio-backend/application/ports"
	querybus "imagio-backend/application/queries/bus"
	"imagio-backend/infrastructure/config"
	"imagio-backend/infrastructure/persistence/dynamodb"
	"imagio-backend/pkg/auth"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config          *config.Config
	Logger          *zap.Logger
	ImageRepo       ports.ImageRepository
	BlobStore       ports.BlobStore
	Provider        ports.GenerationProvider
	Vision          ports.VisionAnalyzer
	Processor       ports.ImageProcessor
	EventPublisher  ports.EventPublisher
	OutboxProcessor *dynamodb.OutboxProcessor
	CommandBus      *bus.CommandBus
	QueryBus        *querybus.QueryBus
	Cache           ports.Cache

	// GenerationLimiter is the DynamoDB-backed limiter for Lambda
	// deployments; the in-process limiter is used otherwise
	GenerationLimiter *auth.DistributedRateLimiter
}
