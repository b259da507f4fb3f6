package di

import (
	"context"
	"fmt"
	"time"

	"imagio-backend/application/commands"
	"imagio-backend/application/commands/bus"
	commands_handlers "imagio-backend/application/commands/handlers"
	"imagio-backend/application/ports"
	"imagio-backend/application/queries"
	querybus "imagio-backend/application/queries/bus"
	queries_handlers "imagio-backend/application/queries/handlers"
	domainConfig "imagio-backend/domain/config"
	"imagio-backend/infrastructure/ai"
	"imagio-backend/infrastructure/blob"
	"imagio-backend/infrastructure/config"
	"imagio-backend/infrastructure/imaging"
	"imagio-backend/infrastructure/messaging/eventbridge"
	"imagio-backend/infrastructure/persistence/dynamodb"
	"imagio-backend/pkg/auth"
	appErrors "imagio-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	if cfg.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		return nil, err
	}

	return logger, nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideS3Client creates an S3 client
func ProvideS3Client(awsCfg aws.Config) *awss3.Client {
	return awss3.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideDomainConfig loads the environment-tuned domain limits
func ProvideDomainConfig(cfg *config.Config) *domainConfig.DomainConfig {
	return domainConfig.LoadDomainConfig(cfg.Environment)
}

// ProvideImageRepository creates the DynamoDB-backed image repository
func ProvideImageRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.ImageRepository {
	return dynamodb.NewImageRepository(
		client,
		cfg.DynamoDBTable,
		logger,
	)
}

// ProvideBlobStore creates the S3-backed blob store
func ProvideBlobStore(client *awss3.Client, cfg *config.Config, logger *zap.Logger) ports.BlobStore {
	return blob.NewS3Store(client, cfg.ImageBucket, cfg.PublicBaseURL, logger)
}

// ProvideGenerationProvider creates the Stability generation client
func ProvideGenerationProvider(cfg *config.Config, logger *zap.Logger) ports.GenerationProvider {
	return ai.NewStabilityProvider(cfg.StabilityAPIKey, logger)
}

// ProvideVisionAnalyzer creates the OpenAI vision client
func ProvideVisionAnalyzer(cfg *config.Config, logger *zap.Logger) ports.VisionAnalyzer {
	return ai.NewOpenAIVision(cfg.OpenAIAPIKey, cfg.VisionModel, logger)
}

// ProvideImageProcessor creates the local pixel processor
func ProvideImageProcessor() ports.ImageProcessor {
	return imaging.NewProcessor()
}

// ProvideEventStore creates the outbox-backed event store. It shares the
// main table with the image records so command handlers can append events
// without a second round trip.
func ProvideEventStore(client *awsdynamodb.Client, cfg *config.Config) *dynamodb.DynamoDBEventStore {
	return dynamodb.NewDynamoDBEventStore(client, cfg.DynamoDBTable)
}

// ProvideEventPublisher exposes the outbox store as the event publisher used
// by command handlers. Events land in the outbox first; the processor
// forwards them to EventBridge.
func ProvideEventPublisher(eventStore *dynamodb.DynamoDBEventStore) ports.EventPublisher {
	return eventStore
}

// ProvideOutboxProcessor creates the background processor that drains the
// outbox into EventBridge.
func ProvideOutboxProcessor(
	eventStore *dynamodb.DynamoDBEventStore,
	ebClient *awseventbridge.Client,
	cfg *config.Config,
	logger *zap.Logger,
) *dynamodb.OutboxProcessor {
	forwarder := eventbridge.NewEventBridgePublisher(ebClient, cfg.EventBusName, logger)
	return dynamodb.NewOutboxProcessor(eventStore, forwarder, logger)
}

// ProvideGenerationLimiter creates the DynamoDB-backed generation rate
// limiter used when the service runs on Lambda. The limiter window is
// five minutes, so the per-minute budget is scaled up to match.
func ProvideGenerationLimiter(client *awsdynamodb.Client, cfg *config.Config) *auth.DistributedRateLimiter {
	return auth.NewDistributedGenerationRateLimiter(client, cfg.DynamoDBTable, cfg.GenerationRatePerMinute*5)
}

// ProvideDistributedLock creates a distributed lock instance
func ProvideDistributedLock(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) *dynamodb.DistributedLock {
	return dynamodb.NewDistributedLock(client, cfg.DynamoDBTable, logger)
}

// CommandHandlerAdapter adapts specific command handlers to the generic interface
type CommandHandlerAdapter struct {
	handler func(context.Context, bus.Command) (interface{}, error)
}

func (a *CommandHandlerAdapter) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	return a.handler(ctx, cmd)
}

// generationLockDuration bounds how long one edit may hold its source image.
const generationLockDuration = 2 * time.Minute

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	images ports.ImageRepository,
	blobs ports.BlobStore,
	provider ports.GenerationProvider,
	vision ports.VisionAnalyzer,
	processor ports.ImageProcessor,
	publisher ports.EventPublisher,
	distributedLock *dynamodb.DistributedLock,
	dcfg *domainConfig.DomainConfig,
	logger *zap.Logger,
) *bus.CommandBus {
	commandBus := bus.NewCommandBus()
	handlerLogger := &zapLoggerAdapter{logger}

	// Register UploadImageCommand handler
	uploadHandler := commands_handlers.NewUploadImageHandler(images, blobs, processor, provider, publisher, dcfg, handlerLogger)
	commandBus.Register(&commands.UploadImageCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) (interface{}, error) {
			uploadCmd, ok := cmd.(*commands.UploadImageCommand)
			if !ok {
				return nil, fmt.Errorf("invalid command type")
			}
			return uploadHandler.Handle(ctx, *uploadCmd)
		},
	})

	// Register GenerateVersionCommand with the orchestrator. A distributed
	// lock serializes concurrent edits against the same source image so
	// two generations cannot race on one parent version.
	orchestrator := commands_handlers.NewGenerationOrchestrator(
		images,
		blobs,
		provider,
		vision,
		processor,
		publisher,
		dcfg,
		handlerLogger,
	)
	commandBus.Register(&commands.GenerateVersionCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) (interface{}, error) {
			genCmd, ok := cmd.(*commands.GenerateVersionCommand)
			if !ok {
				return nil, fmt.Errorf("invalid command type")
			}

			lock, err := distributedLock.TryAcquireLock(
				ctx,
				"generate#"+genCmd.ImageID,
				genCmd.UserID,
				generationLockDuration,
				5*time.Second,
			)
			if err != nil {
				return nil, appErrors.NewConflictError("another edit of this image is already running")
			}
			defer func() {
				if releaseErr := lock.Release(context.Background()); releaseErr != nil {
					logger.Warn("failed to release generation lock",
						zap.String("imageId", genCmd.ImageID),
						zap.Error(releaseErr),
					)
				}
			}()

			return orchestrator.Handle(ctx, *genCmd)
		},
	})

	// Register DeleteImageCommand handler
	deleteHandler := commands_handlers.NewDeleteImageHandler(images, blobs, publisher, handlerLogger)
	commandBus.Register(&commands.DeleteImageCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) (interface{}, error) {
			deleteCmd, ok := cmd.(*commands.DeleteImageCommand)
			if !ok {
				return nil, fmt.Errorf("invalid command type")
			}
			return nil, deleteHandler.Handle(ctx, *deleteCmd)
		},
	})

	return commandBus
}

// QueryHandlerAdapter adapts specific query handlers to the generic interface
type QueryHandlerAdapter struct {
	handler func(context.Context, querybus.Query) (interface{}, error)
}

func (a *QueryHandlerAdapter) Handle(ctx context.Context, query querybus.Query) (interface{}, error) {
	return a.handler(ctx, query)
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(
	images ports.ImageRepository,
	blobs ports.BlobStore,
	vision ports.VisionAnalyzer,
	cache ports.Cache,
	logger *zap.Logger,
) *querybus.QueryBus {
	queryBus := querybus.NewQueryBus()

	// Register GetImageQuery handler
	getImageHandler := queries_handlers.NewGetImageHandler(images, logger)
	queryBus.Register(queries.GetImageQuery{}, &QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			getQuery, ok := query.(queries.GetImageQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return getImageHandler.Handle(ctx, getQuery)
		},
	})

	// Register ListImagesQuery and ListBackgroundsQuery handlers
	listHandler := queries_handlers.NewListImagesHandler(images, logger)
	queryBus.Register(queries.ListImagesQuery{}, &QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			listQuery, ok := query.(queries.ListImagesQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return listHandler.Handle(ctx, listQuery)
		},
	})
	// Backgrounds change rarely, so serve the listing from a short cache
	backgroundsCache := querybus.NewCachingMiddleware(cache, 60)
	queryBus.Register(queries.ListBackgroundsQuery{}, backgroundsCache.Wrap(&QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			bgQuery, ok := query.(queries.ListBackgroundsQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return listHandler.HandleBackgrounds(ctx, bgQuery)
		},
	}))

	// Register GetVersionsQuery and GetHistoryQuery handlers
	versionsHandler := queries_handlers.NewGetVersionsHandler(images, logger)
	queryBus.Register(queries.GetVersionsQuery{}, &QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			versionsQuery, ok := query.(queries.GetVersionsQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return versionsHandler.Handle(ctx, versionsQuery)
		},
	})
	queryBus.Register(queries.GetHistoryQuery{}, &QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			historyQuery, ok := query.(queries.GetHistoryQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return versionsHandler.HandleHistory(ctx, historyQuery)
		},
	})

	// Register ExtractTextQuery and RecognizeItemsQuery handlers
	analyzeHandler := queries_handlers.NewAnalyzeImageHandler(images, blobs, vision, logger)
	queryBus.Register(queries.ExtractTextQuery{}, &QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			textQuery, ok := query.(queries.ExtractTextQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return analyzeHandler.HandleExtractText(ctx, textQuery)
		},
	})
	queryBus.Register(queries.RecognizeItemsQuery{}, &QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			itemsQuery, ok := query.(queries.RecognizeItemsQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return analyzeHandler.HandleRecognizeItems(ctx, itemsQuery)
		},
	})

	return queryBus
}

// ProvideInMemoryCache creates a simple in-memory cache
// In production, this would be Redis or similar
func ProvideInMemoryCache() ports.Cache {
	return NewInMemoryCache()
}

// zapLoggerAdapter adapts zap.Logger to the handlers.Logger interface
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Debug(msg string, fields ...interface{}) {
	a.logger.Debug(msg, a.fieldsToZap(fields...)...)
}

func (a *zapLoggerAdapter) Info(msg string, fields ...interface{}) {
	a.logger.Info(msg, a.fieldsToZap(fields...)...)
}

func (a *zapLoggerAdapter) Warn(msg string, fields ...interface{}) {
	a.logger.Warn(msg, a.fieldsToZap(fields...)...)
}

func (a *zapLoggerAdapter) Error(msg string, fields ...interface{}) {
	a.logger.Error(msg, a.fieldsToZap(fields...)...)
}

func (a *zapLoggerAdapter) fieldsToZap(fields ...interface{}) []zap.Field {
	var zapFields []zap.Field
	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			key, _ := fields[i].(string)
			zapFields = append(zapFields, zap.Any(key, fields[i+1]))
		}
	}
	return zapFields
}
