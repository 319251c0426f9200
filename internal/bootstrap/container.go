package bootstrap

import (
	"context"
	"log"

	"ai-studykit-be/internal/cache"
	"ai-studykit-be/internal/chunkstore"
	"ai-studykit-be/internal/config"
	"ai-studykit-be/internal/controller"
	"ai-studykit-be/internal/dispatch"
	"ai-studykit-be/internal/pkg/logger"
	"ai-studykit-be/internal/repository/unitofwork"
	"ai-studykit-be/internal/service"
	"ai-studykit-be/pkg/extract"
	"ai-studykit-be/pkg/generation"
	pktNats "ai-studykit-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const cleanupTopic = "upload.cleanup"

// Container wires the API process: the upload orchestration facade behind
// the controller plus the in-process janitor.
type Container struct {
	UploadController controller.IUploadController

	// Background services (exposed for main.go to run)
	JanitorService service.IJanitorService

	// Infrastructure handles for shutdown
	Dispatcher     *dispatch.NatsDispatcher
	EventPublisher *pktNats.Publisher

	Config *config.Config
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// Event bus for in-process cleanup work
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	stateStore := newStateStore(cfg)

	chunks := chunkstore.New(
		cfg.Upload.StagingDir,
		cfg.Upload.BlobDir,
		cfg.Upload.MaxChunkSize,
		cfg.Upload.MaxChunks,
		sysLogger,
	)

	dispatcher, err := dispatch.NewNatsDispatcher(cfg.App.NatsURL, sysLogger)
	if err != nil {
		log.Fatalf("[FATAL] Failed to connect to task broker: %v", err)
	}

	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS event publisher: %v", err)
	}

	tracker := service.NewProgressTracker(cfg.Upload.StalledThreshold)
	finalizer := service.NewResultFinalizer(
		stateStore,
		service.NewGormDependentRecordSource(uowFactory),
		cfg.Upload.SettleDelay,
		sysLogger,
	)

	publisherService := service.NewPublisherService(pubSub, cleanupTopic)
	evictionManager := service.NewEvictionManager(uowFactory, stateStore, publisherService, natsPub, sysLogger)

	uploadService := service.NewUploadService(
		uowFactory,
		chunks,
		stateStore,
		dispatcher,
		tracker,
		finalizer,
		evictionManager,
		cfg.Upload,
		cfg.Worker.Language,
		sysLogger,
	)

	janitorService := service.NewJanitorService(
		pubSub,
		cleanupTopic,
		chunks,
		stateStore,
		cfg.Upload.ChunkTTL,
		sysLogger,
	)

	return &Container{
		UploadController: controller.NewUploadController(uploadService),
		JanitorService:   janitorService,
		Dispatcher:       dispatcher,
		EventPublisher:   natsPub,
		Config:           cfg,
	}
}

// WorkerContainer wires the worker process. It shares the database and the
// cache with the API but owns the generation pipeline.
type WorkerContainer struct {
	WorkerService service.IWorkerService
	Dispatcher    *dispatch.NatsDispatcher

	EventPublisher *pktNats.Publisher
}

func NewWorkerContainer(db *gorm.DB, cfg *config.Config) *WorkerContainer {
	uowFactory := unitofwork.NewRepositoryFactory(db)
	workerLogger := logger.NewIsolatedLogger("logs/worker.log")

	stateStore := newStateStore(cfg)

	dispatcher, err := dispatch.NewNatsDispatcher(cfg.App.NatsURL, workerLogger)
	if err != nil {
		log.Fatalf("[FATAL] Failed to connect to task broker: %v", err)
	}

	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS event publisher: %v", err)
	}

	generator := generation.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
	log.Printf("[INFO] Using generation model: %s", cfg.Ai.OllamaModel)

	workerService := service.NewWorkerService(
		uowFactory,
		stateStore,
		extract.NewPlainTextExtractor(),
		generator,
		natsPub,
		cfg.Worker.HeartbeatInterval,
		cfg.Worker.LockTTL,
		workerLogger,
	)

	return &WorkerContainer{
		WorkerService:  workerService,
		Dispatcher:     dispatcher,
		EventPublisher: natsPub,
	}
}

// newStateStore picks redis when a URL is configured and falls back to the
// in-memory store for single-process dev setups.
func newStateStore(cfg *config.Config) cache.StateStore {
	if cfg.App.RedisURL == "" {
		log.Printf("[WARN] No REDIS_URL configured, using in-memory session state")
		return cache.NewMemoryStateStore(cfg.Upload.CacheTTL)
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}
	return cache.NewRedisStateStore(rdb, cfg.Upload.CacheTTL)
}
