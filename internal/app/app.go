package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"corpus/internal/config"
	"corpus/internal/redisx"
	"corpus/internal/services"
	"corpus/internal/store"
	"corpus/internal/store/primary"
	"corpus/internal/store/vector"
)

// App wires the stores, clients and services behind the CLI commands. One
// App is built per process in the root command and handed down through the
// command context.
type App struct {
	Config *config.Config

	JobClient   store.JobClient
	Redis       redisx.Client
	VectorStore store.VectorStore

	Datasets        store.DatasetStore
	Documents       store.DocumentStore
	UploadFiles     store.UploadFileStore
	DatasourceFiles store.DatasourceFileStore
	Bindings        store.ExternalKnowledgeBindingStore
	Collections     store.CollectionBindingStore

	FeatureService services.FeatureService
	ModelManager   services.ModelManager
	Embedder       services.Embedder
	Runner         services.IndexingRunner

	IndexingProxy   *services.DocumentIndexingProxy
	DocumentService *services.DocumentService
	DatasetService  *services.DatasetService

	// Credentials and Extractors back the notion sync task. They stay nil
	// unless a deployment provides implementations; the worker command skips
	// registering the sync handler in that case.
	Credentials services.DatasourceCredentialProvider
	Extractors  services.ExtractorFactory

	primaryStore *primary.StoreImpl
	vectorStore  *vector.StoreImpl
	redisClient  *redis.Client
}

func NewApp(cfg *config.Config) (*App, error) {
	ctx := context.Background()
	app := &App{Config: cfg}

	if err := app.initPrimaryStore(ctx); err != nil {
		return nil, err
	}
	if err := app.initVectorStore(ctx); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initRedis(ctx); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	app.initJobClient()
	app.initServices()

	log.Debug("application initialization complete")
	return app, nil
}

// Ping checks every backing connection.
func (a *App) Ping(ctx context.Context) error {
	if err := a.primaryStore.Ping(ctx); err != nil {
		return fmt.Errorf("primary store: %w", err)
	}
	if err := a.VectorStore.Ping(ctx); err != nil {
		return fmt.Errorf("vector store: %w", err)
	}
	if err := a.redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// Close releases every backing connection. Safe to call on a partially
// initialized App.
func (a *App) Close() {
	if a.JobClient != nil {
		if err := a.JobClient.Close(); err != nil {
			log.WithError(err).Warn("closing job client")
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			log.WithError(err).Warn("closing redis client")
		}
	}
	if a.vectorStore != nil {
		if err := a.vectorStore.Close(); err != nil {
			log.WithError(err).Warn("closing vector store")
		}
	}
	if a.primaryStore != nil {
		a.primaryStore.Close()
	}
}

func (a *App) initPrimaryStore(ctx context.Context) error {
	ps, err := primary.NewPrimaryStore(ctx, a.Config.Database.Primary.DSN)
	if err != nil {
		return fmt.Errorf("init primary store: %w", err)
	}
	a.primaryStore = ps
	a.Datasets = ps
	a.Documents = ps
	a.UploadFiles = ps
	a.DatasourceFiles = ps
	a.Bindings = ps
	a.Collections = ps
	return nil
}

func (a *App) initVectorStore(ctx context.Context) error {
	dsn := a.Config.Database.Vector.DSN
	if dsn == "" {
		dsn = a.Config.Database.Primary.DSN
	}
	vs, err := vector.NewStore(ctx, dsn)
	if err != nil {
		return fmt.Errorf("init vector store: %w", err)
	}
	a.vectorStore = vs
	a.VectorStore = vs
	return nil
}

func (a *App) initRedis(ctx context.Context) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return fmt.Errorf("connect redis: %w", err)
	}
	a.redisClient = rdb
	a.Redis = redisx.New(rdb)
	return nil
}

func (a *App) initJobClient() {
	a.JobClient = store.NewAsynqJobClient(a.Config.Redis.Address, a.Config.Redis.Password, a.Config.Redis.DB)
}

func (a *App) initServices() {
	cfg := a.Config

	a.FeatureService = services.NewSelfHostedFeatureService()
	a.ModelManager = services.NewOpenAIModelManager(cfg.Embedding.OpenAIAPIKey, cfg.Embedding.OpenAIBaseURL)
	a.Embedder = services.NewOpenAIEmbedder(cfg.Embedding.OpenAIAPIKey, cfg.Embedding.OpenAIBaseURL, cfg.Embedding.Model)
	a.Runner = services.NewVectorIndexingRunner(a.Documents, a.VectorStore, a.Embedder, a.Redis)

	taskTTL := time.Duration(cfg.Indexing.TaskTTLSeconds) * time.Second
	flagTTL := time.Duration(cfg.Indexing.RetryFlagTTLSeconds) * time.Second

	a.IndexingProxy = services.NewDocumentIndexingProxy(a.FeatureService, a.JobClient, a.Redis, taskTTL)
	a.DocumentService = services.NewDocumentService(a.Datasets, a.Documents, a.UploadFiles, a.JobClient, a.Redis, flagTTL)
	a.DatasetService = services.NewDatasetService(a.Datasets, a.Bindings, a.Collections, a.ModelManager, a.JobClient)
}

func (a *App) cleanupPartialInit() {
	a.Close()
}
