package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"taglens/internal/api"
	"taglens/internal/config"
	dbmilvus "taglens/internal/database/milvus"
	dbminio "taglens/internal/database/minio"
	"taglens/internal/database/mysql"
	dbredis "taglens/internal/database/redis"
	"taglens/internal/database/sqlite"
	"taglens/internal/embedding"
	"taglens/internal/extraction"
	"taglens/internal/ingest"
	"taglens/internal/llm"
	"taglens/internal/retrieval"
	"taglens/internal/splitter"
	"taglens/internal/store"
	"taglens/internal/vectorstore"
	"taglens/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	appLogger := logger.New("server")
	appLogger.Info("starting taglens server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := openDatabase(cfg)
	if err := store.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	kbs := store.NewKnowledgeBaseStore(db)
	tags := store.NewTagStore(db)
	docs := store.NewDocumentStore(db)
	jobs := store.NewJobStore(db)
	results := store.NewResultStore(db)

	if _, err := kbs.EnsureDefault(ctx); err != nil {
		log.Fatalf("Failed to ensure default knowledge base: %v", err)
	}

	objects, err := dbminio.Open(ctx, &cfg.MinIO)
	if err != nil {
		log.Fatalf("Failed to connect to MinIO: %v", err)
	}

	vectors := openVectorStore(ctx, cfg, appLogger)
	cache := openVectorCache(ctx, cfg, appLogger)

	embedder, err := embedding.New(&cfg.Embedding)
	if err != nil {
		log.Fatalf("Failed to create embedding backend: %v", err)
	}
	model, err := llm.New(&cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to create llm backend: %v", err)
	}

	split := splitter.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	indexer := ingest.NewIndexer(embedder, vectors, cache)
	scheduler := ingest.NewScheduler(docs, jobs, objects, split, indexer, vectors, ingest.Options{
		MaxAttempts:  cfg.Ingest.MaxAttempts,
		ParsedPrefix: cfg.Ingest.ParsedArtifactPath,
		DefaultMode:  cfg.Ingest.DefaultMode,
	})

	var worker *ingest.Worker
	if cfg.Ingest.Workers > 0 {
		worker = ingest.NewWorker(scheduler, jobs, cfg.Ingest.Workers,
			parseDuration(cfg.Ingest.PollInterval, time.Second),
			parseDuration(cfg.Ingest.LockTimeout, 10*time.Minute))
		worker.Start(ctx)
	}

	retriever := retrieval.NewEngine(embedder, vectors)
	extractor := extraction.NewEngine(tags, docs, results, retriever, model, extraction.Options{
		TopK:              cfg.Extraction.TopK,
		CompletionTimeout: parseDuration(cfg.Extraction.CompletionTimeout, 2*time.Minute),
		ParseRetries:      cfg.Extraction.ParseRetries,
	})

	handlers := api.NewHandlers(kbs, tags, docs, jobs, results, objects, scheduler, extractor, retriever)
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: api.SetupRouter(handlers),
	}

	go func() {
		appLogger.Infof("http server listening on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorf("http shutdown failed: %v", err)
	}
	if worker != nil {
		worker.Stop()
	}
	appLogger.Info("server stopped")
}

func openDatabase(cfg *config.AppConfig) *gorm.DB {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysql.Open(&cfg.Database.MySQL)
		if err != nil {
			log.Fatalf("Failed to connect to MySQL: %v", err)
		}
		return db
	default:
		db, err := sqlite.Open(&cfg.Database.SQLite)
		if err != nil {
			log.Fatalf("Failed to open SQLite database: %v", err)
		}
		return db
	}
}

// openVectorStore connects to Milvus when configured and falls back to
// the in-process store otherwise.
func openVectorStore(ctx context.Context, cfg *config.AppConfig, appLogger *logger.Logger) vectorstore.VectorStore {
	if cfg.Milvus.Address == "" {
		appLogger.Warn("no milvus address configured, using in-memory vector store")
		return vectorstore.NewMemoryStore()
	}
	client, err := dbmilvus.Open(ctx, &cfg.Milvus)
	if err != nil {
		log.Fatalf("Failed to connect to Milvus: %v", err)
	}
	if err := client.EnsureCollection(ctx); err != nil {
		log.Fatalf("Failed to prepare Milvus collection: %v", err)
	}
	return vectorstore.NewMilvusStore(client)
}

// openVectorCache connects to Redis when configured and falls back to
// the in-process cache otherwise.
func openVectorCache(ctx context.Context, cfg *config.AppConfig, appLogger *logger.Logger) ingest.VectorCache {
	if cfg.Redis.Address == "" {
		appLogger.Warn("no redis address configured, using in-memory embedding cache")
		return ingest.NewMemoryCache()
	}
	client, err := dbredis.Open(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	if err := dbredis.HealthCheck(ctx, client); err != nil {
		log.Fatalf("Redis health check failed: %v", err)
	}
	return ingest.NewRedisCache(client, 7*24*time.Hour)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
