package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"taglens/internal/config"
	dbmilvus "taglens/internal/database/milvus"
	dbminio "taglens/internal/database/minio"
	"taglens/internal/database/mysql"
	dbredis "taglens/internal/database/redis"
	"taglens/internal/database/sqlite"
	"taglens/internal/embedding"
	"taglens/internal/ingest"
	"taglens/internal/splitter"
	"taglens/internal/store"
	"taglens/internal/vectorstore"
	"taglens/pkg/logger"
)

// Standalone ingestion worker. Runs the same pipeline as the in-server
// workers; deploy it separately to scale ingestion independently of the
// API.
func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	appLogger := logger.New("ingest_worker")
	appLogger.Info("starting taglens ingest worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *gorm.DB
	switch cfg.Database.Driver {
	case "mysql":
		if db, err = mysql.Open(&cfg.Database.MySQL); err != nil {
			log.Fatalf("Failed to connect to MySQL: %v", err)
		}
	default:
		if db, err = sqlite.Open(&cfg.Database.SQLite); err != nil {
			log.Fatalf("Failed to open SQLite database: %v", err)
		}
	}
	if err := store.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	docs := store.NewDocumentStore(db)
	jobs := store.NewJobStore(db)

	objects, err := dbminio.Open(ctx, &cfg.MinIO)
	if err != nil {
		log.Fatalf("Failed to connect to MinIO: %v", err)
	}

	var vectors vectorstore.VectorStore
	if cfg.Milvus.Address == "" {
		appLogger.Warn("no milvus address configured, using in-memory vector store")
		vectors = vectorstore.NewMemoryStore()
	} else {
		client, err := dbmilvus.Open(ctx, &cfg.Milvus)
		if err != nil {
			log.Fatalf("Failed to connect to Milvus: %v", err)
		}
		if err := client.EnsureCollection(ctx); err != nil {
			log.Fatalf("Failed to prepare Milvus collection: %v", err)
		}
		vectors = vectorstore.NewMilvusStore(client)
	}

	var cache ingest.VectorCache
	if cfg.Redis.Address == "" {
		appLogger.Warn("no redis address configured, using in-memory embedding cache")
		cache = ingest.NewMemoryCache()
	} else {
		client, err := dbredis.Open(&cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		cache = ingest.NewRedisCache(client, 7*24*time.Hour)
	}

	embedder, err := embedding.New(&cfg.Embedding)
	if err != nil {
		log.Fatalf("Failed to create embedding backend: %v", err)
	}

	split := splitter.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	indexer := ingest.NewIndexer(embedder, vectors, cache)
	scheduler := ingest.NewScheduler(docs, jobs, objects, split, indexer, vectors, ingest.Options{
		MaxAttempts:  cfg.Ingest.MaxAttempts,
		ParsedPrefix: cfg.Ingest.ParsedArtifactPath,
		DefaultMode:  cfg.Ingest.DefaultMode,
	})

	concurrency := cfg.Ingest.Workers
	if concurrency <= 0 {
		concurrency = 1
	}
	worker := ingest.NewWorker(scheduler, jobs, concurrency,
		parseDuration(cfg.Ingest.PollInterval, time.Second),
		parseDuration(cfg.Ingest.LockTimeout, 10*time.Minute))
	worker.Start(ctx)

	<-ctx.Done()
	appLogger.Info("shutting down")
	worker.Stop()
	appLogger.Info("ingest worker stopped")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
