package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AppInfo holds basic information about the application.
type AppInfo struct {
	Name        string `yaml:"name"`        // application name
	Version     string `yaml:"version"`     // application version
	Environment string `yaml:"environment"` // e.g. "development", "production"
}

// LoggerConfig configures the logger.
type LoggerConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Address string `yaml:"address"` // listen address, e.g. ":8888"
}

// MySQLConfig holds the MySQL connection settings.
type MySQLConfig struct {
	Address         string `yaml:"address"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Database        string `yaml:"database"`
	MaxOpenConns    int    `yaml:"maxOpenConns"`
	MaxIdleConns    int    `yaml:"maxIdleConns"`
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // seconds
}

// SQLiteConfig holds the SQLite settings used for single-node deployments.
type SQLiteConfig struct {
	Path string `yaml:"path"` // database file path
}

// DatabaseConfig selects and configures the relational store.
type DatabaseConfig struct {
	Driver string       `yaml:"driver"` // "mysql" or "sqlite"
	MySQL  MySQLConfig  `yaml:"mysql"`
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// RedisConfig holds the Redis connection settings for the embedding cache.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MilvusConfig holds the Milvus connection and collection settings.
type MilvusConfig struct {
	Address    string `yaml:"address"`
	Collection string `yaml:"collection"` // one logical collection for the whole corpus
	Dimension  int    `yaml:"dimension"`  // embedding vector dimension
}

// MinIOConfig holds the MinIO object storage settings for raw uploads
// and parsed document artifacts.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Secure    bool   `yaml:"secure"`
}

// BackendConfig configures one model provider endpoint.
type BackendConfig struct {
	Provider string `yaml:"provider"` // "ollama" or "openai"
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"baseURL"`
	APIKey   string `yaml:"apiKey"`
}

// IngestConfig configures the ingestion scheduler and its workers.
type IngestConfig struct {
	Workers            int    `yaml:"workers"`            // background worker count; 0 means immediate-only
	PollInterval       string `yaml:"pollInterval"`       // e.g. "1s"
	MaxAttempts        int    `yaml:"maxAttempts"`        // total execution attempts per job
	LockTimeout        string `yaml:"lockTimeout"`        // requeue processing jobs stuck longer than this
	DefaultMode        string `yaml:"defaultMode"`        // "queue" or "immediate"
	ChunkSize          int    `yaml:"chunkSize"`          // splitter target chunk size
	ChunkOverlap       int    `yaml:"chunkOverlap"`       // splitter overlap
	ParsedArtifactPath string `yaml:"parsedArtifactPath"` // object-key prefix for parsed documents
}

// ExtractionConfig configures the extraction engine.
type ExtractionConfig struct {
	TopK              int    `yaml:"topK"`              // retrieved chunks per tag
	CompletionTimeout string `yaml:"completionTimeout"` // per completion call, e.g. "60s"
	ParseRetries      int    `yaml:"parseRetries"`      // completion re-calls on unparseable output
}

// AppConfig is the root of the YAML configuration file.
type AppConfig struct {
	App        AppInfo          `yaml:"app"`
	Logger     LoggerConfig     `yaml:"logger"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Milvus     MilvusConfig     `yaml:"milvus"`
	MinIO      MinIOConfig      `yaml:"minio"`
	LLM        BackendConfig    `yaml:"llm"`
	Embedding  BackendConfig    `yaml:"embedding"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Extraction ExtractionConfig `yaml:"extraction"`
}

// LoadConfig reads and parses the YAML configuration file at path.
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(yamlFile, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8888"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = "./storage/taglens.db"
	}
	if c.Milvus.Collection == "" {
		c.Milvus.Collection = "document_chunks"
	}
	if c.Ingest.Workers < 0 {
		c.Ingest.Workers = 0
	}
	if c.Ingest.PollInterval == "" {
		c.Ingest.PollInterval = "1s"
	}
	if c.Ingest.MaxAttempts <= 0 {
		c.Ingest.MaxAttempts = 3
	}
	if c.Ingest.LockTimeout == "" {
		c.Ingest.LockTimeout = "10m"
	}
	if c.Ingest.DefaultMode == "" {
		c.Ingest.DefaultMode = "queue"
	}
	if c.Ingest.ChunkSize <= 0 {
		c.Ingest.ChunkSize = 1000
	}
	if c.Ingest.ChunkOverlap < 0 {
		c.Ingest.ChunkOverlap = 0
	}
	if c.Ingest.ChunkOverlap == 0 && c.Ingest.ChunkSize == 1000 {
		c.Ingest.ChunkOverlap = 200
	}
	if c.Ingest.ParsedArtifactPath == "" {
		c.Ingest.ParsedArtifactPath = "parsed"
	}
	if c.Extraction.TopK <= 0 {
		c.Extraction.TopK = 5
	}
	if c.Extraction.CompletionTimeout == "" {
		c.Extraction.CompletionTimeout = "120s"
	}
	if c.Extraction.ParseRetries <= 0 {
		c.Extraction.ParseRetries = 3
	}
}
