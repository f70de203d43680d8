package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"taglens/internal/config"
)

// Field names of the chunk collection. One logical collection serves the
// whole corpus; rows are keyed by chunk_id and filterable by document_id.
const (
	FieldChunkID    = "chunk_id"
	FieldVector     = "vector"
	FieldText       = "text"
	FieldDocumentID = "document_id"
	FieldPageNumber = "page_number"
	FieldChunkIndex = "chunk_index"
)

// MilvusClient wraps the Milvus SDK client together with its configuration.
type MilvusClient struct {
	Client client.Client
	Config *config.MilvusConfig
}

// Open connects to Milvus at the configured address.
func Open(ctx context.Context, cfg *config.MilvusConfig) (*MilvusClient, error) {
	c, err := client.NewClient(ctx, client.Config{Address: cfg.Address})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Milvus: %w", err)
	}
	return &MilvusClient{Client: c, Config: cfg}, nil
}

// EnsureCollection creates the chunk collection, its vector index, and
// loads it, if it does not exist yet. Safe to call on every startup.
func (c *MilvusClient) EnsureCollection(ctx context.Context) error {
	name := c.Config.Collection

	exists, err := c.Client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection '%s': %w", name, err)
	}

	if !exists {
		schema := entity.NewSchema().
			WithName(name).
			WithDescription("document chunks with embeddings").
			WithField(entity.NewField().WithName(FieldChunkID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(256).WithIsPrimaryKey(true)).
			WithField(entity.NewField().WithName(FieldVector).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(c.Config.Dimension))).
			WithField(entity.NewField().WithName(FieldText).WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535)).
			WithField(entity.NewField().WithName(FieldDocumentID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
			WithField(entity.NewField().WithName(FieldPageNumber).WithDataType(entity.FieldTypeInt32)).
			WithField(entity.NewField().WithName(FieldChunkIndex).WithDataType(entity.FieldTypeInt32))

		if err := c.Client.CreateCollection(ctx, schema, 1); err != nil {
			return fmt.Errorf("failed to create collection '%s': %w", name, err)
		}

		idx, err := entity.NewIndexIvfFlat(entity.COSINE, 128)
		if err != nil {
			return fmt.Errorf("failed to build index definition: %w", err)
		}
		if err := c.Client.CreateIndex(ctx, name, FieldVector, idx, false); err != nil {
			return fmt.Errorf("failed to create vector index on '%s': %w", name, err)
		}
	}

	if err := c.Client.LoadCollection(ctx, name, false); err != nil {
		return fmt.Errorf("failed to load collection '%s': %w", name, err)
	}
	return nil
}

// HealthCheck verifies the Milvus connection.
func (c *MilvusClient) HealthCheck(ctx context.Context) error {
	if c.Client == nil {
		return fmt.Errorf("milvus client is not initialized")
	}
	if _, err := c.Client.ListCollections(ctx); err != nil {
		return fmt.Errorf("milvus health check failed: %w", err)
	}
	return nil
}

// Close shuts down the Milvus connection.
func (c *MilvusClient) Close() {
	if c.Client != nil {
		c.Client.Close()
	}
}
