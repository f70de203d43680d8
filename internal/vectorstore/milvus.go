package vectorstore

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	dbmilvus "taglens/internal/database/milvus"
	"taglens/internal/splitter"
	"taglens/pkg/logger"
)

// MilvusStore persists chunk embeddings in a Milvus collection, keyed by
// chunk ID so re-ingestion overwrites stale rows.
type MilvusStore struct {
	db  *dbmilvus.MilvusClient
	log *logger.Logger
}

// NewMilvusStore creates a store backed by the given Milvus client.
func NewMilvusStore(db *dbmilvus.MilvusClient) *MilvusStore {
	return &MilvusStore{db: db, log: logger.New("vectorstore")}
}

// Upsert writes chunks and their vectors in one call.
func (s *MilvusStore) Upsert(ctx context.Context, chunks []splitter.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	docIDs := make([]string, len(chunks))
	pageNums := make([]int32, len(chunks))
	chunkIdxs := make([]int32, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		texts[i] = c.Text
		docIDs[i] = c.DocumentID
		pageNums[i] = int32(c.PageNumber)
		chunkIdxs[i] = int32(c.ChunkIndex)
	}

	_, err := s.db.Client.Upsert(ctx, s.db.Config.Collection, "",
		entity.NewColumnVarChar(dbmilvus.FieldChunkID, ids),
		entity.NewColumnFloatVector(dbmilvus.FieldVector, s.db.Config.Dimension, vectors),
		entity.NewColumnVarChar(dbmilvus.FieldText, texts),
		entity.NewColumnVarChar(dbmilvus.FieldDocumentID, docIDs),
		entity.NewColumnInt32(dbmilvus.FieldPageNumber, pageNums),
		entity.NewColumnInt32(dbmilvus.FieldChunkIndex, chunkIdxs),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert %d chunks: %w", len(chunks), err)
	}
	return nil
}

// Query searches the topK most similar chunks within one document.
func (s *MilvusStore) Query(ctx context.Context, documentID string, vector []float32, topK int) ([]ScoredChunk, error) {
	expr := fmt.Sprintf(`%s == "%s"`, dbmilvus.FieldDocumentID, documentID)
	outputFields := []string{
		dbmilvus.FieldChunkID, dbmilvus.FieldText,
		dbmilvus.FieldDocumentID, dbmilvus.FieldPageNumber, dbmilvus.FieldChunkIndex,
	}

	searchParams, err := entity.NewIndexIvfFlatSearchParam(10)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	searchResults, err := s.db.Client.Search(
		ctx, s.db.Config.Collection, []string{}, expr, outputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		dbmilvus.FieldVector, entity.COSINE, topK, searchParams,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search document '%s': %w", documentID, err)
	}

	var results []ScoredChunk
	for _, res := range searchResults {
		findColumn := func(name string) entity.Column {
			for _, field := range res.Fields {
				if field.Name() == name {
					return field
				}
			}
			return nil
		}

		idCol, ok := findColumn(dbmilvus.FieldChunkID).(*entity.ColumnVarChar)
		if !ok {
			s.log.Warn("search result is missing chunk_id column, skipping")
			continue
		}
		ids := idCol.Data()

		var texts, docIDs []string
		var pageNums, chunkIdxs []int32
		if col, ok := findColumn(dbmilvus.FieldText).(*entity.ColumnVarChar); ok {
			texts = col.Data()
		}
		if col, ok := findColumn(dbmilvus.FieldDocumentID).(*entity.ColumnVarChar); ok {
			docIDs = col.Data()
		}
		if col, ok := findColumn(dbmilvus.FieldPageNumber).(*entity.ColumnInt32); ok {
			pageNums = col.Data()
		}
		if col, ok := findColumn(dbmilvus.FieldChunkIndex).(*entity.ColumnInt32); ok {
			chunkIdxs = col.Data()
		}

		for i := 0; i < res.ResultCount; i++ {
			sc := ScoredChunk{Score: res.Scores[i]}
			sc.ID = ids[i]
			if texts != nil {
				sc.Text = texts[i]
			}
			if docIDs != nil {
				sc.DocumentID = docIDs[i]
			}
			if pageNums != nil {
				sc.PageNumber = int(pageNums[i])
			}
			if chunkIdxs != nil {
				sc.ChunkIndex = int(chunkIdxs[i])
			}
			results = append(results, sc)
		}
	}
	return results, nil
}

// DeleteByDocument removes every chunk of documentID.
func (s *MilvusStore) DeleteByDocument(ctx context.Context, documentID string) error {
	expr := fmt.Sprintf(`%s == "%s"`, dbmilvus.FieldDocumentID, documentID)
	if err := s.db.Client.Delete(ctx, s.db.Config.Collection, "", expr); err != nil {
		return fmt.Errorf("failed to delete chunks of document '%s': %w", documentID, err)
	}
	return nil
}
