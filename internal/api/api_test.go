package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taglens/internal/database/sqlite"
	"taglens/internal/extraction"
	"taglens/internal/ingest"
	"taglens/internal/models"
	"taglens/internal/retrieval"
	"taglens/internal/splitter"
	"taglens/internal/store"
	"taglens/internal/vectorstore"
)

type memObjects struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemObjects() *memObjects { return &memObjects{data: make(map[string][]byte)} }

func (m *memObjects) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

func (m *memObjects) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("object '%s' not found", key)
	}
	return data, nil
}

func (m *memObjects) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type constEmbedder struct{}

func (constEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (e constEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (constEmbedder) Name() string { return "const-stub" }

type cannedLLM struct{ response string }

func (l cannedLLM) Generate(_ context.Context, _ string) (string, error) { return l.response, nil }
func (cannedLLM) Name() string                                           { return "canned" }

type apiFixture struct {
	router  *gin.Engine
	kbs     *store.KnowledgeBaseStore
	objects *memObjects
	vectors *vectorstore.MemoryStore
	llm     *cannedLLM
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.OpenMemory()
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate(db))

	kbs := store.NewKnowledgeBaseStore(db)
	tags := store.NewTagStore(db)
	docs := store.NewDocumentStore(db)
	jobs := store.NewJobStore(db)
	results := store.NewResultStore(db)

	objects := newMemObjects()
	vectors := vectorstore.NewMemoryStore()
	embedder := constEmbedder{}
	model := &cannedLLM{response: "{}"}

	indexer := ingest.NewIndexer(embedder, vectors, ingest.NewMemoryCache())
	scheduler := ingest.NewScheduler(docs, jobs, objects,
		splitter.New(200, 20), indexer, vectors,
		ingest.Options{MaxAttempts: 3, DefaultMode: models.ModeImmediate})
	retriever := retrieval.NewEngine(embedder, vectors)
	extractor := extraction.NewEngine(tags, docs, results, retriever, model,
		extraction.Options{TopK: 5, CompletionTimeout: time.Second, ParseRetries: 2, BatchConcurrency: 2})

	h := NewHandlers(kbs, tags, docs, jobs, results, objects, scheduler, extractor, retriever)
	return &apiFixture{
		router:  SetupRouter(h),
		kbs:     kbs,
		objects: objects,
		vectors: vectors,
		llm:     model,
	}
}

func (f *apiFixture) do(t *testing.T, method, url string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) upload(t *testing.T, kbID, filename, content string) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/knowledge-bases/"+kbID+"/documents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestKnowledgeBaseCRUD(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/knowledge-bases", gin.H{"name": "contracts"})
	require.Equal(t, http.StatusCreated, rec.Code)
	kb := decode(t, rec)
	id := kb["id"].(string)

	rec = f.do(t, http.MethodPost, "/api/v1/knowledge-bases", gin.H{"name": "contracts"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/knowledge-bases/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/knowledge-bases/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/v1/knowledge-bases/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteDefaultKnowledgeBaseRejected(t *testing.T) {
	f := newAPIFixture(t)
	def, err := f.kbs.EnsureDefault(context.Background())
	require.NoError(t, err)

	rec := f.do(t, http.MethodDelete, "/api/v1/knowledge-bases/"+def.ID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTagValidationOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/tags", gin.H{
		"name": "industry", "type": "single_choice",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "choice tag without options")

	rec = f.do(t, http.MethodPost, "/api/v1/tags", gin.H{
		"name": "industry", "type": "single_choice", "options": `["tech","finance"]`,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tag := decode(t, rec)

	rec = f.do(t, http.MethodPut, "/api/v1/tags/"+tag["id"].(string), gin.H{
		"name": "industry", "type": "text_input",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/v1/tags/"+tag["id"].(string), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/v1/tags/"+tag["id"].(string), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadAndExtractFlow(t *testing.T) {
	f := newAPIFixture(t)
	def, err := f.kbs.EnsureDefault(context.Background())
	require.NoError(t, err)

	resp := f.upload(t, def.ID, "notes.txt", "The company headquarters is in Springfield.")
	doc := resp["document"].(map[string]any)
	docID := doc["id"].(string)
	assert.Equal(t, models.StatusCompleted, doc["status"], "immediate mode finishes before responding")

	rec := f.do(t, http.MethodGet, "/api/v1/documents/"+docID+"/job", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	job := decode(t, rec)
	assert.Equal(t, models.StatusCompleted, job["status"])

	rec = f.do(t, http.MethodPost, "/api/v1/tags", gin.H{
		"name": "headquarters", "type": "text_input", "description": "city of the head office",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	tagID := decode(t, rec)["id"].(string)

	f.llm.response = `{"headquarters": {"values": ["Springfield"], "reasoning": "page 1", "original_content": "The company headquarters is in Springfield."}}`
	rec = f.do(t, http.MethodPost, "/api/v1/extract", gin.H{
		"document_id": docID, "tag_id": tagID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	outcome := decode(t, rec)
	assert.Equal(t, "Springfield", outcome["value"])

	rec = f.do(t, http.MethodGet, "/api/v1/documents/"+docID+"/results", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/retrieve", gin.H{
		"document_id": docID, "query": "headquarters",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	retrieved := decode(t, rec)
	assert.NotEmpty(t, retrieved["chunks"])
}

func TestUploadUnsupportedType(t *testing.T) {
	f := newAPIFixture(t)
	def, err := f.kbs.EnsureDefault(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, _ := w.CreateFormFile("file", "image.png")
	fw.Write([]byte{0x89, 0x50})
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/knowledge-bases/"+def.ID+"/documents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetrieveUnsupportedMethodOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/retrieve", gin.H{
		"document_id": "doc-1", "query": "anything", "method": "bm25",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "bm25")
}

func TestExtractUnreadyDocumentOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/tags", gin.H{
		"name": "headquarters", "type": "text_input",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	tagID := decode(t, rec)["id"].(string)

	rec = f.do(t, http.MethodPost, "/api/v1/extract", gin.H{
		"document_id": "missing", "tag_id": tagID,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteDocumentCleansUp(t *testing.T) {
	f := newAPIFixture(t)
	def, err := f.kbs.EnsureDefault(context.Background())
	require.NoError(t, err)

	resp := f.upload(t, def.ID, "notes.txt", "cleanup target text")
	docID := resp["document"].(map[string]any)["id"].(string)
	require.Greater(t, f.vectors.Count(docID), 0)

	rec := f.do(t, http.MethodDelete, "/api/v1/documents/"+docID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Zero(t, f.vectors.Count(docID))
	rec = f.do(t, http.MethodGet, "/api/v1/documents/"+docID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
