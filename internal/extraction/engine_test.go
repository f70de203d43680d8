package extraction

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taglens/internal/database/sqlite"
	"taglens/internal/llm"
	"taglens/internal/models"
	"taglens/internal/retrieval"
	"taglens/internal/splitter"
	"taglens/internal/store"
	"taglens/internal/vectorstore"
)

// flatEmbedder maps every text to the same vector so retrieval returns
// all chunks, ordered by document position.
type flatEmbedder struct{}

func (flatEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (f flatEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (flatEmbedder) Name() string { return "flat-stub" }

// scriptedLLM replays canned completions in order, repeating the last
// one when the script runs out.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
}

func (s *scriptedLLM) Generate(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	i := s.calls - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

func (s *scriptedLLM) Name() string { return "scripted" }

type extractFixture struct {
	tags    *store.TagStore
	docs    *store.DocumentStore
	results *store.ResultStore
	model   *scriptedLLM
	engine  *Engine
}

func newExtractFixture(t *testing.T, model *scriptedLLM) *extractFixture {
	t.Helper()
	db, err := sqlite.OpenMemory()
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate(db))

	vectors := vectorstore.NewMemoryStore()
	seedChunks(t, vectors)

	f := &extractFixture{
		tags:    store.NewTagStore(db),
		docs:    store.NewDocumentStore(db),
		results: store.NewResultStore(db),
		model:   model,
	}
	f.engine = NewEngine(f.tags, f.docs, f.results,
		retrieval.NewEngine(flatEmbedder{}, vectors), model,
		Options{TopK: 5, CompletionTimeout: time.Second, ParseRetries: 3, BatchConcurrency: 2})
	return f
}

func seedChunks(t *testing.T, vectors *vectorstore.MemoryStore) {
	t.Helper()
	texts := []string{
		"Annual revenue grew 12 percent year over year.",
		"The company headquarters is in Springfield.",
		"Employee count reached 250 by December.",
	}
	var chunks []splitter.Chunk
	var vecs [][]float32
	for i, text := range texts {
		chunks = append(chunks, splitter.Chunk{
			ID:         splitter.ChunkID("doc-1", i+1, 0),
			DocumentID: "doc-1",
			PageNumber: i + 1,
			ChunkIndex: 0,
			Text:       text,
		})
		vecs = append(vecs, []float32{1, 0})
	}
	require.NoError(t, vectors.Upsert(context.Background(), chunks, vecs))
}

func (f *extractFixture) seedDocument(t *testing.T, status string) *models.Document {
	t.Helper()
	doc := &models.Document{
		ID:              "doc-1",
		KnowledgeBaseID: "kb-1",
		Filename:        "report.pdf",
		FileType:        "pdf",
		RawPath:         "raw/report.pdf",
		Status:          status,
	}
	require.NoError(t, f.docs.Create(context.Background(), doc))
	return doc
}

func (f *extractFixture) seedTag(t *testing.T, name, typ, options string) *models.TagDefinition {
	t.Helper()
	tag := &models.TagDefinition{Name: name, Type: typ, Options: options}
	require.NoError(t, f.tags.Create(context.Background(), tag))
	return tag
}

func TestExtractSingleTextInput(t *testing.T) {
	ctx := context.Background()
	model := &scriptedLLM{responses: []string{
		`{"headquarters": {"values": ["Springfield"], "reasoning": "stated on page 2", "original_content": "The company headquarters is in Springfield."}}`,
	}}
	f := newExtractFixture(t, model)
	doc := f.seedDocument(t, models.StatusCompleted)
	tag := f.seedTag(t, "headquarters", models.TagTypeTextInput, "")

	outcome, err := f.engine.ExtractSingle(ctx, doc.ID, tag.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Springfield", outcome.Value)
	assert.Equal(t, "stated on page 2", outcome.Reasoning)
	assert.Contains(t, outcome.OriginalContent, "Springfield")
	assert.False(t, outcome.ParseFailed)

	persisted, err := f.results.Latest(ctx, tag.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, `"Springfield"`, persisted.Result)
	assert.Contains(t, persisted.RetrievalTrace, "doc-1_p2_c0")
	assert.Contains(t, persisted.Prompt, "headquarters")
	assert.Contains(t, persisted.Timing, "total_ms")
}

func TestExtractDocumentNotReady(t *testing.T) {
	model := &scriptedLLM{responses: []string{"{}"}}
	f := newExtractFixture(t, model)
	doc := f.seedDocument(t, models.StatusProcessing)
	tag := f.seedTag(t, "headquarters", models.TagTypeTextInput, "")

	_, err := f.engine.ExtractSingle(context.Background(), doc.ID, tag.ID, "")
	assert.ErrorIs(t, err, ErrDocumentNotReady)
	assert.Zero(t, model.calls, "no completion call for unready documents")
}

func TestExtractSingleChoiceClampedToOptions(t *testing.T) {
	ctx := context.Background()
	model := &scriptedLLM{responses: []string{
		`{"industry": {"values": ["Technology"], "reasoning": "guess", "original_content": ""}}`,
	}}
	f := newExtractFixture(t, model)
	doc := f.seedDocument(t, models.StatusCompleted)
	tag := f.seedTag(t, "industry", models.TagTypeSingleChoice, `["tech","finance"]`)

	outcome, err := f.engine.ExtractSingle(ctx, doc.ID, tag.ID, "")
	require.NoError(t, err)
	assert.Nil(t, outcome.Value, "values outside the options clamp to null")

	persisted, err := f.results.Latest(ctx, tag.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "null", persisted.Result)
}

func TestExtractMultipleChoiceFiltered(t *testing.T) {
	model := &scriptedLLM{responses: []string{
		`{"topics": {"values": ["finance", "sports", "finance", "tech"], "reasoning": "", "original_content": ""}}`,
	}}
	f := newExtractFixture(t, model)
	doc := f.seedDocument(t, models.StatusCompleted)
	tag := f.seedTag(t, "topics", models.TagTypeMultipleChoice, `["tech","finance","legal"]`)

	outcome, err := f.engine.ExtractSingle(context.Background(), doc.ID, tag.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"finance", "tech"}, outcome.Value)
}

func TestExtractMultiFillsMissingTags(t *testing.T) {
	model := &scriptedLLM{responses: []string{
		`{"headquarters": {"values": ["Springfield"], "reasoning": "page 2", "original_content": ""}}`,
	}}
	f := newExtractFixture(t, model)
	doc := f.seedDocument(t, models.StatusCompleted)
	hq := f.seedTag(t, "headquarters", models.TagTypeTextInput, "")
	ceo := f.seedTag(t, "ceo", models.TagTypeTextInput, "")

	outcomes, err := f.engine.ExtractMulti(context.Background(), doc.ID, []string{hq.ID, ceo.ID}, "")
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "Springfield", outcomes[0].Value)
	assert.Nil(t, outcomes[1].Value, "omitted tags come back null")
	assert.False(t, outcomes[1].ParseFailed)
	assert.Equal(t, 1, model.calls, "multi-tag extraction uses one completion")
}

func TestExtractReparsesAfterGarbage(t *testing.T) {
	model := &scriptedLLM{responses: []string{
		"I cannot answer in JSON, sorry.",
		"still not json",
		"```json\n{\"headquarters\": {\"values\": [\"Springfield\"], \"reasoning\": \"\", \"original_content\": \"\"}}\n```",
	}}
	f := newExtractFixture(t, model)
	doc := f.seedDocument(t, models.StatusCompleted)
	tag := f.seedTag(t, "headquarters", models.TagTypeTextInput, "")

	outcome, err := f.engine.ExtractSingle(context.Background(), doc.ID, tag.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Springfield", outcome.Value)
	assert.Equal(t, 3, model.calls)
}

func TestExtractParseFailureRecorded(t *testing.T) {
	ctx := context.Background()
	model := &scriptedLLM{responses: []string{"never json"}}
	f := newExtractFixture(t, model)
	doc := f.seedDocument(t, models.StatusCompleted)
	tag := f.seedTag(t, "headquarters", models.TagTypeTextInput, "")

	outcome, err := f.engine.ExtractSingle(ctx, doc.ID, tag.ID, "")
	require.NoError(t, err)
	assert.True(t, outcome.ParseFailed)
	assert.Equal(t, "never json", outcome.Value,
		"free-text tags degrade to the raw completion")
	assert.Equal(t, 3, model.calls, "parse retries use the full budget")

	persisted, err := f.results.Latest(ctx, tag.ID, doc.ID)
	require.NoError(t, err)
	assert.True(t, persisted.ParseFailed)
	assert.Equal(t, "never json", persisted.RawResponse)
}

func TestExtractTimeoutSurfaces(t *testing.T) {
	model := &scriptedLLM{err: fmt.Errorf("%w: deadline exceeded", llm.ErrTimeout)}
	f := newExtractFixture(t, model)
	doc := f.seedDocument(t, models.StatusCompleted)
	tag := f.seedTag(t, "headquarters", models.TagTypeTextInput, "")

	_, err := f.engine.ExtractSingle(context.Background(), doc.ID, tag.ID, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrTimeout)
	assert.Equal(t, 1, model.calls, "backend failures are not retried")
}

func TestExtractUnsupportedRetrievalMethod(t *testing.T) {
	model := &scriptedLLM{responses: []string{"{}"}}
	f := newExtractFixture(t, model)
	doc := f.seedDocument(t, models.StatusCompleted)
	tag := f.seedTag(t, "headquarters", models.TagTypeTextInput, "")

	_, err := f.engine.ExtractSingle(context.Background(), doc.ID, tag.ID, "bm25")
	require.Error(t, err)
	var uerr *retrieval.UnsupportedMethodError
	assert.ErrorAs(t, err, &uerr)
	assert.Zero(t, model.calls)
}

func TestExtractBatchIsolatesFailures(t *testing.T) {
	model := &scriptedLLM{responses: []string{
		`{"headquarters": {"values": ["Springfield"], "reasoning": "", "original_content": ""}}`,
	}}
	f := newExtractFixture(t, model)
	doc := f.seedDocument(t, models.StatusCompleted)
	tag := f.seedTag(t, "headquarters", models.TagTypeTextInput, "")

	items, err := f.engine.ExtractBatch(context.Background(),
		[]string{doc.ID, "missing-doc"}, []string{tag.ID}, "")
	require.NoError(t, err)
	require.Len(t, items, 2)

	byDoc := map[string]BatchItem{}
	for _, item := range items {
		byDoc[item.DocumentID] = item
	}
	assert.Empty(t, byDoc[doc.ID].Error)
	require.Len(t, byDoc[doc.ID].Outcomes, 1)
	assert.Equal(t, "Springfield", byDoc[doc.ID].Outcomes[0].Value)
	assert.NotEmpty(t, byDoc["missing-doc"].Error)
}

func TestParseResponseLayers(t *testing.T) {
	// Raw JSON.
	out, err := parseResponse(`{"a": {"values": ["x"], "reasoning": "", "original_content": ""}}`)
	require.NoError(t, err)
	assert.Len(t, out["a"].Values, 1)

	// JSON buried in prose.
	out, err = parseResponse(`Sure! Here is the answer: {"a": {"values": ["x"], "reasoning": "", "original_content": ""}} hope that helps`)
	require.NoError(t, err)
	assert.Len(t, out["a"].Values, 1)

	// Fenced JSON.
	out, err = parseResponse("```json\n{\"a\": {\"values\": [\"x\"], \"reasoning\": \"\", \"original_content\": \"\"}}\n```")
	require.NoError(t, err)
	assert.Len(t, out["a"].Values, 1)

	// Hopeless.
	_, err = parseResponse("no json here")
	assert.ErrorIs(t, err, errUnparseable)
}
