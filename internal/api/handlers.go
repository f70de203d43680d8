package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taglens/internal/extraction"
	"taglens/internal/ingest"
	"taglens/internal/llm"
	"taglens/internal/models"
	"taglens/internal/parser"
	"taglens/internal/retrieval"
	"taglens/internal/store"
	"taglens/pkg/logger"
)

// Handlers bundles the HTTP handlers and their dependencies.
type Handlers struct {
	kbs       *store.KnowledgeBaseStore
	tags      *store.TagStore
	docs      *store.DocumentStore
	jobs      *store.JobStore
	results   *store.ResultStore
	objects   ingest.ObjectStore
	scheduler *ingest.Scheduler
	extractor *extraction.Engine
	retriever *retrieval.Engine
	log       *logger.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(kbs *store.KnowledgeBaseStore, tags *store.TagStore, docs *store.DocumentStore,
	jobs *store.JobStore, results *store.ResultStore, objects ingest.ObjectStore,
	scheduler *ingest.Scheduler, extractor *extraction.Engine, retriever *retrieval.Engine) *Handlers {
	return &Handlers{
		kbs:       kbs,
		tags:      tags,
		docs:      docs,
		jobs:      jobs,
		results:   results,
		objects:   objects,
		scheduler: scheduler,
		extractor: extractor,
		retriever: retriever,
		log:       logger.New("api"),
	}
}

// abortWithError maps domain errors to HTTP statuses.
func (h *Handlers) abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var uerr *retrieval.UnsupportedMethodError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateName),
		errors.Is(err, store.ErrKnowledgeBaseNotEmpty),
		errors.Is(err, store.ErrRetryExhausted),
		errors.Is(err, store.ErrJobNotRetryable),
		errors.Is(err, extraction.ErrDocumentNotReady):
		status = http.StatusConflict
	case errors.Is(err, store.ErrDefaultKnowledgeBase),
		errors.As(err, &uerr):
		status = http.StatusBadRequest
	case errors.Is(err, llm.ErrTimeout):
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		h.log.Errorf("request failed: %v", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// Health reports liveness.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type createKnowledgeBaseRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateKnowledgeBase creates a knowledge base.
func (h *Handlers) CreateKnowledgeBase(c *gin.Context) {
	var req createKnowledgeBaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kb, err := h.kbs.Create(c.Request.Context(), req.Name)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, kb)
}

// ListKnowledgeBases lists all knowledge bases.
func (h *Handlers) ListKnowledgeBases(c *gin.Context) {
	kbs, err := h.kbs.List(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"knowledge_bases": kbs})
}

// GetKnowledgeBase fetches one knowledge base.
func (h *Handlers) GetKnowledgeBase(c *gin.Context) {
	kb, err := h.kbs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, kb)
}

// DeleteKnowledgeBase deletes an empty knowledge base. Its documents
// must be deleted first.
func (h *Handlers) DeleteKnowledgeBase(c *gin.Context) {
	if err := h.kbs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

// CreateTag creates a tag definition.
func (h *Handlers) CreateTag(c *gin.Context) {
	var tag models.TagDefinition
	if err := c.ShouldBindJSON(&tag); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tag.ID = ""
	if err := store.ValidateTag(&tag); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.tags.Create(c.Request.Context(), &tag); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}

// ListTags lists all tag definitions.
func (h *Handlers) ListTags(c *gin.Context) {
	tags, err := h.tags.List(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

// GetTag fetches one tag definition.
func (h *Handlers) GetTag(c *gin.Context) {
	tag, err := h.tags.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, tag)
}

// UpdateTag replaces a tag definition.
func (h *Handlers) UpdateTag(c *gin.Context) {
	var tag models.TagDefinition
	if err := c.ShouldBindJSON(&tag); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tag.ID = c.Param("id")
	if err := store.ValidateTag(&tag); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.tags.Update(c.Request.Context(), &tag); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, tag)
}

// DeleteTag deletes a tag definition and its results.
func (h *Handlers) DeleteTag(c *gin.Context) {
	if err := h.tags.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

// UploadDocument accepts a multipart file, stores it, and enqueues the
// ingestion job. The optional "mode" form field selects queue or
// immediate processing.
func (h *Handlers) UploadDocument(c *gin.Context) {
	ctx := c.Request.Context()
	kbID := c.Param("id")
	if _, err := h.kbs.Get(ctx, kbID); err != nil {
		h.abortWithError(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	filename := path.Base(fileHeader.Filename)
	if !parser.Supported(filename) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("unsupported file type, accepted: %s",
				strings.Join(parser.SupportedExtensions, ", ")),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	rawPath := path.Join("raw", uuid.New().String()+"_"+filename)
	if err := h.objects.Put(ctx, rawPath, data, fileHeader.Header.Get("Content-Type")); err != nil {
		h.abortWithError(c, err)
		return
	}

	doc := &models.Document{
		KnowledgeBaseID: kbID,
		Filename:        filename,
		FileType:        strings.TrimPrefix(path.Ext(filename), "."),
		RawPath:         rawPath,
	}
	if err := h.docs.Create(ctx, doc); err != nil {
		h.abortWithError(c, err)
		return
	}

	job, err := h.scheduler.Enqueue(ctx, doc, c.PostForm("mode"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	// Pick up the status an immediate-mode run may have set.
	doc, err = h.docs.Get(ctx, doc.ID)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"document": doc, "job": job})
}

// ListDocuments lists the documents of a knowledge base.
func (h *Handlers) ListDocuments(c *gin.Context) {
	ctx := c.Request.Context()
	kbID := c.Param("id")
	if _, err := h.kbs.Get(ctx, kbID); err != nil {
		h.abortWithError(c, err)
		return
	}
	docs, err := h.docs.ListByKnowledgeBase(ctx, kbID)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// GetDocument fetches one document.
func (h *Handlers) GetDocument(c *gin.Context) {
	doc, err := h.docs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// DeleteDocument removes a document, its stored files, its vectors, its
// job, and its extraction results.
func (h *Handlers) DeleteDocument(c *gin.Context) {
	ctx := c.Request.Context()
	doc, err := h.docs.Get(ctx, c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	if err := h.removeDocument(c, *doc); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": doc.ID})
}

func (h *Handlers) removeDocument(c *gin.Context, doc models.Document) error {
	ctx := c.Request.Context()
	if err := h.scheduler.Purge(ctx, &doc); err != nil {
		return err
	}
	return h.docs.Delete(ctx, doc.ID)
}

// RetryDocument requeues a failed document for ingestion.
func (h *Handlers) RetryDocument(c *gin.Context) {
	job, err := h.scheduler.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

// GetDocumentJob reports the ingestion job bound to a document.
func (h *Handlers) GetDocumentJob(c *gin.Context) {
	job, err := h.jobs.GetByDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListDocumentResults lists the extraction results recorded for a
// document.
func (h *Handlers) ListDocumentResults(c *gin.Context) {
	results, err := h.results.ListByDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

type extractRequest struct {
	DocumentID string `json:"document_id" binding:"required"`
	TagID      string `json:"tag_id" binding:"required"`
	Method     string `json:"method"`
}

// Extract runs single-tag extraction.
func (h *Handlers) Extract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	outcome, err := h.extractor.ExtractSingle(c.Request.Context(), req.DocumentID, req.TagID, req.Method)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

type extractMultiRequest struct {
	DocumentID string   `json:"document_id" binding:"required"`
	TagIDs     []string `json:"tag_ids" binding:"required,min=1"`
	Method     string   `json:"method"`
}

// ExtractMulti runs multi-tag extraction with one completion call.
func (h *Handlers) ExtractMulti(c *gin.Context) {
	var req extractMultiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	outcomes, err := h.extractor.ExtractMulti(c.Request.Context(), req.DocumentID, req.TagIDs, req.Method)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes})
}

type extractBatchRequest struct {
	DocumentIDs []string `json:"document_ids" binding:"required,min=1"`
	TagIDs      []string `json:"tag_ids" binding:"required,min=1"`
	Method      string   `json:"method"`
}

// ExtractBatch fans multi-tag extraction out over several documents.
func (h *Handlers) ExtractBatch(c *gin.Context) {
	var req extractBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	items, err := h.extractor.ExtractBatch(c.Request.Context(), req.DocumentIDs, req.TagIDs, req.Method)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type retrieveRequest struct {
	DocumentID string `json:"document_id" binding:"required"`
	Query      string `json:"query" binding:"required"`
	Method     string `json:"method"`
	TopK       int    `json:"top_k"`
}

// Retrieve exposes retrieval directly for inspection and debugging.
func (h *Handlers) Retrieve(c *gin.Context) {
	var req retrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.TopK <= 0 {
		req.TopK = 5
	}
	chunks, err := h.retriever.Retrieve(c.Request.Context(), req.Method, req.DocumentID, req.Query, req.TopK)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chunks": chunks, "methods": retrieval.Methods()})
}
