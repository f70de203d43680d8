package api

import "github.com/gin-gonic/gin"

// SetupRouter wires the HTTP routes.
func SetupRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	{
		kbs := v1.Group("/knowledge-bases")
		{
			kbs.POST("", h.CreateKnowledgeBase)
			kbs.GET("", h.ListKnowledgeBases)
			kbs.GET("/:id", h.GetKnowledgeBase)
			kbs.DELETE("/:id", h.DeleteKnowledgeBase)
			kbs.POST("/:id/documents", h.UploadDocument)
			kbs.GET("/:id/documents", h.ListDocuments)
		}

		tags := v1.Group("/tags")
		{
			tags.POST("", h.CreateTag)
			tags.GET("", h.ListTags)
			tags.GET("/:id", h.GetTag)
			tags.PUT("/:id", h.UpdateTag)
			tags.DELETE("/:id", h.DeleteTag)
		}

		docs := v1.Group("/documents")
		{
			docs.GET("/:id", h.GetDocument)
			docs.DELETE("/:id", h.DeleteDocument)
			docs.POST("/:id/retry", h.RetryDocument)
			docs.GET("/:id/job", h.GetDocumentJob)
			docs.GET("/:id/results", h.ListDocumentResults)
		}

		v1.POST("/extract", h.Extract)
		v1.POST("/extract/multi", h.ExtractMulti)
		v1.POST("/extract/batch", h.ExtractBatch)
		v1.POST("/retrieve", h.Retrieve)
	}

	return r
}
