package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	QA       *QAHandler
	Search   *SearchHandler
	Upload   *UploadHandler
	Document *DocumentHandler
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SetupRoutes registers every route on router. gatherer backs /metrics.
func SetupRoutes(router *gin.Engine, h Handlers, gatherer prometheus.Gatherer) {
	router.Use(NewCorsHandler().CorsMiddleware)

	router.GET("/health", HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/qa", h.QA.HandleQA)
		v1.GET("/qa/ws", h.QA.HandleQAWebSocket)

		documents := v1.Group("/documents")
		{
			documents.GET("/search", h.Search.HandleSearch)
			documents.GET("/file", h.Document.ServeDocument)
			if h.Upload != nil {
				documents.POST("", h.Upload.UploadDocumentHandler)
			}
		}
	}
}
