package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes.
func SetupRoutes(router *gin.Engine, handler *Handler, registry *prometheus.Registry) {
	// Health checks live outside the versioned prefix as well.
	router.GET("/health", handler.HealthCheck)
	router.GET("/ready", handler.ReadinessCheck)
	if registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handler.HealthCheck)
		v1.GET("/ready", handler.ReadinessCheck)

		search := v1.Group("/search")
		{
			search.POST("/lowest", handler.LowestPrices)
			search.GET("/lowest", handler.LowestPrices)
			search.POST("/compare", handler.Compare)
			search.GET("/compare", handler.Compare)
		}

		v1.GET("/sources", handler.Sources)
		source := v1.Group("/sources/:source")
		{
			source.POST("/search", handler.SourceSearch)
			source.GET("/search", handler.SourceSearch)
			source.GET("/category", handler.SourceCategory)
			source.GET("/categories", handler.SourceCategories)
			source.POST("/detail", handler.SourceDetail)
		}
	}
}
