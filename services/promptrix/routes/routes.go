package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fatinm1/promptrix/services/promptrix/evaluation"
	"github.com/fatinm1/promptrix/services/promptrix/handlers"
	"github.com/fatinm1/promptrix/services/promptrix/middleware"
	"github.com/fatinm1/promptrix/services/promptrix/storage"
)

// SetupRoutes registers every endpoint of the service. The /v1 group
// requires bearer-token auth; health and metrics stay open for probes
// and scrapers.
func SetupRoutes(router *gin.Engine, store *storage.Store, runner *evaluation.Runner,
	authProvider middleware.AuthProvider) {

	router.GET("/health", handlers.HandleHealth())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(authProvider))
	{
		tests := v1.Group("/tests")
		{
			tests.POST("", handlers.HandleCreateTest(store))
			tests.GET("/:testId", handlers.HandleGetTest(store))
			tests.POST("/:testId/run", handlers.HandleRunTest(runner))
			tests.GET("/:testId/results", handlers.HandleGetResults(store))
			tests.GET("/:testId/stats", handlers.HandleGetStats(store))
		}
	}
}
