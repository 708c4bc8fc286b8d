// Package router assembles the gin engine and middleware chain.
package router

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/KalilDev/cached-sized-image/internal/handlers"
	"github.com/KalilDev/cached-sized-image/internal/middleware"
)

// Setup registers routes and middleware on a fresh engine.
func Setup(image *handlers.ImageHandler, stats *handlers.StatsHandler, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	metricsMiddleware := middleware.NewMetricsMiddleware()
	engine.Use(middleware.WithLogging(logger))
	engine.Use(metricsMiddleware.WithMetrics())

	engine.GET("/image", image.Get)
	engine.GET("/health", handlers.HealthCheck)
	engine.GET("/stats", stats.Get)
	engine.GET("/metrics", metricsMiddleware.Exposition)

	return engine
}
