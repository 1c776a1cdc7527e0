package http

import (
	"github.com/gin-gonic/gin"
	"github.com/pricetrail/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(SessionMiddleware())
	{
		v1.POST("/searches", handler.Search)

		prices := v1.Group("/prices/:site")
		{
			prices.GET("", handler.History)
			prices.GET("/chart", handler.Chart)
			prices.GET("/export", handler.Export)
		}

		sessions := v1.Group("/session")
		{
			sessions.GET("", handler.GetSession)
			sessions.DELETE("", handler.ResetSession)
			sessions.GET("/ws", handler.StreamSession(newUpgrader(cfg.Server.AllowedOrigins)))
		}
	}

	return router
}
