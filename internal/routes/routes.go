package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/mozilla/clouseau/internal/handler"
	"github.com/mozilla/clouseau/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Setup configures all routes
func Setup(
	router *gin.Engine,
	dashboardHandler *handler.DashboardHandler,
	healthHandler *handler.HealthHandler,
	wsHandler *handler.WSHandler,
	session middleware.SessionConfig,
) {
	router.SetHTMLTemplate(handler.PageTemplate())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", healthHandler.Health)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Browser-facing routes share one session cookie
	dashboard := router.Group("", middleware.Session(session))
	dashboard.GET("/", dashboardHandler.Page)
	dashboard.GET("/ws", wsHandler.Connect)

	api := dashboard.Group("/api/v1")
	api.GET("/view", dashboardHandler.View)
	api.GET("/catalog", dashboardHandler.Catalog)
	api.POST("/events", dashboardHandler.Dispatch)
}
