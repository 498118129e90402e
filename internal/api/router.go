package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/askpaper/internal/api/admin"
	"github.com/liliang-cn/askpaper/internal/api/middleware"
	"github.com/liliang-cn/askpaper/internal/api/query"
	"github.com/liliang-cn/askpaper/internal/service"
	"go.uber.org/zap"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey       string
	AllowOrigins []string
	Logger       *zap.Logger
}

// SetupRouter sets up the Gin router
func SetupRouter(
	adminService *service.AdminService,
	ingestService *service.IngestService,
	queryService *service.QueryService,
	cfg RouterConfig,
) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Query API (public)
	queryHandler := query.NewHandler(queryService, logger)
	queryHandler.RegisterRoutes(r.Group("/api"))

	// Admin API (requires API key)
	adminHandler := admin.NewHandler(adminService, ingestService)
	adminGroup := r.Group("/api/admin")
	adminGroup.Use(middleware.Auth(cfg.APIKey))
	adminHandler.RegisterRoutes(adminGroup)

	return r
}
