package query

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/askpaper/internal/api/apierr"
	"github.com/liliang-cn/askpaper/internal/domain"
	"github.com/liliang-cn/askpaper/internal/service"
	"go.uber.org/zap"
)

// Handler handles question answering requests
type Handler struct {
	queryService *service.QueryService
	logger       *zap.Logger
}

// NewHandler creates a new query handler
func NewHandler(queryService *service.QueryService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{queryService: queryService, logger: logger}
}

// RegisterRoutes registers query routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/query", h.Query)
}

// Query answers a question over the ingested papers
func (h *Handler) Query(c *gin.Context) {
	var req domain.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Limit < 0 || req.Limit > 50 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 50"})
		return
	}

	resp, err := h.queryService.Query(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("Query pipeline failed", zap.String("question", req.Question), zap.Error(err))
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
