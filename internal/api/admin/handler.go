package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/askpaper/internal/api/apierr"
	"github.com/liliang-cn/askpaper/internal/domain"
	"github.com/liliang-cn/askpaper/internal/service"
)

// Handler handles admin API requests
type Handler struct {
	adminService  *service.AdminService
	ingestService *service.IngestService
}

// NewHandler creates a new admin handler
func NewHandler(adminService *service.AdminService, ingestService *service.IngestService) *Handler {
	return &Handler{
		adminService:  adminService,
		ingestService: ingestService,
	}
}

// RegisterRoutes registers admin routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	papers := r.Group("/papers")
	{
		papers.POST("", h.IngestPaper)
		papers.GET("", h.ListPapers)
		papers.GET("/:id", h.GetPaper)
		papers.DELETE("/:id", h.DeletePaper)
	}

	researches := r.Group("/researches")
	{
		researches.POST("", h.CreateResearch)
		researches.GET("", h.ListResearches)
		researches.GET("/:id", h.GetResearch)
		researches.PUT("/:id", h.UpdateResearch)
		researches.DELETE("/:id", h.DeleteResearch)
		researches.POST("/:id/papers/:file_name", h.AddPaperToResearch)
		researches.DELETE("/:id/papers/:file_name", h.RemovePaperFromResearch)
		researches.GET("/:id/history", h.ResearchHistory)
		researches.GET("/:id/history/stats", h.ResearchHistoryStats)
		researches.DELETE("/:id/history", h.DeleteResearchHistory)
	}

	history := r.Group("/history")
	{
		history.GET("", h.ListHistory)
		history.GET("/stats", h.HistoryStats)
		history.POST("/:id/rating", h.RateHistory)
	}

	r.GET("/stats", h.GetStats)
}

// Paper handlers

func (h *Handler) IngestPaper(c *gin.Context) {
	var req domain.IngestPaperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	paper, err := h.ingestService.IngestPaper(c.Request.Context(), &req)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, paper)
}

func (h *Handler) ListPapers(c *gin.Context) {
	papers, err := h.adminService.ListPapers(c.Request.Context())
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"papers": papers, "total": len(papers)})
}

func (h *Handler) GetPaper(c *gin.Context) {
	paper, err := h.adminService.GetPaper(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, paper)
}

func (h *Handler) DeletePaper(c *gin.Context) {
	if err := h.adminService.DeletePaper(c.Request.Context(), c.Param("id")); err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "paper deleted"})
}

// Research handlers

func (h *Handler) CreateResearch(c *gin.Context) {
	var req domain.CreateResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	research, err := h.adminService.CreateResearch(c.Request.Context(), &req)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, research)
}

func (h *Handler) ListResearches(c *gin.Context) {
	includeArchived, _ := strconv.ParseBool(c.DefaultQuery("include_archived", "false"))

	researches, err := h.adminService.ListResearches(c.Request.Context(), includeArchived)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"researches": researches, "total": len(researches)})
}

func (h *Handler) GetResearch(c *gin.Context) {
	research, err := h.adminService.GetResearch(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, research)
}

func (h *Handler) UpdateResearch(c *gin.Context) {
	var req domain.UpdateResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	research, err := h.adminService.UpdateResearch(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, research)
}

func (h *Handler) DeleteResearch(c *gin.Context) {
	if err := h.adminService.DeleteResearch(c.Request.Context(), c.Param("id")); err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "research deleted"})
}

func (h *Handler) AddPaperToResearch(c *gin.Context) {
	research, err := h.adminService.AddPaperToResearch(c.Request.Context(), c.Param("id"), c.Param("file_name"))
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, research)
}

func (h *Handler) RemovePaperFromResearch(c *gin.Context) {
	research, err := h.adminService.RemovePaperFromResearch(c.Request.Context(), c.Param("id"), c.Param("file_name"))
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, research)
}

func (h *Handler) ResearchHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := h.adminService.ResearchHistory(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": entries, "limit": limit, "offset": offset})
}

func (h *Handler) ResearchHistoryStats(c *gin.Context) {
	stats, err := h.adminService.ResearchHistoryStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) DeleteResearchHistory(c *gin.Context) {
	deleted, err := h.adminService.DeleteResearchHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "research history deleted", "deleted": deleted})
}

// History handlers

func (h *Handler) ListHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := h.adminService.ListHistory(c.Request.Context(), limit, offset)
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": entries, "limit": limit, "offset": offset})
}

func (h *Handler) HistoryStats(c *gin.Context) {
	stats, err := h.adminService.HistoryStats(c.Request.Context())
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) RateHistory(c *gin.Context) {
	var req domain.RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.adminService.RateHistory(c.Request.Context(), c.Param("id"), req.Rating); err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "rating saved", "rating": req.Rating})
}

// Stats

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.adminService.GetStats(c.Request.Context())
	if err != nil {
		apierr.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
