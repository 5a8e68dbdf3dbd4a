package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/parley/backend/internal/analytics"
	"github.com/parley/backend/internal/models"
	"github.com/parley/backend/internal/repository"
)

type AnalyticsHandler struct {
	behavior      *analytics.BehaviorAnalyzer
	chat          *analytics.ChatAggregator
	generator     *analytics.ReportGenerator
	reports       *repository.ReportRepository
	users         *repository.UserRepository
	defaultWindow int
	retention     time.Duration
}

func NewAnalyticsHandler(behavior *analytics.BehaviorAnalyzer, chat *analytics.ChatAggregator, generator *analytics.ReportGenerator, reports *repository.ReportRepository, users *repository.UserRepository, defaultWindowDays, retentionDays int) *AnalyticsHandler {
	return &AnalyticsHandler{
		behavior:      behavior,
		chat:          chat,
		generator:     generator,
		reports:       reports,
		users:         users,
		defaultWindow: defaultWindowDays,
		retention:     time.Duration(retentionDays) * 24 * time.Hour,
	}
}

func (h *AnalyticsHandler) windowDays(c *gin.Context) int {
	if v := c.Query("window_days"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			return days
		}
	}
	return h.defaultWindow
}

// GetUserBehavior returns the window-bounded behavior metrics for a user.
func (h *AnalyticsHandler) GetUserBehavior(c *gin.Context) {
	if _, ok := requirePermission(c, h.users, func(p models.PermissionSet) bool { return p.CanViewReports }); !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid user id")
		return
	}

	metrics, err := h.behavior.Analyze(c.Request.Context(), id, h.windowDays(c))
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to analyze user")
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// GetChatAnalytics returns the system-wide aggregate for the window.
func (h *AnalyticsHandler) GetChatAnalytics(c *gin.Context) {
	if _, ok := requirePermission(c, h.users, func(p models.PermissionSet) bool { return p.CanViewReports }); !ok {
		return
	}

	end := time.Now()
	start := end.AddDate(0, 0, -h.windowDays(c))
	result, err := h.chat.Aggregate(c.Request.Context(), start, end)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to aggregate analytics")
		return
	}
	c.JSON(http.StatusOK, result)
}

// GenerateReport builds and persists a report for the requested window.
func (h *AnalyticsHandler) GenerateReport(c *gin.Context) {
	caller, ok := requirePermission(c, h.users, func(p models.PermissionSet) bool { return p.CanViewReports })
	if !ok {
		return
	}
	var req models.GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.generator.Generate(c.Request.Context(), req.Type, req.Start, req.End, caller.ID)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusCreated, report)
}

// ListReports returns recent reports, newest first.
func (h *AnalyticsHandler) ListReports(c *gin.Context) {
	if _, ok := requirePermission(c, h.users, func(p models.PermissionSet) bool { return p.CanViewReports }); !ok {
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	reports, err := h.reports.ListRecent(c.Request.Context(), limit)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to list reports")
		return
	}
	c.JSON(http.StatusOK, reports)
}

// CleanupReports deletes reports past the retention window.
func (h *AnalyticsHandler) CleanupReports(c *gin.Context) {
	if _, ok := requirePermission(c, h.users, func(p models.PermissionSet) bool { return p.CanViewReports }); !ok {
		return
	}

	deleted, err := h.reports.Cleanup(c.Request.Context(), h.retention)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to clean up reports")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
