package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parley/backend/internal/models"
	"github.com/parley/backend/internal/repository"
)

type ModerationHandler struct {
	flags    *repository.FlagRepository
	messages *repository.MessageRepository
	users    *repository.UserRepository
	activity *repository.ActivityRepository
	rules    *repository.RuleRepository
	log      zerolog.Logger
}

func NewModerationHandler(flags *repository.FlagRepository, messages *repository.MessageRepository, users *repository.UserRepository, activity *repository.ActivityRepository, rules *repository.RuleRepository, log zerolog.Logger) *ModerationHandler {
	return &ModerationHandler{flags: flags, messages: messages, users: users, activity: activity, rules: rules, log: log}
}

// ListFlags returns flags matching the optional reviewed / severity /
// reason query filters, most recently flagged first.
func (h *ModerationHandler) ListFlags(c *gin.Context) {
	if _, ok := requirePermission(c, h.users, func(p models.PermissionSet) bool { return p.CanReviewFlags }); !ok {
		return
	}

	filter := models.FlagFilter{}
	if v := c.Query("reviewed"); v != "" {
		reviewed, err := strconv.ParseBool(v)
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, "invalid reviewed filter")
			return
		}
		filter.Reviewed = &reviewed
	}
	if v := c.Query("severity"); v != "" {
		sev := models.Severity(v)
		filter.Severity = &sev
	}
	if v := c.Query("reason"); v != "" {
		reason := models.FlagReason(v)
		filter.Reason = &reason
	}

	flags, err := h.flags.List(c.Request.Context(), filter)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to list flags")
		return
	}
	c.JSON(http.StatusOK, flags)
}

// FlagStats aggregates the current flag set.
func (h *ModerationHandler) FlagStats(c *gin.Context) {
	if _, ok := requirePermission(c, h.users, func(p models.PermissionSet) bool { return p.CanReviewFlags }); !ok {
		return
	}

	flags, err := h.flags.List(c.Request.Context(), models.FlagFilter{})
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to load flags")
		return
	}
	c.JSON(http.StatusOK, repository.Stats(flags))
}

// ReviewFlag closes a flag with the caller's resolution.
func (h *ModerationHandler) ReviewFlag(c *gin.Context) {
	reviewer, ok := requirePermission(c, h.users, func(p models.PermissionSet) bool { return p.CanReviewFlags })
	if !ok {
		return
	}

	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid message id")
		return
	}

	var req models.ReviewFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	flag, err := h.flags.Review(ctx, messageID, reviewer.ID, req.Action)
	if err != nil {
		if err.Error() == "flag not found" {
			ErrorResponse(c, http.StatusNotFound, "Flag not found")
			return
		}
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.activity.Record(ctx, repository.ActivityEntry{
		UserID:   reviewer.ID,
		Action:   "flag:review",
		TargetID: messageID.String(),
		Detail:   string(req.Action),
	}); err != nil {
		h.log.Warn().Err(err).Msg("failed to record review activity")
	}

	c.JSON(http.StatusOK, flag)
}

// CreateRule adds an admin-defined moderation rule. The watcher picks it
// up from the store, so no direct classifier update happens here.
func (h *ModerationHandler) CreateRule(c *gin.Context) {
	caller, ok := requirePermission(c, h.users, func(p models.PermissionSet) bool { return p.CanReviewFlags })
	if !ok {
		return
	}

	var req models.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Reason == "" {
		req.Reason = models.ReasonInappropriate
	}
	if req.Severity == "" {
		req.Severity = models.SeverityMedium
	}

	rule := &models.ModerationRule{
		ID:          uuid.New(),
		Word:        strings.ToLower(strings.TrimSpace(req.Word)),
		Reason:      req.Reason,
		Severity:    req.Severity,
		CreatedByID: caller.ID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.rules.Create(c.Request.Context(), rule); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// ListRules returns the admin-defined rules, oldest first.
func (h *ModerationHandler) ListRules(c *gin.Context) {
	if _, ok := requirePermission(c, h.users, func(p models.PermissionSet) bool { return p.CanReviewFlags }); !ok {
		return
	}

	rules, err := h.rules.ListAll(c.Request.Context())
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to list rules")
		return
	}
	c.JSON(http.StatusOK, rules)
}

// DeleteRule removes an admin-defined rule.
func (h *ModerationHandler) DeleteRule(c *gin.Context) {
	if _, ok := requirePermission(c, h.users, func(p models.PermissionSet) bool { return p.CanReviewFlags }); !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid rule id")
		return
	}

	if err := h.rules.Delete(c.Request.Context(), id); err != nil {
		if err.Error() == "rule not found" {
			ErrorResponse(c, http.StatusNotFound, "Rule not found")
			return
		}
		ErrorResponse(c, http.StatusInternalServerError, "Failed to delete rule")
		return
	}
	c.Status(http.StatusNoContent)
}

// FlagMessage files a manual flag against a stored message.
func (h *ModerationHandler) FlagMessage(c *gin.Context) {
	caller, ok := requirePermission(c, h.users, func(p models.PermissionSet) bool { return p.CanFlag })
	if !ok {
		return
	}

	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid message id")
		return
	}

	var req models.ManualFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Reason == "" {
		req.Reason = models.ReasonManual
	}
	if req.Severity == "" {
		req.Severity = models.SeverityMedium
	}

	ctx := c.Request.Context()
	message, err := h.messages.GetByID(ctx, messageID)
	if err != nil {
		ErrorResponse(c, http.StatusNotFound, "Message not found")
		return
	}

	flag, err := h.flags.Flag(ctx, message, req.Reason, req.Severity, &caller.ID, false)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.users.IncrementFlagCount(ctx, message.AuthorID); err != nil {
		h.log.Warn().Err(err).Msg("failed to bump flag counter")
	}

	c.JSON(http.StatusCreated, flag)
}
