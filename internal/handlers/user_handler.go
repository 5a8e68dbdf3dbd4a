package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parley/backend/internal/models"
	"github.com/parley/backend/internal/repository"
)

type UserHandler struct {
	users    *repository.UserRepository
	activity *repository.ActivityRepository
	log      zerolog.Logger
}

func NewUserHandler(users *repository.UserRepository, activity *repository.ActivityRepository, log zerolog.Logger) *UserHandler {
	return &UserHandler{users: users, activity: activity, log: log}
}

// ListUsers returns every profile for the admin panel.
func (h *UserHandler) ListUsers(c *gin.Context) {
	if _, ok := requirePermission(c, h.users, func(p models.PermissionSet) bool { return p.CanBanUsers }); !ok {
		return
	}
	users, err := h.users.ListAll(c.Request.Context())
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to list users")
		return
	}
	c.JSON(http.StatusOK, users)
}

// GetUser returns one profile with its ban history.
func (h *UserHandler) GetUser(c *gin.Context) {
	if _, ok := requirePermission(c, h.users, func(p models.PermissionSet) bool { return p.CanBanUsers }); !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid user id")
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.GetByID(ctx, id)
	if err != nil {
		ErrorResponse(c, http.StatusNotFound, "User not found")
		return
	}
	bans, err := h.users.BanHistory(ctx, id)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to load ban history")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "ban_history": bans})
}

// BanUser issues a ban; duration_min of zero means permanent.
func (h *UserHandler) BanUser(c *gin.Context) {
	caller, ok := requirePermission(c, h.users, func(p models.PermissionSet) bool { return p.CanBanUsers })
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid user id")
		return
	}
	var req models.BanUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	ban, err := h.users.Ban(ctx, id, caller.ID, req.Reason, time.Duration(req.DurationMin)*time.Minute)
	if err != nil {
		ErrorResponse(c, http.StatusConflict, err.Error())
		return
	}
	h.recordAction(c, caller.ID, "user:ban", id, req.Reason)
	c.JSON(http.StatusCreated, ban)
}

// UnbanUser revokes the active ban. A user without one is an error, not a
// silent success.
func (h *UserHandler) UnbanUser(c *gin.Context) {
	caller, ok := requirePermission(c, h.users, func(p models.PermissionSet) bool { return p.CanBanUsers })
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid user id")
		return
	}
	var req models.UnbanUserRequest
	_ = c.ShouldBindJSON(&req) // body optional

	ctx := c.Request.Context()
	ban, err := h.users.Unban(ctx, id, caller.ID, req.Reason)
	if err != nil {
		ErrorResponse(c, http.StatusConflict, err.Error())
		return
	}
	h.recordAction(c, caller.ID, "user:unban", id, req.Reason)
	c.JSON(http.StatusOK, ban)
}

// WarnUser bumps the warning counter.
func (h *UserHandler) WarnUser(c *gin.Context) {
	caller, ok := requirePermission(c, h.users, func(p models.PermissionSet) bool { return p.CanBanUsers })
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid user id")
		return
	}

	count, err := h.users.Warn(c.Request.Context(), id)
	if err != nil {
		ErrorResponse(c, http.StatusNotFound, err.Error())
		return
	}
	h.recordAction(c, caller.ID, "user:warn", id, "")
	c.JSON(http.StatusOK, gin.H{"warning_count": count})
}

// SetRole changes a user's role; permissions follow the role.
func (h *UserHandler) SetRole(c *gin.Context) {
	caller, ok := requirePermission(c, h.users, func(p models.PermissionSet) bool { return p.CanManageRoles })
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid user id")
		return
	}
	var req models.SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.users.SetRole(c.Request.Context(), id, req.Role); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	h.recordAction(c, caller.ID, "user:role", id, string(req.Role))
	c.JSON(http.StatusOK, gin.H{"role": req.Role})
}

// SuspendUser and ActivateUser flip account standing without a ban record.
func (h *UserHandler) SuspendUser(c *gin.Context) {
	h.setStatus(c, models.StatusSuspended, "user:suspend")
}

func (h *UserHandler) ActivateUser(c *gin.Context) {
	h.setStatus(c, models.StatusActive, "user:activate")
}

func (h *UserHandler) setStatus(c *gin.Context, status models.Status, action string) {
	caller, ok := requirePermission(c, h.users, func(p models.PermissionSet) bool { return p.CanBanUsers })
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid user id")
		return
	}

	if err := h.users.SetStatus(c.Request.Context(), id, status); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	h.recordAction(c, caller.ID, action, id, "")
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *UserHandler) recordAction(c *gin.Context, actor uuid.UUID, action string, target uuid.UUID, detail string) {
	err := h.activity.Record(c.Request.Context(), repository.ActivityEntry{
		UserID:   actor,
		Action:   action,
		TargetID: target.String(),
		Detail:   detail,
	})
	if err != nil {
		h.log.Warn().Err(err).Str("action", action).Msg("failed to record activity")
	}
}
