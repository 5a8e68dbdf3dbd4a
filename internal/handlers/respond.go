package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/parley/backend/internal/models"
	"github.com/parley/backend/internal/repository"
)

// ErrorResponse sends a standardized error response.
func ErrorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// callerID returns the authenticated user id set by the auth middleware.
func callerID(c *gin.Context) uuid.UUID {
	v, _ := c.Get("user_id")
	id, _ := v.(uuid.UUID)
	return id
}

// requirePermission loads the caller's profile and checks one permission
// bit. Writes the error response itself when the check fails.
func requirePermission(c *gin.Context, users *repository.UserRepository, check func(models.PermissionSet) bool) (*models.UserProfile, bool) {
	caller, err := users.GetByID(c.Request.Context(), callerID(c))
	if err != nil {
		ErrorResponse(c, http.StatusUnauthorized, "Unknown user")
		return nil, false
	}
	// Permissions are re-derived from the role; the stored copy is audit only.
	if !check(models.PermissionsForRole(caller.Role)) {
		ErrorResponse(c, http.StatusForbidden, "Insufficient permissions")
		return nil, false
	}
	return caller, true
}
