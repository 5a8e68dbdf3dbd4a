package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/parley/backend/internal/auth"
	"github.com/parley/backend/internal/models"
	"github.com/parley/backend/internal/repository"
)

type AuthHandler struct {
	users      *repository.UserRepository
	jwtService *auth.JWTService
}

func NewAuthHandler(users *repository.UserRepository, jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{users: users, jwtService: jwtService}
}

// Register creates a profile and returns a session token.
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	if _, err := h.users.GetByEmail(ctx, req.Email); err == nil {
		ErrorResponse(c, http.StatusConflict, "Email already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	now := time.Now()
	user := &models.UserProfile{
		ID:           uuid.New(),
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	if err := h.users.Create(ctx, user); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.users.SetCredential(ctx, user.ID, hash); err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	token, err := h.jwtService.GenerateToken(user.ID, user.Email)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to create session")
		return
	}

	c.JSON(http.StatusCreated, models.LoginResponse{Token: token, User: *user})
}

// Login checks credentials and account standing.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil {
		ErrorResponse(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	hash, err := h.users.GetCredential(ctx, user.ID)
	if err != nil {
		ErrorResponse(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err := auth.CheckPassword(hash, req.Password); err != nil {
		ErrorResponse(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if user.Status == models.StatusBanned {
		ErrorResponse(c, http.StatusForbidden, "Account is banned")
		return
	}

	token, err := h.jwtService.GenerateToken(user.ID, user.Email)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to create session")
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{Token: token, User: *user})
}

// GetMe returns the caller's profile.
func (h *AuthHandler) GetMe(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), callerID(c))
	if err != nil {
		ErrorResponse(c, http.StatusNotFound, "User not found")
		return
	}
	c.JSON(http.StatusOK, user)
}
