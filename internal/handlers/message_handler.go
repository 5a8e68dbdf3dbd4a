package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parley/backend/internal/models"
	"github.com/parley/backend/internal/moderation"
	"github.com/parley/backend/internal/repository"
)

type MessageHandler struct {
	messages *repository.MessageRepository
	users    *repository.UserRepository
	enforcer *moderation.Enforcer
	log      zerolog.Logger
}

func NewMessageHandler(messages *repository.MessageRepository, users *repository.UserRepository, enforcer *moderation.Enforcer, log zerolog.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, users: users, enforcer: enforcer, log: log}
}

// GetMessages returns recent messages, newest first.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	var req models.GetMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	messages, err := h.messages.ListRecent(c.Request.Context(), req.ChannelID, req.Limit)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to get messages")
		return
	}
	c.JSON(http.StatusOK, messages)
}

// SendMessage validates, stores, and classifies a message in-band.
// Auto-deleted messages are acknowledged as removed rather than delivered.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	uid := callerID(c)

	author, err := h.users.GetByID(ctx, uid)
	if err != nil {
		ErrorResponse(c, http.StatusUnauthorized, "Unknown user")
		return
	}
	if author.Status == models.StatusBanned {
		// ActiveBan revokes elapsed temporary bans as a side effect.
		if ban, err := h.users.ActiveBan(ctx, uid); err == nil && ban == nil {
			author.Status = models.StatusActive
		}
	}
	if author.Status != models.StatusActive {
		ErrorResponse(c, http.StatusForbidden, "Account is not allowed to post")
		return
	}

	channel := req.ChannelID
	if channel == "" {
		channel = models.DefaultChannel
	}
	// Stored unvalidated so the post-write monitor retries classification
	// if the inline pass below fails partway.
	message := &models.Message{
		ID:         uuid.New(),
		ChannelID:  channel,
		AuthorID:   uid,
		AuthorName: author.DisplayName,
		Body:       req.Body,
		CreatedAt:  time.Now(),
	}
	if err := message.Validate(); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.messages.Create(ctx, message); err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "Failed to send message")
		return
	}

	result, err := h.enforcer.Enforce(ctx, message)
	if err != nil {
		h.log.Error().Err(err).
			Str("message_id", message.ID.String()).
			Msg("failed to enforce verdict at send time")
		ErrorResponse(c, http.StatusInternalServerError, "Failed to moderate message")
		return
	}
	message.Validated = result.Verdict != moderation.VerdictAutoDelete

	// Counter and activity bumps are best-effort and never fail the send.
	if err := h.users.TouchActivity(ctx, uid); err != nil {
		h.log.Warn().Err(err).Str("user_id", uid.String()).Msg("failed to bump activity counters")
	}

	if result.Verdict == moderation.VerdictAutoDelete {
		c.JSON(http.StatusOK, gin.H{
			"removed": true,
			"reason":  result.Reason,
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": message,
		"flagged": result.Verdict == moderation.VerdictFlag,
	})
}
