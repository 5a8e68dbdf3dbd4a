package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultChannel is used when no channel partitioning is in play.
const DefaultChannel = "general"

// MaxMessageLength is the pre-send ceiling enforced before classification.
const MaxMessageLength = 500

type Message struct {
	ID         uuid.UUID `json:"id"`
	ChannelID  string    `json:"channel_id"`
	AuthorID   uuid.UUID `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
	// Validated is set once the classifier has seen the message, either
	// inline at send time or by the post-write monitor.
	Validated bool `json:"validated"`
}

// Validate enforces the basic pre-send bounds. Classification assumes input
// that already passed this check.
func (m *Message) Validate() error {
	body := strings.TrimSpace(m.Body)
	if body == "" {
		return fmt.Errorf("message body is required")
	}
	if len(m.Body) > MaxMessageLength {
		return fmt.Errorf("message body exceeds %d characters", MaxMessageLength)
	}
	if m.AuthorID == uuid.Nil {
		return fmt.Errorf("author id is required")
	}
	return nil
}

type SendMessageRequest struct {
	ChannelID string `json:"channel_id"`
	Body      string `json:"body" binding:"required,max=500"`
}

type GetMessagesRequest struct {
	ChannelID string `form:"channel_id"`
	Limit     int    `form:"limit"`
}
