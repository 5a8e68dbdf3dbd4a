package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/parley/backend/internal/models"
	"github.com/parley/backend/internal/store"
)

type MessageRepository struct {
	store store.RecordStore
}

func NewMessageRepository(s store.RecordStore) *MessageRepository {
	return &MessageRepository{store: s}
}

func messagePath(id uuid.UUID) string {
	return store.Join(store.MessagesPrefix, id.String())
}

// Create persists a new message.
func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	if err := r.store.Write(ctx, messagePath(message.ID), message); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// GetByID retrieves a message by id.
func (r *MessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	message := &models.Message{}
	err := r.store.Read(ctx, messagePath(id), message)
	if err == store.ErrNotFound {
		return nil, fmt.Errorf("message not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return message, nil
}

// MarkValidated records that the classifier has seen the message.
func (r *MessageRepository) MarkValidated(ctx context.Context, id uuid.UUID) error {
	err := r.store.Merge(ctx, messagePath(id), map[string]interface{}{"validated": true})
	if err != nil {
		return fmt.Errorf("failed to mark message validated: %w", err)
	}
	return nil
}

// Delete removes a message. Deleting an absent message is not an error;
// the store contract makes deletes idempotent.
func (r *MessageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.store.Delete(ctx, messagePath(id)); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// ListAll returns every stored message, oldest first.
func (r *MessageRepository) ListAll(ctx context.Context) ([]models.Message, error) {
	messages := []models.Message{}
	err := r.store.List(ctx, store.MessagesPrefix, func(path string, raw []byte) error {
		var m models.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("failed to decode message at %s: %w", path, err)
		}
		messages = append(messages, m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

// ListRecent returns up to limit messages for a channel, newest first.
// An empty channel matches every channel.
func (r *MessageRepository) ListRecent(ctx context.Context, channelID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	all, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	messages := []models.Message{}
	for i := len(all) - 1; i >= 0 && len(messages) < limit; i-- {
		if channelID != "" && all[i].ChannelID != channelID {
			continue
		}
		messages = append(messages, all[i])
	}
	return messages, nil
}
