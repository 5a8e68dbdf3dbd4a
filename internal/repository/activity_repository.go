package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/parley/backend/internal/store"
)

// ActivityEntry is one append-only audit row. Writes are best-effort:
// primary operations never fail because activity logging did.
type ActivityEntry struct {
	UserID   uuid.UUID `json:"user_id"`
	Action   string    `json:"action"`
	TargetID string    `json:"target_id,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
}

type ActivityRepository struct {
	store store.RecordStore
}

func NewActivityRepository(s store.RecordStore) *ActivityRepository {
	return &ActivityRepository{store: s}
}

// Record appends one entry under a server-generated key.
func (r *ActivityRepository) Record(ctx context.Context, entry ActivityEntry) error {
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	if _, err := r.store.Append(ctx, store.ActivityPrefix, entry); err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}
