package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/parley/backend/internal/models"
	"github.com/parley/backend/internal/store"
)

// FlagRepository is the review-workflow adapter over flaggedMessages
// records. Flags are keyed by message id.
type FlagRepository struct {
	store   store.RecordStore
	msgRepo *MessageRepository
}

func NewFlagRepository(s store.RecordStore, msgRepo *MessageRepository) *FlagRepository {
	return &FlagRepository{store: s, msgRepo: msgRepo}
}

func flagPath(messageID uuid.UUID) string {
	return store.Join(store.FlagsPrefix, messageID.String())
}

// Flag creates the flag record for a message. Flagging an already-flagged
// message keeps the most severe verdict and the earliest flag time rather
// than blindly overwriting.
func (r *FlagRepository) Flag(ctx context.Context, message *models.Message, reason models.FlagReason, severity models.Severity, flaggedBy *uuid.UUID, auto bool) (*models.FlaggedMessage, error) {
	flag := &models.FlaggedMessage{
		MessageID:   message.ID,
		ChannelID:   message.ChannelID,
		AuthorID:    message.AuthorID,
		AuthorName:  message.AuthorName,
		Body:        message.Body,
		SentAt:      message.CreatedAt,
		Reason:      reason,
		Severity:    severity,
		AutoFlagged: auto,
		FlaggedByID: flaggedBy,
		FlaggedAt:   time.Now(),
	}
	if err := flag.Validate(); err != nil {
		return nil, err
	}

	existing := &models.FlaggedMessage{}
	err := r.store.Read(ctx, flagPath(message.ID), existing)
	if err == nil && !existing.Reviewed {
		if existing.Severity.Rank() >= flag.Severity.Rank() {
			return existing, nil
		}
		flag.FlaggedAt = existing.FlaggedAt
	}
	if err != nil && err != store.ErrNotFound {
		return nil, fmt.Errorf("failed to check existing flag: %w", err)
	}

	if err := r.store.Write(ctx, flagPath(message.ID), flag); err != nil {
		return nil, fmt.Errorf("failed to flag message: %w", err)
	}
	return flag, nil
}

// Get returns the flag record for a message id.
func (r *FlagRepository) Get(ctx context.Context, messageID uuid.UUID) (*models.FlaggedMessage, error) {
	flag := &models.FlaggedMessage{}
	err := r.store.Read(ctx, flagPath(messageID), flag)
	if err == store.ErrNotFound {
		return nil, fmt.Errorf("flag not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flag: %w", err)
	}
	return flag, nil
}

// Review closes a flag with the reviewer's action. A deleted resolution
// also removes the underlying message; the two writes are sequential and a
// failure in between leaves the flag closed but the message present, which
// the caller may retry.
func (r *FlagRepository) Review(ctx context.Context, messageID, reviewerID uuid.UUID, action models.ResolutionAction) (*models.FlaggedMessage, error) {
	switch action {
	case models.ResolutionApproved, models.ResolutionDeleted, models.ResolutionEdited:
	default:
		return nil, fmt.Errorf("invalid resolution action %q", action)
	}

	flag, err := r.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	flag.Reviewed = true
	flag.ReviewedByID = &reviewerID
	flag.ReviewedAt = &now
	flag.Resolution = &action

	if err := r.store.Write(ctx, flagPath(messageID), flag); err != nil {
		return nil, fmt.Errorf("failed to review flag: %w", err)
	}

	if action == models.ResolutionDeleted {
		if err := r.msgRepo.Delete(ctx, messageID); err != nil {
			return nil, err
		}
	}
	return flag, nil
}

// List returns flags matching filter, most recently flagged first.
func (r *FlagRepository) List(ctx context.Context, filter models.FlagFilter) ([]models.FlaggedMessage, error) {
	flags := []models.FlaggedMessage{}
	err := r.store.List(ctx, store.FlagsPrefix, func(path string, raw []byte) error {
		var f models.FlaggedMessage
		if err := json.Unmarshal(raw, &f); err != nil {
			return fmt.Errorf("failed to decode flag at %s: %w", path, err)
		}
		if filter.Reviewed != nil && f.Reviewed != *filter.Reviewed {
			return nil
		}
		if filter.Severity != nil && f.Severity != *filter.Severity {
			return nil
		}
		if filter.Reason != nil && f.Reason != *filter.Reason {
			return nil
		}
		flags = append(flags, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list flags: %w", err)
	}
	sort.Slice(flags, func(i, j int) bool {
		return flags[i].FlaggedAt.After(flags[j].FlaggedAt)
	})
	return flags, nil
}

// Stats aggregates a flag set. Pure; no store access. BySeverity and
// ByReason count unreviewed flags only, the review queue breakdown.
func Stats(flags []models.FlaggedMessage) models.FlagStats {
	stats := models.FlagStats{
		BySeverity: map[models.Severity]int{},
		ByReason:   map[models.FlagReason]int{},
	}
	for _, f := range flags {
		stats.Total++
		if f.AutoFlagged {
			stats.AutoFlagged++
		} else {
			stats.ManualFlagged++
		}
		if !f.Reviewed {
			stats.Unreviewed++
			stats.BySeverity[f.Severity]++
			stats.ByReason[f.Reason]++
		}
	}
	return stats
}
