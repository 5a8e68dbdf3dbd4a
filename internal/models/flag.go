package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FlagReason explains why a message was flagged.
type FlagReason string

const (
	ReasonProfanity     FlagReason = "profanity"
	ReasonSpam          FlagReason = "spam"
	ReasonHarassment    FlagReason = "harassment"
	ReasonInappropriate FlagReason = "inappropriate"
	ReasonManual        FlagReason = "manual"
)

// Severity ranks how serious a flag is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities so flag merges can keep the most severe verdict.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// ResolutionAction is the outcome a reviewer picks for a flag.
type ResolutionAction string

const (
	ResolutionApproved ResolutionAction = "approved"
	ResolutionDeleted  ResolutionAction = "deleted"
	ResolutionEdited   ResolutionAction = "edited"
)

// FlaggedMessage is the review-workflow record derived from a message.
// It is keyed by the message id and mutated exactly once, by review.
type FlaggedMessage struct {
	MessageID  uuid.UUID `json:"message_id"`
	ChannelID  string    `json:"channel_id"`
	AuthorID   uuid.UUID `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sent_at"`

	Reason       FlagReason        `json:"reason"`
	Severity     Severity          `json:"severity"`
	AutoFlagged  bool              `json:"auto_flagged"`
	FlaggedByID  *uuid.UUID        `json:"flagged_by_id,omitempty"`
	FlaggedAt    time.Time         `json:"flagged_at"`
	Reviewed     bool              `json:"reviewed"`
	ReviewedByID *uuid.UUID        `json:"reviewed_by_id,omitempty"`
	ReviewedAt   *time.Time        `json:"reviewed_at,omitempty"`
	Resolution   *ResolutionAction `json:"resolution,omitempty"`
}

// Validate checks the flag record invariants.
func (f *FlaggedMessage) Validate() error {
	if f.MessageID == uuid.Nil {
		return fmt.Errorf("message id is required")
	}
	if !f.AutoFlagged && f.FlaggedByID == nil {
		return fmt.Errorf("manual flag requires a flagging user")
	}
	if !f.Reviewed && f.Resolution != nil {
		return fmt.Errorf("unreviewed flag cannot carry a resolution")
	}
	switch f.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh:
	default:
		return fmt.Errorf("invalid severity %q", f.Severity)
	}
	return nil
}

// FlagFilter narrows ListFlagged results. Nil fields match everything.
type FlagFilter struct {
	Reviewed *bool
	Severity *Severity
	Reason   *FlagReason
}

// FlagStats is a pure aggregation over a set of flags.
type FlagStats struct {
	Total         int                `json:"total"`
	Unreviewed    int                `json:"unreviewed"`
	BySeverity    map[Severity]int   `json:"by_severity"`
	ByReason      map[FlagReason]int `json:"by_reason"`
	AutoFlagged   int                `json:"auto_flagged"`
	ManualFlagged int                `json:"manual_flagged"`
}

// ModerationRule is an admin-defined lexicon entry layered on top of the
// built-in rules. High severity auto-deletes, anything lower flags.
type ModerationRule struct {
	ID          uuid.UUID  `json:"id"`
	Word        string     `json:"word"`
	Reason      FlagReason `json:"reason"`
	Severity    Severity   `json:"severity"`
	CreatedByID uuid.UUID  `json:"created_by_id"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Validate checks the rule fields.
func (r *ModerationRule) Validate() error {
	if len(r.Word) < 2 {
		return fmt.Errorf("rule word must be at least two characters")
	}
	switch r.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh:
	default:
		return fmt.Errorf("invalid severity %q", r.Severity)
	}
	return nil
}

type CreateRuleRequest struct {
	Word     string     `json:"word" binding:"required"`
	Reason   FlagReason `json:"reason"`
	Severity Severity   `json:"severity"`
}

type ReviewFlagRequest struct {
	Action ResolutionAction `json:"action" binding:"required"`
}

type ManualFlagRequest struct {
	Reason   FlagReason `json:"reason"`
	Severity Severity   `json:"severity"`
}
