package moderation

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/parley/backend/internal/models"
	"github.com/parley/backend/internal/repository"
)

// Enforcer applies classifier verdicts: it persists flags, deletes
// auto-removed messages, bumps author counters, and marks messages as
// validated. Counter and activity writes are best-effort; a failure there
// never fails the enforcement itself.
type Enforcer struct {
	classifier *Classifier
	messages   *repository.MessageRepository
	flags      *repository.FlagRepository
	users      *repository.UserRepository
	activity   *repository.ActivityRepository
	log        zerolog.Logger
}

func NewEnforcer(classifier *Classifier, messages *repository.MessageRepository, flags *repository.FlagRepository, users *repository.UserRepository, activity *repository.ActivityRepository, log zerolog.Logger) *Enforcer {
	return &Enforcer{
		classifier: classifier,
		messages:   messages,
		flags:      flags,
		users:      users,
		activity:   activity,
		log:        log,
	}
}

// Enforce classifies a stored message and persists the verdict. The flag
// write and the message delete are two sequential store writes; a failure
// between them leaves the flag in place and the call retryable.
func (e *Enforcer) Enforce(ctx context.Context, message *models.Message) (Result, error) {
	result := e.classifier.Classify(message.Body)

	switch result.Verdict {
	case VerdictAllow:
		if !message.Validated {
			if err := e.messages.MarkValidated(ctx, message.ID); err != nil {
				return result, err
			}
		}
		return result, nil

	case VerdictFlag:
		if _, err := e.flags.Flag(ctx, message, result.Reason, result.Severity, nil, true); err != nil {
			return result, err
		}
		if !message.Validated {
			if err := e.messages.MarkValidated(ctx, message.ID); err != nil {
				return result, err
			}
		}

	case VerdictAutoDelete:
		if _, err := e.flags.Flag(ctx, message, result.Reason, result.Severity, nil, true); err != nil {
			return result, err
		}
		if err := e.messages.Delete(ctx, message.ID); err != nil {
			return result, err
		}
	}

	e.recordSideEffects(ctx, message, result)
	return result, nil
}

// recordSideEffects bumps the author's flag counter and writes the audit
// trail. Failures are logged and swallowed.
func (e *Enforcer) recordSideEffects(ctx context.Context, message *models.Message, result Result) {
	if err := e.users.IncrementFlagCount(ctx, message.AuthorID); err != nil {
		e.log.Warn().Err(err).
			Str("user_id", message.AuthorID.String()).
			Msg("failed to bump flag counter")
	}
	if err := e.activity.Record(ctx, repository.ActivityEntry{
		UserID:   message.AuthorID,
		Action:   "moderation:" + string(result.Verdict),
		TargetID: message.ID.String(),
		Detail:   string(result.Reason),
	}); err != nil {
		e.log.Warn().Err(err).Msg("failed to record moderation activity")
	}
}
