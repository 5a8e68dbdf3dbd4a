package moderation

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/parley/backend/internal/models"
	"github.com/parley/backend/internal/store"
)

// Monitor is the post-write safety net: it subscribes to message change
// events and runs the classifier over any message that was stored without
// an inline classification pass. Enforcement is idempotent, so seeing a
// message twice is harmless.
type Monitor struct {
	store    store.RecordStore
	enforcer *Enforcer
	log      zerolog.Logger
}

func NewMonitor(s store.RecordStore, enforcer *Enforcer, log zerolog.Logger) *Monitor {
	return &Monitor{store: s, enforcer: enforcer, log: log}
}

// Run blocks until ctx ends, processing events in arrival order per key.
func (m *Monitor) Run(ctx context.Context) {
	events, cancel, err := m.store.Subscribe(ctx, store.MessagesPrefix)
	if err != nil {
		m.log.Error().Err(err).Msg("moderation monitor could not subscribe; not started")
		return
	}
	defer cancel()

	m.log.Info().Msg("moderation monitor started")
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Deleted {
				continue
			}
			m.process(ctx, ev)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) process(ctx context.Context, ev store.Event) {
	var message models.Message
	if err := json.Unmarshal(ev.Value, &message); err != nil {
		m.log.Debug().Str("path", ev.Path).Msg("skipping undecodable message event")
		return
	}
	if message.Validated {
		return
	}

	result, err := m.enforcer.Enforce(ctx, &message)
	if err != nil {
		m.log.Error().Err(err).
			Str("message_id", message.ID.String()).
			Msg("failed to enforce verdict")
		return
	}
	if result.Verdict != VerdictAllow {
		m.log.Info().
			Str("message_id", message.ID.String()).
			Str("verdict", string(result.Verdict)).
			Str("reason", string(result.Reason)).
			Msg("monitor classified unvalidated message")
	}
}
