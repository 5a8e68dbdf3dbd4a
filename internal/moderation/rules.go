package moderation

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/parley/backend/internal/repository"
	"github.com/parley/backend/internal/store"
)

// RuleWatcher keeps classifiers in sync with the admin-defined rules in
// the record store. Any change event triggers a full reload; the rule set
// is small, so rebuilding beats tracking per-key deltas.
type RuleWatcher struct {
	store       store.RecordStore
	rules       *repository.RuleRepository
	classifiers []*Classifier
	log         zerolog.Logger
}

func NewRuleWatcher(s store.RecordStore, rules *repository.RuleRepository, log zerolog.Logger, classifiers ...*Classifier) *RuleWatcher {
	return &RuleWatcher{store: s, rules: rules, classifiers: classifiers, log: log}
}

// Run loads the current rules, then blocks until ctx ends, reloading on
// every change event.
func (w *RuleWatcher) Run(ctx context.Context) {
	events, cancel, err := w.store.Subscribe(ctx, store.RulesPrefix)
	if err != nil {
		w.log.Error().Err(err).Msg("rule watcher could not subscribe; not started")
		return
	}
	defer cancel()

	w.reload(ctx)
	w.log.Info().Msg("moderation rule watcher started")
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
			w.reload(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *RuleWatcher) reload(ctx context.Context) {
	rules, err := w.rules.ListAll(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("failed to reload moderation rules")
		return
	}
	for _, c := range w.classifiers {
		c.SetRules(rules)
	}
	w.log.Debug().Int("count", len(rules)).Msg("moderation rules reloaded")
}
