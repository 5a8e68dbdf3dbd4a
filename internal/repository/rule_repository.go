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

// RuleRepository manages the admin-defined moderation rules.
type RuleRepository struct {
	store store.RecordStore
}

func NewRuleRepository(s store.RecordStore) *RuleRepository {
	return &RuleRepository{store: s}
}

func rulePath(id uuid.UUID) string {
	return store.Join(store.RulesPrefix, id.String())
}

// Create persists a new rule. Duplicate words are rejected so two rules
// never disagree on the same word.
func (r *RuleRepository) Create(ctx context.Context, rule *models.ModerationRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	existing, err := r.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.Word == rule.Word {
			return fmt.Errorf("rule for word %q already exists", rule.Word)
		}
	}
	if err := r.store.Write(ctx, rulePath(rule.ID), rule); err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

// Delete removes a rule. Missing rules are an error so admins notice
// stale ids.
func (r *RuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var rule models.ModerationRule
	err := r.store.Read(ctx, rulePath(id), &rule)
	if err == store.ErrNotFound {
		return fmt.Errorf("rule not found")
	}
	if err != nil {
		return fmt.Errorf("failed to get rule: %w", err)
	}
	if err := r.store.Delete(ctx, rulePath(id)); err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return nil
}

// ListAll returns every rule, oldest first.
func (r *RuleRepository) ListAll(ctx context.Context) ([]models.ModerationRule, error) {
	rules := []models.ModerationRule{}
	err := r.store.List(ctx, store.RulesPrefix, func(path string, raw []byte) error {
		var rule models.ModerationRule
		if err := json.Unmarshal(raw, &rule); err != nil {
			return fmt.Errorf("failed to decode rule at %s: %w", path, err)
		}
		rules = append(rules, rule)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})
	return rules, nil
}
