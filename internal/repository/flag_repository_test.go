package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/parley/backend/internal/models"
	"github.com/parley/backend/internal/store"
)

func newFlagFixture() (*FlagRepository, *MessageRepository) {
	s := store.NewMemoryStore()
	msgRepo := NewMessageRepository(s)
	return NewFlagRepository(s, msgRepo), msgRepo
}

func newTestMessage(t *testing.T, msgRepo *MessageRepository, body string) *models.Message {
	t.Helper()
	m := &models.Message{
		ID:         uuid.New(),
		ChannelID:  models.DefaultChannel,
		AuthorID:   uuid.New(),
		AuthorName: "Test User",
		Body:       body,
		CreatedAt:  time.Now(),
		Validated:  true,
	}
	if err := msgRepo.Create(context.Background(), m); err != nil {
		t.Fatalf("failed to create message: %v", err)
	}
	return m
}

func TestFlagRepository_FlagAndGet(t *testing.T) {
	flags, msgRepo := newFlagFixture()
	ctx := context.Background()
	m := newTestMessage(t, msgRepo, "spammy text")

	flag, err := flags.Flag(ctx, m, models.ReasonSpam, models.SeverityMedium, nil, true)
	if err != nil {
		t.Fatalf("Flag failed: %v", err)
	}
	if flag.MessageID != m.ID || !flag.AutoFlagged || flag.Reviewed {
		t.Fatalf("unexpected flag record: %+v", flag)
	}

	got, err := flags.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Reason != models.ReasonSpam || got.Severity != models.SeverityMedium {
		t.Errorf("got %+v, want spam/medium", got)
	}
}

func TestFlagRepository_ManualFlagRequiresUser(t *testing.T) {
	flags, msgRepo := newFlagFixture()
	m := newTestMessage(t, msgRepo, "questionable")

	if _, err := flags.Flag(context.Background(), m, models.ReasonManual, models.SeverityLow, nil, false); err == nil {
		t.Fatal("expected error for manual flag without a flagging user")
	}
}

func TestFlagRepository_DuplicateFlagKeepsMostSevere(t *testing.T) {
	flags, msgRepo := newFlagFixture()
	ctx := context.Background()
	m := newTestMessage(t, msgRepo, "bad text")

	first, err := flags.Flag(ctx, m, models.ReasonSpam, models.SeverityHigh, nil, true)
	if err != nil {
		t.Fatalf("first Flag failed: %v", err)
	}

	// A weaker duplicate must not downgrade the existing flag.
	reporter := uuid.New()
	got, err := flags.Flag(ctx, m, models.ReasonManual, models.SeverityLow, &reporter, false)
	if err != nil {
		t.Fatalf("duplicate Flag failed: %v", err)
	}
	if got.Severity != models.SeverityHigh || got.Reason != models.ReasonSpam {
		t.Fatalf("duplicate flag downgraded the record: %+v", got)
	}
	if !got.FlaggedAt.Equal(first.FlaggedAt) {
		t.Error("duplicate flag should keep the original flag time")
	}

	// A stronger duplicate upgrades severity but keeps the first time.
	m2 := newTestMessage(t, msgRepo, "worse text")
	weak, err := flags.Flag(ctx, m2, models.ReasonSpam, models.SeverityLow, nil, true)
	if err != nil {
		t.Fatalf("Flag failed: %v", err)
	}
	strong, err := flags.Flag(ctx, m2, models.ReasonHarassment, models.SeverityHigh, nil, true)
	if err != nil {
		t.Fatalf("Flag failed: %v", err)
	}
	if strong.Severity != models.SeverityHigh || strong.Reason != models.ReasonHarassment {
		t.Fatalf("stronger duplicate should win: %+v", strong)
	}
	if !strong.FlaggedAt.Equal(weak.FlaggedAt) {
		t.Error("upgrade should keep the original flag time")
	}
}

func TestFlagRepository_ReviewDeleted(t *testing.T) {
	flags, msgRepo := newFlagFixture()
	ctx := context.Background()
	m := newTestMessage(t, msgRepo, "to be removed")
	reviewer := uuid.New()

	if _, err := flags.Flag(ctx, m, models.ReasonHarassment, models.SeverityHigh, nil, true); err != nil {
		t.Fatalf("Flag failed: %v", err)
	}

	flag, err := flags.Review(ctx, m.ID, reviewer, models.ResolutionDeleted)
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if !flag.Reviewed || flag.Resolution == nil || *flag.Resolution != models.ResolutionDeleted {
		t.Fatalf("unexpected reviewed flag: %+v", flag)
	}
	if flag.ReviewedByID == nil || *flag.ReviewedByID != reviewer {
		t.Error("reviewer not stamped")
	}

	// The underlying message must be gone after a deleted resolution.
	if _, err := msgRepo.GetByID(ctx, m.ID); err == nil {
		t.Fatal("expected message to be deleted")
	}
}

func TestFlagRepository_ReviewMissingFlag(t *testing.T) {
	flags, _ := newFlagFixture()

	_, err := flags.Review(context.Background(), uuid.New(), uuid.New(), models.ResolutionApproved)
	if err == nil {
		t.Fatal("expected error for missing flag")
	}
}

func TestFlagRepository_ReviewInvalidAction(t *testing.T) {
	flags, msgRepo := newFlagFixture()
	ctx := context.Background()
	m := newTestMessage(t, msgRepo, "meh")
	if _, err := flags.Flag(ctx, m, models.ReasonSpam, models.SeverityLow, nil, true); err != nil {
		t.Fatalf("Flag failed: %v", err)
	}

	if _, err := flags.Review(ctx, m.ID, uuid.New(), models.ResolutionAction("shredded")); err == nil {
		t.Fatal("expected error for invalid action")
	}
}

func TestFlagRepository_ListFilters(t *testing.T) {
	flags, msgRepo := newFlagFixture()
	ctx := context.Background()

	m1 := newTestMessage(t, msgRepo, "one")
	m2 := newTestMessage(t, msgRepo, "two")
	m3 := newTestMessage(t, msgRepo, "three")

	mustFlag := func(m *models.Message, reason models.FlagReason, sev models.Severity) {
		t.Helper()
		if _, err := flags.Flag(ctx, m, reason, sev, nil, true); err != nil {
			t.Fatalf("Flag failed: %v", err)
		}
	}
	mustFlag(m1, models.ReasonSpam, models.SeverityLow)
	mustFlag(m2, models.ReasonProfanity, models.SeverityHigh)
	mustFlag(m3, models.ReasonSpam, models.SeverityMedium)

	if _, err := flags.Review(ctx, m1.ID, uuid.New(), models.ResolutionApproved); err != nil {
		t.Fatalf("Review failed: %v", err)
	}

	all, err := flags.List(ctx, models.FlagFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List all = %d, want 3", len(all))
	}

	unreviewed := false
	filtered, err := flags.List(ctx, models.FlagFilter{Reviewed: &unreviewed})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("unreviewed = %d, want 2", len(filtered))
	}

	spam := models.ReasonSpam
	filtered, err = flags.List(ctx, models.FlagFilter{Reason: &spam})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("spam flags = %d, want 2", len(filtered))
	}

	high := models.SeverityHigh
	filtered, err = flags.List(ctx, models.FlagFilter{Severity: &high})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].MessageID != m2.ID {
		t.Errorf("high severity flags = %v, want only m2", filtered)
	}
}

func TestStats(t *testing.T) {
	reviewer := uuid.New()
	now := time.Now()
	res := models.ResolutionApproved
	flagged := []models.FlaggedMessage{
		{MessageID: uuid.New(), Reason: models.ReasonSpam, Severity: models.SeverityLow, AutoFlagged: true},
		{MessageID: uuid.New(), Reason: models.ReasonSpam, Severity: models.SeverityMedium, AutoFlagged: true},
		{MessageID: uuid.New(), Reason: models.ReasonProfanity, Severity: models.SeverityHigh, AutoFlagged: false, FlaggedByID: &reviewer},
		{
			MessageID: uuid.New(), Reason: models.ReasonHarassment, Severity: models.SeverityHigh,
			AutoFlagged: true, Reviewed: true, ReviewedByID: &reviewer, ReviewedAt: &now, Resolution: &res,
		},
	}

	stats := Stats(flagged)
	if stats.Total != 4 {
		t.Errorf("Total = %d, want 4", stats.Total)
	}
	if stats.Unreviewed != 3 {
		t.Errorf("Unreviewed = %d, want 3", stats.Unreviewed)
	}
	if stats.AutoFlagged != 3 || stats.ManualFlagged != 1 {
		t.Errorf("auto/manual = %d/%d, want 3/1", stats.AutoFlagged, stats.ManualFlagged)
	}

	// The severity and reason breakdowns cover the unreviewed queue.
	sevSum := 0
	for _, n := range stats.BySeverity {
		sevSum += n
	}
	if sevSum != stats.Unreviewed {
		t.Errorf("BySeverity sum = %d, want %d", sevSum, stats.Unreviewed)
	}
	reasonSum := 0
	for _, n := range stats.ByReason {
		reasonSum += n
	}
	if reasonSum != stats.Unreviewed {
		t.Errorf("ByReason sum = %d, want %d", reasonSum, stats.Unreviewed)
	}
	if stats.Total != stats.Unreviewed+1 {
		t.Errorf("reviewed count mismatch: total %d, unreviewed %d", stats.Total, stats.Unreviewed)
	}
}

func TestStats_Empty(t *testing.T) {
	stats := Stats(nil)
	if stats.Total != 0 || stats.Unreviewed != 0 {
		t.Fatalf("empty stats = %+v", stats)
	}
}
