package analytics

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/parley/backend/internal/models"
	"github.com/parley/backend/internal/repository"
	"github.com/parley/backend/internal/store"
)

func newBehaviorFixture() (*BehaviorAnalyzer, *repository.MessageRepository, *repository.FlagRepository) {
	s := store.NewMemoryStore()
	msgRepo := repository.NewMessageRepository(s)
	flagRepo := repository.NewFlagRepository(s, msgRepo)
	return NewBehaviorAnalyzer(msgRepo, flagRepo), msgRepo, flagRepo
}

func seedMessage(t *testing.T, repo *repository.MessageRepository, author uuid.UUID, body string, at time.Time) *models.Message {
	t.Helper()
	m := &models.Message{
		ID:        uuid.New(),
		ChannelID: models.DefaultChannel,
		AuthorID:  author,
		Body:      body,
		CreatedAt: at,
		Validated: true,
	}
	if err := repo.Create(context.Background(), m); err != nil {
		t.Fatalf("failed to seed message: %v", err)
	}
	return m
}

func TestBehaviorAnalyzer_EmptyHistory(t *testing.T) {
	analyzer, _, _ := newBehaviorFixture()

	metrics, err := analyzer.Analyze(context.Background(), uuid.New(), 30)
	if err != nil {
		t.Fatalf("expected no error for empty history, got %v", err)
	}
	if metrics.MessageCount != 0 {
		t.Errorf("MessageCount = %d, want 0", metrics.MessageCount)
	}
	if metrics.RiskScore != 0 {
		t.Errorf("RiskScore = %d, want 0", metrics.RiskScore)
	}
	if metrics.AvgMessageLength != 0 || metrics.MessagesPerHour != 0 {
		t.Errorf("expected zeroed record, got %+v", metrics)
	}
}

func TestBehaviorAnalyzer_Scenario(t *testing.T) {
	analyzer, msgRepo, _ := newBehaviorFixture()
	user := uuid.New()

	now := time.Now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if day.Add(11 * time.Hour).After(now) {
		day = day.AddDate(0, 0, -1) // keep all three samples in the past
	}

	seedMessage(t, msgRepo, user, "great great awesome", day.Add(9*time.Hour))
	seedMessage(t, msgRepo, user, "ok", day.Add(9*time.Hour+5*time.Minute))
	seedMessage(t, msgRepo, user, "worthless hate", day.Add(10*time.Hour))

	metrics, err := analyzer.Analyze(context.Background(), user, 2)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if metrics.MessageCount != 3 {
		t.Fatalf("MessageCount = %d, want 3", metrics.MessageCount)
	}
	if math.Abs(metrics.AvgWordsPerMessage-2.0) > 1e-9 {
		t.Errorf("AvgWordsPerMessage = %f, want 2.0", metrics.AvgWordsPerMessage)
	}
	if len(metrics.PeakActivityHours) == 0 || metrics.PeakActivityHours[0] != 9 {
		t.Errorf("PeakActivityHours = %v, want hour 9 first", metrics.PeakActivityHours)
	}
	if len(metrics.SentimentTrend) != 1 {
		t.Fatalf("SentimentTrend buckets = %d, want 1", len(metrics.SentimentTrend))
	}
	bucket := metrics.SentimentTrend[0]
	if bucket.MessageCount != 3 {
		t.Errorf("bucket MessageCount = %d, want 3", bucket.MessageCount)
	}
	// Comparatives 1.0, 0, -1.0 average out to zero.
	if math.Abs(bucket.Comparative) > 1e-9 {
		t.Errorf("bucket Comparative = %f, want 0", bucket.Comparative)
	}
	if metrics.MessagesPerHour <= 0 {
		t.Errorf("MessagesPerHour = %f, want > 0", metrics.MessagesPerHour)
	}
}

func TestBehaviorAnalyzer_FlaggedRatioAndRisk(t *testing.T) {
	analyzer, msgRepo, flagRepo := newBehaviorFixture()
	user := uuid.New()
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 4; i++ {
		m := seedMessage(t, msgRepo, user, "bad", base.Add(time.Duration(i)*time.Second))
		if i < 2 {
			if _, err := flagRepo.Flag(ctx, m, models.ReasonSpam, models.SeverityMedium, nil, true); err != nil {
				t.Fatalf("failed to flag: %v", err)
			}
		}
	}

	metrics, err := analyzer.Analyze(ctx, user, 7)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if math.Abs(metrics.FlaggedMessageRatio-0.5) > 1e-9 {
		t.Errorf("FlaggedMessageRatio = %f, want 0.5", metrics.FlaggedMessageRatio)
	}
	// Four short flagged messages seconds apart trip volume, flag ratio,
	// rapid-fire, and short-message signals.
	if metrics.RiskScore < 75 {
		t.Errorf("RiskScore = %d, want >= 75", metrics.RiskScore)
	}
}

func TestBehaviorAnalyzer_WindowExcludesOldMessages(t *testing.T) {
	analyzer, msgRepo, _ := newBehaviorFixture()
	user := uuid.New()

	seedMessage(t, msgRepo, user, "ancient history", time.Now().AddDate(0, 0, -40))
	seedMessage(t, msgRepo, user, "recent note", time.Now().Add(-time.Hour))

	metrics, err := analyzer.Analyze(context.Background(), user, 7)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if metrics.MessageCount != 1 {
		t.Errorf("MessageCount = %d, want 1 (window should exclude old message)", metrics.MessageCount)
	}
}
