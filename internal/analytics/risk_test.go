package analytics

import (
	"testing"
	"time"

	"github.com/parley/backend/internal/models"
)

func TestRiskScore_Signals(t *testing.T) {
	tests := []struct {
		name    string
		metrics models.UserBehaviorMetrics
		want    int
	}{
		{
			name:    "No signals",
			metrics: models.UserBehaviorMetrics{},
			want:    0,
		},
		{
			name:    "High volume only",
			metrics: models.UserBehaviorMetrics{MessageCount: 50, MessagesPerHour: 11, AvgMessageLength: 40},
			want:    20,
		},
		{
			name:    "High flag ratio only",
			metrics: models.UserBehaviorMetrics{MessageCount: 10, FlaggedMessageRatio: 0.2, AvgMessageLength: 40},
			want:    30,
		},
		{
			name: "Negative sentiment only",
			metrics: models.UserBehaviorMetrics{
				MessageCount:     5,
				AvgMessageLength: 40,
				SentimentTrend: []models.SentimentBucket{
					{Comparative: -0.8},
					{Comparative: -0.6},
				},
			},
			want: 25,
		},
		{
			name:    "Rapid fire only",
			metrics: models.UserBehaviorMetrics{MessageCount: 5, AvgMessageLength: 40, AvgResponseTime: 2 * time.Second},
			want:    15,
		},
		{
			name:    "Short messages only",
			metrics: models.UserBehaviorMetrics{MessageCount: 5, AvgMessageLength: 4},
			want:    10,
		},
		{
			name: "All signals cap at 100",
			metrics: models.UserBehaviorMetrics{
				MessageCount:        100,
				MessagesPerHour:     50,
				FlaggedMessageRatio: 0.5,
				AvgMessageLength:    3,
				AvgResponseTime:     time.Second,
				SentimentTrend:      []models.SentimentBucket{{Comparative: -1}},
			},
			want: 100,
		},
		{
			name:    "No replies contributes nothing",
			metrics: models.UserBehaviorMetrics{MessageCount: 5, AvgMessageLength: 40, AvgResponseTime: 0},
			want:    0,
		},
		{
			name:    "Short average without messages contributes nothing",
			metrics: models.UserBehaviorMetrics{MessageCount: 0, AvgMessageLength: 0},
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RiskScore(&tt.metrics); got != tt.want {
				t.Errorf("RiskScore() = %d, want %d", got, tt.want)
			}
		})
	}
}

// Adding a signal on top of any base metrics must never lower the score,
// and the score must stay inside [0,100].
func TestRiskScore_MonotonicAndBounded(t *testing.T) {
	base := models.UserBehaviorMetrics{MessageCount: 20, AvgMessageLength: 50}
	prev := RiskScore(&base)

	steps := []func(*models.UserBehaviorMetrics){
		func(m *models.UserBehaviorMetrics) { m.MessagesPerHour = 20 },
		func(m *models.UserBehaviorMetrics) { m.FlaggedMessageRatio = 0.3 },
		func(m *models.UserBehaviorMetrics) {
			m.SentimentTrend = []models.SentimentBucket{{Comparative: -0.9}}
		},
		func(m *models.UserBehaviorMetrics) { m.AvgResponseTime = time.Second },
		func(m *models.UserBehaviorMetrics) { m.AvgMessageLength = 5 },
	}

	for i, step := range steps {
		step(&base)
		got := RiskScore(&base)
		if got < prev {
			t.Fatalf("step %d: score decreased from %d to %d", i, prev, got)
		}
		if got < 0 || got > 100 {
			t.Fatalf("step %d: score %d out of bounds", i, got)
		}
		prev = got
	}
	if prev != 100 {
		t.Fatalf("all signals should reach the cap, got %d", prev)
	}
}
