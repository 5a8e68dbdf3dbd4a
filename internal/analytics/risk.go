package analytics

import (
	"time"

	"github.com/parley/backend/internal/models"
)

// Risk signal weights. Each signal contributes its full weight or
// nothing; signals never subtract and the sum is capped at 100.
const (
	riskWeightVolume    = 20 // messagesPerHour above threshold
	riskWeightFlags     = 30 // flagged ratio above threshold
	riskWeightSentiment = 25 // strongly negative average sentiment
	riskWeightRapidFire = 15 // very fast average response time
	riskWeightShortSpam = 10 // very short average message

	riskVolumeThreshold    = 10.0
	riskFlagThreshold      = 0.1
	riskSentimentThreshold = -0.5
	riskResponseThreshold  = 5 * time.Second
	riskLengthThreshold    = 10.0
)

// RiskScore folds behavior metrics into a 0-100 heuristic triage score.
// It is advisory only, not a calibrated probability. Absent signals
// (no messages, no replies, no sentiment data) contribute zero.
func RiskScore(m *models.UserBehaviorMetrics) int {
	score := 0
	if m.MessagesPerHour > riskVolumeThreshold {
		score += riskWeightVolume
	}
	if m.FlaggedMessageRatio > riskFlagThreshold {
		score += riskWeightFlags
	}
	if avgTrendComparative(m.SentimentTrend) < riskSentimentThreshold {
		score += riskWeightSentiment
	}
	if m.AvgResponseTime > 0 && m.AvgResponseTime < riskResponseThreshold {
		score += riskWeightRapidFire
	}
	if m.MessageCount > 0 && m.AvgMessageLength < riskLengthThreshold {
		score += riskWeightShortSpam
	}
	if score > 100 {
		score = 100
	}
	return score
}

// avgTrendComparative averages bucket comparatives; 0 when no buckets.
func avgTrendComparative(trend []models.SentimentBucket) float64 {
	if len(trend) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range trend {
		sum += b.Comparative
	}
	return sum / float64(len(trend))
}
