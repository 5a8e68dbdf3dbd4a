package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/parley/backend/internal/models"
	"github.com/parley/backend/internal/repository"
)

// replyGapCeiling bounds what counts as a reply when inferring response
// times; longer gaps are treated as new conversations, not replies.
const replyGapCeiling = 5 * time.Minute

// topKeywordCount and peakHourCount size the per-user rankings.
const (
	topKeywordCount = 10
	peakHourCount   = 3
)

// BehaviorAnalyzer computes window-bounded per-user aggregates from a
// snapshot of stored messages and flags.
type BehaviorAnalyzer struct {
	messages *repository.MessageRepository
	flags    *repository.FlagRepository
}

func NewBehaviorAnalyzer(messages *repository.MessageRepository, flags *repository.FlagRepository) *BehaviorAnalyzer {
	return &BehaviorAnalyzer{messages: messages, flags: flags}
}

// Analyze aggregates the user's messages over the trailing window. A user
// with no messages in the window gets a zeroed record with risk 0.
func (a *BehaviorAnalyzer) Analyze(ctx context.Context, userID uuid.UUID, windowDays int) (*models.UserBehaviorMetrics, error) {
	if windowDays <= 0 {
		windowDays = 30
	}
	metrics := &models.UserBehaviorMetrics{UserID: userID, WindowDays: windowDays}

	since := time.Now().AddDate(0, 0, -windowDays)
	all, err := a.messages.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	mine := []models.Message{}
	for _, m := range all {
		if m.AuthorID == userID && !m.CreatedAt.Before(since) {
			mine = append(mine, m)
		}
	}
	if len(mine) == 0 {
		return metrics, nil
	}
	// ListAll returns ascending order already; everything below relies on it.

	metrics.MessageCount = len(mine)

	totalChars, totalWords := 0, 0
	texts := make([]string, 0, len(mine))
	for _, m := range mine {
		totalChars += len(m.Body)
		totalWords += len(Tokenize(m.Body))
		texts = append(texts, m.Body)
		metrics.HourlyHistogram[m.CreatedAt.Hour()]++
	}
	metrics.AvgMessageLength = float64(totalChars) / float64(len(mine))
	metrics.AvgWordsPerMessage = float64(totalWords) / float64(len(mine))

	// Span-based rate; a single message has no span and scores 0.
	span := mine[len(mine)-1].CreatedAt.Sub(mine[0].CreatedAt)
	if span > 0 {
		metrics.MessagesPerHour = float64(len(mine)) / span.Hours()
	}

	metrics.PeakActivityHours = peakHours(metrics.HourlyHistogram, peakHourCount)
	metrics.SentimentTrend = weeklySentiment(mine)
	metrics.AvgResponseTime = avgReplyGap(mine)

	flagged, err := a.flags.List(ctx, models.FlagFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}
	flagCount := 0
	for _, f := range flagged {
		if f.AuthorID == userID && !f.SentAt.Before(since) {
			flagCount++
		}
	}
	metrics.FlaggedMessageRatio = float64(flagCount) / float64(len(mine))

	kws := KeywordCounts(texts, topKeywordCount)
	for _, kw := range kws {
		metrics.TopKeywords = append(metrics.TopKeywords, models.KeywordCount{Word: kw.Word, Count: kw.Count})
	}

	metrics.RiskScore = RiskScore(metrics)
	return metrics, nil
}

// peakHours returns the top n hours by message count, busiest first.
// Hours with no traffic are skipped.
func peakHours(histogram [24]int, n int) []int {
	hours := []int{}
	for h := 0; h < 24; h++ {
		if histogram[h] > 0 {
			hours = append(hours, h)
		}
	}
	sort.Slice(hours, func(i, j int) bool {
		if histogram[hours[i]] != histogram[hours[j]] {
			return histogram[hours[i]] > histogram[hours[j]]
		}
		return hours[i] < hours[j]
	})
	if len(hours) > n {
		hours = hours[:n]
	}
	return hours
}

// weekStart truncates t to the preceding Sunday at midnight.
func weekStart(t time.Time) time.Time {
	t = t.Truncate(24 * time.Hour)
	return t.AddDate(0, 0, -int(t.Weekday()))
}

// weeklySentiment averages per-message comparatives into week buckets,
// keyed by week start (Sunday), oldest first.
func weeklySentiment(messages []models.Message) []models.SentimentBucket {
	type acc struct {
		sum   float64
		count int
	}
	buckets := map[time.Time]*acc{}
	for _, m := range messages {
		_, comparative := Sentiment(m.Body)
		key := weekStart(m.CreatedAt)
		if buckets[key] == nil {
			buckets[key] = &acc{}
		}
		buckets[key].sum += comparative
		buckets[key].count++
	}

	keys := make([]time.Time, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	trend := make([]models.SentimentBucket, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		trend = append(trend, models.SentimentBucket{
			BucketStart:  k,
			Comparative:  b.sum / float64(b.count),
			MessageCount: b.count,
		})
	}
	return trend
}

// avgReplyGap averages consecutive-message gaps under the reply ceiling.
// Zero when the user never replied quickly.
func avgReplyGap(messages []models.Message) time.Duration {
	var total time.Duration
	count := 0
	for i := 1; i < len(messages); i++ {
		gap := messages[i].CreatedAt.Sub(messages[i-1].CreatedAt)
		if gap > 0 && gap < replyGapCeiling {
			total += gap
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / time.Duration(count)
}
