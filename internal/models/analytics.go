package models

import (
	"time"

	"github.com/google/uuid"
)

// SentimentBucket is an averaged sentiment sample over one time bucket
// (a week for per-user trends, a day for system-wide series).
type SentimentBucket struct {
	BucketStart  time.Time `json:"bucket_start"`
	Comparative  float64   `json:"comparative"`
	MessageCount int       `json:"message_count"`
}

// KeywordCount is one entry of a frequency-ranked keyword table.
type KeywordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// HourCount ranks an hour of day by message volume.
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// UserBehaviorMetrics is the derived, window-bounded per-user aggregate.
// It is computed on demand and never persisted.
type UserBehaviorMetrics struct {
	UserID              uuid.UUID         `json:"user_id"`
	WindowDays          int               `json:"window_days"`
	MessageCount        int               `json:"message_count"`
	AvgMessageLength    float64           `json:"avg_message_length"`
	AvgWordsPerMessage  float64           `json:"avg_words_per_message"`
	MessagesPerHour     float64           `json:"messages_per_hour"`
	HourlyHistogram     [24]int           `json:"hourly_histogram"`
	PeakActivityHours   []int             `json:"peak_activity_hours"`
	SentimentTrend      []SentimentBucket `json:"sentiment_trend"`
	FlaggedMessageRatio float64           `json:"flagged_message_ratio"`
	AvgResponseTime     time.Duration     `json:"avg_response_time"`
	TopKeywords         []KeywordCount    `json:"top_keywords"`
	RiskScore           int               `json:"risk_score"`
}

// ModerationFunnel counts flags through the review pipeline inside a window.
type ModerationFunnel struct {
	TotalFlagged     int     `json:"total_flagged"`
	AutoFlagged      int     `json:"auto_flagged"`
	ManualFlagged    int     `json:"manual_flagged"`
	DeletedMessages  int     `json:"deleted_messages"`
	ApprovedMessages int     `json:"approved_messages"`
	FlaggedRatio     float64 `json:"flagged_ratio"`
}

// TopUser is one row of the most-active-users ranking.
type TopUser struct {
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	MessageCount int       `json:"message_count"`
}

// ChannelStats breaks volume down per channel.
type ChannelStats struct {
	ChannelID    string `json:"channel_id"`
	MessageCount int    `json:"message_count"`
	UserCount    int    `json:"user_count"`
}

// ChatAnalytics is the derived, window-bounded system-wide aggregate.
type ChatAnalytics struct {
	WindowDays         int               `json:"window_days"`
	TotalMessages      int               `json:"total_messages"`
	ActiveUsers24h     int               `json:"active_users_24h"`
	RegisteredUsers    int               `json:"registered_users"`
	AvgMessagesPerUser float64           `json:"avg_messages_per_user"`
	PeakHours          []HourCount       `json:"peak_hours"`
	DailySentiment     []SentimentBucket `json:"daily_sentiment"`
	Moderation         ModerationFunnel  `json:"moderation"`
	TopUsers           []TopUser         `json:"top_users"`
	WordFrequency      []KeywordCount    `json:"word_frequency"`
	Channels           []ChannelStats    `json:"channels"`
}
