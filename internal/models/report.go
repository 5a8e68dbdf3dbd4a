package models

import (
	"time"

	"github.com/google/uuid"
)

// ReportType selects the aggregation window of a report.
type ReportType string

const (
	ReportDaily   ReportType = "daily"
	ReportWeekly  ReportType = "weekly"
	ReportMonthly ReportType = "monthly"
	ReportCustom  ReportType = "custom"
)

// ModeratorStats breaks review activity down per moderator.
type ModeratorStats struct {
	ModeratorID   uuid.UUID     `json:"moderator_id"`
	Reviewed      int           `json:"reviewed"`
	Deleted       int           `json:"deleted"`
	Approved      int           `json:"approved"`
	AvgReviewTime time.Duration `json:"avg_review_time"`
}

// ModerationEffectiveness summarizes how well review is keeping up.
// AccuracyRate treats a deletion as a confirmed catch; FalsePositiveRate
// treats an approval as a rule misfire.
type ModerationEffectiveness struct {
	AvgReviewTime     time.Duration      `json:"avg_review_time"`
	AccuracyRate      float64            `json:"accuracy_rate"`
	FalsePositiveRate float64            `json:"false_positive_rate"`
	ByModerator       []ModeratorStats   `json:"by_moderator"`
	ByReason          map[FlagReason]int `json:"by_reason"`
}

// AnalyticsReport is assembled once by the report generator and immutable
// afterwards; retention cleanup is the only thing that touches it again.
type AnalyticsReport struct {
	ID              uuid.UUID               `json:"id"`
	Type            ReportType              `json:"type"`
	WindowStart     time.Time               `json:"window_start"`
	WindowEnd       time.Time               `json:"window_end"`
	GeneratedAt     time.Time               `json:"generated_at"`
	GeneratedByID   uuid.UUID               `json:"generated_by_id"`
	Chat            ChatAnalytics           `json:"chat"`
	Behavior        []UserBehaviorMetrics   `json:"behavior"`
	Moderation      ModerationEffectiveness `json:"moderation"`
	Insights        []string                `json:"insights"`
	Recommendations []string                `json:"recommendations"`
}

type GenerateReportRequest struct {
	Type  ReportType `json:"type" binding:"required"`
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}
