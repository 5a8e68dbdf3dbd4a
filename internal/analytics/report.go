package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/parley/backend/internal/models"
	"github.com/parley/backend/internal/repository"
)

// Insight rule thresholds, evaluated in fixed order. Each triggered rule
// appends exactly one insight and one paired recommendation.
const (
	lowEngagementRatio   = 0.10
	highFlagRatio        = 0.05
	slowReviewThreshold  = time.Hour
	highRiskScore        = 70
	sentimentDeclineGate = -0.2
	behaviorUserCount    = 5
)

// ReportGenerator composes chat analytics, moderation effectiveness, and
// per-user behavior metrics into a persisted report.
type ReportGenerator struct {
	chat     *ChatAggregator
	behavior *BehaviorAnalyzer
	flags    *repository.FlagRepository
	reports  *repository.ReportRepository
	log      zerolog.Logger
}

func NewReportGenerator(chat *ChatAggregator, behavior *BehaviorAnalyzer, flags *repository.FlagRepository, reports *repository.ReportRepository, log zerolog.Logger) *ReportGenerator {
	return &ReportGenerator{chat: chat, behavior: behavior, flags: flags, reports: reports, log: log}
}

// Generate builds, persists, and returns a report for the requested
// window. Custom reports require both start and end.
func (g *ReportGenerator) Generate(ctx context.Context, reportType models.ReportType, start, end *time.Time, requestedBy uuid.UUID) (*models.AnalyticsReport, error) {
	now := time.Now()
	var windowStart, windowEnd time.Time

	switch reportType {
	case models.ReportDaily:
		windowStart, windowEnd = now.AddDate(0, 0, -1), now
	case models.ReportWeekly:
		windowStart, windowEnd = now.AddDate(0, 0, -7), now
	case models.ReportMonthly:
		windowStart, windowEnd = now.AddDate(0, 0, -30), now
	case models.ReportCustom:
		if start == nil || end == nil {
			return nil, fmt.Errorf("custom report requires both start and end")
		}
		if !start.Before(*end) {
			return nil, fmt.Errorf("custom report start must precede end")
		}
		windowStart, windowEnd = *start, *end
	default:
		return nil, fmt.Errorf("invalid report type %q", reportType)
	}

	report := &models.AnalyticsReport{
		ID:            uuid.New(),
		Type:          reportType,
		WindowStart:   windowStart,
		WindowEnd:     windowEnd,
		GeneratedAt:   now,
		GeneratedByID: requestedBy,
	}

	// The two aggregations are independent; run them concurrently and
	// wait before the behavior pass, which needs the chat result.
	var chat *models.ChatAnalytics
	var effectiveness models.ModerationEffectiveness

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		var err error
		chat, err = g.chat.Aggregate(grpCtx, windowStart, windowEnd)
		return err
	})
	grp.Go(func() error {
		var err error
		effectiveness, err = g.moderationEffectiveness(grpCtx, windowStart, windowEnd)
		return err
	})
	if err := grp.Wait(); err != nil {
		return nil, fmt.Errorf("failed to aggregate report data: %w", err)
	}
	report.Chat = *chat
	report.Moderation = effectiveness

	windowDays := chat.WindowDays
	if windowDays <= 0 {
		windowDays = 1
	}
	for i, u := range chat.TopUsers {
		if i >= behaviorUserCount {
			break
		}
		metrics, err := g.behavior.Analyze(ctx, u.UserID, windowDays)
		if err != nil {
			return nil, fmt.Errorf("failed to analyze user %s: %w", u.UserID, err)
		}
		report.Behavior = append(report.Behavior, *metrics)
	}

	report.Insights, report.Recommendations = buildInsights(report)

	if err := g.reports.Save(ctx, report); err != nil {
		return nil, err
	}
	g.log.Info().
		Str("report_id", report.ID.String()).
		Str("type", string(reportType)).
		Int("messages", chat.TotalMessages).
		Int("insights", len(report.Insights)).
		Msg("generated analytics report")
	return report, nil
}

// moderationEffectiveness summarizes reviewed flags created in the window.
func (g *ReportGenerator) moderationEffectiveness(ctx context.Context, start, end time.Time) (models.ModerationEffectiveness, error) {
	eff := models.ModerationEffectiveness{ByReason: map[models.FlagReason]int{}}

	flags, err := g.flags.List(ctx, models.FlagFilter{})
	if err != nil {
		return eff, fmt.Errorf("failed to load flags: %w", err)
	}

	type modAcc struct {
		reviewed, deleted, approved int
		reviewTime                  time.Duration
	}
	perMod := map[uuid.UUID]*modAcc{}

	var totalReviewTime time.Duration
	reviewed, deleted, approved := 0, 0, 0

	for _, f := range flags {
		if f.FlaggedAt.Before(start) || f.FlaggedAt.After(end) {
			continue
		}
		eff.ByReason[f.Reason]++
		if !f.Reviewed || f.ReviewedAt == nil || f.ReviewedByID == nil {
			continue
		}

		latency := f.ReviewedAt.Sub(f.FlaggedAt)
		totalReviewTime += latency
		reviewed++

		acc := perMod[*f.ReviewedByID]
		if acc == nil {
			acc = &modAcc{}
			perMod[*f.ReviewedByID] = acc
		}
		acc.reviewed++
		acc.reviewTime += latency

		if f.Resolution == nil {
			continue
		}
		switch *f.Resolution {
		case models.ResolutionDeleted:
			deleted++
			acc.deleted++
		case models.ResolutionApproved:
			approved++
			acc.approved++
		}
	}

	if reviewed > 0 {
		eff.AvgReviewTime = totalReviewTime / time.Duration(reviewed)
	}
	if deleted+approved > 0 {
		eff.AccuracyRate = float64(deleted) / float64(deleted+approved)
		eff.FalsePositiveRate = float64(approved) / float64(deleted+approved)
	}

	ids := make([]uuid.UUID, 0, len(perMod))
	for id := range perMod {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		acc := perMod[id]
		eff.ByModerator = append(eff.ByModerator, models.ModeratorStats{
			ModeratorID:   id,
			Reviewed:      acc.reviewed,
			Deleted:       acc.deleted,
			Approved:      acc.approved,
			AvgReviewTime: acc.reviewTime / time.Duration(acc.reviewed),
		})
	}
	return eff, nil
}

// buildInsights runs the rule-based text synthesis. Rules fire in fixed
// order and each appends one insight plus one recommendation.
func buildInsights(report *models.AnalyticsReport) (insights, recommendations []string) {
	chat := report.Chat

	if chat.RegisteredUsers > 0 &&
		float64(chat.ActiveUsers24h) < lowEngagementRatio*float64(chat.RegisteredUsers) {
		insights = append(insights, fmt.Sprintf(
			"Only %d of %d registered users were active in the last 24 hours.",
			chat.ActiveUsers24h, chat.RegisteredUsers))
		recommendations = append(recommendations,
			"Consider an engagement campaign or digest notifications to bring users back.")
	}

	if chat.TotalMessages > 0 && chat.Moderation.FlaggedRatio > highFlagRatio {
		insights = append(insights, fmt.Sprintf(
			"%.1f%% of messages in the window were flagged, above the %.0f%% threshold.",
			chat.Moderation.FlaggedRatio*100, highFlagRatio*100))
		recommendations = append(recommendations,
			"Review the moderation rules for gaps and consider tightening pre-send validation.")
	}

	if report.Moderation.AvgReviewTime > slowReviewThreshold {
		insights = append(insights, fmt.Sprintf(
			"Average flag review time is %s, above the one hour target.",
			report.Moderation.AvgReviewTime.Round(time.Minute)))
		recommendations = append(recommendations,
			"Add moderator coverage or prioritize high severity flags in the review queue.")
	}

	highRisk := 0
	for _, b := range report.Behavior {
		if b.RiskScore > highRiskScore {
			highRisk++
		}
	}
	if highRisk > 0 {
		insights = append(insights, fmt.Sprintf(
			"%d highly active user(s) scored above %d on the behavior risk scale.",
			highRisk, highRiskScore))
		recommendations = append(recommendations,
			"Have a moderator review the recent history of the high risk users.")
	}

	if rollingSentiment(chat.DailySentiment, 7) < sentimentDeclineGate {
		insights = append(insights,
			"Average sentiment over the last seven days is trending negative.")
		recommendations = append(recommendations,
			"Investigate recent conversations for conflicts or recurring complaints.")
	}

	return insights, recommendations
}

// rollingSentiment averages the last n daily buckets; 0 with no data.
func rollingSentiment(series []models.SentimentBucket, n int) float64 {
	if len(series) == 0 {
		return 0
	}
	if len(series) > n {
		series = series[len(series)-n:]
	}
	sum := 0.0
	for _, b := range series {
		sum += b.Comparative
	}
	return sum / float64(len(series))
}
