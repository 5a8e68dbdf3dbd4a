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

const (
	topUserCount  = 10
	wordCloudSize = 50
)

// ChatAggregator computes the system-wide window-bounded analytics from a
// point-in-time snapshot of messages, flags, and profiles.
type ChatAggregator struct {
	messages *repository.MessageRepository
	flags    *repository.FlagRepository
	users    *repository.UserRepository
}

func NewChatAggregator(messages *repository.MessageRepository, flags *repository.FlagRepository, users *repository.UserRepository) *ChatAggregator {
	return &ChatAggregator{messages: messages, flags: flags, users: users}
}

// Aggregate computes analytics for messages between start and end.
// All divide-by-zero paths degrade to zero values rather than failing.
func (a *ChatAggregator) Aggregate(ctx context.Context, start, end time.Time) (*models.ChatAnalytics, error) {
	windowDays := int(end.Sub(start).Hours()/24 + 0.5)
	analytics := &models.ChatAnalytics{WindowDays: windowDays}

	all, err := a.messages.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	profiles, err := a.users.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	flagged, err := a.flags.List(ctx, models.FlagFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	analytics.RegisteredUsers = len(profiles)
	emails := map[uuid.UUID]models.UserProfile{}
	for _, p := range profiles {
		emails[p.ID] = p
	}

	// Active users are counted over the trailing 24h regardless of the
	// requested window.
	dayAgo := time.Now().Add(-24 * time.Hour)
	active24 := map[uuid.UUID]bool{}

	hourly := map[int]int{}
	daily := map[time.Time]*sentimentAcc{}
	perUser := map[uuid.UUID]int{}
	channels := map[string]*channelAcc{}
	texts := []string{}

	for _, m := range all {
		if !m.CreatedAt.Before(dayAgo) {
			active24[m.AuthorID] = true
		}
		if m.CreatedAt.Before(start) || m.CreatedAt.After(end) {
			continue
		}

		analytics.TotalMessages++
		hourly[m.CreatedAt.Hour()]++
		perUser[m.AuthorID]++
		texts = append(texts, m.Body)

		day := m.CreatedAt.Truncate(24 * time.Hour)
		if daily[day] == nil {
			daily[day] = &sentimentAcc{}
		}
		_, comparative := Sentiment(m.Body)
		daily[day].sum += comparative
		daily[day].count++

		ch := m.ChannelID
		if ch == "" {
			ch = models.DefaultChannel
		}
		if channels[ch] == nil {
			channels[ch] = &channelAcc{users: map[uuid.UUID]bool{}}
		}
		channels[ch].messages++
		channels[ch].users[m.AuthorID] = true
	}

	analytics.ActiveUsers24h = len(active24)
	if analytics.RegisteredUsers > 0 {
		analytics.AvgMessagesPerUser = float64(analytics.TotalMessages) / float64(analytics.RegisteredUsers)
	}

	analytics.PeakHours = rankHours(hourly)
	analytics.DailySentiment = dailySeries(daily)
	analytics.Moderation = moderationFunnel(flagged, start, end, analytics.TotalMessages)
	analytics.TopUsers = rankUsers(perUser, emails, topUserCount)

	for _, kw := range KeywordCounts(texts, wordCloudSize) {
		analytics.WordFrequency = append(analytics.WordFrequency, models.KeywordCount{Word: kw.Word, Count: kw.Count})
	}

	names := make([]string, 0, len(channels))
	for name := range channels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		analytics.Channels = append(analytics.Channels, models.ChannelStats{
			ChannelID:    name,
			MessageCount: channels[name].messages,
			UserCount:    len(channels[name].users),
		})
	}

	return analytics, nil
}

type sentimentAcc struct {
	sum   float64
	count int
}

type channelAcc struct {
	messages int
	users    map[uuid.UUID]bool
}

func rankHours(hourly map[int]int) []models.HourCount {
	ranked := make([]models.HourCount, 0, len(hourly))
	for h, c := range hourly {
		ranked = append(ranked, models.HourCount{Hour: h, Count: c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Hour < ranked[j].Hour
	})
	return ranked
}

func dailySeries(daily map[time.Time]*sentimentAcc) []models.SentimentBucket {
	days := make([]time.Time, 0, len(daily))
	for d := range daily {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	series := make([]models.SentimentBucket, 0, len(days))
	for _, d := range days {
		acc := daily[d]
		series = append(series, models.SentimentBucket{
			BucketStart:  d,
			Comparative:  acc.sum / float64(acc.count),
			MessageCount: acc.count,
		})
	}
	return series
}

// moderationFunnel counts flags created within the window. Manual flags
// are the remainder after auto flags; resolution counts cover reviewed
// flags only.
func moderationFunnel(flags []models.FlaggedMessage, start, end time.Time, totalMessages int) models.ModerationFunnel {
	funnel := models.ModerationFunnel{}
	for _, f := range flags {
		if f.FlaggedAt.Before(start) || f.FlaggedAt.After(end) {
			continue
		}
		funnel.TotalFlagged++
		if f.AutoFlagged {
			funnel.AutoFlagged++
		}
		if f.Resolution != nil {
			switch *f.Resolution {
			case models.ResolutionDeleted:
				funnel.DeletedMessages++
			case models.ResolutionApproved:
				funnel.ApprovedMessages++
			}
		}
	}
	funnel.ManualFlagged = funnel.TotalFlagged - funnel.AutoFlagged
	if totalMessages > 0 {
		funnel.FlaggedRatio = float64(funnel.TotalFlagged) / float64(totalMessages)
	}
	return funnel
}

func rankUsers(perUser map[uuid.UUID]int, profiles map[uuid.UUID]models.UserProfile, top int) []models.TopUser {
	ranked := make([]models.TopUser, 0, len(perUser))
	for id, count := range perUser {
		entry := models.TopUser{UserID: id, MessageCount: count}
		if p, ok := profiles[id]; ok {
			entry.Email = p.Email
			entry.DisplayName = p.DisplayName
		}
		ranked = append(ranked, entry)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].MessageCount != ranked[j].MessageCount {
			return ranked[i].MessageCount > ranked[j].MessageCount
		}
		return ranked[i].UserID.String() < ranked[j].UserID.String()
	})
	if len(ranked) > top {
		ranked = ranked[:top]
	}
	return ranked
}
