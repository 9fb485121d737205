package usage

import (
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"wellbeing-server/pkg/models"
)

// App categories used for daily time splits.
const (
	CategorySocial        = "social"
	CategoryEntertainment = "entertainment"
	CategoryProductivity  = "productivity"
	CategoryOther         = "other"
)

// Config holds the aggregation thresholds.
type Config struct {
	// BingeThreshold is the session duration in minutes above which a
	// session counts as a binge session.
	BingeThreshold float64

	// ContinuityGap is the maximum gap between consecutive sessions for
	// them to count as one continuous usage run.
	ContinuityGap time.Duration
}

// DefaultConfig returns the default aggregation thresholds.
func DefaultConfig() *Config {
	return &Config{
		BingeThreshold: 45,
		ContinuityGap:  5 * time.Minute,
	}
}

// Aggregator converts raw usage events into per-day aggregates.
type Aggregator struct {
	logger *logrus.Entry
	config *Config

	// categories maps lowercased app names to a category. A single map
	// keeps the category sets disjoint by construction.
	categories map[string]string
}

// NewAggregator creates a new aggregator with the given thresholds.
// A nil config selects the defaults.
func NewAggregator(logger *logrus.Logger, config *Config) *Aggregator {
	if config == nil {
		config = DefaultConfig()
	}

	return &Aggregator{
		logger:     logger.WithField("component", "usage_aggregator"),
		config:     config,
		categories: defaultCategories(),
	}
}

func defaultCategories() map[string]string {
	categories := make(map[string]string)

	social := []string{"instagram", "tiktok", "whatsapp", "facebook", "twitter", "snapchat"}
	entertainment := []string{"youtube", "netflix", "spotify", "games", "twitch"}
	productivity := []string{"chrome", "email", "calendar", "notes", "office", "documents"}

	for _, app := range social {
		categories[app] = CategorySocial
	}
	for _, app := range entertainment {
		categories[app] = CategoryEntertainment
	}
	for _, app := range productivity {
		categories[app] = CategoryProductivity
	}

	return categories
}

// Category returns the category for an app name. Matching is
// case-insensitive; unknown apps map to "other".
func (a *Aggregator) Category(appName string) string {
	if category, ok := a.categories[strings.ToLower(appName)]; ok {
		return category
	}
	return CategoryOther
}

// ZeroAggregate returns the documented all-zero aggregate for a day with
// no recorded events.
func ZeroAggregate(date time.Time) models.DailyAggregate {
	return models.DailyAggregate{Date: truncateToDay(date)}
}

// AggregateDay aggregates the events falling on the target calendar date.
// The second return value is false when no events exist for that date;
// callers building fixed-size windows must substitute ZeroAggregate.
func (a *Aggregator) AggregateDay(events []models.UsageEvent, date time.Time) (models.DailyAggregate, bool) {
	day := truncateToDay(date)

	var sessions []models.UsageEvent
	for _, event := range events {
		if sameDay(event.Timestamp, day) {
			sessions = append(sessions, event)
		}
	}

	if len(sessions) == 0 {
		return models.DailyAggregate{}, false
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Timestamp.Before(sessions[j].Timestamp)
	})

	agg := models.DailyAggregate{
		Date:         day,
		SessionCount: len(sessions),
	}

	for _, s := range sessions {
		agg.TotalDuration += s.Duration

		// Time-of-day buckets partition the day by hour; their sum always
		// equals the total duration.
		switch hour := s.Timestamp.Hour(); {
		case hour >= 22 || hour < 6:
			agg.NightUsage += s.Duration
		case hour < 12:
			agg.MorningUsage += s.Duration
		case hour < 18:
			agg.AfternoonUsage += s.Duration
		default:
			agg.EveningUsage += s.Duration
		}

		if s.Duration > a.config.BingeThreshold {
			agg.BingeSessions++
		}

		switch a.Category(s.AppName) {
		case CategorySocial:
			agg.SocialMediaTime += s.Duration
		case CategoryEntertainment:
			agg.EntertainmentTime += s.Duration
		case CategoryProductivity:
			agg.ProductivityTime += s.Duration
		}
	}

	other := agg.TotalDuration - agg.SocialMediaTime - agg.EntertainmentTime - agg.ProductivityTime
	if other > 0 {
		agg.OtherTime = other
	}

	agg.MaxContinuousUsage = MaxContinuous(sessions, a.config.ContinuityGap)

	return agg, true
}

// NDayWindow returns exactly n daily aggregates ending at the anchor
// date, oldest first. Days with no events are zero-filled so the window
// always has n entries.
func (a *Aggregator) NDayWindow(events []models.UsageEvent, n int, anchor time.Time) []models.DailyAggregate {
	window := make([]models.DailyAggregate, 0, n)

	for i := n - 1; i >= 0; i-- {
		date := anchor.AddDate(0, 0, -i)
		agg, ok := a.AggregateDay(events, date)
		if !ok {
			agg = ZeroAggregate(date)
		}
		window = append(window, agg)
	}

	return window
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sameDay(t, day time.Time) bool {
	y1, m1, d1 := t.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
