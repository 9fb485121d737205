package usage

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellbeing-server/pkg/models"
)

func testAggregator() *Aggregator {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewAggregator(logger, nil)
}

func eventAt(day time.Time, hour, minute int, app string, duration float64) models.UsageEvent {
	return models.UsageEvent{
		UserID:    "user-1",
		AppName:   app,
		Duration:  duration,
		Timestamp: time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC),
	}
}

func TestAggregateDayBuckets(t *testing.T) {
	day := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)

	events := []models.UsageEvent{
		eventAt(day, 7, 0, "Instagram", 20),  // morning
		eventAt(day, 13, 0, "YouTube", 50),   // afternoon, binge
		eventAt(day, 19, 0, "Chrome", 15),    // evening
		eventAt(day, 23, 0, "TikTok", 30),    // night
		eventAt(day, 2, 0, "Netflix", 60),    // night (early hours), binge
	}

	agg, ok := testAggregator().AggregateDay(events, day)
	require.True(t, ok)

	assert.Equal(t, 5, agg.SessionCount)
	assert.Equal(t, 175.0, agg.TotalDuration)
	assert.Equal(t, 20.0, agg.MorningUsage)
	assert.Equal(t, 50.0, agg.AfternoonUsage)
	assert.Equal(t, 15.0, agg.EveningUsage)
	assert.Equal(t, 90.0, agg.NightUsage)
	assert.Equal(t, 2, agg.BingeSessions)

	assert.Equal(t, 50.0, agg.SocialMediaTime)
	assert.Equal(t, 110.0, agg.EntertainmentTime)
	assert.Equal(t, 15.0, agg.ProductivityTime)
	assert.Equal(t, 0.0, agg.OtherTime)
}

func TestAggregateDayPartitionInvariant(t *testing.T) {
	day := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)

	var events []models.UsageEvent
	for hour := 0; hour < 24; hour++ {
		events = append(events, eventAt(day, hour, 30, "SomeApp", float64(hour+1)))
	}

	agg, ok := testAggregator().AggregateDay(events, day)
	require.True(t, ok)

	buckets := agg.MorningUsage + agg.AfternoonUsage + agg.EveningUsage + agg.NightUsage
	assert.Equal(t, agg.TotalDuration, buckets,
		"time-of-day buckets must partition the total exactly")

	// Unknown app: everything lands in "other" and category splits never
	// exceed the total.
	assert.Equal(t, agg.TotalDuration, agg.OtherTime)
	categories := agg.SocialMediaTime + agg.EntertainmentTime + agg.ProductivityTime + agg.OtherTime
	assert.LessOrEqual(t, categories, agg.TotalDuration)
}

func TestAggregateDayCaseInsensitiveCategories(t *testing.T) {
	day := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)

	events := []models.UsageEvent{
		eventAt(day, 10, 0, "INSTAGRAM", 10),
		eventAt(day, 11, 0, "instagram", 10),
		eventAt(day, 12, 0, "Instagram", 10),
	}

	agg, ok := testAggregator().AggregateDay(events, day)
	require.True(t, ok)
	assert.Equal(t, 30.0, agg.SocialMediaTime)
}

func TestAggregateDayNoEvents(t *testing.T) {
	day := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	other := day.AddDate(0, 0, -1)

	events := []models.UsageEvent{eventAt(other, 10, 0, "Instagram", 10)}

	_, ok := testAggregator().AggregateDay(events, day)
	assert.False(t, ok)
}

func TestNDayWindowZeroFill(t *testing.T) {
	anchor := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)

	// Empty event list: exactly 3 zero-filled aggregates, no failures.
	window := testAggregator().NDayWindow(nil, 3, anchor)
	require.Len(t, window, 3)

	for i, agg := range window {
		expected := ZeroAggregate(anchor.AddDate(0, 0, i-2))
		assert.Equal(t, expected, agg)
	}
}

func TestNDayWindowPartialData(t *testing.T) {
	anchor := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)

	// Only the middle day has events.
	middle := anchor.AddDate(0, 0, -1)
	events := []models.UsageEvent{eventAt(middle, 9, 0, "YouTube", 25)}

	window := testAggregator().NDayWindow(events, 3, anchor)
	require.Len(t, window, 3)

	assert.Equal(t, 0.0, window[0].TotalDuration)
	assert.Equal(t, 25.0, window[1].TotalDuration)
	assert.Equal(t, 0.0, window[2].TotalDuration)

	// Oldest first.
	assert.True(t, window[0].Date.Before(window[1].Date))
	assert.True(t, window[1].Date.Before(window[2].Date))
}

func TestCategoryLookup(t *testing.T) {
	a := testAggregator()

	assert.Equal(t, CategorySocial, a.Category("WhatsApp"))
	assert.Equal(t, CategoryEntertainment, a.Category("twitch"))
	assert.Equal(t, CategoryProductivity, a.Category("Office"))
	assert.Equal(t, CategoryOther, a.Category("SomeRandomApp"))
}
