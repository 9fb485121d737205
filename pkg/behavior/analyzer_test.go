package behavior

import (
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellbeing-server/pkg/models"
	"wellbeing-server/pkg/usage"
)

func testAnalyzer() *Analyzer {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewAnalyzer(logger, usage.NewAggregator(logger, nil))
}

// dayEvents builds count sessions of the given duration on the day
// daysAgo days before the anchor, spaced an hour apart starting at 10:00.
func dayEvents(daysAgo, count int, duration float64) []models.UsageEvent {
	anchor := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	day := anchor.AddDate(0, 0, -daysAgo)

	events := make([]models.UsageEvent, count)
	for i := range events {
		events[i] = models.UsageEvent{
			UserID:    "u1",
			AppName:   fmt.Sprintf("app%d", i%3),
			Duration:  duration,
			Timestamp: day.Add(time.Duration(i) * time.Hour),
		}
	}
	return events
}

func historyEvents(days, sessionsPerDay int, duration float64) []models.UsageEvent {
	var events []models.UsageEvent
	for d := days - 1; d >= 0; d-- {
		events = append(events, dayEvents(d, sessionsPerDay, duration)...)
	}
	return events
}

func TestExtractFeaturesGroupsByDay(t *testing.T) {
	a := testAnalyzer()

	events := append(dayEvents(2, 3, 20), dayEvents(0, 5, 10)...)
	features := a.ExtractFeatures(events)

	require.Len(t, features, 2)
	assert.True(t, features[0].Date.Before(features[1].Date))
	assert.Equal(t, 60.0, features[0].Vector[FeatTotalDuration])
	assert.Equal(t, 3.0, features[0].Vector[FeatSessionCount])
	assert.Equal(t, 50.0, features[1].Vector[FeatTotalDuration])
	assert.Equal(t, 5.0, features[1].Vector[FeatSessionCount])
}

func TestExtractFeaturesCategoriesAndBinge(t *testing.T) {
	a := testAnalyzer()

	day := time.Date(2026, 8, 20, 14, 0, 0, 0, time.UTC)
	events := []models.UsageEvent{
		{AppName: "Instagram", Duration: 40, Timestamp: day},
		{AppName: "YouTube", Duration: 20, Timestamp: day.Add(time.Hour)},
		{AppName: "notes", Duration: 10, Timestamp: day.Add(2 * time.Hour)},
	}

	features := a.ExtractFeatures(events)
	require.Len(t, features, 1)

	v := features[0].Vector
	assert.Equal(t, 40.0, v[FeatSocialTime])
	assert.Equal(t, 20.0, v[FeatEntertainmentTime])
	// One of three sessions is longer than 30 minutes.
	assert.InDelta(t, 1.0/3.0, v[FeatBingeScore], 1e-9)
}

func TestClusterInsufficientData(t *testing.T) {
	a := testAnalyzer()

	features := a.ExtractFeatures(historyEvents(3, 4, 15))
	profile := a.Cluster(features)

	assert.Equal(t, -1, profile.Cluster)
	assert.Equal(t, "Insufficient data", profile.ClusterName)
	assert.Equal(t, 0.5, profile.Stability)
	assert.Nil(t, profile.Stats)
}

func TestClusterAssignsProfile(t *testing.T) {
	a := testAnalyzer()

	profile := a.Cluster(a.ExtractFeatures(historyEvents(10, 4, 15)))

	assert.GreaterOrEqual(t, profile.Cluster, 0)
	assert.Less(t, profile.Cluster, 4)
	assert.NotEmpty(t, profile.ClusterName)
	assert.NotEqual(t, "Insufficient data", profile.ClusterName)
	require.NotNil(t, profile.Stats)
	assert.InDelta(t, 60.0, profile.Stats["avg_daily_usage"], 1e-9)
	assert.InDelta(t, 4.0, profile.Stats["avg_sessions"], 1e-9)
}

func TestStability(t *testing.T) {
	assert.Equal(t, 0.5, Stability([]int{1, 1, 1}))

	assert.Equal(t, 1.0, Stability([]int{0, 0, 0, 0, 0, 0, 0}))

	// 5 of the last 7 match the mode.
	assert.InDelta(t, 5.0/7.0, Stability([]int{3, 3, 1, 1, 2, 1, 1, 0, 1}), 1e-9)
}

func TestDetectAnomaliesTooFewDays(t *testing.T) {
	a := testAnalyzer()

	features := a.ExtractFeatures(historyEvents(4, 3, 20))
	assert.Empty(t, a.DetectAnomalies(features))
}

func TestDetectAnomaliesUsageSpike(t *testing.T) {
	a := testAnalyzer()

	// 7 quiet days then 3 days at nearly double the usage.
	events := historyEvents(10, 4, 15)
	for d := 0; d < 3; d++ {
		events = append(events, dayEvents(d, 4, 12)...)
	}

	anomalies := a.DetectAnomalies(a.ExtractFeatures(events))

	var spike *models.Anomaly
	for i := range anomalies {
		if anomalies[i].Type == "usage_spike" {
			spike = &anomalies[i]
		}
	}
	require.NotNil(t, spike)
	assert.Equal(t, models.SeverityMedium, spike.Severity)
}

func TestDetectAnomaliesSevereSpike(t *testing.T) {
	a := testAnalyzer()

	events := historyEvents(10, 4, 15)
	for d := 0; d < 3; d++ {
		events = append(events, dayEvents(d, 4, 25)...)
	}

	anomalies := a.DetectAnomalies(a.ExtractFeatures(events))

	found := false
	for _, anomaly := range anomalies {
		if anomaly.Type == "usage_spike" {
			found = true
			assert.Equal(t, models.SeverityHigh, anomaly.Severity)
		}
	}
	assert.True(t, found)
}

func TestDetectAnomaliesZeroBaselineGuard(t *testing.T) {
	a := testAnalyzer()

	// All usage in the recent window; historical mean is zero, so the
	// spike and night checks stay silent rather than dividing by zero.
	var events []models.UsageEvent
	for d := 7; d >= 3; d-- {
		day := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC).AddDate(0, 0, -d)
		events = append(events, models.UsageEvent{AppName: "notes", Duration: 0, Timestamp: day})
	}
	for d := 2; d >= 0; d-- {
		events = append(events, dayEvents(d, 4, 20)...)
	}

	anomalies := a.DetectAnomalies(a.ExtractFeatures(events))
	for _, anomaly := range anomalies {
		assert.NotEqual(t, "usage_spike", anomaly.Type)
		assert.NotEqual(t, "night_usage_increase", anomaly.Type)
	}
}

func TestDetectAnomaliesBingeBehavior(t *testing.T) {
	a := testAnalyzer()

	// Recent days are dominated by long sessions.
	events := historyEvents(10, 4, 15)
	for d := 0; d < 3; d++ {
		events = append(events, dayEvents(d, 4, 45)...)
	}

	anomalies := a.DetectAnomalies(a.ExtractFeatures(events))

	found := false
	for _, anomaly := range anomalies {
		if anomaly.Type == "binge_behavior" {
			found = true
			assert.Equal(t, models.SeverityHigh, anomaly.Severity)
		}
	}
	assert.True(t, found)
}

func TestConsistencyScore(t *testing.T) {
	assert.Equal(t, 0.5, ConsistencyScore([]float64{100, 100}))
	assert.Equal(t, 1.0, ConsistencyScore([]float64{100, 100, 100, 100, 100, 100, 100}))
	assert.Equal(t, 0.0, ConsistencyScore([]float64{0, 0, 0, 0, 0, 0, 0}))

	// Wild swings floor at zero.
	assert.Equal(t, 0.0, ConsistencyScore([]float64{1, 500, 1, 500, 1, 500, 1}))
}

func TestAnalyzePatterns(t *testing.T) {
	a := testAnalyzer()

	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	events := []models.UsageEvent{
		{AppName: "instagram", Duration: 60, Timestamp: day.Add(20 * time.Hour)},
		{AppName: "instagram", Duration: 30, Timestamp: day.Add(20*time.Hour + 30*time.Minute)},
		{AppName: "notes", Duration: 10, Timestamp: day.Add(9 * time.Hour)},
	}

	analysis := a.AnalyzePatterns(events)

	assert.Equal(t, 20, analysis.PeakUsageHour)
	assert.Equal(t, int(day.Weekday()), analysis.PeakUsageDay)
	assert.Equal(t, 90.0, analysis.AppDistribution["instagram"])
	assert.InDelta(t, 2.0/24.0, analysis.UsageVariability.TimeSpread, 1e-9)
	// A single observed day falls back to the default consistency.
	assert.Equal(t, 0.5, analysis.ConsistencyScore)
}

func TestAnalyzePatternsTopFiveApps(t *testing.T) {
	a := testAnalyzer()

	day := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	var events []models.UsageEvent
	for i := 0; i < 8; i++ {
		events = append(events, models.UsageEvent{
			AppName:   fmt.Sprintf("app%d", i),
			Duration:  float64(10 * (i + 1)),
			Timestamp: day.Add(time.Duration(i) * time.Minute),
		})
	}

	analysis := a.AnalyzePatterns(events)
	assert.Len(t, analysis.AppDistribution, 5)
	assert.Contains(t, analysis.AppDistribution, "app7")
	assert.NotContains(t, analysis.AppDistribution, "app0")
}

func TestAnalyzePatternsEmpty(t *testing.T) {
	a := testAnalyzer()

	analysis := a.AnalyzePatterns(nil)
	assert.Equal(t, 0.5, analysis.ConsistencyScore)
	assert.Empty(t, analysis.AppDistribution)
}

func TestAnalyzeEndToEnd(t *testing.T) {
	a := testAnalyzer()

	report := a.Analyze("u1", historyEvents(10, 4, 15))

	require.NotNil(t, report)
	assert.Equal(t, "u1", report.UserID)
	assert.NotEqual(t, "Insufficient data", report.Profile.ClusterName)
	assert.NotEmpty(t, report.Recommendations)
}

func TestAnalyzeSparseHistory(t *testing.T) {
	a := testAnalyzer()

	report := a.Analyze("u1", dayEvents(0, 3, 20))

	assert.Equal(t, -1, report.Profile.Cluster)
	assert.Empty(t, report.Anomalies)
}

func TestRecommendationsDeduplicated(t *testing.T) {
	a := testAnalyzer()

	insights := []models.Insight{
		{Type: "time_pattern", Severity: models.SeverityMedium},
		{Type: "time_pattern", Severity: models.SeverityMedium},
	}

	recs := a.behavioralRecommendations(insights)
	seen := make(map[string]bool)
	for _, rec := range recs {
		assert.False(t, seen[rec], "duplicate recommendation %q", rec)
		seen[rec] = true
	}
}
