package realtime

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellbeing-server/pkg/models"
)

func eventsAt(hour int, count int, duration float64) []models.UsageEvent {
	base := time.Date(2026, 8, 20, hour, 0, 0, 0, time.UTC)
	events := make([]models.UsageEvent, count)
	for i := range events {
		events[i] = models.UsageEvent{
			UserID:    "u1",
			AppName:   "games",
			Duration:  duration,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return events
}

func TestDetectTooFewEntries(t *testing.T) {
	d := NewPatternDetector(testLogger())

	result := d.Detect(eventsAt(14, 9, 30))
	assert.Empty(t, result.Patterns)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestDetectBingeMedium(t *testing.T) {
	d := NewPatternDetector(testLogger())

	// 10 x 7 = 70 minutes in the trailing window.
	result := d.Detect(eventsAt(14, 10, 7))

	require.NotEmpty(t, result.Patterns)
	binge := result.Patterns[0]
	assert.Equal(t, "binge_usage", binge.Type)
	assert.Equal(t, models.SeverityMedium, binge.Severity)
	assert.InDelta(t, 70.0, binge.Duration, 1e-9)
}

func TestDetectBingeHigh(t *testing.T) {
	d := NewPatternDetector(testLogger())

	result := d.Detect(eventsAt(14, 10, 15))

	require.NotEmpty(t, result.Patterns)
	assert.Equal(t, models.SeverityHigh, result.Patterns[0].Severity)
}

func TestDetectBingeUsesTrailingWindow(t *testing.T) {
	d := NewPatternDetector(testLogger())

	// 30 old heavy events followed by 20 light ones: only the trailing
	// 20 count, so no binge fires.
	events := append(eventsAt(10, 30, 50), eventsAt(14, 20, 1)...)
	result := d.Detect(events)

	for _, p := range result.Patterns {
		assert.NotEqual(t, "binge_usage", p.Type)
	}
}

func TestDetectPeakHour(t *testing.T) {
	d := NewPatternDetector(testLogger())

	// Hour 20 accumulates 65 minutes; hour 9 stays quiet.
	events := append(eventsAt(9, 5, 2), eventsAt(20, 13, 5)...)
	result := d.Detect(events)

	var peak *models.Pattern
	for i := range result.Patterns {
		if result.Patterns[i].Type == "peak_usage_time" {
			peak = &result.Patterns[i]
		}
	}
	require.NotNil(t, peak)
	assert.Equal(t, 20, peak.PeakHour)
	assert.InDelta(t, 65.0, peak.PeakUsage, 1e-9)
	assert.Equal(t, "Consider limiting usage during 20:00", peak.Recommendation)
}

func TestDetectAppSwitching(t *testing.T) {
	d := NewPatternDetector(testLogger())

	base := time.Date(2026, 8, 20, 14, 0, 0, 0, time.UTC)
	events := make([]models.UsageEvent, 10)
	for i := range events {
		events[i] = models.UsageEvent{
			AppName:   fmt.Sprintf("app%d", i%6),
			Duration:  1,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
	}

	result := d.Detect(events)

	var switching *models.Pattern
	for i := range result.Patterns {
		if result.Patterns[i].Type == "rapid_app_switching" {
			switching = &result.Patterns[i]
		}
	}
	require.NotNil(t, switching)
	assert.Equal(t, 6, switching.AppCount)
}

func TestConfidenceScaling(t *testing.T) {
	assert.Equal(t, 0.0, confidence(nil))

	one := []models.Pattern{{Severity: models.SeverityMedium}}
	assert.InDelta(t, 0.4, confidence(one), 1e-9)

	two := []models.Pattern{
		{Severity: models.SeverityHigh},
		{Severity: models.SeverityMedium},
	}
	assert.InDelta(t, 0.9, confidence(two), 1e-9)

	many := []models.Pattern{
		{Severity: models.SeverityHigh},
		{Severity: models.SeverityHigh},
		{Severity: models.SeverityHigh},
	}
	assert.Equal(t, 1.0, confidence(many))
}
