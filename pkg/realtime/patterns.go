package realtime

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"wellbeing-server/pkg/models"
)

// Pattern detection thresholds over the live buffer.
const (
	minPatternEntries = 10
	bingeWindow       = 20
	bingeMinutes      = 60
	bingeHighMinutes  = 120
	peakHourMinutes   = 60
	switchWindow      = 10
	switchAppCount    = 5
)

// PatternDetector scans a user's recent live events for short-horizon
// behavior patterns.
type PatternDetector struct {
	logger *logrus.Entry
}

func NewPatternDetector(logger *logrus.Logger) *PatternDetector {
	return &PatternDetector{
		logger: logger.WithField("component", "pattern_detector"),
	}
}

// Detect analyzes an oldest-first event slice. Fewer than ten entries
// yields no patterns and zero confidence.
func (d *PatternDetector) Detect(events []models.UsageEvent) models.PatternResult {
	result := models.PatternResult{Patterns: []models.Pattern{}}
	if len(events) < minPatternEntries {
		return result
	}

	if p, ok := d.detectBinge(events); ok {
		result.Patterns = append(result.Patterns, p)
	}
	if p, ok := d.detectPeakHour(events); ok {
		result.Patterns = append(result.Patterns, p)
	}
	if p, ok := d.detectAppSwitching(events); ok {
		result.Patterns = append(result.Patterns, p)
	}

	result.Confidence = confidence(result.Patterns)
	return result
}

func (d *PatternDetector) detectBinge(events []models.UsageEvent) (models.Pattern, bool) {
	var total float64
	for _, event := range lastN(events, bingeWindow) {
		total += event.Duration
	}
	if total <= bingeMinutes {
		return models.Pattern{}, false
	}

	severity := models.SeverityMedium
	if total > bingeHighMinutes {
		severity = models.SeverityHigh
	}
	return models.Pattern{
		Type:           "binge_usage",
		Severity:       severity,
		Duration:       total,
		Recommendation: "Take a 10-minute break away from the screen",
	}, true
}

func (d *PatternDetector) detectPeakHour(events []models.UsageEvent) (models.Pattern, bool) {
	hourly := make(map[int]float64)
	for _, event := range events {
		hourly[event.Timestamp.Hour()] += event.Duration
	}

	peakHour, peakUsage := 0, 0.0
	for hour, total := range hourly {
		if total > peakUsage {
			peakHour, peakUsage = hour, total
		}
	}
	if peakUsage <= peakHourMinutes {
		return models.Pattern{}, false
	}

	return models.Pattern{
		Type:           "peak_usage_time",
		Severity:       models.SeverityMedium,
		PeakHour:       peakHour,
		PeakUsage:      peakUsage,
		Recommendation: fmt.Sprintf("Consider limiting usage during %d:00", peakHour),
	}, true
}

func (d *PatternDetector) detectAppSwitching(events []models.UsageEvent) (models.Pattern, bool) {
	apps := make(map[string]bool)
	for _, event := range lastN(events, switchWindow) {
		apps[event.AppName] = true
	}
	if len(apps) < switchAppCount {
		return models.Pattern{}, false
	}

	return models.Pattern{
		Type:           "rapid_app_switching",
		Severity:       models.SeverityMedium,
		AppCount:       len(apps),
		Recommendation: "Try focusing on one app at a time",
	}, true
}

// confidence grows with the number of detected patterns and their
// severity, capped at 1.
func confidence(patterns []models.Pattern) float64 {
	if len(patterns) == 0 {
		return 0
	}

	score := 0.3 * float64(len(patterns))
	for _, p := range patterns {
		switch p.Severity {
		case models.SeverityHigh:
			score += 0.2
		case models.SeverityMedium:
			score += 0.1
		}
	}
	if score > 1 {
		return 1
	}
	return score
}
