package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"wellbeing-server/pkg/models"
)

// InsightConfig holds the thresholds for trend and pattern insights.
type InsightConfig struct {
	TrendSlope     float64 // minutes per day
	NightUsageMean float64 // minutes
	BingeTotal     int     // sessions across the window
	SocialMean     float64 // minutes
}

// DefaultInsightConfig returns the documented insight thresholds.
func DefaultInsightConfig() *InsightConfig {
	return &InsightConfig{
		TrendSlope:     30,
		NightUsageMean: 60,
		BingeTotal:     5,
		SocialMean:     180,
	}
}

// InsightGenerator derives typed insights from a multi-day window of
// daily aggregates.
type InsightGenerator struct {
	logger *logrus.Entry
	config *InsightConfig
}

// NewInsightGenerator creates an insight generator. A nil config selects
// the default thresholds.
func NewInsightGenerator(logger *logrus.Logger, config *InsightConfig) *InsightGenerator {
	if config == nil {
		config = DefaultInsightConfig()
	}

	return &InsightGenerator{
		logger: logger.WithField("component", "insight_generator"),
		config: config,
	}
}

// Generate runs every insight check against the window. Checks are
// independent; any subset (including none) may fire.
func (g *InsightGenerator) Generate(window []models.DailyAggregate) []models.Insight {
	insights := []models.Insight{}

	// Trend: least-squares slope of total duration vs. day index.
	if len(window) >= 2 {
		totals := make([]float64, len(window))
		for i, day := range window {
			totals[i] = day.TotalDuration
		}

		slope := Slope(totals)
		if slope > g.config.TrendSlope {
			insights = append(insights, models.Insight{
				Type:     models.InsightWarning,
				Message:  fmt.Sprintf("Usage increasing by %.0f min/day", slope),
				Severity: models.SeverityHigh,
			})
		} else if slope < -g.config.TrendSlope {
			insights = append(insights, models.Insight{
				Type:     models.InsightPositive,
				Message:  fmt.Sprintf("Usage decreasing by %.0f min/day", math.Abs(slope)),
				Severity: models.SeverityLow,
			})
		}
	}

	if len(window) > 0 {
		var nightSum, socialSum float64
		bingeTotal := 0
		for _, day := range window {
			nightSum += day.NightUsage
			socialSum += day.SocialMediaTime
			bingeTotal += day.BingeSessions
		}
		n := float64(len(window))

		if avgNight := nightSum / n; avgNight > g.config.NightUsageMean {
			insights = append(insights, models.Insight{
				Type:     models.InsightWarning,
				Message:  fmt.Sprintf("High night usage: %.0f min/day affects sleep", avgNight),
				Severity: models.SeverityHigh,
			})
		}

		if bingeTotal > g.config.BingeTotal {
			insights = append(insights, models.Insight{
				Type:     models.InsightAlert,
				Message:  fmt.Sprintf("%d binge sessions detected in %d days", bingeTotal, len(window)),
				Severity: models.SeverityCritical,
			})
		}

		if avgSocial := socialSum / n; avgSocial > g.config.SocialMean {
			insights = append(insights, models.Insight{
				Type:     models.InsightWarning,
				Message:  fmt.Sprintf("High social media usage: %.0f min/day", avgSocial),
				Severity: models.SeverityModerate,
			})
		}
	}

	return insights
}

// Slope returns the linear least-squares slope of values against their
// indices. Fewer than two values yield 0.
func Slope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}

	return (n*sumXY - sumX*sumY) / denom
}

// Recommendations maps the assessment and fired insights to a fixed
// advice catalog. The resulting list is deduplicated.
func Recommendations(assessment models.RiskAssessment, insights []models.Insight) []string {
	var recommendations []string

	if assessment.RiskLevel >= models.RiskHigh {
		recommendations = append(recommendations,
			"Set daily usage limits (max 3-4 hours)",
			"Enable app timers for social media",
			"Schedule device-free hours",
		)
	}

	for _, insight := range insights {
		message := strings.ToLower(insight.Message)

		if insight.Type == models.InsightWarning && strings.Contains(message, "night") {
			recommendations = append(recommendations,
				"Avoid screens 1 hour before bedtime",
				"Enable night mode/blue light filter",
			)
		}

		if strings.Contains(message, "binge") {
			recommendations = append(recommendations,
				"Take 10-min breaks every hour",
				"Use focus mode during work/study",
			)
		}
	}

	if len(recommendations) == 0 {
		return []string{"Maintain current healthy usage patterns"}
	}

	return dedupe(recommendations)
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	result := items[:0]
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}
	return result
}
