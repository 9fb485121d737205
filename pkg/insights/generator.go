package insights

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"wellbeing-server/pkg/metrics"
	"wellbeing-server/pkg/models"
)

// Generator produces advisory text for a usage window, preferring the
// generative backend and degrading to a deterministic local fallback on
// any failure. Advice never aborts an analysis.
type Generator struct {
	logger *logrus.Entry
	client *GeminiClient
}

// NewGenerator creates an advice generator. A nil client disables the
// generative path entirely.
func NewGenerator(logger *logrus.Logger, client *GeminiClient) *Generator {
	return &Generator{
		logger: logger.WithField("component", "insight_generator"),
		client: client,
	}
}

// Advice returns advisory lines for the window. The result is never
// empty for a non-empty window.
func (g *Generator) Advice(ctx context.Context, window []models.DailyAggregate) []string {
	if g.client != nil && g.client.Enabled() {
		lines, err := g.client.GenerateInsights(ctx, window)
		if err == nil {
			return lines
		}
		g.logger.WithError(err).Warn("Generative insights failed, using local fallback")
	}

	if metrics.InsightFallbacks != nil {
		metrics.InsightFallbacks.Inc()
	}
	return fallbackInsights(window)
}

// fallbackInsights derives advisory lines directly from the window so
// advice stays available without the generative backend.
func fallbackInsights(window []models.DailyAggregate) []string {
	if len(window) == 0 {
		return nil
	}

	var total, night, social float64
	var binges int
	for _, day := range window {
		total += day.TotalDuration
		night += day.NightUsage
		social += day.SocialMediaTime
		binges += day.BingeSessions
	}
	n := float64(len(window))
	avgTotal := total / n

	var lines []string
	switch {
	case avgTotal > 360:
		lines = append(lines, fmt.Sprintf("Your average screen time of %.0f minutes a day is very high; try scheduling screen-free blocks", avgTotal))
	case avgTotal > 180:
		lines = append(lines, fmt.Sprintf("You average %.0f minutes of screen time a day; small reductions add up", avgTotal))
	default:
		lines = append(lines, "Your overall screen time is at a healthy level; keep it up")
	}

	if night/n > 60 {
		lines = append(lines, "A lot of your usage happens late at night; winding down earlier will help your sleep")
	}
	if binges > 0 {
		lines = append(lines, fmt.Sprintf("You had %d extended sessions recently; regular short breaks make long stretches easier to avoid", binges))
	}
	if social/n > 120 {
		lines = append(lines, "Social media takes up a large share of your day; consider muting notifications during focus hours")
	}

	return lines
}
