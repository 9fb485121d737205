package risk

import (
	"github.com/sirupsen/logrus"

	"wellbeing-server/pkg/models"
)

// Scorer maps a daily aggregate to a discrete risk assessment.
type Scorer interface {
	Assess(day models.DailyAggregate) models.RiskAssessment
}

var riskLabels = map[int]string{
	models.RiskLow:      "Low",
	models.RiskModerate: "Moderate",
	models.RiskHigh:     "High",
	models.RiskCritical: "Critical",
}

// RiskLabel returns the display label for a risk level. Unrecognized
// levels map to "Unknown" rather than erroring.
func RiskLabel(level int) string {
	if label, ok := riskLabels[level]; ok {
		return label
	}
	return "Unknown"
}

// RuleConfig holds the thresholds of the rule-based scorer.
type RuleConfig struct {
	// Daily usage tiers in minutes, highest tier wins.
	UsageCritical float64 // +3
	UsageHigh     float64 // +2
	UsageElevated float64 // +1

	NightUsageThreshold float64 // minutes, +2
	BingeThreshold      int     // sessions, +2
}

// DefaultRuleConfig returns the documented rule thresholds.
func DefaultRuleConfig() *RuleConfig {
	return &RuleConfig{
		UsageCritical:       360,
		UsageHigh:           240,
		UsageElevated:       120,
		NightUsageThreshold: 60,
		BingeThreshold:      3,
	}
}

// RuleScorer is the deterministic, always-available scoring strategy.
type RuleScorer struct {
	logger *logrus.Entry
	config *RuleConfig
}

// NewRuleScorer creates a rule-based scorer. A nil config selects the
// default thresholds.
func NewRuleScorer(logger *logrus.Logger, config *RuleConfig) *RuleScorer {
	if config == nil {
		config = DefaultRuleConfig()
	}

	return &RuleScorer{
		logger: logger.WithField("component", "rule_scorer"),
		config: config,
	}
}

// Assess scores a day using the weighted threshold ladder. The daily
// usage tiers are exclusive; only the highest matching tier counts.
func (s *RuleScorer) Assess(day models.DailyAggregate) models.RiskAssessment {
	score := 0

	switch {
	case day.TotalDuration > s.config.UsageCritical:
		score += 3
	case day.TotalDuration > s.config.UsageHigh:
		score += 2
	case day.TotalDuration > s.config.UsageElevated:
		score += 1
	}

	if day.NightUsage > s.config.NightUsageThreshold {
		score += 2
	}
	if day.BingeSessions > s.config.BingeThreshold {
		score += 2
	}

	level := score
	if level > models.RiskCritical {
		level = models.RiskCritical
	}

	probability := float64(score) / 7
	if probability > 1 {
		probability = 1
	}

	return models.RiskAssessment{
		RiskLevel:       level,
		RiskProbability: probability,
		RiskLabel:       RiskLabel(level),
	}
}
