package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"wellbeing-server/pkg/behavior"
	"wellbeing-server/pkg/database"
	"wellbeing-server/pkg/insights"
	"wellbeing-server/pkg/messaging"
	"wellbeing-server/pkg/metrics"
	"wellbeing-server/pkg/models"
	"wellbeing-server/pkg/risk"
	"wellbeing-server/pkg/usage"
)

// Config holds the analysis pipeline settings.
type Config struct {
	// WindowDays is the trailing window used for risk scoring and
	// trend insights.
	WindowDays int

	// HistoryDays bounds how many days of events feed the behavioral
	// analysis.
	HistoryDays int
}

// DefaultConfig returns the default pipeline settings.
func DefaultConfig() *Config {
	return &Config{WindowDays: 3, HistoryDays: 30}
}

// AnalysisService orchestrates the full analysis pipeline: events in,
// aggregated window, risk scoring, insights, behavioral analysis and
// persistence.
type AnalysisService struct {
	logger     *logrus.Entry
	config     *Config
	repo       database.Repository
	aggregator *usage.Aggregator
	scorer     risk.Scorer
	insightGen *risk.InsightGenerator
	advice     *insights.Generator
	behavior   *behavior.Analyzer
	publisher  *messaging.AMQPClient

	now func() time.Time
}

// NewAnalysisService wires the pipeline together. The advice generator
// and publisher are optional; a nil config selects the defaults.
func NewAnalysisService(
	logger *logrus.Logger,
	config *Config,
	repo database.Repository,
	aggregator *usage.Aggregator,
	scorer risk.Scorer,
	insightGen *risk.InsightGenerator,
	advice *insights.Generator,
	analyzer *behavior.Analyzer,
	publisher *messaging.AMQPClient,
) *AnalysisService {
	if config == nil {
		config = DefaultConfig()
	}

	return &AnalysisService{
		logger:     logger.WithField("component", "analysis_service"),
		config:     config,
		repo:       repo,
		aggregator: aggregator,
		scorer:     scorer,
		insightGen: insightGen,
		advice:     advice,
		behavior:   analyzer,
		publisher:  publisher,
		now:        time.Now,
	}
}

// RecordEvent validates and stores a single usage event.
func (s *AnalysisService) RecordEvent(ctx context.Context, event models.UsageEvent) error {
	if err := s.repo.SaveUsageEvent(ctx, event); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": event.UserID,
		"app":     event.AppName,
	}).Debug("Recorded usage event")
	return nil
}

// AnalyzeUser runs the full pipeline for one user. Core computations
// are synchronous; persistence, publishing and generative advice
// degrade with logged fallbacks instead of failing the analysis.
func (s *AnalysisService) AnalyzeUser(ctx context.Context, userID string) (*models.AnalysisReport, error) {
	started := s.now()

	events, err := s.repo.GetUsageEvents(ctx, userID, s.config.HistoryDays)
	if err != nil {
		if metrics.AnalysesTotal != nil {
			metrics.AnalysesTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	window := s.aggregator.NDayWindow(events, s.config.WindowDays, started)
	current := window[len(window)-1]

	assessment := s.scorer.Assess(current)
	insightList := s.insightGen.Generate(window)
	recommendations := risk.Recommendations(assessment, insightList)

	report := &models.AnalysisReport{
		UserID:          userID,
		GeneratedAt:     started,
		Window:          window,
		CurrentRisk:     assessment,
		Insights:        insightList,
		Recommendations: recommendations,
	}

	if s.behavior != nil {
		behaviorReport := s.behavior.Analyze(userID, events)
		report.Behavior = behaviorReport
		report.Insights = append(report.Insights, behaviorReport.Insights...)

		if metrics.AnomaliesDetected != nil {
			for _, anomaly := range behaviorReport.Anomalies {
				metrics.AnomaliesDetected.WithLabelValues(anomaly.Type).Inc()
			}
		}
	}

	// Generative advice is appended to the core insights, never a
	// replacement for them.
	if s.advice != nil {
		for _, line := range s.advice.Advice(ctx, window) {
			report.Insights = append(report.Insights, models.Insight{
				Type:     models.InsightInfo,
				Message:  line,
				Severity: models.SeverityLow,
			})
		}
	}

	s.persist(ctx, report, current.Date)
	s.publish(report)

	if metrics.AnalysesTotal != nil {
		metrics.AnalysesTotal.WithLabelValues("ok").Inc()
	}
	if metrics.RiskAssessments != nil {
		metrics.RiskAssessments.WithLabelValues(assessment.RiskLabel).Inc()
	}
	if metrics.AnalysisDuration != nil {
		metrics.AnalysisDuration.WithLabelValues("full").Observe(time.Since(started).Seconds())
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"risk_label": assessment.RiskLabel,
		"insights":   len(report.Insights),
		"events":     len(events),
	}).Info("Completed user analysis")

	return report, nil
}

func (s *AnalysisService) persist(ctx context.Context, report *models.AnalysisReport, date time.Time) {
	if err := s.repo.SaveAssessment(ctx, report.UserID, date, report.CurrentRisk); err != nil {
		s.logger.WithError(err).Warn("Failed to persist risk assessment")
	}
	if err := s.repo.SaveAnalysis(ctx, report); err != nil {
		s.logger.WithError(err).Warn("Failed to persist analysis report")
	}
}

func (s *AnalysisService) publish(report *models.AnalysisReport) {
	if s.publisher == nil || !s.publisher.Enabled() {
		return
	}
	if err := s.publisher.PublishAnalysis(report); err != nil {
		s.logger.WithError(err).Warn("Failed to publish analysis result")
	}
}
