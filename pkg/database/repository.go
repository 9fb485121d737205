package database

import (
	"context"
	"time"

	"wellbeing-server/pkg/errors"
	"wellbeing-server/pkg/models"
)

// Repository is the persistence boundary for usage events and analysis
// results. Writes are last-write-wins; there are no transactions across
// calls.
type Repository interface {
	// SaveUsageEvent validates and stores a single event.
	SaveUsageEvent(ctx context.Context, event models.UsageEvent) error

	// GetUsageEvents returns a user's events from the trailing N days,
	// oldest first.
	GetUsageEvents(ctx context.Context, userID string, days int) ([]models.UsageEvent, error)

	// SaveAssessment records a risk assessment for a user and date.
	SaveAssessment(ctx context.Context, userID string, date time.Time, assessment models.RiskAssessment) error

	// SaveAnalysis stores a full analysis report for later retrieval.
	SaveAnalysis(ctx context.Context, report *models.AnalysisReport) error

	// LatestAnalysis returns the most recent analysis report for a user,
	// or ErrNotFound when none exists.
	LatestAnalysis(ctx context.Context, userID string) (*models.AnalysisReport, error)

	Close() error
}

// ValidateEvent rejects malformed events before they reach storage or
// the analysis pipeline.
func ValidateEvent(event models.UsageEvent) error {
	if event.UserID == "" {
		return errors.Wrap(errors.ErrInvalidEvent, "missing user ID")
	}
	if event.AppName == "" {
		return errors.Wrap(errors.ErrInvalidEvent, "missing app name").
			WithField("user_id", event.UserID)
	}
	if event.Duration < 0 {
		return errors.Wrap(errors.ErrInvalidEvent, "negative duration").
			WithField("duration", event.Duration)
	}
	if event.Timestamp.IsZero() {
		return errors.Wrap(errors.ErrInvalidEvent, "missing timestamp").
			WithField("user_id", event.UserID)
	}
	return nil
}
