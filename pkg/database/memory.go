package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"wellbeing-server/pkg/errors"
	"wellbeing-server/pkg/models"
)

// MemoryRepository is an in-memory Repository for development and tests.
// All accessors return copies so callers never share internal state.
type MemoryRepository struct {
	logger *logrus.Entry

	mu          sync.RWMutex
	events      map[string][]models.UsageEvent
	assessments map[string][]storedAssessment
	analyses    map[string][]*models.AnalysisReport

	now func() time.Time
}

type storedAssessment struct {
	date       time.Time
	assessment models.RiskAssessment
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository(logger *logrus.Logger) *MemoryRepository {
	return &MemoryRepository{
		logger:      logger.WithField("component", "memory_store"),
		events:      make(map[string][]models.UsageEvent),
		assessments: make(map[string][]storedAssessment),
		analyses:    make(map[string][]*models.AnalysisReport),
		now:         time.Now,
	}
}

func (r *MemoryRepository) SaveUsageEvent(ctx context.Context, event models.UsageEvent) error {
	if err := ValidateEvent(event); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[event.UserID] = append(r.events[event.UserID], event)
	return nil
}

func (r *MemoryRepository) GetUsageEvents(ctx context.Context, userID string, days int) ([]models.UsageEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := r.now().AddDate(0, 0, -days)

	var out []models.UsageEvent
	for _, event := range r.events[userID] {
		if !event.Timestamp.Before(cutoff) {
			out = append(out, event)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (r *MemoryRepository) SaveAssessment(ctx context.Context, userID string, date time.Time, assessment models.RiskAssessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.assessments[userID] = append(r.assessments[userID], storedAssessment{
		date:       date,
		assessment: assessment,
	})
	return nil
}

func (r *MemoryRepository) SaveAnalysis(ctx context.Context, report *models.AnalysisReport) error {
	if report == nil || report.UserID == "" {
		return errors.Wrap(errors.ErrInvalidInput, "analysis report missing user ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *report
	r.analyses[report.UserID] = append(r.analyses[report.UserID], &stored)
	return nil
}

func (r *MemoryRepository) LatestAnalysis(ctx context.Context, userID string) (*models.AnalysisReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reports := r.analyses[userID]
	if len(reports) == 0 {
		return nil, errors.Wrap(errors.ErrNotFound, "no analysis for user").
			WithField("user_id", userID)
	}

	latest := reports[0]
	for _, report := range reports[1:] {
		if report.GeneratedAt.After(latest.GeneratedAt) {
			latest = report
		}
	}

	out := *latest
	return &out, nil
}

func (r *MemoryRepository) Close() error {
	return nil
}
