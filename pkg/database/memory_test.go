package database

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellbeing-server/pkg/errors"
	"wellbeing-server/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testRepo(now time.Time) *MemoryRepository {
	repo := NewMemoryRepository(testLogger())
	repo.now = func() time.Time { return now }
	return repo
}

func TestValidateEvent(t *testing.T) {
	ts := time.Now()

	valid := models.UsageEvent{UserID: "u1", AppName: "instagram", Duration: 10, Timestamp: ts}
	assert.NoError(t, ValidateEvent(valid))

	tests := []struct {
		name  string
		event models.UsageEvent
	}{
		{"missing user", models.UsageEvent{AppName: "a", Duration: 1, Timestamp: ts}},
		{"missing app", models.UsageEvent{UserID: "u1", Duration: 1, Timestamp: ts}},
		{"negative duration", models.UsageEvent{UserID: "u1", AppName: "a", Duration: -1, Timestamp: ts}},
		{"zero timestamp", models.UsageEvent{UserID: "u1", AppName: "a", Duration: 1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateEvent(tc.event)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidEvent))
		})
	}
}

func TestSaveAndGetUsageEvents(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	repo := testRepo(now)
	ctx := context.Background()

	// Out of order on purpose; reads come back sorted.
	for _, offset := range []int{-1, -3, 0} {
		err := repo.SaveUsageEvent(ctx, models.UsageEvent{
			UserID: "u1", AppName: "instagram", Duration: 10,
			Timestamp: now.AddDate(0, 0, offset),
		})
		require.NoError(t, err)
	}

	events, err := repo.GetUsageEvents(ctx, "u1", 7)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.True(t, events[0].Timestamp.Before(events[1].Timestamp))
	assert.True(t, events[1].Timestamp.Before(events[2].Timestamp))
}

func TestGetUsageEventsWindow(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	repo := testRepo(now)
	ctx := context.Background()

	for _, offset := range []int{0, -2, -10} {
		require.NoError(t, repo.SaveUsageEvent(ctx, models.UsageEvent{
			UserID: "u1", AppName: "notes", Duration: 5,
			Timestamp: now.AddDate(0, 0, offset),
		}))
	}

	events, err := repo.GetUsageEvents(ctx, "u1", 3)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestGetUsageEventsIsolatesUsers(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	repo := testRepo(now)
	ctx := context.Background()

	require.NoError(t, repo.SaveUsageEvent(ctx, models.UsageEvent{
		UserID: "u1", AppName: "notes", Duration: 5, Timestamp: now,
	}))

	events, err := repo.GetUsageEvents(ctx, "u2", 7)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSaveUsageEventRejectsInvalid(t *testing.T) {
	repo := testRepo(time.Now())

	err := repo.SaveUsageEvent(context.Background(), models.UsageEvent{
		UserID: "u1", AppName: "games", Duration: -5, Timestamp: time.Now(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidEvent))

	events, err := repo.GetUsageEvents(context.Background(), "u1", 7)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestLatestAnalysis(t *testing.T) {
	repo := testRepo(time.Now())
	ctx := context.Background()

	_, err := repo.LatestAnalysis(ctx, "u1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	older := &models.AnalysisReport{
		UserID:      "u1",
		GeneratedAt: time.Date(2026, 8, 19, 10, 0, 0, 0, time.UTC),
		CurrentRisk: models.RiskAssessment{RiskLevel: models.RiskLow, RiskLabel: "Low"},
	}
	newer := &models.AnalysisReport{
		UserID:      "u1",
		GeneratedAt: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		CurrentRisk: models.RiskAssessment{RiskLevel: models.RiskHigh, RiskLabel: "High"},
	}

	require.NoError(t, repo.SaveAnalysis(ctx, newer))
	require.NoError(t, repo.SaveAnalysis(ctx, older))

	got, err := repo.LatestAnalysis(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "High", got.CurrentRisk.RiskLabel)
}

func TestLatestAnalysisReturnsCopy(t *testing.T) {
	repo := testRepo(time.Now())
	ctx := context.Background()

	report := &models.AnalysisReport{UserID: "u1", GeneratedAt: time.Now()}
	require.NoError(t, repo.SaveAnalysis(ctx, report))

	got, err := repo.LatestAnalysis(ctx, "u1")
	require.NoError(t, err)

	got.UserID = "mutated"

	again, err := repo.LatestAnalysis(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", again.UserID)
}

func TestSaveAnalysisValidation(t *testing.T) {
	repo := testRepo(time.Now())

	assert.Error(t, repo.SaveAnalysis(context.Background(), nil))
	assert.Error(t, repo.SaveAnalysis(context.Background(), &models.AnalysisReport{}))
}

func TestSaveAssessment(t *testing.T) {
	repo := testRepo(time.Now())

	err := repo.SaveAssessment(context.Background(), "u1", time.Now(), models.RiskAssessment{
		RiskLevel: models.RiskModerate, RiskLabel: "Moderate", RiskProbability: 0.3,
	})
	assert.NoError(t, err)
}
