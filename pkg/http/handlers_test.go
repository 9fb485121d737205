package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellbeing-server/pkg/errors"
	"wellbeing-server/pkg/models"
)

type fakeService struct {
	recorded []models.UsageEvent
	report   *models.AnalysisReport
	err      error
}

func (f *fakeService) RecordEvent(ctx context.Context, event models.UsageEvent) error {
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, event)
	return nil
}

func (f *fakeService) AnalyzeUser(ctx context.Context, userID string) (*models.AnalysisReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testServer(service AnalysisService) *Server {
	return NewServer(testLogger(), &Config{Port: 0, EnableMetrics: false}, service)
}

func TestUsageHandlerAcceptsEvent(t *testing.T) {
	service := &fakeService{}
	server := testServer(service)

	event := models.UsageEvent{
		UserID: "u1", AppName: "instagram", Duration: 12, Timestamp: time.Now(),
	}
	body, _ := json.Marshal(event)

	req := httptest.NewRequest(http.MethodPost, "/api/usage", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, service.recorded, 1)
	assert.Equal(t, "instagram", service.recorded[0].AppName)
}

func TestUsageHandlerRejectsMalformedBody(t *testing.T) {
	server := testServer(&fakeService{})

	req := httptest.NewRequest(http.MethodPost, "/api/usage", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsageHandlerRejectsInvalidEvent(t *testing.T) {
	service := &fakeService{err: errors.Wrap(errors.ErrInvalidEvent, "negative duration")}
	server := testServer(service)

	body, _ := json.Marshal(models.UsageEvent{UserID: "u1", AppName: "a", Duration: -1, Timestamp: time.Now()})
	req := httptest.NewRequest(http.MethodPost, "/api/usage", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsageHandlerMethodNotAllowed(t *testing.T) {
	server := testServer(&fakeService{})

	req := httptest.NewRequest(http.MethodGet, "/api/usage", nil)
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRiskHandler(t *testing.T) {
	service := &fakeService{report: &models.AnalysisReport{
		UserID: "u1",
		CurrentRisk: models.RiskAssessment{
			RiskLevel: models.RiskHigh, RiskLabel: "High", RiskProbability: 0.7,
		},
	}}
	server := testServer(service)

	req := httptest.NewRequest(http.MethodGet, "/api/risk/u1", nil)
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		UserID string                `json:"user_id"`
		Risk   models.RiskAssessment `json:"risk"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "u1", body.UserID)
	assert.Equal(t, "High", body.Risk.RiskLabel)
}

func TestRiskHandlerMissingUser(t *testing.T) {
	server := testServer(&fakeService{})

	req := httptest.NewRequest(http.MethodGet, "/api/risk/", nil)
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInsightsHandlerMapsErrors(t *testing.T) {
	service := &fakeService{err: errors.Wrap(errors.ErrInsufficientData, "not enough history")}
	server := testServer(service)

	req := httptest.NewRequest(http.MethodGet, "/api/insights/u1", nil)
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRecommendationsHandler(t *testing.T) {
	service := &fakeService{report: &models.AnalysisReport{
		UserID:          "u1",
		Recommendations: []string{"Take 10-min breaks every hour"},
	}}
	server := testServer(service)

	req := httptest.NewRequest(http.MethodGet, "/api/recommendations/u1", nil)
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Recommendations []string `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"Take 10-min breaks every hour"}, body.Recommendations)
}

func TestHealthHandler(t *testing.T) {
	server := testServer(&fakeService{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
