package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"wellbeing-server/pkg/errors"
	"wellbeing-server/pkg/metrics"
	"wellbeing-server/pkg/models"
)

// AnalysisService is the application boundary the HTTP layer talks to.
type AnalysisService interface {
	// RecordEvent validates and stores a usage event.
	RecordEvent(ctx context.Context, event models.UsageEvent) error

	// AnalyzeUser runs the full analysis pipeline for a user.
	AnalyzeUser(ctx context.Context, userID string) (*models.AnalysisReport, error)
}

// usageHandler accepts a single usage event via POST /api/usage.
func (s *Server) usageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.ErrorResponse(w, errors.Wrap(errors.ErrInvalidInput, "method not allowed").
			WithField("method", r.Method))
		return
	}

	var event models.UsageEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		s.ErrorResponse(w, errors.Wrap(errors.ErrInvalidInput, "malformed usage event payload"))
		return
	}

	if err := s.service.RecordEvent(r.Context(), event); err != nil {
		if metrics.UsageEventsRejected != nil {
			metrics.UsageEventsRejected.WithLabelValues("validation").Inc()
		}
		s.ErrorResponse(w, err)
		return
	}

	if metrics.UsageEventsIngested != nil {
		metrics.UsageEventsIngested.WithLabelValues("http").Inc()
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// insightsHandler serves GET /api/insights/{user}: the full analysis
// report for a user.
func (s *Server) insightsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userFromPath(w, r, "/api/insights/")
	if !ok {
		return
	}

	report, err := s.service.AnalyzeUser(r.Context(), userID)
	if err != nil {
		s.ErrorResponse(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

// riskHandler serves GET /api/risk/{user}: the current risk assessment.
func (s *Server) riskHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userFromPath(w, r, "/api/risk/")
	if !ok {
		return
	}

	report, err := s.service.AnalyzeUser(r.Context(), userID)
	if err != nil {
		s.ErrorResponse(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"risk":    report.CurrentRisk,
	})
}

// recommendationsHandler serves GET /api/recommendations/{user}.
func (s *Server) recommendationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userFromPath(w, r, "/api/recommendations/")
	if !ok {
		return
	}

	report, err := s.service.AnalyzeUser(r.Context(), userID)
	if err != nil {
		s.ErrorResponse(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":         userID,
		"recommendations": report.Recommendations,
	})
}

func (s *Server) userFromPath(w http.ResponseWriter, r *http.Request, prefix string) (string, bool) {
	if r.Method != http.MethodGet {
		s.ErrorResponse(w, errors.Wrap(errors.ErrInvalidInput, "method not allowed").
			WithField("method", r.Method))
		return "", false
	}

	userID := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if userID == "" || strings.Contains(userID, "/") {
		s.ErrorResponse(w, errors.Wrap(errors.ErrInvalidInput, "missing or malformed user ID"))
		return "", false
	}

	return userID, true
}
