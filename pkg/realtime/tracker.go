package realtime

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"wellbeing-server/pkg/metrics"
	"wellbeing-server/pkg/models"
)

// Config holds the tracker's tunables.
type Config struct {
	// BufferSize caps the live event buffer; the oldest entry is
	// evicted once full.
	BufferSize int

	// StreakGap is the largest gap between events still counted as
	// continuous usage.
	StreakGap time.Duration

	// LongSessionMinutes is the live-session length that triggers a
	// break alert.
	LongSessionMinutes float64

	// LateNightHour is the hour (24h clock) from which usage raises a
	// late-night alert.
	LateNightHour int
}

func DefaultConfig() *Config {
	return &Config{
		BufferSize:         1000,
		StreakGap:          5 * time.Minute,
		LongSessionMinutes: 30,
		LateNightHour:      22,
	}
}

// Update is the tracker's response to a single processed event.
type Update struct {
	Session  models.LiveSession    `json:"session"`
	Patterns models.PatternResult  `json:"patterns"`
	Alerts   []models.Alert        `json:"alerts"`
	Metrics  models.SessionMetrics `json:"metrics"`
}

// Tracker maintains live per-user usage state and evaluates short-term
// patterns and alerts as events stream in.
type Tracker struct {
	logger   *logrus.Entry
	config   *Config
	detector *PatternDetector

	mu       sync.Mutex
	buffer   *ringBuffer
	sessions map[string]*models.LiveSession

	now func() time.Time
}

// NewTracker creates a live usage tracker. A nil config selects the
// defaults.
func NewTracker(logger *logrus.Logger, config *Config) *Tracker {
	if config == nil {
		config = DefaultConfig()
	}

	return &Tracker{
		logger:   logger.WithField("component", "realtime_tracker"),
		config:   config,
		detector: NewPatternDetector(logger),
		buffer:   newRingBuffer(config.BufferSize),
		sessions: make(map[string]*models.LiveSession),
		now:      time.Now,
	}
}

// ProcessEvent folds one usage event into the live state and returns the
// resulting session, patterns, alerts and day metrics. Safe for
// concurrent use.
func (t *Tracker) ProcessEvent(event models.UsageEvent) Update {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	session := t.upsertSession(event, now)
	t.buffer.Append(event)

	userEvents := t.userEvents(event.UserID)
	patterns := t.detector.Detect(userEvents)
	alerts := t.evaluateAlerts(session, patterns, event)
	sessionMetrics := t.dayMetrics(userEvents, now)

	if metrics.LiveSessionsActive != nil {
		metrics.LiveSessionsActive.Set(float64(len(t.sessions)))
	}
	if metrics.PatternsDetected != nil {
		for _, pattern := range patterns.Patterns {
			metrics.PatternsDetected.WithLabelValues(pattern.Type).Inc()
		}
	}
	if metrics.AlertsRaised != nil {
		for _, alert := range alerts {
			metrics.AlertsRaised.WithLabelValues(alert.Type, alert.Priority).Inc()
		}
	}

	t.logger.WithFields(logrus.Fields{
		"user_id":  event.UserID,
		"app":      event.AppName,
		"patterns": len(patterns.Patterns),
		"alerts":   len(alerts),
	}).Debug("Processed live event")

	return Update{
		Session:  *session,
		Patterns: patterns,
		Alerts:   alerts,
		Metrics:  sessionMetrics,
	}
}

// Session returns a copy of the live session for a user+app pair.
func (t *Tracker) Session(userID, appName string) (models.LiveSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	session, ok := t.sessions[sessionKey(userID, appName)]
	if !ok {
		return models.LiveSession{}, false
	}
	return *session, true
}

func sessionKey(userID, appName string) string {
	return fmt.Sprintf("%s_%s", userID, appName)
}

func (t *Tracker) upsertSession(event models.UsageEvent, now time.Time) *models.LiveSession {
	key := sessionKey(event.UserID, event.AppName)

	session, ok := t.sessions[key]
	if !ok {
		session = &models.LiveSession{
			SessionKey: key,
			StartTime:  now,
		}
		t.sessions[key] = session
	}

	session.TotalTime = now.Sub(session.StartTime).Seconds()
	session.InteractionCount += event.InteractionCount

	return session
}

func (t *Tracker) userEvents(userID string) []models.UsageEvent {
	all := t.buffer.Snapshot()
	events := make([]models.UsageEvent, 0, len(all))
	for _, event := range all {
		if event.UserID == userID {
			events = append(events, event)
		}
	}
	return events
}

func (t *Tracker) evaluateAlerts(session *models.LiveSession, patterns models.PatternResult, event models.UsageEvent) []models.Alert {
	alerts := []models.Alert{}

	if session.TotalTime/60 > t.config.LongSessionMinutes {
		alerts = append(alerts, models.Alert{
			Type:     "long_session",
			Message:  fmt.Sprintf("You've been using %s for over %.0f minutes", event.AppName, t.config.LongSessionMinutes),
			Action:   "Consider taking a break",
			Priority: models.SeverityMedium,
		})
	}

	for _, pattern := range patterns.Patterns {
		if pattern.Type == "binge_usage" {
			alerts = append(alerts, models.Alert{
				Type:     "binge_detected",
				Message:  "Extended usage detected across recent sessions",
				Action:   "Step away from the screen for a while",
				Priority: models.SeverityHigh,
			})
			break
		}
	}

	if event.Timestamp.Hour() >= t.config.LateNightHour {
		alerts = append(alerts, models.Alert{
			Type:     "late_night_usage",
			Message:  "Late-night screen time can disrupt sleep",
			Action:   "Consider winding down for the night",
			Priority: models.SeverityMedium,
		})
	}

	return alerts
}

// dayMetrics summarizes the user's buffered events for the current day.
// The streak walks backwards from the latest event while gaps stay
// under the configured limit.
func (t *Tracker) dayMetrics(events []models.UsageEvent, now time.Time) models.SessionMetrics {
	summary := models.SessionMetrics{}

	y, m, d := now.Date()
	var today []models.UsageEvent
	apps := make(map[string]bool)
	for _, event := range events {
		ey, em, ed := event.Timestamp.Date()
		if ey == y && em == m && ed == d {
			today = append(today, event)
			apps[event.AppName] = true
			summary.TotalTime += event.Duration
		}
	}

	summary.AppCount = len(apps)
	if len(today) > 0 {
		summary.AvgSession = summary.TotalTime / float64(len(today))

		streak := today[len(today)-1].Duration
		for i := len(today) - 1; i > 0; i-- {
			if today[i].Timestamp.Sub(today[i-1].Timestamp) >= t.config.StreakGap {
				break
			}
			streak += today[i-1].Duration
		}
		summary.CurrentStreak = streak
	}

	return summary
}
