package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"wellbeing-server/pkg/errors"
	"wellbeing-server/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS usage_events (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	app_name TEXT NOT NULL,
	duration REAL NOT NULL,
	timestamp TEXT NOT NULL,
	interaction_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_usage_events_user_time ON usage_events(user_id, timestamp);

CREATE TABLE IF NOT EXISTS risk_assessments (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	date TEXT NOT NULL,
	risk_level INTEGER NOT NULL,
	risk_probability REAL NOT NULL,
	risk_label TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS analyses (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	generated_at TEXT NOT NULL,
	report TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analyses_user_time ON analyses(user_id, generated_at);
`

// SQLiteRepository persists events and analysis results in a SQLite
// database file.
type SQLiteRepository struct {
	logger *logrus.Entry
	db     *sql.DB
	now    func() time.Time
}

// NewSQLiteRepository opens (or creates) the database at path and
// ensures the schema exists.
func NewSQLiteRepository(logger *logrus.Logger, path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorageFailure, "failed to open database").
			WithField("path", path)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrStorageFailure, "failed to create schema").
			WithField("path", path)
	}

	logger.WithFields(logrus.Fields{
		"component": "sqlite_store",
		"path":      path,
	}).Info("SQLite storage initialized")

	return &SQLiteRepository{
		logger: logger.WithField("component", "sqlite_store"),
		db:     db,
		now:    time.Now,
	}, nil
}

func (r *SQLiteRepository) SaveUsageEvent(ctx context.Context, event models.UsageEvent) error {
	if err := ValidateEvent(event); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO usage_events (id, user_id, app_name, duration, timestamp, interaction_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), event.UserID, event.AppName, event.Duration,
		event.Timestamp.UTC().Format(time.RFC3339Nano), event.InteractionCount)
	if err != nil {
		return errors.Wrap(errors.ErrStorageFailure, "failed to insert usage event").
			WithField("user_id", event.UserID)
	}
	return nil
}

func (r *SQLiteRepository) GetUsageEvents(ctx context.Context, userID string, days int) ([]models.UsageEvent, error) {
	cutoff := r.now().AddDate(0, 0, -days).UTC().Format(time.RFC3339Nano)

	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, app_name, duration, timestamp, interaction_count
		 FROM usage_events
		 WHERE user_id = ? AND timestamp >= ?
		 ORDER BY timestamp ASC`,
		userID, cutoff)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorageFailure, "failed to query usage events").
			WithField("user_id", userID)
	}
	defer rows.Close()

	var events []models.UsageEvent
	for rows.Next() {
		var event models.UsageEvent
		var ts string
		if err := rows.Scan(&event.UserID, &event.AppName, &event.Duration, &ts, &event.InteractionCount); err != nil {
			return nil, errors.Wrap(errors.ErrStorageFailure, "failed to scan usage event")
		}
		event.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, errors.Wrap(errors.ErrStorageFailure, "corrupt timestamp in storage").
				WithField("value", ts)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrStorageFailure, "failed to iterate usage events")
	}

	return events, nil
}

func (r *SQLiteRepository) SaveAssessment(ctx context.Context, userID string, date time.Time, assessment models.RiskAssessment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO risk_assessments (id, user_id, date, risk_level, risk_probability, risk_label, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), userID, date.UTC().Format("2006-01-02"),
		assessment.RiskLevel, assessment.RiskProbability, assessment.RiskLabel,
		r.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return errors.Wrap(errors.ErrStorageFailure, "failed to insert assessment").
			WithField("user_id", userID)
	}
	return nil
}

func (r *SQLiteRepository) SaveAnalysis(ctx context.Context, report *models.AnalysisReport) error {
	if report == nil || report.UserID == "" {
		return errors.Wrap(errors.ErrInvalidInput, "analysis report missing user ID")
	}

	blob, err := json.Marshal(report)
	if err != nil {
		return errors.Wrap(errors.ErrInternalError, "failed to encode analysis report").
			WithField("user_id", report.UserID)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO analyses (id, user_id, generated_at, report) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), report.UserID,
		report.GeneratedAt.UTC().Format(time.RFC3339Nano), string(blob))
	if err != nil {
		return errors.Wrap(errors.ErrStorageFailure, "failed to insert analysis").
			WithField("user_id", report.UserID)
	}
	return nil
}

func (r *SQLiteRepository) LatestAnalysis(ctx context.Context, userID string) (*models.AnalysisReport, error) {
	var blob string
	err := r.db.QueryRowContext(ctx,
		`SELECT report FROM analyses WHERE user_id = ? ORDER BY generated_at DESC LIMIT 1`,
		userID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "no analysis for user").
			WithField("user_id", userID)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorageFailure, "failed to query analysis").
			WithField("user_id", userID)
	}

	var report models.AnalysisReport
	if err := json.Unmarshal([]byte(blob), &report); err != nil {
		return nil, errors.Wrap(errors.ErrStorageFailure, "corrupt analysis report in storage").
			WithField("user_id", userID)
	}
	return &report, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
