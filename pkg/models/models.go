package models

import (
	"time"
)

// UsageEvent is a single recorded app usage session. Events are immutable
// once recorded; the ingestion boundary validates them before they reach
// the analysis pipeline.
type UsageEvent struct {
	UserID           string    `json:"user_id"`
	AppName          string    `json:"app_name"`
	Duration         float64   `json:"duration"` // minutes
	Timestamp        time.Time `json:"timestamp"`
	InteractionCount int       `json:"interaction_count,omitempty"`
}

// DailyAggregate summarizes one user's usage for a single calendar day.
// It is derived fresh from the event stream each time; a new aggregate
// replaces the old one when source events change.
type DailyAggregate struct {
	Date               time.Time `json:"date"`
	TotalDuration      float64   `json:"total_duration"`
	SessionCount       int       `json:"session_count"`
	MorningUsage       float64   `json:"morning_usage"`
	AfternoonUsage     float64   `json:"afternoon_usage"`
	EveningUsage       float64   `json:"evening_usage"`
	NightUsage         float64   `json:"night_usage"`
	BingeSessions      int       `json:"binge_sessions"`
	MaxContinuousUsage float64   `json:"max_continuous_usage"`
	SocialMediaTime    float64   `json:"social_media_time"`
	EntertainmentTime  float64   `json:"entertainment_time"`
	ProductivityTime   float64   `json:"productivity_time"`
	OtherTime          float64   `json:"other_time"`
}

// Risk levels produced by the scorers.
const (
	RiskLow      = 0
	RiskModerate = 1
	RiskHigh     = 2
	RiskCritical = 3
)

// RiskAssessment is the result of scoring a day (or live session).
type RiskAssessment struct {
	RiskLevel       int     `json:"risk_level"`
	RiskProbability float64 `json:"risk_probability"`
	RiskLabel       string  `json:"risk_label"`
}

// Insight types and severities.
const (
	InsightWarning  = "warning"
	InsightAlert    = "alert"
	InsightPositive = "positive"
	InsightInfo     = "info"

	SeverityLow      = "low"
	SeverityModerate = "moderate"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Insight is a single human-readable observation derived from one
// comparison (trend slope or threshold crossing).
type Insight struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// ClusterProfile describes which behavior archetype the user's most
// recent day falls into.
type ClusterProfile struct {
	Cluster     int                `json:"cluster"`
	ClusterName string             `json:"cluster_name"`
	Stats       map[string]float64 `json:"cluster_stats,omitempty"`
	Stability   float64            `json:"stability"`
}

// Anomaly flags a statistical deviation between a recent sub-window and
// older history.
type Anomaly struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// Pattern is a behavior detected over the live event buffer.
type Pattern struct {
	Type           string  `json:"type"`
	Severity       string  `json:"severity,omitempty"`
	Duration       float64 `json:"duration,omitempty"` // minutes
	PeakHour       int     `json:"peak_hour,omitempty"`
	PeakUsage      float64 `json:"peak_usage,omitempty"` // minutes
	AppCount       int     `json:"app_count,omitempty"`
	Recommendation string  `json:"recommendation,omitempty"`
}

// PatternResult bundles the detected patterns with an overall confidence.
type PatternResult struct {
	Patterns   []Pattern `json:"patterns"`
	Confidence float64   `json:"confidence"`
}

// Alert is an advisory notification raised by the real-time tracker.
// Alerts are recomputed on each event and never persisted.
type Alert struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Action   string `json:"action"`
	Priority string `json:"priority"`
}

// LiveSession tracks an ongoing usage session for one (user, app) pair.
// It is mutated in place as events for the same key arrive.
type LiveSession struct {
	SessionKey       string    `json:"session_key"`
	StartTime        time.Time `json:"start_time"`
	TotalTime        float64   `json:"total_time"` // seconds since start
	InteractionCount int       `json:"interactions"`
}

// SessionMetrics summarizes a user's live usage for the current day.
type SessionMetrics struct {
	TotalTime     float64 `json:"total_time"`  // minutes
	AppCount      int     `json:"app_count"`
	AvgSession    float64 `json:"avg_session"` // minutes
	CurrentStreak float64 `json:"current_streak"`
}

// PatternAnalysis describes longer-horizon usage patterns over the
// aggregated history.
type PatternAnalysis struct {
	PeakUsageHour      int                `json:"peak_usage_hour"`
	PeakUsageDay       int                `json:"peak_usage_day"`
	HourlyDistribution map[int]float64    `json:"hourly_distribution"`
	DailyDistribution  map[int]float64    `json:"daily_distribution"`
	AppDistribution    map[string]float64 `json:"app_distribution"`
	ConsistencyScore   float64            `json:"consistency_score"`
	UsageVariability   UsageVariability   `json:"usage_variability"`
}

// UsageVariability captures how irregular the user's sessions are.
type UsageVariability struct {
	DurationVariability float64 `json:"duration_variability"`
	TimeSpread          float64 `json:"time_spread"`
	SessionRegularity   float64 `json:"session_regularity"`
}

// BehaviorReport is the full output of a behavioral analysis run.
type BehaviorReport struct {
	UserID          string          `json:"user_id"`
	Profile         ClusterProfile  `json:"behavior_cluster"`
	Anomalies       []Anomaly       `json:"anomalies"`
	Patterns        PatternAnalysis `json:"patterns"`
	Insights        []Insight       `json:"insights"`
	Recommendations []string        `json:"recommendations"`
}

// AnalysisReport is the aggregate result the service persists and serves.
type AnalysisReport struct {
	UserID          string           `json:"user_id"`
	GeneratedAt     time.Time        `json:"generated_at"`
	Window          []DailyAggregate `json:"window"`
	CurrentRisk     RiskAssessment   `json:"current_risk"`
	Insights        []Insight        `json:"insights"`
	Recommendations []string         `json:"recommendations"`
	Behavior        *BehaviorReport  `json:"behavior,omitempty"`
}
