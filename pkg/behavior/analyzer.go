package behavior

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"wellbeing-server/pkg/models"
)

// Defaults for computations that need a minimum amount of history.
const (
	minClusterDays     = 4
	minAnomalyDays     = 5
	anomalyWindow      = 14
	recentDays         = 3
	stabilityWindow    = 7
	minConsistencyDays = 7
	defaultStability   = 0.5
	defaultConsistency = 0.5
)

// clusterNames labels the behavior archetypes. The mapping is positional
// over freshly fitted clusters: centroids are re-fitted from the
// available window on every call, so the names are heuristic labels
// rather than stable identities.
var clusterNames = map[int]string{
	0: "Light User",
	1: "Heavy User",
	2: "Binge User",
	3: "Balanced User",
}

// CategoryLookup resolves app names to usage categories.
type CategoryLookup interface {
	Category(appName string) string
}

// Analyzer performs behavioral clustering, anomaly detection and usage
// pattern analysis over a user's event history.
type Analyzer struct {
	logger     *logrus.Entry
	categories CategoryLookup
	clusterer  *kMeans
}

// NewAnalyzer creates a behavioral analyzer.
func NewAnalyzer(logger *logrus.Logger, categories CategoryLookup) *Analyzer {
	return &Analyzer{
		logger:     logger.WithField("component", "behavior_analyzer"),
		categories: categories,
		clusterer:  newKMeans(4),
	}
}

// Analyze runs the full behavioral analysis for a user.
func (a *Analyzer) Analyze(userID string, events []models.UsageEvent) *models.BehaviorReport {
	features := a.ExtractFeatures(events)

	profile := a.Cluster(features)
	anomalies := a.DetectAnomalies(features)
	patterns := a.AnalyzePatterns(events)
	insights := a.behavioralInsights(profile, anomalies, patterns)

	a.logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"days":      len(features),
		"cluster":   profile.ClusterName,
		"anomalies": len(anomalies),
	}).Debug("Behavioral analysis complete")

	return &models.BehaviorReport{
		UserID:          userID,
		Profile:         profile,
		Anomalies:       anomalies,
		Patterns:        patterns,
		Insights:        insights,
		Recommendations: a.behavioralRecommendations(insights),
	}
}

// Cluster assigns the most recent day to one of four behavior
// archetypes. Fewer than four days of history yields the documented
// insufficient-data profile.
func (a *Analyzer) Cluster(features []DayFeatures) models.ClusterProfile {
	if len(features) < minClusterDays {
		return models.ClusterProfile{
			Cluster:     -1,
			ClusterName: "Insufficient data",
			Stability:   defaultStability,
		}
	}

	matrix := make([][]float64, len(features))
	for i, f := range features {
		matrix[i] = f.Vector
	}

	assignments := a.clusterer.fitPredict(standardize(matrix))
	current := assignments[len(assignments)-1]

	name, ok := clusterNames[current]
	if !ok {
		name = "Unknown"
	}

	return models.ClusterProfile{
		Cluster:     current,
		ClusterName: name,
		Stats:       clusterStats(matrix, assignments, current),
		Stability:   Stability(assignments),
	}
}

// clusterStats averages selected raw features across the days assigned
// to the user's cluster.
func clusterStats(matrix [][]float64, assignments []int, cluster int) map[string]float64 {
	sums := make([]float64, FeatureCount)
	count := 0
	for i, row := range matrix {
		if assignments[i] != cluster {
			continue
		}
		count++
		for j, v := range row {
			sums[j] += v
		}
	}

	if count == 0 {
		return nil
	}

	n := float64(count)
	return map[string]float64{
		"avg_daily_usage":    sums[FeatTotalDuration] / n,
		"avg_sessions":       sums[FeatSessionCount] / n,
		"avg_app_diversity":  sums[FeatUniqueApps] / n,
		"avg_session_length": sums[FeatAvgSession] / n,
		"binge_tendency":     sums[FeatBingeScore] / n,
	}
}

// Stability is the fraction of the last seven assignments matching the
// most common one in that window. Shorter histories return the 0.5
// default.
func Stability(assignments []int) float64 {
	if len(assignments) < stabilityWindow {
		return defaultStability
	}

	recent := assignments[len(assignments)-stabilityWindow:]
	counts := make(map[int]int)
	for _, c := range recent {
		counts[c]++
	}

	most := 0
	for _, n := range counts {
		if n > most {
			most = n
		}
	}

	return float64(most) / float64(len(recent))
}

// DetectAnomalies compares the most recent three days against the
// earlier history inside a trailing 14-day window. Fewer than five days
// of features returns an empty list. Each check is independent.
func (a *Analyzer) DetectAnomalies(features []DayFeatures) []models.Anomaly {
	anomalies := []models.Anomaly{}
	if len(features) < minAnomalyDays {
		return anomalies
	}

	window := features
	if len(window) > anomalyWindow {
		window = window[len(window)-anomalyWindow:]
	}

	split := len(window) - recentDays
	earlier, recent := window[:split], window[split:]

	// Usage spike.
	recentUsage := featureMean(recent, FeatTotalDuration)
	historicalUsage := featureMean(earlier, FeatTotalDuration)
	if historicalUsage > 0 && recentUsage > historicalUsage*1.5 {
		severity := models.SeverityMedium
		if recentUsage > historicalUsage*2 {
			severity = models.SeverityHigh
		}
		anomalies = append(anomalies, models.Anomaly{
			Type:        "usage_spike",
			Severity:    severity,
			Description: fmt.Sprintf("Usage increased by %.1f%%", (recentUsage/historicalUsage-1)*100),
		})
	}

	// Night usage surge.
	recentNight := featureMean(recent, FeatNightSessions)
	historicalNight := featureMean(earlier, FeatNightSessions)
	if historicalNight > 0 && recentNight > historicalNight*2 {
		anomalies = append(anomalies, models.Anomaly{
			Type:        "night_usage_increase",
			Severity:    models.SeverityMedium,
			Description: "Significant increase in late-night usage",
		})
	}

	// Binge behavior is flagged on the recent level alone.
	if featureMean(recent, FeatBingeScore) > 0.3 {
		anomalies = append(anomalies, models.Anomaly{
			Type:        "binge_behavior",
			Severity:    models.SeverityHigh,
			Description: "Increased binge usage patterns detected",
		})
	}

	return anomalies
}

func featureMean(features []DayFeatures, index int) float64 {
	if len(features) == 0 {
		return 0
	}
	var sum float64
	for _, f := range features {
		sum += f.Vector[index]
	}
	return sum / float64(len(features))
}

// ConsistencyScore measures how regular daily totals are: max(0, 1-CV)
// where CV is the coefficient of variation. Fewer than seven days
// returns the 0.5 default; a zero mean returns 0.
func ConsistencyScore(dailyTotals []float64) float64 {
	if len(dailyTotals) < minConsistencyDays {
		return defaultConsistency
	}

	mean, stddev := meanStddev(dailyTotals)
	if mean == 0 {
		return 0
	}

	consistency := 1 - stddev/mean
	if consistency < 0 {
		return 0
	}
	return consistency
}

func meanStddev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}

	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))

	return mean, math.Sqrt(variance)
}

// AnalyzePatterns computes hour, weekday and per-app usage
// distributions plus consistency and variability measures.
func (a *Analyzer) AnalyzePatterns(events []models.UsageEvent) models.PatternAnalysis {
	analysis := models.PatternAnalysis{
		HourlyDistribution: make(map[int]float64),
		DailyDistribution:  make(map[int]float64),
		AppDistribution:    make(map[string]float64),
	}
	if len(events) == 0 {
		analysis.ConsistencyScore = defaultConsistency
		return analysis
	}

	dailyTotals := make(map[string]float64)
	appTotals := make(map[string]float64)
	hours := make(map[int]bool)
	var durationSum float64

	for _, event := range events {
		hour := event.Timestamp.Hour()
		analysis.HourlyDistribution[hour] += event.Duration
		analysis.DailyDistribution[int(event.Timestamp.Weekday())] += event.Duration
		appTotals[event.AppName] += event.Duration
		dailyTotals[event.Timestamp.Format("2006-01-02")] += event.Duration
		hours[hour] = true
		durationSum += event.Duration
	}

	for hour, total := range analysis.HourlyDistribution {
		if total > analysis.HourlyDistribution[analysis.PeakUsageHour] {
			analysis.PeakUsageHour = hour
		}
	}
	for day, total := range analysis.DailyDistribution {
		if total > analysis.DailyDistribution[analysis.PeakUsageDay] {
			analysis.PeakUsageDay = day
		}
	}

	// Keep only the top five apps.
	type appUsage struct {
		name  string
		total float64
	}
	apps := make([]appUsage, 0, len(appTotals))
	for name, total := range appTotals {
		apps = append(apps, appUsage{name, total})
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].total > apps[j].total })
	for i, app := range apps {
		if i >= 5 {
			break
		}
		analysis.AppDistribution[app.name] = app.total
	}

	totals := make([]float64, 0, len(dailyTotals))
	for _, total := range dailyTotals {
		totals = append(totals, total)
	}
	analysis.ConsistencyScore = ConsistencyScore(totals)

	durations := make([]float64, len(events))
	for i, event := range events {
		durations[i] = event.Duration
	}
	mean, stddev := meanStddev(durations)
	durationCV := 0.0
	if mean > 0 {
		durationCV = stddev / mean
	}

	analysis.UsageVariability = models.UsageVariability{
		DurationVariability: durationCV,
		TimeSpread:          float64(len(hours)) / 24,
		SessionRegularity:   1 - durationCV,
	}

	return analysis
}

func (a *Analyzer) behavioralInsights(profile models.ClusterProfile, anomalies []models.Anomaly, patterns models.PatternAnalysis) []models.Insight {
	insights := []models.Insight{}

	switch profile.ClusterName {
	case "Heavy User":
		insights = append(insights, models.Insight{
			Type:     "usage_level",
			Message:  "You're classified as a heavy user. Consider setting daily limits.",
			Severity: models.SeverityHigh,
		})
	case "Binge User":
		insights = append(insights, models.Insight{
			Type:     "usage_pattern",
			Message:  "Binge usage patterns detected. Try breaking sessions into smaller chunks.",
			Severity: models.SeverityHigh,
		})
	}

	for _, anomaly := range anomalies {
		insights = append(insights, models.Insight{
			Type:     "anomaly",
			Message:  fmt.Sprintf("Anomaly detected: %s", anomaly.Description),
			Severity: anomaly.Severity,
		})
	}

	if patterns.PeakUsageHour >= 22 || patterns.PeakUsageHour <= 6 {
		insights = append(insights, models.Insight{
			Type:     "time_pattern",
			Message:  "Peak usage during late night/early morning may affect sleep.",
			Severity: models.SeverityMedium,
		})
	}

	if patterns.ConsistencyScore < 0.3 {
		insights = append(insights, models.Insight{
			Type:     "consistency",
			Message:  "Highly variable usage patterns. Consider establishing routines.",
			Severity: models.SeverityLow,
		})
	}

	return insights
}

func (a *Analyzer) behavioralRecommendations(insights []models.Insight) []string {
	var recommendations []string

	highPriority := false
	for _, insight := range insights {
		if insight.Severity == models.SeverityHigh {
			highPriority = true
			break
		}
	}

	if highPriority {
		recommendations = append(recommendations,
			"Set strict daily usage limits",
			"Use app blocking during peak hours",
			"Schedule regular digital detox periods",
		)
	}

	for _, insight := range insights {
		switch insight.Type {
		case "time_pattern":
			recommendations = append(recommendations, "Enable night mode and usage restrictions after 9 PM")
		case "usage_pattern":
			recommendations = append(recommendations, "Use the Pomodoro technique: 25 min usage, 5 min break")
		case "consistency":
			recommendations = append(recommendations, "Create a structured daily routine for device usage")
		}
	}

	recommendations = append(recommendations,
		"Set up break reminders every 30 minutes",
		"Use voice notifications for usage awareness",
	)

	seen := make(map[string]bool, len(recommendations))
	result := recommendations[:0]
	for _, rec := range recommendations {
		if !seen[rec] {
			seen[rec] = true
			result = append(result, rec)
		}
	}
	return result
}
