package behavior

import (
	"math"
	"sort"
	"time"

	"wellbeing-server/pkg/models"
	"wellbeing-server/pkg/usage"
)

// Indices into the behavioral feature vector. The ordering is part of
// the clustering contract and must not change between calls.
const (
	FeatTotalDuration = iota
	FeatSessionCount
	FeatUniqueApps
	FeatAvgSession
	FeatInteractionRate
	FeatMorningSessions
	FeatAfternoonSessions
	FeatEveningSessions
	FeatNightSessions
	FeatSocialTime
	FeatEntertainmentTime
	FeatBingeScore
	FeatDistinctHours
	FeatWeekday

	FeatureCount
)

// longSessionMinutes is the session length above which a session
// contributes to the binge score.
const longSessionMinutes = 30

// DayFeatures is one day's behavioral feature vector.
type DayFeatures struct {
	Date   time.Time
	Vector []float64
}

// ExtractFeatures groups events by calendar day and computes the
// 14-dimensional behavioral feature vector for each day, ordered oldest
// first. Days with no events are absent; the behavioral analysis
// operates on observed days only.
func (a *Analyzer) ExtractFeatures(events []models.UsageEvent) []DayFeatures {
	if len(events) == 0 {
		return nil
	}

	byDay := make(map[time.Time][]models.UsageEvent)
	for _, event := range events {
		y, m, d := event.Timestamp.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, event.Timestamp.Location())
		byDay[day] = append(byDay[day], event)
	}

	days := make([]time.Time, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	features := make([]DayFeatures, 0, len(days))
	for _, day := range days {
		features = append(features, DayFeatures{
			Date:   day,
			Vector: a.dayVector(day, byDay[day]),
		})
	}

	return features
}

func (a *Analyzer) dayVector(day time.Time, sessions []models.UsageEvent) []float64 {
	v := make([]float64, FeatureCount)

	apps := make(map[string]bool)
	hours := make(map[int]bool)
	var totalInteractions, longSessions int

	for _, s := range sessions {
		v[FeatTotalDuration] += s.Duration
		totalInteractions += s.InteractionCount
		apps[s.AppName] = true

		hour := s.Timestamp.Hour()
		hours[hour] = true
		switch {
		case hour >= 22 || hour < 6:
			v[FeatNightSessions]++
		case hour < 12:
			v[FeatMorningSessions]++
		case hour < 18:
			v[FeatAfternoonSessions]++
		default:
			v[FeatEveningSessions]++
		}

		switch a.categories.Category(s.AppName) {
		case usage.CategorySocial:
			v[FeatSocialTime] += s.Duration
		case usage.CategoryEntertainment:
			v[FeatEntertainmentTime] += s.Duration
		}

		if s.Duration > longSessionMinutes {
			longSessions++
		}
	}

	count := float64(len(sessions))
	v[FeatSessionCount] = count
	v[FeatUniqueApps] = float64(len(apps))
	if count > 0 {
		v[FeatAvgSession] = v[FeatTotalDuration] / count
		v[FeatBingeScore] = float64(longSessions) / count
	}
	if v[FeatTotalDuration] > 0 {
		v[FeatInteractionRate] = float64(totalInteractions) / v[FeatTotalDuration]
	}
	v[FeatDistinctHours] = float64(len(hours))
	v[FeatWeekday] = float64(day.Weekday())

	return v
}

// standardize scales each column to zero mean and unit variance.
// Columns with zero variance are centered only.
func standardize(data [][]float64) [][]float64 {
	if len(data) == 0 {
		return nil
	}

	dims := len(data[0])
	n := float64(len(data))

	mean := make([]float64, dims)
	for _, row := range data {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= n
	}

	stddev := make([]float64, dims)
	for _, row := range data {
		for j, v := range row {
			d := v - mean[j]
			stddev[j] += d * d
		}
	}
	for j := range stddev {
		stddev[j] = math.Sqrt(stddev[j] / n)
	}

	scaled := make([][]float64, len(data))
	for i, row := range data {
		scaled[i] = make([]float64, dims)
		for j, v := range row {
			if stddev[j] > 0 {
				scaled[i][j] = (v - mean[j]) / stddev[j]
			} else {
				scaled[i][j] = v - mean[j]
			}
		}
	}

	return scaled
}
