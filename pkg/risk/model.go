package risk

import (
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"wellbeing-server/pkg/errors"
	"wellbeing-server/pkg/models"
)

// FeatureCount is the dimensionality of the risk feature vector. The
// ordering of ExtractFeatures is part of the scorer's contract: trained
// models are scored against the same positions they were fitted on.
const FeatureCount = 7

// ExtractFeatures builds the fixed-order feature vector for one day:
// total duration, session count, night usage, average session length,
// binge sessions, social media time, max continuous usage.
func ExtractFeatures(day models.DailyAggregate) []float64 {
	avgSession := 0.0
	if day.SessionCount > 0 {
		avgSession = day.TotalDuration / float64(day.SessionCount)
	}

	return []float64{
		day.TotalDuration,
		float64(day.SessionCount),
		day.NightUsage,
		avgSession,
		float64(day.BingeSessions),
		day.SocialMediaTime,
		day.MaxContinuousUsage,
	}
}

// scaler standardizes features to zero mean and unit variance using
// statistics captured at training time.
type scaler struct {
	mean   []float64
	stddev []float64
}

func fitScaler(samples [][]float64) *scaler {
	n := float64(len(samples))
	dims := len(samples[0])

	s := &scaler{
		mean:   make([]float64, dims),
		stddev: make([]float64, dims),
	}

	for _, sample := range samples {
		for j, v := range sample {
			s.mean[j] += v
		}
	}
	for j := range s.mean {
		s.mean[j] /= n
	}

	for _, sample := range samples {
		for j, v := range sample {
			d := v - s.mean[j]
			s.stddev[j] += d * d
		}
	}
	for j := range s.stddev {
		s.stddev[j] = math.Sqrt(s.stddev[j] / n)
	}

	return s
}

func (s *scaler) transform(sample []float64) []float64 {
	scaled := make([]float64, len(sample))
	for j, v := range sample {
		if s.stddev[j] > 0 {
			scaled[j] = (v - s.mean[j]) / s.stddev[j]
		} else {
			scaled[j] = v - s.mean[j]
		}
	}
	return scaled
}

// ModelScorer is the statistical scoring strategy. It holds trained
// model state (per-class centroids in standardized feature space plus
// the scaler statistics) that is fitted once and then safe for
// concurrent reads. Until trained it falls back to the rule-based
// scorer so callers always receive a usable assessment.
type ModelScorer struct {
	logger   *logrus.Entry
	fallback Scorer

	mu        sync.RWMutex
	trained   bool
	scaler    *scaler
	centroids map[int][]float64
}

// NewModelScorer creates a model-based scorer that delegates to the
// given fallback until Train succeeds.
func NewModelScorer(logger *logrus.Logger, fallback Scorer) *ModelScorer {
	return &ModelScorer{
		logger:   logger.WithField("component", "model_scorer"),
		fallback: fallback,
	}
}

// IsTrained reports whether the scorer has a fitted model.
func (s *ModelScorer) IsTrained() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trained
}

// Train fits the scaler and per-class centroids from historical
// (feature vector, risk level) pairs. Training is mutually exclusive
// with itself and with scoring; once it returns, concurrent reads are
// safe.
func (s *ModelScorer) Train(samples [][]float64, labels []int) error {
	if len(samples) == 0 || len(samples) != len(labels) {
		return errors.ErrInvalidInput
	}
	for _, sample := range samples {
		if len(sample) != FeatureCount {
			return errors.New("feature vector has wrong dimensionality",
				map[string]interface{}{"want": FeatureCount, "got": len(sample)})
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sc := fitScaler(samples)

	sums := make(map[int][]float64)
	counts := make(map[int]int)
	for i, sample := range samples {
		scaled := sc.transform(sample)
		label := labels[i]

		if sums[label] == nil {
			sums[label] = make([]float64, FeatureCount)
		}
		for j, v := range scaled {
			sums[label][j] += v
		}
		counts[label]++
	}

	centroids := make(map[int][]float64, len(sums))
	for label, sum := range sums {
		centroid := make([]float64, FeatureCount)
		for j, v := range sum {
			centroid[j] = v / float64(counts[label])
		}
		centroids[label] = centroid
	}

	s.scaler = sc
	s.centroids = centroids
	s.trained = true

	s.logger.WithFields(logrus.Fields{
		"samples": len(samples),
		"classes": len(centroids),
	}).Info("Risk model trained")

	return nil
}

// Assess scores a day with the trained model, or with the fallback
// scorer when no model has been fitted yet.
func (s *ModelScorer) Assess(day models.DailyAggregate) models.RiskAssessment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.trained {
		return s.fallback.Assess(day)
	}

	scaled := s.scaler.transform(ExtractFeatures(day))

	// Nearest centroid with a softmax over negative distances gives a
	// class probability alongside the level.
	distances := make(map[int]float64, len(s.centroids))
	best, bestDist := models.RiskLow, math.Inf(1)
	for label, centroid := range s.centroids {
		d := euclidean(scaled, centroid)
		distances[label] = d
		if d < bestDist {
			best, bestDist = label, d
		}
	}

	var total float64
	for _, d := range distances {
		total += math.Exp(-d)
	}

	probability := 1.0
	if total > 0 {
		probability = math.Exp(-bestDist) / total
	}

	return models.RiskAssessment{
		RiskLevel:       best,
		RiskProbability: probability,
		RiskLabel:       RiskLabel(best),
	}
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
