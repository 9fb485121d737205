package usage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"wellbeing-server/pkg/models"
)

func sessionsAt(start time.Time, offsets []time.Duration, durations []float64) []models.UsageEvent {
	sessions := make([]models.UsageEvent, len(offsets))
	for i := range offsets {
		sessions[i] = models.UsageEvent{
			UserID:    "user-1",
			AppName:   "App",
			Duration:  durations[i],
			Timestamp: start.Add(offsets[i]),
		}
	}
	return sessions
}

func TestMaxContinuousEmpty(t *testing.T) {
	assert.Equal(t, 0.0, MaxContinuous(nil, 5*time.Minute))
}

func TestMaxContinuousSingleSession(t *testing.T) {
	start := time.Date(2026, 8, 10, 10, 0, 0, 0, time.UTC)
	sessions := sessionsAt(start, []time.Duration{0}, []float64{42})

	assert.Equal(t, 42.0, MaxContinuous(sessions, 5*time.Minute))
}

func TestMaxContinuousMergesCloseSessions(t *testing.T) {
	start := time.Date(2026, 8, 10, 10, 0, 0, 0, time.UTC)

	// Three sessions 3 minutes apart, then a 10-minute gap before a
	// short trailing session: the first three merge to 30, the trailer
	// starts a new run of 5.
	sessions := sessionsAt(start,
		[]time.Duration{0, 3 * time.Minute, 6 * time.Minute, 16 * time.Minute},
		[]float64{10, 10, 10, 5},
	)

	assert.Equal(t, 30.0, MaxContinuous(sessions, 5*time.Minute))
}

func TestMaxContinuousTracksMaximumNotLast(t *testing.T) {
	start := time.Date(2026, 8, 10, 10, 0, 0, 0, time.UTC)

	// A large early run followed by a small late one.
	sessions := sessionsAt(start,
		[]time.Duration{0, 2 * time.Minute, 4 * time.Minute, 60 * time.Minute},
		[]float64{20, 20, 20, 5},
	)

	assert.Equal(t, 60.0, MaxContinuous(sessions, 5*time.Minute))
}

func TestMaxContinuousMonotonicity(t *testing.T) {
	start := time.Date(2026, 8, 10, 10, 0, 0, 0, time.UTC)

	sessions := sessionsAt(start,
		[]time.Duration{0, 10 * time.Minute, 20 * time.Minute},
		[]float64{5, 50, 7},
	)

	result := MaxContinuous(sessions, 5*time.Minute)

	// Never below any single session's own duration.
	for _, s := range sessions {
		assert.GreaterOrEqual(t, result, s.Duration)
	}
}

func TestMaxContinuousExactGapResets(t *testing.T) {
	start := time.Date(2026, 8, 10, 10, 0, 0, 0, time.UTC)

	// A gap of exactly the threshold is not continuous.
	sessions := sessionsAt(start,
		[]time.Duration{0, 5 * time.Minute},
		[]float64{10, 10},
	)

	assert.Equal(t, 10.0, MaxContinuous(sessions, 5*time.Minute))
}
