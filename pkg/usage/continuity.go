package usage

import (
	"time"

	"wellbeing-server/pkg/models"
)

// MaxContinuous computes the longest continuous usage run in minutes.
// Sessions must be sorted by timestamp. A session continues the previous
// run when the gap between their timestamps is below maxGap; otherwise
// the run resets to the session's own duration. The maximum running
// total ever seen is returned, not the final one.
func MaxContinuous(sessions []models.UsageEvent, maxGap time.Duration) float64 {
	if len(sessions) == 0 {
		return 0
	}

	max := 0.0
	current := sessions[0].Duration

	for i := 1; i < len(sessions); i++ {
		gap := sessions[i].Timestamp.Sub(sessions[i-1].Timestamp)

		if gap < maxGap {
			current += sessions[i].Duration
		} else {
			if current > max {
				max = current
			}
			current = sessions[i].Duration
		}
	}

	if current > max {
		max = current
	}

	return max
}
