package game

import "math"

// Scoring constants. The grace window absorbs network latency so a player
// answering right at the buzzer is not penalized as timed out.
const (
	MaxScore      = 100
	TimeLimitMs   = 15000
	TimeLimitSec  = TimeLimitMs / 1000
	GraceMs       = 500
	decayExponent = 1.7
)

// Score maps answer latency and correctness to points in [0, MaxScore]
// via round(MaxScore * (1 - t/T)^1.7). Incorrect answers, negative
// latencies, and latencies beyond the limit plus grace all score zero;
// latency within the grace window is clamped to the limit. Monotonically
// non-increasing in latency.
func Score(answerTimeMs int64, correct bool) int {
	if !correct {
		return 0
	}
	if answerTimeMs > TimeLimitMs+GraceMs {
		// Beyond limit+grace the answer is treated as a timeout even if the
		// client marked it correct; guards against tampered clocks.
		return 0
	}
	effective := answerTimeMs
	if effective > TimeLimitMs {
		effective = TimeLimitMs
	}
	if effective < 0 {
		return 0
	}

	t := float64(effective) / float64(TimeLimitMs)
	score := float64(MaxScore) * math.Pow(1-t, decayExponent)
	if score < 0 {
		score = 0
	}
	return int(math.Round(score))
}
