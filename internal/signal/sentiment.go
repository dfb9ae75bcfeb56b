package signal

import "math"

// SentimentAdjustment maps a -1..1 sentiment score to a confidence delta
func SentimentAdjustment(score float64) float64 {
	switch {
	case score > 0.5:
		return 5
	case score > 0.3:
		return 3
	case score < -0.5:
		return -10
	case score < -0.3:
		return -5
	}
	return 0
}

// ClampConfidence bounds c to [0, 100]
func ClampConfidence(c float64) float64 {
	return math.Max(0, math.Min(100, c))
}
