package grading

import (
	"math"

	"github.com/icitysystems/academia-sub002/internal/exam"
)

// Score maps (label, confidence, maxPoints) to the assigned score.
// CORRECT earns full points; PARTIAL earns half, nudged up by confidence but
// capped at the full partial share; INCORRECT and SKIPPED earn nothing.
// The result always lies in [0, maxPoints].
func Score(label exam.Label, confidence, maxPoints float64) float64 {
	if maxPoints <= 0 {
		return 0
	}
	var score float64
	switch label {
	case exam.LabelCorrect:
		score = maxPoints
	case exam.LabelPartial:
		share := confidence + 0.2
		if share > 1 {
			share = 1
		}
		score = round2(maxPoints * 0.5 * share)
	default:
		score = 0
	}
	if score < 0 {
		score = 0
	}
	if score > maxPoints {
		score = maxPoints
	}
	return score
}

// LetterGrade maps an aggregate percentage onto the report scale.
func LetterGrade(pct float64) string {
	switch {
	case pct >= 90:
		return "A"
	case pct >= 80:
		return "B"
	case pct >= 70:
		return "C"
	case pct >= 60:
		return "D"
	case pct >= 50:
		return "E"
	default:
		return "F"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
