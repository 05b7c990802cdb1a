package calibration

import (
	"context"
	"fmt"
	"log"

	"github.com/icitysystems/academia-sub002/internal/config"
	"github.com/icitysystems/academia-sub002/internal/exam"
	"github.com/icitysystems/academia-sub002/internal/grading"
)

// sampleOCRConfidence stands in for the scan confidence of moderation
// samples: teachers grade from clean recognized text.
const sampleOCRConfidence = 0.8

// Result is the calibration verdict. Advisory only: a failed calibration
// reports the deficiency but never blocks grading.
type Result struct {
	Accuracy         float64 `json:"accuracy"`
	AverageDeviation float64 `json:"average_deviation"`
	SampleCount      int     `json:"sample_count"`
	PairCount        int     `json:"pair_count"`
	IsCalibrated     bool    `json:"is_calibrated"`
	Message          string  `json:"message"`
}

// Engine replays verified teacher-graded samples through the live grading
// service and measures how far the automated scores land from the teacher's.
// Deterministic for a fixed model version and sample set.
type Engine struct {
	store      exam.Store
	grader     *grading.Service
	registry   *grading.Registry
	thresholds config.Thresholds
}

func NewEngine(store exam.Store, grader *grading.Service, registry *grading.Registry, t config.Thresholds) *Engine {
	return &Engine{store: store, grader: grader, registry: registry, thresholds: t}
}

func (e *Engine) Run(ctx context.Context, examID string) (Result, error) {
	ex, err := e.store.GetExam(ctx, examID)
	if err != nil {
		return Result{}, err
	}
	if e.registry != nil {
		// Calibration must measure the classifier batch grading will run: the
		// store's active model when one loads, else the rule path.
		_ = e.registry.Sync(ctx, e.store, examID)
	}
	samples, err := e.store.VerifiedSamples(ctx, examID)
	if err != nil {
		return Result{}, err
	}
	if len(samples) < e.thresholds.MinCalibrationSamples {
		return Result{}, &exam.InsufficientDataError{Need: e.thresholds.MinCalibrationSamples, Got: len(samples)}
	}

	pairs := 0
	correct := 0
	devSum := 0.0
	for _, sample := range samples {
		for _, sc := range sample.Scores {
			q, ok := ex.Question(sc.QuestionID)
			if !ok || q.Points <= 0 {
				continue
			}
			graded, err := e.grader.Grade(examID, q, sc.Text, sampleOCRConfidence)
			if err != nil {
				continue
			}
			deviation := abs(graded.Score-sc.Score) / q.Points
			devSum += deviation
			if deviation <= e.thresholds.DeviationTolerance {
				correct++
			}
			pairs++
		}
	}
	if pairs == 0 {
		return Result{}, exam.Validationf("moderation samples contain no gradable question scores")
	}

	res := Result{
		Accuracy:         float64(correct) / float64(pairs),
		AverageDeviation: devSum / float64(pairs),
		SampleCount:      len(samples),
		PairCount:        pairs,
	}
	res.IsCalibrated = res.Accuracy >= e.thresholds.CalibrationTarget
	if res.IsCalibrated {
		res.Message = fmt.Sprintf("Calibration successful: %.0f%% of %d samples within tolerance.", res.Accuracy*100, pairs)
	} else {
		res.Message = fmt.Sprintf("Calibration below target: %.0f%% accuracy (need %.0f%%). Grading proceeds; consider more training data.",
			res.Accuracy*100, e.thresholds.CalibrationTarget*100)
	}
	log.Printf("calibration: exam %s accuracy=%.3f avg_deviation=%.3f calibrated=%v",
		examID, res.Accuracy, res.AverageDeviation, res.IsCalibrated)
	return res, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
