package training

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/icitysystems/academia-sub002/internal/exam"
	"github.com/icitysystems/academia-sub002/internal/grading"
)

// Example is one labeled feature vector.
type Example struct {
	Features []float64
	Label    exam.Label
}

// Metrics captures the outcome of one training run.
type Metrics struct {
	Accuracy            float64 `json:"accuracy"`
	ValidationAccuracy  float64 `json:"validation_accuracy"`
	Loss                float64 `json:"loss"`
	ConfusionMatrix     [][]int `json:"confusion_matrix"`
	Epochs              int     `json:"epochs"`
	ModelType           string  `json:"model_type"`
	TrainingTimeSeconds float64 `json:"training_time_seconds"`
}

// fitSoftmax trains a standardized multinomial logistic model by full-batch
// gradient descent. Deterministic for a given config: the only randomness is
// the seeded shuffle used for the validation split.
func fitSoftmax(examples []Example, cfg Config) (grading.Artifact, Metrics, error) {
	start := time.Now()
	n := len(examples)
	if n == 0 {
		return grading.Artifact{}, Metrics{}, fmt.Errorf("no training examples")
	}
	d := grading.NumFeatures
	for i, ex := range examples {
		if len(ex.Features) != d {
			return grading.Artifact{}, Metrics{}, fmt.Errorf("example %d has %d features, want %d", i, len(ex.Features), d)
		}
	}
	k := len(exam.Labels)
	classIdx := map[exam.Label]int{}
	for i, l := range exam.Labels {
		classIdx[l] = i
	}

	mean, std := standardizerStats(examples, d)
	x := make([][]float64, n)
	y := make([]int, n)
	for i, ex := range examples {
		xi := make([]float64, d)
		for j := range xi {
			s := std[j]
			if s < 1e-9 {
				s = 1
			}
			xi[j] = (ex.Features[j] - mean[j]) / s
		}
		x[i] = xi
		ci, ok := classIdx[ex.Label]
		if !ok {
			return grading.Artifact{}, Metrics{}, fmt.Errorf("example %d has unknown label %q", i, ex.Label)
		}
		y[i] = ci
	}

	// Seeded shuffle, then hold out the validation tail.
	rng := rand.New(rand.NewSource(cfg.Seed))
	perm := rng.Perm(n)
	valN := int(cfg.ValidationSplit * float64(n))
	if valN >= n {
		valN = n - 1
	}
	trainIdx := perm[:n-valN]
	valIdx := perm[n-valN:]

	w := make([][]float64, k)
	for c := range w {
		w[c] = make([]float64, d)
	}
	b := make([]float64, k)

	probs := make([]float64, k)
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		gradW := make([][]float64, k)
		for c := range gradW {
			gradW[c] = make([]float64, d)
		}
		gradB := make([]float64, k)
		for _, i := range trainIdx {
			forward(w, b, x[i], probs)
			for c := 0; c < k; c++ {
				delta := probs[c]
				if c == y[i] {
					delta -= 1
				}
				gradB[c] += delta
				for j := 0; j < d; j++ {
					gradW[c][j] += delta * x[i][j]
				}
			}
		}
		scale := cfg.LearningRate / float64(len(trainIdx))
		for c := 0; c < k; c++ {
			b[c] -= scale * gradB[c]
			for j := 0; j < d; j++ {
				w[c][j] -= scale * gradW[c][j]
			}
		}
	}

	m := Metrics{
		Epochs:    cfg.Epochs,
		ModelType: cfg.ModelType,
	}
	m.Accuracy, m.Loss = evaluate(w, b, x, y, trainIdx)
	evalIdx := valIdx
	if len(evalIdx) == 0 {
		evalIdx = trainIdx
	}
	m.ValidationAccuracy, _ = evaluate(w, b, x, y, evalIdx)
	m.ConfusionMatrix = confusion(w, b, x, y, evalIdx, k)
	m.TrainingTimeSeconds = time.Since(start).Seconds()

	art := grading.Artifact{
		SchemaVersion: grading.FeatureSchemaVersion,
		Labels:        exam.Labels,
		Mean:          mean,
		Std:           std,
		Weights:       w,
		Bias:          b,
		TrainedAt:     time.Now().Unix(),
		ModelType:     cfg.ModelType,
	}
	return art, m, nil
}

func standardizerStats(examples []Example, d int) (mean, std []float64) {
	n := float64(len(examples))
	mean = make([]float64, d)
	std = make([]float64, d)
	for _, ex := range examples {
		for j := 0; j < d; j++ {
			mean[j] += ex.Features[j]
		}
	}
	for j := range mean {
		mean[j] /= n
	}
	for _, ex := range examples {
		for j := 0; j < d; j++ {
			diff := ex.Features[j] - mean[j]
			std[j] += diff * diff
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / n)
	}
	return mean, std
}

func forward(w [][]float64, b []float64, xi []float64, out []float64) {
	maxZ := math.Inf(-1)
	for c := range w {
		z := b[c]
		for j, wj := range w[c] {
			z += wj * xi[j]
		}
		out[c] = z
		if z > maxZ {
			maxZ = z
		}
	}
	sum := 0.0
	for c := range out {
		out[c] = math.Exp(out[c] - maxZ)
		sum += out[c]
	}
	for c := range out {
		out[c] /= sum
	}
}

func evaluate(w [][]float64, b []float64, x [][]float64, y []int, idx []int) (accuracy, loss float64) {
	if len(idx) == 0 {
		return 0, 0
	}
	probs := make([]float64, len(w))
	hits := 0
	for _, i := range idx {
		forward(w, b, x[i], probs)
		best := 0
		for c := range probs {
			if probs[c] > probs[best] {
				best = c
			}
		}
		if best == y[i] {
			hits++
		}
		p := probs[y[i]]
		if p < 1e-12 {
			p = 1e-12
		}
		loss -= math.Log(p)
	}
	return float64(hits) / float64(len(idx)), loss / float64(len(idx))
}

func confusion(w [][]float64, b []float64, x [][]float64, y []int, idx []int, k int) [][]int {
	cm := make([][]int, k)
	for i := range cm {
		cm[i] = make([]int, k)
	}
	probs := make([]float64, k)
	for _, i := range idx {
		forward(w, b, x[i], probs)
		best := 0
		for c := range probs {
			if probs[c] > probs[best] {
				best = c
			}
		}
		cm[y[i]][best]++
	}
	return cm
}
