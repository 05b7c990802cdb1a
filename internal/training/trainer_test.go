package training

import (
	"testing"

	"github.com/icitysystems/academia-sub002/internal/exam"
	"github.com/icitysystems/academia-sub002/internal/grading"
)

// separable two-feature-ish corpus padded to the full vector width.
func corpus(t *testing.T) []Example {
	t.Helper()
	mk := func(f0, f1 float64, label exam.Label) Example {
		v := make([]float64, grading.NumFeatures)
		v[0] = f0
		v[8] = f1 // similarity slot
		return Example{Features: v, Label: label}
	}
	return []Example{
		mk(0.9, 0.95, exam.LabelCorrect),
		mk(0.8, 0.90, exam.LabelCorrect),
		mk(0.7, 0.50, exam.LabelPartial),
		mk(0.6, 0.45, exam.LabelPartial),
		mk(0.5, 0.05, exam.LabelIncorrect),
		mk(0.4, 0.00, exam.LabelIncorrect),
		mk(0.0, 0.00, exam.LabelSkipped),
		mk(0.0, 0.00, exam.LabelSkipped),
	}
}

func TestFitSoftmaxDeterministic(t *testing.T) {
	cfg := Config{}.withDefaults()
	a1, m1, err := fitSoftmax(corpus(t), cfg)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	a2, m2, err := fitSoftmax(corpus(t), cfg)
	if err != nil {
		t.Fatalf("refit: %v", err)
	}
	if m1.Accuracy != m2.Accuracy || m1.ValidationAccuracy != m2.ValidationAccuracy {
		t.Fatalf("metrics differ across identical runs: %+v vs %+v", m1, m2)
	}
	for c := range a1.Weights {
		for j := range a1.Weights[c] {
			if a1.Weights[c][j] != a2.Weights[c][j] {
				t.Fatalf("weight [%d][%d] differs across identical runs", c, j)
			}
		}
	}
}

func TestFitSoftmaxArtifactShape(t *testing.T) {
	art, metrics, err := fitSoftmax(corpus(t), Config{}.withDefaults())
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if art.SchemaVersion != grading.FeatureSchemaVersion {
		t.Fatalf("schema %d, want %d", art.SchemaVersion, grading.FeatureSchemaVersion)
	}
	if len(art.Weights) != len(exam.Labels) || len(art.Mean) != grading.NumFeatures {
		t.Fatalf("artifact shape: %d classes, %d features", len(art.Weights), len(art.Mean))
	}
	k := len(exam.Labels)
	if len(metrics.ConfusionMatrix) != k {
		t.Fatalf("confusion matrix has %d rows, want %d", len(metrics.ConfusionMatrix), k)
	}
	for _, row := range metrics.ConfusionMatrix {
		if len(row) != k {
			t.Fatalf("confusion row has %d cols, want %d", len(row), k)
		}
	}
	if metrics.Accuracy < 0 || metrics.Accuracy > 1 {
		t.Fatalf("accuracy %v outside [0,1]", metrics.Accuracy)
	}
}

func TestFitSoftmaxLearnsSeparableData(t *testing.T) {
	cfg := Config{Epochs: 500}.withDefaults()
	art, metrics, err := fitSoftmax(corpus(t), cfg)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if metrics.Accuracy < 0.75 {
		t.Fatalf("train accuracy %v on separable data", metrics.Accuracy)
	}

	// round trip through the serialized artifact
	m, err := grading.LoadModel(mustJSON(t, art))
	if err != nil {
		t.Fatalf("load trained artifact: %v", err)
	}
	hi := make([]float64, grading.NumFeatures)
	hi[0], hi[8] = 0.85, 0.92
	if p := m.Predict(hi); p.Label != exam.LabelCorrect {
		t.Fatalf("high-similarity vector predicted %s, want CORRECT", p.Label)
	}
}

func TestFitSoftmaxRejectsBadInput(t *testing.T) {
	cfg := Config{}.withDefaults()
	if _, _, err := fitSoftmax(nil, cfg); err == nil {
		t.Fatalf("empty corpus accepted")
	}
	bad := []Example{{Features: []float64{1, 2}, Label: exam.LabelCorrect}}
	if _, _, err := fitSoftmax(bad, cfg); err == nil {
		t.Fatalf("short feature vector accepted")
	}
	unk := corpus(t)
	unk[0].Label = "MAYBE"
	if _, _, err := fitSoftmax(unk, cfg); err == nil {
		t.Fatalf("unknown label accepted")
	}
}
