package grading

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/icitysystems/academia-sub002/internal/exam"
)

// Artifact is the serialized form of a trained model: a per-feature
// standardizer plus multinomial logistic weights. The schema version and
// label ordering are recorded so a stale artifact can be rejected instead of
// silently misclassifying.
type Artifact struct {
	SchemaVersion int          `json:"schema_version"`
	Labels        []exam.Label `json:"labels"`
	Mean          []float64    `json:"mean"`
	Std           []float64    `json:"std"`
	Weights       [][]float64  `json:"weights"` // [class][feature]
	Bias          []float64    `json:"bias"`
	TrainedAt     int64        `json:"trained_at"`
	ModelType     string       `json:"model_type,omitempty"`
}

// Model is a loaded, validated artifact ready for inference.
type Model struct {
	art Artifact
}

// LoadModel parses and validates an artifact. Any structural mismatch is an
// error; the caller degrades to the rule path.
func LoadModel(artifactJSON string) (*Model, error) {
	var art Artifact
	if err := json.Unmarshal([]byte(artifactJSON), &art); err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}
	if art.SchemaVersion != FeatureSchemaVersion {
		return nil, fmt.Errorf("feature schema %d, want %d", art.SchemaVersion, FeatureSchemaVersion)
	}
	if len(art.Labels) != len(exam.Labels) {
		return nil, fmt.Errorf("artifact has %d labels, want %d", len(art.Labels), len(exam.Labels))
	}
	for i, l := range exam.Labels {
		if art.Labels[i] != l {
			return nil, fmt.Errorf("label order mismatch at %d: %s", i, art.Labels[i])
		}
	}
	if len(art.Mean) != NumFeatures || len(art.Std) != NumFeatures {
		return nil, fmt.Errorf("standardizer has %d features, want %d", len(art.Mean), NumFeatures)
	}
	if len(art.Weights) != len(art.Labels) || len(art.Bias) != len(art.Labels) {
		return nil, fmt.Errorf("weight matrix shape mismatch")
	}
	for _, row := range art.Weights {
		if len(row) != NumFeatures {
			return nil, fmt.Errorf("weight row has %d features, want %d", len(row), NumFeatures)
		}
	}
	return &Model{art: art}, nil
}

func (m *Model) Artifact() Artifact { return m.art }

// Proba returns the class probability distribution for a feature vector.
func (m *Model) Proba(features []float64) []float64 {
	x := standardize(features, m.art.Mean, m.art.Std)
	logits := make([]float64, len(m.art.Weights))
	for c, row := range m.art.Weights {
		z := m.art.Bias[c]
		for j, w := range row {
			z += w * x[j]
		}
		logits[c] = z
	}
	return softmax(logits)
}

// Predict returns the argmax class with its probability as confidence.
func (m *Model) Predict(features []float64) Prediction {
	p := m.Proba(features)
	best := 0
	for c := range p {
		if p[c] > p[best] {
			best = c
		}
	}
	return Prediction{Label: m.art.Labels[best], Confidence: p[best]}
}

func standardize(x, mean, std []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		s := std[i]
		if s < 1e-9 {
			s = 1
		}
		out[i] = (x[i] - mean[i]) / s
	}
	return out
}

func softmax(z []float64) []float64 {
	maxZ := z[0]
	for _, v := range z[1:] {
		if v > maxZ {
			maxZ = v
		}
	}
	sum := 0.0
	out := make([]float64, len(z))
	for i, v := range z {
		out[i] = math.Exp(v - maxZ)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
