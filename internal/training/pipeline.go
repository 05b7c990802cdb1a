package training

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/icitysystems/academia-sub002/internal/config"
	"github.com/icitysystems/academia-sub002/internal/exam"
	"github.com/icitysystems/academia-sub002/internal/grading"
)

// Config is the caller-facing training surface. ModelType is recorded in the
// metrics for parity with earlier deployments; every type is backed by the
// same softmax implementation.
type Config struct {
	ModelType       string  `json:"model_type,omitempty"`
	Epochs          int     `json:"epochs,omitempty"`
	LearningRate    float64 `json:"learning_rate,omitempty"`
	ValidationSplit float64 `json:"validation_split,omitempty"`
	Seed            int64   `json:"seed,omitempty"`
}

func (c Config) withDefaults() Config {
	if c.ModelType == "" {
		c.ModelType = "logistic"
	}
	if c.Epochs <= 0 {
		c.Epochs = 200
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 0.5
	}
	if c.ValidationSplit <= 0 || c.ValidationSplit >= 1 {
		c.ValidationSplit = 0.2
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	return c
}

// Pipeline turns verified moderation samples into a trained, versioned,
// active model. Every run is tracked by a TrainingSession; a failed run ends
// FAILED and never leaves a partial model active.
type Pipeline struct {
	store      exam.Store
	hybrid     *grading.Hybrid
	registry   *grading.Registry
	thresholds config.Thresholds
}

func NewPipeline(store exam.Store, hybrid *grading.Hybrid, registry *grading.Registry, t config.Thresholds) *Pipeline {
	return &Pipeline{store: store, hybrid: hybrid, registry: registry, thresholds: t}
}

// PrepareTrainingData joins each verified sample's teacher scores with the
// recognized text and extracted features. Labels derive from the awarded
// share of the question's points.
func (p *Pipeline) PrepareTrainingData(ctx context.Context, examID string) ([]Example, error) {
	ex, err := p.store.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	samples, err := p.store.VerifiedSamples(ctx, examID)
	if err != nil {
		return nil, err
	}

	var out []Example
	for _, sample := range samples {
		for _, sc := range sample.Scores {
			q, ok := ex.Question(sc.QuestionID)
			if !ok || q.Points <= 0 {
				continue
			}
			in := grading.Input{
				Text:          sc.Text,
				OCRConfidence: 0.8, // moderation scans are assumed clean
				QuestionType:  q.Type,
				Options:       q.Options,
			}
			if q.Expected != nil {
				in.ExpectedAnswer = q.Expected.Answer
			}
			out = append(out, Example{
				Features: p.hybrid.Features(in),
				Label:    labelForScore(sc.Text, sc.Score, q.Points),
			})
		}
	}
	if len(out) < p.thresholds.MinTrainingSamples {
		return nil, &exam.InsufficientDataError{Need: p.thresholds.MinTrainingSamples, Got: len(out)}
	}
	return out, nil
}

// Train runs the full pipeline: session bookkeeping, data preparation,
// fitting, artifact persistence and the atomic active-model swap.
func (p *Pipeline) Train(ctx context.Context, examID string, cfg Config) (exam.Model, Metrics, error) {
	if _, err := p.store.GetExam(ctx, examID); err != nil {
		return exam.Model{}, Metrics{}, err
	}
	cfg = cfg.withDefaults()
	cfgJSON, _ := json.Marshal(cfg)

	session := exam.TrainingSession{
		ID:         uuid.NewString(),
		ExamID:     examID,
		Status:     exam.TrainingRunning,
		ConfigJSON: string(cfgJSON),
	}
	if err := p.store.CreateTrainingSession(ctx, session); err != nil {
		return exam.Model{}, Metrics{}, err
	}

	model, metrics, err := p.train(ctx, examID, session.ID, cfg)
	if err != nil {
		_ = p.store.FinishTrainingSession(ctx, session.ID, exam.TrainingFailed, "", err.Error())
		return exam.Model{}, Metrics{}, err
	}

	metricsJSON, _ := json.Marshal(metrics)
	if err := p.store.FinishTrainingSession(ctx, session.ID, exam.TrainingCompleted, string(metricsJSON), ""); err != nil {
		return exam.Model{}, Metrics{}, err
	}
	log.Printf("training: exam %s model v%d accuracy=%.3f val=%.3f",
		examID, model.Version, metrics.Accuracy, metrics.ValidationAccuracy)
	return model, metrics, nil
}

func (p *Pipeline) train(ctx context.Context, examID, sessionID string, cfg Config) (exam.Model, Metrics, error) {
	examples, err := p.PrepareTrainingData(ctx, examID)
	if err != nil {
		return exam.Model{}, Metrics{}, err
	}
	art, metrics, err := fitSoftmax(examples, cfg)
	if err != nil {
		return exam.Model{}, Metrics{}, err
	}
	artJSON, err := json.Marshal(art)
	if err != nil {
		return exam.Model{}, Metrics{}, err
	}
	version, err := p.store.NextModelVersion(ctx, examID)
	if err != nil {
		return exam.Model{}, Metrics{}, err
	}
	model := exam.Model{
		ID:                uuid.NewString(),
		ExamID:            examID,
		Version:           version,
		Accuracy:          metrics.ValidationAccuracy,
		ArtifactJSON:      string(artJSON),
		TrainingSessionID: sessionID,
	}
	if err := p.store.PutModel(ctx, model); err != nil {
		return exam.Model{}, Metrics{}, err
	}
	// The swap is atomic: readers see either the previous active model or
	// this one, never zero or two.
	if err := p.store.ActivateModel(ctx, examID, model.ID); err != nil {
		return exam.Model{}, Metrics{}, err
	}
	model.Active = true
	if err := p.registry.Sync(ctx, p.store, examID); err != nil {
		return exam.Model{}, Metrics{}, err
	}
	return model, metrics, nil
}

func labelForScore(text string, score, points float64) exam.Label {
	if strings.TrimSpace(text) == "" {
		return exam.LabelSkipped
	}
	ratio := score / points
	switch {
	case ratio >= 0.99:
		return exam.LabelCorrect
	case ratio <= 0.01:
		return exam.LabelIncorrect
	default:
		return exam.LabelPartial
	}
}
