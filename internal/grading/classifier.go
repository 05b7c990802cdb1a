package grading

import (
	"github.com/icitysystems/academia-sub002/internal/config"
	"github.com/icitysystems/academia-sub002/internal/exam"
)

// Hybrid is the production classifier: the exam's loaded model when one is
// registered, else the deterministic rule path. Both paths emit comparable
// confidences, so downstream triage never needs to know which one ran.
// Classify never fails; a missing or rejected model is the registry's
// concern and simply leaves the rule path in charge.
type Hybrid struct {
	extractor *Extractor
	rules     *RuleClassifier
	registry  *Registry
}

func NewHybrid(t config.Thresholds, reg *Registry) *Hybrid {
	return &Hybrid{
		extractor: NewExtractor(),
		rules:     NewRuleClassifier(t),
		registry:  reg,
	}
}

func (h *Hybrid) Classify(examID string, in Input) Prediction {
	if m, _, ok := h.registry.Active(examID); ok {
		return m.Predict(h.extractor.Extract(in))
	}
	return h.rules.Classify(in)
}

// Features exposes the extractor for training and calibration so all paths
// share one vector schema.
func (h *Hybrid) Features(in Input) []float64 {
	return h.extractor.Extract(in)
}

// Graded is the full verdict for one answer: classification, score and the
// review decision derived from it.
type Graded struct {
	Label       exam.Label
	Confidence  float64
	Score       float64
	Explanation string
	NeedsReview bool
}

// Service grades one answer end to end: classify, score, explain, triage.
// It is the unit shared by batch grading and calibration.
type Service struct {
	hybrid     *Hybrid
	thresholds config.Thresholds
}

func NewService(t config.Thresholds, reg *Registry) *Service {
	return &Service{hybrid: NewHybrid(t, reg), thresholds: t}
}

func (s *Service) Hybrid() *Hybrid { return s.hybrid }

// Grade never fails: unknown fields degrade to neutral features and the
// classifier always produces a verdict. The error return exists for
// interface compatibility with orchestration.
func (s *Service) Grade(examID string, q exam.Question, text string, ocrConfidence float64) (Graded, error) {
	in := Input{
		Text:          text,
		OCRConfidence: ocrConfidence,
		QuestionType:  q.Type,
		Options:       q.Options,
	}
	if q.Expected != nil {
		in.ExpectedAnswer = q.Expected.Answer
	}
	pred := s.hybrid.Classify(examID, in)
	return Graded{
		Label:       pred.Label,
		Confidence:  pred.Confidence,
		Score:       Score(pred.Label, pred.Confidence, q.Points),
		Explanation: Explain(q.Type, pred),
		NeedsReview: pred.Confidence < s.thresholds.AutoApprove,
	}, nil
}
