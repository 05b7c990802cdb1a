package grading

import (
	"math"
	"strconv"
	"strings"

	"github.com/icitysystems/academia-sub002/internal/config"
	"github.com/icitysystems/academia-sub002/internal/exam"
)

// Prediction is the classifier output: one of the four class labels and a
// confidence comparable across the learned and rule paths.
type Prediction struct {
	Label      exam.Label
	Confidence float64
}

// ruleStrategy classifies one response for a single question type.
type ruleStrategy interface {
	classify(in Input, t config.Thresholds) Prediction
}

// RuleClassifier is the deterministic fallback used when no trained model is
// available. It routes by question type to the matching strategy.
type RuleClassifier struct {
	strategies map[exam.QuestionType]ruleStrategy
	thresholds config.Thresholds
}

func NewRuleClassifier(t config.Thresholds) *RuleClassifier {
	free := freeTextStrategy{}
	return &RuleClassifier{
		thresholds: t,
		strategies: map[exam.QuestionType]ruleStrategy{
			exam.QTypeMCQ:         choiceStrategy{allowed: []string{"a", "b", "c", "d"}},
			exam.QTypeTrueFalse:   choiceStrategy{allowed: []string{"true", "false", "t", "f"}},
			exam.QTypeNumeric:     numericStrategy{},
			exam.QTypeShortAnswer: free,
			exam.QTypeLongAnswer:  free,
			exam.QTypeEssay:       free,
			exam.QTypeDiagram:     free,
		},
	}
}

func (r *RuleClassifier) Classify(in Input) Prediction {
	if strings.TrimSpace(in.Text) == "" {
		// Blank detection is the one high-confidence rule verdict: blanks
		// must not flood the review queue.
		return Prediction{Label: exam.LabelSkipped, Confidence: 0.95}
	}
	s, ok := r.strategies[in.QuestionType]
	if !ok {
		s = freeTextStrategy{}
	}
	return s.classify(in, r.thresholds)
}

// choiceStrategy covers MCQ and TRUE_FALSE: a closed token set, graded by
// exact case-insensitive match against the expected answer.
type choiceStrategy struct {
	allowed []string
}

func (s choiceStrategy) classify(in Input, _ config.Thresholds) Prediction {
	token := normalize(in.Text)
	allowed := s.allowed
	if len(in.Options) > 0 {
		allowed = make([]string, 0, len(in.Options)+len(s.allowed))
		for _, o := range in.Options {
			allowed = append(allowed, normalize(o))
		}
		allowed = append(allowed, s.allowed...)
	}
	valid := false
	for _, a := range allowed {
		if token == a {
			valid = true
			break
		}
	}
	if !valid {
		return Prediction{Label: exam.LabelIncorrect, Confidence: 0.80}
	}
	if in.ExpectedAnswer == "" {
		// Valid format but nothing to compare against: provisional credit.
		return Prediction{Label: exam.LabelPartial, Confidence: 0.50}
	}
	if token == normalize(in.ExpectedAnswer) {
		return Prediction{Label: exam.LabelCorrect, Confidence: 0.90}
	}
	return Prediction{Label: exam.LabelIncorrect, Confidence: 0.85}
}

type numericStrategy struct{}

func (numericStrategy) classify(in Input, t config.Thresholds) Prediction {
	got, ok := parseFloatLoose(in.Text)
	if !ok {
		return Prediction{Label: exam.LabelIncorrect, Confidence: 0.80}
	}
	if in.ExpectedAnswer == "" {
		return Prediction{Label: exam.LabelPartial, Confidence: 0.50}
	}
	want, ok := parseFloatLoose(in.ExpectedAnswer)
	if !ok {
		return Prediction{Label: exam.LabelPartial, Confidence: 0.50}
	}
	diff := math.Abs(got - want)
	if diff <= t.NumericRelTol*math.Abs(want) {
		return Prediction{Label: exam.LabelCorrect, Confidence: 0.90}
	}
	return Prediction{Label: exam.LabelIncorrect, Confidence: 0.85}
}

// freeTextStrategy grades short/long/essay answers by Jaccard similarity to
// the expected answer, falling back to length heuristics without one.
type freeTextStrategy struct{}

func (freeTextStrategy) classify(in Input, t config.Thresholds) Prediction {
	if in.ExpectedAnswer == "" {
		if len(strings.TrimSpace(in.Text)) >= 10 {
			return Prediction{Label: exam.LabelPartial, Confidence: 0.40}
		}
		return Prediction{Label: exam.LabelIncorrect, Confidence: 0.60}
	}
	sim := Jaccard(in.Text, in.ExpectedAnswer)
	switch {
	case sim > t.CorrectSim:
		return Prediction{Label: exam.LabelCorrect, Confidence: capConf(0.55 + 0.4*sim)}
	case sim > t.PartialSim:
		return Prediction{Label: exam.LabelPartial, Confidence: capConf(0.50 + 0.3*sim)}
	default:
		return Prediction{Label: exam.LabelIncorrect, Confidence: 0.70}
	}
}

func capConf(v float64) float64 {
	if v > 0.95 {
		return 0.95
	}
	return v
}

// parseFloatLoose accepts a bare number or a number followed by units
// ("42 cm"), mirroring how OCR output usually looks.
func parseFloatLoose(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	if sp := strings.Fields(s); len(sp) > 0 {
		if v, err := strconv.ParseFloat(sp[0], 64); err == nil {
			return v, true
		}
	}
	return 0, false
}
