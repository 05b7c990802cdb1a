package grading

import (
	"testing"

	"github.com/icitysystems/academia-sub002/internal/config"
	"github.com/icitysystems/academia-sub002/internal/exam"
)

func newRules(t *testing.T) *RuleClassifier {
	t.Helper()
	return NewRuleClassifier(config.DefaultThresholds())
}

func TestClassifyBlank(t *testing.T) {
	r := newRules(t)
	for _, text := range []string{"", "   ", "\n\t"} {
		p := r.Classify(Input{Text: text, QuestionType: exam.QTypeMCQ, ExpectedAnswer: "a"})
		if p.Label != exam.LabelSkipped {
			t.Fatalf("blank %q: got %s, want SKIPPED", text, p.Label)
		}
		if p.Confidence != 0.95 {
			t.Fatalf("blank confidence = %v, want 0.95", p.Confidence)
		}
	}
}

func TestClassifyMCQCaseInsensitive(t *testing.T) {
	r := newRules(t)
	p := r.Classify(Input{Text: "A", QuestionType: exam.QTypeMCQ, ExpectedAnswer: "a"})
	if p.Label != exam.LabelCorrect || p.Confidence != 0.90 {
		t.Fatalf("got %s/%v, want CORRECT/0.90", p.Label, p.Confidence)
	}
}

func TestClassifyMCQWrongChoice(t *testing.T) {
	r := newRules(t)
	p := r.Classify(Input{Text: "b", QuestionType: exam.QTypeMCQ, ExpectedAnswer: "a"})
	if p.Label != exam.LabelIncorrect || p.Confidence != 0.85 {
		t.Fatalf("got %s/%v, want INCORRECT/0.85", p.Label, p.Confidence)
	}
}

func TestClassifyMCQInvalidToken(t *testing.T) {
	r := newRules(t)
	p := r.Classify(Input{Text: "z9", QuestionType: exam.QTypeMCQ, ExpectedAnswer: "a"})
	if p.Label != exam.LabelIncorrect || p.Confidence != 0.80 {
		t.Fatalf("got %s/%v, want INCORRECT/0.80", p.Label, p.Confidence)
	}
}

func TestClassifyMCQCustomOptions(t *testing.T) {
	r := newRules(t)
	p := r.Classify(Input{
		Text:           "Paris",
		QuestionType:   exam.QTypeMCQ,
		Options:        []string{"Paris", "London", "Berlin"},
		ExpectedAnswer: "paris",
	})
	if p.Label != exam.LabelCorrect {
		t.Fatalf("option answer: got %s, want CORRECT", p.Label)
	}
}

func TestClassifyTrueFalse(t *testing.T) {
	r := newRules(t)
	p := r.Classify(Input{Text: "TRUE", QuestionType: exam.QTypeTrueFalse, ExpectedAnswer: "true"})
	if p.Label != exam.LabelCorrect {
		t.Fatalf("got %s, want CORRECT", p.Label)
	}
	p = r.Classify(Input{Text: "false", QuestionType: exam.QTypeTrueFalse, ExpectedAnswer: "true"})
	if p.Label != exam.LabelIncorrect {
		t.Fatalf("got %s, want INCORRECT", p.Label)
	}
}

func TestClassifyNumericWithinTolerance(t *testing.T) {
	r := newRules(t)
	// 103 vs 100 is inside the default 5% relative tolerance
	p := r.Classify(Input{Text: "103", QuestionType: exam.QTypeNumeric, ExpectedAnswer: "100"})
	if p.Label != exam.LabelCorrect {
		t.Fatalf("103 vs 100: got %s, want CORRECT", p.Label)
	}
}

func TestClassifyNumericOutsideTolerance(t *testing.T) {
	r := newRules(t)
	p := r.Classify(Input{Text: "90", QuestionType: exam.QTypeNumeric, ExpectedAnswer: "100"})
	if p.Label != exam.LabelIncorrect || p.Confidence != 0.85 {
		t.Fatalf("got %s/%v, want INCORRECT/0.85", p.Label, p.Confidence)
	}
}

func TestClassifyNumericWithUnits(t *testing.T) {
	r := newRules(t)
	p := r.Classify(Input{Text: "42 cm", QuestionType: exam.QTypeNumeric, ExpectedAnswer: "42"})
	if p.Label != exam.LabelCorrect {
		t.Fatalf("got %s, want CORRECT", p.Label)
	}
}

func TestClassifyNumericUnparseable(t *testing.T) {
	r := newRules(t)
	p := r.Classify(Input{Text: "forty two", QuestionType: exam.QTypeNumeric, ExpectedAnswer: "42"})
	if p.Label != exam.LabelIncorrect || p.Confidence != 0.80 {
		t.Fatalf("got %s/%v, want INCORRECT/0.80", p.Label, p.Confidence)
	}
}

func TestClassifyFreeTextBySimilarity(t *testing.T) {
	r := newRules(t)
	expected := "photosynthesis converts light energy into chemical energy"

	p := r.Classify(Input{Text: expected, QuestionType: exam.QTypeShortAnswer, ExpectedAnswer: expected})
	if p.Label != exam.LabelCorrect {
		t.Fatalf("verbatim: got %s, want CORRECT", p.Label)
	}
	if p.Confidence > 0.95 {
		t.Fatalf("confidence %v exceeds rule-path cap", p.Confidence)
	}

	p = r.Classify(Input{Text: "light energy chemical", QuestionType: exam.QTypeShortAnswer, ExpectedAnswer: expected})
	if p.Label != exam.LabelPartial {
		t.Fatalf("half overlap: got %s, want PARTIAL", p.Label)
	}

	p = r.Classify(Input{Text: "completely unrelated words", QuestionType: exam.QTypeShortAnswer, ExpectedAnswer: expected})
	if p.Label != exam.LabelIncorrect || p.Confidence != 0.70 {
		t.Fatalf("unrelated: got %s/%v, want INCORRECT/0.70", p.Label, p.Confidence)
	}
}

func TestClassifyFreeTextNoExpected(t *testing.T) {
	r := newRules(t)
	p := r.Classify(Input{Text: "a substantial written answer", QuestionType: exam.QTypeLongAnswer})
	if p.Label != exam.LabelPartial || p.Confidence != 0.40 {
		t.Fatalf("got %s/%v, want PARTIAL/0.40", p.Label, p.Confidence)
	}
	p = r.Classify(Input{Text: "hi", QuestionType: exam.QTypeLongAnswer})
	if p.Label != exam.LabelIncorrect || p.Confidence != 0.60 {
		t.Fatalf("got %s/%v, want INCORRECT/0.60", p.Label, p.Confidence)
	}
}

func TestClassifyUnknownTypeUsesFreeText(t *testing.T) {
	r := newRules(t)
	p := r.Classify(Input{Text: "something", QuestionType: "FILL_IN", ExpectedAnswer: "something"})
	if p.Label != exam.LabelCorrect {
		t.Fatalf("unknown type: got %s, want CORRECT", p.Label)
	}
}
