package grading

import (
	"fmt"

	"github.com/icitysystems/academia-sub002/internal/exam"
)

// Explain renders the human-readable justification attached to each graded
// response.
func Explain(qt exam.QuestionType, p Prediction) string {
	pct := p.Confidence * 100
	switch p.Label {
	case exam.LabelSkipped:
		return "No answer detected in this region."
	case exam.LabelCorrect:
		if p.Confidence > 0.9 {
			return fmt.Sprintf("Answer is correct with high confidence (%.1f%%). All key elements present.", pct)
		}
		return fmt.Sprintf("Answer appears correct (%.1f%%). Most key elements identified.", pct)
	case exam.LabelPartial:
		return fmt.Sprintf("Partial answer detected (%.1f%%). Some elements correct but incomplete or partially incorrect.", pct)
	case exam.LabelIncorrect:
		if qt == exam.QTypeMCQ || qt == exam.QTypeTrueFalse {
			return fmt.Sprintf("Selected option does not match expected answer (%.1f%%).", pct)
		}
		return fmt.Sprintf("Answer does not match expected criteria (%.1f%%). Review recommended.", pct)
	}
	return fmt.Sprintf("Prediction made with %.1f%% confidence.", pct)
}
