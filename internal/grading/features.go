package grading

import (
	"strings"
	"unicode"

	"github.com/icitysystems/academia-sub002/internal/exam"
)

// FeatureSchemaVersion is stamped into every model artifact. A loaded model
// whose schema version differs is rejected and grading falls back to rules.
const FeatureSchemaVersion = 1

// NumFeatures is the fixed vector length: 14 signal features plus the
// one-hot question-type block.
var NumFeatures = 14 + len(typeVocabulary)

// typeVocabulary is the closed one-hot vocabulary. Unknown or unlisted types
// (ESSAY, DIAGRAM) map to the trailing OTHER slot.
var typeVocabulary = []exam.QuestionType{
	exam.QTypeMCQ,
	exam.QTypeTrueFalse,
	exam.QTypeShortAnswer,
	exam.QTypeLongAnswer,
	exam.QTypeNumeric,
	"OTHER",
}

// Input is everything feature extraction and classification see for one
// response region.
type Input struct {
	Text           string
	OCRConfidence  float64
	QuestionType   exam.QuestionType
	ExpectedAnswer string
	Options        []string // MCQ choices, when known
}

// Extractor turns an Input into a fixed-length feature vector. Extraction is
// pure: identical input and caps produce identical output, and malformed or
// empty text degrades to zero features rather than failing.
type Extractor struct {
	TextLenCap    float64 // characters mapped onto [0,1]
	WordCountCap  float64
	AvgWordLenCap float64
}

func NewExtractor() *Extractor {
	return &Extractor{TextLenCap: 500, WordCountCap: 100, AvgWordLenCap: 10}
}

func (e *Extractor) Extract(in Input) []float64 {
	text := in.Text
	trimmed := strings.TrimSpace(text)
	words := strings.Fields(strings.ToLower(trimmed))

	textLength := capRatio(float64(len(text)), e.TextLenCap)
	wordCount := capRatio(float64(len(words)), e.WordCountCap)

	wordLenSum := 0
	for _, w := range words {
		wordLenSum += len(w)
	}
	avgWordLen := capRatio(float64(wordLenSum)/maxF(float64(len(words)), 1), e.AvgWordLenCap)

	var alpha, digit, special, upper int
	for _, r := range text {
		switch {
		case unicode.IsLetter(r):
			alpha++
			if unicode.IsUpper(r) {
				upper++
			}
		case unicode.IsDigit(r):
			digit++
		case !unicode.IsSpace(r):
			special++
		}
	}
	textLen := maxF(float64(len([]rune(text))), 1)

	similarity := 0.0
	if in.ExpectedAnswer != "" {
		similarity = Jaccard(text, in.ExpectedAnswer)
	}

	lower := strings.ToLower(trimmed)
	mcqAnswer := boolFeature(lower == "a" || lower == "b" || lower == "c" || lower == "d")
	trueFalse := boolFeature(lower == "true" || lower == "false" || lower == "t" || lower == "f")
	isEmpty := boolFeature(len(trimmed) == 0)
	isVeryShort := boolFeature(len(trimmed) < 5)
	hasContent := boolFeature(len(trimmed) >= 10)

	v := make([]float64, 0, NumFeatures)
	v = append(v,
		textLength, wordCount, avgWordLen,
		float64(alpha)/textLen, float64(digit)/textLen, float64(special)/textLen, float64(upper)/textLen,
		clamp01(in.OCRConfidence), similarity,
		mcqAnswer, trueFalse,
		isEmpty, isVeryShort, hasContent,
	)
	for _, qt := range typeVocabulary {
		v = append(v, boolFeature(qt == oneHotType(in.QuestionType)))
	}
	return v
}

// oneHotType folds types outside the vocabulary into OTHER.
func oneHotType(t exam.QuestionType) exam.QuestionType {
	for _, qt := range typeVocabulary[:len(typeVocabulary)-1] {
		if t == qt {
			return t
		}
	}
	return "OTHER"
}

func capRatio(v, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	r := v / limit
	if r > 1 {
		return 1
	}
	return r
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
