package exam

type QuestionType string

const (
	QTypeMCQ         QuestionType = "MCQ"
	QTypeTrueFalse   QuestionType = "TRUE_FALSE"
	QTypeShortAnswer QuestionType = "SHORT_ANSWER"
	QTypeLongAnswer  QuestionType = "LONG_ANSWER"
	QTypeNumeric     QuestionType = "NUMERIC"
	QTypeEssay       QuestionType = "ESSAY"
	QTypeDiagram     QuestionType = "DIAGRAM"
)

// Label is the classifier's verdict for a single response.
type Label string

const (
	LabelCorrect   Label = "CORRECT"
	LabelPartial   Label = "PARTIAL"
	LabelIncorrect Label = "INCORRECT"
	LabelSkipped   Label = "SKIPPED"
)

// Labels is the closed class set in canonical order. Model artifacts record
// this ordering and refuse to load if it changed.
var Labels = []Label{LabelCorrect, LabelPartial, LabelIncorrect, LabelSkipped}

// Expected is the reference answer attached to a question. One active
// expected response per question; it lives inside the question JSON.
type Expected struct {
	Answer          string   `json:"answer,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	MarkingScheme   string   `json:"marking_scheme,omitempty"`
	TeacherAuthored bool     `json:"teacher_authored,omitempty"`
}

type Question struct {
	ID       string       `json:"id"`
	Ordinal  int          `json:"ordinal"`
	Text     string       `json:"text,omitempty"`
	Type     QuestionType `json:"type"`
	Points   float64      `json:"points"`
	Options  []string     `json:"options,omitempty"` // MCQ choices
	Expected *Expected    `json:"expected,omitempty"`
}

type Exam struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Questions     []Question `json:"questions"`
	GradingActive bool       `json:"grading_active"`
	CreatedAt     int64      `json:"created_at,omitempty"`
}

// MaxPoints sums question points.
func (e Exam) MaxPoints() float64 {
	total := 0.0
	for _, q := range e.Questions {
		total += q.Points
	}
	return total
}

func (e Exam) Question(id string) (Question, bool) {
	for _, q := range e.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Region is the external OCR result for one question region. Consumed
// read-only; an empty Text with Confidence 0 is a valid placeholder.
type Region struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox,omitempty"`
	ImagePath  string    `json:"image_path,omitempty"` // set when OCR is deferred to grading time
}

type SheetStatus string

const (
	SheetUploaded   SheetStatus = "UPLOADED"
	SheetProcessing SheetStatus = "PROCESSING"
	SheetGraded     SheetStatus = "GRADED"
	SheetError      SheetStatus = "ERROR"
)

// Sheet is one student's scanned answer sheet (the grading unit).
type Sheet struct {
	ID          string            `json:"id"`
	ExamID      string            `json:"exam_id"`
	StudentRef  string            `json:"student_ref,omitempty"`
	Status      SheetStatus       `json:"status"`
	Regions     map[string]Region `json:"regions"` // question_id -> OCR region
	TotalScore  float64           `json:"total_score"`
	Percentage  float64           `json:"percentage"`
	LetterGrade string            `json:"letter_grade,omitempty"`
	CreatedAt   int64             `json:"created_at,omitempty"`
	GradedAt    *int64            `json:"graded_at,omitempty"`
}

// Override is a teacher's review decision for one response.
type Override struct {
	Score       *float64 `json:"score,omitempty"`
	Comment     string   `json:"comment,omitempty"`
	NeedsReview bool     `json:"needs_review"`
	By          string   `json:"by,omitempty"`
}

// Response is one graded (sheet, question) pair.
type Response struct {
	ID            string  `json:"id"`
	SheetID       string  `json:"sheet_id"`
	ExamID        string  `json:"exam_id"`
	QuestionID    string  `json:"question_id"`
	Ordinal       int     `json:"ordinal"`
	ExtractedText string  `json:"extracted_text"`
	Label         Label   `json:"label"`
	Confidence    float64 `json:"confidence"`
	AssignedScore float64 `json:"assigned_score"`
	Explanation   string  `json:"explanation,omitempty"`
	NeedsReview   bool    `json:"needs_review"`

	OverrideScore       *float64 `json:"override_score,omitempty"`
	OverrideComment     *string  `json:"override_comment,omitempty"`
	OverrideNeedsReview *bool    `json:"override_needs_review,omitempty"`
	OverrideBy          *string  `json:"override_by,omitempty"`
	ReviewedAt          *int64   `json:"reviewed_at,omitempty"`

	CreatedAt int64 `json:"created_at,omitempty"`
}

// Overridden reports whether a teacher has reviewed this response. Once true,
// automated grading never writes over it.
func (r Response) Overridden() bool { return r.OverrideBy != nil }

// FinalScore is the teacher override when present, else the assigned score.
func (r Response) FinalScore() float64 {
	if r.OverrideScore != nil {
		return *r.OverrideScore
	}
	return r.AssignedScore
}

type SessionStatus string

const (
	SessionPending   SessionStatus = "PENDING"
	SessionGrading   SessionStatus = "GRADING"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionFailed    SessionStatus = "FAILED"
)

// GradingSession is the poll-only progress record for one batch invocation.
type GradingSession struct {
	ID         string        `json:"id"`
	ExamID     string        `json:"exam_id"`
	Status     SessionStatus `json:"status"`
	Total      int           `json:"total"`
	Processed  int           `json:"processed"`
	Graded     int           `json:"graded"`
	Error      string        `json:"error,omitempty"`
	StartedAt  int64         `json:"started_at"`
	FinishedAt *int64        `json:"finished_at,omitempty"`
}

// Model is a versioned classifier artifact. Exactly one active model per
// exam at any time.
type Model struct {
	ID                string  `json:"id"`
	ExamID            string  `json:"exam_id"`
	Version           int     `json:"version"`
	Accuracy          float64 `json:"accuracy"`
	Active            bool    `json:"active"`
	ArtifactJSON      string  `json:"-"`
	TrainingSessionID string  `json:"training_session_id,omitempty"`
	CreatedAt         int64   `json:"created_at,omitempty"`
}

type TrainingStatus string

const (
	TrainingPending   TrainingStatus = "PENDING"
	TrainingRunning   TrainingStatus = "RUNNING"
	TrainingCompleted TrainingStatus = "COMPLETED"
	TrainingFailed    TrainingStatus = "FAILED"
)

type TrainingSession struct {
	ID          string         `json:"id"`
	ExamID      string         `json:"exam_id"`
	Status      TrainingStatus `json:"status"`
	ConfigJSON  string         `json:"config_json,omitempty"`
	MetricsJSON string         `json:"metrics_json,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   int64          `json:"started_at"`
	FinishedAt  *int64         `json:"finished_at,omitempty"`
}

// SampleScore is one teacher-graded (question, score) pair inside a
// moderation sample. Text is the recognized answer the teacher graded.
type SampleScore struct {
	QuestionID string  `json:"question_id"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	Comment    string  `json:"comment,omitempty"`
}

// ModerationSample is a teacher-graded exemplar used only as calibration and
// training ground truth, never as live exam input.
type ModerationSample struct {
	ID        string        `json:"id"`
	ExamID    string        `json:"exam_id"`
	Scores    []SampleScore `json:"scores"`
	Verified  bool          `json:"verified"`
	CreatedAt int64         `json:"created_at,omitempty"`
}
