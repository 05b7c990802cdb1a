package exam

import "context"

// ReviewOpts filters the review queue. Zero value means "everything
// needing review, lowest confidence first".
type ReviewOpts struct {
	QuestionID string
	Limit      int
}

// Store is the persistence contract for the grading core. Implemented by
// SQLStore (sqlite/postgres) and MemoryStore (tests, offline tooling).
type Store interface {
	PutExam(ctx context.Context, e Exam) error
	GetExam(ctx context.Context, id string) (Exam, error)
	SetExamGradingActive(ctx context.Context, examID string, active bool) error

	PutSheet(ctx context.Context, s Sheet) error
	GetSheet(ctx context.Context, id string) (Sheet, error)
	// ListSheets returns the exam's sheets, optionally filtered by status,
	// in upload order.
	ListSheets(ctx context.Context, examID string, statuses ...SheetStatus) ([]Sheet, error)
	SetSheetStatus(ctx context.Context, sheetID string, status SheetStatus) error
	FinishSheet(ctx context.Context, sheetID string, total, percentage float64, letter string) error

	// PutResponse upserts by (sheet_id, question_id). A response already
	// carrying a teacher override is left untouched: the override wins over
	// any later automated write.
	PutResponse(ctx context.Context, r Response) error
	GetResponse(ctx context.Context, id string) (Response, error)
	// ResponsesForSheet returns the sheet's responses in question order.
	ResponsesForSheet(ctx context.Context, sheetID string) ([]Response, error)
	// ResponsesNeedingReview returns needs_review responses for the exam,
	// ordered by confidence ascending then creation order.
	ResponsesNeedingReview(ctx context.Context, examID string, opts ReviewOpts) ([]Response, error)
	ApplyOverride(ctx context.Context, responseID string, ov Override) (Response, error)
	// ApproveHighConfidence clears needs_review on responses at or above
	// minConfidence that have no teacher override. Returns rows affected.
	ApproveHighConfidence(ctx context.Context, examID string, minConfidence float64) (int, error)

	CreateSession(ctx context.Context, s GradingSession) error
	GetSession(ctx context.Context, id string) (GradingSession, error)
	// LatestSession returns the most recent session for the exam, or
	// ErrNotFound when none exists.
	LatestSession(ctx context.Context, examID string) (GradingSession, error)
	SetSessionStatus(ctx context.Context, id string, status SessionStatus) error
	UpdateSessionProgress(ctx context.Context, id string, processed, graded int) error
	FinishSession(ctx context.Context, id string, status SessionStatus, errMsg string) error

	PutModel(ctx context.Context, m Model) error
	// ActivateModel deactivates every other model for the exam and activates
	// the given one as a single atomic unit.
	ActivateModel(ctx context.Context, examID, modelID string) error
	ActiveModel(ctx context.Context, examID string) (Model, error)
	ListModels(ctx context.Context, examID string) ([]Model, error)
	NextModelVersion(ctx context.Context, examID string) (int, error)

	CreateTrainingSession(ctx context.Context, s TrainingSession) error
	FinishTrainingSession(ctx context.Context, id string, status TrainingStatus, metricsJSON, errMsg string) error

	PutModerationSample(ctx context.Context, s ModerationSample) error
	VerifiedSamples(ctx context.Context, examID string) ([]ModerationSample, error)
}
