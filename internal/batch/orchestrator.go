package batch

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/icitysystems/academia-sub002/internal/exam"
	"github.com/icitysystems/academia-sub002/internal/grading"
	"github.com/icitysystems/academia-sub002/internal/ocr"
)

// QuestionGrader grades one recognized answer for one question. The
// production implementation is grading.Service.
type QuestionGrader interface {
	Grade(examID string, q exam.Question, text string, ocrConfidence float64) (grading.Graded, error)
}

// Orchestrator drives batch grading. Start validates, records the session
// and returns immediately; the grading loop runs detached and communicates
// only through the session and sheet records (poll-based).
type Orchestrator struct {
	store    exam.Store
	grader   QuestionGrader
	regions  ocr.Provider
	registry *grading.Registry

	startMu sync.Mutex // serializes the overlap check against session creation
	wg      sync.WaitGroup
}

func New(store exam.Store, grader QuestionGrader, regions ocr.Provider, registry *grading.Registry) *Orchestrator {
	return &Orchestrator{store: store, grader: grader, regions: regions, registry: registry}
}

// Start resolves targets, creates the session and launches the detached
// grading loop. Explicit sheet ids are graded as given (including re-grades
// of GRADED sheets); otherwise every UPLOADED or ERROR sheet of the exam is
// targeted. An empty target set fails fast before any session exists.
func (o *Orchestrator) Start(ctx context.Context, examID string, sheetIDs []string) (exam.GradingSession, error) {
	o.startMu.Lock()
	defer o.startMu.Unlock()

	ex, err := o.store.GetExam(ctx, examID)
	if err != nil {
		return exam.GradingSession{}, err
	}
	if latest, err := o.store.LatestSession(ctx, examID); err == nil {
		if latest.Status == exam.SessionPending || latest.Status == exam.SessionGrading {
			return exam.GradingSession{}, exam.ErrBatchActive
		}
	}

	var targets []exam.Sheet
	if len(sheetIDs) > 0 {
		for _, id := range sheetIDs {
			sh, err := o.store.GetSheet(ctx, id)
			if err != nil {
				return exam.GradingSession{}, fmt.Errorf("sheet %s: %w", id, err)
			}
			if sh.ExamID != examID {
				return exam.GradingSession{}, exam.Validationf("sheet %s does not belong to exam %s", id, examID)
			}
			targets = append(targets, sh)
		}
	} else {
		targets, err = o.store.ListSheets(ctx, examID, exam.SheetUploaded, exam.SheetError)
		if err != nil {
			return exam.GradingSession{}, err
		}
	}
	if len(targets) == 0 {
		return exam.GradingSession{}, exam.Validationf("no sheets to grade for exam %s", examID)
	}

	session := exam.GradingSession{
		ID:     uuid.NewString(),
		ExamID: examID,
		Status: exam.SessionPending,
		Total:  len(targets),
	}
	if err := o.store.CreateSession(ctx, session); err != nil {
		return exam.GradingSession{}, err
	}
	if err := o.store.SetExamGradingActive(ctx, examID, true); err != nil {
		return exam.GradingSession{}, err
	}
	if o.registry != nil {
		// Model selection happens once per batch; a rejected artifact has
		// already been logged and the rule path takes over.
		_ = o.registry.Sync(ctx, o.store, examID)
	}

	o.wg.Add(1)
	go o.run(ex, session, targets)
	return session, nil
}

// Wait blocks until every launched batch loop has finished. Used by tests
// and by graceful shutdown.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// run is the detached batch loop. The caller's context is gone by now, so
// it works against the background context; the session record is the only
// channel back to observers.
func (o *Orchestrator) run(ex exam.Exam, session exam.GradingSession, sheets []exam.Sheet) {
	ctx := context.Background()
	defer o.wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			msg := fmt.Sprintf("batch loop: %v", rec)
			log.Printf("batch: session %s failed: %s", session.ID, msg)
			_ = o.store.FinishSession(ctx, session.ID, exam.SessionFailed, msg)
		}
		_ = o.store.SetExamGradingActive(ctx, ex.ID, false)
	}()

	_ = o.store.SetSessionStatus(ctx, session.ID, exam.SessionGrading)
	processed, graded := 0, 0
	for _, sh := range sheets {
		if err := o.gradeSheet(ctx, ex, sh); err != nil {
			// One sheet's failure never aborts the batch.
			log.Printf("batch: sheet %s failed: %v", sh.ID, err)
			_ = o.store.SetSheetStatus(ctx, sh.ID, exam.SheetError)
		} else {
			graded++
		}
		processed++
		_ = o.store.UpdateSessionProgress(ctx, session.ID, processed, graded)
	}
	_ = o.store.FinishSession(ctx, session.ID, exam.SessionCompleted, "")
	log.Printf("batch: session %s completed: %d/%d sheets graded", session.ID, graded, processed)
}

// gradeSheet grades every question of one sheet. Panics are converted to
// errors so isolation holds even against programming faults in a strategy.
func (o *Orchestrator) gradeSheet(ctx context.Context, ex exam.Exam, sh exam.Sheet) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("sheet %s: panic: %v", sh.ID, rec)
		}
	}()

	if err := o.store.SetSheetStatus(ctx, sh.ID, exam.SheetProcessing); err != nil {
		return err
	}
	for _, q := range ex.Questions {
		region, rerr := o.regions.RegionText(ctx, sh, q.ID)
		if rerr != nil {
			region = exam.Region{} // OCR placeholder: empty text, confidence 0
		}
		g, gerr := o.grader.Grade(ex.ID, q, region.Text, region.Confidence)
		if gerr != nil {
			return fmt.Errorf("question %s: %w", q.ID, gerr)
		}
		resp := exam.Response{
			ID:            uuid.NewString(),
			SheetID:       sh.ID,
			ExamID:        ex.ID,
			QuestionID:    q.ID,
			Ordinal:       q.Ordinal,
			ExtractedText: region.Text,
			Label:         g.Label,
			Confidence:    g.Confidence,
			AssignedScore: g.Score,
			Explanation:   g.Explanation,
			NeedsReview:   g.NeedsReview,
		}
		if perr := o.store.PutResponse(ctx, resp); perr != nil {
			return fmt.Errorf("question %s: persist: %w", q.ID, perr)
		}
	}

	// Totals come from the persisted rows so prior teacher overrides keep
	// winning across re-grades.
	rows, err := o.store.ResponsesForSheet(ctx, sh.ID)
	if err != nil {
		return err
	}
	total := 0.0
	for _, r := range rows {
		total += r.FinalScore()
	}
	pct := 0.0
	if maxPts := ex.MaxPoints(); maxPts > 0 {
		pct = total / maxPts * 100
	}
	return o.store.FinishSheet(ctx, sh.ID, total, pct, grading.LetterGrade(pct))
}
