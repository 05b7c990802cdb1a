package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/icitysystems/academia-sub002/internal/exam"
	"github.com/icitysystems/academia-sub002/internal/grading"
	"github.com/icitysystems/academia-sub002/internal/ocr"
)

// faultyGrader grades everything correct except designated trigger answers.
type faultyGrader struct{}

func (faultyGrader) Grade(examID string, q exam.Question, text string, ocrConfidence float64) (grading.Graded, error) {
	switch text {
	case "boom":
		panic("strategy fault")
	case "fail":
		return grading.Graded{}, errors.New("grader unavailable")
	}
	if text == "" {
		return grading.Graded{Label: exam.LabelSkipped, Confidence: 0.95}, nil
	}
	return grading.Graded{
		Label:      exam.LabelCorrect,
		Confidence: 0.99,
		Score:      q.Points,
	}, nil
}

func seedBatchExam(t *testing.T, store *exam.MemoryStore, answers []string) exam.Exam {
	t.Helper()
	ctx := context.Background()
	ex := exam.Exam{
		ID:    "e1",
		Title: "Final",
		Questions: []exam.Question{
			{ID: "q1", Ordinal: 1, Type: exam.QTypeShortAnswer, Points: 10},
		},
	}
	if err := store.PutExam(ctx, ex); err != nil {
		t.Fatalf("put exam: %v", err)
	}
	for i, answer := range answers {
		sh := exam.Sheet{
			ID:     fmt.Sprintf("s%d", i+1),
			ExamID: "e1",
			Status: exam.SheetUploaded,
			Regions: map[string]exam.Region{
				"q1": {Text: answer, Confidence: 0.9},
			},
		}
		if err := store.PutSheet(ctx, sh); err != nil {
			t.Fatalf("put sheet %s: %v", sh.ID, err)
		}
	}
	return ex
}

func newOrchestrator(store *exam.MemoryStore) *Orchestrator {
	return New(store, faultyGrader{}, &ocr.StoredRegions{}, grading.NewRegistry())
}

func TestBatchIsolatesFailingSheet(t *testing.T) {
	store := exam.NewMemoryStore()
	seedBatchExam(t, store, []string{"one", "two", "boom", "four", "five"})
	o := newOrchestrator(store)
	ctx := context.Background()

	session, err := o.Start(ctx, "e1", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.Status != exam.SessionPending || session.Total != 5 {
		t.Fatalf("initial session %s total=%d, want PENDING total=5", session.Status, session.Total)
	}
	o.Wait()

	final, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if final.Status != exam.SessionCompleted {
		t.Fatalf("session %s, want COMPLETED despite one bad sheet", final.Status)
	}
	if final.Processed != 5 || final.Graded != 4 {
		t.Fatalf("processed/graded = %d/%d, want 5/4", final.Processed, final.Graded)
	}

	for i := 1; i <= 5; i++ {
		sh, err := store.GetSheet(ctx, fmt.Sprintf("s%d", i))
		if err != nil {
			t.Fatalf("get sheet: %v", err)
		}
		want := exam.SheetGraded
		if i == 3 {
			want = exam.SheetError
		}
		if sh.Status != want {
			t.Fatalf("sheet s%d status %s, want %s", i, sh.Status, want)
		}
		if i != 3 && sh.TotalScore != 10 {
			t.Fatalf("sheet s%d total %v, want 10", i, sh.TotalScore)
		}
	}

	ex, err := store.GetExam(ctx, "e1")
	if err != nil {
		t.Fatalf("get exam: %v", err)
	}
	if ex.GradingActive {
		t.Fatalf("grading flag still set after completion")
	}
}

func TestBatchGraderErrorMarksSheet(t *testing.T) {
	store := exam.NewMemoryStore()
	seedBatchExam(t, store, []string{"fail", "ok"})
	o := newOrchestrator(store)
	ctx := context.Background()

	session, err := o.Start(ctx, "e1", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	o.Wait()

	final, _ := store.GetSession(ctx, session.ID)
	if final.Status != exam.SessionCompleted || final.Graded != 1 {
		t.Fatalf("session %s graded=%d, want COMPLETED graded=1", final.Status, final.Graded)
	}
	sh, _ := store.GetSheet(ctx, "s1")
	if sh.Status != exam.SheetError {
		t.Fatalf("failing sheet status %s, want ERROR", sh.Status)
	}
}

func TestBatchEmptyTargetFailsFast(t *testing.T) {
	store := exam.NewMemoryStore()
	ctx := context.Background()
	if err := store.PutExam(ctx, exam.Exam{ID: "e1", Title: "Empty",
		Questions: []exam.Question{{ID: "q1", Ordinal: 1, Type: exam.QTypeMCQ, Points: 1}}}); err != nil {
		t.Fatalf("put exam: %v", err)
	}
	o := newOrchestrator(store)

	var ve *exam.ValidationError
	if _, err := o.Start(ctx, "e1", nil); !errors.As(err, &ve) {
		t.Fatalf("got %v, want ValidationError", err)
	}
	if _, err := store.LatestSession(ctx, "e1"); !errors.Is(err, exam.ErrNotFound) {
		t.Fatalf("session created for empty target set")
	}
}

func TestBatchRejectsOverlap(t *testing.T) {
	store := exam.NewMemoryStore()
	seedBatchExam(t, store, []string{"one"})
	ctx := context.Background()
	if err := store.CreateSession(ctx, exam.GradingSession{
		ID: "running", ExamID: "e1", Status: exam.SessionGrading, Total: 1,
	}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	o := newOrchestrator(store)

	if _, err := o.Start(ctx, "e1", nil); !errors.Is(err, exam.ErrBatchActive) {
		t.Fatalf("got %v, want ErrBatchActive", err)
	}
}

// gatedGrader blocks every grade call until released, pinning the session in
// an active state.
type gatedGrader struct {
	release chan struct{}
}

func (g gatedGrader) Grade(examID string, q exam.Question, text string, ocrConfidence float64) (grading.Graded, error) {
	<-g.release
	return grading.Graded{Label: exam.LabelCorrect, Confidence: 0.99, Score: q.Points}, nil
}

func TestBatchConcurrentStartsAdmitOne(t *testing.T) {
	store := exam.NewMemoryStore()
	seedBatchExam(t, store, []string{"one"})
	release := make(chan struct{})
	o := New(store, gatedGrader{release: release}, &ocr.StoredRegions{}, grading.NewRegistry())
	ctx := context.Background()

	const racers = 8
	var wg sync.WaitGroup
	var started, rejected int32
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.Start(ctx, "e1", nil)
			switch {
			case err == nil:
				atomic.AddInt32(&started, 1)
			case errors.Is(err, exam.ErrBatchActive):
				atomic.AddInt32(&rejected, 1)
			default:
				t.Errorf("unexpected start error: %v", err)
			}
		}()
	}
	wg.Wait()
	close(release)
	o.Wait()

	if started != 1 || rejected != racers-1 {
		t.Fatalf("started/rejected = %d/%d, want 1/%d", started, rejected, racers-1)
	}
}

func TestBatchRejectsForeignSheet(t *testing.T) {
	store := exam.NewMemoryStore()
	seedBatchExam(t, store, []string{"one"})
	ctx := context.Background()
	if err := store.PutExam(ctx, exam.Exam{ID: "e2", Title: "Other",
		Questions: []exam.Question{{ID: "q1", Ordinal: 1, Type: exam.QTypeMCQ, Points: 1}}}); err != nil {
		t.Fatalf("put exam: %v", err)
	}
	o := newOrchestrator(store)

	var ve *exam.ValidationError
	if _, err := o.Start(ctx, "e2", []string{"s1"}); !errors.As(err, &ve) {
		t.Fatalf("got %v, want ValidationError", err)
	}
}

func TestBatchRestartRetargetsFailedSheets(t *testing.T) {
	store := exam.NewMemoryStore()
	seedBatchExam(t, store, []string{"one", "boom", "three"})
	o := newOrchestrator(store)
	ctx := context.Background()

	if _, err := o.Start(ctx, "e1", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	o.Wait()

	// fix the bad region, then restart: only the ERROR sheet is re-targeted
	sh, err := store.GetSheet(ctx, "s2")
	if err != nil {
		t.Fatalf("get sheet: %v", err)
	}
	sh.Regions["q1"] = exam.Region{Text: "repaired", Confidence: 0.9}
	if err := store.PutSheet(ctx, sh); err != nil {
		t.Fatalf("put sheet: %v", err)
	}

	session, err := o.Start(ctx, "e1", nil)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if session.Total != 1 {
		t.Fatalf("restart targeted %d sheets, want 1", session.Total)
	}
	o.Wait()

	sh, _ = store.GetSheet(ctx, "s2")
	if sh.Status != exam.SheetGraded || sh.TotalScore != 10 {
		t.Fatalf("repaired sheet %s total=%v, want GRADED total=10", sh.Status, sh.TotalScore)
	}
}

func TestBatchOverrideSurvivesRegrade(t *testing.T) {
	store := exam.NewMemoryStore()
	seedBatchExam(t, store, []string{"one"})
	o := newOrchestrator(store)
	ctx := context.Background()

	if _, err := o.Start(ctx, "e1", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	o.Wait()

	responses, err := store.ResponsesForSheet(ctx, "s1")
	if err != nil || len(responses) != 1 {
		t.Fatalf("responses: %v (%d)", err, len(responses))
	}
	score := 3.0
	if _, err := store.ApplyOverride(ctx, responses[0].ID, exam.Override{Score: &score, By: "t-1"}); err != nil {
		t.Fatalf("override: %v", err)
	}

	// explicit re-grade of a GRADED sheet keeps the teacher's score
	if _, err := o.Start(ctx, "e1", []string{"s1"}); err != nil {
		t.Fatalf("regrade: %v", err)
	}
	o.Wait()

	sh, _ := store.GetSheet(ctx, "s1")
	if sh.TotalScore != 3 {
		t.Fatalf("sheet total %v after regrade, want override score 3", sh.TotalScore)
	}
}
