package exam

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreExamRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	ex := Exam{ID: "e1", Title: "Quiz", Questions: []Question{
		{ID: "q1", Ordinal: 1, Type: QTypeMCQ, Points: 2},
		{ID: "q2", Ordinal: 2, Type: QTypeNumeric, Points: 3},
	}}
	if err := s.PutExam(ctx, ex); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.GetExam(ctx, "e1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Quiz" || got.MaxPoints() != 5 {
		t.Fatalf("round trip: %+v", got)
	}
	if _, err := s.GetExam(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing exam: got %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreListSheetsFiltersAndOrders(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, sh := range []Sheet{
		{ID: "s1", ExamID: "e1", Status: SheetUploaded},
		{ID: "s2", ExamID: "e1", Status: SheetGraded},
		{ID: "s3", ExamID: "e1", Status: SheetError},
		{ID: "s4", ExamID: "e2", Status: SheetUploaded},
	} {
		if err := s.PutSheet(ctx, sh); err != nil {
			t.Fatalf("put %s: %v", sh.ID, err)
		}
	}

	all, err := s.ListSheets(ctx, "e1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "s1" || all[2].ID != "s3" {
		t.Fatalf("upload order broken: %+v", all)
	}

	pending, err := s.ListSheets(ctx, "e1", SheetUploaded, SheetError)
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "s1" || pending[1].ID != "s3" {
		t.Fatalf("status filter: %+v", pending)
	}
}

func TestMemoryStoreResponseUpsert(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	first := Response{ID: "r1", SheetID: "s1", ExamID: "e1", QuestionID: "q1", Label: LabelIncorrect, AssignedScore: 0}
	if err := s.PutResponse(ctx, first); err != nil {
		t.Fatalf("put: %v", err)
	}

	// same (sheet, question) replaces in place, keeping the original id
	second := Response{ID: "r1-new", SheetID: "s1", ExamID: "e1", QuestionID: "q1", Label: LabelCorrect, AssignedScore: 5}
	if err := s.PutResponse(ctx, second); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := s.GetResponse(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Label != LabelCorrect || got.AssignedScore != 5 {
		t.Fatalf("upsert did not replace: %+v", got)
	}
	if _, err := s.GetResponse(ctx, "r1-new"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("duplicate row created")
	}
}

func TestMemoryStoreOverrideBlocksRewrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.PutResponse(ctx, Response{ID: "r1", SheetID: "s1", ExamID: "e1", QuestionID: "q1", AssignedScore: 2}); err != nil {
		t.Fatalf("put: %v", err)
	}
	score := 4.0
	if _, err := s.ApplyOverride(ctx, "r1", Override{Score: &score, By: "t-1"}); err != nil {
		t.Fatalf("override: %v", err)
	}

	if err := s.PutResponse(ctx, Response{ID: "r2", SheetID: "s1", ExamID: "e1", QuestionID: "q1", AssignedScore: 0}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	got, _ := s.GetResponse(ctx, "r1")
	if got.FinalScore() != 4 || !got.Overridden() {
		t.Fatalf("override displaced: %+v", got)
	}
}

func TestMemoryStoreReviewQueueOrdering(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, r := range []Response{
		{ID: "r1", SheetID: "s1", ExamID: "e1", QuestionID: "q1", Confidence: 0.9, NeedsReview: true},
		{ID: "r2", SheetID: "s1", ExamID: "e1", QuestionID: "q2", Confidence: 0.3, NeedsReview: true},
		{ID: "r3", SheetID: "s2", ExamID: "e1", QuestionID: "q1", Confidence: 0.6, NeedsReview: true},
		{ID: "r4", SheetID: "s2", ExamID: "e1", QuestionID: "q2", Confidence: 0.1, NeedsReview: false},
	} {
		if err := s.PutResponse(ctx, r); err != nil {
			t.Fatalf("put %s: %v", r.ID, err)
		}
	}

	out, err := s.ResponsesNeedingReview(ctx, "e1", ReviewOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d rows, want 3", len(out))
	}
	for i, want := range []string{"r2", "r3", "r1"} {
		if out[i].ID != want {
			t.Fatalf("position %d: got %s, want %s", i, out[i].ID, want)
		}
	}

	limited, err := s.ResponsesNeedingReview(ctx, "e1", ReviewOpts{Limit: 1})
	if err != nil {
		t.Fatalf("limited: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "r2" {
		t.Fatalf("limit: %+v", limited)
	}
}

func TestMemoryStoreActivateModelSwaps(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, m := range []Model{
		{ID: "m1", ExamID: "e1", Version: 1},
		{ID: "m2", ExamID: "e1", Version: 2},
		{ID: "m3", ExamID: "e2", Version: 1},
	} {
		if err := s.PutModel(ctx, m); err != nil {
			t.Fatalf("put %s: %v", m.ID, err)
		}
	}

	if err := s.ActivateModel(ctx, "e1", "m1"); err != nil {
		t.Fatalf("activate m1: %v", err)
	}
	if err := s.ActivateModel(ctx, "e1", "m2"); err != nil {
		t.Fatalf("activate m2: %v", err)
	}
	active, err := s.ActiveModel(ctx, "e1")
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active.ID != "m2" {
		t.Fatalf("active %s, want m2", active.ID)
	}
	models, _ := s.ListModels(ctx, "e1")
	count := 0
	for _, m := range models {
		if m.Active {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("%d active models, want 1", count)
	}

	if err := s.ActivateModel(ctx, "e1", "m3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-exam activation: got %v, want ErrNotFound", err)
	}
	v, err := s.NextModelVersion(ctx, "e1")
	if err != nil || v != 3 {
		t.Fatalf("next version %d (%v), want 3", v, err)
	}
}

func TestMemoryStoreSessionLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.CreateSession(ctx, GradingSession{ID: "g1", ExamID: "e1", Status: SessionPending, Total: 3}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SetSessionStatus(ctx, "g1", SessionGrading); err != nil {
		t.Fatalf("status: %v", err)
	}
	if err := s.UpdateSessionProgress(ctx, "g1", 2, 1); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if err := s.FinishSession(ctx, "g1", SessionCompleted, ""); err != nil {
		t.Fatalf("finish: %v", err)
	}

	got, err := s.LatestSession(ctx, "e1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got.Status != SessionCompleted || got.Processed != 2 || got.Graded != 1 || got.FinishedAt == nil {
		t.Fatalf("lifecycle state: %+v", got)
	}
}
