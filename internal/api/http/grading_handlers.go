package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/icitysystems/academia-sub002/internal/batch"
	"github.com/icitysystems/academia-sub002/internal/exam"
)

// POST /exams/{examID}/grade
// Accepted immediately; progress is polled via the grading-session endpoint.
func StartBatchHandler(orch *batch.Orchestrator) http.HandlerFunc {
	type gradeReq struct {
		SheetIDs []string `json:"sheet_ids,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req gradeReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeErr(w, exam.Validationf("invalid grade payload: %v", err))
			return
		}
		session, err := orch.Start(r.Context(), chi.URLParam(r, "examID"), req.SheetIDs)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, session)
	}
}

// GET /exams/{examID}/grading-session
func GetGradingSessionHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := store.LatestSession(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}
