package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/icitysystems/academia-sub002/internal/exam"
)

// POST /exams
func CreateExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ex exam.Exam
		if err := json.NewDecoder(r.Body).Decode(&ex); err != nil {
			writeErr(w, exam.Validationf("invalid exam payload: %v", err))
			return
		}
		if ex.Title == "" || len(ex.Questions) == 0 {
			writeErr(w, exam.Validationf("exam requires a title and at least one question"))
			return
		}
		for i, q := range ex.Questions {
			if q.ID == "" {
				writeErr(w, exam.Validationf("question %d missing id", i))
				return
			}
			if q.Points < 0 {
				writeErr(w, exam.Validationf("question %s has negative points", q.ID))
				return
			}
			if q.Ordinal == 0 {
				ex.Questions[i].Ordinal = i + 1
			}
		}
		if ex.ID == "" {
			ex.ID = uuid.NewString()
		}
		if err := store.PutExam(r.Context(), ex); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ex)
	}
}

// GET /exams/{examID}
func GetExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ex, err := store.GetExam(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ex)
	}
}

// POST /exams/{examID}/sheets
func UploadSheetHandler(store exam.Store) http.HandlerFunc {
	type sheetReq struct {
		StudentRef string                 `json:"student_ref"`
		Regions    map[string]exam.Region `json:"regions"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		examID := chi.URLParam(r, "examID")
		ex, err := store.GetExam(r.Context(), examID)
		if err != nil {
			writeErr(w, err)
			return
		}
		var req sheetReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, exam.Validationf("invalid sheet payload: %v", err))
			return
		}
		for qid := range req.Regions {
			if _, ok := ex.Question(qid); !ok {
				writeErr(w, exam.Validationf("region references unknown question %s", qid))
				return
			}
		}
		sh := exam.Sheet{
			ID:         uuid.NewString(),
			ExamID:     examID,
			StudentRef: strings.TrimSpace(req.StudentRef),
			Status:     exam.SheetUploaded,
			Regions:    req.Regions,
		}
		if err := store.PutSheet(r.Context(), sh); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sh)
	}
}

// GET /exams/{examID}/sheets
func ListSheetsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID := chi.URLParam(r, "examID")
		if _, err := store.GetExam(r.Context(), examID); err != nil {
			writeErr(w, err)
			return
		}
		var statuses []exam.SheetStatus
		if s := r.URL.Query().Get("status"); s != "" {
			statuses = append(statuses, exam.SheetStatus(strings.ToUpper(s)))
		}
		sheets, err := store.ListSheets(r.Context(), examID, statuses...)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"sheets": sheets})
	}
}

// GET /sheets/{sheetID}
func GetSheetHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sh, err := store.GetSheet(r.Context(), chi.URLParam(r, "sheetID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		responses, err := store.ResponsesForSheet(r.Context(), sh.ID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"sheet":     sh,
			"responses": responses,
		})
	}
}

// POST /exams/{examID}/samples
func UploadSampleHandler(store exam.Store) http.HandlerFunc {
	type sampleReq struct {
		Scores   []exam.SampleScore `json:"scores"`
		Verified bool               `json:"verified"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		examID := chi.URLParam(r, "examID")
		ex, err := store.GetExam(r.Context(), examID)
		if err != nil {
			writeErr(w, err)
			return
		}
		var req sampleReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, exam.Validationf("invalid sample payload: %v", err))
			return
		}
		if len(req.Scores) == 0 {
			writeErr(w, exam.Validationf("sample requires at least one scored question"))
			return
		}
		for _, sc := range req.Scores {
			q, ok := ex.Question(sc.QuestionID)
			if !ok {
				writeErr(w, exam.Validationf("sample references unknown question %s", sc.QuestionID))
				return
			}
			if sc.Score < 0 || sc.Score > q.Points {
				writeErr(w, exam.Validationf("sample score %.2f outside [0, %.2f] for question %s", sc.Score, q.Points, sc.QuestionID))
				return
			}
		}
		sample := exam.ModerationSample{
			ID:       uuid.NewString(),
			ExamID:   examID,
			Scores:   req.Scores,
			Verified: req.Verified,
		}
		if err := store.PutModerationSample(r.Context(), sample); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sample)
	}
}
