package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	authmw "github.com/icitysystems/academia-sub002/internal/auth/middleware"
	"github.com/icitysystems/academia-sub002/internal/exam"
	"github.com/icitysystems/academia-sub002/internal/review"
)

// GET /exams/{examID}/reviews?priority=&question_id=&limit=
func ListReviewsHandler(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := review.Opts{
			Priority:   review.Priority(strings.ToUpper(r.URL.Query().Get("priority"))),
			QuestionID: r.URL.Query().Get("question_id"),
		}
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeErr(w, exam.Validationf("invalid limit %q", v))
				return
			}
			opts.Limit = n
		}
		queue, err := svc.ListNeedingReview(r.Context(), chi.URLParam(r, "examID"), opts)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, queue)
	}
}

// POST /exams/{examID}/reviews/approve
func BatchApproveHandler(svc *review.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := svc.BatchApprove(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"approved_count": n})
	}
}

// POST /responses/{responseID}/review
// The reviewer identity comes from the token, never the payload.
func ReviewResponseHandler(svc *review.Service) http.HandlerFunc {
	type reviewReq struct {
		Score       *float64 `json:"score,omitempty"`
		Comment     string   `json:"comment,omitempty"`
		NeedsReview bool     `json:"needs_review"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		subject, ok := authmw.SubjectFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req reviewReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, exam.Validationf("invalid review payload: %v", err))
			return
		}
		resp, err := svc.Review(r.Context(), chi.URLParam(r, "responseID"), exam.Override{
			Score:       req.Score,
			Comment:     req.Comment,
			NeedsReview: req.NeedsReview,
			By:          subject,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
