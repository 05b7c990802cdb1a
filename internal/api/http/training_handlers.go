package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/icitysystems/academia-sub002/internal/calibration"
	"github.com/icitysystems/academia-sub002/internal/exam"
	"github.com/icitysystems/academia-sub002/internal/training"
)

// POST /exams/{examID}/calibrate
func CalibrateHandler(engine *calibration.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := engine.Run(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// POST /exams/{examID}/train
// Synchronous: classroom-scale sample counts train in well under a second.
func TrainHandler(pipeline *training.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg training.Config
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil && err != io.EOF {
			writeErr(w, exam.Validationf("invalid training config: %v", err))
			return
		}
		model, metrics, err := pipeline.Train(r.Context(), chi.URLParam(r, "examID"), cfg)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"model":   model,
			"metrics": metrics,
		})
	}
}

// GET /exams/{examID}/models
func ListModelsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID := chi.URLParam(r, "examID")
		if _, err := store.GetExam(r.Context(), examID); err != nil {
			writeErr(w, err)
			return
		}
		models, err := store.ListModels(r.Context(), examID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"models": models})
	}
}
