package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/icitysystems/academia-sub002/internal/exam"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http: encode response: %v", err)
	}
}

// writeErr maps domain errors onto HTTP statuses. Unknown errors become a
// 500 without leaking internals.
func writeErr(w http.ResponseWriter, err error) {
	var ve *exam.ValidationError
	var ide *exam.InsufficientDataError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Error()})
	case errors.Is(err, exam.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, exam.ErrBatchActive):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &ide):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": ide.Error()})
	default:
		log.Printf("http: internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
