package http

import (
	"database/sql"
	"net/http"

	"github.com/icitysystems/academia-sub002/internal/grading"
)

// GET /healthz
func HealthzHandler(db *sql.DB, registry *grading.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				status = "degraded: " + err.Error()
				code = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, code, map[string]interface{}{
			"status":        status,
			"models_loaded": registry.Loaded(),
		})
	}
}
