package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"
)

type healthStatus struct {
	Status string `json:"status"`
}

// HealthResponse maps dependency name to its status.
type HealthResponse map[string]healthStatus

func handleHealth(logger *slog.Logger, db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := HealthResponse{"sqlite": {Status: "ok"}}
		status := http.StatusOK

		if err := db.PingContext(ctx); err != nil {
			logger.Error("health check failed", "name", "sqlite", "error", err)
			checks["sqlite"] = healthStatus{Status: "error"}
			status = http.StatusServiceUnavailable
		}

		writeJSON(w, status, checks)
	}
}
