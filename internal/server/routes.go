package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, store Store, db *sql.DB, tokens tokenIssuer) {
	broker := NewBroker()

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Tour Guide API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(logger, db))

	r.Route("/api/v1", func(r chi.Router) {
		// Login is rate limited per IP.
		r.With(httprate.LimitByIP(10, time.Minute)).
			Post("/auth/login", handleLogin(store, tokens))
		r.Post("/auth/refresh", handleRefresh(tokens))

		// Public catalog.
		r.Get("/tours", handleListTours(store))
		r.Get("/tours/{tourId}", handleTourDetail(store))
		r.Get("/content-steps/{stepId}/mission", handleMissionStepDetail(store, tokens))

		// SSE; the token travels as a query parameter.
		r.Get("/tour-runs/{runId}/events", handleEvents(store, tokens, broker))

		// Run-scoped routes require a bearer token.
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(tokens))
			r.Post("/tours/{tourId}/run", handleRun(store))
			r.Get("/tour-runs/{runId}/next-spot", handleNextSpot(store, broker))
			r.Post("/tour-runs/{runId}/missions/{stepId}/submit", handleMissionSubmit(store, broker))
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}
