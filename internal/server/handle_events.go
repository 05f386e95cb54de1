package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// handleEvents streams run progress over SSE. EventSource cannot set headers,
// so the access token travels as a query parameter.
func handleEvents(store Store, tokens tokenIssuer, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("token")
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "token query parameter required")
			return
		}
		userID, err := tokens.verify(raw, tokenTypeAccess)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid access token")
			return
		}

		runID, err := int64Param(r, "runId")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid run id")
			return
		}
		run, err := store.GetRun(r.Context(), runID)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "tour run not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if run.UserID != userID {
			writeError(w, http.StatusForbidden, "not your tour run")
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		ch := broker.Subscribe(runID)
		defer broker.Unsubscribe(runID, ch)

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case data := <-ch:
				fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}
