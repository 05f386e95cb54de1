package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/questofseoul/tourguide/internal/tour"
)

// RunRequest is the request body for POST /api/v1/tours/{tourId}/run.
type RunRequest struct {
	Mode string `json:"mode"` // START or CONTINUE; defaults to START
}

// ProgressDTO summarizes completed spots for a run.
type ProgressDTO struct {
	CompletedCount   int     `json:"completedCount"`
	TotalCount       int     `json:"totalCount"`
	CompletedSpotIDs []int64 `json:"completedSpotIds"`
}

// RunResponse is the body of POST /api/v1/tours/{tourId}/run.
type RunResponse struct {
	RunID     int64       `json:"runId"`
	TourID    int64       `json:"tourId"`
	Status    string      `json:"status"`
	Mode      string      `json:"mode"`
	Progress  ProgressDTO `json:"progress"`
	StartSpot *SpotDTO    `json:"startSpot,omitempty"`
}

// NextSpotResponse is the body of GET /api/v1/tour-runs/{runId}/next-spot.
type NextSpotResponse struct {
	RunID       int64       `json:"runId"`
	RunStatus   string      `json:"runStatus"`
	HasNextSpot bool        `json:"hasNextSpot"`
	NextSpot    *SpotDTO    `json:"nextSpot,omitempty"`
	Progress    ProgressDTO `json:"progress"`
}

func handleRun(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := userFrom(r)

		tourID, err := int64Param(r, "tourId")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid tour id")
			return
		}

		// An empty body means START.
		var req RunRequest
		if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		mode := strings.ToUpper(strings.TrimSpace(req.Mode))
		if mode == "" {
			mode = "START"
		}
		if mode != "START" && mode != "CONTINUE" {
			writeError(w, http.StatusBadRequest, "mode must be START or CONTINUE")
			return
		}

		if _, err := store.GetTour(r.Context(), tourID); err != nil {
			if errors.Is(err, ErrNotFound) {
				writeError(w, http.StatusNotFound, "tour not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		existing, err := store.FindRunInProgress(r.Context(), userID, tourID)
		inProgress := err == nil
		if err != nil && !errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		var run tour.Run
		switch mode {
		case "START":
			if inProgress {
				writeError(w, http.StatusConflict, "run already in progress - use CONTINUE")
				return
			}
			run, err = store.CreateRun(r.Context(), userID, tourID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
		case "CONTINUE":
			if !inProgress {
				writeError(w, http.StatusNotFound, "no run in progress - use START")
				return
			}
			run = existing
		}

		resp, err := buildRunResponse(r.Context(), store, run, mode)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func buildRunResponse(ctx context.Context, store Store, run tour.Run, mode string) (RunResponse, error) {
	spots, err := store.ListRouteSpots(ctx, run.TourID)
	if err != nil {
		return RunResponse{}, err
	}
	progress, _, err := runProgress(ctx, store, run.ID, spots)
	if err != nil {
		return RunResponse{}, err
	}

	resp := RunResponse{
		RunID:    run.ID,
		TourID:   run.TourID,
		Status:   string(run.Status),
		Mode:     mode,
		Progress: progress,
	}
	if len(spots) > 0 {
		dto := spotDTO(spots[0])
		resp.StartSpot = &dto
	}
	return resp, nil
}

func handleNextSpot(store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := userFrom(r)

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

		spots, err := store.ListRouteSpots(r.Context(), run.TourID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		var resp NextSpotResponse
		err = store.Transact(r.Context(), func(tx Store) error {
			progress, done, err := runProgress(r.Context(), tx, runID, spots)
			if err != nil {
				return err
			}

			var next *tour.Spot
			for i := range spots {
				if !done[spots[i].ID] {
					next = &spots[i]
					break
				}
			}

			resp = NextSpotResponse{
				RunID:       runID,
				RunStatus:   string(run.Status),
				HasNextSpot: next != nil,
				Progress:    progress,
			}

			if next == nil {
				if run.Status == tour.RunInProgress {
					if err := tx.CompleteRun(r.Context(), runID); err != nil {
						return err
					}
					resp.RunStatus = string(tour.RunCompleted)
				}
				return nil
			}

			// Entering the next spot unlocks it for this run.
			if _, err := tx.FindOrCreateSpotProgress(r.Context(), runID, next.ID); err != nil {
				return err
			}
			if err := tx.UnlockSpot(r.Context(), runID, next.ID); err != nil {
				return err
			}
			dto := spotDTO(*next)
			resp.NextSpot = &dto
			return nil
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		if !resp.HasNextSpot && run.Status == tour.RunInProgress {
			broker.Publish(runID, RunEvent{Type: "run_completed"})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// runProgress computes completion counts over the ordered route spots and
// returns the set of spot IDs already done (completed or skipped).
func runProgress(ctx context.Context, store Store, runID int64, spots []tour.Spot) (ProgressDTO, map[int64]bool, error) {
	records, err := store.ListSpotProgress(ctx, runID)
	if err != nil {
		return ProgressDTO{}, nil, err
	}

	done := make(map[int64]bool)
	for _, p := range records {
		if p.Status == tour.ProgressCompleted || p.Status == tour.ProgressSkipped {
			done[p.SpotID] = true
		}
	}

	progress := ProgressDTO{
		TotalCount:       len(spots),
		CompletedSpotIDs: []int64{},
	}
	for _, sp := range spots {
		if done[sp.ID] {
			progress.CompletedSpotIDs = append(progress.CompletedSpotIDs, sp.ID)
		}
	}
	progress.CompletedCount = len(progress.CompletedSpotIDs)
	return progress, done, nil
}
