package server

import (
	"errors"
	"net/http"

	"github.com/questofseoul/tourguide/internal/tour"
)

// MissionStepDetailResponse is the body of
// GET /api/v1/content-steps/{stepId}/mission.
type MissionStepDetailResponse struct {
	StepID           int64          `json:"stepId"`
	MissionID        int64          `json:"missionId"`
	MissionType      string         `json:"missionType"`
	Prompt           string         `json:"prompt"`
	OptionsJSON      map[string]any `json:"optionsJson"`
	Title            string         `json:"title"`
	IsCompleted      bool           `json:"isCompleted"`
	SelectedOptionID string         `json:"selectedOptionId,omitempty"`
	AnswerJSON       map[string]any `json:"answerJson"`
}

func handleMissionSubmit(store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := userFrom(r)

		runID, err := int64Param(r, "runId")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid run id")
			return
		}
		stepID, err := int64Param(r, "stepId")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid step id")
			return
		}

		var req MissionSubmitRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := submitMission(r.Context(), store, userID, runID, stepID, req)
		if err != nil {
			writeSubmitError(w, err)
			return
		}

		broker.Publish(runID, RunEvent{
			Type:      "mission_graded",
			StepID:    stepID,
			IsCorrect: result.Resp.IsCorrect != nil && *result.Resp.IsCorrect,
		})
		if result.SpotCompleted {
			broker.Publish(runID, RunEvent{Type: "spot_completed", SpotID: result.SpotID})
		}

		writeJSON(w, http.StatusOK, result.Resp)
	}
}

func writeSubmitError(w http.ResponseWriter, err error) {
	var ia invalidArgumentError
	switch {
	case errors.As(err, &ia):
		writeError(w, http.StatusBadRequest, ia.Error())
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, "not your tour run")
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "tour run, step, or mission not found")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func handleMissionStepDetail(store Store, tokens tokenIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stepID, err := int64Param(r, "stepId")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid step id")
			return
		}

		step, err := store.GetStep(r.Context(), stepID)
		if errors.Is(err, ErrNotFound) || (err == nil && step.Kind != tour.StepMission) {
			writeError(w, http.StatusNotFound, "mission step not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if step.Mission == nil {
			writeError(w, http.StatusNotFound, "step has no mission")
			return
		}

		resp := MissionStepDetailResponse{
			StepID:      step.ID,
			MissionID:   step.Mission.ID,
			MissionType: string(step.Mission.Type),
			Prompt:      step.Mission.Prompt,
			OptionsJSON: step.Mission.OptionsJSON,
			Title:       step.Title,
			AnswerJSON:  map[string]any{},
		}
		if resp.OptionsJSON == nil {
			resp.OptionsJSON = map[string]any{}
		}
		if resp.Title == "" {
			resp.Title = "Mission"
		}

		// With a runId the response also reflects the caller's latest attempt.
		if raw := r.URL.Query().Get("runId"); raw != "" {
			runID, err := int64Query(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid run id")
				return
			}
			userID, ok := optionalUser(r, tokens)
			if !ok {
				writeError(w, http.StatusUnauthorized, "invalid or missing access token")
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

			latest, err := store.LatestAttempt(r.Context(), runID, stepID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if err == nil {
				if latest.AnswerJSON != nil {
					resp.AnswerJSON = latest.AnswerJSON
					if id, ok := latest.AnswerJSON["selectedOptionId"]; ok {
						resp.SelectedOptionID = toString(id)
					}
				}
				resp.IsCompleted = latest.IsCorrect
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
