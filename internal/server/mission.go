package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/questofseoul/tourguide/internal/tour"
)

// invalidArgumentError marks authoring-contract violations (for example a
// submission whose declared mission type disagrees with the step's mission).
// Handlers surface it as 400 with the message verbatim; it is never retried.
type invalidArgumentError string

func (e invalidArgumentError) Error() string { return string(e) }

// MissionSubmitRequest is the request body for
// POST /api/v1/tour-runs/{runId}/missions/{stepId}/submit.
// selectedOption accepts either a raw option id ("b") or an object carrying
// an "id" field; both normalize to the selectedOptionId answer key.
type MissionSubmitRequest struct {
	MissionType    string `json:"missionType"`
	UserInput      string `json:"userInput,omitempty"`
	PhotoURL       string `json:"photoUrl,omitempty"`
	SelectedOption any    `json:"selectedOption,omitempty"`
}

// MissionSubmitResponse reports the persisted attempt and where the client
// should navigate next: another mission step of the same spot, or the run's
// next-spot endpoint once the spot's mission sequence is exhausted.
type MissionSubmitResponse struct {
	AttemptID   int64  `json:"attemptId"`
	Success     bool   `json:"success"`
	IsCorrect   *bool  `json:"isCorrect,omitempty"`
	Score       *int   `json:"score,omitempty"`
	Feedback    string `json:"feedback,omitempty"`
	NextStepAPI string `json:"nextStepApi"`
}

type submitResult struct {
	Resp          MissionSubmitResponse
	SpotID        int64
	SpotCompleted bool
}

// submitMission validates one mission submission, appends it to the attempt
// ledger, and advances the run's per-spot progress. The attempt write and the
// progress mutation share one transaction so neither can land without the
// other.
func submitMission(ctx context.Context, store Store, userID string, runID, stepID int64, req MissionSubmitRequest) (submitResult, error) {
	reqType, err := tour.ParseMissionType(req.MissionType)
	if err != nil {
		return submitResult{}, invalidArgumentError(err.Error())
	}

	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return submitResult{}, fmt.Errorf("resolving tour run %d: %w", runID, err)
	}
	if run.UserID != userID {
		return submitResult{}, fmt.Errorf("tour run %d: %w", runID, ErrForbidden)
	}

	step, err := store.GetStep(ctx, stepID)
	if err != nil {
		return submitResult{}, fmt.Errorf("resolving step %d: %w", stepID, err)
	}
	if step.Mission == nil {
		return submitResult{}, fmt.Errorf("step %d has no mission: %w", stepID, ErrNotFound)
	}
	mission := step.Mission

	if reqType != mission.Type {
		return submitResult{}, invalidArgumentError(fmt.Sprintf(
			"missionType mismatch: expected %s, got %s", mission.Type, reqType))
	}

	answer := normalizeAnswer(req)
	isCorrect := gradeMission(mission, answer)

	result := submitResult{SpotID: step.SpotID}
	err = store.Transact(ctx, func(tx Store) error {
		prior, err := tx.ListAttempts(ctx, runID, stepID)
		if err != nil {
			return err
		}

		attempt, err := tx.SaveAttempt(ctx, tour.Attempt{
			RunID:      runID,
			StepID:     stepID,
			MissionID:  mission.ID,
			AttemptNo:  len(prior) + 1,
			AnswerJSON: answer,
			IsCorrect:  isCorrect,
			Score:      gradeScore(isCorrect),
			Feedback:   gradeFeedback(isCorrect),
		})
		if err != nil {
			return fmt.Errorf("saving attempt: %w", err)
		}

		if _, err := tx.FindOrCreateSpotProgress(ctx, runID, step.SpotID); err != nil {
			return fmt.Errorf("loading spot progress: %w", err)
		}

		seq, err := tx.ListMissionSteps(ctx, step.SpotID, step.Language)
		if err != nil {
			return fmt.Errorf("listing mission steps: %w", err)
		}

		next := nextMissionStep(seq, stepID)
		if next != nil {
			if err := tx.UnlockSpot(ctx, runID, step.SpotID); err != nil {
				return fmt.Errorf("unlocking spot: %w", err)
			}
			result.Resp.NextStepAPI = fmt.Sprintf("/api/v1/content-steps/%d/mission", next.ID)
		} else {
			if err := tx.CompleteSpot(ctx, runID, step.SpotID); err != nil {
				return fmt.Errorf("completing spot: %w", err)
			}
			result.SpotCompleted = true
			result.Resp.NextStepAPI = fmt.Sprintf("/api/v1/tour-runs/%d/next-spot", runID)
		}

		result.Resp.AttemptID = attempt.ID
		result.Resp.Success = true
		result.Resp.IsCorrect = &attempt.IsCorrect
		result.Resp.Score = &attempt.Score
		result.Resp.Feedback = attempt.Feedback
		return nil
	})
	if err != nil {
		return submitResult{}, err
	}
	return result, nil
}

// nextMissionStep locates the current step in the spot's ordered mission
// sequence and returns its successor. A step that cannot be found in its own
// sequence (kind or language drift in authored content) is treated as the
// last one, so the spot completes instead of looping forever.
func nextMissionStep(seq []tour.Step, currentID int64) *tour.Step {
	for i := range seq {
		if seq[i].ID == currentID {
			if i+1 < len(seq) {
				return &seq[i+1]
			}
			return nil
		}
	}
	return nil
}

// normalizeAnswer builds the stored answer payload. Each populated field is
// copied through; a discrete choice ends up under the canonical
// selectedOptionId key regardless of the shape the client sent.
func normalizeAnswer(req MissionSubmitRequest) tour.AnswerJSON {
	answer := tour.AnswerJSON{}
	if req.UserInput != "" {
		answer["userInput"] = req.UserInput
	}
	if req.PhotoURL != "" {
		answer["photoUrl"] = req.PhotoURL
	}
	if id, ok := selectedOptionID(req.SelectedOption); ok {
		answer["selectedOptionId"] = id
	}
	return answer
}

func selectedOptionID(v any) (string, bool) {
	switch opt := v.(type) {
	case nil:
		return "", false
	case string:
		return opt, opt != ""
	case map[string]any:
		if id, ok := opt["id"]; ok {
			return fmt.Sprint(id), true
		}
		return "", false
	default:
		return fmt.Sprint(opt), true
	}
}

// gradeMission is the built-in grading collaborator: a mission without a
// canonical answer passes, otherwise the user's input (falling back to the
// selected option) is compared case-insensitively against the mission's
// "answer" (falling back to "value") key.
func gradeMission(m *tour.Mission, answer tour.AnswerJSON) bool {
	if len(m.AnswerJSON) == 0 {
		return true
	}
	userAnswer := answer["userInput"]
	if userAnswer == nil {
		userAnswer = answer["selectedOptionId"]
	}
	correct := m.AnswerJSON["answer"]
	if correct == nil {
		correct = m.AnswerJSON["value"]
	}
	if correct == nil {
		return true
	}
	got := ""
	if userAnswer != nil {
		got = fmt.Sprint(userAnswer)
	}
	return strings.EqualFold(fmt.Sprint(correct), got)
}

func gradeScore(isCorrect bool) int {
	if isCorrect {
		return 10
	}
	return 0
}

func gradeFeedback(isCorrect bool) string {
	if isCorrect {
		return "Correct!"
	}
	return "Try again."
}
