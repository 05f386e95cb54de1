package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStartRun(t *testing.T) {
	db := testDB(t)
	r := testRouter(t, db)

	userID := createUser(t, db, "walker@example.com", "pw")
	tourID := createTour(t, db, "Old City")
	createSpot(t, db, tourID, "Gate", 1)
	createSpot(t, db, tourID, "Village", 2)

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/tours/%d/run", tourID), nil)
	req.Header.Set("Authorization", "Bearer "+accessToken(t, userID))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp RunResponse
	json.NewDecoder(w.Body).Decode(&resp)

	if resp.RunID == 0 {
		t.Error("expected a run id")
	}
	if resp.Status != "IN_PROGRESS" {
		t.Errorf("expected status IN_PROGRESS, got %q", resp.Status)
	}
	if resp.Progress.TotalCount != 2 || resp.Progress.CompletedCount != 0 {
		t.Errorf("expected progress 0/2, got %d/%d", resp.Progress.CompletedCount, resp.Progress.TotalCount)
	}
	if resp.StartSpot == nil || resp.StartSpot.Title != "Gate" {
		t.Errorf("expected start spot 'Gate', got %v", resp.StartSpot)
	}
}

func TestStartRunConflict(t *testing.T) {
	db := testDB(t)
	r := testRouter(t, db)

	userID := createUser(t, db, "walker@example.com", "pw")
	tourID := createTour(t, db, "Old City")
	createRun(t, db, userID, tourID)

	body, _ := json.Marshal(RunRequest{Mode: "START"})
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/tours/%d/run", tourID), bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+accessToken(t, userID))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}

	var resp ErrorResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Error != "run already in progress - use CONTINUE" {
		t.Errorf("unexpected error message %q", resp.Error)
	}
}

func TestContinueRun(t *testing.T) {
	db := testDB(t)
	r := testRouter(t, db)

	userID := createUser(t, db, "walker@example.com", "pw")
	tourID := createTour(t, db, "Old City")
	runID := createRun(t, db, userID, tourID)

	body, _ := json.Marshal(RunRequest{Mode: "CONTINUE"})
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/tours/%d/run", tourID), bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+accessToken(t, userID))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp RunResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.RunID != runID {
		t.Errorf("expected run %d to resume, got %d", runID, resp.RunID)
	}
}

func TestContinueWithoutRun(t *testing.T) {
	db := testDB(t)
	r := testRouter(t, db)

	userID := createUser(t, db, "walker@example.com", "pw")
	tourID := createTour(t, db, "Old City")

	body, _ := json.Marshal(RunRequest{Mode: "CONTINUE"})
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/tours/%d/run", tourID), bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+accessToken(t, userID))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}

	var resp ErrorResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Error != "no run in progress - use START" {
		t.Errorf("unexpected error message %q", resp.Error)
	}
}

func TestRunTourNotFound(t *testing.T) {
	db := testDB(t)
	r := testRouter(t, db)

	userID := createUser(t, db, "walker@example.com", "pw")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tours/9999/run", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken(t, userID))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestRunInvalidMode(t *testing.T) {
	db := testDB(t)
	r := testRouter(t, db)

	userID := createUser(t, db, "walker@example.com", "pw")
	tourID := createTour(t, db, "Old City")

	body, _ := json.Marshal(RunRequest{Mode: "RESTART"})
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/tours/%d/run", tourID), bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+accessToken(t, userID))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

// TestNextSpotProgression walks a two-spot tour end to end: next-spot unlocks
// each spot in route order, mission submissions complete them, and the run
// itself completes once every spot is done.
func TestNextSpotProgression(t *testing.T) {
	db := testDB(t)
	r := testRouter(t, db)

	userID := createUser(t, db, "walker@example.com", "pw")
	token := accessToken(t, userID)
	tourID := createTour(t, db, "Old City")
	spot1 := createSpot(t, db, tourID, "Gate", 1)
	spot2 := createSpot(t, db, tourID, "Village", 2)
	quiz := createMission(t, db, "QUIZ", `{"answer":"a"}`)
	photo := createMission(t, db, "PHOTO", `{}`)
	step1 := createStep(t, db, spot1, "ko", 1, "MISSION", quiz)
	step2 := createStep(t, db, spot2, "ko", 1, "MISSION", photo)
	runID := createRun(t, db, userID, tourID)

	nextSpot := func() NextSpotResponse {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/tour-runs/%d/next-spot", runID), nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("next-spot: expected 200, got %d: %s", w.Code, w.Body.String())
		}
		var resp NextSpotResponse
		json.NewDecoder(w.Body).Decode(&resp)
		return resp
	}
	submit := func(stepID int64, body MissionSubmitRequest) {
		t.Helper()
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost,
			fmt.Sprintf("/api/v1/tour-runs/%d/missions/%d/submit", runID, stepID), bytes.NewReader(raw))
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("submit: expected 200, got %d: %s", w.Code, w.Body.String())
		}
	}

	resp := nextSpot()
	if !resp.HasNextSpot || resp.NextSpot == nil || resp.NextSpot.SpotID != spot1 {
		t.Fatalf("expected first spot %d, got %+v", spot1, resp.NextSpot)
	}

	submit(step1, MissionSubmitRequest{MissionType: "QUIZ", SelectedOption: "a"})

	resp = nextSpot()
	if !resp.HasNextSpot || resp.NextSpot == nil || resp.NextSpot.SpotID != spot2 {
		t.Fatalf("expected second spot %d, got %+v", spot2, resp.NextSpot)
	}
	if resp.Progress.CompletedCount != 1 {
		t.Errorf("expected 1 completed spot, got %d", resp.Progress.CompletedCount)
	}

	submit(step2, MissionSubmitRequest{MissionType: "PHOTO", PhotoURL: "https://example.com/p.jpg"})

	resp = nextSpot()
	if resp.HasNextSpot {
		t.Error("expected no next spot after completing the route")
	}
	if resp.RunStatus != "COMPLETED" {
		t.Errorf("expected run status COMPLETED, got %q", resp.RunStatus)
	}
	if resp.Progress.CompletedCount != 2 {
		t.Errorf("expected 2 completed spots, got %d", resp.Progress.CompletedCount)
	}

	var status string
	if err := db.QueryRow(`SELECT status FROM tour_runs WHERE id = ?`, runID).Scan(&status); err != nil {
		t.Fatalf("reading run status: %v", err)
	}
	if status != "COMPLETED" {
		t.Errorf("expected persisted run status COMPLETED, got %q", status)
	}
}

func TestNextSpotForbidden(t *testing.T) {
	db := testDB(t)
	r := testRouter(t, db)

	owner := createUser(t, db, "owner@example.com", "pw")
	other := createUser(t, db, "other@example.com", "pw")
	tourID := createTour(t, db, "Old City")
	runID := createRun(t, db, owner, tourID)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/tour-runs/%d/next-spot", runID), nil)
	req.Header.Set("Authorization", "Bearer "+accessToken(t, other))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}
