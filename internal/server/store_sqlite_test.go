package server

import (
	"context"
	"errors"
	"testing"

	"github.com/questofseoul/tourguide/internal/tour"
)

func TestListMissionStepsOrderAndLanguage(t *testing.T) {
	db := testDB(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()

	tourID := createTour(t, db, "Old City")
	spotID := createSpot(t, db, tourID, "Gate", 1)
	quiz := createMission(t, db, "QUIZ", `{"answer":"a"}`)

	// Interleave content steps, another language, and out-of-order inserts.
	createStep(t, db, spotID, "en", 1, "CONTENT", 0)
	third := createStep(t, db, spotID, "en", 6, "MISSION", quiz)
	first := createStep(t, db, spotID, "en", 2, "MISSION", quiz)
	createStep(t, db, spotID, "ko", 3, "MISSION", quiz)
	second := createStep(t, db, spotID, "en", 4, "MISSION", quiz)

	steps, err := store.ListMissionSteps(ctx, spotID, "en")
	if err != nil {
		t.Fatalf("listing mission steps: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("expected 3 mission steps, got %d", len(steps))
	}
	want := []int64{first, second, third}
	for i, st := range steps {
		if st.ID != want[i] {
			t.Errorf("position %d: expected step %d, got %d", i, want[i], st.ID)
		}
		if st.Kind != tour.StepMission {
			t.Errorf("position %d: expected MISSION kind, got %s", i, st.Kind)
		}
	}

	empty, err := store.ListMissionSteps(ctx, spotID, "fr")
	if err != nil {
		t.Fatalf("listing for unknown language: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no steps for unknown language, got %d", len(empty))
	}
}

func TestAttemptLedgerAppendOnly(t *testing.T) {
	db := testDB(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()

	userID := createUser(t, db, "walker@example.com", "pw")
	tourID := createTour(t, db, "Old City")
	spotID := createSpot(t, db, tourID, "Gate", 1)
	quiz := createMission(t, db, "QUIZ", `{"answer":"a"}`)
	stepID := createStep(t, db, spotID, "en", 1, "MISSION", quiz)
	runID := createRun(t, db, userID, tourID)

	for i := 1; i <= 3; i++ {
		_, err := store.SaveAttempt(ctx, tour.Attempt{
			RunID:      runID,
			StepID:     stepID,
			MissionID:  quiz,
			AttemptNo:  i,
			AnswerJSON: tour.AnswerJSON{"selectedOptionId": "a"},
			IsCorrect:  i == 3,
			Score:      gradeScore(i == 3),
			Feedback:   gradeFeedback(i == 3),
		})
		if err != nil {
			t.Fatalf("saving attempt %d: %v", i, err)
		}
	}

	attempts, err := store.ListAttempts(ctx, runID, stepID)
	if err != nil {
		t.Fatalf("listing attempts: %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(attempts))
	}
	for i, a := range attempts {
		if a.AttemptNo != i+1 {
			t.Errorf("position %d: expected attempt_no %d, got %d", i, i+1, a.AttemptNo)
		}
	}

	latest, err := store.LatestAttempt(ctx, runID, stepID)
	if err != nil {
		t.Fatalf("latest attempt: %v", err)
	}
	if latest.AttemptNo != 3 || !latest.IsCorrect {
		t.Errorf("expected latest attempt 3 correct, got no=%d correct=%v", latest.AttemptNo, latest.IsCorrect)
	}
}

func TestLatestAttemptNotFound(t *testing.T) {
	db := testDB(t)
	store := NewSQLiteStore(db)

	_, err := store.LatestAttempt(context.Background(), 1, 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindOrCreateSpotProgressIdempotent(t *testing.T) {
	db := testDB(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()

	userID := createUser(t, db, "walker@example.com", "pw")
	tourID := createTour(t, db, "Old City")
	spotID := createSpot(t, db, tourID, "Gate", 1)
	runID := createRun(t, db, userID, tourID)

	first, err := store.FindOrCreateSpotProgress(ctx, runID, spotID)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if first.Status != tour.ProgressUnlocked {
		t.Errorf("expected new row UNLOCKED, got %s", first.Status)
	}

	second, err := store.FindOrCreateSpotProgress(ctx, runID, spotID)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected the same row, got ids %d and %d", first.ID, second.ID)
	}
}

func TestSpotProgressMonotonic(t *testing.T) {
	db := testDB(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()

	userID := createUser(t, db, "walker@example.com", "pw")
	tourID := createTour(t, db, "Old City")
	spotID := createSpot(t, db, tourID, "Gate", 1)
	runID := createRun(t, db, userID, tourID)

	if _, err := store.FindOrCreateSpotProgress(ctx, runID, spotID); err != nil {
		t.Fatalf("creating progress: %v", err)
	}
	if err := store.CompleteSpot(ctx, runID, spotID); err != nil {
		t.Fatalf("completing spot: %v", err)
	}

	// A later unlock must not regress a completed spot.
	if err := store.UnlockSpot(ctx, runID, spotID); err != nil {
		t.Fatalf("unlocking spot: %v", err)
	}

	p, err := store.FindOrCreateSpotProgress(ctx, runID, spotID)
	if err != nil {
		t.Fatalf("loading progress: %v", err)
	}
	if p.Status != tour.ProgressCompleted {
		t.Errorf("expected spot to stay COMPLETED, got %s", p.Status)
	}

	// Completing again is a no-op, not an error.
	if err := store.CompleteSpot(ctx, runID, spotID); err != nil {
		t.Fatalf("re-completing spot: %v", err)
	}
}

func TestTransactRollsBackOnError(t *testing.T) {
	db := testDB(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()

	userID := createUser(t, db, "walker@example.com", "pw")
	tourID := createTour(t, db, "Old City")
	spotID := createSpot(t, db, tourID, "Gate", 1)
	runID := createRun(t, db, userID, tourID)

	boom := errors.New("boom")
	err := store.Transact(ctx, func(tx Store) error {
		if _, err := tx.FindOrCreateSpotProgress(ctx, runID, spotID); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error, got %v", err)
	}

	progress, err := store.ListSpotProgress(ctx, runID)
	if err != nil {
		t.Fatalf("listing progress: %v", err)
	}
	if len(progress) != 0 {
		t.Errorf("expected rollback to discard the progress row, got %d rows", len(progress))
	}
}

func TestTransactNested(t *testing.T) {
	db := testDB(t)
	store := NewSQLiteStore(db)
	ctx := context.Background()

	userID := createUser(t, db, "walker@example.com", "pw")
	tourID := createTour(t, db, "Old City")
	spotID := createSpot(t, db, tourID, "Gate", 1)
	runID := createRun(t, db, userID, tourID)

	err := store.Transact(ctx, func(outer Store) error {
		return outer.Transact(ctx, func(inner Store) error {
			_, err := inner.FindOrCreateSpotProgress(ctx, runID, spotID)
			return err
		})
	})
	if err != nil {
		t.Fatalf("nested transact: %v", err)
	}

	progress, err := store.ListSpotProgress(ctx, runID)
	if err != nil {
		t.Fatalf("listing progress: %v", err)
	}
	if len(progress) != 1 {
		t.Errorf("expected 1 progress row, got %d", len(progress))
	}
}

func TestGetRunNotFound(t *testing.T) {
	db := testDB(t)
	store := NewSQLiteStore(db)

	_, err := store.GetRun(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
