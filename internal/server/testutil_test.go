package server

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/questofseoul/tourguide/internal/database"
	"github.com/questofseoul/tourguide/internal/migrations"
)

var testTokens = newTokenIssuer("test-secret", time.Hour, 24*time.Hour)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	if err := migrations.Run(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testRouter(t *testing.T, db *sql.DB) *chi.Mux {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	addRoutes(r, logger, NewSQLiteStore(db), db, testTokens)
	return r
}

func accessToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := testTokens.issueAccess(userID)
	if err != nil {
		t.Fatalf("issuing access token: %v", err)
	}
	return token
}

func createUser(t *testing.T, db *sql.DB, email, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	id := uuid.NewString()
	_, err = db.Exec(`
		INSERT INTO users (id, email, password_hash, display_name)
		VALUES (?, ?, ?, 'Test User')
	`, id, email, string(hash))
	if err != nil {
		t.Fatalf("inserting user: %v", err)
	}
	return id
}

func createTour(t *testing.T, db *sql.DB, title string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(`
		INSERT INTO tours (title, description) VALUES (?, 'test tour')
		RETURNING id
	`, title).Scan(&id)
	if err != nil {
		t.Fatalf("inserting tour: %v", err)
	}
	return id
}

func createSpot(t *testing.T, db *sql.DB, tourID int64, title string, order int) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(`
		INSERT INTO tour_spots (tour_id, type, title, order_index)
		VALUES (?, 'MAIN', ?, ?)
		RETURNING id
	`, tourID, title, order).Scan(&id)
	if err != nil {
		t.Fatalf("inserting spot: %v", err)
	}
	return id
}

func createMission(t *testing.T, db *sql.DB, missionType, answerJSON string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(`
		INSERT INTO missions (mission_type, prompt, options_json, answer_json)
		VALUES (?, 'test prompt', '{}', ?)
		RETURNING id
	`, missionType, answerJSON).Scan(&id)
	if err != nil {
		t.Fatalf("inserting mission: %v", err)
	}
	return id
}

// createStep inserts a content step. missionID 0 means no attached mission.
func createStep(t *testing.T, db *sql.DB, spotID int64, language string, index int, kind string, missionID int64) int64 {
	t.Helper()
	var mid any
	if missionID != 0 {
		mid = missionID
	}
	var id int64
	err := db.QueryRow(`
		INSERT INTO spot_content_steps (spot_id, language, step_index, kind, title, mission_id)
		VALUES (?, ?, ?, ?, 'test step', ?)
		RETURNING id
	`, spotID, language, index, kind, mid).Scan(&id)
	if err != nil {
		t.Fatalf("inserting step: %v", err)
	}
	return id
}

func createRun(t *testing.T, db *sql.DB, userID string, tourID int64) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(`
		INSERT INTO tour_runs (user_id, tour_id) VALUES (?, ?)
		RETURNING id
	`, userID, tourID).Scan(&id)
	if err != nil {
		t.Fatalf("inserting run: %v", err)
	}
	return id
}
