package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/questofseoul/tourguide/internal/tour"
)

// querier is satisfied by both *sql.DB and *sql.Tx so every store method
// works inside and outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type SQLiteStore struct {
	db *sql.DB
	q  querier
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, q: db}
}

func (s *SQLiteStore) Transact(ctx context.Context, fn func(Store) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		// Already inside a transaction; SQLite has no nesting.
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(&SQLiteStore{db: s.db, q: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) UserByEmail(ctx context.Context, email string) (tour.User, error) {
	var u tour.User
	err := s.q.QueryRowContext(ctx, `
		SELECT id, email, password_hash, display_name
		FROM users WHERE email = ?
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

func (s *SQLiteStore) ListTours(ctx context.Context) ([]tour.Tour, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, title, description, is_active
		FROM tours WHERE is_active = 1 ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tours []tour.Tour
	for rows.Next() {
		var t tour.Tour
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.IsActive); err != nil {
			return nil, err
		}
		tours = append(tours, t)
	}
	return tours, rows.Err()
}

func (s *SQLiteStore) GetTour(ctx context.Context, tourID int64) (tour.Tour, error) {
	var t tour.Tour
	err := s.q.QueryRowContext(ctx, `
		SELECT id, title, description, is_active FROM tours WHERE id = ?
	`, tourID).Scan(&t.ID, &t.Title, &t.Description, &t.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Spots, err = s.ListRouteSpots(ctx, tourID)
	return t, err
}

func (s *SQLiteStore) ListRouteSpots(ctx context.Context, tourID int64) ([]tour.Spot, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, tour_id, type, title, latitude, longitude, radius_m, order_index, is_active
		FROM tour_spots
		WHERE tour_id = ? AND is_active = 1
		ORDER BY order_index ASC
	`, tourID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var spots []tour.Spot
	for rows.Next() {
		var sp tour.Spot
		if err := rows.Scan(&sp.ID, &sp.TourID, &sp.Type, &sp.Title, &sp.Latitude,
			&sp.Longitude, &sp.RadiusM, &sp.OrderIndex, &sp.IsActive); err != nil {
			return nil, err
		}
		spots = append(spots, sp)
	}
	return spots, rows.Err()
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID int64) (tour.Run, error) {
	var r tour.Run
	err := s.q.QueryRowContext(ctx, `
		SELECT id, user_id, tour_id, status FROM tour_runs WHERE id = ?
	`, runID).Scan(&r.ID, &r.UserID, &r.TourID, &r.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

func (s *SQLiteStore) FindRunInProgress(ctx context.Context, userID string, tourID int64) (tour.Run, error) {
	var r tour.Run
	err := s.q.QueryRowContext(ctx, `
		SELECT id, user_id, tour_id, status
		FROM tour_runs
		WHERE user_id = ? AND tour_id = ? AND status = 'IN_PROGRESS'
		ORDER BY id DESC LIMIT 1
	`, userID, tourID).Scan(&r.ID, &r.UserID, &r.TourID, &r.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

func (s *SQLiteStore) CreateRun(ctx context.Context, userID string, tourID int64) (tour.Run, error) {
	r := tour.Run{UserID: userID, TourID: tourID, Status: tour.RunInProgress}
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO tour_runs (user_id, tour_id) VALUES (?, ?)
		RETURNING id
	`, userID, tourID).Scan(&r.ID)
	return r, err
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID int64) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE tour_runs
		SET status = 'COMPLETED', ended_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ? AND status = 'IN_PROGRESS'
	`, runID)
	return err
}

func (s *SQLiteStore) GetStep(ctx context.Context, stepID int64) (tour.Step, error) {
	var st tour.Step
	var missionID sql.NullInt64
	var title sql.NullString
	err := s.q.QueryRowContext(ctx, `
		SELECT id, spot_id, language, step_index, kind, title, mission_id
		FROM spot_content_steps WHERE id = ?
	`, stepID).Scan(&st.ID, &st.SpotID, &st.Language, &st.StepIndex, &st.Kind, &title, &missionID)
	if errors.Is(err, sql.ErrNoRows) {
		return st, ErrNotFound
	}
	if err != nil {
		return st, err
	}
	st.Title = title.String
	if missionID.Valid {
		m, err := s.getMission(ctx, missionID.Int64)
		if err != nil {
			return st, err
		}
		st.Mission = &m
	}
	return st, nil
}

func (s *SQLiteStore) getMission(ctx context.Context, missionID int64) (tour.Mission, error) {
	var m tour.Mission
	var options, answer, meta sql.NullString
	err := s.q.QueryRowContext(ctx, `
		SELECT id, mission_type, prompt, options_json, answer_json, meta_json
		FROM missions WHERE id = ?
	`, missionID).Scan(&m.ID, &m.Type, &m.Prompt, &options, &answer, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	m.OptionsJSON = decodeAnswerJSON(options)
	m.AnswerJSON = decodeAnswerJSON(answer)
	m.MetaJSON = decodeAnswerJSON(meta)
	return m, nil
}

func (s *SQLiteStore) ListMissionSteps(ctx context.Context, spotID int64, language string) ([]tour.Step, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, spot_id, language, step_index, kind, title
		FROM spot_content_steps
		WHERE spot_id = ? AND kind = 'MISSION' AND language = ?
		ORDER BY step_index ASC
	`, spotID, language)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []tour.Step
	for rows.Next() {
		var st tour.Step
		var title sql.NullString
		if err := rows.Scan(&st.ID, &st.SpotID, &st.Language, &st.StepIndex, &st.Kind, &title); err != nil {
			return nil, err
		}
		st.Title = title.String
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

func (s *SQLiteStore) ListAttempts(ctx context.Context, runID, stepID int64) ([]tour.Attempt, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, tour_run_id, step_id, mission_id, attempt_no, answer_json,
		       COALESCE(is_correct, 0), COALESCE(score, 0), COALESCE(feedback, '')
		FROM user_mission_attempts
		WHERE tour_run_id = ? AND step_id = ?
		ORDER BY id ASC
	`, runID, stepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []tour.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (s *SQLiteStore) LatestAttempt(ctx context.Context, runID, stepID int64) (tour.Attempt, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, tour_run_id, step_id, mission_id, attempt_no, answer_json,
		       COALESCE(is_correct, 0), COALESCE(score, 0), COALESCE(feedback, '')
		FROM user_mission_attempts
		WHERE tour_run_id = ? AND step_id = ?
		ORDER BY attempt_no DESC LIMIT 1
	`, runID, stepID)
	if err != nil {
		return tour.Attempt{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return tour.Attempt{}, err
		}
		return tour.Attempt{}, ErrNotFound
	}
	return scanAttempt(rows)
}

func (s *SQLiteStore) SaveAttempt(ctx context.Context, a tour.Attempt) (tour.Attempt, error) {
	answer, err := json.Marshal(a.AnswerJSON)
	if err != nil {
		return a, fmt.Errorf("encoding answer: %w", err)
	}
	err = s.q.QueryRowContext(ctx, `
		INSERT INTO user_mission_attempts
			(tour_run_id, step_id, mission_id, attempt_no, answer_json,
			 is_correct, score, feedback, graded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		RETURNING id
	`, a.RunID, a.StepID, a.MissionID, a.AttemptNo, string(answer),
		boolToInt(a.IsCorrect), a.Score, a.Feedback).Scan(&a.ID)
	return a, err
}

func (s *SQLiteStore) FindOrCreateSpotProgress(ctx context.Context, runID, spotID int64) (tour.SpotProgress, error) {
	// Insert-or-ignore then read: the mere act of querying progress means the
	// user has entered the spot, so new rows start out unlocked.
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO user_spot_progress (tour_run_id, spot_id, progress_status, unlocked_at)
		VALUES (?, ?, 'UNLOCKED', strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT (tour_run_id, spot_id) DO NOTHING
	`, runID, spotID)
	if err != nil {
		return tour.SpotProgress{}, err
	}

	var p tour.SpotProgress
	err = s.q.QueryRowContext(ctx, `
		SELECT id, tour_run_id, spot_id, progress_status
		FROM user_spot_progress
		WHERE tour_run_id = ? AND spot_id = ?
	`, runID, spotID).Scan(&p.ID, &p.RunID, &p.SpotID, &p.Status)
	return p, err
}

func (s *SQLiteStore) UnlockSpot(ctx context.Context, runID, spotID int64) error {
	// Completed spots stay completed: progress only moves forward.
	_, err := s.q.ExecContext(ctx, `
		UPDATE user_spot_progress
		SET progress_status = 'UNLOCKED',
		    unlocked_at = COALESCE(unlocked_at, strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
		    updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE tour_run_id = ? AND spot_id = ? AND progress_status != 'COMPLETED'
	`, runID, spotID)
	return err
}

func (s *SQLiteStore) CompleteSpot(ctx context.Context, runID, spotID int64) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE user_spot_progress
		SET progress_status = 'COMPLETED',
		    completed_at = COALESCE(completed_at, strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
		    updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE tour_run_id = ? AND spot_id = ?
	`, runID, spotID)
	return err
}

func (s *SQLiteStore) ListSpotProgress(ctx context.Context, runID int64) ([]tour.SpotProgress, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, tour_run_id, spot_id, progress_status
		FROM user_spot_progress
		WHERE tour_run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var progress []tour.SpotProgress
	for rows.Next() {
		var p tour.SpotProgress
		if err := rows.Scan(&p.ID, &p.RunID, &p.SpotID, &p.Status); err != nil {
			return nil, err
		}
		progress = append(progress, p)
	}
	return progress, rows.Err()
}

func scanAttempt(rows *sql.Rows) (tour.Attempt, error) {
	var a tour.Attempt
	var answer sql.NullString
	var isCorrect int
	if err := rows.Scan(&a.ID, &a.RunID, &a.StepID, &a.MissionID, &a.AttemptNo,
		&answer, &isCorrect, &a.Score, &a.Feedback); err != nil {
		return a, err
	}
	a.IsCorrect = isCorrect != 0
	a.AnswerJSON = decodeAnswerJSON(answer)
	return a, nil
}

func decodeAnswerJSON(ns sql.NullString) tour.AnswerJSON {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var m tour.AnswerJSON
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil
	}
	return m
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
