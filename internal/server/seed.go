package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SeedDemo creates a demo user and a small demo tour (two spots, EN and KO
// content, quiz/OX/photo missions) if the database has no users yet.
// Idempotent: does nothing on a non-empty database.
func SeedDemo(ctx context.Context, logger *slog.Logger, db *sql.DB) error {
	var users int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&users); err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if users > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("demo1234"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing demo password: %w", err)
	}
	userID := uuid.NewString()
	if _, err := db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, display_name)
		VALUES (?, ?, ?, ?)
	`, userID, "demo@questofseoul.app", string(hash), "Demo Explorer"); err != nil {
		return fmt.Errorf("inserting demo user: %w", err)
	}

	var tourID int64
	if err := db.QueryRowContext(ctx, `
		INSERT INTO tours (title, description)
		VALUES ('Quest of Seoul: Old City', 'A walking quest through the palaces and alleys of old Seoul.')
		RETURNING id
	`).Scan(&tourID); err != nil {
		return fmt.Errorf("inserting demo tour: %w", err)
	}

	gate, err := seedSpot(ctx, db, tourID, "MAIN", "Gyeongbokgung Gate", 37.5759, 126.9769, 1)
	if err != nil {
		return err
	}
	hanok, err := seedSpot(ctx, db, tourID, "MAIN", "Bukchon Hanok Village", 37.5826, 126.9849, 2)
	if err != nil {
		return err
	}

	for _, lang := range []string{"en", "ko"} {
		if err := seedStep(ctx, db, gate, lang, 0, "CONTENT", "Welcome to the gate", nil); err != nil {
			return err
		}
		quiz, err := seedMission(ctx, db, "QUIZ",
			"Which dynasty built Gyeongbokgung Palace?",
			`{"choices":[{"id":"a","label":"Joseon"},{"id":"b","label":"Goryeo"},{"id":"c","label":"Silla"}]}`,
			`{"answer":"a"}`)
		if err != nil {
			return err
		}
		if err := seedStep(ctx, db, gate, lang, 1, "MISSION", "Palace quiz", &quiz); err != nil {
			return err
		}
		ox, err := seedMission(ctx, db, "OX",
			"The royal guard ceremony still takes place today. O or X?",
			`{"choices":[{"id":"O"},{"id":"X"}]}`,
			`{"answer":"O"}`)
		if err != nil {
			return err
		}
		if err := seedStep(ctx, db, gate, lang, 2, "MISSION", "Guard ceremony", &ox); err != nil {
			return err
		}

		photo, err := seedMission(ctx, db, "PHOTO",
			"Take a photo of a hanok rooftop.", `{}`, `{}`)
		if err != nil {
			return err
		}
		if err := seedStep(ctx, db, hanok, lang, 0, "MISSION", "Rooftop photo", &photo); err != nil {
			return err
		}
	}

	logger.Info("demo tour seeded", "tour_id", tourID, "user", "demo@questofseoul.app")
	return nil
}

func seedSpot(ctx context.Context, db *sql.DB, tourID int64, spotType, title string, lat, lng float64, order int) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx, `
		INSERT INTO tour_spots (tour_id, type, title, latitude, longitude, order_index)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`, tourID, spotType, title, lat, lng, order).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting spot %q: %w", title, err)
	}
	return id, nil
}

func seedMission(ctx context.Context, db *sql.DB, missionType, prompt, options, answer string) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx, `
		INSERT INTO missions (mission_type, prompt, options_json, answer_json)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`, missionType, prompt, options, answer).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting mission: %w", err)
	}
	return id, nil
}

func seedStep(ctx context.Context, db *sql.DB, spotID int64, language string, index int, kind, title string, missionID *int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO spot_content_steps (spot_id, language, step_index, kind, title, mission_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, spotID, language, index, kind, title, missionID)
	if err != nil {
		return fmt.Errorf("inserting step %q: %w", title, err)
	}
	return nil
}
