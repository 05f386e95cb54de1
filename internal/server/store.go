package server

import (
	"context"
	"errors"

	"github.com/questofseoul/tourguide/internal/tour"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// Store is the persistence surface the handlers and the mission engine run
// against. Transact runs fn against a transaction-scoped Store; every write
// inside fn commits or rolls back together.
type Store interface {
	Transact(ctx context.Context, fn func(Store) error) error

	UserByEmail(ctx context.Context, email string) (tour.User, error)

	ListTours(ctx context.Context) ([]tour.Tour, error)
	GetTour(ctx context.Context, tourID int64) (tour.Tour, error)
	ListRouteSpots(ctx context.Context, tourID int64) ([]tour.Spot, error)

	GetRun(ctx context.Context, runID int64) (tour.Run, error)
	FindRunInProgress(ctx context.Context, userID string, tourID int64) (tour.Run, error)
	CreateRun(ctx context.Context, userID string, tourID int64) (tour.Run, error)
	CompleteRun(ctx context.Context, runID int64) error

	// GetStep resolves a step together with its mission (nil for plain
	// content steps).
	GetStep(ctx context.Context, stepID int64) (tour.Step, error)

	// ListMissionSteps is the authoritative sequencing contract: mission-kind
	// steps of one spot in one language, ascending by step index. An unknown
	// spot/language combination yields an empty slice, not an error.
	ListMissionSteps(ctx context.Context, spotID int64, language string) ([]tour.Step, error)

	// Attempt ledger: append-only, insertion-ordered per (run, step).
	ListAttempts(ctx context.Context, runID, stepID int64) ([]tour.Attempt, error)
	LatestAttempt(ctx context.Context, runID, stepID int64) (tour.Attempt, error)
	SaveAttempt(ctx context.Context, a tour.Attempt) (tour.Attempt, error)

	// Spot progress: rows are created lazily and already unlocked; querying
	// progress for a spot implies the user has entered it. UnlockSpot and
	// CompleteSpot are idempotent; a completed row never leaves COMPLETED.
	FindOrCreateSpotProgress(ctx context.Context, runID, spotID int64) (tour.SpotProgress, error)
	UnlockSpot(ctx context.Context, runID, spotID int64) error
	CompleteSpot(ctx context.Context, runID, spotID int64) error
	ListSpotProgress(ctx context.Context, runID int64) ([]tour.SpotProgress, error)
}
