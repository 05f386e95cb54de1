// Package tour defines the core domain types for the tour-guide backend.
// It has no external dependencies.
package tour

import (
	"fmt"
	"strings"
	"time"
)

// MissionType is the closed set of mission kinds a step can carry.
type MissionType string

const (
	MissionQuiz      MissionType = "QUIZ"
	MissionOX        MissionType = "OX"
	MissionPhoto     MissionType = "PHOTO"
	MissionTextInput MissionType = "TEXT_INPUT"
)

// ParseMissionType normalizes an API value ("quiz", " Quiz ") to a MissionType.
func ParseMissionType(raw string) (MissionType, error) {
	switch mt := MissionType(strings.ToUpper(strings.TrimSpace(raw))); mt {
	case MissionQuiz, MissionOX, MissionPhoto, MissionTextInput:
		return mt, nil
	default:
		return "", fmt.Errorf("unknown mission type %q", raw)
	}
}

// StepKind distinguishes narrative content steps from mission steps.
type StepKind string

const (
	StepContent StepKind = "CONTENT"
	StepMission StepKind = "MISSION"
)

// SpotType marks a spot's role on the tour route. Only MAIN and SUB spots
// count toward progress.
type SpotType string

const (
	SpotMain SpotType = "MAIN"
	SpotSub  SpotType = "SUB"
)

// RunStatus is the lifecycle state of a tour run.
type RunStatus string

const (
	RunInProgress RunStatus = "IN_PROGRESS"
	RunCompleted  RunStatus = "COMPLETED"
	RunAbandoned  RunStatus = "ABANDONED"
)

// ProgressStatus is the per-(run, spot) completion state. A missing row
// means the spot is still locked; rows are created already unlocked.
type ProgressStatus string

const (
	ProgressUnlocked  ProgressStatus = "UNLOCKED"
	ProgressCompleted ProgressStatus = "COMPLETED"
	ProgressSkipped   ProgressStatus = "SKIPPED"
)

// AnswerJSON is the opaque key-value payload attached to missions and
// attempts. Its schema is authored per mission and not validated here.
type AnswerJSON map[string]any

// Run is one user's traversal instance of a tour.
type Run struct {
	ID        int64
	UserID    string
	TourID    int64
	Status    RunStatus
	StartedAt time.Time
	EndedAt   *time.Time
}

// Spot is a physical location on a tour route.
type Spot struct {
	ID         int64
	TourID     int64
	Type       SpotType
	Title      string
	Latitude   float64
	Longitude  float64
	RadiusM    int
	OrderIndex int
	IsActive   bool
}

// Step is an ordered content or mission unit within a spot. Mission is nil
// for CONTENT steps.
type Step struct {
	ID        int64
	SpotID    int64
	Language  string
	StepIndex int
	Kind      StepKind
	Title     string
	Mission   *Mission
}

// Mission is a challenge attached to a step.
type Mission struct {
	ID          int64
	Type        MissionType
	Prompt      string
	OptionsJSON AnswerJSON
	AnswerJSON  AnswerJSON
	MetaJSON    AnswerJSON
}

// Attempt is one recorded submission against a mission. Attempts are
// append-only; the ledger never deduplicates.
type Attempt struct {
	ID          int64
	RunID       int64
	StepID      int64
	MissionID   int64
	AttemptNo   int
	AnswerJSON  AnswerJSON
	IsCorrect   bool
	Score       int
	Feedback    string
	SubmittedAt time.Time
	GradedAt    time.Time
}

// SpotProgress is the per-(run, spot) state row.
type SpotProgress struct {
	ID          int64
	RunID       int64
	SpotID      int64
	Status      ProgressStatus
	UnlockedAt  *time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

// Tour is a published tour with its route of spots.
type Tour struct {
	ID          int64
	Title       string
	Description string
	IsActive    bool
	Spots       []Spot
}

// User is a registered account. IDs are UUID strings.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
}
