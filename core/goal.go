package core

import "time"

// GoalStatus is the lifecycle state of a goal.
type GoalStatus string

const (
	GoalInProgress GoalStatus = "IN_PROGRESS"
	GoalDone       GoalStatus = "DONE"
	GoalFailed     GoalStatus = "FAILED"
)

// Objective is a single step towards a goal.
type Objective struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// Goal tracks an objective list for a room. Goals are written by evaluators
// and read by the state composer; only status and objective completion are
// mutated after creation.
type Goal struct {
	ID         string      `json:"id"`
	RoomID     string      `json:"roomId"`
	UserID     string      `json:"userId,omitempty"`
	Name       string      `json:"name"`
	Status     GoalStatus  `json:"status"`
	Objectives []Objective `json:"objectives"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// NewGoal creates an in-progress goal with a generated id.
func NewGoal(roomID, userID, name string, objectives []Objective) Goal {
	return Goal{
		ID:         NewID(),
		RoomID:     roomID,
		UserID:     userID,
		Name:       name,
		Status:     GoalInProgress,
		Objectives: objectives,
		CreatedAt:  time.Now().UTC(),
	}
}
