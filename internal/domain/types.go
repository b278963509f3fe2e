package domain

import "time"

type SessionID string
type UserID string
type MessageID string

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// RouteGoal is what the traveller wants the itinerary optimised for.
type RouteGoal string

const (
	GoalFastest         RouteGoal = "FASTEST"
	GoalLeastCrowded    RouteGoal = "LEAST_CROWDED"
	GoalLowWalking      RouteGoal = "LOW_WALKING"
	GoalFewestTransfers RouteGoal = "FEWEST_TRANSFERS"
)

// Valid reports whether g is one of the known route goals.
func (g RouteGoal) Valid() bool {
	switch g {
	case GoalFastest, GoalLeastCrowded, GoalLowWalking, GoalFewestTransfers:
		return true
	}
	return false
}

type Timestamp = time.Time
