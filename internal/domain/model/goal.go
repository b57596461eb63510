package model

import (
	"time"

	"github.com/google/uuid"
)

// Goal statuses.
const (
	GoalActive    = "active"
	GoalCompleted = "completed"
	GoalPaused    = "paused"
)

// Goal is a savings target.
type Goal struct {
	ID           uuid.UUID  `json:"id" bson:"_id"`
	UserID       uuid.UUID  `json:"user_id" bson:"user_id" validate:"required"`
	Title        string     `json:"title" bson:"title" validate:"required,max=120"`
	Description  string     `json:"description,omitempty" bson:"description,omitempty" validate:"max=500"`
	TargetValue  float64    `json:"target_value" bson:"target_value" validate:"gt=0"`
	CurrentValue float64    `json:"current_value" bson:"current_value" validate:"gte=0"`
	Status       string     `json:"status" bson:"status" validate:"oneof=active completed paused"`
	Deadline     *time.Time `json:"deadline,omitempty" bson:"deadline,omitempty"`
	CreatedAt    time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" bson:"updated_at"`
}

// GetID returns the goal id.
func (g Goal) GetID() uuid.UUID { return g.ID }

// Field exposes the filterable fields by their JSON name.
func (g Goal) Field(name string) (any, bool) {
	switch name {
	case "id":
		return g.ID, true
	case "user_id":
		return g.UserID, true
	case "title":
		return g.Title, true
	case "description":
		return g.Description, true
	case "target_value":
		return g.TargetValue, true
	case "current_value":
		return g.CurrentValue, true
	case "progress":
		return g.Progress(), true
	case "status":
		return g.Status, true
	case "deadline":
		if g.Deadline == nil {
			return nil, false
		}
		return *g.Deadline, true
	case "created_at":
		return g.CreatedAt, true
	case "updated_at":
		return g.UpdatedAt, true
	}
	return nil, false
}

// Progress returns the completed fraction of the target, capped at 1.
func (g Goal) Progress() float64 {
	if g.TargetValue <= 0 {
		return 0
	}
	return min(g.CurrentValue/g.TargetValue, 1)
}

// Validate checks the goal invariants.
func (g Goal) Validate() error {
	return validateStruct(g)
}

// Created assigns identity and creation time. The status defaults to active.
func (g Goal) Created(id uuid.UUID, at time.Time) Goal {
	g.ID = id
	if g.CreatedAt.IsZero() {
		g.CreatedAt = at
	}
	if g.Status == "" {
		g.Status = GoalActive
	}
	g.UpdatedAt = at
	return g
}

// Touched records a modification time.
func (g Goal) Touched(at time.Time) Goal {
	g.UpdatedAt = at
	return g
}

// CacheTags groups cached goals by owner.
func (g Goal) CacheTags() []string {
	return []string{UserTag(g.UserID)}
}

// UserTag is the cache tag shared by every entry owned by a user.
func UserTag(userID uuid.UUID) string {
	return "user:" + userID.String()
}
