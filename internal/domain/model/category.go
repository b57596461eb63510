package model

import (
	"time"

	"github.com/google/uuid"
)

// Category groups transactions. Its cache entries cascade into transactions.
type Category struct {
	ID        uuid.UUID `json:"id" bson:"_id"`
	UserID    uuid.UUID `json:"user_id" bson:"user_id" validate:"required"`
	Name      string    `json:"name" bson:"name" validate:"required,max=64"`
	Type      string    `json:"type" bson:"type" validate:"oneof=income expense"`
	Icon      string    `json:"icon,omitempty" bson:"icon,omitempty" validate:"max=32"`
	Color     string    `json:"color,omitempty" bson:"color,omitempty" validate:"omitempty,hexcolor"`
	Active    bool      `json:"active" bson:"active"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

func (c Category) GetID() uuid.UUID { return c.ID }

func (c Category) Field(name string) (any, bool) {
	switch name {
	case "id":
		return c.ID, true
	case "user_id":
		return c.UserID, true
	case "name":
		return c.Name, true
	case "type":
		return c.Type, true
	case "icon":
		return c.Icon, true
	case "color":
		return c.Color, true
	case "active":
		return c.Active, true
	case "created_at":
		return c.CreatedAt, true
	case "updated_at":
		return c.UpdatedAt, true
	}
	return nil, false
}

func (c Category) Validate() error {
	return validateStruct(c)
}

func (c Category) Created(id uuid.UUID, at time.Time) Category {
	c.ID = id
	if c.CreatedAt.IsZero() {
		c.CreatedAt = at
	}
	c.UpdatedAt = at
	return c
}

func (c Category) Touched(at time.Time) Category {
	c.UpdatedAt = at
	return c
}
