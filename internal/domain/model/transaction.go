package model

import (
	"time"

	"github.com/google/uuid"
)

// Transaction kinds.
const (
	TransactionIncome  = "income"
	TransactionExpense = "expense"
)

// Transaction is a single income or expense entry.
type Transaction struct {
	ID          uuid.UUID `json:"id" bson:"_id"`
	UserID      uuid.UUID `json:"user_id" bson:"user_id" validate:"required"`
	CategoryID  uuid.UUID `json:"category_id" bson:"category_id"`
	Description string    `json:"description" bson:"description" validate:"required,max=255"`
	Amount      float64   `json:"amount" bson:"amount" validate:"gt=0"`
	Type        string    `json:"type" bson:"type" validate:"oneof=income expense"`
	Platform    string    `json:"platform,omitempty" bson:"platform,omitempty" validate:"max=64"`
	Tags        []string  `json:"tags,omitempty" bson:"tags,omitempty" validate:"dive,required,max=32"`
	Date        time.Time `json:"date" bson:"date" validate:"required"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// GetID returns the transaction id.
func (t Transaction) GetID() uuid.UUID { return t.ID }

// Field exposes the filterable fields by their JSON name.
func (t Transaction) Field(name string) (any, bool) {
	switch name {
	case "id":
		return t.ID, true
	case "user_id":
		return t.UserID, true
	case "category_id":
		return t.CategoryID, true
	case "description":
		return t.Description, true
	case "amount":
		return t.Amount, true
	case "type":
		return t.Type, true
	case "platform":
		return t.Platform, true
	case "tags":
		return t.Tags, true
	case "date":
		return t.Date, true
	case "created_at":
		return t.CreatedAt, true
	case "updated_at":
		return t.UpdatedAt, true
	}
	return nil, false
}

// Validate checks the transaction invariants.
func (t Transaction) Validate() error {
	return validateStruct(t)
}

// Created assigns identity and creation time.
func (t Transaction) Created(id uuid.UUID, at time.Time) Transaction {
	t.ID = id
	if t.CreatedAt.IsZero() {
		t.CreatedAt = at
	}
	t.UpdatedAt = at
	return t
}

// Touched records a modification time.
func (t Transaction) Touched(at time.Time) Transaction {
	t.UpdatedAt = at
	return t
}

// CacheTags groups cached transactions by owner.
func (t Transaction) CacheTags() []string {
	return []string{UserTag(t.UserID)}
}
