package repository

import (
	"time"

	"github.com/google/uuid"
)

// note is the entity used by the repository tests.
type note struct {
	ID        uuid.UUID `bson:"_id" json:"id"`
	Title     string    `bson:"title" json:"title"`
	Labels    []string  `bson:"labels,omitempty" json:"labels,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func (n note) GetID() uuid.UUID { return n.ID }

func newNote(title string) note {
	return note{ID: uuid.New(), Title: title, CreatedAt: time.Now().UTC().Truncate(time.Millisecond)}
}
