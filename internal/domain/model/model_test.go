//go:build !integration

package model

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/guttosm/entity-gateway/internal/errs"
	"github.com/guttosm/entity-gateway/internal/invalidation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTransaction() Transaction {
	return Transaction{
		UserID:      uuid.New(),
		Description: "Groceries",
		Amount:      42.5,
		Type:        TransactionExpense,
		Tags:        []string{"food"},
		Date:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestTransaction_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Transaction)
		field  string
	}{
		{"valid", func(*Transaction) {}, ""},
		{"missing user", func(tx *Transaction) { tx.UserID = uuid.Nil }, "user_id"},
		{"missing description", func(tx *Transaction) { tx.Description = "" }, "description"},
		{"zero amount", func(tx *Transaction) { tx.Amount = 0 }, "amount"},
		{"bad type", func(tx *Transaction) { tx.Type = "transfer" }, "type"},
		{"missing date", func(tx *Transaction) { tx.Date = time.Time{} }, "date"},
		{"empty tag", func(tx *Transaction) { tx.Tags = []string{""} }, "tags[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTransaction()
			tt.mutate(&tx)
			err := tx.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrValidation)

			var verr *errs.ValidationError
			require.True(t, errors.As(err, &verr))
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
			assert.NotEmpty(t, verr.Fields[0].Message)
		})
	}
}

func TestCategory_Validate(t *testing.T) {
	c := Category{UserID: uuid.New(), Name: "Home", Type: TransactionExpense, Color: "#ff8800"}
	assert.NoError(t, c.Validate())

	c.Color = "orange"
	err := c.Validate()
	var verr *errs.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "color", verr.Fields[0].Field)
	assert.Equal(t, "must be a hex color", verr.Fields[0].Message)
}

func TestGoal_CreatedAndProgress(t *testing.T) {
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	id := uuid.New()
	g := Goal{UserID: uuid.New(), Title: "Trip", TargetValue: 200, CurrentValue: 50}.Created(id, at)

	assert.Equal(t, id, g.GetID())
	assert.Equal(t, at, g.CreatedAt)
	assert.Equal(t, GoalActive, g.Status)
	assert.NoError(t, g.Validate())
	assert.InDelta(t, 0.25, g.Progress(), 1e-9)

	g.CurrentValue = 500
	assert.InDelta(t, 1.0, g.Progress(), 1e-9)
	assert.Equal(t, []string{"user:" + g.UserID.String()}, g.CacheTags())
}

func TestCreated_KeepsExistingCreatedAt(t *testing.T) {
	earlier := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	now := earlier.Add(time.Hour)
	tx := validTransaction()
	tx.CreatedAt = earlier

	tx = tx.Created(uuid.New(), now)
	assert.Equal(t, earlier, tx.CreatedAt)
	assert.Equal(t, now, tx.UpdatedAt)
}

func TestField(t *testing.T) {
	tx := validTransaction()
	v, ok := tx.Field("amount")
	require.True(t, ok)
	assert.Equal(t, 42.5, v)

	_, ok = tx.Field("unknown")
	assert.False(t, ok)

	g := Goal{}
	_, ok = g.Field("deadline")
	assert.False(t, ok, "a nil deadline is treated as missing")

	deadline := time.Now()
	g.Deadline = &deadline
	v, ok = g.Field("deadline")
	require.True(t, ok)
	assert.Equal(t, deadline, v)
}

func TestConfigs(t *testing.T) {
	reg, err := invalidation.NewRegistry(Configs(0, 30*time.Second)...)
	require.NoError(t, err)
	assert.Equal(t, []string{TypeCategory, TypeGoal, TypeTransaction}, reg.Types())

	tx, ok := reg.Lookup(TypeTransaction)
	require.True(t, ok)
	assert.Equal(t, invalidation.KindImmediate, tx.Strategy.Kind)
	assert.Equal(t, 30*time.Second, tx.QueryCacheTTL)
	assert.Equal(t, invalidation.DefaultTTL, tx.DefaultTTL)

	cat, _ := reg.Lookup(TypeCategory)
	assert.Equal(t, invalidation.KindCascade, cat.Strategy.Kind)
	assert.Equal(t, []string{TypeTransaction}, cat.Strategy.Dependents)

	goal, _ := reg.Lookup(TypeGoal)
	assert.Equal(t, invalidation.KindTimeToLive, goal.Strategy.Kind)
	assert.Equal(t, 5*time.Minute, goal.Strategy.TTL)
}
