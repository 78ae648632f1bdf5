package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	all := []Status{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled}
	allowed := map[[2]Status]bool{
		{StatusPending, StatusInProgress}:   true,
		{StatusPending, StatusCancelled}:    true,
		{StatusInProgress, StatusCompleted}: true,
		{StatusInProgress, StatusCancelled}: true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("In Progress")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, s)

	_, err = ParseStatus("Ready")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = ParseStatus("pending")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestTransitionSetsCompletedAtOnce(t *testing.T) {
	t0 := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	o := &Order{Status: StatusPending}

	_, err := o.Transition(StatusInProgress, t0)
	require.NoError(t, err)
	assert.Nil(t, o.CompletedAt)

	_, err = o.Transition(StatusCompleted, t0.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, o.CompletedAt)
	assert.Equal(t, t0.Add(time.Minute), *o.CompletedAt)

	_, err = o.Transition(StatusCompleted, t0.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, t0.Add(time.Minute), *o.CompletedAt)
	assert.Equal(t, t0.Add(time.Minute), o.UpdatedAt)
}

func TestTransitionCancelRestoresStock(t *testing.T) {
	o := &Order{
		Status: StatusInProgress,
		Items: []LineItem{
			{ProductID: "a", Quantity: 2},
			{ProductID: "b", Quantity: 1},
			{ProductID: "a", Quantity: 3},
		},
	}

	adj, err := o.Transition(StatusCancelled, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []StockAdjustment{{ProductID: "a", Delta: 5}, {ProductID: "b", Delta: 1}}, adj)
	assert.Equal(t, []StockAdjustment{{ProductID: "a", Delta: -5}, {ProductID: "b", Delta: -1}}, o.Reservations())

	adj, err = o.Transition(StatusCancelled, time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, adj)
}

func TestAdjustmentsSortedByProduct(t *testing.T) {
	o := &Order{
		Status: StatusPending,
		Items: []LineItem{
			{ProductID: "p-y", Quantity: 1},
			{ProductID: "p-x", Quantity: 2},
			{ProductID: "p-y", Quantity: 4},
		},
	}
	assert.Equal(t, []StockAdjustment{{ProductID: "p-x", Delta: -2}, {ProductID: "p-y", Delta: -5}}, o.Reservations())

	adj, err := o.Transition(StatusCancelled, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []StockAdjustment{{ProductID: "p-x", Delta: 2}, {ProductID: "p-y", Delta: 5}}, adj)

	unsorted := []StockAdjustment{{ProductID: "c"}, {ProductID: "a"}, {ProductID: "b"}}
	SortAdjustments(unsorted)
	assert.Equal(t, []StockAdjustment{{ProductID: "a"}, {ProductID: "b"}, {ProductID: "c"}}, unsorted)
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	o := &Order{Status: StatusPending}
	_, err := o.Transition(Status("Ready"), time.Now())
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, StatusPending, o.Status)
}

func TestErrorKinds(t *testing.T) {
	err := Errorf(KindInsufficientStock, "insufficient stock for %s", "Latte")
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.NotErrorIs(t, err, ErrInvalidOption)
	assert.Equal(t, KindInsufficientStock, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(ErrDuplicateOrderNumber))
	assert.Equal(t, "insufficient stock for Latte", err.Error())
}
