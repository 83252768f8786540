package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo_ForwardSteps(t *testing.T) {
	assert.True(t, CanTransitionTo(StatusPending, StatusConfirmed))
	assert.True(t, CanTransitionTo(StatusConfirmed, StatusProcessing))
	assert.True(t, CanTransitionTo(StatusProcessing, StatusShipped))
	assert.True(t, CanTransitionTo(StatusShipped, StatusDelivered))
}

func TestCanTransitionTo_ForwardJumpAllowed(t *testing.T) {
	// Intermediate states are informational; skipping ahead is legal.
	assert.True(t, CanTransitionTo(StatusPending, StatusDelivered))
	assert.True(t, CanTransitionTo(StatusConfirmed, StatusShipped))
}

func TestCanTransitionTo_BackwardRejected(t *testing.T) {
	assert.False(t, CanTransitionTo(StatusDelivered, StatusPending))
	assert.False(t, CanTransitionTo(StatusDelivered, StatusProcessing))
	assert.False(t, CanTransitionTo(StatusShipped, StatusConfirmed))
	assert.False(t, CanTransitionTo(StatusConfirmed, StatusConfirmed))
}

func TestCanTransitionTo_CancelFromAnyNonTerminal(t *testing.T) {
	assert.True(t, CanTransitionTo(StatusPending, StatusCancelled))
	assert.True(t, CanTransitionTo(StatusConfirmed, StatusCancelled))
	assert.True(t, CanTransitionTo(StatusProcessing, StatusCancelled))
	assert.True(t, CanTransitionTo(StatusShipped, StatusCancelled))
}

func TestCanTransitionTo_TerminalStatesAreFinal(t *testing.T) {
	assert.False(t, CanTransitionTo(StatusCancelled, StatusPending))
	assert.False(t, CanTransitionTo(StatusCancelled, StatusCancelled))
	assert.False(t, CanTransitionTo(StatusDelivered, StatusCancelled))
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusCancelled.Valid())
	assert.False(t, OrderStatus("returned").Valid())
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusDelivered.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusShipped.IsTerminal())
}
