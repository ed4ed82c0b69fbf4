package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	legal := []struct{ from, to string }{
		{StatusPending, StatusApproved},
		{StatusPending, StatusRejected},
		{StatusActive, StatusCancelled},
		{StatusApproved, StatusCancelled},
		{StatusPending, StatusCompleted},
	}
	for _, tc := range legal {
		assert.NoError(t, Transition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	illegal := []struct{ from, to string }{
		{StatusApproved, StatusApproved},
		{StatusApproved, StatusRejected},
		{StatusRejected, StatusApproved},
		{StatusCancelled, StatusActive},
		{StatusCompleted, StatusCancelled},
		{StatusPending, StatusCancelled},
		{StatusActive, StatusApproved},
	}
	for _, tc := range illegal {
		assert.ErrorIs(t, Transition(tc.from, tc.to), ErrIllegalTransition, "%s -> %s", tc.from, tc.to)
	}
}

func TestBlocks(t *testing.T) {
	assert.True(t, Blocks(StatusPending))
	assert.True(t, Blocks(StatusActive))
	assert.True(t, Blocks(StatusApproved))
	assert.False(t, Blocks(StatusRejected))
	assert.False(t, Blocks(StatusCancelled))
	assert.False(t, Blocks(StatusCompleted))
}

func TestEffectiveStatus(t *testing.T) {
	now := date("2024-01-15T12:00:00Z")
	past := date("2024-01-15T11:00:00Z")
	future := date("2024-01-15T13:00:00Z")

	assert.Equal(t, StatusCompleted, EffectiveStatus(StatusActive, past, now))
	assert.Equal(t, StatusCompleted, EffectiveStatus(StatusActive, now, now), "end == now has elapsed")
	assert.Equal(t, StatusActive, EffectiveStatus(StatusActive, future, now))
	// Terminal statuses are never rewritten.
	assert.Equal(t, StatusCancelled, EffectiveStatus(StatusCancelled, past, now))
	assert.Equal(t, StatusRejected, EffectiveStatus(StatusRejected, past, now))
}

func TestDeriveRoomStatus(t *testing.T) {
	now := date("2024-01-15T12:00:00Z")

	assert.Equal(t, RoomFree, DeriveRoomStatus(now, nil))

	covering := Slot{Status: StatusActive, Start: date("2024-01-15T11:00:00Z"), End: date("2024-01-15T13:00:00Z")}
	upcoming := Slot{Status: StatusApproved, Start: date("2024-01-15T15:00:00Z"), End: date("2024-01-15T16:00:00Z")}
	elapsed := Slot{Status: StatusApproved, Start: date("2024-01-15T08:00:00Z"), End: date("2024-01-15T09:00:00Z")}
	pending := Slot{Status: StatusPending, Start: date("2024-01-15T11:00:00Z"), End: date("2024-01-15T13:00:00Z")}

	assert.Equal(t, RoomInUse, DeriveRoomStatus(now, []Slot{covering}))
	assert.Equal(t, RoomInUse, DeriveRoomStatus(now, []Slot{upcoming, covering}), "in-use wins over reserved")
	assert.Equal(t, RoomReserved, DeriveRoomStatus(now, []Slot{upcoming}))
	assert.Equal(t, RoomFree, DeriveRoomStatus(now, []Slot{elapsed}))
	assert.Equal(t, RoomFree, DeriveRoomStatus(now, []Slot{pending}), "pending requests do not surface in room status")

	// Cancelling the covering reservation while another only covers later
	// leaves the room RESERVED, not IN_USE.
	assert.Equal(t, RoomReserved, DeriveRoomStatus(now, []Slot{upcoming, elapsed}))
}
