package booking

import (
	"errors"
	"time"
)

// Reservation statuses.  PENDING is the initial state for bookings that
// require administrator approval; ACTIVE is the initial state for bookings
// that do not.  REJECTED, CANCELLED and COMPLETED are terminal.
const (
	StatusPending   = "PENDING"
	StatusActive    = "ACTIVE"
	StatusApproved  = "APPROVED"
	StatusRejected  = "REJECTED"
	StatusCancelled = "CANCELLED"
	StatusCompleted = "COMPLETED"
)

// Room statuses.  The stored room status is a cache derived from the
// reservation set; conflict checking never consults it.
const (
	RoomFree     = "FREE"
	RoomInUse    = "IN_USE"
	RoomReserved = "RESERVED"
)

// ErrIllegalTransition is returned when a status change violates the
// transition table.  Handlers map it to a 400 precondition failure, distinct
// from input validation errors.
var ErrIllegalTransition = errors.New("booking: illegal status transition")

// transitions lists the legal explicit status changes.  COMPLETED is listed
// for every non-terminal state because the completion sweep may stamp it,
// but it is normally derived at read time from the end timestamp.
var transitions = map[string][]string{
	StatusPending:  {StatusApproved, StatusRejected, StatusCompleted},
	StatusActive:   {StatusCancelled, StatusCompleted},
	StatusApproved: {StatusCancelled, StatusCompleted},
}

// CanTransition reports whether moving a reservation from one status to
// another is legal.
func CanTransition(from, to string) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Transition validates a status change, returning ErrIllegalTransition when
// the change is not in the table.  Approving or rejecting anything but a
// PENDING reservation fails here rather than silently no-opping.
func Transition(from, to string) error {
	if !CanTransition(from, to) {
		return ErrIllegalTransition
	}
	return nil
}

// Blocks reports whether a reservation in the given status occupies its
// interval for conflict purposes.  REJECTED, CANCELLED and COMPLETED
// reservations never block.
func Blocks(status string) bool {
	switch status {
	case StatusPending, StatusActive, StatusApproved:
		return true
	}
	return false
}

// EffectiveStatus derives the externally visible status of a reservation at
// a point in time.  A blocking reservation whose interval has fully elapsed
// reads as COMPLETED without requiring a background sweep; conflict checks
// are unaffected because an elapsed interval cannot overlap a future one.
func EffectiveStatus(status string, end, now time.Time) string {
	if Blocks(status) && !now.Before(end) {
		return StatusCompleted
	}
	return status
}

// Slot pairs an interval with the stored status of its reservation.  It is
// the input to room status derivation.
type Slot struct {
	Status string
	Start  time.Time
	End    time.Time
}

// DeriveRoomStatus recomputes a room's cached status from the authoritative
// reservation set.  The room is IN_USE while an ACTIVE or APPROVED
// reservation covers now, RESERVED when one is scheduled for later today or
// beyond, and FREE otherwise.  PENDING requests do not surface in the room
// status; they only block conflicting bookings.
func DeriveRoomStatus(now time.Time, slots []Slot) string {
	status := RoomFree
	for _, s := range slots {
		if s.Status != StatusActive && s.Status != StatusApproved {
			continue
		}
		if !now.Before(s.Start) && now.Before(s.End) {
			return RoomInUse
		}
		if s.Start.After(now) {
			status = RoomReserved
		}
	}
	return status
}
