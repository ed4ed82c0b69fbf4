package model

import "time"

// Room represents a bookable room as stored in the `rooms` table.  The
// Status column is a cache derived from the room's reservation set; it is
// kept in sync by the booking and approval flows but is never consulted for
// conflict checking, which always works from reservation intervals.
//
// Fields:
//  ID          – primary key identifier.
//  Name        – unique room name.
//  Description – optional description of the room.
//  Capacity    – seating capacity (nil if unspecified).
//  Status      – cached status (FREE, IN_USE, RESERVED).
//  IsActive    – whether the room can accept new reservations.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Room struct {
	ID          uint64    // rooms.id
	Name        string    // rooms.name
	Description *string   // rooms.description (nullable)
	Capacity    *uint32   // rooms.capacity (nullable)
	Status      string    // rooms.status
	IsActive    bool      // rooms.is_active
	CreatedAt   time.Time // rooms.created_at
	UpdatedAt   time.Time // rooms.updated_at
}
