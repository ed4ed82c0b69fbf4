package model

import "time"

// Reservation records one occurrence of a booking for a room.  A
// non-recurring request produces a single row; a recurring request produces
// one row per occurrence, linked as a set: the first-created occurrence is
// the anchor (ParentReservationID nil) and every sibling points back at it,
// while all rows share one RecurringTemplateID.
//
// Times form a half-open interval [StartTime, EndTime); a reservation ending
// exactly when another begins does not conflict with it.
//
// Fields:
//  ID                   – primary key identifier.
//  UserID               – user who owns the reservation.
//  RoomID               – room being reserved.
//  StartTime            – inclusive start of the interval (UTC).
//  EndTime              – exclusive end of the interval (UTC).
//  Purpose              – optional free-text purpose.
//  Status               – PENDING, ACTIVE, APPROVED, REJECTED, CANCELLED or COMPLETED.
//  IsRecurring          – whether the row belongs to a recurring set.
//  RecurringPattern     – DAILY, WEEKLY or MONTHLY (nil for single bookings).
//  RecurringDaysOfWeek  – comma-joined weekday numbers 0–6, WEEKLY only (nil otherwise).
//  RecurringEndDate     – inclusive last date an occurrence may start on (nil for single bookings).
//  ParentReservationID  – anchor back-reference (nil on the anchor itself).
//  RecurringTemplateID  – UUID grouping all occurrences of one submission (nil for single bookings).
//  CreatedAt            – creation timestamp.
//  UpdatedAt            – last update timestamp.
type Reservation struct {
	ID                  uint64     // reservations.id
	UserID              uint64     // reservations.user_id
	RoomID              uint64     // reservations.room_id
	StartTime           time.Time  // reservations.start_time
	EndTime             time.Time  // reservations.end_time
	Purpose             *string    // reservations.purpose (nullable)
	Status              string     // reservations.status
	IsRecurring         bool       // reservations.is_recurring
	RecurringPattern    *string    // reservations.recurring_pattern (nullable)
	RecurringDaysOfWeek *string    // reservations.recurring_days_of_week (nullable)
	RecurringEndDate    *time.Time // reservations.recurring_end_date (nullable)
	ParentReservationID *uint64    // reservations.parent_reservation_id (nullable)
	RecurringTemplateID *string    // reservations.recurring_template_id (nullable)
	CreatedAt           time.Time  // reservations.created_at
	UpdatedAt           time.Time  // reservations.updated_at
}
