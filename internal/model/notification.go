package model

import "time"

// Notification is a persisted message for a user, created as a side effect
// of booking, approval and cancellation events.  The booking engine only
// ever inserts notifications; reads and the is_read toggle belong to the
// recipient.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – recipient of the notification.
//  Type      – event kind (e.g. RESERVATION_CREATED, RESERVATION_APPROVED).
//  Title     – short human-readable title.
//  Message   – full message body.
//  Data      – JSON payload with structured event details (nullable).
//  IsRead    – whether the recipient has read the notification.
//  CreatedAt – creation timestamp.
type Notification struct {
	ID        uint64    // notifications.id
	UserID    uint64    // notifications.user_id
	Type      string    // notifications.type
	Title     string    // notifications.title
	Message   string    // notifications.message
	Data      *string   // notifications.data (nullable JSON)
	IsRead    bool      // notifications.is_read
	CreatedAt time.Time // notifications.created_at
}

// Notification event types emitted by the booking and approval flows.
const (
	NotifyReservationCreated   = "RESERVATION_CREATED"
	NotifyReservationApproved  = "RESERVATION_APPROVED"
	NotifyReservationRejected  = "RESERVATION_REJECTED"
	NotifyReservationCancelled = "RESERVATION_CANCELLED"
	NotifyIncidentReported     = "INCIDENT_REPORTED"
	NotifyIncidentAssigned     = "INCIDENT_ASSIGNED"
)
