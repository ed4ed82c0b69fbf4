// Package queue defines message payloads exchanged over the message broker.
package queue

// NotificationEvent is published whenever the booking or approval flow emits
// a notification.  It mirrors the persisted notification row closely enough
// for downstream consumers (push gateways, audit logs, analytics) to act
// without querying the primary database.
type NotificationEvent struct {
	NotificationID uint64 `json:"notification_id"`
	RecipientID    uint64 `json:"recipient_id"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	Message        string `json:"message"`
	Data           string `json:"data,omitempty"`
	EmittedAt      string `json:"emitted_at"`
}
