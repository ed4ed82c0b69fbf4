// Package repository implements MySQL persistence for the reservation
// service.  Shared sentinel errors live here so handlers can answer 404
// without inspecting sql.ErrNoRows everywhere.
package repository

import "errors"

// ErrRoomNotFound is returned when a referenced room does not exist.
var ErrRoomNotFound = errors.New("room not found")

// ErrReservationNotFound is returned when a referenced reservation does not exist.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrIncidentNotFound is returned when a referenced incident does not exist.
var ErrIncidentNotFound = errors.New("incident not found")

// ErrNotificationNotFound is returned when a notification does not exist or
// belongs to a different user.
var ErrNotificationNotFound = errors.New("notification not found")
