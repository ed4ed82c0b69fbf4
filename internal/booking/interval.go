// Package booking contains the pure scheduling logic of the reservation
// engine: half-open interval arithmetic, recurrence expansion and the
// reservation/room status rules.  Nothing in this package touches the
// database; repositories and handlers compose these functions.
package booking

import "time"

// Interval is a half-open time window [Start, End).  Using half-open
// semantics means a reservation ending at 11:00 never collides with one
// starting at 11:00, so back-to-back bookings are always allowed.
type Interval struct {
	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`
}

// Valid reports whether the interval has a positive duration.  Zero-length
// and inverted intervals are rejected during validation before any conflict
// checking happens.
func (iv Interval) Valid() bool {
	return iv.Start.Before(iv.End)
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether two half-open intervals intersect.  [s1,e1) and
// [s2,e2) overlap iff s1 < e2 && s2 < e1; touching boundaries (e1 == s2) do
// not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Conflict describes a collision between a requested occurrence and an
// already-persisted reservation.  Enough detail is included (the existing
// owner and interval) for the caller to adjust the request without another
// round trip.
type Conflict struct {
	RequestedStart time.Time `json:"requested_start"`
	RequestedEnd   time.Time `json:"requested_end"`
	ReservationID  uint64    `json:"reservation_id"`
	UserID         uint64    `json:"user_id"`
	Start          time.Time `json:"start_time"`
	End            time.Time `json:"end_time"`
}

// IntraBatchConflicts checks a batch of occurrences against each other.  A
// recurring request must not collide with itself (e.g. a DAILY pattern whose
// base interval spans more than 24 hours).  The returned conflicts reference
// the earlier occurrence in the batch with ReservationID zero.
func IntraBatchConflicts(occurrences []Interval) []Conflict {
	var conflicts []Conflict
	for i := 1; i < len(occurrences); i++ {
		for j := 0; j < i; j++ {
			if Overlaps(occurrences[i], occurrences[j]) {
				conflicts = append(conflicts, Conflict{
					RequestedStart: occurrences[i].Start,
					RequestedEnd:   occurrences[i].End,
					Start:          occurrences[j].Start,
					End:            occurrences[j].End,
				})
			}
		}
	}
	return conflicts
}
