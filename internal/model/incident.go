package model

import "time"

// Incident tracks an equipment or room problem through its status workflow
// (REPORTED, IN_ANALYSIS, IN_PROGRESS, RESOLVED, CANCELLED).  Exactly one of
// RoomID/ItemID is set.  Status changes are appended to the
// incident_status_history table, never rewritten.
//
// Fields:
//  ID                      – primary key identifier.
//  Title                   – short summary of the problem.
//  Description             – full description.
//  Priority                – LOW, MEDIUM, HIGH or CRITICAL.
//  Status                  – current workflow status.
//  Category                – free-form category label.
//  ReportedByID            – user who reported the incident.
//  AssignedToID            – user assigned to resolve it (nullable).
//  RoomID                  – affected room (nullable, mutually exclusive with ItemID).
//  ItemID                  – affected equipment item (nullable).
//  EstimatedResolutionTime – expected resolution timestamp (nullable).
//  ActualResolutionTime    – actual resolution timestamp (nullable).
//  ResolutionNotes         – notes recorded on resolution (nullable).
//  CreatedAt               – creation timestamp.
//  UpdatedAt               – last update timestamp.
type Incident struct {
	ID                      uint64     // incidents.id
	Title                   string     // incidents.title
	Description             string     // incidents.description
	Priority                string     // incidents.priority
	Status                  string     // incidents.status
	Category                string     // incidents.category
	ReportedByID            uint64     // incidents.reported_by_id
	AssignedToID            *uint64    // incidents.assigned_to_id (nullable)
	RoomID                  *uint64    // incidents.room_id (nullable)
	ItemID                  *uint64    // incidents.item_id (nullable)
	EstimatedResolutionTime *time.Time // incidents.estimated_resolution_time (nullable)
	ActualResolutionTime    *time.Time // incidents.actual_resolution_time (nullable)
	ResolutionNotes         *string    // incidents.resolution_notes (nullable)
	CreatedAt               time.Time  // incidents.created_at
	UpdatedAt               time.Time  // incidents.updated_at
}

// Incident workflow statuses.
const (
	IncidentReported   = "REPORTED"
	IncidentInAnalysis = "IN_ANALYSIS"
	IncidentInProgress = "IN_PROGRESS"
	IncidentResolved   = "RESOLVED"
	IncidentCancelled  = "CANCELLED"
)

// IncidentStatusChange is one append-only entry in an incident's history.
//
// Fields:
//  ID          – primary key identifier.
//  IncidentID  – incident the entry belongs to.
//  FromStatus  – status before the change (empty on creation).
//  ToStatus    – status after the change.
//  ChangedByID – user who performed the change.
//  Note        – optional note (nullable).
//  CreatedAt   – when the change happened.
type IncidentStatusChange struct {
	ID          uint64    // incident_status_history.id
	IncidentID  uint64    // incident_status_history.incident_id
	FromStatus  string    // incident_status_history.from_status
	ToStatus    string    // incident_status_history.to_status
	ChangedByID uint64    // incident_status_history.changed_by_id
	Note        *string   // incident_status_history.note (nullable)
	CreatedAt   time.Time // incident_status_history.created_at
}
