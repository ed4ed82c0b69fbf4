package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/repository"
	"github.com/iliyamo/room-reservation/internal/service"
)

// IncidentHandler implements incident reporting and the status workflow.
// PATCH uses a declarative per-role writable-field table: fields the caller
// may not touch are skipped and reported back as warnings instead of failing
// the whole request.
type IncidentHandler struct {
	Incidents *repository.IncidentRepo
	Rooms     *repository.RoomRepo
	Users     *repository.UserRepo
	Notifier  *service.Notifier
}

func NewIncidentHandler(
	incidents *repository.IncidentRepo,
	rooms *repository.RoomRepo,
	users *repository.UserRepo,
	notifier *service.Notifier,
) *IncidentHandler {
	return &IncidentHandler{Incidents: incidents, Rooms: rooms, Users: users, Notifier: notifier}
}

var incidentPriorities = map[string]bool{
	"LOW": true, "MEDIUM": true, "HIGH": true, "CRITICAL": true,
}

// incidentTransitions is the legal status workflow.  RESOLVED and CANCELLED
// are terminal.
var incidentTransitions = map[string][]string{
	model.IncidentReported:   {model.IncidentInAnalysis, model.IncidentInProgress, model.IncidentCancelled},
	model.IncidentInAnalysis: {model.IncidentInProgress, model.IncidentCancelled},
	model.IncidentInProgress: {model.IncidentResolved, model.IncidentCancelled},
}

func incidentCanTransition(from, to string) bool {
	for _, t := range incidentTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// incidentWritable maps caller relationship to the PATCH fields it may
// write.  Admins edit everything; reporters fix the description side;
// assignees drive the workflow.  A caller holding several relationships
// gets the union.
var incidentWritable = map[string][]string{
	"admin": {"title", "description", "priority", "category", "status",
		"assigned_to_id", "estimated_resolution_time", "actual_resolution_time", "resolution_notes"},
	"reporter": {"title", "description", "priority", "category"},
	"assignee": {"status", "estimated_resolution_time", "actual_resolution_time", "resolution_notes"},
}

func writableFields(admin, reporter, assignee bool) map[string]bool {
	out := map[string]bool{}
	add := func(rel string) {
		for _, f := range incidentWritable[rel] {
			out[f] = true
		}
	}
	if admin {
		add("admin")
	}
	if reporter {
		add("reporter")
	}
	if assignee {
		add("assignee")
	}
	return out
}

type incidentView struct {
	ID                      uint64     `json:"id"`
	Title                   string     `json:"title"`
	Description             string     `json:"description"`
	Priority                string     `json:"priority"`
	Status                  string     `json:"status"`
	Category                string     `json:"category"`
	ReportedByID            uint64     `json:"reported_by_id"`
	AssignedToID            *uint64    `json:"assigned_to_id,omitempty"`
	RoomID                  *uint64    `json:"room_id,omitempty"`
	ItemID                  *uint64    `json:"item_id,omitempty"`
	EstimatedResolutionTime *time.Time `json:"estimated_resolution_time,omitempty"`
	ActualResolutionTime    *time.Time `json:"actual_resolution_time,omitempty"`
	ResolutionNotes         *string    `json:"resolution_notes,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

func toIncidentView(in model.Incident) incidentView {
	return incidentView{
		ID:                      in.ID,
		Title:                   in.Title,
		Description:             in.Description,
		Priority:                in.Priority,
		Status:                  in.Status,
		Category:                in.Category,
		ReportedByID:            in.ReportedByID,
		AssignedToID:            in.AssignedToID,
		RoomID:                  in.RoomID,
		ItemID:                  in.ItemID,
		EstimatedResolutionTime: in.EstimatedResolutionTime,
		ActualResolutionTime:    in.ActualResolutionTime,
		ResolutionNotes:         in.ResolutionNotes,
		CreatedAt:               in.CreatedAt,
		UpdatedAt:               in.UpdatedAt,
	}
}

type historyView struct {
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	ChangedBy  uint64    `json:"changed_by_id"`
	Note       *string   `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type createIncidentReq struct {
	Title                   string     `json:"title"`
	Description             string     `json:"description"`
	Priority                string     `json:"priority"`
	Category                string     `json:"category"`
	RoomID                  *uint64    `json:"room_id"`
	ItemID                  *uint64    `json:"item_id"`
	EstimatedResolutionTime *time.Time `json:"estimated_resolution_time"`
}

// Create reports a new incident.  Exactly one of room_id/item_id must be
// set; the incident starts REPORTED and the admins are notified.
func (h *IncidentHandler) Create(c echo.Context) error {
	userID, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createIncidentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Title == "" || req.Description == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and description required"})
	}
	if (req.RoomID == nil) == (req.ItemID == nil) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "exactly one of room_id or item_id required"})
	}
	priority := strings.ToUpper(strings.TrimSpace(req.Priority))
	if priority == "" {
		priority = "MEDIUM"
	}
	if !incidentPriorities[priority] {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "priority must be LOW, MEDIUM, HIGH or CRITICAL"})
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = "GENERAL"
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if req.RoomID != nil {
		if _, err := h.Rooms.GetByID(ctx, *req.RoomID); err != nil {
			if err == repository.ErrRoomNotFound {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load room failed"})
		}
	}

	in := model.Incident{
		Title:                   req.Title,
		Description:             req.Description,
		Priority:                priority,
		Category:                category,
		ReportedByID:            userID,
		RoomID:                  req.RoomID,
		ItemID:                  req.ItemID,
		EstimatedResolutionTime: req.EstimatedResolutionTime,
	}
	if err := h.Incidents.Create(ctx, &in); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create incident failed"})
	}

	if adminIDs, err := h.Users.ListAdminIDs(ctx); err == nil && len(adminIDs) > 0 {
		h.Notifier.TryEmitAll(ctx, adminIDs, model.NotifyIncidentReported,
			"New incident reported",
			fmt.Sprintf("Incident %q (%s) was reported.", in.Title, priority),
			map[string]any{"incident_id": in.ID, "priority": priority})
	}

	created, err := h.Incidents.GetByID(ctx, in.ID)
	if err != nil {
		created = in
	}
	return c.JSON(http.StatusCreated, toIncidentView(created))
}

// List returns incidents filtered by ?status, ?assigned_to and ?room_id.
func (h *IncidentHandler) List(c echo.Context) error {
	var f repository.IncidentFilter
	f.Status = strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))
	if s := c.QueryParam("assigned_to"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid assigned_to"})
		}
		f.AssignedToID = n
	}
	if s := c.QueryParam("room_id"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room_id"})
		}
		f.RoomID = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	list, err := h.Incidents.List(ctx, f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list incidents failed"})
	}
	views := make([]incidentView, 0, len(list))
	for _, in := range list {
		views = append(views, toIncidentView(in))
	}
	return c.JSON(http.StatusOK, echo.Map{"incidents": views})
}

// Get returns one incident together with its append-only status history.
func (h *IncidentHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid incident id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	in, err := h.Incidents.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrIncidentNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "incident not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load incident failed"})
	}
	history, err := h.Incidents.History(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load history failed"})
	}
	hv := make([]historyView, 0, len(history))
	for _, entry := range history {
		hv = append(hv, historyView{
			FromStatus: entry.FromStatus,
			ToStatus:   entry.ToStatus,
			ChangedBy:  entry.ChangedByID,
			Note:       entry.Note,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"incident": toIncidentView(in), "status_history": hv})
}

// Patch edits an incident.  The write-set is the intersection of the body's
// fields with the caller's writable-field set; everything else lands in
// ignored_fields rather than failing the request.
func (h *IncidentHandler) Patch(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid incident id"})
	}
	userID, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body map[string]json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil || len(body) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	in, err := h.Incidents.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrIncidentNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "incident not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load incident failed"})
	}

	admin := isAdmin(c)
	reporter := in.ReportedByID == userID
	assignee := in.AssignedToID != nil && *in.AssignedToID == userID
	if !admin && !reporter && !assignee {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "incident not found"})
	}
	writable := writableFields(admin, reporter, assignee)

	prevStatus := in.Status
	var prevAssignee *uint64
	if in.AssignedToID != nil {
		v := *in.AssignedToID
		prevAssignee = &v
	}
	var note *string
	var ignored []string

	for field, raw := range body {
		if field == "note" {
			// Not an incident column: carried into the history entry.
			var s string
			if err := json.Unmarshal(raw, &s); err == nil && s != "" {
				note = &s
			}
			continue
		}
		if !writable[field] {
			ignored = append(ignored, field)
			continue
		}
		if err := applyIncidentField(&in, field, raw); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
	}

	if in.Status != prevStatus {
		if !incidentCanTransition(prevStatus, in.Status) {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error":  fmt.Sprintf("cannot move incident from %s to %s", prevStatus, in.Status),
				"status": prevStatus,
			})
		}
		if in.Status == model.IncidentResolved && in.ActualResolutionTime == nil {
			now := time.Now().UTC()
			in.ActualResolutionTime = &now
		}
	}

	if in.AssignedToID != nil && (prevAssignee == nil || *prevAssignee != *in.AssignedToID) {
		if _, err := h.Users.GetByID(ctx, *in.AssignedToID); err != nil {
			if err == sql.ErrNoRows {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "assigned_to_id: no such user"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
		}
	}

	if err := h.Incidents.Update(ctx, &in, prevStatus, userID, note); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update incident failed"})
	}

	if in.AssignedToID != nil && (prevAssignee == nil || *prevAssignee != *in.AssignedToID) {
		h.Notifier.TryEmit(ctx, *in.AssignedToID, model.NotifyIncidentAssigned,
			"Incident assigned to you",
			fmt.Sprintf("Incident %q was assigned to you.", in.Title),
			map[string]any{"incident_id": in.ID})
	}

	resp := echo.Map{"incident": toIncidentView(in)}
	if len(ignored) > 0 {
		resp["ignored_fields"] = ignored
	}
	return c.JSON(http.StatusOK, resp)
}

// applyIncidentField writes one validated PATCH field onto the record.
func applyIncidentField(in *model.Incident, field string, raw json.RawMessage) error {
	switch field {
	case "title":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
			return fmt.Errorf("title must be a non-empty string")
		}
		in.Title = strings.TrimSpace(s)
	case "description":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
			return fmt.Errorf("description must be a non-empty string")
		}
		in.Description = strings.TrimSpace(s)
	case "priority":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("priority must be a string")
		}
		s = strings.ToUpper(strings.TrimSpace(s))
		if !incidentPriorities[s] {
			return fmt.Errorf("priority must be LOW, MEDIUM, HIGH or CRITICAL")
		}
		in.Priority = s
	case "category":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
			return fmt.Errorf("category must be a non-empty string")
		}
		in.Category = strings.TrimSpace(s)
	case "status":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("status must be a string")
		}
		s = strings.ToUpper(strings.TrimSpace(s))
		switch s {
		case model.IncidentReported, model.IncidentInAnalysis, model.IncidentInProgress,
			model.IncidentResolved, model.IncidentCancelled:
			in.Status = s
		default:
			return fmt.Errorf("unknown incident status %q", s)
		}
	case "assigned_to_id":
		var v *uint64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("assigned_to_id must be a number or null")
		}
		in.AssignedToID = v
	case "estimated_resolution_time":
		var t *time.Time
		if err := json.Unmarshal(raw, &t); err != nil {
			return fmt.Errorf("estimated_resolution_time must be an RFC3339 timestamp or null")
		}
		in.EstimatedResolutionTime = t
	case "actual_resolution_time":
		var t *time.Time
		if err := json.Unmarshal(raw, &t); err != nil {
			return fmt.Errorf("actual_resolution_time must be an RFC3339 timestamp or null")
		}
		in.ActualResolutionTime = t
	case "resolution_notes":
		var s *string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("resolution_notes must be a string or null")
		}
		in.ResolutionNotes = s
	}
	return nil
}
