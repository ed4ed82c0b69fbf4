package handler

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/booking"
	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/repository"
	"github.com/iliyamo/room-reservation/internal/service"
)

// ReservationHandler implements the booking flow: validation, recurrence
// expansion, conflict checking and atomic persistence of the occurrence set,
// all under a per-room row lock.
type ReservationHandler struct {
	Reservations *repository.ReservationRepo
	Rooms        *repository.RoomRepo
	Users        *repository.UserRepo
	Notifier     *service.Notifier
}

func NewReservationHandler(
	reservations *repository.ReservationRepo,
	rooms *repository.RoomRepo,
	users *repository.UserRepo,
	notifier *service.Notifier,
) *ReservationHandler {
	return &ReservationHandler{Reservations: reservations, Rooms: rooms, Users: users, Notifier: notifier}
}

type recurrenceReq struct {
	Pattern    string `json:"pattern"`
	DaysOfWeek []int  `json:"days_of_week"`
	EndDate    string `json:"end_date"` // YYYY-MM-DD
}

type createReservationReq struct {
	RoomID     uint64         `json:"room_id"`
	StartTime  time.Time      `json:"start_time"`
	EndTime    time.Time      `json:"end_time"`
	Purpose    *string        `json:"purpose"`
	Recurrence *recurrenceReq `json:"recurrence"`
}

type reservationView struct {
	ID                  uint64     `json:"id"`
	UserID              uint64     `json:"user_id"`
	RoomID              uint64     `json:"room_id"`
	StartTime           time.Time  `json:"start_time"`
	EndTime             time.Time  `json:"end_time"`
	Purpose             *string    `json:"purpose,omitempty"`
	Status              string     `json:"status"`
	IsRecurring         bool       `json:"is_recurring"`
	RecurringPattern    *string    `json:"recurring_pattern,omitempty"`
	RecurringDaysOfWeek []int      `json:"recurring_days_of_week,omitempty"`
	RecurringEndDate    *string    `json:"recurring_end_date,omitempty"`
	ParentReservationID *uint64    `json:"parent_reservation_id,omitempty"`
	RecurringTemplateID *string    `json:"recurring_template_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// toReservationView maps a row to its response shape.  The status is the
// effective one: blocking reservations whose interval has elapsed read as
// COMPLETED without waiting for a sweep.
func toReservationView(res model.Reservation, now time.Time) reservationView {
	v := reservationView{
		ID:                  res.ID,
		UserID:              res.UserID,
		RoomID:              res.RoomID,
		StartTime:           res.StartTime,
		EndTime:             res.EndTime,
		Purpose:             res.Purpose,
		Status:              booking.EffectiveStatus(res.Status, res.EndTime, now),
		IsRecurring:         res.IsRecurring,
		RecurringPattern:    res.RecurringPattern,
		ParentReservationID: res.ParentReservationID,
		RecurringTemplateID: res.RecurringTemplateID,
		CreatedAt:           res.CreatedAt,
		UpdatedAt:           res.UpdatedAt,
	}
	if res.RecurringDaysOfWeek != nil {
		v.RecurringDaysOfWeek = splitWeekdays(*res.RecurringDaysOfWeek)
	}
	if res.RecurringEndDate != nil {
		d := res.RecurringEndDate.Format(time.DateOnly)
		v.RecurringEndDate = &d
	}
	return v
}

func splitWeekdays(joined string) []int {
	parts := strings.Split(joined, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func joinWeekdays(days []time.Weekday) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

// parseRecurrence validates the request's recurrence block.
func parseRecurrence(req *recurrenceReq) (booking.RecurrenceSpec, error) {
	pattern, ok := booking.ParsePattern(strings.ToUpper(strings.TrimSpace(req.Pattern)))
	if !ok {
		return booking.RecurrenceSpec{}, fmt.Errorf("unknown recurrence pattern %q", req.Pattern)
	}
	endDate, err := time.ParseInLocation(time.DateOnly, req.EndDate, time.UTC)
	if err != nil {
		return booking.RecurrenceSpec{}, fmt.Errorf("end_date must be YYYY-MM-DD")
	}
	days := make([]time.Weekday, 0, len(req.DaysOfWeek))
	for _, d := range req.DaysOfWeek {
		if d < 0 || d > 6 {
			return booking.RecurrenceSpec{}, fmt.Errorf("days_of_week values must be 0-6")
		}
		days = append(days, time.Weekday(d))
	}
	return booking.RecurrenceSpec{Pattern: pattern, DaysOfWeek: days, EndDate: endDate}, nil
}

// Create books a room.  The whole occurrence set is checked and persisted
// under the room's row lock: it either fully succeeds or fails with the
// complete conflict list, never partially.
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.RoomID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "room_id required"})
	}
	base := booking.Interval{Start: req.StartTime.UTC(), End: req.EndTime.UTC()}
	if req.StartTime.IsZero() || req.EndTime.IsZero() || !base.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_time must be before end_time"})
	}

	occurrences := []booking.Interval{base}
	var spec booking.RecurrenceSpec
	if req.Recurrence != nil {
		var err error
		spec, err = parseRecurrence(req.Recurrence)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		occurrences, err = booking.Expand(base, spec)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		if len(occurrences) == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "recurrence produces no occurrences"})
		}
	}

	// A recurring request must not collide with itself, e.g. a DAILY
	// pattern whose base interval spans more than a day.
	if intra := booking.IntraBatchConflicts(occurrences); len(intra) > 0 {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     "recurring request conflicts with itself",
			"conflicts": intra,
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	tx, err := h.Reservations.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "begin transaction failed"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// The room row lock serializes concurrent bookings on this room for
	// the whole check-then-write span.
	room, err := h.Rooms.GetByIDForUpdateTx(ctx, tx, req.RoomID)
	if err != nil {
		if err == repository.ErrRoomNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load room failed"})
	}
	if !room.IsActive {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "room is not active"})
	}

	conflicts, err := h.Reservations.FindConflictsTx(ctx, tx, room.ID, occurrences, 0)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "conflict check failed"})
	}
	if len(conflicts) > 0 {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     "requested time conflicts with existing reservations",
			"conflicts": conflicts,
		})
	}

	// Member bookings wait for an administrator; admin bookings are live
	// immediately.
	status := booking.StatusPending
	if isAdmin(c) {
		status = booking.StatusActive
	}

	rows := make([]*model.Reservation, len(occurrences))
	recurring := req.Recurrence != nil
	var patternStr, daysStr, templateID *string
	var endDate *time.Time
	if recurring {
		p := string(spec.Pattern)
		patternStr = &p
		if spec.Pattern == booking.PatternWeekly {
			d := joinWeekdays(spec.DaysOfWeek)
			daysStr = &d
		}
		ed := spec.EndDate
		endDate = &ed
		tid := uuid.NewString()
		templateID = &tid
	}
	for i, occ := range occurrences {
		rows[i] = &model.Reservation{
			UserID:              userID,
			RoomID:              room.ID,
			StartTime:           occ.Start,
			EndTime:             occ.End,
			Purpose:             req.Purpose,
			Status:              status,
			IsRecurring:         recurring,
			RecurringPattern:    patternStr,
			RecurringDaysOfWeek: daysStr,
			RecurringEndDate:    endDate,
			RecurringTemplateID: templateID,
		}
	}
	if err := h.Reservations.CreateBatchTx(ctx, tx, rows); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create reservation failed"})
	}

	now := time.Now().UTC()
	if err := syncRoomStatusTx(ctx, tx, h.Reservations, h.Rooms, room.ID, now); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sync room status failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	h.notifyAdminsCreated(ctx, c, rows[0], room, len(rows))

	views := make([]reservationView, len(rows))
	for i, res := range rows {
		views[i] = toReservationView(*res, now)
	}
	return c.JSON(http.StatusCreated, echo.Map{"reservations": views})
}

// syncRoomStatusTx recomputes the cached room status from the reservation
// set inside the caller's transaction.  Every flow that mutates reservations
// runs this before committing so the cache never drifts.
func syncRoomStatusTx(ctx context.Context, tx *sql.Tx, reservations *repository.ReservationRepo, rooms *repository.RoomRepo, roomID uint64, now time.Time) error {
	slots, err := reservations.BlockingSlotsTx(ctx, tx, roomID, now)
	if err != nil {
		return err
	}
	return rooms.UpdateStatusTx(ctx, tx, roomID, booking.DeriveRoomStatus(now, slots))
}

// notifyAdminsCreated fans the creation event out to every administrator.
// Requests from members read as approval requests; admin bookings read as
// confirmed bookings.
func (h *ReservationHandler) notifyAdminsCreated(ctx context.Context, c echo.Context, anchor *model.Reservation, room model.Room, count int) {
	adminIDs, err := h.Users.ListAdminIDs(ctx)
	if err != nil || len(adminIDs) == 0 {
		return
	}
	title := "New reservation request"
	message := fmt.Sprintf("A reservation request for room %q (%s - %s) is waiting for approval.",
		room.Name, anchor.StartTime.Format(time.RFC3339), anchor.EndTime.Format(time.RFC3339))
	if anchor.Status == booking.StatusActive {
		title = "New booking"
		message = fmt.Sprintf("Room %q was booked for %s - %s.",
			room.Name, anchor.StartTime.Format(time.RFC3339), anchor.EndTime.Format(time.RFC3339))
	}
	if count > 1 {
		message += fmt.Sprintf(" The request repeats for %d occurrences.", count)
	}
	data := map[string]any{
		"reservation_id": anchor.ID,
		"room_id":        room.ID,
		"user_id":        anchor.UserID,
		"occurrences":    count,
	}
	if anchor.RecurringTemplateID != nil {
		data["recurring_template_id"] = *anchor.RecurringTemplateID
	}
	h.Notifier.TryEmitAll(ctx, adminIDs, model.NotifyReservationCreated, title, message, data)
}

// List returns reservations matching the query filters (admin only; members
// use /my-reservations).  No side effects.
func (h *ReservationHandler) List(c echo.Context) error {
	var f repository.ReservationFilter
	if s := c.QueryParam("room_id"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room_id"})
		}
		f.RoomID = n
	}
	if s := c.QueryParam("user_id"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user_id"})
		}
		f.UserID = n
	}
	f.Status = strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	list, err := h.Reservations.List(ctx, f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list reservations failed"})
	}
	now := time.Now().UTC()
	views := make([]reservationView, 0, len(list))
	for _, res := range list {
		views = append(views, toReservationView(res, now))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": views})
}

// Mine returns the caller's reservations.
func (h *ReservationHandler) Mine(c echo.Context) error {
	userID, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	list, err := h.Reservations.List(ctx, repository.ReservationFilter{UserID: userID})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list reservations failed"})
	}
	now := time.Now().UTC()
	views := make([]reservationView, 0, len(list))
	for _, res := range list {
		views = append(views, toReservationView(res, now))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": views})
}

// Get returns one reservation, visible to its owner and to admins.
func (h *ReservationHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	userID, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	res, err := h.Reservations.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrReservationNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load reservation failed"})
	}
	// Non-owners get the same 404 as a missing row so the endpoint does
	// not reveal which ids exist.
	if res.UserID != userID && !isAdmin(c) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}
	return c.JSON(http.StatusOK, toReservationView(res, time.Now().UTC()))
}
