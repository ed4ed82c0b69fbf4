package handler

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/booking"
	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/repository"
	"github.com/iliyamo/room-reservation/internal/service"
)

// ApprovalHandler drives the reservation status workflow: administrator
// approve/reject decisions, cancellation and deletion.  Every mutation runs
// under the owning room's row lock and recomputes the cached room status
// before committing.
type ApprovalHandler struct {
	Reservations *repository.ReservationRepo
	Rooms        *repository.RoomRepo
	Users        *repository.UserRepo
	Notifier     *service.Notifier
}

func NewApprovalHandler(
	reservations *repository.ReservationRepo,
	rooms *repository.RoomRepo,
	users *repository.UserRepo,
	notifier *service.Notifier,
) *ApprovalHandler {
	return &ApprovalHandler{Reservations: reservations, Rooms: rooms, Users: users, Notifier: notifier}
}

type approvalReq struct {
	Approved *bool   `json:"approved"`
	Reason   *string `json:"reason"`
}

// lockAndLoad opens the room lock and re-reads the reservation inside the
// transaction.  The first unlocked read only discovers the room id; the
// authoritative row is the one read after the lock is held.
func (h *ApprovalHandler) lockAndLoad(ctx context.Context, tx *sql.Tx, id uint64) (model.Reservation, error) {
	res, err := h.Reservations.GetByIDTx(ctx, tx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if _, err := h.Rooms.GetByIDForUpdateTx(ctx, tx, res.RoomID); err != nil {
		return model.Reservation{}, err
	}
	return h.Reservations.GetByIDTx(ctx, tx, id)
}

// Decide approves or rejects a PENDING reservation (admin only).  Deciding
// anything else is a precondition failure, including reservations whose
// interval has already elapsed and therefore read as COMPLETED.
func (h *ApprovalHandler) Decide(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var req approvalReq
	if err := c.Bind(&req); err != nil || req.Approved == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "approved (boolean) required"})
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

	res, err := h.lockAndLoad(ctx, tx, id)
	if err != nil {
		if err == repository.ErrReservationNotFound || err == repository.ErrRoomNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load reservation failed"})
	}

	now := time.Now().UTC()
	to := booking.StatusApproved
	if !*req.Approved {
		to = booking.StatusRejected
	}
	from := booking.EffectiveStatus(res.Status, res.EndTime, now)
	if err := booking.Transition(from, to); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":  "only pending reservations can be approved or rejected",
			"status": from,
		})
	}

	if err := h.Reservations.UpdateStatusTx(ctx, tx, id, to); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update status failed"})
	}
	if err := syncRoomStatusTx(ctx, tx, h.Reservations, h.Rooms, res.RoomID, now); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sync room status failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	res.Status = to
	h.notifyDecision(ctx, res, *req.Approved, req.Reason)
	return c.JSON(http.StatusOK, toReservationView(res, now))
}

func (h *ApprovalHandler) notifyDecision(ctx context.Context, res model.Reservation, approved bool, reason *string) {
	data := map[string]any{
		"reservation_id": res.ID,
		"room_id":        res.RoomID,
		"start_time":     res.StartTime.Format(time.RFC3339),
		"end_time":       res.EndTime.Format(time.RFC3339),
	}
	if approved {
		h.Notifier.TryEmit(ctx, res.UserID, model.NotifyReservationApproved,
			"Reservation approved",
			fmt.Sprintf("Your reservation for %s was approved.", res.StartTime.Format(time.RFC3339)),
			data)
		return
	}
	msg := fmt.Sprintf("Your reservation for %s was rejected.", res.StartTime.Format(time.RFC3339))
	if reason != nil && *reason != "" {
		msg += " Reason: " + *reason
		data["reason"] = *reason
	}
	h.Notifier.TryEmit(ctx, res.UserID, model.NotifyReservationRejected, "Reservation rejected", msg, data)
}

// Cancel cancels an ACTIVE or APPROVED reservation.  Owners cancel their
// own; admins cancel any.  Pass ?scope=series to cancel the remaining
// occurrences of a recurring set as well.  PENDING requests are deleted,
// not cancelled.
func (h *ApprovalHandler) Cancel(c echo.Context) error {
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

	res, err := h.lockAndLoad(ctx, tx, id)
	if err != nil {
		if err == repository.ErrReservationNotFound || err == repository.ErrRoomNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load reservation failed"})
	}
	// Same 404 as a missing row so non-owners cannot probe for ids.
	if res.UserID != userID && !isAdmin(c) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}

	now := time.Now().UTC()
	from := booking.EffectiveStatus(res.Status, res.EndTime, now)
	if err := booking.Transition(from, booking.StatusCancelled); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":  "reservation cannot be cancelled in its current state",
			"status": from,
		})
	}

	cancelled := []uint64{id}
	if c.QueryParam("scope") == "series" && res.RecurringTemplateID != nil {
		siblings, err := h.Reservations.SiblingIDsTx(ctx, tx, *res.RecurringTemplateID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load recurring set failed"})
		}
		for _, sid := range siblings {
			if sid == id {
				continue
			}
			sib, err := h.Reservations.GetByIDTx(ctx, tx, sid)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load recurring set failed"})
			}
			// Only occurrences still in a cancellable state move; already
			// completed or rejected ones stay as they are.
			if booking.CanTransition(booking.EffectiveStatus(sib.Status, sib.EndTime, now), booking.StatusCancelled) {
				cancelled = append(cancelled, sid)
			}
		}
	}
	for _, cid := range cancelled {
		if err := h.Reservations.UpdateStatusTx(ctx, tx, cid, booking.StatusCancelled); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update status failed"})
		}
	}
	if err := syncRoomStatusTx(ctx, tx, h.Reservations, h.Rooms, res.RoomID, now); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sync room status failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	h.Notifier.TryEmit(ctx, res.UserID, model.NotifyReservationCancelled,
		"Reservation cancelled",
		fmt.Sprintf("Your reservation for %s was cancelled.", res.StartTime.Format(time.RFC3339)),
		map[string]any{
			"reservation_id": res.ID,
			"room_id":        res.RoomID,
			"cancelled_ids":  cancelled,
		})

	res.Status = booking.StatusCancelled
	return c.JSON(http.StatusOK, toReservationView(res, now))
}

// Delete removes a reservation row entirely.  Members may delete their own
// PENDING requests; admins may delete anything.  The room status is
// recomputed and the owner notified, same as a cancellation.
func (h *ApprovalHandler) Delete(c echo.Context) error {
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

	res, err := h.lockAndLoad(ctx, tx, id)
	if err != nil {
		if err == repository.ErrReservationNotFound || err == repository.ErrRoomNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load reservation failed"})
	}
	admin := isAdmin(c)
	if res.UserID != userID && !admin {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}

	now := time.Now().UTC()
	if !admin {
		if booking.EffectiveStatus(res.Status, res.EndTime, now) != booking.StatusPending {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "only pending requests can be deleted"})
		}
	}

	if err := h.Reservations.DeleteTx(ctx, tx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete reservation failed"})
	}
	if err := syncRoomStatusTx(ctx, tx, h.Reservations, h.Rooms, res.RoomID, now); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sync room status failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	h.Notifier.TryEmit(ctx, res.UserID, model.NotifyReservationCancelled,
		"Reservation cancelled",
		fmt.Sprintf("Your reservation for %s was removed.", res.StartTime.Format(time.RFC3339)),
		map[string]any{"reservation_id": res.ID, "room_id": res.RoomID})

	return c.JSON(http.StatusOK, echo.Map{"status": "deleted"})
}
