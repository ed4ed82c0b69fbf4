package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/repository"
)

// NotificationHandler exposes the recipient side of notifications: listing
// and the read toggle.  Rows are only ever created by the notifier service.
type NotificationHandler struct {
	Notifications *repository.NotificationRepo
}

func NewNotificationHandler(notifications *repository.NotificationRepo) *NotificationHandler {
	return &NotificationHandler{Notifications: notifications}
}

type notificationView struct {
	ID        uint64    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Data      *string   `json:"data,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

func toNotificationView(n model.Notification) notificationView {
	return notificationView{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

// List returns the caller's notifications, newest first.  Pass ?unread=true
// to hide already-read ones.
func (h *NotificationHandler) List(c echo.Context) error {
	userID, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	list, err := h.Notifications.ListByUser(ctx, userID, c.QueryParam("unread") == "true")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list notifications failed"})
	}
	views := make([]notificationView, 0, len(list))
	for _, n := range list {
		views = append(views, toNotificationView(n))
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": views})
}

// MarkRead flags one of the caller's notifications as read.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	userID, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid notification id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Notifications.MarkRead(ctx, id, userID); err != nil {
		if err == repository.ErrNotificationNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "notification not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "mark read failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
