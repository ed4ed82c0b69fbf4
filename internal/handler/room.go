package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/repository"
)

// RoomHandler implements the administrator room CRUD and the room listings.
// The stored status column is a cache maintained by the booking and approval
// flows; these handlers only read it.
type RoomHandler struct {
	Rooms *repository.RoomRepo
}

func NewRoomHandler(rooms *repository.RoomRepo) *RoomHandler {
	return &RoomHandler{Rooms: rooms}
}

type roomReq struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Capacity    *uint32 `json:"capacity"`
	IsActive    *bool   `json:"is_active"`
}

type roomView struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Capacity    *uint32   `json:"capacity,omitempty"`
	Status      string    `json:"status"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toRoomView(rm model.Room) roomView {
	return roomView{
		ID:          rm.ID,
		Name:        rm.Name,
		Description: rm.Description,
		Capacity:    rm.Capacity,
		Status:      rm.Status,
		IsActive:    rm.IsActive,
		CreatedAt:   rm.CreatedAt,
		UpdatedAt:   rm.UpdatedAt,
	}
}

// Create adds a room (admin only).  New rooms start FREE and active.
func (h *RoomHandler) Create(c echo.Context) error {
	var req roomReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rm := model.Room{Name: req.Name, Description: req.Description, Capacity: req.Capacity}
	if err := h.Rooms.Create(ctx, &rm); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return c.JSON(http.StatusConflict, echo.Map{"error": "room name already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create room failed"})
	}
	return c.JSON(http.StatusCreated, toRoomView(rm))
}

// List returns rooms ordered by name.  Members only see active rooms;
// admins see everything.
func (h *RoomHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rooms, err := h.Rooms.List(ctx, !isAdmin(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list rooms failed"})
	}
	views := make([]roomView, 0, len(rooms))
	for _, rm := range rooms {
		views = append(views, toRoomView(rm))
	}
	return c.JSON(http.StatusOK, echo.Map{"rooms": views})
}

// Get returns a single room.
func (h *RoomHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rm, err := h.Rooms.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrRoomNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load room failed"})
	}
	if !rm.IsActive && !isAdmin(c) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
	}
	return c.JSON(http.StatusOK, toRoomView(rm))
}

// Update edits a room's attributes (admin only).  Omitted fields keep their
// current values.
func (h *RoomHandler) Update(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	var req roomReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rm, err := h.Rooms.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrRoomNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load room failed"})
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		rm.Name = name
	}
	if req.Description != nil {
		rm.Description = req.Description
	}
	if req.Capacity != nil {
		rm.Capacity = req.Capacity
	}
	if req.IsActive != nil {
		rm.IsActive = *req.IsActive
	}

	if err := h.Rooms.Update(ctx, &rm); err != nil {
		switch err {
		case repository.ErrRoomNameExists:
			return c.JSON(http.StatusConflict, echo.Map{"error": "room name already exists"})
		case repository.ErrRoomNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update room failed"})
	}
	return c.JSON(http.StatusOK, toRoomView(rm))
}

// Delete removes a room (admin only).
func (h *RoomHandler) Delete(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Rooms.Delete(ctx, id); err != nil {
		if err == repository.ErrRoomNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete room failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
