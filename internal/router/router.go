// Package router wires HTTP routes to handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/handler"
	"github.com/iliyamo/room-reservation/internal/middleware"
	"github.com/iliyamo/room-reservation/internal/model"
)

// Handlers bundles the handler set the router registers.
type Handlers struct {
	Auth          *handler.AuthHandler
	Rooms         *handler.RoomHandler
	Reservations  *handler.ReservationHandler
	Approvals     *handler.ApprovalHandler
	Notifications *handler.NotificationHandler
	Incidents     *handler.IncidentHandler
}

// Register wires every route.  cache and rate may be pass-through middleware
// when Redis is unavailable; read endpoints get both, mutations only the
// rate limiter.
func Register(e *echo.Echo, h Handlers, jwtSecret string, cache, rate echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health)

	// Session endpoints need no access token.
	auth := e.Group("/v1/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", h.Auth.Logout)

	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))
	v1.Use(middleware.RequireRole(model.RoleAdmin, model.RoleMember))
	v1.Use(rate)

	v1.GET("/me", h.Auth.Me)
	v1.POST("/logout-all", h.Auth.LogoutAll)

	admin := middleware.RequireRole(model.RoleAdmin)

	// Rooms: everyone browses, admins manage.
	v1.GET("/rooms", h.Rooms.List, cache)
	v1.GET("/rooms/:id", h.Rooms.Get, cache)
	v1.POST("/rooms", h.Rooms.Create, admin)
	v1.PUT("/rooms/:id", h.Rooms.Update, admin)
	v1.DELETE("/rooms/:id", h.Rooms.Delete, admin)

	// Admins can mint further admin accounts through the protected route;
	// the public register endpoint only creates members.
	v1.POST("/users", h.Auth.Register, admin)

	// Reservations.
	v1.POST("/reservations", h.Reservations.Create)
	v1.GET("/reservations", h.Reservations.List, admin)
	v1.GET("/my-reservations", h.Reservations.Mine, cache)
	v1.GET("/reservations/:id", h.Reservations.Get)
	v1.POST("/reservations/:id/approval", h.Approvals.Decide, admin)
	v1.POST("/reservations/:id/cancel", h.Approvals.Cancel)
	v1.DELETE("/reservations/:id", h.Approvals.Delete)

	// Notifications (recipient only; uncached so mark-read is visible
	// immediately).
	v1.GET("/notifications", h.Notifications.List)
	v1.POST("/notifications/:id/read", h.Notifications.MarkRead)

	// Incidents.
	v1.POST("/incidents", h.Incidents.Create)
	v1.GET("/incidents", h.Incidents.List)
	v1.GET("/incidents/:id", h.Incidents.Get)
	v1.PATCH("/incidents/:id", h.Incidents.Patch)
}
