package router

import (
	"github.com/labstack/echo/v4"

	"github.com/autoparc/fleet-reservation/internal/handler"
	"github.com/autoparc/fleet-reservation/internal/ledger"
	"github.com/autoparc/fleet-reservation/internal/middleware"
)

// RegisterReservations registers the reservation lifecycle endpoints.
// Every authenticated role can submit and view its own reservations;
// decisions (approve/reject/reset/return) and the global listing are
// manager/admin territory.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string) {
	any := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(allRoles()...))
	any.POST("/reservations", h.Create)
	any.POST("/reservations/cart", h.CreateCart)
	any.GET("/reservations/history", h.History)
	any.GET("/reservations/:id", h.Get)
	// Ownership of the record is enforced in the ledger, not the route.
	any.DELETE("/reservations/:id", h.Delete)

	decide := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(deciderRoles()...))
	decide.GET("/reservations", h.List)
	decide.GET("/reservations/out", h.Out)
	decide.PUT("/reservations/:id/approve", h.Approve)
	decide.PUT("/reservations/:id/reject", h.Reject)
	decide.PUT("/reservations/:id/reset", h.Reset)
	decide.POST("/reservations/:id/return", h.Return)
}

// RegisterExports registers the CSV export endpoints.  Every role but
// students may pull them.
func RegisterExports(e *echo.Echo, h *handler.ExportHandler, jwtSecret string) {
	roles := []string{
		string(ledger.RoleAdmin), string(ledger.RoleManager),
		string(ledger.RoleUtilisateur), string(ledger.RoleStaff),
	}
	g := e.Group("/v1/export", middleware.JWTAuth(jwtSecret), middleware.RequireRole(roles...))
	g.GET("/inventory.csv", h.Inventory)
	g.GET("/reservations.csv", h.Reservations)
}

// RegisterAdmin registers the admin-only staff management endpoints.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin", middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(string(ledger.RoleAdmin)))
	g.GET("/staff", h.ListStaff)
	g.POST("/staff", h.CreateStaff)
	g.PUT("/staff/:id", h.UpdateStaff)
	g.DELETE("/staff/:id", h.DeleteStaff)
}
