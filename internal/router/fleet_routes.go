package router

import (
	"github.com/labstack/echo/v4"

	"github.com/autoparc/fleet-reservation/internal/handler"
	"github.com/autoparc/fleet-reservation/internal/ledger"
	"github.com/autoparc/fleet-reservation/internal/middleware"
)

func allRoles() []string {
	return []string{
		string(ledger.RoleAdmin), string(ledger.RoleManager),
		string(ledger.RoleUtilisateur), string(ledger.RoleEtudiant), string(ledger.RoleStaff),
	}
}

func deciderRoles() []string {
	return []string{string(ledger.RoleAdmin), string(ledger.RoleManager)}
}

// RegisterFleet registers the vehicle inventory endpoints.  Reads are
// open to every authenticated role; fleet mutations are restricted to
// managers and admins.  cached is the response cache middleware applied
// to the hot inventory listings.
func RegisterFleet(e *echo.Echo, h *handler.VehicleHandler, jwtSecret string, cached echo.MiddlewareFunc) {
	read := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(allRoles()...))
	read.GET("/vehicles", h.List, cached)
	read.GET("/vehicles/available", h.Available, cached)
	read.GET("/vehicles/:code", h.Get)
	read.GET("/categories", h.Categories, cached)
	read.GET("/dashboard", h.Dashboard)

	manage := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(deciderRoles()...))
	manage.POST("/vehicles", h.Create)
	manage.PUT("/vehicles/:code", h.Update)
	manage.DELETE("/vehicles/:code", h.Delete)
}
