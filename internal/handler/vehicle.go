package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/autoparc/fleet-reservation/internal/ledger"
	"github.com/autoparc/fleet-reservation/internal/upload"
)

// VehicleHandler serves the fleet inventory endpoints.
type VehicleHandler struct {
	Ledger  *ledger.Ledger
	Uploads *upload.Saver
}

func NewVehicleHandler(l *ledger.Ledger, u *upload.Saver) *VehicleHandler {
	return &VehicleHandler{Ledger: l, Uploads: u}
}

// List returns vehicles, optionally narrowed by ?category=, ?status=
// and ?available=true.
func (h *VehicleHandler) List(c echo.Context) error {
	f := ledger.VehicleFilter{
		Category: strings.TrimSpace(c.QueryParam("category")),
		Status:   ledger.VehicleStatus(strings.TrimSpace(c.QueryParam("status"))),
	}
	if v := c.QueryParam("available"); v == "true" || v == "1" {
		f.OnlyAvailable = true
	}
	vs, err := h.Ledger.Store().ListVehicles(c.Request().Context(), f)
	if err != nil {
		return ledgerError(c, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{"vehicles": viewVehicles(vs), "count": len(vs)})
}

// Available lists only vehicles with at least one free unit.
func (h *VehicleHandler) Available(c echo.Context) error {
	vs, err := h.Ledger.Store().ListVehicles(c.Request().Context(), ledger.VehicleFilter{OnlyAvailable: true})
	if err != nil {
		return ledgerError(c, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{"vehicles": viewVehicles(vs), "count": len(vs)})
}

// Categories returns the distinct vehicle categories.
func (h *VehicleHandler) Categories(c echo.Context) error {
	cats, err := h.Ledger.Store().Categories(c.Request().Context())
	if err != nil {
		return ledgerError(c, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{"categories": cats})
}

// Get returns one vehicle together with the reservations that touched
// it, newest first.
func (h *VehicleHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	code := c.Param("code")
	v, err := h.Ledger.Store().Vehicle(ctx, code)
	if err != nil {
		return ledgerError(c, err)
	}
	history, err := h.Ledger.Store().ListReservations(ctx, ledger.ReservationFilter{VehicleCode: code})
	if err != nil {
		return ledgerError(c, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{
		"vehicle": viewVehicle(v),
		"history": viewReservations(history),
	})
}

// vehicleFromForm reads the descriptive vehicle fields of a multipart
// or urlencoded form.
func vehicleFromForm(c echo.Context) ledger.Vehicle {
	price, _ := strconv.ParseUint(strings.TrimSpace(c.FormValue("daily_price_cents")), 10, 32)
	return ledger.Vehicle{
		Code:            strings.TrimSpace(c.FormValue("code")),
		Designation:     strings.TrimSpace(c.FormValue("designation")),
		Category:        strings.TrimSpace(c.FormValue("category")),
		Make:            strings.TrimSpace(c.FormValue("make")),
		Model:           strings.TrimSpace(c.FormValue("model")),
		SerialNumber:    strings.TrimSpace(c.FormValue("serial_number")),
		OldAssetTag:     strings.TrimSpace(c.FormValue("old_asset_tag")),
		NewAssetTag:     strings.TrimSpace(c.FormValue("new_asset_tag")),
		InventoryDate:   strings.TrimSpace(c.FormValue("inventory_date")),
		Description:     strings.TrimSpace(c.FormValue("description")),
		DailyPriceCents: uint32(price),
		FuelType:        strings.TrimSpace(c.FormValue("fuel_type")),
		Transmission:    strings.TrimSpace(c.FormValue("transmission")),
		Status:          ledger.VehicleStatus(strings.TrimSpace(c.FormValue("status"))),
	}
}

// saveImage stores an optional "image" form file and returns its name.
func (h *VehicleHandler) saveImage(c echo.Context) (*string, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, nil // no file attached
	}
	name, err := h.Uploads.Save(fh)
	if err != nil {
		return nil, err
	}
	return &name, nil
}

// Create registers a new vehicle (manager/admin).
func (h *VehicleHandler) Create(c echo.Context) error {
	v := vehicleFromForm(c)
	total, _ := strconv.ParseInt(strings.TrimSpace(c.FormValue("qty_total")), 10, 32)
	v.Quantities.Total = int32(total)

	img, err := h.saveImage(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	v.Image = img

	created, err := h.Ledger.RegisterVehicle(c.Request().Context(), actor(c), v)
	if err != nil {
		if img != nil {
			_ = h.Uploads.Remove(*img)
		}
		return ledgerError(c, err)
	}
	return ok(c, http.StatusCreated, "vehicle registered", echo.Map{"vehicle": viewVehicle(created)})
}

// Update rewrites the descriptive fields of a vehicle (manager/admin).
// Quantity counters are never edited here; they only move through the
// reservation lifecycle.
func (h *VehicleHandler) Update(c echo.Context) error {
	v := vehicleFromForm(c)
	v.Code = c.Param("code")

	img, err := h.saveImage(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	v.Image = img // nil keeps the current image

	updated, err := h.Ledger.UpdateVehicleInfo(c.Request().Context(), actor(c), v)
	if err != nil {
		if img != nil {
			_ = h.Uploads.Remove(*img)
		}
		return ledgerError(c, err)
	}
	return ok(c, http.StatusOK, "vehicle updated", echo.Map{"vehicle": viewVehicle(updated)})
}

// Delete removes a vehicle and cascades over its reservation history
// (manager/admin).  Refused while units are out on loan.
func (h *VehicleHandler) Delete(c echo.Context) error {
	cascaded, err := h.Ledger.RemoveVehicle(c.Request().Context(), actor(c), c.Param("code"))
	if err != nil {
		return ledgerError(c, err)
	}
	return ok(c, http.StatusOK, "vehicle deleted", echo.Map{"reservations_removed": cascaded})
}

// Dashboard aggregates fleet and reservation counts for the landing
// page.
func (h *VehicleHandler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	vs, err := h.Ledger.Store().ListVehicles(ctx, ledger.VehicleFilter{})
	if err != nil {
		return ledgerError(c, err)
	}
	var units ledger.QuantitySet
	for _, v := range vs {
		units.Total += v.Quantities.Total
		units.Available += v.Quantities.Available
		units.Broken += v.Quantities.Broken
		units.InRepair += v.Quantities.InRepair
		units.Unavailable += v.Quantities.Unavailable
		units.Lost += v.Quantities.Lost
	}
	rs, err := h.Ledger.Store().ListReservations(ctx, ledger.ReservationFilter{})
	if err != nil {
		return ledgerError(c, err)
	}
	byStatus := map[string]int{}
	for _, r := range rs {
		byStatus[string(r.Status)]++
	}
	return ok(c, http.StatusOK, "", echo.Map{
		"vehicles": len(vs),
		"units": echo.Map{
			"total":       units.Total,
			"available":   units.Available,
			"broken":      units.Broken,
			"in_repair":   units.InRepair,
			"unavailable": units.Unavailable,
			"lost":        units.Lost,
		},
		"reservations": byStatus,
	})
}
