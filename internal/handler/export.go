package handler

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/autoparc/fleet-reservation/internal/ledger"
)

// ExportHandler streams inventory and reservation data as CSV for the
// back-office spreadsheets.  Students are view-only and never reach
// these routes.
type ExportHandler struct {
	Ledger *ledger.Ledger
}

func NewExportHandler(l *ledger.Ledger) *ExportHandler {
	return &ExportHandler{Ledger: l}
}

func csvResponse(c echo.Context, filename string) *csv.Writer {
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	c.Response().WriteHeader(http.StatusOK)
	return csv.NewWriter(c.Response())
}

// Inventory exports the vehicle table with all six counters.
func (h *ExportHandler) Inventory(c echo.Context) error {
	vs, err := h.Ledger.Store().ListVehicles(c.Request().Context(), ledger.VehicleFilter{})
	if err != nil {
		return ledgerError(c, err)
	}
	w := csvResponse(c, "inventory.csv")
	_ = w.Write([]string{"code", "designation", "category", "make", "model", "serial_number",
		"status", "qty_total", "qty_available", "qty_broken", "qty_in_repair",
		"qty_unavailable", "qty_lost", "daily_price_cents"})
	for _, v := range vs {
		_ = w.Write([]string{
			v.Code, v.Designation, v.Category, v.Make, v.Model, v.SerialNumber,
			string(v.Status),
			strconv.FormatInt(int64(v.Quantities.Total), 10),
			strconv.FormatInt(int64(v.Quantities.Available), 10),
			strconv.FormatInt(int64(v.Quantities.Broken), 10),
			strconv.FormatInt(int64(v.Quantities.InRepair), 10),
			strconv.FormatInt(int64(v.Quantities.Unavailable), 10),
			strconv.FormatInt(int64(v.Quantities.Lost), 10),
			strconv.FormatUint(uint64(v.DailyPriceCents), 10),
		})
	}
	w.Flush()
	return w.Error()
}

// Reservations exports one row per reservation line item.
func (h *ExportHandler) Reservations(c echo.Context) error {
	rs, err := h.Ledger.Store().ListReservations(c.Request().Context(), ledger.ReservationFilter{})
	if err != nil {
		return ledgerError(c, err)
	}
	w := csvResponse(c, "reservations.csv")
	_ = w.Write([]string{"reservation_id", "requester_name", "requester_email",
		"starts_at", "ends_at", "status", "vehicle_code", "designation", "quantity",
		"item_status", "created_at"})
	for _, r := range rs {
		for _, it := range r.Items {
			_ = w.Write([]string{
				strconv.FormatUint(r.ID, 10), r.RequesterName, r.RequesterEmail,
				r.StartsAt.Format(time.RFC3339), r.EndsAt.Format(time.RFC3339),
				string(r.Status), it.VehicleCode, it.Designation,
				strconv.FormatInt(int64(it.Quantity), 10), string(it.Status),
				r.CreatedAt.Format(time.RFC3339),
			})
		}
	}
	w.Flush()
	return w.Error()
}
