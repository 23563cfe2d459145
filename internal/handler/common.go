package handler // HTTP handlers for the fleet reservation API

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/autoparc/fleet-reservation/internal/ledger"
)

// actor builds the ledger actor from the claims JWTAuth stored in the
// request context.  Handlers behind the auth middleware can rely on the
// values being present; anything missing yields a zero actor that every
// capability check refuses.
func actor(c echo.Context) ledger.Actor {
	a := ledger.Actor{}
	if v, ok := c.Get("email").(string); ok {
		a.Email = v
	}
	if v, ok := c.Get("role").(string); ok {
		a.Role = ledger.Role(v)
	}
	return a
}

// ok writes the success envelope with extra fields merged in.
func ok(c echo.Context, status int, message string, extra echo.Map) error {
	body := echo.Map{"success": true, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	return c.JSON(status, body)
}

// fail writes the failure envelope.
func fail(c echo.Context, status int, message string) error {
	return c.JSON(status, echo.Map{"success": false, "message": message})
}

// ledgerError translates ledger sentinel errors into HTTP responses.
// Unknown errors surface as 500 with a generic message.
func ledgerError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrInvalidInput):
		return fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrCapacityExceeded),
		errors.Is(err, ledger.ErrInvalidState),
		errors.Is(err, ledger.ErrVehicleExists),
		errors.Is(err, ledger.ErrCheckedOut):
		return fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrForbidden):
		return fail(c, http.StatusForbidden, err.Error())
	}
	c.Logger().Errorf("internal error: %v", err)
	return fail(c, http.StatusInternalServerError, "internal error")
}

// ----- JSON views -----

type itemView struct {
	VehicleCode string `json:"vehicle_code"`
	Designation string `json:"designation"`
	Quantity    int32  `json:"quantity"`
	Status      string `json:"status"`
}

type reservationView struct {
	ID             uint64     `json:"id"`
	RequesterName  string     `json:"requester_name"`
	RequesterEmail string     `json:"requester_email"`
	StartsAt       time.Time  `json:"starts_at"`
	EndsAt         time.Time  `json:"ends_at"`
	Purpose        string     `json:"purpose,omitempty"`
	Status         string     `json:"status"`
	Items          []itemView `json:"items"`
	ApprovedBy     *string    `json:"approved_by,omitempty"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	RejectedBy     *string    `json:"rejected_by,omitempty"`
	RejectedAt     *time.Time `json:"rejected_at,omitempty"`
	ReturnedAt     *time.Time `json:"returned_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func viewReservation(r *ledger.Reservation) reservationView {
	v := reservationView{
		ID:             r.ID,
		RequesterName:  r.RequesterName,
		RequesterEmail: r.RequesterEmail,
		StartsAt:       r.StartsAt,
		EndsAt:         r.EndsAt,
		Purpose:        r.Purpose,
		Status:         string(r.Status),
		Items:          make([]itemView, 0, len(r.Items)),
		ApprovedBy:     r.ApprovedBy,
		ApprovedAt:     r.ApprovedAt,
		RejectedBy:     r.RejectedBy,
		RejectedAt:     r.RejectedAt,
		ReturnedAt:     r.ReturnedAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	for _, it := range r.Items {
		v.Items = append(v.Items, itemView{
			VehicleCode: it.VehicleCode,
			Designation: it.Designation,
			Quantity:    it.Quantity,
			Status:      string(it.Status),
		})
	}
	return v
}

func viewReservations(rs []*ledger.Reservation) []reservationView {
	out := make([]reservationView, 0, len(rs))
	for _, r := range rs {
		out = append(out, viewReservation(r))
	}
	return out
}

type vehicleView struct {
	Code            string    `json:"code"`
	Designation     string    `json:"designation"`
	Category        string    `json:"category,omitempty"`
	Make            string    `json:"make,omitempty"`
	Model           string    `json:"model,omitempty"`
	SerialNumber    string    `json:"serial_number,omitempty"`
	OldAssetTag     string    `json:"old_asset_tag,omitempty"`
	NewAssetTag     string    `json:"new_asset_tag,omitempty"`
	InventoryDate   string    `json:"inventory_date,omitempty"`
	Description     string    `json:"description,omitempty"`
	DailyPriceCents uint32    `json:"daily_price_cents"`
	FuelType        string    `json:"fuel_type,omitempty"`
	Transmission    string    `json:"transmission,omitempty"`
	Image           *string   `json:"image,omitempty"`
	Status          string    `json:"status"`
	QtyTotal        int32     `json:"qty_total"`
	QtyAvailable    int32     `json:"qty_available"`
	QtyBroken       int32     `json:"qty_broken"`
	QtyInRepair     int32     `json:"qty_in_repair"`
	QtyUnavailable  int32     `json:"qty_unavailable"`
	QtyLost         int32     `json:"qty_lost"`
	Notes           *string   `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func viewVehicle(v *ledger.Vehicle) vehicleView {
	return vehicleView{
		Code:            v.Code,
		Designation:     v.Designation,
		Category:        v.Category,
		Make:            v.Make,
		Model:           v.Model,
		SerialNumber:    v.SerialNumber,
		OldAssetTag:     v.OldAssetTag,
		NewAssetTag:     v.NewAssetTag,
		InventoryDate:   v.InventoryDate,
		Description:     v.Description,
		DailyPriceCents: v.DailyPriceCents,
		FuelType:        v.FuelType,
		Transmission:    v.Transmission,
		Image:           v.Image,
		Status:          string(v.Status),
		QtyTotal:        v.Quantities.Total,
		QtyAvailable:    v.Quantities.Available,
		QtyBroken:       v.Quantities.Broken,
		QtyInRepair:     v.Quantities.InRepair,
		QtyUnavailable:  v.Quantities.Unavailable,
		QtyLost:         v.Quantities.Lost,
		Notes:           v.Notes,
		CreatedAt:       v.CreatedAt,
		UpdatedAt:       v.UpdatedAt,
	}
}

func viewVehicles(vs []*ledger.Vehicle) []vehicleView {
	out := make([]vehicleView, 0, len(vs))
	for _, v := range vs {
		out = append(out, viewVehicle(v))
	}
	return out
}
