package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/autoparc/fleet-reservation/internal/ledger"
	"github.com/autoparc/fleet-reservation/internal/queue"
)

// DecisionPublisher forwards a decision event to the message broker.
// Broker failures are the publisher's problem; handlers log and move on.
type DecisionPublisher func(ctx context.Context, ev queue.ReservationDecidedEvent) error

// ReservationHandler serves the reservation lifecycle endpoints.
type ReservationHandler struct {
	Ledger  *ledger.Ledger
	Publish DecisionPublisher // nil disables event publishing
}

func NewReservationHandler(l *ledger.Ledger, pub DecisionPublisher) *ReservationHandler {
	return &ReservationHandler{Ledger: l, Publish: pub}
}

// ----- DTOs -----

// The legacy booking form posts urlencoded fields, so the create DTOs
// carry form tags next to the json ones and echo binds whichever the
// request speaks.
type singleReservationReq struct {
	RequesterName string `json:"requester_name" form:"requester_name"`
	StartsAt      string `json:"starts_at" form:"starts_at"`
	EndsAt        string `json:"ends_at" form:"ends_at"`
	Purpose       string `json:"purpose" form:"purpose"`
	VehicleCode   string `json:"vehicle_code" form:"vehicle_code"`
	Quantity      int32  `json:"quantity" form:"quantity"`
}

type cartItemReq struct {
	VehicleCode string `json:"vehicle_code"`
	Quantity    int32  `json:"quantity"`
}

// Cart and return bodies nest line items, which only JSON can express.
type cartReservationReq struct {
	RequesterName string        `json:"requester_name" form:"requester_name"`
	StartsAt      string        `json:"starts_at" form:"starts_at"`
	EndsAt        string        `json:"ends_at" form:"ends_at"`
	Purpose       string        `json:"purpose" form:"purpose"`
	Items         []cartItemReq `json:"items"`
}

type returnItemReq struct {
	VehicleCode string `json:"vehicle_code"`
	Disposition string `json:"disposition"`
	Notes       string `json:"notes"`
}

type returnReq struct {
	Items []returnItemReq `json:"items"`
}

// parseWhen accepts RFC3339 timestamps or bare YYYY-MM-DD dates.
func parseWhen(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

func (h *ReservationHandler) create(c echo.Context, name, startsAt, endsAt, purpose string, items []cartItemReq) error {
	req := ledger.ReservationRequest{
		RequesterName:  strings.TrimSpace(name),
		RequesterEmail: actor(c).Email,
		Purpose:        strings.TrimSpace(purpose),
	}
	if t, ok := parseWhen(startsAt); ok {
		req.StartsAt = t
	}
	if t, ok := parseWhen(endsAt); ok {
		req.EndsAt = t
	}
	for _, it := range items {
		req.Items = append(req.Items, ledger.ItemRequest{
			VehicleCode: strings.TrimSpace(it.VehicleCode),
			Quantity:    it.Quantity,
		})
	}
	res, err := h.Ledger.CreateReservation(c.Request().Context(), actor(c), req)
	if err != nil {
		return ledgerError(c, err)
	}
	return ok(c, http.StatusCreated, "reservation submitted", echo.Map{"reservation": viewReservation(res)})
}

// Create opens a reservation for a single vehicle.  A missing quantity
// defaults to one unit.
func (h *ReservationHandler) Create(c echo.Context) error {
	var req singleReservationReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	return h.create(c, req.RequesterName, req.StartsAt, req.EndsAt, req.Purpose,
		[]cartItemReq{{VehicleCode: req.VehicleCode, Quantity: req.Quantity}})
}

// CreateCart opens a reservation over several vehicles at once.
func (h *ReservationHandler) CreateCart(c echo.Context) error {
	var req cartReservationReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	return h.create(c, req.RequesterName, req.StartsAt, req.EndsAt, req.Purpose, req.Items)
}

func parseStatuses(s string) []ledger.ReservationStatus {
	var out []ledger.ReservationStatus
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, ledger.ReservationStatus(p))
		}
	}
	return out
}

// List returns all reservations, optionally narrowed by ?status= and
// ?email= (manager/admin).
func (h *ReservationHandler) List(c echo.Context) error {
	f := ledger.ReservationFilter{
		RequesterEmail: strings.TrimSpace(c.QueryParam("email")),
		VehicleCode:    strings.TrimSpace(c.QueryParam("vehicle")),
		Statuses:       parseStatuses(c.QueryParam("status")),
	}
	rs, err := h.Ledger.Store().ListReservations(c.Request().Context(), f)
	if err != nil {
		return ledgerError(c, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{"reservations": viewReservations(rs), "count": len(rs)})
}

// History returns the caller's own reservations, newest first.
func (h *ReservationHandler) History(c echo.Context) error {
	rs, err := h.Ledger.Store().ListReservations(c.Request().Context(),
		ledger.ReservationFilter{RequesterEmail: actor(c).Email})
	if err != nil {
		return ledgerError(c, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{"reservations": viewReservations(rs), "count": len(rs)})
}

// Out lists reservations whose units are currently out on loan.
func (h *ReservationHandler) Out(c echo.Context) error {
	rs, err := h.Ledger.Store().ListReservations(c.Request().Context(),
		ledger.ReservationFilter{Statuses: []ledger.ReservationStatus{ledger.StatusApproved}})
	if err != nil {
		return ledgerError(c, err)
	}
	return ok(c, http.StatusOK, "", echo.Map{"reservations": viewReservations(rs), "count": len(rs)})
}

func reservationID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// Get returns one reservation.  Requesters see only their own records;
// deciders see everything.
func (h *ReservationHandler) Get(c echo.Context) error {
	id, okID := reservationID(c)
	if !okID {
		return fail(c, http.StatusBadRequest, "invalid reservation id")
	}
	res, err := h.Ledger.Store().Reservation(c.Request().Context(), id)
	if err != nil {
		return ledgerError(c, err)
	}
	a := actor(c)
	if !a.Role.CanDecide() && res.RequesterEmail != a.Email {
		return fail(c, http.StatusForbidden, "forbidden")
	}
	return ok(c, http.StatusOK, "", echo.Map{"reservation": viewReservation(res)})
}

func (h *ReservationHandler) publishDecision(c echo.Context, res *ledger.Reservation, decision string) {
	if h.Publish == nil {
		return
	}
	a := actor(c)
	ev := queue.ReservationDecidedEvent{
		ReservationID:  res.ID,
		RequesterName:  res.RequesterName,
		RequesterEmail: res.RequesterEmail,
		Decision:       decision,
		DecidedBy:      string(a.Role) + ":" + a.Email,
		StartsAt:       res.StartsAt.Format(time.RFC3339),
		EndsAt:         res.EndsAt.Format(time.RFC3339),
		DecidedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	for _, it := range res.Items {
		ev.Items = append(ev.Items, queue.EventItem{
			VehicleCode: it.VehicleCode,
			Designation: it.Designation,
			Quantity:    it.Quantity,
		})
	}
	if err := h.Publish(c.Request().Context(), ev); err != nil {
		zap.S().Warnw("decision event publish failed", "reservation_id", res.ID, "error", err)
	}
}

// Approve confirms a pending reservation (manager/admin).
func (h *ReservationHandler) Approve(c echo.Context) error {
	id, okID := reservationID(c)
	if !okID {
		return fail(c, http.StatusBadRequest, "invalid reservation id")
	}
	res, err := h.Ledger.Approve(c.Request().Context(), actor(c), id)
	if err != nil {
		return ledgerError(c, err)
	}
	h.publishDecision(c, res, "approved")
	return ok(c, http.StatusOK, "reservation approved", echo.Map{"reservation": viewReservation(res)})
}

// Reject declines a pending reservation and frees its units
// (manager/admin).
func (h *ReservationHandler) Reject(c echo.Context) error {
	id, okID := reservationID(c)
	if !okID {
		return fail(c, http.StatusBadRequest, "invalid reservation id")
	}
	res, err := h.Ledger.Reject(c.Request().Context(), actor(c), id)
	if err != nil {
		return ledgerError(c, err)
	}
	h.publishDecision(c, res, "rejected")
	return ok(c, http.StatusOK, "reservation rejected", echo.Map{"reservation": viewReservation(res)})
}

// Reset re-asserts the pending state of a reservation (manager/admin).
func (h *ReservationHandler) Reset(c echo.Context) error {
	id, okID := reservationID(c)
	if !okID {
		return fail(c, http.StatusBadRequest, "invalid reservation id")
	}
	res, err := h.Ledger.ResetPending(c.Request().Context(), actor(c), id)
	if err != nil {
		return ledgerError(c, err)
	}
	return ok(c, http.StatusOK, "reservation reset to pending", echo.Map{"reservation": viewReservation(res)})
}

// Return settles returned vehicles under their dispositions
// (manager/admin).
func (h *ReservationHandler) Return(c echo.Context) error {
	id, okID := reservationID(c)
	if !okID {
		return fail(c, http.StatusBadRequest, "invalid reservation id")
	}
	var req returnReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	items := make([]ledger.ItemDisposition, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, ledger.ItemDisposition{
			VehicleCode: strings.TrimSpace(it.VehicleCode),
			Disposition: ledger.Disposition(strings.TrimSpace(it.Disposition)),
			Notes:       it.Notes,
		})
	}
	res, err := h.Ledger.Return(c.Request().Context(), actor(c), id, items)
	if err != nil {
		return ledgerError(c, err)
	}
	if res.Status == ledger.StatusCompleted {
		h.publishDecision(c, res, "returned")
	}
	return ok(c, http.StatusOK, "return recorded", echo.Map{"reservation": viewReservation(res)})
}

// Delete removes a reservation record.  Requesters may delete their
// own; managers and admins any.
func (h *ReservationHandler) Delete(c echo.Context) error {
	id, okID := reservationID(c)
	if !okID {
		return fail(c, http.StatusBadRequest, "invalid reservation id")
	}
	if err := h.Ledger.Delete(c.Request().Context(), actor(c), id); err != nil {
		return ledgerError(c, err)
	}
	return ok(c, http.StatusOK, "reservation deleted", nil)
}
