package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Ledger coordinates reservation lifecycle transitions and the vehicle
// quantity counters behind a single consistency boundary.  All mutating
// operations run inside one store transaction, so either the status
// change and every counter movement land together or none do.
type Ledger struct {
	store Store
}

// New returns a Ledger over store.
func New(store Store) *Ledger {
	if store == nil {
		panic("ledger: nil store")
	}
	return &Ledger{store: store}
}

// Store exposes the underlying store for read-only query paths.
func (l *Ledger) Store() Store { return l.store }

// ItemRequest is one requested (vehicle, quantity) pair.
type ItemRequest struct {
	VehicleCode string
	Quantity    int32
}

// ReservationRequest carries everything needed to open a reservation.
type ReservationRequest struct {
	RequesterName  string
	RequesterEmail string
	StartsAt       time.Time
	EndsAt         time.Time
	Purpose        string
	Items          []ItemRequest
}

// ItemDisposition states the condition one returned line item comes
// back in.  Notes, when set, are recorded on the vehicle.
type ItemDisposition struct {
	VehicleCode string
	Disposition Disposition
	Notes       string
}

func validateRequest(req ReservationRequest) error {
	switch {
	case strings.TrimSpace(req.RequesterName) == "":
		return fmt.Errorf("requester name is required: %w", ErrInvalidInput)
	case strings.TrimSpace(req.RequesterEmail) == "":
		return fmt.Errorf("requester email is required: %w", ErrInvalidInput)
	case req.StartsAt.IsZero() || req.EndsAt.IsZero():
		return fmt.Errorf("reservation window is required: %w", ErrInvalidInput)
	case !req.EndsAt.After(req.StartsAt):
		return fmt.Errorf("end date must come after start date: %w", ErrInvalidInput)
	case len(req.Items) == 0:
		return fmt.Errorf("at least one vehicle is required: %w", ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(req.Items))
	for _, it := range req.Items {
		if strings.TrimSpace(it.VehicleCode) == "" {
			return fmt.Errorf("vehicle code is required: %w", ErrInvalidInput)
		}
		if it.Quantity < 1 {
			return fmt.Errorf("quantity for %s must be at least 1: %w", it.VehicleCode, ErrInvalidInput)
		}
		if _, dup := seen[it.VehicleCode]; dup {
			return fmt.Errorf("vehicle %s listed twice: %w", it.VehicleCode, ErrInvalidInput)
		}
		seen[it.VehicleCode] = struct{}{}
	}
	return nil
}

// lockVehicles loads every referenced vehicle FOR UPDATE in sorted code
// order so concurrent reservations acquire row locks consistently.
func lockVehicles(ctx context.Context, tx Tx, codes []string) (map[string]*Vehicle, error) {
	sorted := append([]string(nil), codes...)
	sort.Strings(sorted)
	out := make(map[string]*Vehicle, len(sorted))
	for _, code := range sorted {
		v, err := tx.VehicleForUpdate(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("vehicle %s: %w", code, err)
		}
		out[code] = v
	}
	return out, nil
}

// CreateReservation opens a pending reservation and immediately moves
// the requested units from available to unavailable.  A later rejection
// or deletion releases them; approval is a pure status flip.
func (l *Ledger) CreateReservation(ctx context.Context, actor Actor, req ReservationRequest) (*Reservation, error) {
	if !actor.Role.CanReserve() {
		return nil, fmt.Errorf("role %q may not reserve: %w", actor.Role, ErrForbidden)
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	codes := make([]string, len(req.Items))
	for i, it := range req.Items {
		codes[i] = it.VehicleCode
	}

	now := time.Now().UTC()
	res := &Reservation{
		RequesterName:  req.RequesterName,
		RequesterEmail: req.RequesterEmail,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
		Purpose:        req.Purpose,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := l.store.WithinTx(ctx, func(tx Tx) error {
		vehicles, err := lockVehicles(ctx, tx, codes)
		if err != nil {
			return err
		}
		for _, it := range req.Items {
			v := vehicles[it.VehicleCode]
			if err := v.Quantities.Reserve(it.Quantity); err != nil {
				return fmt.Errorf("vehicle %s: %w", it.VehicleCode, err)
			}
			if err := tx.SetVehicleQuantities(ctx, v.Code, v.Quantities, v.Quantities.StatusLabel()); err != nil {
				return err
			}
			res.Items = append(res.Items, LineItem{
				VehicleCode: v.Code,
				Designation: v.Designation,
				Quantity:    it.Quantity,
				Status:      StatusPending,
			})
		}
		return tx.InsertReservation(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// loadPending loads a reservation FOR UPDATE and verifies it is still
// pending.
func loadPending(ctx context.Context, tx Tx, id uint64) (*Reservation, error) {
	res, err := tx.ReservationForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Status != StatusPending {
		return nil, fmt.Errorf("reservation %d is %s, not pending: %w", id, res.Status, ErrInvalidState)
	}
	return res, nil
}

// Approve flips a pending reservation to approved.  Capacity was taken
// at creation time, so no counters move here.
func (l *Ledger) Approve(ctx context.Context, actor Actor, id uint64) (*Reservation, error) {
	if !actor.Role.CanDecide() {
		return nil, fmt.Errorf("role %q may not decide: %w", actor.Role, ErrForbidden)
	}
	var out *Reservation
	err := l.store.WithinTx(ctx, func(tx Tx) error {
		res, err := loadPending(ctx, tx, id)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		by := fmt.Sprintf("%s:%s", actor.Role, actor.Email)
		res.Status = StatusApproved
		res.ApprovedBy = &by
		res.ApprovedAt = &now
		res.UpdatedAt = now
		for i := range res.Items {
			res.Items[i].Status = StatusApproved
		}
		out = res
		return tx.UpdateReservation(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// releaseItems gives the capacity of every non-completed line item back
// to the available pool.
func releaseItems(ctx context.Context, tx Tx, res *Reservation) error {
	codes := make([]string, 0, len(res.Items))
	for _, it := range res.Items {
		if it.Status != StatusCompleted {
			codes = append(codes, it.VehicleCode)
		}
	}
	vehicles, err := lockVehicles(ctx, tx, codes)
	if err != nil {
		return err
	}
	for _, it := range res.Items {
		if it.Status == StatusCompleted {
			continue
		}
		v := vehicles[it.VehicleCode]
		if err := v.Quantities.Release(it.Quantity); err != nil {
			return fmt.Errorf("vehicle %s: %w", it.VehicleCode, err)
		}
		if err := tx.SetVehicleQuantities(ctx, v.Code, v.Quantities, v.Quantities.StatusLabel()); err != nil {
			return err
		}
	}
	return nil
}

// Reject declines a pending reservation and releases its capacity.
func (l *Ledger) Reject(ctx context.Context, actor Actor, id uint64) (*Reservation, error) {
	if !actor.Role.CanDecide() {
		return nil, fmt.Errorf("role %q may not decide: %w", actor.Role, ErrForbidden)
	}
	var out *Reservation
	err := l.store.WithinTx(ctx, func(tx Tx) error {
		res, err := loadPending(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := releaseItems(ctx, tx, res); err != nil {
			return err
		}
		now := time.Now().UTC()
		email := actor.Email
		res.Status = StatusRejected
		res.RejectedBy = &email
		res.RejectedAt = &now
		res.UpdatedAt = now
		for i := range res.Items {
			res.Items[i].Status = StatusRejected
		}
		out = res
		return tx.UpdateReservation(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ResetPending re-asserts the pending state of a reservation.  It is a
// staff override with no counter effect; the only observable change is
// the updated timestamp.
func (l *Ledger) ResetPending(ctx context.Context, actor Actor, id uint64) (*Reservation, error) {
	if !actor.Role.CanDecide() {
		return nil, fmt.Errorf("role %q may not decide: %w", actor.Role, ErrForbidden)
	}
	var out *Reservation
	err := l.store.WithinTx(ctx, func(tx Tx) error {
		res, err := loadPending(ctx, tx, id)
		if err != nil {
			return err
		}
		res.UpdatedAt = time.Now().UTC()
		out = res
		return tx.UpdateReservation(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a reservation record.  A decider may delete any
// reservation; a requester may delete their own.  Deleting a pending
// reservation releases its capacity first; terminal reservations are
// removed as pure record deletions.
func (l *Ledger) Delete(ctx context.Context, actor Actor, id uint64) error {
	return l.store.WithinTx(ctx, func(tx Tx) error {
		res, err := tx.ReservationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.Role.CanDecide() && !actor.owns(res) {
			return fmt.Errorf("reservation %d belongs to another requester: %w", id, ErrForbidden)
		}
		if res.Status == StatusPending {
			if err := releaseItems(ctx, tx, res); err != nil {
				return err
			}
		}
		return tx.DeleteReservation(ctx, id)
	})
}

// Return settles line items of an approved reservation under the given
// dispositions.  Partial returns are allowed; the reservation completes
// once its last item does.
func (l *Ledger) Return(ctx context.Context, actor Actor, id uint64, items []ItemDisposition) (*Reservation, error) {
	if !actor.Role.CanDecide() {
		return nil, fmt.Errorf("role %q may not decide: %w", actor.Role, ErrForbidden)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("at least one returned vehicle is required: %w", ErrInvalidInput)
	}
	for _, d := range items {
		if !d.Disposition.Valid() {
			return nil, fmt.Errorf("disposition %q for %s: %w", d.Disposition, d.VehicleCode, ErrInvalidInput)
		}
	}
	var out *Reservation
	err := l.store.WithinTx(ctx, func(tx Tx) error {
		res, err := tx.ReservationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if res.Status != StatusApproved {
			return fmt.Errorf("reservation %d is %s, not approved: %w", id, res.Status, ErrInvalidState)
		}
		now := time.Now().UTC()
		for _, d := range items {
			item := res.item(d.VehicleCode)
			if item == nil {
				return fmt.Errorf("reservation %d holds no %s: %w", id, d.VehicleCode, ErrNotFound)
			}
			if item.Status != StatusApproved {
				return fmt.Errorf("vehicle %s already returned: %w", d.VehicleCode, ErrInvalidState)
			}
			v, err := tx.VehicleForUpdate(ctx, d.VehicleCode)
			if err != nil {
				return err
			}
			if err := v.Quantities.Disposition(d.Disposition, item.Quantity); err != nil {
				return fmt.Errorf("vehicle %s: %w", d.VehicleCode, err)
			}
			v.Status = d.Disposition.VehicleStatus()
			if err := tx.SetVehicleQuantities(ctx, v.Code, v.Quantities, v.Status); err != nil {
				return err
			}
			if strings.TrimSpace(d.Notes) != "" {
				notes := d.Notes
				v.Notes = &notes
				v.UpdatedAt = now
				if err := tx.UpdateVehicle(ctx, v); err != nil {
					return err
				}
			}
			item.Status = StatusCompleted
		}
		res.UpdatedAt = now
		if res.allItemsCompleted() {
			res.Status = StatusCompleted
			res.ReturnedAt = &now
		}
		out = res
		return tx.UpdateReservation(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RegisterVehicle adds a vehicle to the fleet with all units available.
func (l *Ledger) RegisterVehicle(ctx context.Context, actor Actor, v Vehicle) (*Vehicle, error) {
	if !actor.Role.CanDecide() {
		return nil, fmt.Errorf("role %q may not manage the fleet: %w", actor.Role, ErrForbidden)
	}
	if strings.TrimSpace(v.Code) == "" || strings.TrimSpace(v.Designation) == "" {
		return nil, fmt.Errorf("code and designation are required: %w", ErrInvalidInput)
	}
	if v.Quantities.Total < 1 {
		return nil, fmt.Errorf("total quantity must be at least 1: %w", ErrInvalidInput)
	}
	now := time.Now().UTC()
	v.Quantities = NewQuantitySet(v.Quantities.Total)
	v.Status = v.Quantities.StatusLabel()
	v.CreatedAt = now
	v.UpdatedAt = now
	err := l.store.WithinTx(ctx, func(tx Tx) error {
		return tx.InsertVehicle(ctx, &v)
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// UpdateVehicleInfo rewrites a vehicle's descriptive fields.  Counters
// are untouched; a nil Image or empty Status keeps the current value.
func (l *Ledger) UpdateVehicleInfo(ctx context.Context, actor Actor, v Vehicle) (*Vehicle, error) {
	if !actor.Role.CanDecide() {
		return nil, fmt.Errorf("role %q may not manage the fleet: %w", actor.Role, ErrForbidden)
	}
	if strings.TrimSpace(v.Designation) == "" {
		return nil, fmt.Errorf("designation is required: %w", ErrInvalidInput)
	}
	var out *Vehicle
	err := l.store.WithinTx(ctx, func(tx Tx) error {
		cur, err := tx.VehicleForUpdate(ctx, v.Code)
		if err != nil {
			return err
		}
		v.Quantities = cur.Quantities
		if v.Image == nil {
			v.Image = cur.Image
		}
		if v.Status == "" {
			v.Status = cur.Status
		}
		if v.Notes == nil {
			v.Notes = cur.Notes
		}
		v.CreatedAt = cur.CreatedAt
		v.UpdatedAt = time.Now().UTC()
		out = &v
		return tx.UpdateVehicle(ctx, &v)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveVehicle deletes a vehicle and cascades over its reservations.
// Deletion is refused while any unit is out on a non-terminal
// reservation; settled units parked under the unavailable counter do
// not block it.  Returns how many reservations were removed.
func (l *Ledger) RemoveVehicle(ctx context.Context, actor Actor, code string) (int64, error) {
	if !actor.Role.CanDecide() {
		return 0, fmt.Errorf("role %q may not manage the fleet: %w", actor.Role, ErrForbidden)
	}
	var cascaded int64
	err := l.store.WithinTx(ctx, func(tx Tx) error {
		if _, err := tx.VehicleForUpdate(ctx, code); err != nil {
			return err
		}
		out, err := tx.OutstandingQuantity(ctx, code)
		if err != nil {
			return err
		}
		if out > 0 {
			return fmt.Errorf("vehicle %s has %d unit(s) out: %w", code, out, ErrCheckedOut)
		}
		cascaded, err = tx.DeleteReservationsByVehicle(ctx, code)
		if err != nil {
			return err
		}
		return tx.DeleteVehicle(ctx, code)
	})
	if err != nil {
		return 0, err
	}
	return cascaded, nil
}
