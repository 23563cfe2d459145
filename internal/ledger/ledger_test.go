package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	manager = Actor{Email: "manager@parc.example", Role: RoleManager}
	admin   = Actor{Email: "admin@parc.example", Role: RoleAdmin}
	student = Actor{Email: "student@parc.example", Role: RoleEtudiant}
	staff   = Actor{Email: "staff@parc.example", Role: RoleStaff}
)

func newFixture(t *testing.T) (*Ledger, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return New(store), store
}

func seedVehicle(t *testing.T, l *Ledger, code string, total int32) {
	t.Helper()
	_, err := l.RegisterVehicle(context.Background(), manager, Vehicle{
		Code:        code,
		Designation: "Test " + code,
		Category:    "Utilitaire",
		Quantities:  QuantitySet{Total: total},
	})
	require.NoError(t, err)
}

func window() (time.Time, time.Time) {
	start := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	return start, start.Add(72 * time.Hour)
}

func reserve(t *testing.T, l *Ledger, a Actor, items ...ItemRequest) *Reservation {
	t.Helper()
	start, end := window()
	res, err := l.CreateReservation(context.Background(), a, ReservationRequest{
		RequesterName:  "Sam Driver",
		RequesterEmail: a.Email,
		StartsAt:       start,
		EndsAt:         end,
		Purpose:        "site visit",
		Items:          items,
	})
	require.NoError(t, err)
	return res
}

func vehicleState(t *testing.T, store *MemoryStore, code string) QuantitySet {
	t.Helper()
	v, err := store.Vehicle(context.Background(), code)
	require.NoError(t, err)
	require.True(t, v.Quantities.Consistent(), "counter identity broken for %s: %+v", code, v.Quantities)
	return v.Quantities
}

func TestCreateReservationDecrementsAvailability(t *testing.T) {
	l, store := newFixture(t)
	seedVehicle(t, l, "CAR001", 5)

	res := reserve(t, l, student, ItemRequest{VehicleCode: "CAR001", Quantity: 2})

	assert.Equal(t, StatusPending, res.Status)
	assert.NotZero(t, res.ID)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Test CAR001", res.Items[0].Designation)

	q := vehicleState(t, store, "CAR001")
	assert.Equal(t, int32(3), q.Available)
	assert.Equal(t, int32(2), q.Unavailable)
}

func TestCreateReservationOverCapacityLeavesNoTrace(t *testing.T) {
	l, store := newFixture(t)
	seedVehicle(t, l, "CAR001", 1)
	start, end := window()

	_, err := l.CreateReservation(context.Background(), student, ReservationRequest{
		RequesterName:  "Sam Driver",
		RequesterEmail: student.Email,
		StartsAt:       start,
		EndsAt:         end,
		Items:          []ItemRequest{{VehicleCode: "CAR001", Quantity: 2}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCapacityExceeded))

	q := vehicleState(t, store, "CAR001")
	assert.Equal(t, int32(1), q.Available)

	rs, err := store.ListReservations(context.Background(), ReservationFilter{})
	require.NoError(t, err)
	assert.Empty(t, rs)
}

func TestCreateReservationMultiItemAllOrNothing(t *testing.T) {
	l, store := newFixture(t)
	seedVehicle(t, l, "CAR001", 3)
	seedVehicle(t, l, "VAN001", 1)
	start, end := window()

	_, err := l.CreateReservation(context.Background(), student, ReservationRequest{
		RequesterName:  "Sam Driver",
		RequesterEmail: student.Email,
		StartsAt:       start,
		EndsAt:         end,
		Items: []ItemRequest{
			{VehicleCode: "CAR001", Quantity: 2},
			{VehicleCode: "VAN001", Quantity: 2}, // over capacity
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCapacityExceeded))

	// The failing second item rolls back the first item's decrement too.
	assert.Equal(t, int32(3), vehicleState(t, store, "CAR001").Available)
	assert.Equal(t, int32(1), vehicleState(t, store, "VAN001").Available)
}

func TestCreateReservationValidation(t *testing.T) {
	l, _ := newFixture(t)
	seedVehicle(t, l, "CAR001", 2)
	start, end := window()
	base := ReservationRequest{
		RequesterName:  "Sam Driver",
		RequesterEmail: student.Email,
		StartsAt:       start,
		EndsAt:         end,
		Items:          []ItemRequest{{VehicleCode: "CAR001", Quantity: 1}},
	}

	cases := map[string]func(r *ReservationRequest){
		"missing name":       func(r *ReservationRequest) { r.RequesterName = "" },
		"missing email":      func(r *ReservationRequest) { r.RequesterEmail = "" },
		"end before start":   func(r *ReservationRequest) { r.EndsAt = r.StartsAt.Add(-time.Hour) },
		"end equals start":   func(r *ReservationRequest) { r.EndsAt = r.StartsAt },
		"no items":           func(r *ReservationRequest) { r.Items = nil },
		"zero quantity":      func(r *ReservationRequest) { r.Items = []ItemRequest{{VehicleCode: "CAR001", Quantity: 0}} },
		"duplicate vehicles": func(r *ReservationRequest) {
			r.Items = []ItemRequest{
				{VehicleCode: "CAR001", Quantity: 1},
				{VehicleCode: "CAR001", Quantity: 1},
			}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := base
			req.Items = append([]ItemRequest(nil), base.Items...)
			mutate(&req)
			_, err := l.CreateReservation(context.Background(), student, req)
			assert.True(t, errors.Is(err, ErrInvalidInput), "want ErrInvalidInput, got %v", err)
		})
	}
}

func TestUnknownVehicleIsNotFound(t *testing.T) {
	l, _ := newFixture(t)
	start, end := window()
	_, err := l.CreateReservation(context.Background(), student, ReservationRequest{
		RequesterName:  "Sam Driver",
		RequesterEmail: student.Email,
		StartsAt:       start,
		EndsAt:         end,
		Items:          []ItemRequest{{VehicleCode: "GHOST", Quantity: 1}},
	})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestApproveIsPureStatusFlip(t *testing.T) {
	l, store := newFixture(t)
	seedVehicle(t, l, "CAR001", 1)
	res := reserve(t, l, student, ItemRequest{VehicleCode: "CAR001", Quantity: 1})

	before := vehicleState(t, store, "CAR001")
	approved, err := l.Approve(context.Background(), manager, res.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "manager:manager@parc.example", *approved.ApprovedBy)
	assert.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, before, vehicleState(t, store, "CAR001"))
}

func TestApproveTwiceIsInvalidState(t *testing.T) {
	l, _ := newFixture(t)
	seedVehicle(t, l, "CAR001", 1)
	res := reserve(t, l, student, ItemRequest{VehicleCode: "CAR001", Quantity: 1})

	_, err := l.Approve(context.Background(), manager, res.ID)
	require.NoError(t, err)
	_, err = l.Approve(context.Background(), admin, res.ID)
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestRejectReleasesCapacity(t *testing.T) {
	l, store := newFixture(t)
	seedVehicle(t, l, "CAR001", 2)
	res := reserve(t, l, student, ItemRequest{VehicleCode: "CAR001", Quantity: 2})
	assert.Equal(t, int32(0), vehicleState(t, store, "CAR001").Available)

	rejected, err := l.Reject(context.Background(), manager, res.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectedBy)
	assert.Equal(t, manager.Email, *rejected.RejectedBy)
	assert.Equal(t, int32(2), vehicleState(t, store, "CAR001").Available)
}

func TestRejectApprovedIsInvalidState(t *testing.T) {
	l, _ := newFixture(t)
	seedVehicle(t, l, "CAR001", 1)
	res := reserve(t, l, student, ItemRequest{VehicleCode: "CAR001", Quantity: 1})
	_, err := l.Approve(context.Background(), manager, res.ID)
	require.NoError(t, err)

	_, err = l.Reject(context.Background(), manager, res.ID)
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestResetPendingTouchesOnlyTimestamp(t *testing.T) {
	l, store := newFixture(t)
	seedVehicle(t, l, "CAR001", 3)
	res := reserve(t, l, student, ItemRequest{VehicleCode: "CAR001", Quantity: 1})
	before := vehicleState(t, store, "CAR001")

	reset, err := l.ResetPending(context.Background(), manager, res.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, reset.Status)
	assert.Equal(t, before, vehicleState(t, store, "CAR001"))

	_, err = l.Approve(context.Background(), manager, res.ID)
	require.NoError(t, err)
	_, err = l.ResetPending(context.Background(), manager, res.ID)
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestReturnDispositionsRouteUnits(t *testing.T) {
	l, store := newFixture(t)
	seedVehicle(t, l, "CAR001", 5)
	res := reserve(t, l, student, ItemRequest{VehicleCode: "CAR001", Quantity: 2})
	_, err := l.Approve(context.Background(), manager, res.ID)
	require.NoError(t, err)

	done, err := l.Return(context.Background(), manager, res.ID, []ItemDisposition{
		{VehicleCode: "CAR001", Disposition: DispositionBroken, Notes: "rear bumper cracked"},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, done.Status)
	assert.NotNil(t, done.ReturnedAt)

	q := vehicleState(t, store, "CAR001")
	assert.Equal(t, int32(3), q.Available)
	assert.Equal(t, int32(2), q.Broken)
	assert.Equal(t, int32(0), q.Unavailable)

	v, err := store.Vehicle(context.Background(), "CAR001")
	require.NoError(t, err)
	assert.Equal(t, VehicleBroken, v.Status)
	require.NotNil(t, v.Notes)
	assert.Equal(t, "rear bumper cracked", *v.Notes)
}

func TestPartialReturnKeepsReservationOpen(t *testing.T) {
	l, store := newFixture(t)
	seedVehicle(t, l, "CAR001", 2)
	seedVehicle(t, l, "VAN001", 1)
	res := reserve(t, l, student,
		ItemRequest{VehicleCode: "CAR001", Quantity: 1},
		ItemRequest{VehicleCode: "VAN001", Quantity: 1},
	)
	_, err := l.Approve(context.Background(), manager, res.ID)
	require.NoError(t, err)

	mid, err := l.Return(context.Background(), manager, res.ID, []ItemDisposition{
		{VehicleCode: "CAR001", Disposition: DispositionAvailable},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, mid.Status)
	assert.Nil(t, mid.ReturnedAt)
	assert.Equal(t, int32(2), vehicleState(t, store, "CAR001").Available)
	assert.Equal(t, int32(1), vehicleState(t, store, "VAN001").Unavailable)

	// Same item again: already settled.
	_, err = l.Return(context.Background(), manager, res.ID, []ItemDisposition{
		{VehicleCode: "CAR001", Disposition: DispositionAvailable},
	})
	assert.True(t, errors.Is(err, ErrInvalidState))

	done, err := l.Return(context.Background(), manager, res.ID, []ItemDisposition{
		{VehicleCode: "VAN001", Disposition: DispositionLost},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, int32(1), vehicleState(t, store, "VAN001").Lost)
}

func TestReturnGuards(t *testing.T) {
	l, _ := newFixture(t)
	seedVehicle(t, l, "CAR001", 2)
	res := reserve(t, l, student, ItemRequest{VehicleCode: "CAR001", Quantity: 1})

	// Pending reservations cannot be returned.
	_, err := l.Return(context.Background(), manager, res.ID, []ItemDisposition{
		{VehicleCode: "CAR001", Disposition: DispositionAvailable},
	})
	assert.True(t, errors.Is(err, ErrInvalidState))

	_, err = l.Approve(context.Background(), manager, res.ID)
	require.NoError(t, err)

	_, err = l.Return(context.Background(), manager, res.ID, nil)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = l.Return(context.Background(), manager, res.ID, []ItemDisposition{
		{VehicleCode: "CAR001", Disposition: "Vaporised"},
	})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = l.Return(context.Background(), manager, res.ID, []ItemDisposition{
		{VehicleCode: "VAN001", Disposition: DispositionAvailable},
	})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeletePendingReleasesCapacity(t *testing.T) {
	l, store := newFixture(t)
	seedVehicle(t, l, "CAR001", 2)
	res := reserve(t, l, student, ItemRequest{VehicleCode: "CAR001", Quantity: 2})

	require.NoError(t, l.Delete(context.Background(), student, res.ID))
	assert.Equal(t, int32(2), vehicleState(t, store, "CAR001").Available)

	_, err := store.Reservation(context.Background(), res.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteRequiresOwnershipOrDecider(t *testing.T) {
	l, _ := newFixture(t)
	seedVehicle(t, l, "CAR001", 2)
	res := reserve(t, l, student, ItemRequest{VehicleCode: "CAR001", Quantity: 1})

	other := Actor{Email: "other@parc.example", Role: RoleUtilisateur}
	err := l.Delete(context.Background(), other, res.ID)
	assert.True(t, errors.Is(err, ErrForbidden))

	// A manager may delete anyone's reservation.
	require.NoError(t, l.Delete(context.Background(), manager, res.ID))
}

func TestDeleteTerminalReservationLeavesCountersAlone(t *testing.T) {
	l, store := newFixture(t)
	seedVehicle(t, l, "CAR001", 3)
	res := reserve(t, l, student, ItemRequest{VehicleCode: "CAR001", Quantity: 1})
	_, err := l.Reject(context.Background(), manager, res.ID)
	require.NoError(t, err)
	before := vehicleState(t, store, "CAR001")

	require.NoError(t, l.Delete(context.Background(), student, res.ID))
	assert.Equal(t, before, vehicleState(t, store, "CAR001"))
}

func TestDecisionsRequireDeciderRole(t *testing.T) {
	l, _ := newFixture(t)
	seedVehicle(t, l, "CAR001", 2)
	res := reserve(t, l, student, ItemRequest{VehicleCode: "CAR001", Quantity: 1})

	for name, call := range map[string]func() error{
		"approve": func() error { _, err := l.Approve(context.Background(), staff, res.ID); return err },
		"reject":  func() error { _, err := l.Reject(context.Background(), staff, res.ID); return err },
		"reset":   func() error { _, err := l.ResetPending(context.Background(), staff, res.ID); return err },
		"return": func() error {
			_, err := l.Return(context.Background(), staff, res.ID, []ItemDisposition{
				{VehicleCode: "CAR001", Disposition: DispositionAvailable},
			})
			return err
		},
		"register vehicle": func() error {
			_, err := l.RegisterVehicle(context.Background(), staff, Vehicle{Code: "X", Designation: "X", Quantities: QuantitySet{Total: 1}})
			return err
		},
		"remove vehicle": func() error { _, err := l.RemoveVehicle(context.Background(), staff, "CAR001"); return err },
	} {
		t.Run(name, func(t *testing.T) {
			assert.True(t, errors.Is(call(), ErrForbidden))
		})
	}
}

func TestUnknownRoleCannotReserve(t *testing.T) {
	l, _ := newFixture(t)
	seedVehicle(t, l, "CAR001", 1)
	start, end := window()
	_, err := l.CreateReservation(context.Background(), Actor{Email: "x@y", Role: "ghost"}, ReservationRequest{
		RequesterName:  "X",
		RequesterEmail: "x@y",
		StartsAt:       start,
		EndsAt:         end,
		Items:          []ItemRequest{{VehicleCode: "CAR001", Quantity: 1}},
	})
	assert.True(t, errors.Is(err, ErrForbidden))
}

func TestRegisterVehicle(t *testing.T) {
	l, store := newFixture(t)
	v, err := l.RegisterVehicle(context.Background(), admin, Vehicle{
		Code:        "VAN010",
		Designation: "Transit L2",
		Quantities:  QuantitySet{Total: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, NewQuantitySet(4), v.Quantities)
	assert.Equal(t, VehicleAvailable, v.Status)

	_, err = l.RegisterVehicle(context.Background(), admin, Vehicle{
		Code:        "VAN010",
		Designation: "Duplicate",
		Quantities:  QuantitySet{Total: 1},
	})
	assert.True(t, errors.Is(err, ErrVehicleExists))

	_, err = l.RegisterVehicle(context.Background(), admin, Vehicle{Code: "NOQTY", Designation: "X"})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	assert.Equal(t, int32(4), vehicleState(t, store, "VAN010").Available)
}

func TestUpdateVehicleInfoPreservesCounters(t *testing.T) {
	l, store := newFixture(t)
	seedVehicle(t, l, "CAR001", 3)
	reserve(t, l, student, ItemRequest{VehicleCode: "CAR001", Quantity: 1})
	before := vehicleState(t, store, "CAR001")

	updated, err := l.UpdateVehicleInfo(context.Background(), manager, Vehicle{
		Code:        "CAR001",
		Designation: "Renamed",
		Category:    "Berline",
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Designation)
	assert.Equal(t, before, updated.Quantities)
	assert.Equal(t, before, vehicleState(t, store, "CAR001"))
}

func TestRemoveVehicleRefusedWhileCheckedOut(t *testing.T) {
	l, _ := newFixture(t)
	seedVehicle(t, l, "CAR001", 2)
	res := reserve(t, l, student, ItemRequest{VehicleCode: "CAR001", Quantity: 1})

	_, err := l.RemoveVehicle(context.Background(), manager, "CAR001")
	assert.True(t, errors.Is(err, ErrCheckedOut))

	// Still checked out after approval.
	_, err = l.Approve(context.Background(), manager, res.ID)
	require.NoError(t, err)
	_, err = l.RemoveVehicle(context.Background(), manager, "CAR001")
	assert.True(t, errors.Is(err, ErrCheckedOut))
}

func TestRemoveVehicleCascadesSettledHistory(t *testing.T) {
	l, store := newFixture(t)
	seedVehicle(t, l, "CAR001", 2)
	res := reserve(t, l, student, ItemRequest{VehicleCode: "CAR001", Quantity: 1})
	_, err := l.Approve(context.Background(), manager, res.ID)
	require.NoError(t, err)
	// Units come back parked as unavailable; that must not block deletion.
	_, err = l.Return(context.Background(), manager, res.ID, []ItemDisposition{
		{VehicleCode: "CAR001", Disposition: DispositionUnavailable},
	})
	require.NoError(t, err)

	cascaded, err := l.RemoveVehicle(context.Background(), manager, "CAR001")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cascaded)

	_, err = store.Vehicle(context.Background(), "CAR001")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = store.Reservation(context.Background(), res.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFullLifecycleKeepsIdentity(t *testing.T) {
	l, store := newFixture(t)
	seedVehicle(t, l, "CAR001", 5)

	r1 := reserve(t, l, student, ItemRequest{VehicleCode: "CAR001", Quantity: 2})
	r2 := reserve(t, l, staff, ItemRequest{VehicleCode: "CAR001", Quantity: 1})

	_, err := l.Approve(context.Background(), manager, r1.ID)
	require.NoError(t, err)
	_, err = l.Reject(context.Background(), manager, r2.ID)
	require.NoError(t, err)
	_, err = l.Return(context.Background(), manager, r1.ID, []ItemDisposition{
		{VehicleCode: "CAR001", Disposition: DispositionInRepair},
	})
	require.NoError(t, err)

	q := vehicleState(t, store, "CAR001")
	assert.Equal(t, QuantitySet{Total: 5, Available: 3, InRepair: 2}, q)
}
