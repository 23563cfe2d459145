package ledger

import "context"

// Store is the persistence boundary of the ledger.  The production
// implementation lives in the repository package on top of MySQL; tests
// use an in-memory fake.  Reads outside a transaction give a snapshot
// view; every mutation goes through WithinTx so the counter identity is
// enforced under a single consistency boundary.
type Store interface {
	// WithinTx runs fn inside one transaction.  If fn returns an
	// error the transaction is rolled back and the error returned.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	Vehicle(ctx context.Context, code string) (*Vehicle, error)
	ListVehicles(ctx context.Context, f VehicleFilter) ([]*Vehicle, error)
	Categories(ctx context.Context) ([]string, error)

	Reservation(ctx context.Context, id uint64) (*Reservation, error)
	ListReservations(ctx context.Context, f ReservationFilter) ([]*Reservation, error)
}

// Tx is the mutation surface available inside a transaction.  ForUpdate
// loads take row locks in the MySQL implementation; callers must lock
// vehicles in sorted code order to keep lock acquisition deadlock free.
type Tx interface {
	VehicleForUpdate(ctx context.Context, code string) (*Vehicle, error)
	// SetVehicleQuantities persists the counter set and the derived
	// status label for one vehicle.
	SetVehicleQuantities(ctx context.Context, code string, q QuantitySet, status VehicleStatus) error
	// OutstandingQuantity sums the quantities of non-completed line
	// items across non-terminal reservations referencing code.
	OutstandingQuantity(ctx context.Context, code string) (int32, error)

	InsertVehicle(ctx context.Context, v *Vehicle) error
	// UpdateVehicle persists the descriptive fields, status, image and
	// notes.  Counters move only through SetVehicleQuantities.
	UpdateVehicle(ctx context.Context, v *Vehicle) error
	DeleteVehicle(ctx context.Context, code string) error
	// DeleteReservationsByVehicle removes every reservation holding a
	// line item on code and reports how many were removed.
	DeleteReservationsByVehicle(ctx context.Context, code string) (int64, error)

	// InsertReservation stores r and populates its generated ID.
	InsertReservation(ctx context.Context, r *Reservation) error
	ReservationForUpdate(ctx context.Context, id uint64) (*Reservation, error)
	UpdateReservation(ctx context.Context, r *Reservation) error
	DeleteReservation(ctx context.Context, id uint64) error
}

// VehicleFilter narrows ListVehicles.  Zero values match everything.
type VehicleFilter struct {
	Category      string
	Status        VehicleStatus
	OnlyAvailable bool // keep only vehicles with Available > 0
}

// ReservationFilter narrows ListReservations.  Zero values match
// everything; Statuses and ExcludeStatuses are mutually exclusive in
// practice but both are honoured when set.
type ReservationFilter struct {
	RequesterEmail  string
	VehicleCode     string
	Statuses        []ReservationStatus
	ExcludeStatuses []ReservationStatus
}

// Matches reports whether r passes the filter.  Shared by in-memory
// store implementations; the MySQL store compiles the same conditions
// into SQL.
func (f ReservationFilter) Matches(r *Reservation) bool {
	if f.RequesterEmail != "" && r.RequesterEmail != f.RequesterEmail {
		return false
	}
	if f.VehicleCode != "" && r.item(f.VehicleCode) == nil {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if r.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, s := range f.ExcludeStatuses {
		if r.Status == s {
			return false
		}
	}
	return true
}
