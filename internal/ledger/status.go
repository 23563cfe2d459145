package ledger

// status.go defines the enumerated lifecycle states used across the
// service.  The original data set mixed localized sentinel strings for
// the pending state; every call site here goes through these types so
// there is exactly one spelling of each state.

// ReservationStatus is the lifecycle state of a reservation or of a
// single line item inside it.  Valid transitions:
//
//	Pending  -> Approved | Rejected (and Pending -> Pending by staff reset)
//	Approved -> Completed
//
// Rejected and Completed are terminal.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "Pending"
	StatusApproved  ReservationStatus = "Approved"
	StatusRejected  ReservationStatus = "Rejected"
	StatusCompleted ReservationStatus = "Completed"
)

// Terminal reports whether no further transition may leave s.
func (s ReservationStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// CanTransition reports whether moving from s to next is a legal step in
// the lifecycle state machine.  The Pending -> Pending self loop is the
// staff reset override.
func (s ReservationStatus) CanTransition(next ReservationStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusApproved || next == StatusRejected || next == StatusPending
	case StatusApproved:
		return next == StatusCompleted
	default:
		return false
	}
}

// VehicleStatus is the asserted condition label on a vehicle record.  It
// mirrors the counter that last absorbed units, and is recomputed from
// the available counter after reserve/release mutations.
type VehicleStatus string

const (
	VehicleAvailable   VehicleStatus = "Available"
	VehicleUnavailable VehicleStatus = "Unavailable"
	VehicleNeedsRepair VehicleStatus = "NeedsRepair"
	VehicleBroken      VehicleStatus = "Broken"
	VehicleLost        VehicleStatus = "Lost"
)

// Disposition is the condition assigned to units when an approved
// reservation is returned.  Each disposition maps to exactly one
// quantity counter on the vehicle.
type Disposition string

const (
	DispositionAvailable   Disposition = "Available"
	DispositionBroken      Disposition = "Broken"
	DispositionInRepair    Disposition = "InRepair"
	DispositionUnavailable Disposition = "Unavailable"
	DispositionLost        Disposition = "Lost"
)

// Valid reports whether d is one of the five known dispositions.
func (d Disposition) Valid() bool {
	switch d {
	case DispositionAvailable, DispositionBroken, DispositionInRepair,
		DispositionUnavailable, DispositionLost:
		return true
	}
	return false
}

// VehicleStatus returns the status label a vehicle takes after units are
// returned under disposition d.
func (d Disposition) VehicleStatus() VehicleStatus {
	switch d {
	case DispositionBroken:
		return VehicleBroken
	case DispositionInRepair:
		return VehicleNeedsRepair
	case DispositionUnavailable:
		return VehicleUnavailable
	case DispositionLost:
		return VehicleLost
	default:
		return VehicleAvailable
	}
}
