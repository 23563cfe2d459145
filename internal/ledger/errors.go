// Package ledger implements the reservation and quantity reconciliation
// engine for the vehicle fleet.  It owns the vehicle counters and the
// reservation lifecycle and exposes the operations that mutate them.
// These sentinel values allow the HTTP layer to distinguish failure
// scenarios with errors.Is and translate them into response codes
// without inspecting message text.
package ledger

import "errors"

// ErrNotFound is returned when a vehicle code or reservation id does
// not resolve to a record.  Handlers should translate this into 404.
var ErrNotFound = errors.New("not found")

// ErrInvalidInput is returned for missing or malformed required fields,
// including a reservation window whose end does not come after its
// start.  Handlers should translate this into 400.
var ErrInvalidInput = errors.New("invalid input")

// ErrCapacityExceeded is returned when a requested quantity exceeds the
// live available counter of a vehicle.  Handlers should translate this
// into 409.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// ErrInvalidState is returned when an operation is attempted against a
// reservation that is not in the lifecycle state the operation
// requires, e.g. approving a reservation twice.  Handlers should
// translate this into 409.
var ErrInvalidState = errors.New("invalid state")

// ErrForbidden is returned when the acting principal's role does not
// permit the operation.  Handlers should translate this into 403.
var ErrForbidden = errors.New("forbidden")

// ErrVehicleExists is returned when registering a vehicle under a code
// that is already taken.
var ErrVehicleExists = errors.New("vehicle code already exists")

// ErrCheckedOut is returned when deleting a vehicle that still has
// units out on reservations.
var ErrCheckedOut = errors.New("vehicle currently checked out")
