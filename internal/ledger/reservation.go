package ledger

import "time"

// Reservation is a request to borrow vehicle units for a time window.
// Every reservation is a list of line items; the legacy single-item
// request form arrives as a one-element list, so there is exactly one
// code path for both shapes.
//
// Fields:
//
//	ID             – store-generated identifier.
//	RequesterName  – display name given by the requester.
//	RequesterEmail – login identity of the requester; ownership checks
//	                 match this value.
//	StartsAt       – start of the rental window.
//	EndsAt         – end of the window; strictly after StartsAt.
//	Purpose        – free-text justification.
//	Status         – lifecycle state; Completed only once every line
//	                 item has been returned and dispositioned.
//	Items          – the reserved (vehicle, quantity) pairs.
//	ApprovedBy     – "role:email" of the deciding principal (nullable).
//	RejectedBy     – email of the rejecting principal (nullable).
type Reservation struct {
	ID             uint64
	RequesterName  string
	RequesterEmail string
	StartsAt       time.Time
	EndsAt         time.Time
	Purpose        string
	Status         ReservationStatus
	Items          []LineItem
	ApprovedBy     *string
	ApprovedAt     *time.Time
	RejectedBy     *string
	RejectedAt     *time.Time
	ReturnedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LineItem is one (vehicle, quantity) pair inside a reservation.  The
// item carries its own status so a multi-item reservation can be
// returned piecemeal: the parent flips to Completed only when every
// item has.
type LineItem struct {
	VehicleCode string
	Designation string
	Quantity    int32
	Status      ReservationStatus
}

// Outstanding reports whether the reservation still holds capacity
// against its vehicles, i.e. it is in a non-terminal state.
func (r *Reservation) Outstanding() bool { return !r.Status.Terminal() }

// allItemsCompleted reports whether every line item has been returned.
func (r *Reservation) allItemsCompleted() bool {
	for i := range r.Items {
		if r.Items[i].Status != StatusCompleted {
			return false
		}
	}
	return len(r.Items) > 0
}

// item returns the line item referencing code, or nil.
func (r *Reservation) item(code string) *LineItem {
	for i := range r.Items {
		if r.Items[i].VehicleCode == code {
			return &r.Items[i]
		}
	}
	return nil
}
