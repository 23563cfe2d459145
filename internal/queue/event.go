// Package queue defines message payloads exchanged over the message broker.
package queue

// EventItem is one reserved vehicle inside a decision event.
type EventItem struct {
	VehicleCode string `json:"vehicle_code"`
	Designation string `json:"designation"`
	Quantity    int32  `json:"quantity"`
}

// ReservationDecidedEvent is published whenever staff decides on a
// reservation: approval, rejection or return.  It carries enough for
// downstream consumers to log, notify or feed analytics without a
// query against the primary database.
type ReservationDecidedEvent struct {
	ReservationID  uint64      `json:"reservation_id"`
	RequesterName  string      `json:"requester_name"`
	RequesterEmail string      `json:"requester_email"`
	Decision       string      `json:"decision"` // approved | rejected | returned
	DecidedBy      string      `json:"decided_by"`
	StartsAt       string      `json:"starts_at"`
	EndsAt         string      `json:"ends_at"`
	Items          []EventItem `json:"items"`
	DecidedAt      string      `json:"decided_at"`
}
