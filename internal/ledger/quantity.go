package ledger

import "fmt"

// QuantitySet holds the per-vehicle unit counters.  The identity
//
//	Available + Broken + InRepair + Unavailable + Lost == Total
//
// must hold after every mutation, with all counters non-negative.
// Units that are out on an active reservation are carried under
// Unavailable until they are returned and dispositioned.
type QuantitySet struct {
	Total       int32 // vehicles.qty_total
	Available   int32 // vehicles.qty_available
	Broken      int32 // vehicles.qty_broken
	InRepair    int32 // vehicles.qty_in_repair
	Unavailable int32 // vehicles.qty_unavailable
	Lost        int32 // vehicles.qty_lost
}

// NewQuantitySet returns the counter set for a freshly registered
// vehicle: every unit starts available.
func NewQuantitySet(total int32) QuantitySet {
	return QuantitySet{Total: total, Available: total}
}

// Consistent reports whether the counter identity holds and no counter
// is negative.
func (q QuantitySet) Consistent() bool {
	if q.Total < 0 || q.Available < 0 || q.Broken < 0 || q.InRepair < 0 ||
		q.Unavailable < 0 || q.Lost < 0 {
		return false
	}
	return q.Available+q.Broken+q.InRepair+q.Unavailable+q.Lost == q.Total
}

// Reserve moves n units from available to unavailable, the bookkeeping
// for units handed out under a non-terminal reservation.  It fails with
// ErrCapacityExceeded when fewer than n units are available.
func (q *QuantitySet) Reserve(n int32) error {
	if n < 1 {
		return fmt.Errorf("reserve quantity %d: %w", n, ErrInvalidInput)
	}
	if n > q.Available {
		return fmt.Errorf("%d requested, %d available: %w", n, q.Available, ErrCapacityExceeded)
	}
	q.Available -= n
	q.Unavailable += n
	return nil
}

// Release undoes Reserve: n units move from unavailable back to
// available.  Used on reject and on deletion of a pending reservation.
func (q *QuantitySet) Release(n int32) error {
	if n < 1 || n > q.Unavailable {
		return fmt.Errorf("release %d of %d outstanding: %w", n, q.Unavailable, ErrInvalidState)
	}
	q.Unavailable -= n
	q.Available += n
	return nil
}

// Disposition settles n outstanding units under d: they leave the
// unavailable pool and land on the counter matching the disposition.
// DispositionUnavailable is a net no-op on the counters but still marks
// the units as settled rather than out.
func (q *QuantitySet) Disposition(d Disposition, n int32) error {
	if !d.Valid() {
		return fmt.Errorf("disposition %q: %w", d, ErrInvalidInput)
	}
	if n < 1 || n > q.Unavailable {
		return fmt.Errorf("disposition %d of %d outstanding: %w", n, q.Unavailable, ErrInvalidState)
	}
	q.Unavailable -= n
	switch d {
	case DispositionAvailable:
		q.Available += n
	case DispositionBroken:
		q.Broken += n
	case DispositionInRepair:
		q.InRepair += n
	case DispositionUnavailable:
		q.Unavailable += n
	case DispositionLost:
		q.Lost += n
	}
	return nil
}

// StatusLabel derives the vehicle status implied by the counters alone:
// available when at least one unit can be handed out, unavailable
// otherwise.
func (q QuantitySet) StatusLabel() VehicleStatus {
	if q.Available > 0 {
		return VehicleAvailable
	}
	return VehicleUnavailable
}
