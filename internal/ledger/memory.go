package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used by tests and local runs
// without a database.  A single mutex is the consistency boundary, so
// WithinTx callbacks run one at a time; mutations land on the shared
// maps only when the callback succeeds.
type MemoryStore struct {
	mu           sync.Mutex
	vehicles     map[string]*Vehicle
	reservations map[uint64]*Reservation
	nextID       uint64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vehicles:     make(map[string]*Vehicle),
		reservations: make(map[uint64]*Reservation),
		nextID:       1,
	}
}

func copyVehicle(v *Vehicle) *Vehicle {
	cp := *v
	return &cp
}

func copyReservation(r *Reservation) *Reservation {
	cp := *r
	cp.Items = append([]LineItem(nil), r.Items...)
	return &cp
}

// WithinTx runs fn under the store mutex against a scratch copy of the
// data and publishes the copy only on success, mirroring transactional
// rollback semantics.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memoryTx{
		vehicles:     make(map[string]*Vehicle, len(s.vehicles)),
		reservations: make(map[uint64]*Reservation, len(s.reservations)),
		nextID:       s.nextID,
	}
	for k, v := range s.vehicles {
		tx.vehicles[k] = copyVehicle(v)
	}
	for k, r := range s.reservations {
		tx.reservations[k] = copyReservation(r)
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.vehicles = tx.vehicles
	s.reservations = tx.reservations
	s.nextID = tx.nextID
	return nil
}

// Vehicle returns a copy of the stored vehicle.
func (s *MemoryStore) Vehicle(ctx context.Context, code string) (*Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, okV := s.vehicles[code]
	if !okV {
		return nil, fmt.Errorf("vehicle %s: %w", code, ErrNotFound)
	}
	return copyVehicle(v), nil
}

// ListVehicles returns matching vehicles ordered by code.
func (s *MemoryStore) ListVehicles(ctx context.Context, f VehicleFilter) ([]*Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		if f.Category != "" && v.Category != f.Category {
			continue
		}
		if f.Status != "" && v.Status != f.Status {
			continue
		}
		if f.OnlyAvailable && v.Quantities.Available < 1 {
			continue
		}
		out = append(out, copyVehicle(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Categories returns the distinct non-empty categories, sorted.
func (s *MemoryStore) Categories(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	for _, v := range s.vehicles {
		if v.Category != "" {
			seen[v.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// Reservation returns a copy of the stored reservation.
func (s *MemoryStore) Reservation(ctx context.Context, id uint64) (*Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, okR := s.reservations[id]
	if !okR {
		return nil, fmt.Errorf("reservation %d: %w", id, ErrNotFound)
	}
	return copyReservation(r), nil
}

// ListReservations returns matching reservations, newest id first.
func (s *MemoryStore) ListReservations(ctx context.Context, f ReservationFilter) ([]*Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Reservation, 0, len(s.reservations))
	for _, r := range s.reservations {
		if f.Matches(r) {
			out = append(out, copyReservation(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// memoryTx operates on the scratch copies owned by WithinTx.
type memoryTx struct {
	vehicles     map[string]*Vehicle
	reservations map[uint64]*Reservation
	nextID       uint64
}

func (t *memoryTx) VehicleForUpdate(ctx context.Context, code string) (*Vehicle, error) {
	v, okV := t.vehicles[code]
	if !okV {
		return nil, fmt.Errorf("vehicle %s: %w", code, ErrNotFound)
	}
	return v, nil
}

func (t *memoryTx) SetVehicleQuantities(ctx context.Context, code string, q QuantitySet, status VehicleStatus) error {
	v, okV := t.vehicles[code]
	if !okV {
		return fmt.Errorf("vehicle %s: %w", code, ErrNotFound)
	}
	v.Quantities = q
	v.Status = status
	return nil
}

func (t *memoryTx) OutstandingQuantity(ctx context.Context, code string) (int32, error) {
	var out int32
	for _, r := range t.reservations {
		for _, it := range r.Items {
			if it.VehicleCode == code && (it.Status == StatusPending || it.Status == StatusApproved) {
				out += it.Quantity
			}
		}
	}
	return out, nil
}

func (t *memoryTx) InsertVehicle(ctx context.Context, v *Vehicle) error {
	if _, dup := t.vehicles[v.Code]; dup {
		return fmt.Errorf("vehicle %s: %w", v.Code, ErrVehicleExists)
	}
	t.vehicles[v.Code] = copyVehicle(v)
	return nil
}

func (t *memoryTx) UpdateVehicle(ctx context.Context, v *Vehicle) error {
	cur, okV := t.vehicles[v.Code]
	if !okV {
		return fmt.Errorf("vehicle %s: %w", v.Code, ErrNotFound)
	}
	cp := copyVehicle(v)
	cp.Quantities = cur.Quantities
	t.vehicles[v.Code] = cp
	return nil
}

func (t *memoryTx) DeleteVehicle(ctx context.Context, code string) error {
	if _, okV := t.vehicles[code]; !okV {
		return fmt.Errorf("vehicle %s: %w", code, ErrNotFound)
	}
	delete(t.vehicles, code)
	return nil
}

func (t *memoryTx) DeleteReservationsByVehicle(ctx context.Context, code string) (int64, error) {
	var n int64
	for id, r := range t.reservations {
		if r.item(code) != nil {
			delete(t.reservations, id)
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) InsertReservation(ctx context.Context, r *Reservation) error {
	r.ID = t.nextID
	t.nextID++
	t.reservations[r.ID] = copyReservation(r)
	return nil
}

func (t *memoryTx) ReservationForUpdate(ctx context.Context, id uint64) (*Reservation, error) {
	r, okR := t.reservations[id]
	if !okR {
		return nil, fmt.Errorf("reservation %d: %w", id, ErrNotFound)
	}
	return r, nil
}

func (t *memoryTx) UpdateReservation(ctx context.Context, r *Reservation) error {
	if _, okR := t.reservations[r.ID]; !okR {
		return fmt.Errorf("reservation %d: %w", r.ID, ErrNotFound)
	}
	t.reservations[r.ID] = copyReservation(r)
	return nil
}

func (t *memoryTx) DeleteReservation(ctx context.Context, id uint64) error {
	if _, okR := t.reservations[id]; !okR {
		return fmt.Errorf("reservation %d: %w", id, ErrNotFound)
	}
	delete(t.reservations, id)
	return nil
}
