package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/autoparc/fleet-reservation/internal/ledger"
)

// LedgerStore is the MySQL implementation of ledger.Store.  Vehicles
// live in the 'vehicles' table keyed by code; reservations span the
// 'reservations' and 'reservation_items' tables.  All timestamp fields
// are stored in UTC.
type LedgerStore struct {
	db *sql.DB
}

// NewLedgerStore returns a LedgerStore bound to the given database.
func NewLedgerStore(db *sql.DB) *LedgerStore { return &LedgerStore{db: db} }

// querier is the subset of *sql.DB / *sql.Tx the scan helpers need.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const vehicleColumns = `code, designation, category, make, model, serial_number,
	old_asset_tag, new_asset_tag, inventory_date, description, daily_price_cents,
	fuel_type, transmission, image, status,
	qty_total, qty_available, qty_broken, qty_in_repair, qty_unavailable, qty_lost,
	notes, created_at, updated_at`

func scanVehicle(scan func(dest ...any) error) (*ledger.Vehicle, error) {
	var (
		v     ledger.Vehicle
		image sql.NullString
		notes sql.NullString
	)
	err := scan(
		&v.Code, &v.Designation, &v.Category, &v.Make, &v.Model, &v.SerialNumber,
		&v.OldAssetTag, &v.NewAssetTag, &v.InventoryDate, &v.Description, &v.DailyPriceCents,
		&v.FuelType, &v.Transmission, &image, &v.Status,
		&v.Quantities.Total, &v.Quantities.Available, &v.Quantities.Broken,
		&v.Quantities.InRepair, &v.Quantities.Unavailable, &v.Quantities.Lost,
		&notes, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	if image.Valid {
		img := image.String
		v.Image = &img
	}
	if notes.Valid {
		n := notes.String
		v.Notes = &n
	}
	return &v, nil
}

func getVehicle(ctx context.Context, q querier, code, suffix string) (*ledger.Vehicle, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+vehicleColumns+" FROM vehicles WHERE code=?"+suffix, code)
	return scanVehicle(row.Scan)
}

const reservationColumns = `id, requester_name, requester_email, starts_at, ends_at,
	purpose, status, approved_by, approved_at, rejected_by, rejected_at, returned_at,
	created_at, updated_at`

func scanReservation(scan func(dest ...any) error) (*ledger.Reservation, error) {
	var (
		r          ledger.Reservation
		approvedBy sql.NullString
		approvedAt sql.NullTime
		rejectedBy sql.NullString
		rejectedAt sql.NullTime
		returnedAt sql.NullTime
	)
	err := scan(
		&r.ID, &r.RequesterName, &r.RequesterEmail, &r.StartsAt, &r.EndsAt,
		&r.Purpose, &r.Status, &approvedBy, &approvedAt, &rejectedBy, &rejectedAt,
		&returnedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	if approvedBy.Valid {
		s := approvedBy.String
		r.ApprovedBy = &s
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		r.ApprovedAt = &t
	}
	if rejectedBy.Valid {
		s := rejectedBy.String
		r.RejectedBy = &s
	}
	if rejectedAt.Valid {
		t := rejectedAt.Time
		r.RejectedAt = &t
	}
	if returnedAt.Valid {
		t := returnedAt.Time
		r.ReturnedAt = &t
	}
	return &r, nil
}

func loadItems(ctx context.Context, q querier, reservationIDs []uint64) (map[uint64][]ledger.LineItem, error) {
	if len(reservationIDs) == 0 {
		return map[uint64][]ledger.LineItem{}, nil
	}
	placeholders := make([]string, len(reservationIDs))
	args := make([]any, len(reservationIDs))
	for i, id := range reservationIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	rows, err := q.QueryContext(ctx,
		`SELECT reservation_id, vehicle_code, designation, quantity, status
		 FROM reservation_items
		 WHERE reservation_id IN (`+strings.Join(placeholders, ",")+`)
		 ORDER BY reservation_id, vehicle_code`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64][]ledger.LineItem, len(reservationIDs))
	for rows.Next() {
		var (
			rid  uint64
			item ledger.LineItem
		)
		if err := rows.Scan(&rid, &item.VehicleCode, &item.Designation, &item.Quantity, &item.Status); err != nil {
			return nil, err
		}
		out[rid] = append(out[rid], item)
	}
	return out, rows.Err()
}

func getReservation(ctx context.Context, q querier, id uint64, suffix string) (*ledger.Reservation, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE id=?"+suffix, id)
	res, err := scanReservation(row.Scan)
	if err != nil {
		return nil, err
	}
	items, err := loadItems(ctx, q, []uint64{id})
	if err != nil {
		return nil, err
	}
	res.Items = items[id]
	return res, nil
}

// WithinTx runs fn inside a single database transaction.
func (s *LedgerStore) WithinTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = dbTx.Rollback()
		}
	}()
	if err := fn(&ledgerTx{tx: dbTx}); err != nil {
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Vehicle loads one vehicle by code.
func (s *LedgerStore) Vehicle(ctx context.Context, code string) (*ledger.Vehicle, error) {
	return getVehicle(ctx, s.db, code, "")
}

// ListVehicles returns vehicles matching the filter, ordered by code.
func (s *LedgerStore) ListVehicles(ctx context.Context, f ledger.VehicleFilter) ([]*ledger.Vehicle, error) {
	query := "SELECT " + vehicleColumns + " FROM vehicles"
	var (
		conds []string
		args  []any
	)
	if f.Category != "" {
		conds = append(conds, "category=?")
		args = append(args, f.Category)
	}
	if f.Status != "" {
		conds = append(conds, "status=?")
		args = append(args, string(f.Status))
	}
	if f.OnlyAvailable {
		conds = append(conds, "qty_available > 0")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY code"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*ledger.Vehicle, 0)
	for rows.Next() {
		v, err := scanVehicle(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Categories returns the distinct non-empty vehicle categories.
func (s *LedgerStore) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT category FROM vehicles WHERE category <> '' ORDER BY category")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Reservation loads one reservation with its line items.
func (s *LedgerStore) Reservation(ctx context.Context, id uint64) (*ledger.Reservation, error) {
	return getReservation(ctx, s.db, id, "")
}

// ListReservations returns reservations matching the filter, newest
// first, with their line items populated.
func (s *LedgerStore) ListReservations(ctx context.Context, f ledger.ReservationFilter) ([]*ledger.Reservation, error) {
	query := `SELECT DISTINCT r.id, r.requester_name, r.requester_email, r.starts_at, r.ends_at,
		r.purpose, r.status, r.approved_by, r.approved_at, r.rejected_by, r.rejected_at,
		r.returned_at, r.created_at, r.updated_at FROM reservations r`
	var (
		conds []string
		args  []any
	)
	if f.VehicleCode != "" {
		query += " JOIN reservation_items ri ON ri.reservation_id = r.id"
		conds = append(conds, "ri.vehicle_code=?")
		args = append(args, f.VehicleCode)
	}
	if f.RequesterEmail != "" {
		conds = append(conds, "r.requester_email=?")
		args = append(args, f.RequesterEmail)
	}
	if len(f.Statuses) > 0 {
		ph := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			ph[i] = "?"
			args = append(args, string(st))
		}
		conds = append(conds, "r.status IN ("+strings.Join(ph, ",")+")")
	}
	for _, st := range f.ExcludeStatuses {
		conds = append(conds, "r.status <> ?")
		args = append(args, string(st))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY r.created_at DESC, r.id DESC"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*ledger.Reservation, 0)
	index := make(map[uint64]int)
	ids := make([]uint64, 0)
	for rows.Next() {
		r, err := scanReservation(rows.Scan)
		if err != nil {
			return nil, err
		}
		index[r.ID] = len(out)
		ids = append(ids, r.ID)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	items, err := loadItems(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for id, its := range items {
		out[index[id]].Items = its
	}
	return out, nil
}

// ledgerTx implements ledger.Tx on top of one *sql.Tx.
type ledgerTx struct {
	tx *sql.Tx
}

func (t *ledgerTx) VehicleForUpdate(ctx context.Context, code string) (*ledger.Vehicle, error) {
	return getVehicle(ctx, t.tx, code, " FOR UPDATE")
}

func (t *ledgerTx) SetVehicleQuantities(ctx context.Context, code string, q ledger.QuantitySet, status ledger.VehicleStatus) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE vehicles SET qty_total=?, qty_available=?, qty_broken=?, qty_in_repair=?,
			qty_unavailable=?, qty_lost=?, status=?, updated_at=NOW() WHERE code=?`,
		q.Total, q.Available, q.Broken, q.InRepair, q.Unavailable, q.Lost, string(status), code)
	if err != nil {
		return err
	}
	return requireRow(res, code)
}

func (t *ledgerTx) OutstandingQuantity(ctx context.Context, code string) (int32, error) {
	var out int32
	err := t.tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(ri.quantity), 0)
		 FROM reservation_items ri
		 JOIN reservations r ON r.id = ri.reservation_id
		 WHERE ri.vehicle_code=? AND ri.status IN (?,?)`,
		code, string(ledger.StatusPending), string(ledger.StatusApproved)).Scan(&out)
	return out, err
}

func (t *ledgerTx) InsertVehicle(ctx context.Context, v *ledger.Vehicle) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO vehicles (`+vehicleColumns+`)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		v.Code, v.Designation, v.Category, v.Make, v.Model, v.SerialNumber,
		v.OldAssetTag, v.NewAssetTag, v.InventoryDate, v.Description, v.DailyPriceCents,
		v.FuelType, v.Transmission, v.Image, string(v.Status),
		v.Quantities.Total, v.Quantities.Available, v.Quantities.Broken,
		v.Quantities.InRepair, v.Quantities.Unavailable, v.Quantities.Lost,
		v.Notes, v.CreatedAt, v.UpdatedAt)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "1062") {
		return fmt.Errorf("vehicle %s: %w", v.Code, ledger.ErrVehicleExists)
	}
	return err
}

func (t *ledgerTx) UpdateVehicle(ctx context.Context, v *ledger.Vehicle) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE vehicles SET designation=?, category=?, make=?, model=?, serial_number=?,
			old_asset_tag=?, new_asset_tag=?, inventory_date=?, description=?,
			daily_price_cents=?, fuel_type=?, transmission=?, image=?, status=?,
			notes=?, updated_at=? WHERE code=?`,
		v.Designation, v.Category, v.Make, v.Model, v.SerialNumber,
		v.OldAssetTag, v.NewAssetTag, v.InventoryDate, v.Description,
		v.DailyPriceCents, v.FuelType, v.Transmission, v.Image, string(v.Status),
		v.Notes, v.UpdatedAt, v.Code)
	if err != nil {
		return err
	}
	return requireRow(res, v.Code)
}

func (t *ledgerTx) DeleteVehicle(ctx context.Context, code string) error {
	res, err := t.tx.ExecContext(ctx, "DELETE FROM vehicles WHERE code=?", code)
	if err != nil {
		return err
	}
	return requireRow(res, code)
}

func (t *ledgerTx) DeleteReservationsByVehicle(ctx context.Context, code string) (int64, error) {
	// Items of the doomed reservations go first, then the parent rows.
	rows, err := t.tx.QueryContext(ctx,
		"SELECT DISTINCT reservation_id FROM reservation_items WHERE vehicle_code=?", code)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	ids := make([]uint64, 0)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	in := strings.Join(placeholders, ",")
	if _, err := t.tx.ExecContext(ctx,
		"DELETE FROM reservation_items WHERE reservation_id IN ("+in+")", args...); err != nil {
		return 0, err
	}
	if _, err := t.tx.ExecContext(ctx,
		"DELETE FROM reservations WHERE id IN ("+in+")", args...); err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

func (t *ledgerTx) InsertReservation(ctx context.Context, r *ledger.Reservation) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO reservations (requester_name, requester_email, starts_at, ends_at,
			purpose, status, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		r.RequesterName, r.RequesterEmail, r.StartsAt, r.EndsAt,
		r.Purpose, string(r.Status), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = uint64(id)
	if len(r.Items) == 0 {
		return nil
	}
	query := "INSERT INTO reservation_items (reservation_id, vehicle_code, designation, quantity, status) VALUES "
	args := make([]any, 0, len(r.Items)*5)
	for i, it := range r.Items {
		if i > 0 {
			query += ","
		}
		query += "(?,?,?,?,?)"
		args = append(args, r.ID, it.VehicleCode, it.Designation, it.Quantity, string(it.Status))
	}
	_, err = t.tx.ExecContext(ctx, query, args...)
	return err
}

func (t *ledgerTx) ReservationForUpdate(ctx context.Context, id uint64) (*ledger.Reservation, error) {
	return getReservation(ctx, t.tx, id, " FOR UPDATE")
}

func (t *ledgerTx) UpdateReservation(ctx context.Context, r *ledger.Reservation) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE reservations SET status=?, approved_by=?, approved_at=?, rejected_by=?,
			rejected_at=?, returned_at=?, updated_at=? WHERE id=?`,
		string(r.Status), r.ApprovedBy, r.ApprovedAt, r.RejectedBy,
		r.RejectedAt, r.ReturnedAt, r.UpdatedAt, r.ID)
	if err != nil {
		return err
	}
	if err := requireRow(res, fmt.Sprintf("%d", r.ID)); err != nil {
		return err
	}
	for _, it := range r.Items {
		if _, err := t.tx.ExecContext(ctx,
			"UPDATE reservation_items SET status=? WHERE reservation_id=? AND vehicle_code=?",
			string(it.Status), r.ID, it.VehicleCode); err != nil {
			return err
		}
	}
	return nil
}

func (t *ledgerTx) DeleteReservation(ctx context.Context, id uint64) error {
	if _, err := t.tx.ExecContext(ctx,
		"DELETE FROM reservation_items WHERE reservation_id=?", id); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, "DELETE FROM reservations WHERE id=?", id)
	if err != nil {
		return err
	}
	return requireRow(res, fmt.Sprintf("%d", id))
}

func requireRow(res sql.Result, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", key, ledger.ErrNotFound)
	}
	return nil
}
