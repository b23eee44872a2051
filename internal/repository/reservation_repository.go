package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/kuadra/cocheras-api/internal/model"
)

// ReservationRepo provides CRUD operations for reservas and the
// availability check they depend on. A reservation books one space
// for one time window; the non-overlap invariant for a space is
// enforced by running OverlapExistsTx and the subsequent insert or
// update inside the same transaction, with the candidate rows locked
// FOR UPDATE so two concurrent bookings of the same space serialize
// on the database.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions
// that span multiple repositories.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const reservaColumns = `id_reserva, id_usuario, id_cochera, fecha_inicio, fecha_fin, estado, creada_en, actualizada_en`

func scanReserva(scan func(...any) error) (model.Reservation, error) {
	var res model.Reservation
	err := scan(&res.ID, &res.UserID, &res.SpaceID, &res.StartsAt, &res.EndsAt,
		&res.Status, &res.CreatedAt, &res.UpdatedAt)
	return res, err
}

// OverlapExistsTx reports whether any non-cancelled reservation for
// the space intersects the closed interval [start,end]. excludeID
// skips one reservation, used when moving an existing booking; pass 0
// to consider all rows. The matching rows are selected FOR UPDATE so
// the caller's transaction holds them until commit.
func (r *ReservationRepo) OverlapExistsTx(ctx context.Context, tx *sql.Tx, spaceID uint64, start, end time.Time, excludeID uint64) (bool, error) {
	const q = `SELECT id_reserva FROM reservas
	           WHERE id_cochera = ? AND id_reserva <> ? AND estado <> ?
	             AND fecha_inicio <= ? AND fecha_fin >= ?
	           LIMIT 1 FOR UPDATE`
	var id uint64
	err := tx.QueryRowContext(ctx, q, spaceID, excludeID, model.ReservationCancelled, end, start).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateTx inserts a new reservation in estado pendiente within the
// scope of an existing transaction and queries the row back to
// populate generated timestamps. The caller must commit or rollback.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservas (id_usuario, id_cochera, fecha_inicio, fecha_fin, estado) VALUES (?, ?, ?, ?, ?)`
	res.Status = model.ReservationPending
	result, err := tx.ExecContext(ctx, q, res.UserID, res.SpaceID, res.StartsAt, res.EndsAt, res.Status)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	row := tx.QueryRowContext(ctx, "SELECT "+reservaColumns+" FROM reservas WHERE id_reserva = ?", res.ID)
	got, err := scanReserva(row.Scan)
	if err != nil {
		return err
	}
	*res = got
	return nil
}

// GetByID returns one reservation regardless of caller.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+reservaColumns+" FROM reservas WHERE id_reserva = ?", id)
	res, err := scanReserva(row.Scan)
	if err == sql.ErrNoRows {
		return res, ErrNotFound
	}
	return res, err
}

// GetByIDTx is GetByID inside a transaction, locking the row so the
// subsequent status or window update cannot race a concurrent writer.
func (r *ReservationRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Reservation, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+reservaColumns+" FROM reservas WHERE id_reserva = ? FOR UPDATE", id)
	res, err := scanReserva(row.Scan)
	if err == sql.ErrNoRows {
		return res, ErrNotFound
	}
	return res, err
}

// UpdateStatusTx sets estado and stamps actualizada_en.
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.ReservationStatus) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE reservas SET estado = ?, actualizada_en = NOW() WHERE id_reserva = ?", status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateWindowTx moves the reservation to a new time window. The
// caller is responsible for having run OverlapExistsTx first within
// the same transaction.
func (r *ReservationRepo) UpdateWindowTx(ctx context.Context, tx *sql.Tx, id uint64, start, end time.Time) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE reservas SET fecha_inicio = ?, fecha_fin = ?, actualizada_en = NOW() WHERE id_reserva = ?",
		start, end, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReservationDetail is a reservation joined with its space for
// listings shown to users and owners.
type ReservationDetail struct {
	ID        uint64                  `json:"id"`
	UserID    uint64                  `json:"user_id"`
	SpaceID   uint64                  `json:"space_id"`
	Address   string                  `json:"address"`
	StartsAt  time.Time               `json:"starts_at"`
	EndsAt    time.Time               `json:"ends_at"`
	Status    model.ReservationStatus `json:"status"`
	CreatedAt time.Time               `json:"created_at"`
}

// ListByUser returns all reservations the user booked, newest first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]ReservationDetail, error) {
	const q = `SELECT r.id_reserva, r.id_usuario, r.id_cochera, c.direccion,
	                  r.fecha_inicio, r.fecha_fin, r.estado, r.creada_en
	           FROM reservas r
	           JOIN cocheras c ON c.id_cochera = r.id_cochera
	           WHERE r.id_usuario = ?
	           ORDER BY r.creada_en DESC`
	return r.listDetails(ctx, q, userID)
}

// ListByOwner returns all reservations placed on spaces the owner
// holds, newest first.
func (r *ReservationRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]ReservationDetail, error) {
	const q = `SELECT r.id_reserva, r.id_usuario, r.id_cochera, c.direccion,
	                  r.fecha_inicio, r.fecha_fin, r.estado, r.creada_en
	           FROM reservas r
	           JOIN cocheras c ON c.id_cochera = r.id_cochera
	           WHERE c.id_dueno = ?
	           ORDER BY r.creada_en DESC`
	return r.listDetails(ctx, q, ownerID)
}

func (r *ReservationRepo) listDetails(ctx context.Context, q string, arg any) ([]ReservationDetail, error) {
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]ReservationDetail, 0)
	for rows.Next() {
		var d ReservationDetail
		if err := rows.Scan(&d.ID, &d.UserID, &d.SpaceID, &d.Address,
			&d.StartsAt, &d.EndsAt, &d.Status, &d.CreatedAt); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

// HasActiveForSpace reports whether the space still has pendiente or
// confirmada reservations that end in the future. Space deletion and
// owner-assignment removal refuse to proceed while this holds.
func (r *ReservationRepo) HasActiveForSpace(ctx context.Context, spaceID uint64, now time.Time) (bool, error) {
	const q = `SELECT EXISTS(
	             SELECT 1 FROM reservas
	             WHERE id_cochera = ? AND estado IN (?, ?) AND fecha_fin >= ?)`
	var exists bool
	err := r.db.QueryRowContext(ctx, q, spaceID,
		model.ReservationPending, model.ReservationConfirmed, now).Scan(&exists)
	return exists, err
}

// HasCompletedForUser reports whether the user ever completed a
// reservation on the space. Reviews without an explicit reservation
// reference require this.
func (r *ReservationRepo) HasCompletedForUser(ctx context.Context, userID, spaceID uint64) (bool, error) {
	const q = `SELECT EXISTS(
	             SELECT 1 FROM reservas
	             WHERE id_usuario = ? AND id_cochera = ? AND estado = ?)`
	var exists bool
	err := r.db.QueryRowContext(ctx, q, userID, spaceID, model.ReservationCompleted).Scan(&exists)
	return exists, err
}
