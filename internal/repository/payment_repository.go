package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/kuadra/cocheras-api/internal/model"
)

// PaymentRepo provides access to the 'pagos' table. Payments are
// created by the payment workflow and looked up by the opaque
// provider reference during confirmation.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

func (r *PaymentRepo) DB() *sql.DB { return r.db }

const pagoColumns = `id_pago, id_reserva, id_usuario, monto_cents, metodo_pago, referencia_pago, estado, fecha_pago, fecha_creacion, fecha_actualizacion`

func scanPago(scan func(...any) error) (model.Payment, error) {
	var p model.Payment
	var paidAt sql.NullTime
	err := scan(&p.ID, &p.ReservaID, &p.UserID, &p.AmountCents, &p.Method,
		&p.Reference, &p.Status, &paidAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	return p, nil
}

// CreateTx inserts a payment row within an existing transaction and
// queries it back to fill generated fields.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	const q = `INSERT INTO pagos (id_reserva, id_usuario, monto_cents, metodo_pago, referencia_pago, estado, fecha_pago)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, p.ReservaID, p.UserID, p.AmountCents,
		p.Method, p.Reference, p.Status, p.PaidAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	row := tx.QueryRowContext(ctx, "SELECT "+pagoColumns+" FROM pagos WHERE id_pago = ?", p.ID)
	got, err := scanPago(row.Scan)
	if err != nil {
		return err
	}
	*p = got
	return nil
}

// GetByReferenceTx loads a payment by its provider reference inside a
// transaction, locking the row for the confirmation update.
func (r *PaymentRepo) GetByReferenceTx(ctx context.Context, tx *sql.Tx, reference string) (model.Payment, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+pagoColumns+" FROM pagos WHERE referencia_pago = ? LIMIT 1 FOR UPDATE", reference)
	p, err := scanPago(row.Scan)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// MarkCompletedTx transitions a payment to completado and stamps
// fecha_pago.
func (r *PaymentRepo) MarkCompletedTx(ctx context.Context, tx *sql.Tx, id uint64, paidAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE pagos SET estado = ?, fecha_pago = ?, fecha_actualizacion = NOW() WHERE id_pago = ?",
		model.PaymentCompleted, paidAt, id)
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

// ListByUser returns the user's payments, newest first.
func (r *PaymentRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+pagoColumns+" FROM pagos WHERE id_usuario = ? ORDER BY fecha_creacion DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Payment, 0)
	for rows.Next() {
		p, err := scanPago(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
