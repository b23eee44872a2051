package repository

import (
	"context"
	"database/sql"

	"github.com/kuadra/cocheras-api/internal/model"
)

// NotificationRepo provides access to the 'notificaciones' table.
// Rows are appended by workflow side effects and only ever read or
// mutated by their owning user.
type NotificationRepo struct{ DB *sql.DB }

func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{DB: db} }

const notificationColumns = `id_notificacion, id_usuario, titulo, mensaje, tipo, leida, fecha_creacion, fecha_actualizacion`

// CreateTx appends a notification within an existing transaction so
// the rows commit atomically with the workflow that caused them.
func (r *NotificationRepo) CreateTx(ctx context.Context, tx *sql.Tx, n *model.Notification) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO notificaciones (id_usuario, titulo, mensaje, tipo, leida) VALUES (?,?,?,?,?)",
		n.UserID, n.Title, n.Message, n.Kind, n.Read)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	return nil
}

// ListByUser returns the user's notifications, newest first.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Notification, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+notificationColumns+" FROM notificaciones WHERE id_usuario = ? ORDER BY fecha_creacion DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Notification, 0)
	for rows.Next() {
		var n model.Notification
		var kind sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &kind,
			&n.Read, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		n.Kind = kind.String
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ownerOf returns the owning user of a notification, or ErrNotFound.
func (r *NotificationRepo) ownerOf(ctx context.Context, id uint64) (uint64, error) {
	var owner uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT id_usuario FROM notificaciones WHERE id_notificacion = ?", id).Scan(&owner)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return owner, err
}

// MarkRead flags one notification as read. ErrForbidden when the
// caller does not own it.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, callerID uint64) error {
	owner, err := r.ownerOf(ctx, id)
	if err != nil {
		return err
	}
	if owner != callerID {
		return ErrForbidden
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE notificaciones SET leida = TRUE, fecha_actualizacion = NOW() WHERE id_notificacion = ?", id)
	return err
}

// MarkAllRead flags every unread notification of the user as read and
// returns how many rows changed.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE notificaciones SET leida = TRUE, fecha_actualizacion = NOW() WHERE id_usuario = ? AND leida = FALSE",
		userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes one notification. ErrForbidden when the caller does
// not own it.
func (r *NotificationRepo) Delete(ctx context.Context, id, callerID uint64) error {
	owner, err := r.ownerOf(ctx, id)
	if err != nil {
		return err
	}
	if owner != callerID {
		return ErrForbidden
	}
	_, err = r.DB.ExecContext(ctx,
		"DELETE FROM notificaciones WHERE id_notificacion = ?", id)
	return err
}
