package repository

import (
	"context"
	"database/sql"

	"github.com/kuadra/cocheras-api/internal/model"
)

// ReviewRepo provides access to the 'resenas' table. Uniqueness of
// one review per (user, reservation) or per (user, space) is checked
// here; the eligibility rule (the user must have completed a
// reservation on the space) lives in the handler because it spans the
// reservas table.
type ReviewRepo struct{ DB *sql.DB }

func NewReviewRepo(db *sql.DB) *ReviewRepo { return &ReviewRepo{DB: db} }

const reviewColumns = `id_review, id_usuario, id_cochera, id_reserva, calificacion, comentario, fecha_review, fecha_actualizacion`

func scanReview(scan func(...any) error) (model.Review, error) {
	var rv model.Review
	var reservaID sql.NullInt64
	var comment sql.NullString
	err := scan(&rv.ID, &rv.UserID, &rv.SpaceID, &reservaID, &rv.Rating,
		&comment, &rv.CreatedAt, &rv.UpdatedAt)
	if err != nil {
		return rv, err
	}
	if reservaID.Valid {
		id := uint64(reservaID.Int64)
		rv.ReservaID = &id
	}
	rv.Comment = comment.String
	return rv, nil
}

// List returns reviews optionally filtered by space and/or user,
// newest first.
func (r *ReviewRepo) List(ctx context.Context, spaceID, userID *uint64) ([]model.Review, error) {
	q := "SELECT " + reviewColumns + " FROM resenas WHERE 1=1"
	args := []any{}
	if spaceID != nil {
		q += " AND id_cochera = ?"
		args = append(args, *spaceID)
	}
	if userID != nil {
		q += " AND id_usuario = ?"
		args = append(args, *userID)
	}
	q += " ORDER BY fecha_review DESC"
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Review, 0)
	for rows.Next() {
		rv, err := scanReview(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID returns one review or ErrNotFound.
func (r *ReviewRepo) GetByID(ctx context.Context, id uint64) (model.Review, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+reviewColumns+" FROM resenas WHERE id_review = ?", id)
	rv, err := scanReview(row.Scan)
	if err == sql.ErrNoRows {
		return rv, ErrNotFound
	}
	return rv, err
}

// ExistsForReservation reports whether the user already reviewed the
// given reservation.
func (r *ReviewRepo) ExistsForReservation(ctx context.Context, userID, reservaID uint64) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM resenas WHERE id_usuario = ? AND id_reserva = ?)",
		userID, reservaID).Scan(&exists)
	return exists, err
}

// ExistsForSpace reports whether the user already reviewed the space.
func (r *ReviewRepo) ExistsForSpace(ctx context.Context, userID, spaceID uint64) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM resenas WHERE id_usuario = ? AND id_cochera = ?)",
		userID, spaceID).Scan(&exists)
	return exists, err
}

// Create inserts a review and fills its generated fields.
func (r *ReviewRepo) Create(ctx context.Context, rv *model.Review) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO resenas (id_usuario, id_cochera, id_reserva, calificacion, comentario) VALUES (?,?,?,?,?)",
		rv.UserID, rv.SpaceID, rv.ReservaID, rv.Rating, rv.Comment)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rv.ID = uint64(id)
	got, err := r.GetByID(ctx, rv.ID)
	if err != nil {
		return err
	}
	*rv = got
	return nil
}

// Update replaces rating and/or comment of a review.
func (r *ReviewRepo) Update(ctx context.Context, id uint64, rating *uint8, comment *string) error {
	if rating == nil && comment == nil {
		return nil
	}
	q := "UPDATE resenas SET fecha_actualizacion = NOW()"
	args := []any{}
	if rating != nil {
		q += ", calificacion = ?"
		args = append(args, *rating)
	}
	if comment != nil {
		q += ", comentario = ?"
		args = append(args, *comment)
	}
	q += " WHERE id_review = ?"
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, q, args...)
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

// Delete removes a review.
func (r *ReviewRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM resenas WHERE id_review = ?", id)
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
