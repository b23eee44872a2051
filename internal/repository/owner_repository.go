package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/kuadra/cocheras-api/internal/model"
)

// OwnerRepo provides access to the 'duenos_cocheras' assignment
// table. The schema carries space ownership twice, as the
// cocheras.id_dueno column and as assignment rows here; this
// repository maintains the rows and backfills the column when it is
// still unset, without declaring either side authoritative.
type OwnerRepo struct{ DB *sql.DB }

func NewOwnerRepo(db *sql.DB) *OwnerRepo { return &OwnerRepo{DB: db} }

// ListByUser returns the user's assignments.
func (r *OwnerRepo) ListByUser(ctx context.Context, userID uint64) ([]model.OwnerAssignment, error) {
	return r.list(ctx,
		"SELECT id, id_usuario, id_cochera, fecha_asignacion FROM duenos_cocheras WHERE id_usuario = ? ORDER BY fecha_asignacion DESC",
		userID)
}

// ListBySpace returns the assignments on a space.
func (r *OwnerRepo) ListBySpace(ctx context.Context, spaceID uint64) ([]model.OwnerAssignment, error) {
	return r.list(ctx,
		"SELECT id, id_usuario, id_cochera, fecha_asignacion FROM duenos_cocheras WHERE id_cochera = ? ORDER BY fecha_asignacion DESC",
		spaceID)
}

func (r *OwnerRepo) list(ctx context.Context, q string, arg any) ([]model.OwnerAssignment, error) {
	rows, err := r.DB.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.OwnerAssignment, 0)
	for rows.Next() {
		var a model.OwnerAssignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.SpaceID, &a.AssignedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one assignment or ErrNotFound.
func (r *OwnerRepo) Get(ctx context.Context, id uint64) (model.OwnerAssignment, error) {
	var a model.OwnerAssignment
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, id_usuario, id_cochera, fecha_asignacion FROM duenos_cocheras WHERE id = ?",
		id).Scan(&a.ID, &a.UserID, &a.SpaceID, &a.AssignedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

// Find returns the assignment for a (user, space) pair if one exists.
func (r *OwnerRepo) Find(ctx context.Context, userID, spaceID uint64) (model.OwnerAssignment, error) {
	var a model.OwnerAssignment
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, id_usuario, id_cochera, fecha_asignacion FROM duenos_cocheras WHERE id_usuario = ? AND id_cochera = ? LIMIT 1",
		userID, spaceID).Scan(&a.ID, &a.UserID, &a.SpaceID, &a.AssignedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

// Assign creates the assignment for a (user, space) pair, returning
// the existing row unchanged when one is already present.
func (r *OwnerRepo) Assign(ctx context.Context, userID, spaceID uint64, at time.Time) (model.OwnerAssignment, error) {
	if existing, err := r.Find(ctx, userID, spaceID); err == nil {
		return existing, nil
	} else if err != ErrNotFound {
		return model.OwnerAssignment{}, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO duenos_cocheras (id_usuario, id_cochera, fecha_asignacion) VALUES (?,?,?)",
		userID, spaceID, at)
	if err != nil {
		return model.OwnerAssignment{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.OwnerAssignment{}, err
	}
	return model.OwnerAssignment{ID: uint64(id), UserID: userID, SpaceID: spaceID, AssignedAt: at}, nil
}

// Remove deletes an assignment.
func (r *OwnerRepo) Remove(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM duenos_cocheras WHERE id = ?", id)
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
