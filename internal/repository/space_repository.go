package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/kuadra/cocheras-api/internal/model"
)

// SpaceRepo provides access to the 'cocheras' table, including the
// filtered public search used by the browse endpoints.
type SpaceRepo struct {
	db *sql.DB
}

// NewSpaceRepo returns a new SpaceRepo bound to the given database.
func NewSpaceRepo(db *sql.DB) *SpaceRepo { return &SpaceRepo{db: db} }

func (r *SpaceRepo) DB() *sql.DB { return r.db }

const spaceColumns = `id_cochera, id_distrito, id_dueno, direccion, capacidad, precio_hora_cents, disponible, descripcion, hora_apertura, hora_cierre, fecha_registro, fecha_actualizacion`

func scanSpace(scan func(...any) error) (model.Space, error) {
	var s model.Space
	var districtID sql.NullInt64
	var desc, opens, closes sql.NullString
	err := scan(&s.ID, &districtID, &s.OwnerID, &s.Address, &s.Capacity,
		&s.PriceCentsPerHour, &s.Available, &desc, &opens, &closes,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return s, err
	}
	if districtID.Valid {
		id := uint64(districtID.Int64)
		s.DistrictID = &id
	}
	s.Description = desc.String
	if opens.Valid {
		v := opens.String
		s.OpensAt = &v
	}
	if closes.Valid {
		v := closes.String
		s.ClosesAt = &v
	}
	return s, nil
}

// GetByID returns one space or ErrNotFound.
func (r *SpaceRepo) GetByID(ctx context.Context, id uint64) (model.Space, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+spaceColumns+" FROM cocheras WHERE id_cochera = ?", id)
	s, err := scanSpace(row.Scan)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

// ListByOwner returns every space the owner manages, including the
// unavailable ones.
func (r *SpaceRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Space, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+spaceColumns+" FROM cocheras WHERE id_dueno = ? ORDER BY id_cochera", ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	spaces := make([]model.Space, 0)
	for rows.Next() {
		s, err := scanSpace(rows.Scan)
		if err != nil {
			return nil, err
		}
		spaces = append(spaces, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return spaces, nil
}

// Create inserts a space owned by ownerID and populates the generated
// id and timestamps on the given model.
func (r *SpaceRepo) Create(ctx context.Context, s *model.Space) error {
	const q = `INSERT INTO cocheras (id_distrito, id_dueno, direccion, capacidad, precio_hora_cents, disponible, descripcion, hora_apertura, hora_cierre)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.DistrictID, s.OwnerID, s.Address,
		s.Capacity, s.PriceCentsPerHour, s.Available, s.Description, s.OpensAt, s.ClosesAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	row := r.db.QueryRowContext(ctx, "SELECT "+spaceColumns+" FROM cocheras WHERE id_cochera = ?", s.ID)
	got, err := scanSpace(row.Scan)
	if err != nil {
		return err
	}
	*s = got
	return nil
}

// SpacePatch carries the optional fields of a partial update; nil
// pointers leave the column untouched.
type SpacePatch struct {
	DistrictID *uint64
	Address    *string
	Capacity   *uint32
	PriceCents *uint32
	Available  *bool
	Descr      *string
	OpensAt    *string
	ClosesAt   *string
}

// Update applies a patch to a space. It builds the SET clause from
// the provided fields only, the way the original PATCH endpoint
// updates column by column.
func (r *SpaceRepo) Update(ctx context.Context, id uint64, p SpacePatch) error {
	sets := make([]string, 0, 9)
	args := make([]any, 0, 10)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.DistrictID != nil {
		add("id_distrito", *p.DistrictID)
	}
	if p.Address != nil {
		add("direccion", *p.Address)
	}
	if p.Capacity != nil {
		add("capacidad", *p.Capacity)
	}
	if p.PriceCents != nil {
		add("precio_hora_cents", *p.PriceCents)
	}
	if p.Available != nil {
		add("disponible", *p.Available)
	}
	if p.Descr != nil {
		add("descripcion", *p.Descr)
	}
	if p.OpensAt != nil {
		add("hora_apertura", *p.OpensAt)
	}
	if p.ClosesAt != nil {
		add("hora_cierre", *p.ClosesAt)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "fecha_actualizacion = NOW()")
	args = append(args, id)
	q := "UPDATE cocheras SET " + strings.Join(sets, ", ") + " WHERE id_cochera = ?"
	res, err := r.db.ExecContext(ctx, q, args...)
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

// SetAvailability flips the disponible flag.
func (r *SpaceRepo) SetAvailability(ctx context.Context, id uint64, available bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE cocheras SET disponible = ?, fecha_actualizacion = NOW() WHERE id_cochera = ?",
		available, id)
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

// Delete removes a space. Callers must have already verified that no
// active reservation references it.
func (r *SpaceRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM cocheras WHERE id_cochera = ?", id)
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

// ClaimOwnerIfUnset backfills cocheras.id_dueno when the column is
// still zero. Used by the owner-assignment flow; the assignment table
// and the column are deliberately both kept.
func (r *SpaceRepo) ClaimOwnerIfUnset(ctx context.Context, spaceID, userID uint64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE cocheras SET id_dueno = ?, fecha_actualizacion = NOW() WHERE id_cochera = ? AND id_dueno = 0",
		userID, spaceID)
	return err
}

// AverageRating returns the mean calificacion over all reviews of a
// space, 0 when it has none.
func (r *SpaceRepo) AverageRating(ctx context.Context, id uint64) (float64, error) {
	var avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx,
		"SELECT AVG(calificacion) FROM resenas WHERE id_cochera = ?", id).Scan(&avg)
	if err != nil {
		return 0, err
	}
	return avg.Float64, nil
}

// SearchFilter carries the optional predicates of the public search.
// Zero-valued pointers mean "no filter". When both From and To are
// set, spaces with a non-cancelled reservation overlapping the window
// are excluded, reusing the same closed-interval test the booking
// path enforces.
type SearchFilter struct {
	DistrictID    *uint64
	MinPriceCents *uint32
	MaxPriceCents *uint32
	Capacity      *uint32
	From          *time.Time
	To            *time.Time
	OrderBy       string // precio_asc (default), precio_desc, calificacion
	Page          int
	PerPage       int
}

// Search returns available spaces matching the filter plus the total
// number of matches before pagination, for the X-Total-Count header.
func (r *SpaceRepo) Search(ctx context.Context, f SearchFilter) ([]model.Space, int, error) {
	where := []string{"c.disponible = TRUE"}
	args := []any{}
	if f.DistrictID != nil {
		where = append(where, "c.id_distrito = ?")
		args = append(args, *f.DistrictID)
	}
	if f.MinPriceCents != nil {
		where = append(where, "c.precio_hora_cents >= ?")
		args = append(args, *f.MinPriceCents)
	}
	if f.MaxPriceCents != nil {
		where = append(where, "c.precio_hora_cents <= ?")
		args = append(args, *f.MaxPriceCents)
	}
	if f.Capacity != nil {
		where = append(where, "c.capacidad >= ?")
		args = append(args, *f.Capacity)
	}
	if f.From != nil && f.To != nil {
		where = append(where, `NOT EXISTS (
		    SELECT 1 FROM reservas r
		    WHERE r.id_cochera = c.id_cochera AND r.estado <> ?
		      AND r.fecha_inicio <= ? AND r.fecha_fin >= ?)`)
		args = append(args, model.ReservationCancelled, *f.To, *f.From)
	}
	cond := strings.Join(where, " AND ")

	var total int
	countQ := "SELECT COUNT(*) FROM cocheras c WHERE " + cond
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "c.precio_hora_cents ASC"
	switch f.OrderBy {
	case "precio_desc":
		order = "c.precio_hora_cents DESC"
	case "calificacion":
		order = "(SELECT AVG(rv.calificacion) FROM resenas rv WHERE rv.id_cochera = c.id_cochera) DESC"
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	perPage := f.PerPage
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}
	q := "SELECT " + spaceColumns + " FROM cocheras c WHERE " + cond +
		" ORDER BY " + order + " LIMIT ? OFFSET ?"
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	spaces := make([]model.Space, 0)
	for rows.Next() {
		s, err := scanSpace(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		spaces = append(spaces, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return spaces, total, nil
}
