package repository

import (
	"context"
	"database/sql"

	"github.com/kuadra/cocheras-api/internal/model"
)

// DistrictRepo provides access to the 'distritos' table.
type DistrictRepo struct{ DB *sql.DB }

func NewDistrictRepo(db *sql.DB) *DistrictRepo { return &DistrictRepo{DB: db} }

const districtColumns = `id_distrito, nombre, codigo_postal, ciudad, provincia, pais, fecha_creacion, fecha_actualizacion`

func scanDistrict(scan func(...any) error) (model.District, error) {
	var d model.District
	var postal, city, province, country sql.NullString
	err := scan(&d.ID, &d.Name, &postal, &city, &province, &country, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return d, err
	}
	d.PostalCode = postal.String
	d.City = city.String
	d.Province = province.String
	d.Country = country.String
	return d, nil
}

// List returns all districts ordered by name.
func (r *DistrictRepo) List(ctx context.Context) ([]model.District, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+districtColumns+" FROM distritos ORDER BY nombre")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.District, 0)
	for rows.Next() {
		d, err := scanDistrict(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID returns one district or ErrNotFound.
func (r *DistrictRepo) GetByID(ctx context.Context, id uint64) (model.District, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+districtColumns+" FROM distritos WHERE id_distrito = ?", id)
	d, err := scanDistrict(row.Scan)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

// Create inserts a district and fills its generated fields.
func (r *DistrictRepo) Create(ctx context.Context, d *model.District) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO distritos (nombre, codigo_postal, ciudad, provincia, pais) VALUES (?,?,?,?,?)",
		d.Name, d.PostalCode, d.City, d.Province, d.Country)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = uint64(id)
	got, err := r.GetByID(ctx, d.ID)
	if err != nil {
		return err
	}
	*d = got
	return nil
}

// Update replaces the mutable fields of a district.
func (r *DistrictRepo) Update(ctx context.Context, d model.District) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE distritos SET nombre=?, codigo_postal=?, ciudad=?, provincia=?, pais=?, fecha_actualizacion=NOW()
		 WHERE id_distrito=?`,
		d.Name, d.PostalCode, d.City, d.Province, d.Country, d.ID)
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

// Delete removes a district unless spaces still reference it, in
// which case ErrConflict is returned.
func (r *DistrictRepo) Delete(ctx context.Context, id uint64) error {
	var inUse bool
	err := r.DB.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM cocheras WHERE id_distrito = ?)", id).Scan(&inUse)
	if err != nil {
		return err
	}
	if inUse {
		return ErrConflict
	}
	res, err := r.DB.ExecContext(ctx, "DELETE FROM distritos WHERE id_distrito = ?", id)
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
