package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/kuadra/cocheras-api/internal/model"
	"github.com/kuadra/cocheras-api/internal/utils"
)

// UserRepo provides access to the 'usuarios' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

const userColumns = `id_usuario, nombre, apellido, email, telefono, contrasena, estado, ultima_conexion, fecha_registro, fecha_actualizacion`

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	var phone sql.NullString
	var lastLogin sql.NullTime
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &phone,
		&u.PasswordHash, &u.Status, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return u, err
	}
	u.Phone = phone.String
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return u, nil
}

// Create inserts a user with a bcrypt-hashed password and returns its ID.
// The email is normalized to lower case; a duplicate email maps to
// ErrEmailExists via the MySQL 1062 duplicate-key error.
func (r *UserRepo) Create(ctx context.Context, firstName, lastName, email, phone, password string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO usuarios (nombre, apellido, email, telefono, contrasena, estado) VALUES (?,?,?,?,?,?)",
		firstName, lastName, email, phone, hash, model.UserActive)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM usuarios WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM usuarios WHERE id_usuario=? LIMIT 1", id))
}

// TouchLastLogin stamps ultima_conexion after a successful login.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE usuarios SET ultima_conexion=? WHERE id_usuario=?", at, id)
	return err
}

// UpdateProfile updates the mutable profile fields. Email and password
// never change through this path.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, firstName, lastName, phone string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE usuarios SET nombre=?, apellido=?, telefono=?, fecha_actualizacion=NOW() WHERE id_usuario=?",
		firstName, lastName, phone, id)
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

// UpdatePassword replaces the stored hash after verifying the current
// password. It returns ErrForbidden when the current password does not
// match.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, current, next string, cost int) error {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if !utils.VerifyPassword(u.PasswordHash, current) {
		return ErrForbidden
	}
	hash, err := utils.HashPassword(next, cost)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE usuarios SET contrasena=?, fecha_actualizacion=NOW() WHERE id_usuario=?", hash, id)
	return err
}

// Deactivate soft deletes a user by flipping the account to inactivo.
func (r *UserRepo) Deactivate(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE usuarios SET estado=?, fecha_actualizacion=NOW() WHERE id_usuario=?",
		model.UserInactive, id)
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
