package model

import "time"

// User represents a row of the `usuarios` table. Every other entity in
// the system hangs off a user: spaces through ownership, reservations
// and payments through the booking flow, reviews and notifications
// directly.
//
// Fields:
//  ID           – primary key identifier of the user.
//  FirstName    – given name (usuarios.nombre).
//  LastName     – family name (usuarios.apellido).
//  Email        – unique email address, stored lowercased.
//  Phone        – optional contact phone.
//  PasswordHash – bcrypt hash of the password.
//  Status       – account state, activo or inactivo.
//  LastLoginAt  – timestamp of the last successful login (nullable).
//  CreatedAt    – registration timestamp.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64     // usuarios.id_usuario
	FirstName    string     // usuarios.nombre
	LastName     string     // usuarios.apellido
	Email        string     // usuarios.email
	Phone        string     // usuarios.telefono
	PasswordHash string     // usuarios.contrasena
	Status       UserStatus // usuarios.estado
	LastLoginAt  *time.Time // usuarios.ultima_conexion (nullable)
	CreatedAt    time.Time  // usuarios.fecha_registro
	UpdatedAt    time.Time  // usuarios.fecha_actualizacion
}

// RefreshToken models an entry in the `refresh_tokens` table. Only the
// SHA-256 hash of the token value is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
