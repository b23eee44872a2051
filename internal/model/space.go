package model

import "time"

// Space represents a cochera listing, a row of the `cocheras` table.
// Prices are stored in integer cents per hour to avoid floating point
// drift in amount calculations.
//
// Fields:
//  ID                – primary key identifier.
//  DistrictID        – optional reference into distritos.
//  OwnerID           – owning user (cocheras.id_dueno). May be zero
//                      until an owner claims the space through an
//                      owner assignment.
//  Address           – street address of the space.
//  Capacity          – number of vehicles that fit.
//  PriceCentsPerHour – hourly price in cents.
//  Available         – whether the space accepts new reservations.
//  Description       – free text shown in listings.
//  OpensAt           – daily opening time "HH:MM" (nullable).
//  ClosesAt          – daily closing time "HH:MM" (nullable).
//  CreatedAt         – registration timestamp.
//  UpdatedAt         – timestamp of last update.
type Space struct {
	ID                uint64    // cocheras.id_cochera
	DistrictID        *uint64   // cocheras.id_distrito (nullable)
	OwnerID           uint64    // cocheras.id_dueno
	Address           string    // cocheras.direccion
	Capacity          uint32    // cocheras.capacidad
	PriceCentsPerHour uint32    // cocheras.precio_hora_cents
	Available         bool      // cocheras.disponible
	Description       string    // cocheras.descripcion
	OpensAt           *string   // cocheras.hora_apertura (nullable)
	ClosesAt          *string   // cocheras.hora_cierre (nullable)
	CreatedAt         time.Time // cocheras.fecha_registro
	UpdatedAt         time.Time // cocheras.fecha_actualizacion
}

// District groups spaces geographically, a row of `distritos`.
type District struct {
	ID         uint64    // distritos.id_distrito
	Name       string    // distritos.nombre
	PostalCode string    // distritos.codigo_postal
	City       string    // distritos.ciudad
	Province   string    // distritos.provincia
	Country    string    // distritos.pais
	CreatedAt  time.Time // distritos.fecha_creacion
	UpdatedAt  time.Time // distritos.fecha_actualizacion
}

// OwnerAssignment links a user to a space they own, a row of the
// `duenos_cocheras` table. The schema keeps both this table and the
// cocheras.id_dueno column; assignments backfill the column when it is
// still zero but neither representation is declared authoritative.
type OwnerAssignment struct {
	ID         uint64    // duenos_cocheras.id
	UserID     uint64    // duenos_cocheras.id_usuario
	SpaceID    uint64    // duenos_cocheras.id_cochera
	AssignedAt time.Time // duenos_cocheras.fecha_asignacion
}
