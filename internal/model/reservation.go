package model

import "time"

// Reservation records a user's booking of a space for a time window,
// a row of the `reservas` table. For any space, the set of rows whose
// status is not cancelada must be pairwise non-overlapping in time;
// the overlap test treats intervals as closed, so touching endpoints
// conflict.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – user who booked.
//  SpaceID   – space being booked.
//  StartsAt  – start of the window (reservas.fecha_inicio).
//  EndsAt    – end of the window (reservas.fecha_fin).
//  Status    – lifecycle state; created as pendiente.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Reservation struct {
	ID        uint64            // reservas.id_reserva
	UserID    uint64            // reservas.id_usuario
	SpaceID   uint64            // reservas.id_cochera
	StartsAt  time.Time         // reservas.fecha_inicio
	EndsAt    time.Time         // reservas.fecha_fin
	Status    ReservationStatus // reservas.estado
	CreatedAt time.Time         // reservas.creada_en
	UpdatedAt time.Time         // reservas.actualizada_en
}

// Overlaps reports whether the closed intervals [aStart,aEnd] and
// [bStart,bEnd] intersect. Both workflows and the search filter use
// this single predicate so the invariant cannot drift.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !bStart.After(aEnd)
}
