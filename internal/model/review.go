package model

import "time"

// Review is a rating left by a user for a space, a row of `resenas`.
// A review may optionally be tied to the specific completed
// reservation it refers to. At most one review exists per
// (user, reservation) when a reservation is given, otherwise per
// (user, space).
type Review struct {
	ID        uint64    // resenas.id_review
	UserID    uint64    // resenas.id_usuario
	SpaceID   uint64    // resenas.id_cochera
	ReservaID *uint64   // resenas.id_reserva (nullable)
	Rating    uint8     // resenas.calificacion, 1..5
	Comment   string    // resenas.comentario
	CreatedAt time.Time // resenas.fecha_review
	UpdatedAt time.Time // resenas.fecha_actualizacion
}

// Notification is a per-user message row of `notificaciones`. The
// workflows only append rows; delivery to push or email channels is
// handled outside this service.
type Notification struct {
	ID        uint64    // notificaciones.id_notificacion
	UserID    uint64    // notificaciones.id_usuario
	Title     string    // notificaciones.titulo
	Message   string    // notificaciones.mensaje
	Kind      string    // notificaciones.tipo (reserva, pago, sistema)
	Read      bool      // notificaciones.leida
	CreatedAt time.Time // notificaciones.fecha_creacion
	UpdatedAt time.Time // notificaciones.fecha_actualizacion
}
