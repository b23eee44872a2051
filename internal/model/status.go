package model

// ReservationStatus is the lifecycle state of a reservation. Rows are
// created as pendiente, move to confirmada when a payment completes,
// and end in cancelada or completada. Terminal states never transition
// again.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pendiente"
	ReservationConfirmed ReservationStatus = "confirmada"
	ReservationCancelled ReservationStatus = "cancelada"
	ReservationCompleted ReservationStatus = "completada"
)

// Valid reports whether s is one of the known reservation states.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationPending, ReservationConfirmed, ReservationCancelled, ReservationCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationCancelled || s == ReservationCompleted
}

// Payable reports whether a payment may still be initiated for a
// reservation in state s.
func (s ReservationStatus) Payable() bool {
	return s == ReservationPending || s == ReservationConfirmed
}

// PaymentStatus is the state of a payment attempt.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pendiente"
	PaymentCompleted PaymentStatus = "completado"
	PaymentFailed    PaymentStatus = "fallido"
	PaymentRefunded  PaymentStatus = "reembolsado"
)

// Valid reports whether s is one of the known payment states.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// UserStatus is the account state of a user. Deactivated accounts are
// kept as inactivo rather than deleted so their reservations and
// reviews stay referable.
type UserStatus string

const (
	UserActive   UserStatus = "activo"
	UserInactive UserStatus = "inactivo"
)
