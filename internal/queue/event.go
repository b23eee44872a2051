// Package queue defines message payloads exchanged over the message broker.
package queue

// PaymentConfirmedEvent is published when a payment completes and its
// reservation moves to confirmada. It carries enough information for
// downstream consumers to log, notify, or trigger analytics without
// querying the primary database.
type PaymentConfirmedEvent struct {
	PaymentID     uint64 `json:"payment_id"`
	ReservationID uint64 `json:"reservation_id"`
	UserID        uint64 `json:"user_id"`
	SpaceID       uint64 `json:"space_id"`
	SpaceAddress  string `json:"space_address"`
	OwnerID       uint64 `json:"owner_id"`
	StartsAt      string `json:"starts_at"`
	EndsAt        string `json:"ends_at"`
	AmountCents   int64  `json:"amount_cents"`
	Method        string `json:"method"`
	Reference     string `json:"reference"`
	ConfirmedAt   string `json:"confirmed_at"`
}
