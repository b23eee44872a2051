package model

import (
	"math"
	"time"
)

// Payment is a row of the `pagos` table. One row is created per
// payment attempt against a reservation; the reference string is the
// opaque token handed to the (external) payment provider.
type Payment struct {
	ID          uint64        // pagos.id_pago
	ReservaID   uint64        // pagos.id_reserva
	UserID      uint64        // pagos.id_usuario
	AmountCents int64         // pagos.monto_cents
	Method      string        // pagos.metodo_pago (tarjeta, transferencia, efectivo)
	Reference   string        // pagos.referencia_pago
	Status      PaymentStatus // pagos.estado
	PaidAt      *time.Time    // pagos.fecha_pago (nullable)
	CreatedAt   time.Time     // pagos.fecha_creacion
	UpdatedAt   time.Time     // pagos.fecha_actualizacion
}

// AmountCentsFor computes the price of a reservation window at the
// given hourly rate: fractional hours are charged proportionally and
// the result is rounded to the nearest cent.
func AmountCentsFor(start, end time.Time, priceCentsPerHour uint32) int64 {
	hours := end.Sub(start).Hours()
	return int64(math.Round(hours * float64(priceCentsPerHour)))
}
