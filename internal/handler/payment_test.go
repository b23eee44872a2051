package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kuadra/cocheras-api/internal/model"
	"github.com/kuadra/cocheras-api/internal/queue"
	"github.com/kuadra/cocheras-api/internal/repository"
)

var pagoCols = []string{"id_pago", "id_reserva", "id_usuario", "monto_cents", "metodo_pago", "referencia_pago", "estado", "fecha_pago", "fecha_creacion", "fecha_actualizacion"}

func newPaymentHandler(t *testing.T) (*PaymentHandler, sqlmock.Sqlmock, chan queue.PaymentConfirmedEvent, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	h := NewPaymentHandler(
		repository.NewPaymentRepo(db),
		repository.NewReservationRepo(db),
		repository.NewSpaceRepo(db),
		repository.NewNotificationRepo(db),
	)
	h.Now = func() time.Time { return fixedNow }
	published := make(chan queue.PaymentConfirmedEvent, 1)
	h.Publish = func(ctx context.Context, ev queue.PaymentConfirmedEvent) error {
		published <- ev
		return nil
	}
	return h, mock, published, func() { db.Close() }
}

func TestInitiatePayment(t *testing.T) {
	h, mock, _, done := newPaymentHandler(t)
	defer done()

	start := fixedNow.Add(24 * time.Hour)
	end := start.Add(2 * time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM reservas WHERE id_reserva").
		WithArgs(uint64(41)).
		WillReturnRows(sqlmock.NewRows(reservaCols).
			AddRow(41, 2, 5, start, end, "pendiente", fixedNow, fixedNow))
	mock.ExpectQuery("SELECT (.+) FROM cocheras WHERE id_cochera").
		WithArgs(uint64(5)).
		WillReturnRows(spaceRow(5, 9, 500, true))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO pagos").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectQuery("SELECT (.+) FROM pagos WHERE id_pago").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows(pagoCols).
			AddRow(7, 41, 2, 1000, "tarjeta", "pi_0123", "pendiente", nil, fixedNow, fixedNow))
	mock.ExpectCommit()

	body := `{"id_reserva":41,"metodo_pago":"tarjeta"}`
	c, rec := jsonCtx(http.MethodPost, "/v1/pagos/initiate", body, 2)
	if err := h.Initiate(c); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d, want 201, body %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestConfirmPayment(t *testing.T) {
	h, mock, published, done := newPaymentHandler(t)
	defer done()

	start := fixedNow.Add(24 * time.Hour)
	end := start.Add(2 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM pagos WHERE referencia_pago").
		WithArgs("pi_0123").
		WillReturnRows(sqlmock.NewRows(pagoCols).
			AddRow(7, 41, 2, 1000, "tarjeta", "pi_0123", "pendiente", nil, fixedNow, fixedNow))
	mock.ExpectQuery("SELECT (.+) FROM reservas WHERE id_reserva (.+) FOR UPDATE").
		WithArgs(uint64(41)).
		WillReturnRows(sqlmock.NewRows(reservaCols).
			AddRow(41, 2, 5, start, end, "pendiente", fixedNow, fixedNow))
	mock.ExpectQuery("SELECT (.+) FROM cocheras WHERE id_cochera").
		WithArgs(uint64(5)).
		WillReturnRows(spaceRow(5, 9, 500, true))
	mock.ExpectExec("UPDATE pagos SET estado").
		WithArgs(model.PaymentCompleted, fixedNow, uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE reservas SET estado").
		WithArgs(model.ReservationConfirmed, uint64(41)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// One notification for the payer, one for the space owner.
	mock.ExpectExec("INSERT INTO notificaciones").
		WillReturnResult(sqlmock.NewResult(100, 1))
	mock.ExpectExec("INSERT INTO notificaciones").
		WillReturnResult(sqlmock.NewResult(101, 1))
	mock.ExpectCommit()

	body := `{"referencia_pago":"pi_0123"}`
	c, rec := jsonCtx(http.MethodPost, "/v1/pagos/confirm", body, 2)
	if err := h.Confirm(c); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-published:
		if ev.PaymentID != 7 || ev.ReservationID != 41 || ev.AmountCents != 1000 {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("payment.confirmed event not published")
	}
}

func TestConfirmPaymentOwnerUnset(t *testing.T) {
	h, mock, published, done := newPaymentHandler(t)
	defer done()

	start := fixedNow.Add(24 * time.Hour)
	end := start.Add(2 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM pagos WHERE referencia_pago").
		WithArgs("pi_0123").
		WillReturnRows(sqlmock.NewRows(pagoCols).
			AddRow(7, 41, 2, 1000, "tarjeta", "pi_0123", "pendiente", nil, fixedNow, fixedNow))
	mock.ExpectQuery("SELECT (.+) FROM reservas WHERE id_reserva (.+) FOR UPDATE").
		WithArgs(uint64(41)).
		WillReturnRows(sqlmock.NewRows(reservaCols).
			AddRow(41, 2, 5, start, end, "pendiente", fixedNow, fixedNow))
	mock.ExpectQuery("SELECT (.+) FROM cocheras WHERE id_cochera").
		WithArgs(uint64(5)).
		WillReturnRows(spaceRow(5, 0, 500, true)) // unclaimed space
	mock.ExpectExec("UPDATE pagos SET estado").
		WithArgs(model.PaymentCompleted, fixedNow, uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE reservas SET estado").
		WithArgs(model.ReservationConfirmed, uint64(41)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// No owner to notify, so exactly one notification row.
	mock.ExpectExec("INSERT INTO notificaciones").
		WillReturnResult(sqlmock.NewResult(100, 1))
	mock.ExpectCommit()

	body := `{"referencia_pago":"pi_0123"}`
	c, rec := jsonCtx(http.MethodPost, "/v1/pagos/confirm", body, 2)
	if err := h.Confirm(c); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-published:
		if ev.OwnerID != 0 {
			t.Fatalf("event owner = %d, want 0", ev.OwnerID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("payment.confirmed event not published")
	}
}

func TestConfirmPaymentAlreadyProcessed(t *testing.T) {
	h, mock, _, done := newPaymentHandler(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM pagos WHERE referencia_pago").
		WithArgs("pi_0123").
		WillReturnRows(sqlmock.NewRows(pagoCols).
			AddRow(7, 41, 2, 1000, "tarjeta", "pi_0123", "completado", fixedNow, fixedNow, fixedNow))
	mock.ExpectRollback()

	body := `{"referencia_pago":"pi_0123"}`
	c, rec := jsonCtx(http.MethodPost, "/v1/pagos/confirm", body, 2)
	if err := h.Confirm(c); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("code = %d, want 409, body %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestConfirmPaymentWrongUser(t *testing.T) {
	h, mock, _, done := newPaymentHandler(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM pagos WHERE referencia_pago").
		WithArgs("pi_0123").
		WillReturnRows(sqlmock.NewRows(pagoCols).
			AddRow(7, 41, 8, 1000, "tarjeta", "pi_0123", "pendiente", nil, fixedNow, fixedNow))
	mock.ExpectRollback()

	body := `{"referencia_pago":"pi_0123"}`
	c, rec := jsonCtx(http.MethodPost, "/v1/pagos/confirm", body, 2)
	if err := h.Confirm(c); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("code = %d, want 403", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestInitiatePaymentInvalidMethod(t *testing.T) {
	h, _, _, done := newPaymentHandler(t)
	defer done()

	body := `{"id_reserva":41,"metodo_pago":"bitcoin"}`
	c, rec := jsonCtx(http.MethodPost, "/v1/pagos/initiate", body, 2)
	if err := h.Initiate(c); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", rec.Code)
	}
}
