package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/kuadra/cocheras-api/internal/model"
	"github.com/kuadra/cocheras-api/internal/repository"
)

var (
	spaceCols   = []string{"id_cochera", "id_distrito", "id_dueno", "direccion", "capacidad", "precio_hora_cents", "disponible", "descripcion", "hora_apertura", "hora_cierre", "fecha_registro", "fecha_actualizacion"}
	reservaCols = []string{"id_reserva", "id_usuario", "id_cochera", "fecha_inicio", "fecha_fin", "estado", "creada_en", "actualizada_en"}
)

// fixedNow is the injected wall clock for every handler test.
var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newReservationHandler(t *testing.T) (*ReservationHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	h := NewReservationHandler(repository.NewReservationRepo(db), repository.NewSpaceRepo(db))
	h.Now = func() time.Time { return fixedNow }
	return h, mock, func() { db.Close() }
}

func jsonCtx(method, target, body string, userID uint64) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", userID)
	return c, rec
}

func spaceRow(id, owner uint64, price uint32, available bool) *sqlmock.Rows {
	return sqlmock.NewRows(spaceCols).
		AddRow(id, nil, owner, "Av. Arenales 1020", 1, price, available, "techada", nil, nil, fixedNow, fixedNow)
}

func TestCreateReservationConflict(t *testing.T) {
	h, mock, done := newReservationHandler(t)
	defer done()

	mock.ExpectQuery("SELECT (.+) FROM cocheras WHERE id_cochera").
		WithArgs(uint64(5)).
		WillReturnRows(spaceRow(5, 9, 500, true))
	mock.ExpectBegin()
	// Another live reservation already covers the window.
	mock.ExpectQuery("SELECT id_reserva FROM reservas").
		WillReturnRows(sqlmock.NewRows([]string{"id_reserva"}).AddRow(77))
	mock.ExpectRollback()

	body := `{"id_cochera":5,"fecha_inicio":"2026-06-02T10:00:00Z","fecha_fin":"2026-06-02T12:00:00Z"}`
	c, rec := jsonCtx(http.MethodPost, "/v1/reservas", body, 2)
	if err := h.Create(c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("code = %d, want 409, body %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateReservationOK(t *testing.T) {
	h, mock, done := newReservationHandler(t)
	defer done()

	start := time.Date(2026, 6, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM cocheras WHERE id_cochera").
		WithArgs(uint64(5)).
		WillReturnRows(spaceRow(5, 9, 500, true))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id_reserva FROM reservas").
		WillReturnRows(sqlmock.NewRows([]string{"id_reserva"}))
	mock.ExpectExec("INSERT INTO reservas").
		WillReturnResult(sqlmock.NewResult(41, 1))
	mock.ExpectQuery("SELECT (.+) FROM reservas WHERE id_reserva").
		WithArgs(uint64(41)).
		WillReturnRows(sqlmock.NewRows(reservaCols).
			AddRow(41, 2, 5, start, end, "pendiente", fixedNow, fixedNow))
	mock.ExpectCommit()

	body := `{"id_cochera":5,"fecha_inicio":"2026-06-02T10:00:00Z","fecha_fin":"2026-06-02T12:00:00Z"}`
	c, rec := jsonCtx(http.MethodPost, "/v1/reservas", body, 2)
	if err := h.Create(c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d, want 201, body %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateReservationPastStartAllowed(t *testing.T) {
	h, mock, done := newReservationHandler(t)
	defer done()

	// Booking a window that already started is legal; only
	// cancellation compares against the clock.
	start := fixedNow.Add(-time.Hour)
	end := fixedNow.Add(time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM cocheras WHERE id_cochera").
		WithArgs(uint64(5)).
		WillReturnRows(spaceRow(5, 9, 500, true))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id_reserva FROM reservas").
		WillReturnRows(sqlmock.NewRows([]string{"id_reserva"}))
	mock.ExpectExec("INSERT INTO reservas").
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectQuery("SELECT (.+) FROM reservas WHERE id_reserva").
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows(reservaCols).
			AddRow(42, 2, 5, start, end, "pendiente", fixedNow, fixedNow))
	mock.ExpectCommit()

	body := `{"id_cochera":5,"fecha_inicio":"2026-06-01T11:00:00Z","fecha_fin":"2026-06-01T13:00:00Z"}`
	c, rec := jsonCtx(http.MethodPost, "/v1/reservas", body, 2)
	if err := h.Create(c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d, want 201, body %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func windowCtx(id, body string, userID uint64) (echo.Context, *httptest.ResponseRecorder) {
	c, rec := jsonCtx(http.MethodPatch, "/v1/reservas/"+id, body, userID)
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c, rec
}

func TestUpdateWindowMovesConfirmed(t *testing.T) {
	h, mock, done := newReservationHandler(t)
	defer done()

	oldStart := fixedNow.Add(24 * time.Hour)
	newStart := time.Date(2026, 6, 3, 10, 0, 0, 0, time.UTC)
	newEnd := newStart.Add(2 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reservas WHERE id_reserva (.+) FOR UPDATE").
		WithArgs(uint64(41)).
		WillReturnRows(sqlmock.NewRows(reservaCols).
			AddRow(41, 2, 5, oldStart, oldStart.Add(2*time.Hour), "confirmada", fixedNow, fixedNow))
	// The overlap re-check excludes the reservation being moved.
	mock.ExpectQuery("SELECT id_reserva FROM reservas").
		WithArgs(uint64(5), uint64(41), model.ReservationCancelled, newEnd, newStart).
		WillReturnRows(sqlmock.NewRows([]string{"id_reserva"}))
	mock.ExpectExec("UPDATE reservas SET fecha_inicio").
		WithArgs(newStart, newEnd, uint64(41)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	body := `{"fecha_inicio":"2026-06-03T10:00:00Z","fecha_fin":"2026-06-03T12:00:00Z"}`
	c, rec := windowCtx("41", body, 2)
	if err := h.UpdateWindow(c); err != nil {
		t.Fatalf("UpdateWindow: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateWindowConflict(t *testing.T) {
	h, mock, done := newReservationHandler(t)
	defer done()

	oldStart := fixedNow.Add(24 * time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reservas WHERE id_reserva (.+) FOR UPDATE").
		WithArgs(uint64(41)).
		WillReturnRows(sqlmock.NewRows(reservaCols).
			AddRow(41, 2, 5, oldStart, oldStart.Add(time.Hour), "pendiente", fixedNow, fixedNow))
	// A different live reservation already holds the target window.
	mock.ExpectQuery("SELECT id_reserva FROM reservas").
		WillReturnRows(sqlmock.NewRows([]string{"id_reserva"}).AddRow(77))
	mock.ExpectRollback()

	body := `{"fecha_inicio":"2026-06-03T10:00:00Z","fecha_fin":"2026-06-03T12:00:00Z"}`
	c, rec := windowCtx("41", body, 2)
	if err := h.UpdateWindow(c); err != nil {
		t.Fatalf("UpdateWindow: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("code = %d, want 409, body %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateWindowTerminalRefused(t *testing.T) {
	h, mock, done := newReservationHandler(t)
	defer done()

	oldStart := fixedNow.Add(-48 * time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reservas WHERE id_reserva (.+) FOR UPDATE").
		WithArgs(uint64(41)).
		WillReturnRows(sqlmock.NewRows(reservaCols).
			AddRow(41, 2, 5, oldStart, oldStart.Add(time.Hour), "completada", fixedNow, fixedNow))
	mock.ExpectRollback()

	body := `{"fecha_inicio":"2026-06-03T10:00:00Z","fecha_fin":"2026-06-03T12:00:00Z"}`
	c, rec := windowCtx("41", body, 2)
	if err := h.UpdateWindow(c); err != nil {
		t.Fatalf("UpdateWindow: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("code = %d, want 409, body %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateReservationUnavailableSpace(t *testing.T) {
	h, mock, done := newReservationHandler(t)
	defer done()

	mock.ExpectQuery("SELECT (.+) FROM cocheras WHERE id_cochera").
		WithArgs(uint64(5)).
		WillReturnRows(spaceRow(5, 9, 500, false))

	body := `{"id_cochera":5,"fecha_inicio":"2026-06-02T10:00:00Z","fecha_fin":"2026-06-02T12:00:00Z"}`
	c, rec := jsonCtx(http.MethodPost, "/v1/reservas", body, 2)
	if err := h.Create(c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("code = %d, want 409", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func cancelCtx(id string, userID uint64) (echo.Context, *httptest.ResponseRecorder) {
	c, rec := jsonCtx(http.MethodDelete, "/v1/reservas/"+id, "", userID)
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c, rec
}

func TestCancelBeforeStart(t *testing.T) {
	h, mock, done := newReservationHandler(t)
	defer done()

	start := fixedNow.Add(24 * time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reservas WHERE id_reserva (.+) FOR UPDATE").
		WithArgs(uint64(41)).
		WillReturnRows(sqlmock.NewRows(reservaCols).
			AddRow(41, 2, 5, start, start.Add(2*time.Hour), "pendiente", fixedNow, fixedNow))
	mock.ExpectExec("UPDATE reservas SET estado").
		WithArgs(model.ReservationCancelled, uint64(41)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := cancelCtx("41", 2)
	if err := h.Cancel(c); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("code = %d, want 204, body %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCancelAfterStartRefused(t *testing.T) {
	h, mock, done := newReservationHandler(t)
	defer done()

	start := fixedNow.Add(-time.Hour) // already running
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reservas WHERE id_reserva (.+) FOR UPDATE").
		WithArgs(uint64(41)).
		WillReturnRows(sqlmock.NewRows(reservaCols).
			AddRow(41, 2, 5, start, start.Add(3*time.Hour), "confirmada", fixedNow, fixedNow))
	mock.ExpectRollback()

	c, rec := cancelCtx("41", 2)
	if err := h.Cancel(c); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("code = %d, want 409, body %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func statusCtx(id, body string, userID uint64) (echo.Context, *httptest.ResponseRecorder) {
	c, rec := jsonCtx(http.MethodPatch, "/v1/reservas/"+id+"/estado", body, userID)
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c, rec
}

func TestUpdateStatusByOwner(t *testing.T) {
	h, mock, done := newReservationHandler(t)
	defer done()

	start := fixedNow.Add(-3 * time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reservas WHERE id_reserva (.+) FOR UPDATE").
		WithArgs(uint64(41)).
		WillReturnRows(sqlmock.NewRows(reservaCols).
			AddRow(41, 2, 5, start, start.Add(2*time.Hour), "confirmada", fixedNow, fixedNow))
	mock.ExpectQuery("SELECT (.+) FROM cocheras WHERE id_cochera").
		WithArgs(uint64(5)).
		WillReturnRows(spaceRow(5, 9, 500, true))
	mock.ExpectExec("UPDATE reservas SET estado").
		WithArgs(model.ReservationCompleted, uint64(41)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := statusCtx("41", `{"estado":"completada"}`, 9) // space owner
	if err := h.UpdateStatus(c); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateStatusNoOp(t *testing.T) {
	h, mock, done := newReservationHandler(t)
	defer done()

	start := fixedNow.Add(24 * time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reservas WHERE id_reserva (.+) FOR UPDATE").
		WithArgs(uint64(41)).
		WillReturnRows(sqlmock.NewRows(reservaCols).
			AddRow(41, 2, 5, start, start.Add(time.Hour), "confirmada", fixedNow, fixedNow))
	mock.ExpectQuery("SELECT (.+) FROM cocheras WHERE id_cochera").
		WithArgs(uint64(5)).
		WillReturnRows(spaceRow(5, 9, 500, true))
	mock.ExpectRollback()

	// Re-applying the current estado succeeds without an UPDATE.
	c, rec := statusCtx("41", `{"estado":"confirmada"}`, 2) // booker
	if err := h.UpdateStatus(c); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateStatusAcceptsCancelada(t *testing.T) {
	h, mock, done := newReservationHandler(t)
	defer done()

	// Unlike DELETE, the estado endpoint applies cancelada with no
	// before-start rule.
	start := fixedNow.Add(-time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reservas WHERE id_reserva (.+) FOR UPDATE").
		WithArgs(uint64(41)).
		WillReturnRows(sqlmock.NewRows(reservaCols).
			AddRow(41, 2, 5, start, start.Add(3*time.Hour), "pendiente", fixedNow, fixedNow))
	mock.ExpectQuery("SELECT (.+) FROM cocheras WHERE id_cochera").
		WithArgs(uint64(5)).
		WillReturnRows(spaceRow(5, 9, 500, true))
	mock.ExpectExec("UPDATE reservas SET estado").
		WithArgs(model.ReservationCancelled, uint64(41)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := statusCtx("41", `{"estado":"cancelada"}`, 2) // booker
	if err := h.UpdateStatus(c); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateStatusTerminalRefused(t *testing.T) {
	h, mock, done := newReservationHandler(t)
	defer done()

	start := fixedNow.Add(-48 * time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reservas WHERE id_reserva (.+) FOR UPDATE").
		WithArgs(uint64(41)).
		WillReturnRows(sqlmock.NewRows(reservaCols).
			AddRow(41, 2, 5, start, start.Add(time.Hour), "completada", fixedNow, fixedNow))
	mock.ExpectQuery("SELECT (.+) FROM cocheras WHERE id_cochera").
		WithArgs(uint64(5)).
		WillReturnRows(spaceRow(5, 9, 500, true))
	mock.ExpectRollback()

	c, rec := statusCtx("41", `{"estado":"confirmada"}`, 2)
	if err := h.UpdateStatus(c); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("code = %d, want 409, body %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCancelSomeoneElses(t *testing.T) {
	h, mock, done := newReservationHandler(t)
	defer done()

	start := fixedNow.Add(24 * time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reservas WHERE id_reserva (.+) FOR UPDATE").
		WithArgs(uint64(41)).
		WillReturnRows(sqlmock.NewRows(reservaCols).
			AddRow(41, 8, 5, start, start.Add(time.Hour), "pendiente", fixedNow, fixedNow))
	mock.ExpectRollback()

	c, rec := cancelCtx("41", 2) // caller 2, booker 8
	if err := h.Cancel(c); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("code = %d, want 403", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
