package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kuadra/cocheras-api/internal/model"
)

func newMock(t *testing.T) (*ReservationRepo, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	return NewReservationRepo(db), mock, func() { db.Close() }
}

var reservaCols = []string{"id_reserva", "id_usuario", "id_cochera", "fecha_inicio", "fecha_fin", "estado", "creada_en", "actualizada_en"}

func TestOverlapExistsTx(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id_reserva FROM reservas").
		WithArgs(uint64(5), uint64(0), model.ReservationCancelled, end, start).
		WillReturnRows(sqlmock.NewRows([]string{"id_reserva"}).AddRow(77))

	tx, err := repo.DB().Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	taken, err := repo.OverlapExistsTx(context.Background(), tx, 5, start, end, 0)
	if err != nil {
		t.Fatalf("OverlapExistsTx: %v", err)
	}
	if !taken {
		t.Fatal("expected overlap to be reported")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestOverlapExistsTxFree(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id_reserva FROM reservas").
		WithArgs(uint64(5), uint64(9), model.ReservationCancelled, end, start).
		WillReturnRows(sqlmock.NewRows([]string{"id_reserva"}))

	tx, _ := repo.DB().Begin()
	taken, err := repo.OverlapExistsTx(context.Background(), tx, 5, start, end, 9)
	if err != nil {
		t.Fatalf("OverlapExistsTx: %v", err)
	}
	if taken {
		t.Fatal("free window reported as taken")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateTx(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	start := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)
	now := time.Now().UTC().Truncate(time.Second)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reservas").
		WithArgs(uint64(2), uint64(5), start, end, model.ReservationPending).
		WillReturnResult(sqlmock.NewResult(41, 1))
	mock.ExpectQuery("SELECT (.+) FROM reservas WHERE id_reserva").
		WithArgs(uint64(41)).
		WillReturnRows(sqlmock.NewRows(reservaCols).
			AddRow(41, 2, 5, start, end, "pendiente", now, now))
	mock.ExpectCommit()

	tx, _ := repo.DB().Begin()
	res := model.Reservation{UserID: 2, SpaceID: 5, StartsAt: start, EndsAt: end}
	if err := repo.CreateTx(context.Background(), tx, &res); err != nil {
		t.Fatalf("CreateTx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.ID != 41 || res.Status != model.ReservationPending {
		t.Fatalf("unexpected reservation %+v", res)
	}
	if !res.CreatedAt.Equal(now) {
		t.Fatalf("CreatedAt not populated from row: %v", res.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateStatusTxNotFound(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE reservas SET estado").
		WithArgs(model.ReservationConfirmed, uint64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, _ := repo.DB().Begin()
	err := repo.UpdateStatusTx(context.Background(), tx, 99, model.ReservationConfirmed)
	if err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestHasActiveForSpace(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	now := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(uint64(3), model.ReservationPending, model.ReservationConfirmed, now).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	active, err := repo.HasActiveForSpace(context.Background(), 3, now)
	if err != nil {
		t.Fatalf("HasActiveForSpace: %v", err)
	}
	if !active {
		t.Fatal("expected active reservations")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
