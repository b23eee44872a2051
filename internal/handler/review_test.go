package handler

import (
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kuadra/cocheras-api/internal/repository"
)

func newReviewHandler(t *testing.T) (*ReviewHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	h := NewReviewHandler(
		repository.NewReviewRepo(db),
		repository.NewReservationRepo(db),
		repository.NewSpaceRepo(db),
	)
	return h, mock, func() { db.Close() }
}

func TestCreateReviewRequiresCompletedReservation(t *testing.T) {
	h, mock, done := newReviewHandler(t)
	defer done()

	mock.ExpectQuery("SELECT (.+) FROM cocheras WHERE id_cochera").
		WithArgs(uint64(5)).
		WillReturnRows(spaceRow(5, 9, 500, true))
	// No completed reservation for this user and space.
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	body := `{"id_cochera":5,"calificacion":4,"comentario":"buena ubicacion"}`
	c, rec := jsonCtx(http.MethodPost, "/v1/resenas", body, 2)
	if err := h.Create(c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("code = %d, want 403, body %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateReviewRejectsBadRating(t *testing.T) {
	h, _, done := newReviewHandler(t)
	defer done()

	for _, body := range []string{
		`{"id_cochera":5,"calificacion":0}`,
		`{"id_cochera":5,"calificacion":6}`,
		`{"calificacion":4}`,
	} {
		c, rec := jsonCtx(http.MethodPost, "/v1/resenas", body, 2)
		if err := h.Create(c); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: code = %d, want 400", body, rec.Code)
		}
	}
}

func TestCreateReviewDuplicate(t *testing.T) {
	h, mock, done := newReviewHandler(t)
	defer done()

	mock.ExpectQuery("SELECT (.+) FROM cocheras WHERE id_cochera").
		WithArgs(uint64(5)).
		WillReturnRows(spaceRow(5, 9, 500, true))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true)) // completed reservation
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true)) // already reviewed

	body := `{"id_cochera":5,"calificacion":4}`
	c, rec := jsonCtx(http.MethodPost, "/v1/resenas", body, 2)
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
