package handler

import (
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kuadra/cocheras-api/internal/repository"
)

func newSearchHandler(t *testing.T) (*SearchHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	return NewSearchHandler(repository.NewSpaceRepo(db)), mock, func() { db.Close() }
}

func TestSearchPaginationHeaders(t *testing.T) {
	h, mock, done := newSearchHandler(t)
	defer done()

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(23))
	mock.ExpectQuery("SELECT (.+) FROM cocheras").
		WillReturnRows(spaceRow(5, 9, 500, true))

	c, rec := jsonCtx(http.MethodGet, "/v1/cocheras/search?per_page=10&page=1", "", 0)
	if err := h.Search(c); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-Total-Count"); got != "23" {
		t.Fatalf("X-Total-Count = %q, want 23", got)
	}
	if got := rec.Header().Get("X-Total-Pages"); got != "3" {
		t.Fatalf("X-Total-Pages = %q, want 3", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSearchRejectsBadFilters(t *testing.T) {
	h, _, done := newSearchHandler(t)
	defer done()

	for _, target := range []string{
		"/v1/cocheras/search?distrito=0",
		"/v1/cocheras/search?precio_min=abc",
		"/v1/cocheras/search?precio_min=500&precio_max=100",
		"/v1/cocheras/search?desde=2026-06-02T10:00:00Z", // hasta missing
		"/v1/cocheras/search?orden=alfabetico",
	} {
		c, rec := jsonCtx(http.MethodGet, target, "", 0)
		if err := h.Search(c); err != nil {
			t.Fatalf("Search(%s): %v", target, err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: code = %d, want 400", target, rec.Code)
		}
	}
}

func TestNearbyValidatesCoords(t *testing.T) {
	h, _, done := newSearchHandler(t)
	defer done()

	for _, target := range []string{
		"/v1/cocheras/cercanas",
		"/v1/cocheras/cercanas?lat=91&lng=0",
		"/v1/cocheras/cercanas?lat=0&lng=181",
	} {
		c, rec := jsonCtx(http.MethodGet, target, "", 0)
		if err := h.Nearby(c); err != nil {
			t.Fatalf("Nearby(%s): %v", target, err)
		}
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: code = %d, want 400", target, rec.Code)
		}
	}
}

func TestNearbySortsByDistance(t *testing.T) {
	h, mock, done := newSearchHandler(t)
	defer done()

	rows := spaceRow(5, 9, 500, true)
	rows.AddRow(6, nil, 9, "Jr. Union 300", 1, 700, true, "", nil, nil, fixedNow, fixedNow)
	rows.AddRow(7, nil, 9, "Av. Brasil 2200", 2, 300, true, "", nil, nil, fixedNow, fixedNow)
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("SELECT (.+) FROM cocheras").
		WillReturnRows(rows)

	c, rec := jsonCtx(http.MethodGet, "/v1/cocheras/cercanas?lat=-12.05&lng=-77.04", "", 0)
	if err := h.Nearby(c); err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
