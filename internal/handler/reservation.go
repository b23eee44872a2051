package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kuadra/cocheras-api/internal/model"
	"github.com/kuadra/cocheras-api/internal/repository"
)

// ReservationHandler implements the booking workflow. The critical
// invariant is that one space never holds two overlapping reservations
// that are both alive (estado <> cancelada): every write that could
// break it runs inside a transaction that locks the competing rows
// with SELECT ... FOR UPDATE before deciding.
type ReservationHandler struct {
	Reservations *repository.ReservationRepo
	Spaces       *repository.SpaceRepo
	Now          func() time.Time // injected so tests control the clock
}

func NewReservationHandler(r *repository.ReservationRepo, s *repository.SpaceRepo) *ReservationHandler {
	return &ReservationHandler{Reservations: r, Spaces: s, Now: time.Now}
}

type createReservationReq struct {
	SpaceID  uint64    `json:"id_cochera"`
	StartsAt time.Time `json:"fecha_inicio"`
	EndsAt   time.Time `json:"fecha_fin"`
}

type reservationResp struct {
	ID        uint64                  `json:"id"`
	UserID    uint64                  `json:"id_usuario"`
	SpaceID   uint64                  `json:"id_cochera"`
	StartsAt  time.Time               `json:"fecha_inicio"`
	EndsAt    time.Time               `json:"fecha_fin"`
	Status    model.ReservationStatus `json:"estado"`
	CreatedAt time.Time               `json:"creada_en"`
}

func toReservationResp(r model.Reservation) reservationResp {
	return reservationResp{
		ID: r.ID, UserID: r.UserID, SpaceID: r.SpaceID,
		StartsAt: r.StartsAt, EndsAt: r.EndsAt,
		Status: r.Status, CreatedAt: r.CreatedAt,
	}
}

// Create books a space for a window. The overlap check and the insert
// run in one transaction so two concurrent requests for the same
// window cannot both succeed.
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.SpaceID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "id_cochera required"})
	}
	start, end := req.StartsAt.UTC(), req.EndsAt.UTC()
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "fecha_inicio must be before fecha_fin"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	space, err := h.Spaces.GetByID(ctx, req.SpaceID)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "space not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !space.Available {
		return c.JSON(http.StatusConflict, echo.Map{"error": "space not available"})
	}

	tx, err := h.Reservations.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	taken, err := h.Reservations.OverlapExistsTx(ctx, tx, req.SpaceID, start, end, 0)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "availability check failed"})
	}
	if taken {
		return c.JSON(http.StatusConflict, echo.Map{"error": "space already reserved for that window"})
	}

	res := model.Reservation{
		UserID:   userID,
		SpaceID:  req.SpaceID,
		StartsAt: start,
		EndsAt:   end,
		Status:   model.ReservationPending,
	}
	if err := h.Reservations.CreateTx(ctx, tx, &res); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	return c.JSON(http.StatusCreated, toReservationResp(res))
}

// Get returns one reservation. Only the booker and the space owner may
// see it.
func (h *ReservationHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Reservations.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if res.UserID != userID {
		space, err := h.Spaces.GetByID(ctx, res.SpaceID)
		if err != nil || !canManageReservation(userID, res.UserID, space.OwnerID) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not your reservation"})
		}
	}
	return c.JSON(http.StatusOK, toReservationResp(res))
}

// ListMine returns the caller's reservations, newest first.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	details, err := h.Reservations.ListByUser(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, details)
}

// ListForOwner returns the reservations placed on the caller's spaces.
func (h *ReservationHandler) ListForOwner(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	details, err := h.Reservations.ListByOwner(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, details)
}

type updateWindowReq struct {
	StartsAt time.Time `json:"fecha_inicio"`
	EndsAt   time.Time `json:"fecha_fin"`
}

// UpdateWindow moves a reservation to a new time window. Allowed while
// the reservation is pendiente or confirmada; the new window is checked
// for overlaps (excluding the reservation itself) under the same row
// locks as Create.
func (h *ReservationHandler) UpdateWindow(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var req updateWindowReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	start, end := req.StartsAt.UTC(), req.EndsAt.UTC()
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "fecha_inicio must be before fecha_fin"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := h.Reservations.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := h.Reservations.GetByIDTx(ctx, tx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if res.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your reservation"})
	}
	if res.Status.Terminal() {
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is in a final state"})
	}

	taken, err := h.Reservations.OverlapExistsTx(ctx, tx, res.SpaceID, start, end, res.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "availability check failed"})
	}
	if taken {
		return c.JSON(http.StatusConflict, echo.Map{"error": "space already reserved for that window"})
	}
	if err := h.Reservations.UpdateWindowTx(ctx, tx, res.ID, start, end); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	res.StartsAt, res.EndsAt = start, end
	return c.JSON(http.StatusOK, toReservationResp(res))
}

type updateStatusReq struct {
	Status model.ReservationStatus `json:"estado"`
}

// UpdateStatus transitions a reservation's lifecycle state. The booker
// and the space owner may both transition; terminal states never
// transition again; re-applying the current estado is a no-op. All four
// estados are accepted, so cancelada can be applied here too — unlike
// Cancel, this path has no before-start rule.
func (h *ReservationHandler) UpdateStatus(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var req updateStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if !req.Status.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid estado"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := h.Reservations.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := h.Reservations.GetByIDTx(ctx, tx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	space, err := h.Spaces.GetByID(ctx, res.SpaceID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !canManageReservation(userID, res.UserID, space.OwnerID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your reservation"})
	}
	if req.Status == res.Status {
		return c.JSON(http.StatusOK, toReservationResp(res))
	}
	if res.Status.Terminal() {
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is in a final state"})
	}

	if err := h.Reservations.UpdateStatusTx(ctx, tx, res.ID, req.Status); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	res.Status = req.Status
	return c.JSON(http.StatusOK, toReservationResp(res))
}

// Cancel soft-deletes a reservation: the row stays, estado becomes
// cancelada, and the window frees up. Only the booker may cancel, and
// only before the window starts.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := h.Reservations.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := h.Reservations.GetByIDTx(ctx, tx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if res.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your reservation"})
	}
	if res.Status.Terminal() {
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is in a final state"})
	}
	if !h.Now().UTC().Before(res.StartsAt) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation already started"})
	}

	if err := h.Reservations.UpdateStatusTx(ctx, tx, res.ID, model.ReservationCancelled); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}
	committed = true

	return c.NoContent(http.StatusNoContent)
}
