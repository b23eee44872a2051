package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kuadra/cocheras-api/internal/model"
	"github.com/kuadra/cocheras-api/internal/repository"
)

// OwnerHandler manages duenos_cocheras assignments. The schema keeps
// both the assignment table and cocheras.id_dueno; assigning a user to
// a space with no owner backfills the column so older queries keep
// working.
type OwnerHandler struct {
	Owners       *repository.OwnerRepo
	Spaces       *repository.SpaceRepo
	Reservations *repository.ReservationRepo
	Now          func() time.Time
}

func NewOwnerHandler(o *repository.OwnerRepo, s *repository.SpaceRepo, r *repository.ReservationRepo) *OwnerHandler {
	return &OwnerHandler{Owners: o, Spaces: s, Reservations: r, Now: time.Now}
}

type assignmentResp struct {
	ID         uint64    `json:"id"`
	UserID     uint64    `json:"id_usuario"`
	SpaceID    uint64    `json:"id_cochera"`
	AssignedAt time.Time `json:"fecha_asignacion"`
}

func toAssignmentResp(a model.OwnerAssignment) assignmentResp {
	return assignmentResp{ID: a.ID, UserID: a.UserID, SpaceID: a.SpaceID, AssignedAt: a.AssignedAt}
}

// ListMine returns the caller's assignments.
func (h *OwnerHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	assignments, err := h.Owners.ListByUser(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]assignmentResp, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, toAssignmentResp(a))
	}
	return c.JSON(http.StatusOK, out)
}

// ListBySpace returns the assignments of one space the caller owns.
func (h *OwnerHandler) ListBySpace(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	spaceID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid space id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	space, err := h.Spaces.GetByID(ctx, spaceID)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "space not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !isRowOwner(space.OwnerID, uid) {
		if _, err := h.Owners.Find(ctx, uid, spaceID); err != nil {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not your space"})
		}
	}
	assignments, err := h.Owners.ListBySpace(ctx, spaceID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]assignmentResp, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, toAssignmentResp(a))
	}
	return c.JSON(http.StatusOK, out)
}

type assignReq struct {
	SpaceID uint64 `json:"id_cochera"`
}

// Assign links the caller to a space as owner. Idempotent: repeating
// the call returns the existing assignment. When the space has no
// owner recorded in cocheras.id_dueno the column is backfilled.
func (h *OwnerHandler) Assign(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req assignReq
	if err := c.Bind(&req); err != nil || req.SpaceID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "id_cochera required"})
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
	if space.OwnerID != 0 && space.OwnerID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "space already has an owner"})
	}

	a, err := h.Owners.Assign(ctx, uid, req.SpaceID, h.Now().UTC())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "assign failed"})
	}
	if space.OwnerID == 0 {
		if err := h.Spaces.ClaimOwnerIfUnset(ctx, req.SpaceID, uid); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "claim failed"})
		}
	}
	return c.JSON(http.StatusCreated, toAssignmentResp(a))
}

// Remove deletes an assignment. Only the assigned user may remove it,
// and not while the space still has active reservations.
func (h *OwnerHandler) Remove(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid assignment id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Owners.Get(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "assignment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if a.UserID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your assignment"})
	}
	active, err := h.Reservations.HasActiveForSpace(ctx, a.SpaceID, h.Now().UTC())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if active {
		return c.JSON(http.StatusConflict, echo.Map{"error": "space has active reservations"})
	}
	if err := h.Owners.Remove(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "remove failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
