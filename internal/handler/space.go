package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kuadra/cocheras-api/internal/model"
	"github.com/kuadra/cocheras-api/internal/repository"
)

// SpaceHandler covers the owner-facing cochera management endpoints
// plus the public space detail and rating lookups.
type SpaceHandler struct {
	Spaces       *repository.SpaceRepo
	Districts    *repository.DistrictRepo
	Reservations *repository.ReservationRepo
	Now          func() time.Time
}

func NewSpaceHandler(s *repository.SpaceRepo, d *repository.DistrictRepo, r *repository.ReservationRepo) *SpaceHandler {
	return &SpaceHandler{Spaces: s, Districts: d, Reservations: r, Now: time.Now}
}

type spaceResp struct {
	ID                uint64  `json:"id"`
	DistrictID        *uint64 `json:"id_distrito,omitempty"`
	OwnerID           uint64  `json:"id_dueno"`
	Address           string  `json:"direccion"`
	Capacity          uint32  `json:"capacidad"`
	PriceCentsPerHour uint32  `json:"precio_hora_cents"`
	Available         bool    `json:"disponible"`
	Description       string  `json:"descripcion"`
	OpensAt           *string `json:"hora_apertura,omitempty"`
	ClosesAt          *string `json:"hora_cierre,omitempty"`
}

func toSpaceResp(s model.Space) spaceResp {
	return spaceResp{
		ID: s.ID, DistrictID: s.DistrictID, OwnerID: s.OwnerID,
		Address: s.Address, Capacity: s.Capacity,
		PriceCentsPerHour: s.PriceCentsPerHour, Available: s.Available,
		Description: s.Description, OpensAt: s.OpensAt, ClosesAt: s.ClosesAt,
	}
}

// Get returns one space by id. Public: listings are browsable without
// an account.
func (h *SpaceHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid space id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Spaces.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "space not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toSpaceResp(s))
}

// ListMine returns the caller's own spaces.
func (h *SpaceHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	spaces, err := h.Spaces.ListByOwner(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]spaceResp, 0, len(spaces))
	for _, s := range spaces {
		out = append(out, toSpaceResp(s))
	}
	return c.JSON(http.StatusOK, out)
}

type createSpaceReq struct {
	DistrictID        *uint64 `json:"id_distrito"`
	Address           string  `json:"direccion"`
	Capacity          uint32  `json:"capacidad"`
	PriceCentsPerHour uint32  `json:"precio_hora_cents"`
	Description       string  `json:"descripcion"`
	OpensAt           *string `json:"hora_apertura"`
	ClosesAt          *string `json:"hora_cierre"`
}

// Create registers a new space owned by the caller. A referenced
// district must exist.
func (h *SpaceHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createSpaceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Address = strings.TrimSpace(req.Address)
	if req.Address == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "direccion required"})
	}
	if req.Capacity == 0 {
		req.Capacity = 1
	}
	if req.PriceCentsPerHour == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "precio_hora_cents required"})
	}
	if !validClock(req.OpensAt) || !validClock(req.ClosesAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "opening hours must be HH:MM"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if req.DistrictID != nil {
		if _, err := h.Districts.GetByID(ctx, *req.DistrictID); err != nil {
			if err == repository.ErrNotFound {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "district not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
	}

	s := model.Space{
		DistrictID:        req.DistrictID,
		OwnerID:           uid,
		Address:           req.Address,
		Capacity:          req.Capacity,
		PriceCentsPerHour: req.PriceCentsPerHour,
		Available:         true,
		Description:       req.Description,
		OpensAt:           req.OpensAt,
		ClosesAt:          req.ClosesAt,
	}
	if err := h.Spaces.Create(ctx, &s); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, toSpaceResp(s))
}

type updateSpaceReq struct {
	DistrictID        *uint64 `json:"id_distrito"`
	Address           *string `json:"direccion"`
	Capacity          *uint32 `json:"capacidad"`
	PriceCentsPerHour *uint32 `json:"precio_hora_cents"`
	Available         *bool   `json:"disponible"`
	Description       *string `json:"descripcion"`
	OpensAt           *string `json:"hora_apertura"`
	ClosesAt          *string `json:"hora_cierre"`
}

// Update applies a partial update to a space the caller owns. Absent
// fields are left untouched.
func (h *SpaceHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid space id"})
	}
	var req updateSpaceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if !validClock(req.OpensAt) || !validClock(req.ClosesAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "opening hours must be HH:MM"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Spaces.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "space not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !isRowOwner(s.OwnerID, uid) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your space"})
	}
	if req.DistrictID != nil {
		if _, err := h.Districts.GetByID(ctx, *req.DistrictID); err != nil {
			if err == repository.ErrNotFound {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "district not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
	}

	patch := repository.SpacePatch{
		DistrictID: req.DistrictID,
		Address:    req.Address,
		Capacity:   req.Capacity,
		PriceCents: req.PriceCentsPerHour,
		Available:  req.Available,
		Descr:      req.Description,
		OpensAt:    req.OpensAt,
		ClosesAt:   req.ClosesAt,
	}
	if err := h.Spaces.Update(ctx, id, patch); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "space not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return h.Get(c)
}

type availabilityReq struct {
	Available bool `json:"disponible"`
}

// SetAvailability toggles whether the space accepts new reservations.
// Existing reservations are untouched.
func (h *SpaceHandler) SetAvailability(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid space id"})
	}
	var req availabilityReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Spaces.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "space not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !isRowOwner(s.OwnerID, uid) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your space"})
	}
	if err := h.Spaces.SetAvailability(ctx, id, req.Available); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "disponible": req.Available})
}

// Delete removes a space. Refused while pendiente or confirmada
// reservations still end in the future.
func (h *SpaceHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid space id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Spaces.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "space not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !isRowOwner(s.OwnerID, uid) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your space"})
	}
	active, err := h.Reservations.HasActiveForSpace(ctx, id, h.Now().UTC())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if active {
		return c.JSON(http.StatusConflict, echo.Map{"error": "space has active reservations"})
	}
	if err := h.Spaces.Delete(ctx, id); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "space not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Rating returns the average review score of a space. Public.
func (h *SpaceHandler) Rating(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid space id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Spaces.GetByID(ctx, id); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "space not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	avg, err := h.Spaces.AverageRating(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "calificacion": avg})
}

// validClock accepts nil or a "HH:MM" wall-clock string.
func validClock(s *string) bool {
	if s == nil {
		return true
	}
	_, err := time.Parse("15:04", *s)
	return err == nil
}
