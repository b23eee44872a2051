package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kuadra/cocheras-api/internal/model"
	"github.com/kuadra/cocheras-api/internal/repository"
)

// ReviewHandler serves the resenas endpoints. Only users who finished
// a reservation on a space may review it, once per reservation (or
// once per space for reviews not tied to a reservation).
type ReviewHandler struct {
	Reviews      *repository.ReviewRepo
	Reservations *repository.ReservationRepo
	Spaces       *repository.SpaceRepo
}

func NewReviewHandler(rv *repository.ReviewRepo, rs *repository.ReservationRepo, sp *repository.SpaceRepo) *ReviewHandler {
	return &ReviewHandler{Reviews: rv, Reservations: rs, Spaces: sp}
}

type reviewResp struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"id_usuario"`
	SpaceID   uint64    `json:"id_cochera"`
	ReservaID *uint64   `json:"id_reserva,omitempty"`
	Rating    uint8     `json:"calificacion"`
	Comment   string    `json:"comentario"`
	CreatedAt time.Time `json:"fecha_review"`
}

func toReviewResp(r model.Review) reviewResp {
	return reviewResp{
		ID: r.ID, UserID: r.UserID, SpaceID: r.SpaceID, ReservaID: r.ReservaID,
		Rating: r.Rating, Comment: r.Comment, CreatedAt: r.CreatedAt,
	}
}

// List returns reviews, optionally filtered by ?cochera= or ?usuario=.
// Public.
func (h *ReviewHandler) List(c echo.Context) error {
	var spaceID, userID *uint64
	if v := c.QueryParam("cochera"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil || n == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid cochera filter"})
		}
		spaceID = &n
	}
	if v := c.QueryParam("usuario"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil || n == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid usuario filter"})
		}
		userID = &n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	reviews, err := h.Reviews.List(ctx, spaceID, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]reviewResp, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, toReviewResp(r))
	}
	return c.JSON(http.StatusOK, out)
}

type createReviewReq struct {
	SpaceID   uint64  `json:"id_cochera"`
	ReservaID *uint64 `json:"id_reserva"`
	Rating    uint8   `json:"calificacion"`
	Comment   string  `json:"comentario"`
}

// Create adds a review. When id_reserva is given the reservation must
// be the caller's own completada booking of that space; otherwise any
// completada booking of the space qualifies.
func (h *ReviewHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createReviewReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.SpaceID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "id_cochera required"})
	}
	if req.Rating < 1 || req.Rating > 5 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "calificacion must be 1..5"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Spaces.GetByID(ctx, req.SpaceID); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "space not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	if req.ReservaID != nil {
		res, err := h.Reservations.GetByID(ctx, *req.ReservaID)
		if err != nil {
			if err == repository.ErrNotFound {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		if res.UserID != uid || res.SpaceID != req.SpaceID {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "reservation does not match"})
		}
		if res.Status != model.ReservationCompleted {
			return c.JSON(http.StatusConflict, echo.Map{"error": "reservation not completed"})
		}
		exists, err := h.Reviews.ExistsForReservation(ctx, uid, *req.ReservaID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		if exists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "reservation already reviewed"})
		}
	} else {
		completed, err := h.Reservations.HasCompletedForUser(ctx, uid, req.SpaceID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		if !completed {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "no completed reservation for this space"})
		}
		exists, err := h.Reviews.ExistsForSpace(ctx, uid, req.SpaceID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		if exists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "space already reviewed"})
		}
	}

	rv := model.Review{
		UserID:    uid,
		SpaceID:   req.SpaceID,
		ReservaID: req.ReservaID,
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(req.Comment),
	}
	if err := h.Reviews.Create(ctx, &rv); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, toReviewResp(rv))
}

type updateReviewReq struct {
	Rating  *uint8  `json:"calificacion"`
	Comment *string `json:"comentario"`
}

// Update edits a review's rating or comment. Author only.
func (h *ReviewHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid review id"})
	}
	var req updateReviewReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Rating == nil && req.Comment == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "calificacion must be 1..5"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rv, err := h.Reviews.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "review not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if rv.UserID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your review"})
	}
	if err := h.Reviews.Update(ctx, id, req.Rating, req.Comment); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	if req.Rating != nil {
		rv.Rating = *req.Rating
	}
	if req.Comment != nil {
		rv.Comment = *req.Comment
	}
	return c.JSON(http.StatusOK, toReviewResp(rv))
}

// Delete removes a review. Allowed for its author and for the owner of
// the reviewed space.
func (h *ReviewHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid review id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rv, err := h.Reviews.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "review not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if rv.UserID != uid {
		space, err := h.Spaces.GetByID(ctx, rv.SpaceID)
		if err != nil || !isRowOwner(space.OwnerID, uid) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not your review"})
		}
	}
	if err := h.Reviews.Delete(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
