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

// DistrictHandler serves the distritos catalogue. Reads are public;
// writes require authentication.
type DistrictHandler struct {
	Districts *repository.DistrictRepo
}

func NewDistrictHandler(d *repository.DistrictRepo) *DistrictHandler {
	return &DistrictHandler{Districts: d}
}

type districtResp struct {
	ID         uint64 `json:"id"`
	Name       string `json:"nombre"`
	PostalCode string `json:"codigo_postal"`
	City       string `json:"ciudad"`
	Province   string `json:"provincia"`
	Country    string `json:"pais"`
}

func toDistrictResp(d model.District) districtResp {
	return districtResp{
		ID: d.ID, Name: d.Name, PostalCode: d.PostalCode,
		City: d.City, Province: d.Province, Country: d.Country,
	}
}

// List returns all districts ordered by name.
func (h *DistrictHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	districts, err := h.Districts.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]districtResp, 0, len(districts))
	for _, d := range districts {
		out = append(out, toDistrictResp(d))
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns one district by id.
func (h *DistrictHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid district id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	d, err := h.Districts.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "district not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toDistrictResp(d))
}

type districtReq struct {
	Name       string `json:"nombre"`
	PostalCode string `json:"codigo_postal"`
	City       string `json:"ciudad"`
	Province   string `json:"provincia"`
	Country    string `json:"pais"`
}

// Create adds a new district.
func (h *DistrictHandler) Create(c echo.Context) error {
	var req districtReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nombre required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	d := model.District{
		Name: req.Name, PostalCode: req.PostalCode,
		City: req.City, Province: req.Province, Country: req.Country,
	}
	if err := h.Districts.Create(ctx, &d); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, toDistrictResp(d))
}

// Update replaces the fields of a district.
func (h *DistrictHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid district id"})
	}
	var req districtReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nombre required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	d := model.District{
		ID: id, Name: req.Name, PostalCode: req.PostalCode,
		City: req.City, Province: req.Province, Country: req.Country,
	}
	if err := h.Districts.Update(ctx, d); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "district not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, toDistrictResp(d))
}

// Delete removes a district. Refused while cocheras still reference it.
func (h *DistrictHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid district id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Districts.Delete(ctx, id); err != nil {
		switch err {
		case repository.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "district not found"})
		case repository.ErrConflict:
			return c.JSON(http.StatusConflict, echo.Map{"error": "district has spaces"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
