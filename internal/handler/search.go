package handler

import (
	"context"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kuadra/cocheras-api/internal/repository"
)

// SearchHandler serves the public listing search and the nearby
// lookup. Both are unauthenticated and sit behind the response cache.
type SearchHandler struct {
	Spaces *repository.SpaceRepo
}

func NewSearchHandler(s *repository.SpaceRepo) *SearchHandler {
	return &SearchHandler{Spaces: s}
}

// Search filters available spaces by district, price range, capacity
// and a free time window, with pagination. The total match count and
// page count are returned in X-Total-Count and X-Total-Pages headers
// so clients can render pagers without a second query.
func (h *SearchHandler) Search(c echo.Context) error {
	var f repository.SearchFilter

	if v := c.QueryParam("distrito"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil || n == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid distrito"})
		}
		f.DistrictID = &n
	}
	if v := c.QueryParam("precio_min"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid precio_min"})
		}
		p := uint32(n)
		f.MinPriceCents = &p
	}
	if v := c.QueryParam("precio_max"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid precio_max"})
		}
		p := uint32(n)
		f.MaxPriceCents = &p
	}
	if f.MinPriceCents != nil && f.MaxPriceCents != nil && *f.MinPriceCents > *f.MaxPriceCents {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "precio_min greater than precio_max"})
	}
	if v := c.QueryParam("capacidad"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid capacidad"})
		}
		cap32 := uint32(n)
		f.Capacity = &cap32
	}

	desde, hasta := c.QueryParam("desde"), c.QueryParam("hasta")
	if (desde == "") != (hasta == "") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "desde and hasta go together"})
	}
	if desde != "" {
		from, err := time.Parse(time.RFC3339, desde)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid desde"})
		}
		to, err := time.Parse(time.RFC3339, hasta)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hasta"})
		}
		if !from.Before(to) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "desde must be before hasta"})
		}
		fromUTC, toUTC := from.UTC(), to.UTC()
		f.From, f.To = &fromUTC, &toUTC
	}

	switch v := c.QueryParam("orden"); v {
	case "", "precio_asc", "precio_desc", "calificacion":
		f.OrderBy = v
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid orden"})
	}
	f.Page, _ = strconv.Atoi(c.QueryParam("page"))
	f.PerPage, _ = strconv.Atoi(c.QueryParam("per_page"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	spaces, total, err := h.Spaces.Search(ctx, f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "search failed"})
	}

	perPage := f.PerPage
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}
	pages := (total + perPage - 1) / perPage
	c.Response().Header().Set("X-Total-Count", strconv.Itoa(total))
	c.Response().Header().Set("X-Total-Pages", strconv.Itoa(pages))

	out := make([]spaceResp, 0, len(spaces))
	for _, s := range spaces {
		out = append(out, toSpaceResp(s))
	}
	return c.JSON(http.StatusOK, out)
}

type nearbySpace struct {
	spaceResp
	DistanceKm float64 `json:"distancia_km"`
}

// Nearby returns available spaces ordered by distance from the given
// coordinates. Listings carry no stored coordinates yet, so the
// distance is a stable simulation derived from the space id and the
// query point, good enough for the mobile clients to exercise the
// flow.
// TODO: replace with a real haversine ordering once cocheras gets
// lat/lng columns.
func (h *SearchHandler) Nearby(c echo.Context) error {
	lat, err := strconv.ParseFloat(c.QueryParam("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lat"})
	}
	lng, err := strconv.ParseFloat(c.QueryParam("lng"), 64)
	if err != nil || lng < -180 || lng > 180 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lng"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	spaces, _, err := h.Spaces.Search(ctx, repository.SearchFilter{PerPage: 100})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "search failed"})
	}

	out := make([]nearbySpace, 0, len(spaces))
	for _, s := range spaces {
		out = append(out, nearbySpace{
			spaceResp:  toSpaceResp(s),
			DistanceKm: simulatedDistanceKm(s.ID, lat, lng),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return c.JSON(http.StatusOK, out)
}

// simulatedDistanceKm produces a deterministic pseudo-distance in the
// 0..10 km range for a space and a query point.
func simulatedDistanceKm(id uint64, lat, lng float64) float64 {
	seed := float64(id*2654435761%10007) / 10007.0
	wobble := math.Abs(math.Sin(lat*0.7+lng*0.3+float64(id))) * 0.5
	d := seed*9.5 + wobble
	return math.Round(d*100) / 100
}
