package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/churchfinder/internal/model"
	"github.com/iliyamo/churchfinder/internal/repository"
)

// Radius limits in km.
const (
	defaultListRadius   = 25
	defaultNearbyRadius = 10
	maxRadius           = 500
)

// Text search query bounds, counted in characters after trimming.
const (
	minQueryLen = 2
	maxQueryLen = 100
)

// ChurchHandler serves the public directory endpoints.
type ChurchHandler struct {
	Churches ChurchStore
	CheckIns CheckInStore
	Search   TextSearcher // optional; MySQL serves text search when nil
	Log      *zap.Logger
}

// churchDetail is the full record plus visit statistics.
type churchDetail struct {
	*model.Church
	CheckInCount int64 `json:"checkin_count"`
}

// filters reads the exact-match filters shared by list and search.
func filters(c echo.Context, q *repository.ChurchQuery) error {
	q.State = strings.TrimSpace(c.QueryParam("state"))
	q.City = strings.TrimSpace(c.QueryParam("city"))
	q.Denomination = strings.TrimSpace(c.QueryParam("denomination"))
	q.Language = strings.TrimSpace(c.QueryParam("language"))
	if day := strings.ToLower(strings.TrimSpace(c.QueryParam("day"))); day != "" {
		if !model.IsWeekday(day) {
			return errors.New("day must be a weekday name")
		}
		q.Day = day
	}
	if v := strings.TrimSpace(c.QueryParam("verified")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.New("verified must be true or false")
		}
		q.Verified = &b
	}
	return nil
}

// List: GET /api/churches
func (h *ChurchHandler) List(c echo.Context) error {
	q := repository.ChurchQuery{Page: parsePage(c)}
	p, err := parsePoint(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if p != nil {
		q.Point = p
		if q.RadiusKm, err = parseRadius(c, defaultListRadius, maxRadius); err != nil {
			return badRequest(c, err.Error())
		}
	}
	if err := filters(c, &q); err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	items, total, err := h.Churches.List(ctx, q)
	if err != nil {
		return serverError(c, h.Log, "list churches", err)
	}
	return c.JSON(http.StatusOK, pageBody(items, total, q.Page))
}

// Get: GET /api/churches/:id
func (h *ChurchHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid church id")
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	ch, err := h.Churches.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "church not found"})
		}
		return serverError(c, h.Log, "get church", err)
	}
	n, err := h.CheckIns.CountForChurch(ctx, id)
	if err != nil {
		return serverError(c, h.Log, "count check-ins", err)
	}
	return c.JSON(http.StatusOK, churchDetail{Church: ch, CheckInCount: n})
}

// Nearby: GET /api/churches/nearby
func (h *ChurchHandler) Nearby(c echo.Context) error {
	p, err := parsePoint(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if p == nil {
		return badRequest(c, "lat and lng are required")
	}
	radius, err := parseRadius(c, defaultNearbyRadius, maxRadius)
	if err != nil {
		return badRequest(c, err.Error())
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	items, err := h.Churches.Nearby(ctx, *p, radius, limit)
	if err != nil {
		return serverError(c, h.Log, "nearby churches", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":      items,
		"radius_km": radius,
		"limit":     limit,
	})
}

// Search: GET /api/churches/search?q=
// Every term must appear in name, denomination, city or description.  The
// search index answers first when configured; MySQL answers otherwise or
// when the index fails.
func (h *ChurchHandler) Search(c echo.Context) error {
	text := strings.TrimSpace(c.QueryParam("q"))
	if n := utf8.RuneCountInString(text); n < minQueryLen || n > maxQueryLen {
		return badRequest(c, "q must be between 2 and 100 characters")
	}
	q := repository.ChurchQuery{Terms: repository.SearchTerms(text), Page: parsePage(c)}
	if err := filters(c, &q); err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	if h.Search != nil {
		items, total, err := h.Search.Search(ctx, q)
		if err == nil {
			return c.JSON(http.StatusOK, pageBody(items, total, q.Page))
		}
		h.Log.Warn("search index failed, using database", zap.Error(err))
	}

	items, total, err := h.Churches.List(ctx, q)
	if err != nil {
		return serverError(c, h.Log, "search churches", err)
	}
	return c.JSON(http.StatusOK, pageBody(items, total, q.Page))
}
