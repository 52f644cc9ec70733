package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/churchfinder/internal/geo"
	"github.com/iliyamo/churchfinder/internal/middleware"
	"github.com/iliyamo/churchfinder/internal/model"
	"github.com/iliyamo/churchfinder/internal/queue"
	"github.com/iliyamo/churchfinder/internal/repository"
)

// Stores the handlers depend on.  *repository.XRepo implement them.
type (
	ChurchStore interface {
		List(ctx context.Context, q repository.ChurchQuery) ([]model.ChurchSummary, int64, error)
		Nearby(ctx context.Context, p geo.Point, radiusKm float64, limit int) ([]model.ChurchSummary, error)
		GetByID(ctx context.Context, id uint64) (*model.Church, error)
		Exists(ctx context.Context, id uint64) (bool, error)
		Create(ctx context.Context, c *model.Church) error
		Update(ctx context.Context, c *model.Church) error
		SetVerified(ctx context.Context, id uint64, verified bool) error
	}

	CheckInStore interface {
		Create(ctx context.Context, userID, churchID uint64, visitedOn time.Time) (*model.CheckIn, error)
		CountForChurch(ctx context.Context, churchID uint64) (int64, error)
		ListByUser(ctx context.Context, userID uint64, p repository.Page) ([]model.CheckInEntry, int64, error)
	}

	FavoriteStore interface {
		Add(ctx context.Context, userID, churchID uint64) (*model.Favorite, error)
		Remove(ctx context.Context, userID, churchID uint64) error
		ListByUser(ctx context.Context, userID uint64, p repository.Page) ([]model.FavoriteChurch, int64, error)
	}

	ClaimStore interface {
		Create(ctx context.Context, cl *model.ChurchClaim) error
	}

	UserStore interface {
		Create(ctx context.Context, email, password, displayName, role string, cost int) (uint64, error)
		GetByEmail(ctx context.Context, email string) (model.User, error)
		GetByID(ctx context.Context, id uint64) (model.User, error)
		UpdateProfile(ctx context.Context, id uint64, displayName string, lat, lng *float64) error
	}

	TokenStore interface {
		StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
		ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
		Rotate(ctx context.Context, oldHash, newHash string, exp time.Time) (uint64, error)
		RevokeByHash(ctx context.Context, tokenHash string) error
		RevokeAllForUser(ctx context.Context, userID uint64) error
	}

	// TextSearcher serves fuzzy text search; *search.Index implements it.
	TextSearcher interface {
		Search(ctx context.Context, q repository.ChurchQuery) ([]model.ChurchSummary, int64, error)
	}

	// ChurchIndexer keeps the search index in step with writes.
	ChurchIndexer interface {
		IndexChurch(ctx context.Context, c *model.Church) error
	}

	// EventPublisher sends domain events; *service.Publisher implements it.
	EventPublisher interface {
		Publish(ctx context.Context, ev queue.Event) error
	}
)

const dbTimeout = 5 * time.Second

// Paging defaults shared by every list endpoint.
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func dbContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// serverError logs err and answers 500 without leaking the cause.
func serverError(c echo.Context, log *zap.Logger, op string, err error) error {
	log.Error(op, zap.Error(err), zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}

// getUserID returns the authenticated user set by the JWT middleware.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, errors.New("invalid user_id in context")
	}
	return id, nil
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// parsePage reads page and page_size with the shared defaults.
func parsePage(c echo.Context) repository.Page {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("page_size"))
	return repository.NewPage(page, size, defaultPageSize, maxPageSize)
}

// parsePoint reads lat/lng.  Both absent yields nil; one without the
// other, or an invalid number, yields an error naming the field.
func parsePoint(c echo.Context) (*geo.Point, error) {
	latS, lngS := strings.TrimSpace(c.QueryParam("lat")), strings.TrimSpace(c.QueryParam("lng"))
	if latS == "" && lngS == "" {
		return nil, nil
	}
	if latS == "" || lngS == "" {
		return nil, errors.New("lat and lng must be given together")
	}
	lat, err := strconv.ParseFloat(latS, 64)
	if err != nil {
		return nil, errors.New("invalid lat")
	}
	lng, err := strconv.ParseFloat(lngS, 64)
	if err != nil {
		return nil, errors.New("invalid lng")
	}
	p := geo.Point{Lat: lat, Lng: lng}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// parseRadius reads a positive radius in km, clamped to max.
func parseRadius(c echo.Context, def, max float64) (float64, error) {
	s := strings.TrimSpace(c.QueryParam("radius"))
	if s == "" {
		return def, nil
	}
	r, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(r) || r <= 0 {
		return 0, errors.New("radius must be a positive number of km")
	}
	if r > max {
		r = max
	}
	return r, nil
}

func pageBody(data any, total int64, p repository.Page) echo.Map {
	return echo.Map{
		"data":      data,
		"total":     total,
		"page":      p.Number,
		"page_size": p.Size,
	}
}

// publish sends ev and only logs failures; the write already succeeded.
func publish(ctx context.Context, pub EventPublisher, log *zap.Logger, ev queue.Event) {
	if pub == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := pub.Publish(ctx, ev); err != nil {
		log.Warn("event dropped", zap.String("type", ev.Type), zap.Uint64("church_id", ev.ChurchID), zap.Error(err))
	}
}
