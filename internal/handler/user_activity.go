package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/churchfinder/internal/model"
	"github.com/iliyamo/churchfinder/internal/queue"
	"github.com/iliyamo/churchfinder/internal/repository"
	"github.com/iliyamo/churchfinder/internal/utils"
)

// UserHandler serves the endpoints that record what a signed-in user does:
// favorites, check-ins and listing claims.
type UserHandler struct {
	Favorites FavoriteStore
	CheckIns  CheckInStore
	Claims    ClaimStore
	Events    EventPublisher
	Log       *zap.Logger
	Now       func() time.Time // clock for check-in dates; defaults to time.Now
}

func (h *UserHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

type favoriteReq struct {
	ChurchID uint64 `json:"church_id"`
}

// AddFavorite: POST /api/users/favorites
func (h *UserHandler) AddFavorite(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req favoriteReq
	if err := c.Bind(&req); err != nil || req.ChurchID == 0 {
		return badRequest(c, "church_id required")
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	f, err := h.Favorites.Add(ctx, uid, req.ChurchID)
	switch {
	case errors.Is(err, repository.ErrAlreadyFavorited):
		return c.JSON(http.StatusConflict, echo.Map{"error": "church already in favorites"})
	case errors.Is(err, repository.ErrUserNotFound):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "account no longer exists"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "church not found"})
	case err != nil:
		return serverError(c, h.Log, "add favorite", err)
	}
	return c.JSON(http.StatusCreated, f)
}

// RemoveFavorite: DELETE /api/users/favorites/:church_id
func (h *UserHandler) RemoveFavorite(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	churchID, ok := parseID(c, "church_id")
	if !ok {
		return badRequest(c, "invalid church id")
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	if err := h.Favorites.Remove(ctx, uid, churchID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "favorite not found"})
		}
		return serverError(c, h.Log, "remove favorite", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListFavorites: GET /api/users/favorites, newest first.
func (h *UserHandler) ListFavorites(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	p := parsePage(c)

	ctx, cancel := dbContext(c)
	defer cancel()

	items, total, err := h.Favorites.ListByUser(ctx, uid, p)
	if err != nil {
		return serverError(c, h.Log, "list favorites", err)
	}
	return c.JSON(http.StatusOK, pageBody(items, total, p))
}

type checkInReq struct {
	VisitedOn string `json:"visited_on"` // YYYY-MM-DD, defaults to today (UTC)
}

type checkInResp struct {
	ID        uint64    `json:"id"`
	ChurchID  uint64    `json:"church_id"`
	VisitedOn string    `json:"visited_on"`
	CreatedAt time.Time `json:"created_at"`
}

// CheckIn: POST /api/churches/:id/checkins
func (h *UserHandler) CheckIn(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	churchID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid church id")
	}
	var req checkInReq
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid body")
		}
	}

	today := h.now().Truncate(24 * time.Hour)
	day := today
	if s := strings.TrimSpace(req.VisitedOn); s != "" {
		d, err := time.Parse(model.DateLayout, s)
		if err != nil {
			return badRequest(c, "visited_on must be YYYY-MM-DD")
		}
		if d.After(today) {
			return badRequest(c, "visited_on must not be in the future")
		}
		day = d
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	ci, err := h.CheckIns.Create(ctx, uid, churchID, day)
	switch {
	case errors.Is(err, repository.ErrAlreadyCheckedIn):
		return c.JSON(http.StatusConflict, echo.Map{"error": "already checked in on this date"})
	case errors.Is(err, repository.ErrUserNotFound):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "account no longer exists"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "church not found"})
	case err != nil:
		return serverError(c, h.Log, "check in", err)
	}

	publish(ctx, h.Events, h.Log, queue.Event{
		Type:      queue.CheckInRecorded,
		ChurchID:  churchID,
		UserID:    uid,
		VisitedOn: ci.VisitDate(),
	})
	return c.JSON(http.StatusCreated, checkInResp{
		ID:        ci.ID,
		ChurchID:  ci.ChurchID,
		VisitedOn: ci.VisitDate(),
		CreatedAt: ci.CreatedAt,
	})
}

// ListCheckIns: GET /api/users/checkins, most recent visit first.
func (h *UserHandler) ListCheckIns(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	p := parsePage(c)

	ctx, cancel := dbContext(c)
	defer cancel()

	items, total, err := h.CheckIns.ListByUser(ctx, uid, p)
	if err != nil {
		return serverError(c, h.Log, "list check-ins", err)
	}
	return c.JSON(http.StatusOK, pageBody(items, total, p))
}

type claimReq struct {
	ContactName string `json:"contact_name"`
	ContactRole string `json:"contact_role"`
	Message     string `json:"message"`
}

// Claim: POST /api/churches/:id/claim records a request to manage the
// listing.  Review happens outside the API.
func (h *UserHandler) Claim(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	churchID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid church id")
	}
	var req claimReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	cl := &model.ChurchClaim{
		ChurchID:    churchID,
		UserID:      uid,
		ContactName: utils.PlainText(req.ContactName),
		ContactRole: utils.PlainText(req.ContactRole),
		Message:     utils.PlainText(req.Message),
	}
	if cl.ContactName == "" || utf8.RuneCountInString(cl.ContactName) > 120 {
		return badRequest(c, "contact_name required (at most 120 characters)")
	}
	if utf8.RuneCountInString(cl.ContactRole) > 120 {
		return badRequest(c, "contact_role at most 120 characters")
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	err = h.Claims.Create(ctx, cl)
	switch {
	case errors.Is(err, repository.ErrClaimPending):
		return c.JSON(http.StatusConflict, echo.Map{"error": "claim already pending"})
	case errors.Is(err, repository.ErrUserNotFound):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "account no longer exists"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "church not found"})
	case err != nil:
		return serverError(c, h.Log, "create claim", err)
	}

	publish(ctx, h.Events, h.Log, queue.Event{
		Type:     queue.ChurchClaimed,
		ChurchID: churchID,
		UserID:   uid,
		ClaimID:  cl.ID,
	})
	return c.JSON(http.StatusCreated, cl)
}
