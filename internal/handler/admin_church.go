package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/churchfinder/internal/model"
	"github.com/iliyamo/churchfinder/internal/queue"
	"github.com/iliyamo/churchfinder/internal/repository"
)

// AdminHandler serves the church management endpoints (role ADMIN).
type AdminHandler struct {
	Churches   ChurchStore
	Events     EventPublisher
	Index      ChurchIndexer                   // optional
	Invalidate func(ctx context.Context) error // drops cached public responses
	Log        *zap.Logger
}

type churchReq struct {
	SourceRef         *string         `json:"source_ref"`
	Name              string          `json:"name"`
	Denomination      string          `json:"denomination"`
	Street            string          `json:"street"`
	City              string          `json:"city"`
	State             string          `json:"state"`
	PostalCode        string          `json:"postal_code"`
	Country           string          `json:"country"`
	Latitude          *float64        `json:"latitude"`
	Longitude         *float64        `json:"longitude"`
	Phone             string          `json:"phone"`
	Email             string          `json:"email"`
	Website           string          `json:"website"`
	Description       string          `json:"description"`
	FoundedYear       *uint16         `json:"founded_year"`
	AverageAttendance *uint32         `json:"average_attendance"`
	Schedule          model.Schedule  `json:"schedule"`
	Languages         model.Languages `json:"languages"`
	ImageURL          string          `json:"image_url"`
	Verified          bool            `json:"verified"`
}

// church validates the request and returns the normalized record.  The
// returned message is meant for a 400 response.
func (r churchReq) church() (*model.Church, string) {
	if r.Latitude == nil || r.Longitude == nil {
		return nil, "latitude and longitude are required"
	}
	c := &model.Church{
		SourceRef:         r.SourceRef,
		Name:              r.Name,
		Denomination:      r.Denomination,
		Street:            r.Street,
		City:              r.City,
		State:             r.State,
		PostalCode:        r.PostalCode,
		Country:           r.Country,
		Latitude:          *r.Latitude,
		Longitude:         *r.Longitude,
		Phone:             r.Phone,
		Email:             r.Email,
		Website:           r.Website,
		Description:       r.Description,
		FoundedYear:       r.FoundedYear,
		AverageAttendance: r.AverageAttendance,
		Schedule:          r.Schedule,
		Languages:         r.Languages,
		ImageURL:          r.ImageURL,
		Verified:          r.Verified,
	}
	if err := c.Normalize(); err != nil {
		return nil, err.Error()
	}
	return c, ""
}

// afterWrite runs the side effects of a committed church write.  None of
// them can fail the request.
func (h *AdminHandler) afterWrite(c echo.Context, typ string, ch *model.Church) {
	ctx := c.Request().Context()
	if h.Invalidate != nil {
		if err := h.Invalidate(ctx); err != nil {
			h.Log.Warn("cache invalidation failed", zap.Error(err))
		}
	}
	if h.Index != nil {
		if err := h.Index.IndexChurch(ctx, ch); err != nil {
			h.Log.Warn("search index update failed", zap.Uint64("church_id", ch.ID), zap.Error(err))
		}
	}
	uid, _ := getUserID(c)
	ev := queue.ChurchEvent(typ, ch, uid)
	if typ == queue.ChurchVerified {
		v := ch.Verified
		ev.Verified = &v
	}
	publish(ctx, h.Events, h.Log, ev)
}

// Create: POST /api/churches
func (h *AdminHandler) Create(c echo.Context) error {
	var req churchReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ch, msg := req.church()
	if ch == nil {
		return badRequest(c, msg)
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	if err := h.Churches.Create(ctx, ch); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "source_ref already used"})
		}
		return serverError(c, h.Log, "create church", err)
	}
	h.afterWrite(c, queue.ChurchCreated, ch)
	return c.JSON(http.StatusCreated, ch)
}

// Update: PUT /api/churches/:id replaces the editable fields.
func (h *AdminHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid church id")
	}
	var req churchReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ch, msg := req.church()
	if ch == nil {
		return badRequest(c, msg)
	}
	ch.ID = id

	ctx, cancel := dbContext(c)
	defer cancel()

	if err := h.Churches.Update(ctx, ch); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "church not found"})
		}
		return serverError(c, h.Log, "update church", err)
	}
	h.afterWrite(c, queue.ChurchUpdated, ch)
	return c.JSON(http.StatusOK, ch)
}

type verifiedReq struct {
	Verified *bool `json:"verified"`
}

// SetVerified: PUT /api/churches/:id/verified
func (h *AdminHandler) SetVerified(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid church id")
	}
	var req verifiedReq
	if err := c.Bind(&req); err != nil || req.Verified == nil {
		return badRequest(c, "verified (bool) required")
	}

	ctx, cancel := dbContext(c)
	defer cancel()

	if err := h.Churches.SetVerified(ctx, id, *req.Verified); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "church not found"})
		}
		return serverError(c, h.Log, "verify church", err)
	}
	ch, err := h.Churches.GetByID(ctx, id)
	if err != nil {
		return serverError(c, h.Log, "reload church", err)
	}
	h.afterWrite(c, queue.ChurchVerified, ch)
	return c.JSON(http.StatusOK, ch)
}
