package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/churchfinder/internal/geo"
	"github.com/iliyamo/churchfinder/internal/middleware"
	"github.com/iliyamo/churchfinder/internal/model"
	"github.com/iliyamo/churchfinder/internal/queue"
	"github.com/iliyamo/churchfinder/internal/repository"
	"github.com/iliyamo/churchfinder/internal/utils"
)

// fakeChurches keeps churches in memory and records the last list query.
type fakeChurches struct {
	byID      map[uint64]*model.Church
	lastQuery repository.ChurchQuery
	listErr   error
	nextID    uint64
}

func newFakeChurches(cs ...model.Church) *fakeChurches {
	f := &fakeChurches{byID: map[uint64]*model.Church{}, nextID: 100}
	for i := range cs {
		c := cs[i]
		f.byID[c.ID] = &c
	}
	return f
}

func (f *fakeChurches) List(_ context.Context, q repository.ChurchQuery) ([]model.ChurchSummary, int64, error) {
	f.lastQuery = q
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	out := []model.ChurchSummary{}
	for _, c := range f.byID {
		out = append(out, model.ChurchSummary{ID: c.ID, Name: c.Name, City: c.City, State: c.State})
	}
	return out, int64(len(out)), nil
}

func (f *fakeChurches) Nearby(_ context.Context, p geo.Point, radiusKm float64, limit int) ([]model.ChurchSummary, error) {
	out := []model.ChurchSummary{}
	for _, c := range f.byID {
		d := geo.DistanceKm(p, geo.Point{Lat: c.Latitude, Lng: c.Longitude})
		if d <= radiusKm && len(out) < limit {
			out = append(out, model.ChurchSummary{ID: c.ID, Name: c.Name, DistanceKm: &d})
		}
	}
	return out, nil
}

func (f *fakeChurches) GetByID(_ context.Context, id uint64) (*model.Church, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrChurchNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeChurches) Exists(_ context.Context, id uint64) (bool, error) {
	_, ok := f.byID[id]
	return ok, nil
}

func (f *fakeChurches) Create(_ context.Context, c *model.Church) error {
	f.nextID++
	c.ID = f.nextID
	cp := *c
	f.byID[c.ID] = &cp
	return nil
}

func (f *fakeChurches) Update(_ context.Context, c *model.Church) error {
	if _, ok := f.byID[c.ID]; !ok {
		return repository.ErrChurchNotFound
	}
	cp := *c
	f.byID[c.ID] = &cp
	return nil
}

func (f *fakeChurches) SetVerified(_ context.Context, id uint64, v bool) error {
	c, ok := f.byID[id]
	if !ok {
		return repository.ErrChurchNotFound
	}
	c.Verified = v
	return nil
}

type favKey struct{ user, church uint64 }

type fakeFavorites struct {
	churches *fakeChurches
	saved    map[favKey]bool
}

// deletedUserID authenticates but no longer has a users row.
const deletedUserID = 999

func (f *fakeFavorites) Add(_ context.Context, userID, churchID uint64) (*model.Favorite, error) {
	if userID == deletedUserID {
		return nil, repository.ErrUserNotFound
	}
	if _, ok := f.churches.byID[churchID]; !ok {
		return nil, repository.ErrChurchNotFound
	}
	k := favKey{userID, churchID}
	if f.saved[k] {
		return nil, repository.ErrAlreadyFavorited
	}
	f.saved[k] = true
	return &model.Favorite{ID: 1, UserID: userID, ChurchID: churchID, CreatedAt: time.Now().UTC()}, nil
}

func (f *fakeFavorites) Remove(_ context.Context, userID, churchID uint64) error {
	k := favKey{userID, churchID}
	if !f.saved[k] {
		return repository.ErrNotFound
	}
	delete(f.saved, k)
	return nil
}

func (f *fakeFavorites) ListByUser(_ context.Context, userID uint64, p repository.Page) ([]model.FavoriteChurch, int64, error) {
	out := []model.FavoriteChurch{}
	for k := range f.saved {
		if k.user == userID {
			out = append(out, model.FavoriteChurch{Church: model.ChurchSummary{ID: k.church}})
		}
	}
	return out, int64(len(out)), nil
}

type visitKey struct {
	user, church uint64
	day          string
}

type fakeCheckIns struct {
	churches *fakeChurches
	visits   map[visitKey]bool
}

func (f *fakeCheckIns) Create(_ context.Context, userID, churchID uint64, day time.Time) (*model.CheckIn, error) {
	if _, ok := f.churches.byID[churchID]; !ok {
		return nil, repository.ErrChurchNotFound
	}
	k := visitKey{userID, churchID, day.Format(model.DateLayout)}
	if f.visits[k] {
		return nil, repository.ErrAlreadyCheckedIn
	}
	f.visits[k] = true
	return &model.CheckIn{ID: uint64(len(f.visits)), UserID: userID, ChurchID: churchID, VisitedOn: day, CreatedAt: time.Now().UTC()}, nil
}

func (f *fakeCheckIns) CountForChurch(_ context.Context, churchID uint64) (int64, error) {
	var n int64
	for k := range f.visits {
		if k.church == churchID {
			n++
		}
	}
	return n, nil
}

func (f *fakeCheckIns) ListByUser(_ context.Context, userID uint64, _ repository.Page) ([]model.CheckInEntry, int64, error) {
	out := []model.CheckInEntry{}
	for k := range f.visits {
		if k.user == userID {
			out = append(out, model.CheckInEntry{ChurchID: k.church, VisitedOn: k.day})
		}
	}
	return out, int64(len(out)), nil
}

type fakeClaims struct {
	churches *fakeChurches
	pending  map[favKey]bool
}

func (f *fakeClaims) Create(_ context.Context, cl *model.ChurchClaim) error {
	if _, ok := f.churches.byID[cl.ChurchID]; !ok {
		return repository.ErrChurchNotFound
	}
	k := favKey{cl.UserID, cl.ChurchID}
	if f.pending[k] {
		return repository.ErrClaimPending
	}
	f.pending[k] = true
	cl.ID = uint64(len(f.pending))
	cl.Status = model.ClaimPending
	return nil
}

type fakeSearcher struct {
	err   error
	calls int
}

func (f *fakeSearcher) Search(_ context.Context, q repository.ChurchQuery) ([]model.ChurchSummary, int64, error) {
	f.calls++
	if f.err != nil {
		return nil, 0, f.err
	}
	return []model.ChurchSummary{{ID: 42, Name: "From index"}}, 1, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []string{}
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// asUser marks the request as authenticated the way JWTAuth does.
func asUser(id uint64, role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.CtxUserID, id)
			c.Set(middleware.CtxRole, role)
			return next(c)
		}
	}
}

func call(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	return callAs(e, method, target, body, "")
}

// callAs sends the request with a bearer token when one is given.
func callAs(e *echo.Echo, method, target, body, bearer string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type fakeUsers struct {
	byID   map[uint64]model.User
	nextID uint64
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[uint64]model.User{}} }

func (f *fakeUsers) Create(_ context.Context, email, password, displayName, role string, cost int) (uint64, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	f.nextID++
	f.byID[f.nextID] = model.User{ID: f.nextID, Email: email, PasswordHash: hash, DisplayName: displayName, Role: role, IsActive: true}
	return f.nextID, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id uint64, displayName string, lat, lng *float64) error {
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.DisplayName, u.HomeLatitude, u.HomeLongitude = displayName, lat, lng
	f.byID[id] = u
	return nil
}

type storedToken struct {
	user    uint64
	exp     time.Time
	revoked bool
}

type fakeTokens struct {
	byHash map[string]*storedToken
}

func newFakeTokens() *fakeTokens { return &fakeTokens{byHash: map[string]*storedToken{}} }

func (f *fakeTokens) StoreRefresh(_ context.Context, userID uint64, hash string, exp time.Time) error {
	f.byHash[hash] = &storedToken{user: userID, exp: exp}
	return nil
}

func (f *fakeTokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	t, ok := f.byHash[hash]
	if !ok || t.revoked || time.Now().After(t.exp) {
		return 0, repository.ErrInvalidRefresh
	}
	return t.user, nil
}

func (f *fakeTokens) Rotate(ctx context.Context, oldHash, newHash string, exp time.Time) (uint64, error) {
	uid, err := f.ValidateRefresh(ctx, oldHash)
	if err != nil {
		return 0, err
	}
	f.byHash[oldHash].revoked = true
	f.byHash[newHash] = &storedToken{user: uid, exp: exp}
	return uid, nil
}

func (f *fakeTokens) RevokeByHash(_ context.Context, hash string) error {
	if t, ok := f.byHash[hash]; ok {
		t.revoked = true
	}
	return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	for _, t := range f.byHash {
		if t.user == userID {
			t.revoked = true
		}
	}
	return nil
}
