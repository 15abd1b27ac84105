package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/game-rental-reservation/internal/config"
	"github.com/iliyamo/game-rental-reservation/internal/database"
	"github.com/iliyamo/game-rental-reservation/internal/handler"
	"github.com/iliyamo/game-rental-reservation/internal/model"
	"github.com/iliyamo/game-rental-reservation/internal/repository"
	"github.com/iliyamo/game-rental-reservation/internal/service"
	"github.com/iliyamo/game-rental-reservation/internal/utils"
)

const testSecret = "router-test-secret"

var testNow = time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC)

type app struct {
	t  *testing.T
	e  *echo.Echo
	db *database.DB
}

func newApp(t *testing.T) *app {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cat, err := database.LoadCatalog("")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := database.Seed(ctx, db, cat); err != nil {
		t.Fatal(err)
	}

	cfg := config.Config{JWTSecret: testSecret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: bcrypt.MinCost}
	users := repository.NewUserRepo(db)
	games := repository.NewGameRepo(db)
	svc := service.NewReservationService(db, games, repository.NewReservationRepo(db), service.Options{
		Location: time.UTC,
		Now:      func() time.Time { return testNow },
	})

	e := echo.New()
	e.Validator = handler.NewValidator()
	RegisterRoutes(e, db)
	RegisterAuth(e, handler.NewAuthHandler(cfg, users, repository.NewTokenRepo(db)), testSecret)
	RegisterPublic(e, handler.NewGameHandler(games, svc), config.CacheConfig{}, nil)
	resH := handler.NewReservationHandler(svc)
	RegisterCustomer(e, resH, handler.NewUserHandler(users, svc), testSecret)
	RegisterAdmin(e, resH, testSecret)
	return &app{t: t, e: e, db: db}
}

func (a *app) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				a.t.Fatal(err)
			}
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

type authBody struct {
	User struct {
		ID       uint64 `json:"id"`
		Username string `json:"username"`
		Role     string `json:"role"`
	} `json:"user"`
	Access  struct{ Token string } `json:"access"`
	Refresh struct{ Token string } `json:"refresh"`
}

type errBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details []struct {
		Field string `json:"field"`
		Rule  string `json:"rule"`
	} `json:"details"`
}

type resBody struct {
	ID              uint64  `json:"id"`
	UserID          uint64  `json:"user_id"`
	GameID          uint64  `json:"game_id"`
	ReservationDate string  `json:"reservation_date"`
	ReturnDate      *string `json:"return_date"`
	Status          string  `json:"status"`
	TotalPrice      string  `json:"total_price"`
	Notes           *string `json:"notes"`
	GameName        string  `json:"game_name"`
}

func (a *app) register(name string) authBody {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/v1/auth/register", map[string]string{
		"username": name, "email": name + "@example.com", "password": "secret1",
	}, "")
	if rec.Code != http.StatusCreated {
		a.t.Fatalf("register %s: %d %s", name, rec.Code, rec.Body)
	}
	return decode[authBody](a.t, rec)
}

func (a *app) gameID(name string) uint64 {
	a.t.Helper()
	var id uint64
	if err := a.db.Get(&id, `SELECT id FROM games WHERE name = ?`, name); err != nil {
		a.t.Fatalf("game %s: %v", name, err)
	}
	return id
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	if rec := a.do(http.MethodGet, "/healthz", nil, ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body)
	}
	rec := a.do(http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d %s", rec.Code, rec.Body)
	}
}

func TestAuthFlow(t *testing.T) {
	a := newApp(t)
	reg := a.register("alice")
	if reg.User.Role != model.RoleCustomer || reg.Access.Token == "" || reg.Refresh.Token == "" {
		t.Fatalf("register = %+v", reg)
	}

	if rec := a.do(http.MethodPost, "/v1/auth/register", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "secret1",
	}, ""); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate = %d %s", rec.Code, rec.Body)
	}

	rec := a.do(http.MethodPost, "/v1/auth/register", map[string]string{
		"username": "a!", "email": "nope", "password": "123",
	}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid register = %d", rec.Code)
	}
	if body := decode[errBody](t, rec); body.Error != "validation_error" || len(body.Details) != 3 {
		t.Fatalf("invalid register body = %+v", body)
	}

	for _, login := range []string{"alice", "ALICE@example.com"} {
		rec := a.do(http.MethodPost, "/v1/auth/login", map[string]string{"login": login, "password": "secret1"}, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("login %s = %d %s", login, rec.Code, rec.Body)
		}
	}
	if rec := a.do(http.MethodPost, "/v1/auth/login", map[string]string{"email": "alice@example.com", "password": "wrong1"}, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password = %d", rec.Code)
	}

	rec = a.do(http.MethodGet, "/v1/me", nil, reg.Access.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("me = %d", rec.Code)
	}
	if rec := a.do(http.MethodGet, "/v1/me", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me without token = %d", rec.Code)
	}

	rec = a.do(http.MethodPost, "/v1/auth/verify", map[string]string{"token": reg.Access.Token}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("verify = %d %s", rec.Code, rec.Body)
	}
	if rec := a.do(http.MethodPost, "/v1/auth/verify", map[string]string{"token": "garbage"}, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("verify garbage = %d", rec.Code)
	}

	rec = a.do(http.MethodPost, "/v1/auth/refresh", map[string]string{"refresh_token": reg.Refresh.Token}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh = %d %s", rec.Code, rec.Body)
	}
	rotated := decode[authBody](t, rec)
	if rec := a.do(http.MethodPost, "/v1/auth/refresh", map[string]string{"refresh_token": reg.Refresh.Token}, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh = %d", rec.Code)
	}
	if rec := a.do(http.MethodPost, "/v1/auth/refresh-access", map[string]string{"refresh_token": rotated.Refresh.Token}, ""); rec.Code != http.StatusOK {
		t.Fatalf("refresh-access = %d", rec.Code)
	}
	if rec := a.do(http.MethodPost, "/v1/auth/logout", map[string]string{"refresh_token": rotated.Refresh.Token}, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("logout = %d", rec.Code)
	}
	if rec := a.do(http.MethodPost, "/v1/auth/refresh-access", map[string]string{"refresh_token": rotated.Refresh.Token}, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout = %d", rec.Code)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	a := newApp(t)

	rec := a.do(http.MethodGet, "/v1/games", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}
	list := decode[struct {
		Count int `json:"count"`
	}](t, rec)
	if list.Count != 4 {
		t.Fatalf("sellable games = %d", list.Count)
	}

	catan := a.gameID("Catan")
	rec = a.do(http.MethodGet, "/v1/games/"+strconv.FormatUint(catan, 10), nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("detail = %d %s", rec.Code, rec.Body)
	}
	detail := decode[struct {
		Name          string   `json:"name"`
		ReservedDates []string `json:"reserved_dates"`
		Images        []any    `json:"images"`
	}](t, rec)
	if detail.Name != "Catan" || detail.ReservedDates == nil || len(detail.Images) != 2 {
		t.Fatalf("detail = %+v", detail)
	}

	azul := strconv.FormatUint(a.gameID("Azul"), 10)
	if rec := a.do(http.MethodGet, "/v1/games/"+azul, nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unsellable detail = %d", rec.Code)
	}
	if rec := a.do(http.MethodGet, "/v1/games/"+azul+"/availability?date=2025-06-20", nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unsellable availability = %d", rec.Code)
	}

	path := "/v1/games/" + strconv.FormatUint(catan, 10)
	rec = a.do(http.MethodGet, path+"/availability?date=2025-06-20", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("availability = %d %s", rec.Code, rec.Body)
	}
	if av := decode[service.Availability](t, rec); !av.Available || av.TotalStock != 3 {
		t.Fatalf("availability = %+v", av)
	}
	if rec := a.do(http.MethodGet, path+"/availability", nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing date = %d", rec.Code)
	}
	rec = a.do(http.MethodGet, path+"/availability?date=20-06-2025", nil, "")
	if rec.Code != http.StatusBadRequest || decode[errBody](t, rec).Error != "invalid_date" {
		t.Fatalf("bad date = %d %s", rec.Code, rec.Body)
	}

	rec = a.do(http.MethodGet, path+"/calendar?from=2025-06-10&to=2025-06-16", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("calendar = %d %s", rec.Code, rec.Body)
	}
	cal := decode[struct {
		Days []service.Availability `json:"days"`
	}](t, rec)
	if len(cal.Days) != 7 {
		t.Fatalf("calendar days = %d", len(cal.Days))
	}
}

func TestReservationLifecycleOverHTTP(t *testing.T) {
	a := newApp(t)
	alice := a.register("alice")
	bob := a.register("bob")
	dixit := a.gameID("Dixit")

	rec := a.do(http.MethodPost, "/v1/reservations",
		`{"gameId": `+strconv.FormatUint(dixit, 10)+`, "reservationDate": "2025-06-20", "returnDate": "2025-06-22", "notes": "birthday"}`,
		alice.Access.Token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body)
	}
	res := decode[resBody](t, rec)
	if res.Status != "active" || res.ReservationDate != "2025-06-20" || res.ReturnDate == nil || *res.ReturnDate != "2025-06-22" {
		t.Fatalf("created = %+v", res)
	}
	if res.GameName != "Dixit" || res.TotalPrice != "15.5" && res.TotalPrice != "15.50" {
		t.Fatalf("created = %+v", res)
	}
	id := strconv.FormatUint(res.ID, 10)

	rec = a.do(http.MethodPost, "/v1/reservations", map[string]any{"game_id": dixit, "reservation_date": "2025-06-20"}, bob.Access.Token)
	if rec.Code != http.StatusConflict || decode[errBody](t, rec).Error != "date_fully_booked" {
		t.Fatalf("full day = %d %s", rec.Code, rec.Body)
	}
	rec = a.do(http.MethodPost, "/v1/reservations", map[string]any{"game_id": dixit, "reservation_date": "2025-06-01"}, bob.Access.Token)
	if rec.Code != http.StatusBadRequest || decode[errBody](t, rec).Error != "invalid_date" {
		t.Fatalf("past day = %d %s", rec.Code, rec.Body)
	}
	if rec := a.do(http.MethodPost, "/v1/reservations", map[string]any{"reservation_date": "2025-06-20"}, bob.Access.Token); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing game = %d", rec.Code)
	}
	if rec := a.do(http.MethodPost, "/v1/reservations", map[string]any{"game_id": dixit, "reservation_date": "2025-06-20"}, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create = %d", rec.Code)
	}

	if rec := a.do(http.MethodGet, "/v1/reservations/"+id, nil, bob.Access.Token); rec.Code != http.StatusForbidden {
		t.Fatalf("foreign get = %d", rec.Code)
	}
	if rec := a.do(http.MethodDelete, "/v1/reservations/"+id, nil, bob.Access.Token); rec.Code != http.StatusForbidden {
		t.Fatalf("foreign cancel = %d", rec.Code)
	}
	if rec := a.do(http.MethodGet, "/v1/reservations/99999", nil, alice.Access.Token); rec.Code != http.StatusNotFound {
		t.Fatalf("missing get = %d", rec.Code)
	}

	rec = a.do(http.MethodPatch, "/v1/reservations/"+id, `{"return_date": null, "notes": "  "}`, alice.Access.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch = %d %s", rec.Code, rec.Body)
	}
	if patched := decode[resBody](t, rec); patched.ReturnDate != nil || patched.Notes != nil {
		t.Fatalf("patched = %+v", patched)
	}
	if rec := a.do(http.MethodPut, "/v1/reservations/"+id, `{}`, alice.Access.Token); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty patch = %d", rec.Code)
	}
	if rec := a.do(http.MethodPut, "/v1/reservations/"+id, `{"status": "lost"}`, alice.Access.Token); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status = %d", rec.Code)
	}

	rec = a.do(http.MethodGet, "/v1/reservations?status=active", nil, alice.Access.Token)
	if rec.Code != http.StatusOK || decode[struct {
		Count int `json:"count"`
	}](t, rec).Count != 1 {
		t.Fatalf("list = %d %s", rec.Code, rec.Body)
	}
	if rec := a.do(http.MethodGet, "/v1/reservations?status=nope", nil, alice.Access.Token); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad filter = %d", rec.Code)
	}

	rec = a.do(http.MethodDelete, "/v1/reservations/"+id, nil, alice.Access.Token)
	if rec.Code != http.StatusOK || decode[resBody](t, rec).Status != "cancelled" {
		t.Fatalf("cancel = %d %s", rec.Code, rec.Body)
	}
	rec = a.do(http.MethodDelete, "/v1/reservations/"+id, nil, alice.Access.Token)
	if rec.Code != http.StatusConflict || decode[errBody](t, rec).Error != "already_cancelled" {
		t.Fatalf("cancel twice = %d %s", rec.Code, rec.Body)
	}

	rec = a.do(http.MethodPost, "/v1/reservations", map[string]any{"game_id": dixit, "reservation_date": "2025-06-20"}, bob.Access.Token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("rebook freed day = %d %s", rec.Code, rec.Body)
	}

	rec = a.do(http.MethodGet, "/v1/users/profile", nil, alice.Access.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile = %d", rec.Code)
	}
	profile := decode[struct {
		User  struct{ Username string } `json:"user"`
		Stats model.ReservationStats    `json:"stats"`
	}](t, rec)
	if profile.User.Username != "alice" || profile.Stats.Total != 1 || profile.Stats.Cancelled != 1 {
		t.Fatalf("profile = %+v", profile)
	}
}

func TestAdminComplete(t *testing.T) {
	a := newApp(t)
	alice := a.register("alice")
	catan := a.gameID("Catan")

	rec := a.do(http.MethodPost, "/v1/reservations", map[string]any{"game_id": catan, "reservation_date": "2025-06-15"}, alice.Access.Token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body)
	}
	path := "/v1/admin/reservations/" + strconv.FormatUint(decode[resBody](t, rec).ID, 10) + "/complete"

	if rec := a.do(http.MethodPost, path, nil, alice.Access.Token); rec.Code != http.StatusForbidden {
		t.Fatalf("customer complete = %d", rec.Code)
	}

	adminID, err := repository.NewUserRepo(a.db).Create(context.Background(), repository.NewUser{
		Username: "staff", Email: "staff@example.com", Password: "secret1", Role: model.RoleAdmin,
	}, bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	tok, err := utils.NewAccessToken(testSecret, adminID, model.RoleAdmin, 5)
	if err != nil {
		t.Fatal(err)
	}
	rec = a.do(http.MethodPost, path, nil, tok.Token)
	if rec.Code != http.StatusOK || decode[resBody](t, rec).Status != "completed" {
		t.Fatalf("admin complete = %d %s", rec.Code, rec.Body)
	}
	rec = a.do(http.MethodPost, path, nil, tok.Token)
	if rec.Code != http.StatusConflict || decode[errBody](t, rec).Error != "invalid_transition" {
		t.Fatalf("complete twice = %d %s", rec.Code, rec.Body)
	}
}
