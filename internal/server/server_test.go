package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sftmadness/api-module/internal/api/handlers"
	"github.com/sftmadness/api-module/internal/api/middleware"
	"github.com/sftmadness/api-module/internal/domain/model"
	"github.com/sftmadness/api-module/internal/repository"
	"github.com/sftmadness/api-module/internal/service"
)

// --- Минимальные фейки зависимостей ---

type stubUserRepo struct{}

func (stubUserRepo) Create(_ context.Context, u *model.User) error {
	u.ID = 1
	u.JoinDate = time.Now()
	return nil
}
func (stubUserRepo) GetByID(context.Context, int64) (*model.User, error) {
	return nil, repository.ErrNotFound
}
func (stubUserRepo) GetByCognitoID(context.Context, string) (*model.User, error) {
	return nil, repository.ErrNotFound
}
func (stubUserRepo) Update(context.Context, int64, model.UserUpdate, func(*model.User) error) (*model.User, error) {
	return nil, repository.ErrNotFound
}
func (stubUserRepo) Delete(context.Context, int64) (*model.User, error) {
	return nil, repository.ErrNotFound
}

type stubFileRepo struct{}

func (stubFileRepo) Create(_ context.Context, f *model.ScrapedFile) error {
	f.ID = 1
	return nil
}
func (stubFileRepo) GetByIDAndUser(context.Context, int64, int64) (*model.ScrapedFile, error) {
	return nil, repository.ErrNotFound
}
func (stubFileRepo) DeleteByIDAndUser(context.Context, int64, int64) error {
	return repository.ErrNotFound
}

type stubIdP struct{}

func (stubIdP) CreateUser(_ context.Context, email, _ string) (string, error) {
	return "sub-" + email, nil
}
func (stubIdP) UpdateEmail(context.Context, string, string) error { return nil }
func (stubIdP) DeleteUser(context.Context, string) error          { return nil }

type stubBlobs struct{}

func (stubBlobs) Put(context.Context, string, []byte, string) error { return nil }
func (stubBlobs) Get(context.Context, string) ([]byte, error)       { return nil, nil }
func (stubBlobs) Delete(context.Context, string) error              { return nil }

type stubTokens struct{}

func (stubTokens) Add(context.Context, string, time.Time) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestRouter собирает роутер с фейковыми зависимостями и JWT auth,
// указывающим на недоступный JWKS (любой токен будет отклонён).
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := testLogger()

	users := service.NewUserService(stubUserRepo{}, stubIdP{}, logger)
	files := service.NewFileService(stubFileRepo{}, stubBlobs{}, logger)
	health := handlers.NewHealthHandler(nil, nil, nil)
	handler := handlers.NewAPIHandler(health, users, files, stubTokens{}, logger)

	jwtAuth := middleware.NewJWTAuth(
		"http://127.0.0.1:0/jwks", "issuer", "audience", nil, time.Second, logger,
	)

	return NewRouter(logger, handler, jwtAuth)
}

func TestRouter_UnknownRoute(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/unknown/route", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// Неизвестный маршрут — 404 без требования аутентификации
	if rec.Code != http.StatusNotFound {
		t.Errorf("ожидался статус 404, получен %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Маршрут не найден") {
		t.Errorf("неожиданное тело: %s", rec.Body.String())
	}
}

func TestRouter_UnsupportedMethod(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPatch, "/users/1", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("ожидался статус 404, получен %d", rec.Code)
	}
}

func TestRouter_OptionsPreflight(t *testing.T) {
	router := newTestRouter(t)

	// Preflight проходит без токена для любого пути
	for _, path := range []string{"/users", "/users/1", "/scrapedFiles/7", "/anything"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("OPTIONS %s: ожидался статус 200, получен %d", path, rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Errorf("OPTIONS %s: отсутствуют CORS-заголовки", path)
		}
	}
}

func TestRouter_CORSHeadersOnErrors(t *testing.T) {
	router := newTestRouter(t)

	// CORS-заголовки присутствуют и на ошибках
	req := httptest.NewRequest(http.MethodGet, "/users/1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("ожидался статус 401, получен %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS-заголовки должны быть на каждом ответе")
	}
}

func TestRouter_RegisterIsPublic(t *testing.T) {
	router := newTestRouter(t)

	body := strings.NewReader(`{"email":"user@example.com","password":"Secret123!"}`)
	req := httptest.NewRequest(http.MethodPost, "/users", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// Регистрация доступна без токена
	if rec.Code != http.StatusCreated {
		t.Errorf("ожидался статус 201, получен %d, тело: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_ProtectedRoutesRequireAuth(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/users/1"},
		{http.MethodPut, "/users/1"},
		{http.MethodDelete, "/users/1"},
		{http.MethodPost, "/users/logout"},
		{http.MethodPost, "/scrapedFiles"},
		{http.MethodGet, "/scrapedFiles/1"},
		{http.MethodDelete, "/scrapedFiles/1"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("ожидался статус 401, получен %d", rec.Code)
			}
		})
	}
}

func TestRouter_HealthIsPublic(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/health/live", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: ожидался статус 200, получен %d", path, rec.Code)
		}
	}

	// readiness с nil-зависимостями — 503, но доступен без токена
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ожидался статус 503, получен %d", rec.Code)
	}
}
