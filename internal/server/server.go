// Пакет server — HTTP-сервер api-module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/sftmadness/api-module/internal/api/errors"
	"github.com/sftmadness/api-module/internal/api/handlers"
	"github.com/sftmadness/api-module/internal/api/middleware"
	"github.com/sftmadness/api-module/internal/config"
)

// Server — HTTP-сервер api-module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// jwtAuth — JWT middleware (может быть nil для тестирования без auth).
func New(cfg *config.Config, logger *slog.Logger, handler *handlers.APIHandler, jwtAuth *middleware.JWTAuth) *Server {
	router := NewRouter(logger, handler, jwtAuth)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi-роутер со всеми маршрутами и middleware.
// Вынесен отдельно для использования в httptest.
func NewRouter(logger *slog.Logger, handler *handlers.APIHandler, jwtAuth *middleware.JWTAuth) chi.Router {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам).
	// CORS первым: заголовки должны быть на каждом ответе,
	// включая ошибки аутентификации и 404.
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// JWT middleware с исключениями для публичных endpoints.
	// Health и metrics проверяются Kubernetes напрямую, без API Gateway.
	// Регистрация (POST /users) — единственный публичный доменный endpoint.
	// Несовпавшие маршруты пропускаются без auth: неизвестный путь должен
	// отвечать 404, а не 401.
	if jwtAuth != nil {
		router.Use(jwtAuthWithExclusions(jwtAuth, router, publicRoute{
			prefixes: []string{"/health/", "/metrics"},
			exact:    map[string]string{"/users": http.MethodPost},
		}))
	}

	// Операционные endpoints
	router.Get("/health/live", handler.HealthLive)
	router.Get("/health/ready", handler.HealthReady)
	router.Get("/metrics", handler.GetMetrics)

	// Пользователи
	router.Post("/users", handler.RegisterUser)
	router.Post("/users/logout", handler.Logout)
	router.Get("/users/{userId}", handler.GetUser)
	router.Put("/users/{userId}", handler.UpdateUser)
	router.Delete("/users/{userId}", handler.DeleteUser)

	// Файлы
	router.Post("/scrapedFiles", handler.CreateFile)
	router.Get("/scrapedFiles/{fileId}", handler.ReadFile)
	router.Delete("/scrapedFiles/{fileId}", handler.DeleteFile)

	// Неизвестный маршрут и неподдерживаемый метод — 404 без побочных
	// эффектов аутентификации
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierrors.NotFound(w, "Маршрут не найден: "+r.Method+" "+r.URL.Path)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apierrors.NotFound(w, "Маршрут не найден: "+r.Method+" "+r.URL.Path)
	})

	return router
}

// publicRoute — пути, проходящие без JWT.
type publicRoute struct {
	// prefixes — префиксы путей (health, metrics)
	prefixes []string
	// exact — точный путь → разрешённый без auth метод
	exact map[string]string
}

func (p publicRoute) matches(r *http.Request) bool {
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	if method, ok := p.exact[r.URL.Path]; ok && r.Method == method {
		return true
	}
	return false
}

// jwtAuthWithExclusions оборачивает JWTAuth.Middleware(), пропуская публичные
// пути и запросы, не совпавшие ни с одним маршрутом (router захватывается
// до регистрации маршрутов, Match вызывается в момент запроса).
func jwtAuthWithExclusions(jwtAuth *middleware.JWTAuth, router chi.Router, public publicRoute) func(http.Handler) http.Handler {
	jwtMiddleware := jwtAuth.Middleware()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public.matches(r) {
				next.ServeHTTP(w, r)
				return
			}

			rctx := chi.NewRouteContext()
			if !router.Match(rctx, r.Method, r.URL.Path) {
				// Запрос упадёт в NotFound/MethodNotAllowed без auth
				next.ServeHTTP(w, r)
				return
			}

			jwtMiddleware(next).ServeHTTP(w, r)
		})
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
