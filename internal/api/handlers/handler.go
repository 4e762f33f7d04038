// handler.go — основной обработчик API api-module.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/sftmadness/api-module/internal/api/errors"
	"github.com/sftmadness/api-module/internal/api/middleware"
	"github.com/sftmadness/api-module/internal/domain/model"
	"github.com/sftmadness/api-module/internal/service"
)

// TokenRevoker — добавление jti в набор отозванных токенов.
// Реализуется repository.InvalidatedTokenRepository.
type TokenRevoker interface {
	Add(ctx context.Context, jti string, expiresAt time.Time) error
}

// APIHandler — основной обработчик API.
type APIHandler struct {
	health *HealthHandler
	users  *service.UserService
	files  *service.FileService
	tokens TokenRevoker
	logger *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	users *service.UserService,
	files *service.FileService,
	tokens TokenRevoker,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health: health,
		users:  users,
		files:  files,
		tokens: tokens,
		logger: logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// requester находит пользователя по sub из JWT в контексте запроса.
// Пишет ответ об ошибке и возвращает nil, если пользователь не найден.
func (h *APIHandler) requester(w http.ResponseWriter, r *http.Request) *model.User {
	subject := middleware.SubjectFromContext(r.Context())
	if subject == "" {
		apierrors.Unauthorized(w, "Отсутствует аутентификация")
		return nil
	}

	user, err := h.users.ResolveBySubject(r.Context(), subject)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Пользователь не найден")
			return nil
		}
		h.writeServiceError(w, err)
		return nil
	}
	return user
}

// writeServiceError сопоставляет ошибку сервисного слоя HTTP-статусу.
// Текст ошибки отдаётся клиенту как есть.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	default:
		h.logger.Error("Внутренняя ошибка",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, err.Error())
	}
}
