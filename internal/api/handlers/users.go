// users.go — обработчики операций над пользователями api-module.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/sftmadness/api-module/internal/api/errors"
	"github.com/sftmadness/api-module/internal/api/middleware"
	"github.com/sftmadness/api-module/internal/domain/model"
	"github.com/sftmadness/api-module/internal/service"
)

// RegisterUser — POST /users. Публичный endpoint регистрации.
func (h *APIHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apierrors.ValidationError(w, "Невалидное тело запроса: ожидается JSON")
		return
	}

	user, err := h.users.Register(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// GetUser — GET /users/{userId}.
func (h *APIHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	requester := h.requester(w, r)
	if requester == nil {
		return
	}

	user, err := h.users.Get(r.Context(), requester, userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// UpdateUser — PUT /users/{userId}. Частичное обновление.
func (h *APIHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	requester := h.requester(w, r)
	if requester == nil {
		return
	}

	var upd model.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		apierrors.ValidationError(w, "Невалидное тело запроса: ожидается JSON")
		return
	}
	if upd.Empty() {
		apierrors.ValidationError(w, "Нет полей для обновления")
		return
	}

	user, err := h.users.Update(r.Context(), requester, userID, upd)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// DeleteUser — DELETE /users/{userId}.
func (h *APIHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userIDParam(w, r)
	if !ok {
		return
	}

	requester := h.requester(w, r)
	if requester == nil {
		return
	}

	if err := h.users.Delete(r.Context(), requester, userID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, "Пользователь удалён")
}

// Logout — POST /users/logout. Добавляет jti текущего токена
// в набор отозванных.
func (h *APIHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствует аутентификация")
		return
	}
	if claims.TokenID == "" {
		apierrors.ValidationError(w, "Токен не содержит jti, отзыв невозможен")
		return
	}

	if err := h.tokens.Add(r.Context(), claims.TokenID, claims.ExpiresAt); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, "Токен отозван")
}

// userIDParam извлекает userId из пути запроса.
func (h *APIHandler) userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "userId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		apierrors.ValidationError(w, "Невалидный идентификатор пользователя")
		return 0, false
	}
	return id, true
}
