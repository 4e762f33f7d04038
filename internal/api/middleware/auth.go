// auth.go — JWT middleware для аутентификации api-module.
// Валидирует Bearer token по JWKS Identity Provider: подпись (RS256),
// срок действия, audience, issuer, отзыв по jti.
// JWKS загружается заново на каждый запрос — кэширование между запросами
// отсутствует намеренно (простота ценой задержки; известная слабость).
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/sftmadness/api-module/internal/api/errors"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyClaims — извлечённые claims в контексте запроса.
	ContextKeyClaims contextKey = "jwt_claims"
)

// AuthClaims — извлечённые claims из JWT.
// Помещаются в контекст запроса для downstream handlers.
type AuthClaims struct {
	// Subject — sub из JWT (идентификатор учётной записи в Identity Provider).
	Subject string
	// Email — email из JWT.
	Email string
	// TokenID — jti, используется для отзыва токена.
	TokenID string
	// ExpiresAt — срок действия токена.
	ExpiresAt time.Time
}

// TokenRevocations — проверка отзыва токена по jti.
// Реализуется repository.InvalidatedTokenRepository.
type TokenRevocations interface {
	Exists(ctx context.Context, jti string) (bool, error)
}

// idTokenClaims — raw claims из JWT для парсинга.
type idTokenClaims struct {
	jwt.RegisteredClaims
	// Email — электронная почта.
	Email string `json:"email"`
}

// JWTAuth — middleware для JWT-аутентификации через JWKS Identity Provider.
type JWTAuth struct {
	jwksURL     string
	issuer      string
	audience    string
	revocations TokenRevocations
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewJWTAuth создаёт JWT middleware.
// jwksURL — well-known JWKS endpoint Identity Provider.
// issuer — ожидаемый issuer JWT (пустая строка отключает проверку).
// audience — ожидаемый audience (App Client ID).
// revocations — проверка отзыва токенов (может быть nil).
// clientTimeout — таймаут HTTP-клиента при загрузке JWKS.
func NewJWTAuth(
	jwksURL string,
	issuer string,
	audience string,
	revocations TokenRevocations,
	clientTimeout time.Duration,
	logger *slog.Logger,
) *JWTAuth {
	return &JWTAuth{
		jwksURL:     jwksURL,
		issuer:      issuer,
		audience:    audience,
		revocations: revocations,
		httpClient:  &http.Client{Timeout: clientTimeout},
		logger:      logger.With(slog.String("component", "jwt_auth")),
	}
}

// fetchKeyfunc загружает текущий JWKS и строит keyfunc для проверки подписи.
// Вызывается на каждый запрос.
func (j *JWTAuth) fetchKeyfunc(ctx context.Context) (keyfunc.Keyfunc, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.jwksURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("создание запроса JWKS: %w", err)
	}

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("загрузка JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint вернул статус %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("чтение JWKS: %w", err)
	}

	kf, err := keyfunc.NewJWKSetJSON(json.RawMessage(raw))
	if err != nil {
		return nil, fmt.Errorf("разбор JWKS: %w", err)
	}

	return kf, nil
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token, валидирует подпись через свежезагруженный JWKS,
// проверяет отзыв по jti и помещает claims в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем Bearer token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := parts[1]
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			// Свежий JWKS на каждый запрос
			kf, err := j.fetchKeyfunc(r.Context())
			if err != nil {
				j.logger.Error("Не удалось загрузить JWKS",
					slog.String("error", err.Error()),
					slog.String("url", j.jwksURL),
				)
				apierrors.Unauthorized(w, "Не удалось проверить токен")
				return
			}

			// Парсинг и валидация JWT
			rawClaims := &idTokenClaims{}
			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithAudience(j.audience),
			}
			if j.issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
			}

			token, err := jwt.ParseWithClaims(tokenString, rawClaims, kf.KeyfuncCtx(r.Context()), parserOpts...)
			if err != nil {
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			if !token.Valid {
				apierrors.Unauthorized(w, "Невалидный токен")
				return
			}

			subject, err := rawClaims.GetSubject()
			if err != nil || subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			// Проверка отзыва по jti
			if j.revocations != nil && rawClaims.ID != "" {
				revoked, err := j.revocations.Exists(r.Context(), rawClaims.ID)
				if err != nil {
					j.logger.Error("Ошибка проверки отзыва токена",
						slog.String("jti", rawClaims.ID),
						slog.String("error", err.Error()),
					)
					apierrors.Unauthorized(w, "Не удалось проверить токен")
					return
				}
				if revoked {
					apierrors.Unauthorized(w, "Токен отозван")
					return
				}
			}

			authClaims := &AuthClaims{
				Subject: subject,
				Email:   rawClaims.Email,
				TokenID: rawClaims.ID,
			}
			if rawClaims.ExpiresAt != nil {
				authClaims.ExpiresAt = rawClaims.ExpiresAt.Time
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, authClaims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// --- Context helpers ---

// ClaimsFromContext извлекает AuthClaims из контекста запроса.
// Возвращает nil, если claims не найдены.
func ClaimsFromContext(ctx context.Context) *AuthClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AuthClaims)
	return claims
}

// SubjectFromContext извлекает sub из контекста запроса.
// Возвращает пустую строку, если claims не найдены.
func SubjectFromContext(ctx context.Context) string {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return ""
	}
	return claims.Subject
}

// --- ReadinessChecker для Identity Provider ---

// IDPReadinessChecker — проверка доступности Identity Provider через JWKS.
type IDPReadinessChecker struct {
	jwksURL string
	client  *http.Client
}

// NewIDPReadinessChecker создаёт checker доступности Identity Provider.
func NewIDPReadinessChecker(jwksURL string, timeout time.Duration) *IDPReadinessChecker {
	return &IDPReadinessChecker{
		jwksURL: jwksURL,
		client:  &http.Client{Timeout: timeout},
	}
}

const statusFail = "fail"

// CheckReady проверяет доступность JWKS endpoint Identity Provider.
func (c *IDPReadinessChecker) CheckReady() (status, message string) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, c.jwksURL, http.NoBody)
	if err != nil {
		return statusFail, "ошибка создания запроса: " + err.Error()
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return statusFail, fmt.Sprintf("JWKS недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusFail, fmt.Sprintf("JWKS endpoint вернул статус %d", resp.StatusCode)
	}

	// Проверяем, что ответ — валидный JSON с ключами
	var jwksResp struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwksResp); err != nil {
		return "degraded", fmt.Sprintf("JWKS: невалидный JSON: %v", err)
	}

	if len(jwksResp.Keys) == 0 {
		return "degraded", "JWKS: нет ключей"
	}

	return "ok", fmt.Sprintf("JWKS доступен, ключей: %d", len(jwksResp.Keys))
}
