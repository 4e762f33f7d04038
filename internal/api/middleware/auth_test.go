package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Параметры тестового Identity Provider.
const (
	testKeyID    = "test-key-sft"
	testIssuer   = "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_test"
	testAudience = "test-client-id"
)

// mockRevocations — мок для TokenRevocations.
type mockRevocations struct {
	revoked map[string]bool
	err     error
}

func (m *mockRevocations) Exists(_ context.Context, jti string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.revoked[jti], nil
}

// generateTestKey генерирует RSA ключ для тестов.
func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// buildJWKSetJSON строит JWKS JSON из RSA публичного ключа.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	nB64 := base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
	eB64 := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes())

	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   nB64,
				"e":   eB64,
			},
		},
	}

	data, _ := json.Marshal(jwks)
	return data
}

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newJWKSServer поднимает httptest-сервер, отдающий JWKS,
// и считает количество обращений.
func newJWKSServer(t *testing.T, key *rsa.PrivateKey) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	jwksJSON := buildJWKSetJSON(&key.PublicKey, testKeyID)

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jwksJSON)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

// newTestJWTAuth создаёт JWTAuth поверх тестового JWKS-сервера.
func newTestJWTAuth(t *testing.T, key *rsa.PrivateKey, revocations TokenRevocations) (*JWTAuth, *atomic.Int64) {
	t.Helper()
	srv, hits := newJWKSServer(t, key)
	auth := NewJWTAuth(srv.URL, testIssuer, testAudience, revocations, 5*time.Second, testLogger())
	return auth, hits
}

// tokenOverrides — переопределения claims для generateToken.
type tokenOverrides map[string]any

// generateToken генерирует подписанный JWT с дефолтными валидными claims.
func generateToken(t *testing.T, key *rsa.PrivateKey, overrides tokenOverrides) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":   "cognito-sub-123",
		"email": "user@example.com",
		"jti":   "jti-123",
		"aud":   testAudience,
		"iss":   testIssuer,
		"exp":   jwt.NewNumericDate(time.Now().Add(time.Hour)),
		"iat":   jwt.NewNumericDate(time.Now()),
	}
	for k, v := range overrides {
		if v == nil {
			delete(claims, k)
			continue
		}
		claims[k] = v
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return tokenStr
}

// okHandler возвращает обработчик, фиксирующий вызов.
func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if called != nil {
			*called = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

// doAuth выполняет запрос через middleware с указанным Authorization header.
func doAuth(auth *JWTAuth, handler http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/users/1", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	auth.Middleware()(handler).ServeHTTP(rec, req)
	return rec
}

// --- Тесты JWT Middleware ---

// TestJWTAuth_ValidToken — валидный JWT: claims попадают в контекст.
func TestJWTAuth_ValidToken(t *testing.T) {
	key := generateTestKey(t)
	auth, _ := newTestJWTAuth(t, key, nil)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			t.Fatal("claims не найдены в контексте")
		}
		if claims.Subject != "cognito-sub-123" {
			t.Errorf("ожидался sub=cognito-sub-123, получен %s", claims.Subject)
		}
		if claims.Email != "user@example.com" {
			t.Errorf("ожидался email=user@example.com, получен %s", claims.Email)
		}
		if claims.TokenID != "jti-123" {
			t.Errorf("ожидался jti=jti-123, получен %s", claims.TokenID)
		}
		if claims.ExpiresAt.IsZero() {
			t.Error("ExpiresAt не заполнен")
		}
		w.WriteHeader(http.StatusOK)
	})

	rec := doAuth(auth, handler, "Bearer "+generateToken(t, key, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d, тело: %s", rec.Code, rec.Body.String())
	}
}

// TestJWTAuth_FetchesJWKSPerRequest — JWKS загружается заново на каждый запрос.
func TestJWTAuth_FetchesJWKSPerRequest(t *testing.T) {
	key := generateTestKey(t)
	auth, hits := newTestJWTAuth(t, key, nil)

	tokenStr := generateToken(t, key, nil)
	for i := 0; i < 3; i++ {
		rec := doAuth(auth, okHandler(nil), "Bearer "+tokenStr)
		if rec.Code != http.StatusOK {
			t.Fatalf("запрос %d: статус %d", i, rec.Code)
		}
	}

	if got := hits.Load(); got != 3 {
		t.Errorf("ожидалось 3 загрузки JWKS, получено %d", got)
	}
}

// TestJWTAuth_MissingToken — отсутствие Authorization header.
func TestJWTAuth_MissingToken(t *testing.T) {
	key := generateTestKey(t)
	auth, hits := newTestJWTAuth(t, key, nil)

	called := false
	rec := doAuth(auth, okHandler(&called), "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
	if called {
		t.Error("handler не должен быть вызван")
	}
	// Без токена JWKS не загружается
	if hits.Load() != 0 {
		t.Error("JWKS не должен загружаться без токена")
	}
}

// TestJWTAuth_InvalidFormat — некорректный формат Authorization.
func TestJWTAuth_InvalidFormat(t *testing.T) {
	key := generateTestKey(t)
	auth, _ := newTestJWTAuth(t, key, nil)

	tests := []struct {
		name   string
		header string
	}{
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"no bearer prefix", "token123"},
		{"empty bearer", "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			rec := doAuth(auth, okHandler(&called), tt.header)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("ожидался статус 401, получен %d", rec.Code)
			}
			if called {
				t.Error("handler не должен быть вызван")
			}
		})
	}
}

// TestJWTAuth_ExpiredToken — просроченный токен.
func TestJWTAuth_ExpiredToken(t *testing.T) {
	key := generateTestKey(t)
	auth, _ := newTestJWTAuth(t, key, nil)

	tokenStr := generateToken(t, key, tokenOverrides{
		"exp": jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	rec := doAuth(auth, okHandler(nil), "Bearer "+tokenStr)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}

// TestJWTAuth_WrongAudience — токен с чужим audience.
func TestJWTAuth_WrongAudience(t *testing.T) {
	key := generateTestKey(t)
	auth, _ := newTestJWTAuth(t, key, nil)

	tokenStr := generateToken(t, key, tokenOverrides{"aud": "other-client"})
	rec := doAuth(auth, okHandler(nil), "Bearer "+tokenStr)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}

// TestJWTAuth_WrongIssuer — токен с чужим issuer.
func TestJWTAuth_WrongIssuer(t *testing.T) {
	key := generateTestKey(t)
	auth, _ := newTestJWTAuth(t, key, nil)

	tokenStr := generateToken(t, key, tokenOverrides{
		"iss": "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_other",
	})
	rec := doAuth(auth, okHandler(nil), "Bearer "+tokenStr)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}

// TestJWTAuth_UnknownKeyID — kid токена отсутствует в JWKS.
func TestJWTAuth_UnknownKeyID(t *testing.T) {
	key := generateTestKey(t)
	auth, _ := newTestJWTAuth(t, key, nil)

	claims := jwt.MapClaims{
		"sub": "cognito-sub-123",
		"aud": testAudience,
		"iss": testIssuer,
		"exp": jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "unknown-key"
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}

	rec := doAuth(auth, okHandler(nil), "Bearer "+tokenStr)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}

// TestJWTAuth_SignedByOtherKey — подпись чужим ключом с тем же kid.
func TestJWTAuth_SignedByOtherKey(t *testing.T) {
	key := generateTestKey(t)
	otherKey := generateTestKey(t)
	auth, _ := newTestJWTAuth(t, key, nil)

	tokenStr := generateToken(t, otherKey, nil)
	rec := doAuth(auth, okHandler(nil), "Bearer "+tokenStr)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}

// TestJWTAuth_RevokedToken — jti в наборе отозванных.
func TestJWTAuth_RevokedToken(t *testing.T) {
	key := generateTestKey(t)
	revocations := &mockRevocations{revoked: map[string]bool{"revoked-jti": true}}
	auth, _ := newTestJWTAuth(t, key, revocations)

	// Отозванный токен — 401, несмотря на валидную подпись
	called := false
	tokenStr := generateToken(t, key, tokenOverrides{"jti": "revoked-jti"})
	rec := doAuth(auth, okHandler(&called), "Bearer "+tokenStr)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
	if called {
		t.Error("handler не должен быть вызван")
	}

	// Неотозванный токен проходит
	tokenStr = generateToken(t, key, tokenOverrides{"jti": "live-jti"})
	rec = doAuth(auth, okHandler(nil), "Bearer "+tokenStr)
	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d", rec.Code)
	}
}

// TestJWTAuth_RevocationCheckError — сбой проверки отзыва.
func TestJWTAuth_RevocationCheckError(t *testing.T) {
	key := generateTestKey(t)
	revocations := &mockRevocations{err: errors.New("БД недоступна")}
	auth, _ := newTestJWTAuth(t, key, revocations)

	rec := doAuth(auth, okHandler(nil), "Bearer "+generateToken(t, key, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}

// TestJWTAuth_JWKSUnavailable — JWKS endpoint отвечает ошибкой.
func TestJWTAuth_JWKSUnavailable(t *testing.T) {
	key := generateTestKey(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	auth := NewJWTAuth(srv.URL, testIssuer, testAudience, nil, 5*time.Second, testLogger())
	rec := doAuth(auth, okHandler(nil), "Bearer "+generateToken(t, key, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}

// --- Тесты context helpers ---

// TestClaimsFromContext_Empty — пустой контекст.
func TestClaimsFromContext_Empty(t *testing.T) {
	if claims := ClaimsFromContext(context.Background()); claims != nil {
		t.Errorf("ожидался nil, получено %+v", claims)
	}
}

// TestSubjectFromContext — извлечение subject.
func TestSubjectFromContext(t *testing.T) {
	claims := &AuthClaims{Subject: "cognito-sub-123"}
	ctx := context.WithValue(context.Background(), ContextKeyClaims, claims)

	if sub := SubjectFromContext(ctx); sub != "cognito-sub-123" {
		t.Errorf("ожидался cognito-sub-123, получен %q", sub)
	}
	if sub := SubjectFromContext(context.Background()); sub != "" {
		t.Errorf("ожидалась пустая строка, получено %q", sub)
	}
}

// --- Тесты IDPReadinessChecker ---

func TestIDPReadinessChecker(t *testing.T) {
	key := generateTestKey(t)
	srv, _ := newJWKSServer(t, key)

	checker := NewIDPReadinessChecker(srv.URL, 5*time.Second)
	status, msg := checker.CheckReady()
	if status != "ok" {
		t.Errorf("ожидался статус ok, получен %q (%s)", status, msg)
	}
}

func TestIDPReadinessChecker_EmptyKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"keys":[]}`)
	}))
	t.Cleanup(srv.Close)

	checker := NewIDPReadinessChecker(srv.URL, 5*time.Second)
	status, _ := checker.CheckReady()
	if status != "degraded" {
		t.Errorf("ожидался статус degraded, получен %q", status)
	}
}
