// cors.go — CORS middleware api-module.
// Фиксированный разрешительный набор заголовков на каждом ответе;
// preflight (OPTIONS) завершается статусом 200 без вызова обработчиков.
package middleware

import (
	"encoding/json"
	"net/http"
)

// CORSMiddleware возвращает middleware, добавляющий CORS-заголовки
// ко всем ответам и обрабатывающий preflight-запросы.
func CORSMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

			if r.Method == http.MethodOptions {
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				_ = json.NewEncoder(w).Encode("ok")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
