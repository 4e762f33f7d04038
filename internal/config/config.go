// Пакет config — загрузка и валидация конфигурации api-module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации api-module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Таймаут установки соединения с PostgreSQL
	DBConnectTimeout time.Duration

	// --- Identity Provider (Cognito) ---

	// Регион AWS
	AWSRegion string
	// ID User Pool в Cognito
	CognitoUserPoolID string
	// App Client ID (audience JWT)
	CognitoClientID string

	// --- JWT ---

	// Issuer JWT (авто-вычисляется из региона и User Pool ID, если не задан)
	JWTIssuer string
	// URL JWKS endpoint (авто-вычисляется из issuer, если не задан)
	JWTJWKSURL string
	// Таймаут HTTP-клиента при загрузке JWKS
	JWKSClientTimeout time.Duration

	// --- Object store (S3) ---

	// Имя бакета для файлов
	S3Bucket string
	// Endpoint S3 (опционально, для совместимых хранилищ)
	S3Endpoint string
	// Статические credentials (опционально, иначе цепочка AWS по умолчанию)
	S3AccessKeyID     string
	S3SecretAccessKey string

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// SFT_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("SFT_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("SFT_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("SFT_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// SFT_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("SFT_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("SFT_LOG_LEVEL: %w", err)
	}

	// SFT_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("SFT_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("SFT_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// SFT_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("SFT_DB_HOST")
	if err != nil {
		return nil, err
	}

	// SFT_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("SFT_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("SFT_DB_PORT: %w", err)
	}

	// SFT_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("SFT_DB_NAME")
	if err != nil {
		return nil, err
	}

	// SFT_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("SFT_DB_USER")
	if err != nil {
		return nil, err
	}

	// SFT_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("SFT_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// SFT_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("SFT_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("SFT_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// SFT_DB_CONNECT_TIMEOUT — таймаут соединения с PostgreSQL (по умолчанию 5s)
	cfg.DBConnectTimeout, err = getEnvDuration("SFT_DB_CONNECT_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SFT_DB_CONNECT_TIMEOUT: %w", err)
	}

	// --- Identity Provider ---

	// SFT_AWS_REGION — обязательный
	cfg.AWSRegion, err = getEnvRequired("SFT_AWS_REGION")
	if err != nil {
		return nil, err
	}

	// SFT_COGNITO_USER_POOL_ID — обязательный
	cfg.CognitoUserPoolID, err = getEnvRequired("SFT_COGNITO_USER_POOL_ID")
	if err != nil {
		return nil, err
	}

	// SFT_COGNITO_CLIENT_ID — обязательный (audience JWT)
	cfg.CognitoClientID, err = getEnvRequired("SFT_COGNITO_CLIENT_ID")
	if err != nil {
		return nil, err
	}

	// --- JWT ---

	// SFT_JWT_ISSUER — авто-вычисляется из региона и User Pool ID, если не задан
	cfg.JWTIssuer = getEnvDefault("SFT_JWT_ISSUER",
		fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", cfg.AWSRegion, cfg.CognitoUserPoolID))
	cfg.JWTIssuer = strings.TrimRight(cfg.JWTIssuer, "/")

	// SFT_JWT_JWKS_URL — авто-вычисляется из issuer, если не задан
	cfg.JWTJWKSURL = getEnvDefault("SFT_JWT_JWKS_URL",
		cfg.JWTIssuer+"/.well-known/jwks.json")

	// SFT_JWKS_CLIENT_TIMEOUT — таймаут загрузки JWKS (по умолчанию 10s)
	cfg.JWKSClientTimeout, err = getEnvDuration("SFT_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SFT_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// --- Object store ---

	// SFT_S3_BUCKET — обязательный
	cfg.S3Bucket, err = getEnvRequired("SFT_S3_BUCKET")
	if err != nil {
		return nil, err
	}

	// SFT_S3_ENDPOINT — endpoint S3 (опционально)
	cfg.S3Endpoint = getEnvDefault("SFT_S3_ENDPOINT", "")

	// SFT_S3_ACCESS_KEY_ID / SFT_S3_SECRET_ACCESS_KEY — опциональные
	cfg.S3AccessKeyID = getEnvDefault("SFT_S3_ACCESS_KEY_ID", "")
	cfg.S3SecretAccessKey = getEnvDefault("SFT_S3_SECRET_ACCESS_KEY", "")
	if (cfg.S3AccessKeyID == "") != (cfg.S3SecretAccessKey == "") {
		return nil, fmt.Errorf("SFT_S3_ACCESS_KEY_ID и SFT_S3_SECRET_ACCESS_KEY задаются парой")
	}

	// --- Graceful shutdown ---

	// SFT_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("SFT_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SFT_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s connect_timeout=%d",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
		int(c.DBConnectTimeout.Seconds()),
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
