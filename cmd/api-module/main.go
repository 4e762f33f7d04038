// Точка входа api-module — API-модуль платформы sftmadness.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// инициализирует клиенты Cognito и объектного хранилища, создаёт
// сервисный слой и API handlers, запускает HTTP-сервер с JWT middleware
// и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sftmadness/api-module/internal/api/handlers"
	"github.com/sftmadness/api-module/internal/api/middleware"
	"github.com/sftmadness/api-module/internal/blobstore"
	"github.com/sftmadness/api-module/internal/cognito"
	"github.com/sftmadness/api-module/internal/config"
	"github.com/sftmadness/api-module/internal/database"
	"github.com/sftmadness/api-module/internal/repository"
	"github.com/sftmadness/api-module/internal/server"
	"github.com/sftmadness/api-module/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("api-module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5. Клиент Cognito (Identity Provider admin API)
	idpClient, err := cognito.New(ctx, cfg.AWSRegion, cfg.CognitoUserPoolID, logger)
	if err != nil {
		logger.Error("Ошибка создания Cognito клиента", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Cognito клиент создан",
		slog.String("region", cfg.AWSRegion),
		slog.String("user_pool_id", cfg.CognitoUserPoolID),
	)

	// 6. Клиент объектного хранилища
	blobClient, err := blobstore.New(ctx,
		cfg.AWSRegion, cfg.S3Bucket, cfg.S3Endpoint,
		cfg.S3AccessKeyID, cfg.S3SecretAccessKey,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания S3 клиента", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("S3 клиент создан", slog.String("bucket", cfg.S3Bucket))

	// 7. Repositories
	userRepo := repository.NewUserRepository(pool)
	fileRepo := repository.NewScrapedFileRepository(pool)
	tokenRepo := repository.NewInvalidatedTokenRepository(pool)

	// 8. Services
	userSvc := service.NewUserService(userRepo, idpClient, logger)
	fileSvc := service.NewFileService(fileRepo, blobClient, logger)

	// 9. Readiness checkers (PostgreSQL + Cognito JWKS + S3)
	pgChecker := database.NewReadinessChecker(pool)
	idpChecker := middleware.NewIDPReadinessChecker(cfg.JWTJWKSURL, cfg.JWKSClientTimeout)
	healthHandler := handlers.NewHealthHandler(pgChecker, idpChecker, blobClient)

	// 10. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		userSvc,
		fileSvc,
		tokenRepo,
		logger,
	)

	// 11. JWT middleware (JWKS загружается на каждый запрос)
	jwtAuth := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.JWTIssuer,
		cfg.CognitoClientID,
		tokenRepo,
		cfg.JWKSClientTimeout,
		logger,
	)
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 12. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("api-module остановлен")
}
