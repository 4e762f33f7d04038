package repository

import (
	"context"
	"fmt"
	"time"
)

// InvalidatedTokenRepository — набор отозванных токенов (jti).
// Проверяется при каждой верификации токена; пополняется при logout.
type InvalidatedTokenRepository interface {
	// Exists возвращает true, если jti отозван.
	Exists(ctx context.Context, jti string) (bool, error)
	// Add помечает jti отозванным. Повторный вызов — no-op.
	// expiresAt — срок жизни токена (нулевое время — не задан).
	Add(ctx context.Context, jti string, expiresAt time.Time) error
}

// invalidatedTokenRepo — реализация InvalidatedTokenRepository.
type invalidatedTokenRepo struct {
	db DBTX
}

// NewInvalidatedTokenRepository создаёт репозиторий отозванных токенов.
func NewInvalidatedTokenRepository(db DBTX) InvalidatedTokenRepository {
	return &invalidatedTokenRepo{db: db}
}

func (r *invalidatedTokenRepo) Exists(ctx context.Context, jti string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM invalidated_tokens WHERE jti = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, jti).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки отзыва токена: %w", err)
	}
	return exists, nil
}

func (r *invalidatedTokenRepo) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	query := `
		INSERT INTO invalidated_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING`

	var expires *time.Time
	if !expiresAt.IsZero() {
		expires = &expiresAt
	}

	if _, err := r.db.Exec(ctx, query, jti, expires); err != nil {
		return fmt.Errorf("ошибка отзыва токена: %w", err)
	}
	return nil
}
