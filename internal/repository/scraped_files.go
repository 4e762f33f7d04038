package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sftmadness/api-module/internal/domain/model"
)

// ScrapedFileRepository — CRUD для таблицы scraped_files.
// Все чтения и удаления выполняются по паре (id, user_id): запись чужого
// пользователя неотличима от несуществующей.
type ScrapedFileRepository interface {
	// Create вставляет запись о файле. Заполняет ID и UploadDate.
	Create(ctx context.Context, f *model.ScrapedFile) error
	// GetByIDAndUser возвращает файл по id и владельцу.
	GetByIDAndUser(ctx context.Context, fileID, userID int64) (*model.ScrapedFile, error)
	// DeleteByIDAndUser удаляет запись о файле по id и владельцу.
	DeleteByIDAndUser(ctx context.Context, fileID, userID int64) error
}

const scrapedFileColumns = "id, user_id, model, filename, filepath, filetype, upload_date"

// scrapedFileRepo — реализация ScrapedFileRepository.
type scrapedFileRepo struct {
	db DBTX
}

// NewScrapedFileRepository создаёт репозиторий файлов.
func NewScrapedFileRepository(db DBTX) ScrapedFileRepository {
	return &scrapedFileRepo{db: db}
}

func (r *scrapedFileRepo) Create(ctx context.Context, f *model.ScrapedFile) error {
	query := `
		INSERT INTO scraped_files (user_id, model, filename, filepath, filetype)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, upload_date`

	err := r.db.QueryRow(ctx, query,
		f.UserID, f.Model, f.Filename, f.Filepath, f.Filetype,
	).Scan(&f.ID, &f.UploadDate)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл с таким ключом уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка регистрации файла: %w", err)
	}
	return nil
}

func (r *scrapedFileRepo) GetByIDAndUser(ctx context.Context, fileID, userID int64) (*model.ScrapedFile, error) {
	query := `SELECT ` + scrapedFileColumns + ` FROM scraped_files WHERE id = $1 AND user_id = $2`

	f := &model.ScrapedFile{}
	err := r.db.QueryRow(ctx, query, fileID, userID).Scan(
		&f.ID, &f.UserID, &f.Model, &f.Filename, &f.Filepath, &f.Filetype, &f.UploadDate,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

func (r *scrapedFileRepo) DeleteByIDAndUser(ctx context.Context, fileID, userID int64) error {
	query := `DELETE FROM scraped_files WHERE id = $1 AND user_id = $2`

	tag, err := r.db.Exec(ctx, query, fileID, userID)
	if err != nil {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
