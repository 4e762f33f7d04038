// files.go — сервис загруженных файлов api-module.
// Запись содержимого: сначала объект в хранилище, затем запись в БД.
// Если запись в БД не удалась, объект остаётся (осиротевший blob;
// компенсация не выполняется).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sftmadness/api-module/internal/blobstore"
	"github.com/sftmadness/api-module/internal/domain/model"
	"github.com/sftmadness/api-module/internal/repository"
)

// BlobStore — операции с объектным хранилищем.
// Реализуется blobstore.Client.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// UploadInput — входные данные загрузки файла.
type UploadInput struct {
	Model    string
	Filename string
	Filetype string
	Data     []byte
}

// FileContent — содержимое файла с метаданными.
type FileContent struct {
	File *model.ScrapedFile
	Data []byte
	// Textual — true для текстовых типов: содержимое отдаётся как есть,
	// бинарное кодируется в base64.
	Textual bool
}

// FileService — сервис загруженных файлов.
type FileService struct {
	files  repository.ScrapedFileRepository
	blobs  BlobStore
	logger *slog.Logger
}

// NewFileService создаёт сервис файлов.
func NewFileService(files repository.ScrapedFileRepository, blobs BlobStore, logger *slog.Logger) *FileService {
	return &FileService{
		files:  files,
		blobs:  blobs,
		logger: logger.With(slog.String("component", "file_service")),
	}
}

// Upload сохраняет файл: объект в хранилище, затем запись в БД.
func (s *FileService) Upload(ctx context.Context, userID int64, in UploadInput) (*model.ScrapedFile, error) {
	if in.Model == "" || in.Filename == "" || in.Filetype == "" {
		return nil, fmt.Errorf("%w: требуются поля model, filename и filetype", ErrValidation)
	}
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: пустое содержимое файла", ErrValidation)
	}

	key := blobstore.BuildKey(userID, in.Filename)

	if err := s.blobs.Put(ctx, key, in.Data, in.Filetype); err != nil {
		return nil, fmt.Errorf("ошибка записи в хранилище: %w", err)
	}

	file := &model.ScrapedFile{
		UserID:   userID,
		Model:    in.Model,
		Filename: in.Filename,
		Filepath: key,
		Filetype: in.Filetype,
	}

	if err := s.files.Create(ctx, file); err != nil {
		// Объект уже в хранилище и останется
		s.logger.Warn("Запись о файле не создана, объект в хранилище осиротел",
			slog.Int64("user_id", userID),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("Файл загружен",
		slog.Int64("file_id", file.ID),
		slog.Int64("user_id", userID),
		slog.Int("size", len(in.Data)),
	)

	return file, nil
}

// Get возвращает метаданные и содержимое файла.
// Файл чужого пользователя — ErrNotFound.
func (s *FileService) Get(ctx context.Context, userID, fileID int64) (*FileContent, error) {
	file, err := s.files.GetByIDAndUser(ctx, fileID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	data, err := s.blobs.Get(ctx, file.Filepath)
	if err != nil {
		// Запись есть, объекта нет — рассинхронизация хранилища и БД
		return nil, fmt.Errorf("ошибка чтения из хранилища: %w", err)
	}

	return &FileContent{
		File:    file,
		Data:    data,
		Textual: blobstore.IsTextualContentType(file.Filetype),
	}, nil
}

// Delete удаляет файл: объект из хранилища, затем запись из БД.
func (s *FileService) Delete(ctx context.Context, userID, fileID int64) error {
	file, err := s.files.GetByIDAndUser(ctx, fileID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.blobs.Delete(ctx, file.Filepath); err != nil {
		return fmt.Errorf("ошибка удаления из хранилища: %w", err)
	}

	if err := s.files.DeleteByIDAndUser(ctx, fileID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.logger.Info("Файл удалён",
		slog.Int64("file_id", fileID),
		slog.Int64("user_id", userID),
	)

	return nil
}
