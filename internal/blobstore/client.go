// client.go — клиент объектного хранилища (S3-совместимое API).
// Хранит содержимое загруженных файлов. Ключи строятся по схеме
// user-{userId}/{uuid}-{filename}, что исключает коллизии имён
// и группирует объекты по владельцу.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// ErrNotFound — объект не найден в хранилище.
var ErrNotFound = errors.New("объект не найден")

// API — подмножество S3 операций, используемое клиентом.
// Позволяет подменять SDK в тестах.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Client — клиент объектного хранилища.
type Client struct {
	api    API
	bucket string
	logger *slog.Logger
}

// New создаёт S3 клиент.
// endpoint — необязательный base endpoint для S3-совместимых хранилищ
// (MinIO и т.п.); пустая строка означает стандартный AWS endpoint.
// accessKeyID/secretAccessKey — статические credentials; пустые значения
// означают стандартную цепочку провайдеров AWS SDK.
func New(ctx context.Context, region, bucket, endpoint, accessKeyID, secretAccessKey string, logger *slog.Logger) (*Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if accessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("загрузка AWS конфигурации: %w", err)
	}

	api := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			// MinIO и совместимые хранилища требуют path-style адресацию
			o.UsePathStyle = true
		}
	})

	return NewWithAPI(api, bucket, logger), nil
}

// NewWithAPI создаёт клиент с готовой реализацией API (для тестов).
func NewWithAPI(api API, bucket string, logger *slog.Logger) *Client {
	return &Client{
		api:    api,
		bucket: bucket,
		logger: logger.With(slog.String("component", "blobstore")),
	}
}

// BuildKey строит ключ объекта: user-{userId}/{uuid}-{filename}.
func BuildKey(userID int64, filename string) string {
	return fmt.Sprintf("user-%d/%s-%s", userID, uuid.New(), filename)
}

// Put сохраняет содержимое объекта по ключу.
func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("запись объекта %s: %w", key, err)
	}

	c.logger.Debug("Объект сохранён",
		slog.String("key", key),
		slog.Int("size", len(data)),
	)

	return nil
}

// Get читает содержимое объекта по ключу.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("чтение объекта %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("чтение тела объекта %s: %w", key, err)
	}

	return data, nil
}

// Delete удаляет объект по ключу.
// S3 DeleteObject идемпотентен: удаление несуществующего объекта — не ошибка.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("удаление объекта %s: %w", key, err)
	}

	return nil
}

// CheckReady проверяет доступность bucket.
func (c *Client) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return "fail", fmt.Sprintf("bucket %s недоступен: %v", c.bucket, err)
	}

	return "ok", "bucket " + c.bucket + " доступен"
}

// IsTextualContentType определяет, является ли тип содержимого текстовым.
// Текстовое содержимое отдаётся клиенту как есть, бинарное — в base64.
func IsTextualContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}

	if strings.HasPrefix(mediaType, "text/") {
		return true
	}

	switch mediaType {
	case "application/json", "application/xml", "application/javascript",
		"application/x-www-form-urlencoded":
		return true
	}

	return strings.HasSuffix(mediaType, "+json") || strings.HasSuffix(mediaType, "+xml")
}
