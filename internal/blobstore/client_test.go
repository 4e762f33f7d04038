package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"regexp"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const testBucket = "test-bucket"

// fakeS3 — мок S3 API поверх map.
type fakeS3 struct {
	objects map[string][]byte
	err     error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*params.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[*params.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	delete(f.objects, *params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &s3.HeadBucketOutput{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestBuildKey(t *testing.T) {
	key := BuildKey(42, "report.pdf")

	// user-{userId}/{uuid}-{filename}
	re := regexp.MustCompile(`^user-42/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}-report\.pdf$`)
	if !re.MatchString(key) {
		t.Errorf("ключ не соответствует схеме: %s", key)
	}

	// Ключи уникальны даже для одного файла
	if key == BuildKey(42, "report.pdf") {
		t.Error("ожидались уникальные ключи для повторных загрузок")
	}
}

func TestPutGetDelete(t *testing.T) {
	fake := newFakeS3()
	client := NewWithAPI(fake, testBucket, testLogger())
	ctx := context.Background()

	data := []byte("содержимое файла\x00\x01")
	if err := client.Put(ctx, "user-1/abc-f.bin", data, "application/octet-stream"); err != nil {
		t.Fatalf("неожиданная ошибка Put: %v", err)
	}

	got, err := client.Get(ctx, "user-1/abc-f.bin")
	if err != nil {
		t.Fatalf("неожиданная ошибка Get: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("содержимое объекта не совпадает")
	}

	if err := client.Delete(ctx, "user-1/abc-f.bin"); err != nil {
		t.Fatalf("неожиданная ошибка Delete: %v", err)
	}

	if _, err := client.Get(ctx, "user-1/abc-f.bin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound после удаления, получено %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	client := NewWithAPI(newFakeS3(), testBucket, testLogger())

	_, err := client.Get(context.Background(), "user-1/missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}

func TestDelete_MissingObjectIsNotError(t *testing.T) {
	client := NewWithAPI(newFakeS3(), testBucket, testLogger())

	if err := client.Delete(context.Background(), "user-1/missing"); err != nil {
		t.Errorf("удаление несуществующего объекта не должно быть ошибкой: %v", err)
	}
}

func TestCheckReady(t *testing.T) {
	client := NewWithAPI(newFakeS3(), testBucket, testLogger())

	status, msg := client.CheckReady()
	if status != "ok" {
		t.Errorf("ожидался статус ok, получен %q (%s)", status, msg)
	}

	broken := newFakeS3()
	broken.err = errors.New("connection refused")
	client = NewWithAPI(broken, testBucket, testLogger())

	status, _ = client.CheckReady()
	if status != "fail" {
		t.Errorf("ожидался статус fail, получен %q", status)
	}
}

func TestIsTextualContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"text/plain", true},
		{"text/html; charset=utf-8", true},
		{"text/csv", true},
		{"application/json", true},
		{"application/xml", true},
		{"application/javascript", true},
		{"application/ld+json", true},
		{"application/atom+xml", true},
		{"application/pdf", false},
		{"application/octet-stream", false},
		{"image/png", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			if got := IsTextualContentType(tt.contentType); got != tt.want {
				t.Errorf("IsTextualContentType(%q) = %v, ожидалось %v", tt.contentType, got, tt.want)
			}
		})
	}
}
