//go:generate go run go.uber.org/mock/mockgen -source=ports.go -destination=mocks/mock_ports.go -package=mocks
package upload

import (
	"context"
	"time"

	"go-talk/internal/storage"
)

// ObjectStorage is the multipart API of the object store.
type ObjectStorage interface {
	CreateMultipart(ctx context.Context, key, contentType string) (string, error)
	UploadPart(ctx context.Context, key, uploadID string, number int, data []byte) (string, error)
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []storage.CompletedPart) (string, error)
	AbortMultipart(ctx context.Context, key, uploadID string) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// FileStore persists completed uploads.
type FileStore interface {
	SaveFile(ctx context.Context, f *FileRecord) error
	GetFile(ctx context.Context, id string) (*FileRecord, error)
}
