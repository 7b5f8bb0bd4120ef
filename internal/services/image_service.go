package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"relay-chat/internal/storage"
	relay_errors "relay-chat/pkg/errors"

	"github.com/google/uuid"
)

// MaxImageBytes bounds a single chat image upload.
const MaxImageBytes int64 = 10 << 20

// ObjectStore is the blob storage chat images are uploaded to.
type ObjectStore interface {
	PutObject(ctx context.Context, key, contentType string, sizeBytes int64, body io.Reader) (string, error)
}

type ImageUpload struct {
	UploaderID  string
	ChatID      string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type ImageService struct {
	objects ObjectStore
}

func NewImageService(objects ObjectStore) *ImageService {
	return &ImageService{objects: objects}
}

// Upload stores the image and returns the URL to put on the message.
func (s *ImageService) Upload(ctx context.Context, in ImageUpload) (string, error) {
	if s.objects == nil {
		return "", fmt.Errorf("image storage is not configured: %w", relay_errors.ErrServiceUnavailable)
	}
	if in.UploaderID == "" || in.ChatID == "" || in.Body == nil || in.Size <= 0 {
		return "", relay_errors.ErrInvalidInput
	}
	if in.Size > MaxImageBytes {
		return "", relay_errors.ErrTooLarge
	}
	if err := storage.ValidateImageType(in.ContentType); err != nil {
		return "", fmt.Errorf("%v: %w", err, relay_errors.ErrInvalidInput)
	}
	return s.objects.PutObject(ctx, buildObjectKey(in), in.ContentType, in.Size, io.LimitReader(in.Body, in.Size))
}

func buildObjectKey(in ImageUpload) string {
	ext := strings.ToLower(path.Ext(in.FileName))
	base := fmt.Sprintf("chats/%s/%s/%s", in.ChatID, in.UploaderID, uuid.NewString())
	if ext == "" {
		return base
	}
	return base + ext
}
