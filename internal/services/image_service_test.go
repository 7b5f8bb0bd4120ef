package services

import (
	"context"
	"io"
	"strings"
	"testing"

	relay_errors "relay-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	key  string
	body string
}

func (f *fakeObjects) PutObject(ctx context.Context, key, contentType string, sizeBytes int64, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.key, f.body = key, string(data)
	return "https://cdn.example.com/" + key, nil
}

func TestImageUpload(t *testing.T) {
	objects := &fakeObjects{}
	svc := NewImageService(objects)

	url, err := svc.Upload(context.Background(), ImageUpload{
		UploaderID:  "a1",
		ChatID:      "k1",
		FileName:    "Cat.PNG",
		ContentType: "image/png",
		Size:        4,
		Body:        strings.NewReader("meowextra"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(objects.key, "chats/k1/a1/"), "key = %s", objects.key)
	assert.True(t, strings.HasSuffix(objects.key, ".png"), "key = %s", objects.key)
	assert.Equal(t, "meow", objects.body)
	assert.Equal(t, "https://cdn.example.com/"+objects.key, url)
}

func TestImageUploadRejects(t *testing.T) {
	valid := ImageUpload{UploaderID: "a1", ChatID: "k1", FileName: "a.jpg", ContentType: "image/jpeg", Size: 3, Body: strings.NewReader("abc")}
	tests := []struct {
		name    string
		mutate  func(*ImageUpload)
		wantErr error
	}{
		{"no chat", func(in *ImageUpload) { in.ChatID = "" }, relay_errors.ErrInvalidInput},
		{"empty body", func(in *ImageUpload) { in.Size = 0 }, relay_errors.ErrInvalidInput},
		{"too large", func(in *ImageUpload) { in.Size = MaxImageBytes + 1 }, relay_errors.ErrTooLarge},
		{"not an image", func(in *ImageUpload) { in.ContentType = "text/html" }, relay_errors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := NewImageService(&fakeObjects{}).Upload(context.Background(), in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := NewImageService(nil).Upload(context.Background(), valid)
	assert.ErrorIs(t, err, relay_errors.ErrServiceUnavailable)
}
