package storage

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateImageType(t *testing.T) {
	tests := []struct {
		name    string
		ct      string
		wantErr bool
	}{
		{"jpeg", "image/jpeg", false},
		{"png with params", "image/png; charset=binary", false},
		{"upper case", "IMAGE/WEBP", false},
		{"empty", "", true},
		{"pdf", "application/pdf", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImageType(tt.ct)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateACL(t *testing.T) {
	acl, err := ValidateACL("")
	require.NoError(t, err)
	assert.Equal(t, types.ObjectCannedACLPublicRead, acl)

	acl, err = ValidateACL("private")
	require.NoError(t, err)
	assert.Equal(t, types.ObjectCannedACLPrivate, acl)

	_, err = ValidateACL("bucket-owner-full-control")
	assert.Error(t, err, "unsupported acl")
}

func TestFileURL(t *testing.T) {
	c := &Client{cfg: S3Config{Bucket: "media", Region: "eu-west-1", PublicBase: "https://cdn.example.com/"}}
	assert.Equal(t, "https://cdn.example.com/chats/c1/a.png", c.FileURL("chats/c1/a.png"))
	c.cfg.PublicBase = ""
	assert.Equal(t, "https://media.s3.eu-west-1.amazonaws.com/k", c.FileURL("k"))
	var nilClient *Client
	assert.Empty(t, nilClient.FileURL("k"))
}
