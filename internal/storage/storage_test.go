package storage

import (
	"testing"

	"github.com/andresuchdata/stockzero/backend-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		in         string
		useSSL     bool
		wantHost   string
		wantSecure bool
	}{
		{"https://s3.example.com/", false, "s3.example.com", true},
		{"http://localhost:9000", true, "localhost:9000", false},
		{"minio:9000", false, "minio:9000", false},
		{"//bucket.host", true, "bucket.host", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			host, secure := splitEndpoint(tt.in, tt.useSSL)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantSecure, secure)
		})
	}
}

func TestNewS3ClientValidatesConfig(t *testing.T) {
	_, err := NewS3Client(config.StorageConfig{})
	assert.Error(t, err)

	_, err = NewS3Client(config.StorageConfig{Endpoint: "localhost:9000", Bucket: "b"})
	assert.Error(t, err)

	_, err = NewS3Client(config.StorageConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"})
	assert.Error(t, err)

	client, err := NewS3Client(config.StorageConfig{Endpoint: "http://localhost:9000", AccessKey: "a", SecretKey: "s", Bucket: "reports"})
	require.NoError(t, err)
	assert.Equal(t, "reports", client.bucket)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv", contentType("exports/run.csv", nil))
	assert.Equal(t, "application/json", contentType("a.JSON", nil))
	assert.Contains(t, contentType("blob", []byte("plain words")), "text/plain")
}
