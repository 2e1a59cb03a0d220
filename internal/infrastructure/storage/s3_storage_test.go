package storage

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/firesafe/ledger/internal/infrastructure/config"
	"github.com/firesafe/ledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func baseConfig() *config.StorageConfig {
	return &config.StorageConfig{
		Bucket:    "ledger-archive",
		AccessKey: "test-key",
		SecretKey: "test-secret",
		Endpoint:  "http://localhost:9000",
		Prefix:    "snapshots/",
	}
}

func TestNewS3ObjectStorage_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(nil)
		assert.ErrorContains(t, err, "configuration is required")
	})

	tests := []struct {
		name   string
		mutate func(*config.StorageConfig)
		errMsg string
	}{
		{"missing bucket", func(c *config.StorageConfig) { c.Bucket = "" }, "bucket is required"},
		{"missing access key", func(c *config.StorageConfig) { c.AccessKey = "" }, "access key is required"},
		{"missing secret key", func(c *config.StorageConfig) { c.SecretKey = "" }, "secret key is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)
			_, err := NewS3ObjectStorage(cfg)
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}

	t.Run("valid config creates storage", func(t *testing.T) {
		cfg := baseConfig()
		cfg.PresignExpiration = 5 * time.Minute
		cfg.UsePathStyle = true
		s, err := NewS3ObjectStorage(cfg)
		require.NoError(t, err)
		assert.Equal(t, "ledger-archive", s.GetBucket())
		assert.Equal(t, 5*time.Minute, s.presignExpiration)
		assert.Equal(t, "snapshots/stock-2024-05-01.xlsx", s.objectKey("stock-2024-05-01.xlsx"))
	})

	t.Run("default presign expiration is 15 minutes", func(t *testing.T) {
		s, err := NewS3ObjectStorage(baseConfig())
		require.NoError(t, err)
		assert.Equal(t, 15*time.Minute, s.presignExpiration)
	})
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		useSSL   bool
		want     string
	}{
		{"", false, "http://localhost:9000"},
		{"minio:9000", false, "http://minio:9000"},
		{"minio:9000", true, "https://minio:9000"},
		{"https://s3.amazonaws.com", false, "https://s3.amazonaws.com"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := normalizeEndpoint(tt.endpoint, tt.useSSL)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestS3ObjectStorageOptions(t *testing.T) {
	logger := zaptest.NewLogger(t)
	s, err := NewS3ObjectStorage(baseConfig(), WithLogger(logger), WithPresignExpiration(time.Hour))
	require.NoError(t, err)
	assert.Same(t, logger, s.logger)
	assert.Equal(t, time.Hour, s.presignExpiration)
}

func TestS3ObjectStorage_GenerateDownloadURL(t *testing.T) {
	s, err := NewS3ObjectStorage(baseConfig())
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("presigns under the prefix", func(t *testing.T) {
		url, expiresAt, err := s.GenerateDownloadURL(ctx, "stock-2024-05-01.xlsx", 10*time.Minute)
		require.NoError(t, err)
		assert.Contains(t, url, "snapshots/stock-2024-05-01.xlsx")
		assert.Contains(t, url, "X-Amz-Signature=")
		assert.Contains(t, url, "X-Amz-Expires=600")
		assert.WithinDuration(t, time.Now().Add(10*time.Minute), expiresAt, 5*time.Second)
	})

	t.Run("non-positive expiry uses default", func(t *testing.T) {
		url, _, err := s.GenerateDownloadURL(ctx, "stock-2024-05-01.xlsx", 0)
		require.NoError(t, err)
		assert.Contains(t, url, "X-Amz-Expires=900")
	})
}

func TestS3ObjectStorage_EmptyKey(t *testing.T) {
	s, err := NewS3ObjectStorage(baseConfig())
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, s.Upload(ctx, "", []byte("x"), "text/plain"), ErrEmptyKey)
	assert.ErrorIs(t, s.DeleteObject(ctx, ""), ErrEmptyKey)
	_, err = s.ObjectExists(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyKey)
	_, _, err = s.GenerateDownloadURL(ctx, "", time.Minute)
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestIntegration_MinIO(t *testing.T) {
	cfg := testutil.NewMinIOConfig(t, "ledger-archive")
	s, err := NewS3ObjectStorage(&cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.EnsureBucket(ctx))
	require.NoError(t, s.EnsureBucket(ctx), "existing bucket is fine")

	key := "stock-2024-05-01.xlsx"
	exists, err := s.ObjectExists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Upload(ctx, key, []byte("workbook"), "text/plain"))
	exists, err = s.ObjectExists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	url, _, err := s.GenerateDownloadURL(ctx, key, time.Minute)
	require.NoError(t, err)
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "workbook", strings.TrimSpace(string(body)))

	require.NoError(t, s.DeleteObject(ctx, key))
	exists, err = s.ObjectExists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}
