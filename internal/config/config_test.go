package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("DB_DSN", "postgres://u:p@localhost:5432/talk")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("S3_BUCKET", "talk-files")

	cfg, err := Load()
	req.NoError(err)

	req.Equal(":8080", cfg.Addr)
	req.Equal(int64(5*1024*1024), cfg.MaxChunkSize)
	req.Equal(24*time.Hour, cfg.TokenTTL)
	req.Equal("redis", cfg.UploadStore)
	req.False(cfg.Development())
}

func TestLoad_MissingRequired(t *testing.T) {
	req := require.New(t)
	for _, key := range []string{"DB_DSN", "JWT_SECRET", "S3_BUCKET"} {
		t.Setenv(key, "")
		req.NoError(os.Unsetenv(key))
	}

	_, err := Load()
	req.Error(err)
}

func TestLoad_RejectsInconsistentLimits(t *testing.T) {
	req := require.New(t)
	t.Setenv("DB_DSN", "postgres://u:p@localhost:5432/talk")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("S3_BUCKET", "talk-files")
	t.Setenv("MAX_CHUNK_SIZE", "1024")
	t.Setenv("MAX_FILE_SIZE", "512")

	_, err := Load()
	req.ErrorContains(err, "MAX_FILE_SIZE")
}

func TestLoad_UnknownUploadStore(t *testing.T) {
	req := require.New(t)
	t.Setenv("DB_DSN", "postgres://u:p@localhost:5432/talk")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("S3_BUCKET", "talk-files")
	t.Setenv("UPLOAD_STORE", "disk")

	_, err := Load()
	req.ErrorContains(err, "UPLOAD_STORE")
}
