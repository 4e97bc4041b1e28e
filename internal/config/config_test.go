package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "gennotes.db", cfg.Storage.SQLitePath)
	assert.Equal(t, "fs", cfg.Blob.Driver)
	assert.Empty(t, cfg.Auth.Tokens)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gennotes.yaml")
	body := `
storage:
  driver: memory
log:
  level: debug
  format: console
auth:
  tokens:
    - token: secret
      user_id: 4
      username: curator
      scopes: [commit-edit, username, email]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("GENNOTES_HTTP_ADDR", "127.0.0.1:9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:9999", cfg.HTTP.Addr)
	require.Len(t, cfg.Auth.Tokens, 1)
	assert.Equal(t, int64(4), cfg.Auth.Tokens[0].UserID)
	assert.Equal(t, []string{"commit-edit", "username", "email"}, cfg.Auth.Tokens[0].Scopes)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("GENNOTES_STORAGE_DRIVER", "mongo")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidateS3RequiresBucket(t *testing.T) {
	t.Setenv("GENNOTES_BLOB_DRIVER", "s3")
	_, err := Load("")
	assert.ErrorContains(t, err, "blob.s3.bucket")

	t.Setenv("GENNOTES_BLOB_S3_BUCKET", "archives")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "archives", cfg.Blob.S3.Bucket)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
