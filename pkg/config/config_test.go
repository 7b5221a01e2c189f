package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "axochat.toml")

	cfg, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	// The file now exists and parses back to the same thing.
	written, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, written)
}

func TestReadFullConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "axochat.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[net]
address = "0.0.0.0:8443"
cert_file = "/etc/axochat/cert.pem"
key_file = "/etc/axochat/key.pem"

[message]
max_length = 120
max_messages = 3
count_duration = "90s"

[moderation]
moderators = "/var/lib/axochat/moderators.txt"
banned = "/var/lib/axochat/banned.txt"

[auth]
key_file = "/etc/axochat/jwt.key"
algorithm = "HS256"
valid_time = "24h"
`), 0o644))

	cfg, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8443", cfg.Net.Address)
	assert.Equal(t, "/etc/axochat/cert.pem", cfg.Net.CertFile)
	assert.Equal(t, 120, cfg.Message.MaxLength)
	assert.Equal(t, 3, cfg.Message.MaxMessages)
	assert.Equal(t, 90*time.Second, cfg.Message.CountDuration.Duration())
	require.NotNil(t, cfg.Auth)
	assert.Equal(t, "HS256", cfg.Auth.Algorithm)
	assert.Equal(t, 24*time.Hour, cfg.Auth.ValidTime.Duration())
}

func TestPartialConfigKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "axochat.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[net]
address = "127.0.0.1:9999"
`), 0o644))

	cfg, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Net.Address)
	assert.Equal(t, 100, cfg.Message.MaxLength)
	assert.Equal(t, 40, cfg.Message.MaxMessages)
	assert.Equal(t, time.Minute, cfg.Message.CountDuration.Duration())
	assert.Nil(t, cfg.Auth)
}

func TestInvalidTOMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "axochat.toml")
	require.NoError(t, os.WriteFile(path, []byte(`net = `), 0o644))

	_, err := Read(path)
	assert.Error(t, err)
}

func TestInvalidDurationFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "axochat.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[message]
count_duration = "soon"
`), 0o644))

	_, err := Read(path)
	assert.Error(t, err)
}

func TestPathHonorsEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/tmp/elsewhere.toml")
	assert.Equal(t, "/tmp/elsewhere.toml", Path())

	t.Setenv("CONFIG_PATH", "")
	assert.Equal(t, DefaultPath, Path())
}
