package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThierryZhou/go-s3connector/s3"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvConfig, EnvEndpoint, EnvRegion, EnvAccessKey, EnvSecretKey, EnvLogLevel} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "s3connector.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)

	p := writeConfig(t, `
endpoint: "http://127.0.0.1:9000"
region: "us-west-2"
accessKey: "minio"
secretKey: "minio123"
pathStyle: false
maxAttempts: 5
timeout: "45s"
logLevel: "debug"
csv:
  separator: ";"
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:9000", cfg.Endpoint)
	assert.Equal(t, "us-west-2", cfg.Region)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ";", cfg.CSV.Separator)
	// untouched keys keep their defaults
	assert.Equal(t, s3.DefaultNullIdentifier, cfg.CSV.NullIdentifier)

	o := cfg.Option()
	assert.Equal(t, "http://127.0.0.1:9000", o.URL)
	assert.Equal(t, "minio", o.AccessKey)
	assert.Equal(t, "minio123", o.SecretKey)
	assert.False(t, o.PathStyle)
	assert.Equal(t, 5, o.MaxAttempts)
	assert.Equal(t, 45*time.Second, o.Timeout)

	to := cfg.TableOption()
	assert.Equal(t, ';', to.Separator)
	assert.Equal(t, "#N/A", to.NullIdentifier)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvEndpoint, "http://env:9000")
	t.Setenv(EnvRegion, "ap-southeast-1")
	t.Setenv(EnvAccessKey, "envak")
	t.Setenv(EnvSecretKey, "envsk")
	t.Setenv(EnvLogLevel, "warn")

	p := writeConfig(t, "endpoint: http://file:9000\nregion: eu-west-1\n")
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "http://env:9000", cfg.Endpoint)
	assert.Equal(t, "ap-southeast-1", cfg.Region)
	assert.Equal(t, "envak", cfg.AccessKey)
	assert.Equal(t, "envsk", cfg.SecretKey)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	for _, tt := range []struct {
		name string
		body string
		msg  string
	}{
		{"bad yaml", "endpoint: [", "parse config"},
		{"lonely access key", "accessKey: ak\n", "must be set together"},
		{"negative attempts", "maxAttempts: -1\n", "maxAttempts"},
		{"bad timeout", "timeout: soon\n", "timeout"},
		{"bad log level", "logLevel: loud\n", "logLevel"},
		{"long separator", "csv:\n  separator: ';;'\n", "separator"},
		{"quote separator", "csv:\n  separator: '\"'\n", "separator"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestPath(t *testing.T) {
	clearEnv(t)

	p, err := Path("/etc/s3connector.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/etc/s3connector.yaml", p)

	t.Setenv(EnvConfig, "/tmp/from-env.yaml")
	p, err = Path("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env.yaml", p)

	t.Setenv(EnvConfig, "")
	p, err = Path("")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p, ".s3connector.yaml"))
	assert.False(t, strings.HasPrefix(p, "~"))
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)

	pathStyle := true
	cfg := Default()
	cfg.Endpoint = "http://minio:9000"
	cfg.AccessKey = "ak"
	cfg.SecretKey = "sk"
	cfg.PathStyle = &pathStyle
	cfg.MaxAttempts = 4

	p := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.Save(p))

	info, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestStringMasksSecrets(t *testing.T) {
	cfg := Default()
	cfg.AccessKey = "visible"
	cfg.SecretKey = "hidden-secret"
	cfg.Token = "hidden-token"

	out := cfg.String()
	assert.Contains(t, out, "visible")
	assert.NotContains(t, out, "hidden-secret")
	assert.NotContains(t, out, "hidden-token")
	assert.Contains(t, out, "********")
	assert.Equal(t, "hidden-secret", cfg.SecretKey)
}
