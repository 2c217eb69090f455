package config

import (
	"path/filepath"
	"testing"

	"github.com/ajitpratap0/objpool/pkg/poolerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4096, cfg.Pool.MinChunkSize)
	assert.Equal(t, 8, cfg.Pool.Alignment)
	assert.True(t, cfg.Pool.Statistics)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero object size", func(c *Config) { c.Pool.ObjectSize = 0 }},
		{"negative chunk size", func(c *Config) { c.Pool.ChunkSize = -1 }},
		{"alignment not power of two", func(c *Config) { c.Pool.Alignment = 12 }},
		{"negative max chunks", func(c *Config) { c.Pool.MaxChunks = -1 }},
		{"unknown locking", func(c *Config) { c.Pool.Locking = "spin" }},
		{"unknown source", func(c *Config) { c.Pool.Source = "gpu" }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"sample rate above one", func(c *Config) { c.Tracing.SampleRate = 1.5 }},
		{"metrics without address", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Address = "" }},
		{"unknown pattern", func(c *Config) { c.Bench.Pattern = "zigzag" }},
		{"handoff with one worker", func(c *Config) { c.Bench.Pattern = PatternHandoff; c.Bench.Workers = 1 }},
		{"upper-case handoff with one worker", func(c *Config) { c.Bench.Pattern = "HANDOFF"; c.Bench.Workers = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeConfig))
		})
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("OBJPOOL_TEST_SIZE", "96")
	t.Setenv("OBJPOOL_TEST_EMPTY", "")

	assert.Equal(t, "size: 96", substituteEnvVars("size: ${OBJPOOL_TEST_SIZE}"))
	assert.Equal(t, "size: 7", substituteEnvVars("size: ${OBJPOOL_TEST_EMPTY:-7}"))
	assert.Equal(t, "size: 96", substituteEnvVars("size: ${OBJPOOL_TEST_SIZE:-7}"))
	assert.Equal(t, "a= b=96", substituteEnvVars("a=${OBJPOOL_TEST_EMPTY} b=${OBJPOOL_TEST_SIZE}"))
	assert.Equal(t, "open ${brace", substituteEnvVars("open ${brace"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objpool.yaml")

	cfg := Default()
	cfg.Pool.Name = "sessions"
	cfg.Pool.ObjectSize = 48
	cfg.Pool.Locking = LockingNone
	cfg.Bench.Pattern = PatternFIFO
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeConfig))
}

func TestParseEnvOverride(t *testing.T) {
	t.Setenv("OBJPOOL_TEST_CHUNK", "65536")
	cfg := Default()
	require.NoError(t, Parse([]byte("pool:\n  chunk_size: ${OBJPOOL_TEST_CHUNK}\n"), cfg))
	assert.Equal(t, 65536, cfg.Pool.ChunkSize)
	assert.Equal(t, 64, cfg.Pool.ObjectSize)
}
