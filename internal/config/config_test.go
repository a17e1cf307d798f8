package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9999
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "raw-audio-files", cfg.Storage.RawBucket)
	assert.Equal(t, "processed-audio-files", cfg.Storage.ProcessedBucket)
	assert.Equal(t, []int{64, 128}, cfg.Encoding.BitratesKbps)
	assert.Equal(t, 4, cfg.Encoding.SegmentDurationSeconds)
	assert.Equal(t, "libopus", cfg.Encoding.Codec)
	assert.Equal(t, 5*time.Minute, cfg.Encoding.Timeout)
	assert.Equal(t, "manifest.mpd", cfg.Encoding.ManifestName)
	assert.Equal(t, 1, cfg.Upload.MinDurationSeconds)
	assert.Equal(t, 7200, cfg.Upload.MaxDurationSeconds)
	assert.Equal(t, 30*time.Second, cfg.Redis.ViewTTL)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
encoding:
  bitratesKbps: [32, 96, 192]
  segmentDurationSeconds: 6
  codec: aac
  timeout: 2m
upload:
  maxDurationSeconds: 600
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []int{32, 96, 192}, cfg.Encoding.BitratesKbps)
	assert.Equal(t, 6, cfg.Encoding.SegmentDurationSeconds)
	assert.Equal(t, "aac", cfg.Encoding.Codec)
	assert.Equal(t, 2*time.Minute, cfg.Encoding.Timeout)
	assert.Equal(t, 600, cfg.Upload.MaxDurationSeconds)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Encoding: EncodingConfig{
				BitratesKbps:           []int{64, 128},
				SegmentDurationSeconds: 4,
				Timeout:                5 * time.Minute,
			},
			Upload: UploadConfig{
				MinDurationSeconds: 1,
				MaxDurationSeconds: 7200,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "empty bitrate ladder",
			mutate:  func(c *Config) { c.Encoding.BitratesKbps = nil },
			wantErr: true,
		},
		{
			name:    "non-positive bitrate",
			mutate:  func(c *Config) { c.Encoding.BitratesKbps = []int{64, 0} },
			wantErr: true,
		},
		{
			name:    "zero segment duration",
			mutate:  func(c *Config) { c.Encoding.SegmentDurationSeconds = 0 },
			wantErr: true,
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Encoding.Timeout = 0 },
			wantErr: true,
		},
		{
			name:    "inverted duration bounds",
			mutate:  func(c *Config) { c.Upload.MaxDurationSeconds = 1; c.Upload.MinDurationSeconds = 10 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
