package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kibikalo/dash-streaming-microservice/internal/config"
)

func testUploadConfig() config.UploadConfig {
	return config.UploadConfig{
		FFprobePath:        "ffprobe",
		MinDurationSeconds: 1,
		MaxDurationSeconds: 7200,
		MaxFileSizeBytes:   500 * 1024 * 1024,
	}
}

func TestFormatAllowed(t *testing.T) {
	tests := []struct {
		formatName string
		want       bool
	}{
		{"mp3", true},
		{"wav", true},
		{"flac", true},
		{"ogg", true},
		{"mov,mp4,m4a,3gp,3g2,mj2", true},
		{"matroska,webm", false},
		{"mpegts", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := formatAllowed(tt.formatName); got != tt.want {
			t.Errorf("formatAllowed(%q) = %v, want %v", tt.formatName, got, tt.want)
		}
	}
}

func TestCheck(t *testing.T) {
	v := NewValidator(testUploadConfig())

	tests := []struct {
		name       string
		info       ProbeInfo
		wantReason string
	}{
		{
			name: "accepted mp3",
			info: ProbeInfo{FormatName: "mp3", DurationSeconds: 180, SizeBytes: 4 << 20},
		},
		{
			name:       "unsupported container",
			info:       ProbeInfo{FormatName: "matroska,webm", DurationSeconds: 180, SizeBytes: 4 << 20},
			wantReason: "unsupported container",
		},
		{
			name:       "too short",
			info:       ProbeInfo{FormatName: "mp3", DurationSeconds: 0.4, SizeBytes: 1024},
			wantReason: "below the minimum",
		},
		{
			name:       "too long",
			info:       ProbeInfo{FormatName: "mp3", DurationSeconds: 7201, SizeBytes: 4 << 20},
			wantReason: "exceeds the maximum",
		},
		{
			name:       "too large",
			info:       ProbeInfo{FormatName: "mp3", DurationSeconds: 180, SizeBytes: 501 * 1024 * 1024},
			wantReason: "file size",
		},
		{
			name: "duration exactly at bounds",
			info: ProbeInfo{FormatName: "mp3", DurationSeconds: 7200, SizeBytes: 4 << 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Check(&tt.info)
			if tt.wantReason == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "rejections must be ValidationErrors")
			assert.Contains(t, vErr.Reason, tt.wantReason)
		})
	}
}

func TestProbeWithFakeFFprobe(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-ffprobe")
	output := `{"format":{"format_name":"mp3","duration":"183.432000","size":"4812387"}}`
	require.NoError(t, os.WriteFile(script,
		[]byte("#!/bin/sh\necho '"+output+"'\n"), 0o755))

	cfg := testUploadConfig()
	cfg.FFprobePath = script
	v := NewValidator(cfg)

	info, err := v.Probe(context.Background(), "whatever.mp3")
	require.NoError(t, err)
	assert.Equal(t, "mp3", info.FormatName)
	assert.InDelta(t, 183.432, info.DurationSeconds, 0.001)
	assert.Equal(t, int64(4812387), info.SizeBytes)
}

func TestProbeUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-ffprobe")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexit 1\n"), 0o755))

	cfg := testUploadConfig()
	cfg.FFprobePath = script
	v := NewValidator(cfg)

	_, err := v.Probe(context.Background(), "garbage.bin")
	require.Error(t, err)

	var vErr *ValidationError
	assert.True(t, errors.As(err, &vErr), "an unreadable file is a client error")
}
