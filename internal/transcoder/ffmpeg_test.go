package transcoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript writes an executable shell script standing in for the encoder.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestBuildDashArgs(t *testing.T) {
	opts := DashOptions{
		InputPath:       "/tmp/job/input.mp3",
		OutputDir:       "/tmp/job",
		ManifestName:    "manifest.mpd",
		BitratesKbps:    []int{64, 128},
		SegmentDuration: 4,
		Codec:           "libopus",
	}

	args := buildDashArgs(opts)
	joined := strings.Join(args, " ")

	assert.Equal(t, []string{"-i", "/tmp/job/input.mp3"}, args[:2])
	assert.Equal(t, 2, strings.Count(joined, "-map 0:a"),
		"one audio mapping per ladder rung")
	assert.Contains(t, joined, "-b:a:0 64k -c:a:0 libopus")
	assert.Contains(t, joined, "-b:a:1 128k -c:a:1 libopus")
	assert.Contains(t, joined, "-f dash")
	assert.Contains(t, joined, "-seg_duration 4")
	assert.Contains(t, joined, "-use_template 1")
	assert.Contains(t, joined, "-use_timeline 0")
	assert.Contains(t, joined, "-init_seg_name init-stream$RepresentationID$.m4s")
	assert.Contains(t, joined, "-media_seg_name chunk-stream$RepresentationID$-$Number%05d$.m4s")
	assert.Equal(t, "/tmp/job/manifest.mpd", args[len(args)-1],
		"manifest path is the final positional argument")
}

func TestRunDashParsesDuration(t *testing.T) {
	script := writeScript(t, `echo "  Duration: 00:01:30.50, start: 0.000000, bitrate: 128 kb/s" >&2`)
	f := NewFFmpeg(script)

	millis, err := f.RunDash(context.Background(), DashOptions{
		InputPath:    "in",
		OutputDir:    t.TempDir(),
		ManifestName: "manifest.mpd",
		BitratesKbps: []int{64},
		Codec:        "libopus",
		Timeout:      10 * time.Second,
	})
	require.NoError(t, err)
	require.NotNil(t, millis)
	assert.Equal(t, int64(90500), *millis)
}

func TestRunDashNoDurationReported(t *testing.T) {
	script := writeScript(t, `echo "frame= 100"`)
	f := NewFFmpeg(script)

	millis, err := f.RunDash(context.Background(), DashOptions{
		InputPath:    "in",
		OutputDir:    t.TempDir(),
		ManifestName: "manifest.mpd",
		BitratesKbps: []int{64},
		Codec:        "libopus",
		Timeout:      10 * time.Second,
	})
	require.NoError(t, err)
	assert.Nil(t, millis, "missing duration is not an error")
}

func TestRunDashTimeout(t *testing.T) {
	script := writeScript(t, `sleep 30`)
	f := NewFFmpeg(script)

	start := time.Now()
	_, err := f.RunDash(context.Background(), DashOptions{
		InputPath:    "in",
		OutputDir:    t.TempDir(),
		ManifestName: "manifest.mpd",
		BitratesKbps: []int{64},
		Codec:        "libopus",
		Timeout:      200 * time.Millisecond,
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, elapsed, 10*time.Second, "process group must be killed promptly")
}

func TestRunDashNonZeroExit(t *testing.T) {
	script := writeScript(t, `exit 3`)
	f := NewFFmpeg(script)

	_, err := f.RunDash(context.Background(), DashOptions{
		InputPath:    "in",
		OutputDir:    t.TempDir(),
		ManifestName: "manifest.mpd",
		BitratesKbps: []int{64},
		Codec:        "libopus",
		Timeout:      10 * time.Second,
	})
	require.Error(t, err)

	var exitErr *ProcessExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
}

func TestRunDashEmptyLadderRejected(t *testing.T) {
	f := NewFFmpeg("/usr/bin/false")

	_, err := f.RunDash(context.Background(), DashOptions{
		InputPath:    "in",
		OutputDir:    t.TempDir(),
		ManifestName: "manifest.mpd",
		Timeout:      time.Second,
	})
	assert.Error(t, err)
}
