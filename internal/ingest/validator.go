package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/kibikalo/dash-streaming-microservice/internal/config"
)

// ValidationError rejects an upload synchronously, before any state is
// created. It is a client error, not an infrastructure failure.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid audio upload: " + e.Reason
}

// Container formats accepted for upload, matched against the tokens of
// ffprobe's format_name (e.g. "mov,mp4,m4a,3gp,3g2,mj2").
var allowedFormats = map[string]bool{
	"mp3":  true,
	"wav":  true,
	"flac": true,
	"ogg":  true,
	"aac":  true,
	"mp4":  true,
	"m4a":  true,
}

// ProbeInfo is what the validator learns about an uploaded file.
type ProbeInfo struct {
	FormatName      string
	DurationSeconds float64
	SizeBytes       int64
}

// Validator inspects uploaded files with ffprobe and enforces the
// container allowlist and duration bounds.
type Validator struct {
	cfg config.UploadConfig
}

// NewValidator creates a new validator
func NewValidator(cfg config.UploadConfig) *Validator {
	return &Validator{cfg: cfg}
}

type probeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
	} `json:"format"`
}

// Probe extracts container format, duration and size from a local file.
func (v *Validator) Probe(ctx context.Context, filePath string) (*ProbeInfo, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		filePath,
	}

	cmd := exec.CommandContext(ctx, v.cfg.FFprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &ValidationError{Reason: "file could not be read as audio"}
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &ProbeInfo{FormatName: out.Format.FormatName}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		info.DurationSeconds = d
	}
	if s, err := strconv.ParseInt(out.Format.Size, 10, 64); err == nil {
		info.SizeBytes = s
	}

	return info, nil
}

// Check applies the acceptance policy to probed attributes.
func (v *Validator) Check(info *ProbeInfo) error {
	if !formatAllowed(info.FormatName) {
		return &ValidationError{Reason: fmt.Sprintf("unsupported container format %q", info.FormatName)}
	}
	if info.DurationSeconds < float64(v.cfg.MinDurationSeconds) {
		return &ValidationError{Reason: fmt.Sprintf(
			"duration %.1fs is below the minimum of %ds", info.DurationSeconds, v.cfg.MinDurationSeconds)}
	}
	if info.DurationSeconds > float64(v.cfg.MaxDurationSeconds) {
		return &ValidationError{Reason: fmt.Sprintf(
			"duration %.1fs exceeds the maximum of %ds", info.DurationSeconds, v.cfg.MaxDurationSeconds)}
	}
	if v.cfg.MaxFileSizeBytes > 0 && info.SizeBytes > v.cfg.MaxFileSizeBytes {
		return &ValidationError{Reason: fmt.Sprintf(
			"file size %d exceeds the maximum of %d bytes", info.SizeBytes, v.cfg.MaxFileSizeBytes)}
	}
	return nil
}

// Validate probes a local file and applies the acceptance policy.
func (v *Validator) Validate(ctx context.Context, filePath string) (*ProbeInfo, error) {
	info, err := v.Probe(ctx, filePath)
	if err != nil {
		return nil, err
	}
	if err := v.Check(info); err != nil {
		return nil, err
	}
	return info, nil
}

func formatAllowed(formatName string) bool {
	for _, token := range strings.Split(formatName, ",") {
		if allowedFormats[strings.TrimSpace(token)] {
			return true
		}
	}
	return false
}
