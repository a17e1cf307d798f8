package transcoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"
)

// FFmpeg drives the external encoder executable.
type FFmpeg struct {
	path string
}

// NewFFmpeg creates a new FFmpeg instance
func NewFFmpeg(path string) *FFmpeg {
	return &FFmpeg{path: path}
}

// DashOptions describes one DASH encoding invocation.
type DashOptions struct {
	InputPath       string
	OutputDir       string
	ManifestName    string
	BitratesKbps    []int
	SegmentDuration int
	Codec           string
	Timeout         time.Duration
}

// buildDashArgs assembles the encoder invocation: one audio mapping and one
// representation per ladder rung, templated segment names so representation
// identity and segment order are recoverable from file names alone.
func buildDashArgs(opts DashOptions) []string {
	args := []string{"-i", opts.InputPath}

	for range opts.BitratesKbps {
		args = append(args, "-map", "0:a")
	}

	for i, kbps := range opts.BitratesKbps {
		args = append(args,
			fmt.Sprintf("-b:a:%d", i), fmt.Sprintf("%dk", kbps),
			fmt.Sprintf("-c:a:%d", i), opts.Codec,
		)
	}

	args = append(args,
		"-f", "dash",
		"-seg_duration", strconv.Itoa(opts.SegmentDuration),
		"-use_template", "1",
		"-use_timeline", "0",
		"-init_seg_name", "init-stream$RepresentationID$.m4s",
		"-media_seg_name", "chunk-stream$RepresentationID$-$Number%05d$.m4s",
		"-strict", "experimental",
		opts.OutputDir+"/"+opts.ManifestName,
	)

	return args
}

// RunDash runs one DASH encoding under a hard wall-clock timeout, consuming
// the combined output stream line-by-line for the duration signal. On
// timeout the whole process group is killed and ErrTimeout is returned;
// partial output is never reported as success.
func (f *FFmpeg) RunDash(ctx context.Context, opts DashOptions) (*int64, error) {
	if len(opts.BitratesKbps) == 0 {
		return nil, fmt.Errorf("bitrate ladder must not be empty")
	}

	runCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, f.path, buildDashArgs(opts)...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Kill the whole group so encoder children don't outlive the job
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	// Combine stdout and stderr into one stream; the encoder writes its
	// banner and progress to stderr.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("failed to start encoder: %w", err)
	}
	pw.Close()

	var scanner DurationScanner
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer pr.Close()
		lines := bufio.NewScanner(pr)
		lines.Buffer(make([]byte, 64*1024), 1024*1024)
		for lines.Scan() {
			scanner.Feed(lines.Text())
		}
	}()

	waitErr := cmd.Wait()
	wg.Wait()

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, ErrTimeout
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return nil, &ProcessExitError{Code: exitErr.ExitCode()}
		}
		return nil, fmt.Errorf("encoder failed: %w", waitErr)
	}

	return scanner.Millis(), nil
}
