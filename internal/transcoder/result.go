package transcoder

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when the encoder exceeds the configured wall-clock
// limit and its process tree is forcibly terminated.
var ErrTimeout = errors.New("encoding timed out")

// ProcessExitError is returned when the encoder exits non-zero.
type ProcessExitError struct {
	Code int
}

func (e *ProcessExitError) Error() string {
	return fmt.Sprintf("encoder exited with code %d", e.Code)
}

// SourceError is returned when the raw object cannot be reached or staged.
// It is fatal for the job; retries are a bus redelivery concern.
type SourceError struct {
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("raw object %s unavailable: %v", e.Path, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// UploadError is returned when any processed artifact fails to publish.
// A single failed upload aborts the whole job; there is no partial publish.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("failed to upload %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Result describes a completed encoding job.
type Result struct {
	AudioID         string
	ManifestPath    string
	SegmentBasePath string
	DurationMillis  *int64
	BitratesKbps    []int32
	Codec           string
	RawFileSize     int64
	RawFileFormat   string
}
