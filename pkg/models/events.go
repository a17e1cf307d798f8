package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidEvent is wrapped by every event schema validation failure.
var ErrInvalidEvent = errors.New("invalid event payload")

// AudioUploadedEvent announces a validated raw upload staged in the raw bucket.
type AudioUploadedEvent struct {
	AudioID          string    `json:"audioId"`
	RawFilePath      string    `json:"rawFilePath"`
	OriginalFileName string    `json:"originalFileName"`
	UploadTimestamp  time.Time `json:"uploadTimestamp"`
}

func (e *AudioUploadedEvent) Validate() error {
	if e.AudioID == "" {
		return fmt.Errorf("%w: audioId is required", ErrInvalidEvent)
	}
	if e.RawFilePath == "" {
		return fmt.Errorf("%w: rawFilePath is required", ErrInvalidEvent)
	}
	if e.OriginalFileName == "" {
		return fmt.Errorf("%w: originalFileName is required", ErrInvalidEvent)
	}
	return nil
}

// EncodingRequestedEvent asks a worker to transcode one staged raw object.
type EncodingRequestedEvent struct {
	AudioID     string `json:"audioId"`
	RawFilePath string `json:"rawFilePath"`
}

func (e *EncodingRequestedEvent) Validate() error {
	if e.AudioID == "" {
		return fmt.Errorf("%w: audioId is required", ErrInvalidEvent)
	}
	if e.RawFilePath == "" {
		return fmt.Errorf("%w: rawFilePath is required", ErrInvalidEvent)
	}
	return nil
}

// EncodingStartedEvent marks a worker picking up a job. Observability only;
// it never moves a record out of a terminal state.
type EncodingStartedEvent struct {
	AudioID        string    `json:"audioId"`
	StartTimestamp time.Time `json:"startTimestamp"`
}

func (e *EncodingStartedEvent) Validate() error {
	if e.AudioID == "" {
		return fmt.Errorf("%w: audioId is required", ErrInvalidEvent)
	}
	return nil
}

// EncodingSucceededEvent carries everything the status record needs to
// become AVAILABLE.
type EncodingSucceededEvent struct {
	AudioID           string    `json:"audioId"`
	ManifestPath      string    `json:"manifestPath"`
	SegmentBasePath   string    `json:"segmentBasePath"`
	DurationMillis    *int64    `json:"durationMillis"`
	BitratesKbps      []int32   `json:"bitratesKbps"`
	Codec             string    `json:"codec"`
	EncodingTimestamp time.Time `json:"encodingTimestamp"`
	RawFileSize       int64     `json:"rawFileSize"`
	RawFileFormat     string    `json:"rawFileFormat"`
}

func (e *EncodingSucceededEvent) Validate() error {
	if e.AudioID == "" {
		return fmt.Errorf("%w: audioId is required", ErrInvalidEvent)
	}
	if e.ManifestPath == "" {
		return fmt.Errorf("%w: manifestPath is required", ErrInvalidEvent)
	}
	if e.SegmentBasePath == "" {
		return fmt.Errorf("%w: segmentBasePath is required", ErrInvalidEvent)
	}
	if len(e.BitratesKbps) == 0 {
		return fmt.Errorf("%w: bitratesKbps must not be empty", ErrInvalidEvent)
	}
	for _, b := range e.BitratesKbps {
		if b <= 0 {
			return fmt.Errorf("%w: bitratesKbps must be positive, got %d", ErrInvalidEvent, b)
		}
	}
	return nil
}

// EncodingFailedEvent reports a terminally failed transcoding attempt.
type EncodingFailedEvent struct {
	AudioID          string    `json:"audioId"`
	ErrorMessage     string    `json:"errorMessage"`
	FailureTimestamp time.Time `json:"failureTimestamp"`
}

func (e *EncodingFailedEvent) Validate() error {
	if e.AudioID == "" {
		return fmt.Errorf("%w: audioId is required", ErrInvalidEvent)
	}
	return nil
}
