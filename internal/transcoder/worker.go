package transcoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/kibikalo/dash-streaming-microservice/internal/config"
	"github.com/kibikalo/dash-streaming-microservice/internal/logging"
	"github.com/kibikalo/dash-streaming-microservice/internal/metrics"
	"github.com/kibikalo/dash-streaming-microservice/internal/queue"
	"github.com/kibikalo/dash-streaming-microservice/internal/storage"
	"github.com/kibikalo/dash-streaming-microservice/pkg/models"
)

// ObjectStore is the subset of storage operations the worker needs.
type ObjectStore interface {
	Stat(ctx context.Context, bucket, object string) (*storage.ObjectInfo, error)
	DownloadFile(ctx context.Context, bucket, object, path string) error
	UploadFile(ctx context.Context, bucket, object, path string) error
	RawBucket() string
	ProcessedBucket() string
}

// Publisher is the subset of bus operations the worker needs.
type Publisher interface {
	Publish(ctx context.Context, topic, audioID string, event interface{}) error
}

// Worker consumes encoding requests and turns raw audio objects into
// streamable DASH packages. It never retries internally: every failure
// converts to a single encoding.failed event and the job is torn down.
type Worker struct {
	cfg    config.EncodingConfig
	ffmpeg *FFmpeg
	store  ObjectStore
	bus    Publisher
	log    *logging.Logger
}

// NewWorker creates a new transcoding worker
func NewWorker(cfg config.EncodingConfig, store ObjectStore, bus Publisher, log *logging.Logger) *Worker {
	return &Worker{
		cfg:    cfg,
		ffmpeg: NewFFmpeg(cfg.FFmpegPath),
		store:  store,
		bus:    bus,
		log:    log,
	}
}

// Handle processes one encoding.requested payload. Malformed payloads are
// dropped; job failures become encoding.failed events. A non-nil return is
// reserved for result publication failures, where bus redelivery is the
// only way the outcome can still be recorded.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var event models.EncodingRequestedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		w.log.WithError(err).Warn("Dropping undecodable encoding request")
		metrics.EventsProcessedTotal.WithLabelValues(queue.TopicEncodingRequested, "invalid").Inc()
		return nil
	}
	if err := event.Validate(); err != nil {
		w.log.WithError(err).Warn("Dropping invalid encoding request")
		metrics.EventsProcessedTotal.WithLabelValues(queue.TopicEncodingRequested, "invalid").Inc()
		return nil
	}

	log := w.log.WithAudioID(event.AudioID)
	log.Infof("Encoding requested for %s", event.RawFilePath)

	started := models.EncodingStartedEvent{
		AudioID:        event.AudioID,
		StartTimestamp: time.Now().UTC(),
	}
	if err := w.bus.Publish(ctx, queue.TopicEncodingStarted, event.AudioID, &started); err != nil {
		// Observability signal only; the job proceeds without it
		log.WithError(err).Warn("Failed to publish encoding.started")
	}

	metrics.EncodingJobsInProgress.Inc()
	begin := time.Now()

	result, encodeErr := w.Encode(ctx, event.AudioID, event.RawFilePath)

	metrics.EncodingJobsInProgress.Dec()
	metrics.EncodingJobDuration.Observe(time.Since(begin).Seconds())
	metrics.EncodingJobsTotal.WithLabelValues(outcomeLabel(encodeErr)).Inc()

	if encodeErr != nil {
		// A shutdown kill is not a verdict on the file. Leave the message
		// unacked so another worker picks the job up; only jobs that failed
		// on their own merits become terminal.
		if ctx.Err() != nil {
			log.WithError(encodeErr).Warn("Encoding interrupted by shutdown, leaving job for redelivery")
			return fmt.Errorf("encoding interrupted: %w", encodeErr)
		}

		log.WithError(encodeErr).Error("Encoding job failed")
		failed := models.EncodingFailedEvent{
			AudioID:          event.AudioID,
			ErrorMessage:     encodeErr.Error(),
			FailureTimestamp: time.Now().UTC(),
		}
		if err := w.bus.Publish(ctx, queue.TopicEncodingFailed, event.AudioID, &failed); err != nil {
			return fmt.Errorf("failed to publish encoding.failed: %w", err)
		}
		return nil
	}

	succeeded := models.EncodingSucceededEvent{
		AudioID:           result.AudioID,
		ManifestPath:      result.ManifestPath,
		SegmentBasePath:   result.SegmentBasePath,
		DurationMillis:    result.DurationMillis,
		BitratesKbps:      result.BitratesKbps,
		Codec:             result.Codec,
		EncodingTimestamp: time.Now().UTC(),
		RawFileSize:       result.RawFileSize,
		RawFileFormat:     result.RawFileFormat,
	}
	if err := w.bus.Publish(ctx, queue.TopicEncodingSucceeded, event.AudioID, &succeeded); err != nil {
		return fmt.Errorf("failed to publish encoding.succeeded: %w", err)
	}

	log.Info("Encoding job succeeded")
	return nil
}

// Encode stages the raw object, runs the encoder and publishes the output
// set. The staging directory is removed on every exit path.
func (w *Worker) Encode(ctx context.Context, audioID, rawFilePath string) (*Result, error) {
	info, err := w.store.Stat(ctx, w.store.RawBucket(), rawFilePath)
	if err != nil {
		return nil, &SourceError{Path: rawFilePath, Err: err}
	}

	job, err := newEncodeJob(w.cfg.TempDir, audioID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := job.Close(); err != nil {
			w.log.WithAudioID(audioID).WithError(err).Warn("Failed to remove staging directory")
		}
	}()

	inputPath := job.InputPath(filepath.Base(rawFilePath))
	begin := time.Now()
	err = w.store.DownloadFile(ctx, w.store.RawBucket(), rawFilePath, inputPath)
	w.log.LogStorageOperation("download", w.store.RawBucket(), rawFilePath, time.Since(begin), err)
	if err != nil {
		return nil, &SourceError{Path: rawFilePath, Err: err}
	}

	durationMillis, err := w.ffmpeg.RunDash(ctx, DashOptions{
		InputPath:       inputPath,
		OutputDir:       job.Dir,
		ManifestName:    w.cfg.ManifestName,
		BitratesKbps:    w.cfg.BitratesKbps,
		SegmentDuration: w.cfg.SegmentDurationSeconds,
		Codec:           w.cfg.Codec,
		Timeout:         w.cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	files, err := job.OutputFiles()
	if err != nil {
		return nil, err
	}

	manifestSeen := false
	for _, name := range files {
		if name == w.cfg.ManifestName {
			manifestSeen = true
		}
	}
	if !manifestSeen {
		return nil, fmt.Errorf("encoder exited cleanly but produced no %s", w.cfg.ManifestName)
	}

	basePath := path.Join(w.cfg.ProcessedPrefix, audioID)
	for _, name := range files {
		key := basePath + "/" + name
		begin := time.Now()
		err := w.store.UploadFile(ctx, w.store.ProcessedBucket(), key, filepath.Join(job.Dir, name))
		w.log.LogStorageOperation("upload", w.store.ProcessedBucket(), key, time.Since(begin), err)
		if err != nil {
			return nil, &UploadError{Key: key, Err: err}
		}
		metrics.SegmentsUploadedTotal.Inc()
	}

	bitrates := make([]int32, len(w.cfg.BitratesKbps))
	for i, b := range w.cfg.BitratesKbps {
		bitrates[i] = int32(b)
	}

	return &Result{
		AudioID:         audioID,
		ManifestPath:    basePath + "/" + w.cfg.ManifestName,
		SegmentBasePath: basePath + "/",
		DurationMillis:  durationMillis,
		BitratesKbps:    bitrates,
		Codec:           w.cfg.Codec,
		RawFileSize:     info.Size,
		RawFileFormat:   info.ContentType,
	}, nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		var exitErr *ProcessExitError
		var srcErr *SourceError
		var upErr *UploadError
		switch {
		case errors.As(err, &exitErr):
			return "process_exit"
		case errors.As(err, &srcErr):
			return "source_unavailable"
		case errors.As(err, &upErr):
			return "upload_failed"
		}
		return "error"
	}
}
