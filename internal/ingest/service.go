package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kibikalo/dash-streaming-microservice/internal/logging"
	"github.com/kibikalo/dash-streaming-microservice/internal/metrics"
	"github.com/kibikalo/dash-streaming-microservice/internal/queue"
	"github.com/kibikalo/dash-streaming-microservice/pkg/models"
)

// ObjectStore is the subset of storage operations the front door needs.
type ObjectStore interface {
	UploadFile(ctx context.Context, bucket, object, path string) error
	Delete(ctx context.Context, bucket, object string) error
	RawBucket() string
}

// Publisher is the subset of bus operations the front door needs.
type Publisher interface {
	Publish(ctx context.Context, topic, audioID string, event interface{}) error
}

// Service is the ingestion front door: it validates an upload, assigns the
// identifier, stages the raw bytes and emits exactly one audio.uploaded
// event. A rejected upload stages nothing and emits nothing.
type Service struct {
	validator *Validator
	store     ObjectStore
	bus       Publisher
	log       *logging.Logger
}

// NewService creates a new ingestion service
func NewService(validator *Validator, store ObjectStore, bus Publisher, log *logging.Logger) *Service {
	return &Service{
		validator: validator,
		store:     store,
		bus:       bus,
		log:       log,
	}
}

// Ingest accepts a locally staged upload and returns the assigned
// identifier. A *ValidationError return means the file was rejected before
// any side effect.
func (s *Service) Ingest(ctx context.Context, localPath, originalFileName string) (string, error) {
	info, err := s.validator.Validate(ctx, localPath)
	if err != nil {
		metrics.AudioUploadsTotal.WithLabelValues("rejected").Inc()
		return "", err
	}

	audioID := uuid.New().String()
	rawFilePath := audioID + "/" + originalFileName
	log := s.log.WithAudioID(audioID)

	if err := s.store.UploadFile(ctx, s.store.RawBucket(), rawFilePath, localPath); err != nil {
		metrics.AudioUploadsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to stage raw upload: %w", err)
	}

	event := models.AudioUploadedEvent{
		AudioID:          audioID,
		RawFilePath:      rawFilePath,
		OriginalFileName: originalFileName,
		UploadTimestamp:  time.Now().UTC(),
	}
	if err := s.bus.Publish(ctx, queue.TopicAudioUploaded, audioID, &event); err != nil {
		// Unstage so a failed acceptance leaves no trace behind
		if delErr := s.store.Delete(ctx, s.store.RawBucket(), rawFilePath); delErr != nil {
			log.WithError(delErr).Error("Failed to unstage raw upload after publish failure")
		}
		metrics.AudioUploadsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to announce upload: %w", err)
	}

	log.Infof("Accepted upload %s (%s, %.1fs)", originalFileName, info.FormatName, info.DurationSeconds)
	metrics.AudioUploadsTotal.WithLabelValues("accepted").Inc()
	metrics.AudioUploadSizeBytes.Observe(float64(info.SizeBytes))
	return audioID, nil
}
