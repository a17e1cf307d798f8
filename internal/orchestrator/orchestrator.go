// Package orchestrator drives the audio item status state machine from
// pipeline events. Every handler is idempotent under at-least-once
// delivery: existence checks guard creation, terminal-state checks guard
// result application, and duplicates are dropped with a log line instead
// of surfaced as errors.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kibikalo/dash-streaming-microservice/internal/database"
	"github.com/kibikalo/dash-streaming-microservice/internal/logging"
	"github.com/kibikalo/dash-streaming-microservice/internal/metrics"
	"github.com/kibikalo/dash-streaming-microservice/internal/queue"
	"github.com/kibikalo/dash-streaming-microservice/pkg/models"
)

// StatusStore is the subset of status store operations the orchestrator
// performs. All pipeline writes go through here. UpdateAudio must refuse
// to touch a terminal record and report whether it applied.
type StatusStore interface {
	CreateAudioIfAbsent(ctx context.Context, item *models.AudioItem) (bool, error)
	GetAudio(ctx context.Context, id string) (*models.AudioItem, error)
	UpdateAudio(ctx context.Context, item *models.AudioItem) (bool, error)
	DeleteAudio(ctx context.Context, id string) error
}

// Publisher is the subset of bus operations the orchestrator needs.
type Publisher interface {
	Publish(ctx context.Context, topic, audioID string, event interface{}) error
}

// ViewCache invalidates cached status views when a record moves. Failures
// are tolerable: a stale view expires with its TTL anyway.
type ViewCache interface {
	DeleteStatusView(ctx context.Context, audioID string) error
}

// Orchestrator consumes upload and result events and converges each audio
// item to a terminal state.
type Orchestrator struct {
	store StatusStore
	bus   Publisher
	views ViewCache
	log   *logging.Logger
}

// New creates a new orchestrator
func New(store StatusStore, bus Publisher, views ViewCache, log *logging.Logger) *Orchestrator {
	return &Orchestrator{store: store, bus: bus, views: views, log: log}
}

// HandleAudioUploaded creates the initial status record and emits the
// encoding request. A crash between the two may strand a committed record
// without a request, so on redelivery a record still in PENDING_ENCODING
// gets its request re-emitted (a duplicate request is a downstream no-op;
// a missing one strands the item forever). If the emission cannot be
// published the fresh record is rolled back and the event redelivered.
func (o *Orchestrator) HandleAudioUploaded(ctx context.Context, body []byte) error {
	var event models.AudioUploadedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		o.log.WithError(err).Warn("Dropping undecodable audio.uploaded payload")
		metrics.EventsProcessedTotal.WithLabelValues(queue.TopicAudioUploaded, "invalid").Inc()
		return nil
	}
	if err := event.Validate(); err != nil {
		o.log.WithError(err).Warn("Dropping invalid audio.uploaded payload")
		metrics.EventsProcessedTotal.WithLabelValues(queue.TopicAudioUploaded, "invalid").Inc()
		return nil
	}

	log := o.log.WithAudioID(event.AudioID)

	item := &models.AudioItem{
		ID:               event.AudioID,
		Status:           models.StatusPendingEncoding,
		OriginalFileName: event.OriginalFileName,
		RawFilePath:      event.RawFilePath,
	}

	created, err := o.store.CreateAudioIfAbsent(ctx, item)
	if err != nil {
		return fmt.Errorf("failed to create status record: %w", err)
	}
	if !created {
		return o.recoverPendingRequest(ctx, &event)
	}

	request := models.EncodingRequestedEvent{
		AudioID:     event.AudioID,
		RawFilePath: event.RawFilePath,
	}
	if err := o.bus.Publish(ctx, queue.TopicEncodingRequested, event.AudioID, &request); err != nil {
		if delErr := o.store.DeleteAudio(ctx, event.AudioID); delErr != nil {
			log.WithError(delErr).Error("Failed to roll back status record after publish failure")
		}
		return fmt.Errorf("failed to publish encoding request: %w", err)
	}

	log.Info("Created status record and requested encoding")
	metrics.EventsProcessedTotal.WithLabelValues(queue.TopicAudioUploaded, "created").Inc()
	metrics.StatusTransitionsTotal.WithLabelValues(models.StatusPendingEncoding).Inc()
	return nil
}

// recoverPendingRequest handles a redelivered upload event whose record
// already exists. A record past PENDING_ENCODING proves its request was
// consumed, so the redelivery is a pure duplicate. A record still pending
// may be the residue of a crash between creation and emission; re-emitting
// is the only way it ever leaves PENDING_ENCODING.
func (o *Orchestrator) recoverPendingRequest(ctx context.Context, event *models.AudioUploadedEvent) error {
	item, err := o.fetch(ctx, queue.TopicAudioUploaded, event.AudioID)
	if err != nil || item == nil {
		return err
	}

	if item.Status != models.StatusPendingEncoding {
		o.log.LogEvent(queue.TopicAudioUploaded, event.AudioID, "duplicate")
		metrics.EventsProcessedTotal.WithLabelValues(queue.TopicAudioUploaded, "duplicate").Inc()
		return nil
	}

	request := models.EncodingRequestedEvent{
		AudioID:     event.AudioID,
		RawFilePath: item.RawFilePath,
	}
	if err := o.bus.Publish(ctx, queue.TopicEncodingRequested, event.AudioID, &request); err != nil {
		return fmt.Errorf("failed to re-publish encoding request: %w", err)
	}

	o.log.WithAudioID(event.AudioID).Warn("Re-emitted encoding request for pending item on redelivery")
	metrics.EventsProcessedTotal.WithLabelValues(queue.TopicAudioUploaded, "reemitted").Inc()
	return nil
}

// HandleEncodingStarted moves a pending item to ENCODING_IN_PROGRESS.
// Purely observational: stale or duplicate deliveries are dropped and a
// terminal record is never touched.
func (o *Orchestrator) HandleEncodingStarted(ctx context.Context, body []byte) error {
	var event models.EncodingStartedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		o.log.WithError(err).Warn("Dropping undecodable encoding.started payload")
		metrics.EventsProcessedTotal.WithLabelValues(queue.TopicEncodingStarted, "invalid").Inc()
		return nil
	}
	if err := event.Validate(); err != nil {
		o.log.WithError(err).Warn("Dropping invalid encoding.started payload")
		metrics.EventsProcessedTotal.WithLabelValues(queue.TopicEncodingStarted, "invalid").Inc()
		return nil
	}

	item, err := o.fetch(ctx, queue.TopicEncodingStarted, event.AudioID)
	if err != nil || item == nil {
		return err
	}

	if item.Status != models.StatusPendingEncoding {
		o.log.WithAudioID(event.AudioID).Debugf(
			"Ignoring encoding.started in status %s", item.Status)
		metrics.EventsProcessedTotal.WithLabelValues(queue.TopicEncodingStarted, "stale").Inc()
		return nil
	}

	item.Status = models.StatusEncodingInProgress
	applied, err := o.store.UpdateAudio(ctx, item)
	if err != nil {
		return fmt.Errorf("failed to update status record: %w", err)
	}
	if !applied {
		metrics.EventsProcessedTotal.WithLabelValues(queue.TopicEncodingStarted, "stale").Inc()
		return nil
	}

	o.invalidateView(ctx, event.AudioID)
	o.log.LogEvent(queue.TopicEncodingStarted, event.AudioID, "applied")
	metrics.EventsProcessedTotal.WithLabelValues(queue.TopicEncodingStarted, "applied").Inc()
	metrics.StatusTransitionsTotal.WithLabelValues(models.StatusEncodingInProgress).Inc()
	return nil
}

// HandleEncodingSucceeded applies a successful result and moves the item
// to AVAILABLE. Results for unknown identifiers are orphans and dropped
// with a warning; a record already in a terminal state is left untouched.
func (o *Orchestrator) HandleEncodingSucceeded(ctx context.Context, body []byte) error {
	var event models.EncodingSucceededEvent
	if err := json.Unmarshal(body, &event); err != nil {
		o.log.WithError(err).Warn("Dropping undecodable encoding.succeeded payload")
		metrics.EventsProcessedTotal.WithLabelValues(queue.TopicEncodingSucceeded, "invalid").Inc()
		return nil
	}
	if err := event.Validate(); err != nil {
		o.log.WithError(err).Warn("Dropping invalid encoding.succeeded payload")
		metrics.EventsProcessedTotal.WithLabelValues(queue.TopicEncodingSucceeded, "invalid").Inc()
		return nil
	}

	item, err := o.fetch(ctx, queue.TopicEncodingSucceeded, event.AudioID)
	if err != nil || item == nil {
		return err
	}

	if models.IsTerminalStatus(item.Status) {
		o.log.WithAudioID(event.AudioID).Warnf(
			"Ignoring encoding.succeeded for item already in %s", item.Status)
		metrics.EventsProcessedTotal.WithLabelValues(queue.TopicEncodingSucceeded, "terminal").Inc()
		return nil
	}

	item.Status = models.StatusAvailable
	item.ManifestPath = event.ManifestPath
	item.SegmentBasePath = event.SegmentBasePath
	item.DurationMillis = event.DurationMillis
	item.BitratesKbps = event.BitratesKbps
	item.Codec = event.Codec
	item.RawFileSize = event.RawFileSize
	item.RawFileFormat = event.RawFileFormat
	encodedAt := event.EncodingTimestamp
	item.EncodedAt = &encodedAt

	applied, err := o.store.UpdateAudio(ctx, item)
	if err != nil {
		return fmt.Errorf("failed to update status record: %w", err)
	}
	if !applied {
		// Another writer got its terminal state in first
		o.log.WithAudioID(event.AudioID).Warn("Ignoring encoding.succeeded, record turned terminal concurrently")
		metrics.EventsProcessedTotal.WithLabelValues(queue.TopicEncodingSucceeded, "terminal").Inc()
		return nil
	}

	o.invalidateView(ctx, event.AudioID)
	o.log.WithAudioID(event.AudioID).Info("Audio item is now available")
	metrics.EventsProcessedTotal.WithLabelValues(queue.TopicEncodingSucceeded, "applied").Inc()
	metrics.StatusTransitionsTotal.WithLabelValues(models.StatusAvailable).Inc()
	return nil
}

// HandleEncodingFailed moves the item to FAILED_ENCODING. The error message
// is logged, not persisted; the status record carries lifecycle state only.
func (o *Orchestrator) HandleEncodingFailed(ctx context.Context, body []byte) error {
	var event models.EncodingFailedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		o.log.WithError(err).Warn("Dropping undecodable encoding.failed payload")
		metrics.EventsProcessedTotal.WithLabelValues(queue.TopicEncodingFailed, "invalid").Inc()
		return nil
	}
	if err := event.Validate(); err != nil {
		o.log.WithError(err).Warn("Dropping invalid encoding.failed payload")
		metrics.EventsProcessedTotal.WithLabelValues(queue.TopicEncodingFailed, "invalid").Inc()
		return nil
	}

	item, err := o.fetch(ctx, queue.TopicEncodingFailed, event.AudioID)
	if err != nil || item == nil {
		return err
	}

	if models.IsTerminalStatus(item.Status) {
		o.log.WithAudioID(event.AudioID).Warnf(
			"Ignoring encoding.failed for item already in %s", item.Status)
		metrics.EventsProcessedTotal.WithLabelValues(queue.TopicEncodingFailed, "terminal").Inc()
		return nil
	}

	item.Status = models.StatusFailedEncoding
	applied, err := o.store.UpdateAudio(ctx, item)
	if err != nil {
		return fmt.Errorf("failed to update status record: %w", err)
	}
	if !applied {
		o.log.WithAudioID(event.AudioID).Warn("Ignoring encoding.failed, record turned terminal concurrently")
		metrics.EventsProcessedTotal.WithLabelValues(queue.TopicEncodingFailed, "terminal").Inc()
		return nil
	}

	o.invalidateView(ctx, event.AudioID)
	o.log.WithAudioID(event.AudioID).Warnf("Encoding failed: %s", event.ErrorMessage)
	metrics.EventsProcessedTotal.WithLabelValues(queue.TopicEncodingFailed, "applied").Inc()
	metrics.StatusTransitionsTotal.WithLabelValues(models.StatusFailedEncoding).Inc()
	return nil
}

// fetch loads the record for a result event. An unknown identifier is an
// orphan: dropped with a warning, (nil, nil). Store failures propagate so
// the bus redelivers.
func (o *Orchestrator) fetch(ctx context.Context, topic, audioID string) (*models.AudioItem, error) {
	item, err := o.store.GetAudio(ctx, audioID)
	if err == nil {
		return item, nil
	}
	if isNotFound(err) {
		o.log.WithAudioID(audioID).Warnf("Dropping %s for unknown audio item", topic)
		metrics.EventsProcessedTotal.WithLabelValues(topic, "orphan").Inc()
		return nil, nil
	}
	return nil, fmt.Errorf("failed to load status record: %w", err)
}

func (o *Orchestrator) invalidateView(ctx context.Context, audioID string) {
	if o.views == nil {
		return
	}
	if err := o.views.DeleteStatusView(ctx, audioID); err != nil {
		o.log.WithAudioID(audioID).WithError(err).Warn("Failed to invalidate cached status view")
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}
