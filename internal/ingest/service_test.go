package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kibikalo/dash-streaming-microservice/internal/logging"
	"github.com/kibikalo/dash-streaming-microservice/internal/queue"
	"github.com/kibikalo/dash-streaming-microservice/pkg/models"
)

type fakeStore struct {
	mu        sync.Mutex
	uploadErr error
	staged    []string
	deleted   []string
}

func (s *fakeStore) UploadFile(ctx context.Context, bucket, object, path string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = append(s.staged, object)
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, bucket, object string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, object)
	return nil
}

func (s *fakeStore) RawBucket() string { return "raw-audio" }

type fakeBus struct {
	mu         sync.Mutex
	publishErr error
	events     []interface{}
	topics     []string
}

func (b *fakeBus) Publish(ctx context.Context, topic, audioID string, event interface{}) error {
	if b.publishErr != nil {
		return b.publishErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
	b.events = append(b.events, event)
	return nil
}

// acceptingValidator returns a validator whose probe always reports a valid
// three-minute mp3.
func acceptingValidator(t *testing.T) *Validator {
	t.Helper()
	script := filepath.Join(t.TempDir(), "fake-ffprobe")
	output := `{"format":{"format_name":"mp3","duration":"180.0","size":"1024"}}`
	require.NoError(t, os.WriteFile(script,
		[]byte("#!/bin/sh\necho '"+output+"'\n"), 0o755))

	cfg := testUploadConfig()
	cfg.FFprobePath = script
	return NewValidator(cfg)
}

func rejectingValidator(t *testing.T) *Validator {
	t.Helper()
	script := filepath.Join(t.TempDir(), "fake-ffprobe")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexit 1\n"), 0o755))

	cfg := testUploadConfig()
	cfg.FFprobePath = script
	return NewValidator(cfg)
}

func TestIngestAcceptsAndAnnounces(t *testing.T) {
	store := &fakeStore{}
	bus := &fakeBus{}
	svc := NewService(acceptingValidator(t), store, bus, logging.NewNop())

	audioID, err := svc.Ingest(context.Background(), "local.mp3", "song.mp3")
	require.NoError(t, err)

	_, err = uuid.Parse(audioID)
	assert.NoError(t, err, "assigned identifier must be a UUID")

	require.Len(t, store.staged, 1)
	assert.Equal(t, audioID+"/song.mp3", store.staged[0])

	require.Equal(t, []string{queue.TopicAudioUploaded}, bus.topics)
	event, ok := bus.events[0].(*models.AudioUploadedEvent)
	require.True(t, ok)
	assert.Equal(t, audioID, event.AudioID)
	assert.Equal(t, audioID+"/song.mp3", event.RawFilePath)
	assert.Equal(t, "song.mp3", event.OriginalFileName)
	assert.False(t, event.UploadTimestamp.IsZero())
}

func TestIngestDistinctIdentifiersPerUpload(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(acceptingValidator(t), store, &fakeBus{}, logging.NewNop())

	first, err := svc.Ingest(context.Background(), "local.mp3", "song.mp3")
	require.NoError(t, err)
	second, err := svc.Ingest(context.Background(), "local.mp3", "song.mp3")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestIngestRejectionHasNoSideEffects(t *testing.T) {
	store := &fakeStore{}
	bus := &fakeBus{}
	svc := NewService(rejectingValidator(t), store, bus, logging.NewNop())

	_, err := svc.Ingest(context.Background(), "garbage.bin", "garbage.bin")
	require.Error(t, err)

	var vErr *ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Empty(t, store.staged)
	assert.Empty(t, bus.topics)
}

func TestIngestPublishFailureUnstages(t *testing.T) {
	store := &fakeStore{}
	bus := &fakeBus{publishErr: errors.New("bus unavailable")}
	svc := NewService(acceptingValidator(t), store, bus, logging.NewNop())

	_, err := svc.Ingest(context.Background(), "local.mp3", "song.mp3")
	require.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "invalid audio upload"),
		"an infrastructure failure is not a validation error")

	require.Len(t, store.staged, 1)
	assert.Equal(t, store.staged, store.deleted,
		"the staged object must be removed when the announcement fails")
}

func TestIngestStagingFailure(t *testing.T) {
	store := &fakeStore{uploadErr: errors.New("storage unavailable")}
	bus := &fakeBus{}
	svc := NewService(acceptingValidator(t), store, bus, logging.NewNop())

	_, err := svc.Ingest(context.Background(), "local.mp3", "song.mp3")
	require.Error(t, err)
	assert.Empty(t, bus.topics, "nothing may be announced without staged bytes")
}
