package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kibikalo/dash-streaming-microservice/pkg/models"
)

func testCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewWithClient(client, 30*time.Second)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestStatusViewRoundTrip(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	view := models.AudioStatusView{
		ID:           "abc-123",
		Status:       models.StatusAvailable,
		ManifestPath: "processed-audio/abc-123/manifest.mpd",
		ManifestURL:  "https://example.com/manifest.mpd?sig=x",
	}
	require.NoError(t, c.SetStatusView(ctx, view))

	got, err := c.GetStatusView(ctx, "abc-123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, view, *got)
}

func TestGetStatusViewMiss(t *testing.T) {
	c, _ := testCache(t)

	got, err := c.GetStatusView(context.Background(), "nobody")
	require.NoError(t, err, "a miss is not an error")
	assert.Nil(t, got)
}

func TestStatusViewExpires(t *testing.T) {
	c, mr := testCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetStatusView(ctx, models.AudioStatusView{
		ID:     "abc-123",
		Status: models.StatusPendingEncoding,
	}))

	mr.FastForward(time.Minute)

	got, err := c.GetStatusView(ctx, "abc-123")
	require.NoError(t, err)
	assert.Nil(t, got, "views must expire with the TTL")
}

func TestDeleteStatusView(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetStatusView(ctx, models.AudioStatusView{
		ID:     "abc-123",
		Status: models.StatusPendingEncoding,
	}))
	require.NoError(t, c.DeleteStatusView(ctx, "abc-123"))

	got, err := c.GetStatusView(ctx, "abc-123")
	require.NoError(t, err)
	assert.Nil(t, got)
}
