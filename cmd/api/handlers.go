package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kibikalo/dash-streaming-microservice/internal/database"
	"github.com/kibikalo/dash-streaming-microservice/internal/ingest"
	"github.com/kibikalo/dash-streaming-microservice/internal/metrics"
	"github.com/kibikalo/dash-streaming-microservice/internal/tracing"
	"github.com/kibikalo/dash-streaming-microservice/pkg/models"
)

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := api.repo.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// Upload endpoint: validates, stages and announces one audio file.
func (api *API) uploadAudio(c *gin.Context) {
	span, ctx := tracing.StartSpan(c.Request.Context(), "api.upload_audio")
	defer span.Finish()

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No audio file provided"})
		return
	}

	tempPath := fmt.Sprintf("%s/upload-%s", os.TempDir(), uuid.New().String())
	if err := c.SaveUploadedFile(file, tempPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
		return
	}
	defer os.Remove(tempPath)

	audioID, err := api.ingest.Ingest(ctx, tempPath, file.Filename)
	if err != nil {
		var vErr *ingest.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Reason})
			return
		}
		tracing.LogError(span, err)
		api.logger.WithError(err).Error("Upload ingestion failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process upload"})
		return
	}

	tracing.SetTag(span, "audio_id", audioID)
	c.JSON(http.StatusAccepted, gin.H{
		"id":     audioID,
		"status": models.StatusPendingEncoding,
	})
}

// Status endpoint: the only externally observed pipeline surface. Unknown
// identifiers are a normal NotFound, distinguishable from infrastructure
// trouble (503).
func (api *API) getStatus(c *gin.Context) {
	audioID := c.Param("audioId")
	span, ctx := tracing.StartSpan(c.Request.Context(), "api.get_status")
	defer span.Finish()
	tracing.SetTag(span, "audio_id", audioID)

	if view, err := api.cache.GetStatusView(ctx, audioID); err == nil && view != nil {
		metrics.StatusCacheHitsTotal.WithLabelValues("hit").Inc()
		metrics.StatusLookupsTotal.WithLabelValues("found").Inc()
		c.JSON(http.StatusOK, view)
		return
	}
	metrics.StatusCacheHitsTotal.WithLabelValues("miss").Inc()

	item, err := api.repo.GetAudio(ctx, audioID)
	if errors.Is(err, database.ErrNotFound) {
		metrics.StatusLookupsTotal.WithLabelValues("not_found").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "Audio item not found"})
		return
	}
	if err != nil {
		tracing.LogError(span, err)
		api.logger.WithError(err).Error("Status lookup failed")
		metrics.StatusLookupsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Status store unavailable"})
		return
	}

	view := item.View()
	if item.Status == models.StatusAvailable && item.ManifestPath != "" {
		url, err := api.storage.PresignedURL(ctx, api.storage.ProcessedBucket(), item.ManifestPath)
		if err != nil {
			api.logger.WithError(err).Warn("Failed to presign manifest URL")
		} else {
			view.ManifestURL = url
		}
	}

	if err := api.cache.SetStatusView(ctx, view); err != nil {
		api.logger.WithError(err).Warn("Failed to cache status view")
	}

	metrics.StatusLookupsTotal.WithLabelValues("found").Inc()
	c.JSON(http.StatusOK, view)
}

// List endpoint: read-only, paginated.
func (api *API) listAudio(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	items, err := api.repo.ListAudio(c.Request.Context(), limit, offset)
	if err != nil {
		api.logger.WithError(err).Error("Audio listing failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Status store unavailable"})
		return
	}

	views := make([]models.AudioStatusView, 0, len(items))
	for _, item := range items {
		views = append(views, item.View())
	}

	c.JSON(http.StatusOK, gin.H{
		"items":  views,
		"limit":  limit,
		"offset": offset,
	})
}
