package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kibikalo/dash-streaming-microservice/pkg/models"
)

// ErrNotFound is returned when no record exists for an identifier. Callers
// must be able to distinguish it from infrastructure failures.
var ErrNotFound = errors.New("audio item not found")

const audioColumns = `id, status, original_file_name, raw_file_path, manifest_path,
	       segment_base_path, raw_file_format, raw_file_size, duration_millis,
	       codec, bitrates_kbps, encoded_at, created_at, updated_at`

// Repository is the status store. All writes go through the orchestrator;
// every operation is a single-record read or upsert.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CreateAudioIfAbsent inserts a new audio record unless one already exists
// for the identifier. It reports whether the record was created, making
// duplicate upload events a detectable no-op.
func (r *Repository) CreateAudioIfAbsent(ctx context.Context, item *models.AudioItem) (bool, error) {
	query := `
		INSERT INTO audio_items (id, status, original_file_name, raw_file_path)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		item.ID, item.Status, item.OriginalFileName, item.RawFilePath,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create audio item: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// GetAudio retrieves an audio item by ID
func (r *Repository) GetAudio(ctx context.Context, id string) (*models.AudioItem, error) {
	var item models.AudioItem

	query := `SELECT ` + audioColumns + ` FROM audio_items WHERE id = $1`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&item.ID, &item.Status, &item.OriginalFileName, &item.RawFilePath,
		&item.ManifestPath, &item.SegmentBasePath, &item.RawFileFormat,
		&item.RawFileSize, &item.DurationMillis, &item.Codec,
		&item.BitratesKbps, &item.EncodedAt, &item.CreatedAt, &item.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audio item: %w", err)
	}

	return &item, nil
}

// UpdateAudio replaces the mutable fields of an audio record. The terminal
// guard lives in the statement itself so two writers racing on the same
// record cannot both move it: once a row is terminal, no update touches it.
// It reports whether the update was applied; false means the record is
// missing or already terminal.
func (r *Repository) UpdateAudio(ctx context.Context, item *models.AudioItem) (bool, error) {
	query := `
		UPDATE audio_items
		SET status = $2, manifest_path = $3, segment_base_path = $4,
		    raw_file_format = $5, raw_file_size = $6, duration_millis = $7,
		    codec = $8, bitrates_kbps = $9, encoded_at = $10, updated_at = now()
		WHERE id = $1
		  AND status NOT IN ('AVAILABLE', 'FAILED_ENCODING', 'DELETED')
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		item.ID, item.Status, item.ManifestPath, item.SegmentBasePath,
		item.RawFileFormat, item.RawFileSize, item.DurationMillis,
		item.Codec, item.BitratesKbps, item.EncodedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update audio item: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// DeleteAudio removes a record outright. Used to roll back a creation whose
// paired encoding.requested emission could not be published, so the
// create-and-emit unit either fully happens or fully doesn't.
func (r *Repository) DeleteAudio(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM audio_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete audio item: %w", err)
	}
	return nil
}

// AudioExists reports whether a record exists for the identifier
func (r *Repository) AudioExists(ctx context.Context, id string) (bool, error) {
	var exists bool

	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM audio_items WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check audio existence: %w", err)
	}

	return exists, nil
}

// ListAudio retrieves audio items ordered by creation time
func (r *Repository) ListAudio(ctx context.Context, limit, offset int) ([]*models.AudioItem, error) {
	query := `SELECT ` + audioColumns + `
		FROM audio_items
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audio items: %w", err)
	}
	defer rows.Close()

	var items []*models.AudioItem
	for rows.Next() {
		var item models.AudioItem
		err := rows.Scan(
			&item.ID, &item.Status, &item.OriginalFileName, &item.RawFilePath,
			&item.ManifestPath, &item.SegmentBasePath, &item.RawFileFormat,
			&item.RawFileSize, &item.DurationMillis, &item.Codec,
			&item.BitratesKbps, &item.EncodedAt, &item.CreatedAt, &item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audio item: %w", err)
		}
		items = append(items, &item)
	}

	return items, nil
}

// Health checks database connectivity
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}
