package models

import (
	"time"
)

// AudioItem is the record of truth for one uploaded audio file's lifecycle.
type AudioItem struct {
	ID               string     `json:"id" db:"id"`
	Status           string     `json:"status" db:"status"`
	OriginalFileName string     `json:"original_file_name" db:"original_file_name"`
	RawFilePath      string     `json:"raw_file_path" db:"raw_file_path"`
	ManifestPath     string     `json:"manifest_path,omitempty" db:"manifest_path"`
	SegmentBasePath  string     `json:"segment_base_path,omitempty" db:"segment_base_path"`
	RawFileFormat    string     `json:"raw_file_format,omitempty" db:"raw_file_format"`
	RawFileSize      int64      `json:"raw_file_size,omitempty" db:"raw_file_size"`
	DurationMillis   *int64     `json:"duration_millis,omitempty" db:"duration_millis"`
	Codec            string     `json:"codec,omitempty" db:"codec"`
	BitratesKbps     []int32    `json:"bitrates_kbps,omitempty" db:"bitrates_kbps"`
	EncodedAt        *time.Time `json:"encoded_at,omitempty" db:"encoded_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// Audio status constants
const (
	StatusPendingEncoding    = "PENDING_ENCODING"
	StatusEncodingInProgress = "ENCODING_IN_PROGRESS"
	StatusAvailable          = "AVAILABLE"
	StatusFailedEncoding     = "FAILED_ENCODING"
	StatusDeleted            = "DELETED"
)

// IsTerminalStatus reports whether a status admits no further transitions.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusAvailable, StatusFailedEncoding, StatusDeleted:
		return true
	}
	return false
}

// AudioStatusView is the external read contract for one audio item.
// Internal fields are deliberately not part of it.
type AudioStatusView struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ManifestPath string `json:"manifestPath,omitempty"`
	ManifestURL  string `json:"manifestUrl,omitempty"`
}

// View projects the item onto its external contract.
func (a *AudioItem) View() AudioStatusView {
	return AudioStatusView{
		ID:           a.ID,
		Status:       a.Status,
		ManifestPath: a.ManifestPath,
	}
}
