// internal/models/models.go
package models

import "time"

type Status string

const (
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// Thumbnail size names as stored in Image.Thumbnails.
const (
	ThumbSmall  = "small"
	ThumbMedium = "medium"
)

// Metadata is the bundle produced by artifact generation. It is either
// fully present (status success) or absent, never partial.
type Metadata struct {
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	Format       string            `json:"format"`
	SizeBytes    int64             `json:"size_bytes"`
	FileDatetime time.Time         `json:"file_datetime"`
	Exif         map[string]string `json:"exif,omitempty"`
}

type Image struct {
	ID           int64
	OriginalName string
	StoredPath   string
	Status       Status
	Metadata     *Metadata
	Thumbnails   map[string]string
	Caption      *string
	ErrorMessage *string
	CreatedAt    time.Time
	ProcessedAt  *time.Time
}

// Job is the queued unit of work. It carries just enough to process one
// image record; SubmittedAt exists for queue latency diagnostics only.
type Job struct {
	ImageID      int64
	StoredPath   string
	OriginalName string
	SubmittedAt  time.Time
}

// Stats is derived from the full record set on every request, never from
// running counters.
type Stats struct {
	TotalImages                  int     `json:"total_images"`
	Successful                   int     `json:"successful"`
	Failed                       int     `json:"failed"`
	Processing                   int     `json:"processing"`
	SuccessRate                  float64 `json:"success_rate"`
	AverageProcessingTimeSeconds float64 `json:"average_processing_time_seconds"`
}
