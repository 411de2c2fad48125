package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Document is an ingested repair guide or blog post awaiting (or done with)
// chunking and indexing. Writes happen only through the ingest pipeline; the
// retrieval path is read-only.
type Document struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Category    string         `json:"category"`
	URL         string         `json:"url,omitempty"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
