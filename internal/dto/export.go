package dto

import "time"

// ExportRequest asks for a request-register export artifact.
type ExportRequest struct {
	Format string `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportResult points the caller at the generated artifact.
type ExportResult struct {
	ExportID      string    `json:"export_id"`
	Format        string    `json:"format"`
	DownloadToken string    `json:"download_token"`
	ExpiresAt     time.Time `json:"expires_at"`
}
