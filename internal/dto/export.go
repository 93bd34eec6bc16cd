package dto

import "github.com/noah-isme/notebook-tracker-api/pkg/export"

// ExportResult is a rendered report ready to be sent as an attachment.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
	Format      export.Format
}
