// Package files stores user uploads on local disk and their metadata in
// the file store. Size and content type are computed server-side; the
// values a client declares are ignored.
package files

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotFound = errors.New("files: not found")
	ErrTooLarge = errors.New("files: upload exceeds size limit")
)

// FileUpload is the metadata row for one stored file. FileName is the
// server-assigned name on disk; OriginalName is what the client sent.
type FileUpload struct {
	ID            string    `json:"id"`
	OrgID         string    `json:"orgId"`
	UploadedBy    string    `json:"uploadedBy"`
	FileName      string    `json:"fileName"`
	OriginalName  string    `json:"originalName"`
	ContentType   string    `json:"contentType"`
	SizeBytes     int64     `json:"sizeBytes"`
	Checksum      string    `json:"checksum"`
	IsPublic      bool      `json:"isPublic"`
	DownloadCount int64     `json:"downloadCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Filter narrows file listings.
type Filter struct {
	Query             string // original name substring
	ContentTypePrefix string
	IsPublic          *bool
	Limit             int
	Offset            int
}
