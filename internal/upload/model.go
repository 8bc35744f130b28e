package upload

import "time"

type Status string

const (
	StatusInitialized Status = "initialized"
	StatusInProgress  Status = "in_progress"
	StatusAssembled   Status = "assembled"
	StatusCompleted   Status = "completed"
	StatusAborted     Status = "aborted"
)

// Session tracks one multipart upload. Parts maps part number to etag; a
// re-sent part replaces its etag. An assembled session is final in object
// storage but its file record is not saved yet.
type Session struct {
	FileID     string
	OwnerID    string
	Name       string
	Size       int64
	MimeType   string
	StorageKey string
	UploadID   string
	Parts      map[int]string
	Status     Status
	URL        string
	CreatedAt  time.Time
}

func (s *Session) finished() bool {
	return s.Status != StatusInitialized && s.Status != StatusInProgress
}

// FileRecord is a completed upload.
type FileRecord struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"ownerId"`
	Name       string    `json:"fileName"`
	Size       int64     `json:"fileSize"`
	MimeType   string    `json:"mimeType"`
	StorageKey string    `json:"-"`
	URL        string    `json:"url"`
	CreatedAt  time.Time `json:"createdAt"`
}

type InitRequest struct {
	FileName string `json:"fileName" validate:"required,max=255"`
	FileSize int64  `json:"fileSize" validate:"gt=0"`
	MimeType string `json:"mimeType" validate:"max=255"`
}

type InitResult struct {
	FileID   string `json:"fileId"`
	UploadID string `json:"uploadId"`
}

type ChunkResult struct {
	ChunkNumber int     `json:"chunkNumber"`
	TotalChunks int     `json:"totalChunks"`
	Uploaded    int     `json:"uploaded"`
	Progress    float64 `json:"progress"`
}

// CompleteRequest optionally names a recipient or group to send the file to.
type CompleteRequest struct {
	FileID      string `json:"fileId" validate:"required"`
	RecipientID string `json:"recipientId,omitempty" validate:"excluded_with=GroupID"`
	GroupID     string `json:"groupId,omitempty"`
}

type CompleteResult struct {
	FileID   string `json:"fileId"`
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	MimeType string `json:"mimeType"`
}

type AbortRequest struct {
	FileID string `json:"fileId" validate:"required"`
}
