package upload

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"go-talk/internal/apperr"
	"go-talk/internal/httpx"
	"go-talk/internal/keylock"
	"go-talk/internal/storage"
)

const genericMIME = "application/octet-stream"

type Options struct {
	DownloadURLTTL time.Duration
}

// Coordinator drives multipart uploads: initialize, accept chunks in any
// order, complete or abort. Work on one file id is serialized; different
// files never contend.
type Coordinator struct {
	storage  ObjectStorage
	sessions Store
	files    FileStore
	log      *zap.Logger
	opts     Options
	locks    *keylock.Mutex

	now   func() time.Time
	newID func() string
}

func NewCoordinator(objects ObjectStorage, sessions Store, files FileStore, log *zap.Logger, opts Options) *Coordinator {
	return &Coordinator{
		storage:  objects,
		sessions: sessions,
		files:    files,
		log:      log,
		opts:     opts,
		locks:    keylock.New(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Initialize opens a multipart upload and records its session.
func (c *Coordinator) Initialize(ctx context.Context, ownerID string, req InitRequest) (*InitResult, error) {
	if err := httpx.Validate(&req); err != nil {
		return nil, err
	}

	fileID := c.newID()
	key := fmt.Sprintf("uploads/%s/%s-%s", ownerID, fileID, path.Base(req.FileName))
	mime := req.MimeType
	if mime == "" {
		mime = genericMIME
	}

	uploadID, err := c.storage.CreateMultipart(ctx, key, mime)
	if err != nil {
		return nil, err
	}

	s := &Session{
		FileID:     fileID,
		OwnerID:    ownerID,
		Name:       req.FileName,
		Size:       req.FileSize,
		MimeType:   mime,
		StorageKey: key,
		UploadID:   uploadID,
		Parts:      make(map[int]string),
		Status:     StatusInitialized,
		CreatedAt:  c.now(),
	}
	if err := c.sessions.Create(ctx, s); err != nil {
		if abortErr := c.storage.AbortMultipart(context.WithoutCancel(ctx), key, uploadID); abortErr != nil {
			c.log.Warn("abort orphaned multipart upload failed",
				zap.String("storage_key", key), zap.Error(abortErr))
		}
		return nil, err
	}

	c.log.Info("upload initialized",
		zap.String("file_id", fileID), zap.String("owner_id", ownerID), zap.Int64("size", req.FileSize))
	return &InitResult{FileID: fileID, UploadID: uploadID}, nil
}

// AcceptChunk stores one part. The object store upload runs unlocked so the
// parts of one file can upload in parallel; the session is re-checked before
// the part is recorded.
func (c *Coordinator) AcceptChunk(ctx context.Context, ownerID, fileID string, number, total int, data []byte) (*ChunkResult, error) {
	switch {
	case number < 1:
		return nil, fmt.Errorf("%w: chunkNumber must be at least 1", apperr.ErrValidation)
	case total < 1:
		return nil, fmt.Errorf("%w: totalChunks must be at least 1", apperr.ErrValidation)
	case len(data) == 0:
		return nil, fmt.Errorf("%w: empty chunk", apperr.ErrValidation)
	}

	unlock := c.locks.Lock(fileID)
	s, err := c.open(ctx, ownerID, fileID)
	unlock()
	if err != nil {
		return nil, err
	}

	etag, err := c.storage.UploadPart(ctx, s.StorageKey, s.UploadID, number, data)
	if err != nil {
		return nil, err
	}

	var sniffed string
	if number == 1 && s.MimeType == genericMIME {
		sniffed = mimetype.Detect(data).String()
	}

	unlock = c.locks.Lock(fileID)
	defer unlock()

	// An abort or complete may have landed while the part was uploading.
	s, err = c.open(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}
	if err := c.sessions.PutPart(ctx, fileID, number, etag); err != nil {
		return nil, err
	}
	s.Parts[number] = etag

	dirty := false
	if s.Status == StatusInitialized {
		s.Status = StatusInProgress
		dirty = true
	}
	if sniffed != "" && sniffed != s.MimeType {
		s.MimeType = sniffed
		dirty = true
	}
	if dirty {
		if err := c.sessions.Update(ctx, s); err != nil {
			return nil, err
		}
	}

	uploaded := len(s.Parts)
	return &ChunkResult{
		ChunkNumber: number,
		TotalChunks: total,
		Uploaded:    uploaded,
		Progress:    float64(uploaded) / float64(total) * 100,
	}, nil
}

// Complete finalizes the upload from its parts in ascending order and records
// the file. Once storage has assembled the object, a retry only saves the
// record.
func (c *Coordinator) Complete(ctx context.Context, ownerID, fileID string) (*CompleteResult, error) {
	unlock := c.locks.Lock(fileID)
	defer unlock()

	s, err := c.load(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusAssembled {
		if s.finished() {
			return nil, fmt.Errorf("%w: upload is %s", apperr.ErrValidation, s.Status)
		}
		if err := c.assemble(ctx, s); err != nil {
			return nil, err
		}
	}

	record := &FileRecord{
		ID:         s.FileID,
		OwnerID:    s.OwnerID,
		Name:       s.Name,
		Size:       s.Size,
		MimeType:   s.MimeType,
		StorageKey: s.StorageKey,
		URL:        s.URL,
		CreatedAt:  c.now(),
	}
	// A conflict means an earlier attempt saved the record but not the status.
	if err := c.files.SaveFile(ctx, record); err != nil && !errors.Is(err, apperr.ErrConflict) {
		return nil, err
	}

	s.Status = StatusCompleted
	if err := c.sessions.Update(ctx, s); err != nil {
		// The file is stored and recorded; only late-chunk rejection is lost.
		c.log.Warn("mark upload completed failed", zap.String("file_id", fileID), zap.Error(err))
	}

	c.log.Info("upload completed",
		zap.String("file_id", fileID), zap.Int("parts", len(s.Parts)), zap.String("mime_type", s.MimeType))
	return &CompleteResult{
		FileID:   s.FileID,
		URL:      s.URL,
		FileName: s.Name,
		FileSize: s.Size,
		MimeType: s.MimeType,
	}, nil
}

// assemble completes the multipart upload in storage and marks s assembled.
func (c *Coordinator) assemble(ctx context.Context, s *Session) error {
	if len(s.Parts) == 0 {
		return fmt.Errorf("%w: no chunks uploaded", apperr.ErrValidation)
	}

	numbers := lo.Keys(s.Parts)
	slices.Sort(numbers)
	parts := lo.Map(numbers, func(n int, _ int) storage.CompletedPart {
		return storage.CompletedPart{Number: n, ETag: s.Parts[n]}
	})

	location, err := c.storage.CompleteMultipart(ctx, s.StorageKey, s.UploadID, parts)
	if err != nil {
		return err
	}

	s.Status = StatusAssembled
	s.URL = location
	if err := c.sessions.Update(ctx, s); err != nil {
		// Saving the record below still settles the upload.
		c.log.Warn("mark upload assembled failed", zap.String("file_id", s.FileID), zap.Error(err))
	}
	return nil
}

// Abort cancels an upload and forgets it. Unknown uploads are ignored.
func (c *Coordinator) Abort(ctx context.Context, ownerID, fileID string) error {
	unlock := c.locks.Lock(fileID)
	defer unlock()

	s, err := c.sessions.Get(ctx, fileID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		return err
	}
	if s.OwnerID != ownerID {
		return nil
	}
	if s.Status == StatusCompleted || s.Status == StatusAssembled {
		return fmt.Errorf("%w: upload already completed", apperr.ErrValidation)
	}

	if s.Status != StatusAborted {
		s.Status = StatusAborted
		if err := c.sessions.Update(ctx, s); err != nil {
			return err
		}
	}
	if err := c.storage.AbortMultipart(ctx, s.StorageKey, s.UploadID); err != nil {
		// Left marked aborted so chunks stay refused and a retry can finish.
		return err
	}
	if err := c.sessions.Delete(ctx, fileID); err != nil {
		return err
	}

	c.log.Info("upload aborted", zap.String("file_id", fileID), zap.Int("parts", len(s.Parts)))
	return nil
}

// DownloadURL presigns a GET URL for a completed file.
func (c *Coordinator) DownloadURL(ctx context.Context, fileID, requesterID string) (string, error) {
	f, err := c.files.GetFile(ctx, fileID)
	if err != nil {
		return "", err
	}
	u, err := c.storage.PresignedURL(ctx, f.StorageKey, c.opts.DownloadURLTTL)
	if err != nil {
		return "", err
	}
	c.log.Debug("download url issued", zap.String("file_id", fileID), zap.String("requester_id", requesterID))
	return u, nil
}

// load returns ownerID's session. Other owners' sessions are reported as
// missing.
func (c *Coordinator) load(ctx context.Context, ownerID, fileID string) (*Session, error) {
	s, err := c.sessions.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if s.OwnerID != ownerID {
		return nil, errSessionNotFound
	}
	return s, nil
}

// open loads a session that ownerID may still write to.
func (c *Coordinator) open(ctx context.Context, ownerID, fileID string) (*Session, error) {
	s, err := c.load(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}
	if s.finished() {
		return nil, fmt.Errorf("%w: upload is %s", apperr.ErrValidation, s.Status)
	}
	return s, nil
}
