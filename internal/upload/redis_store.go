package upload

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"go-talk/internal/apperr"
)

// completedTTL bounds how long a finished session lingers to reject late chunks.
const completedTTL = 24 * time.Hour

// RedisStore keeps each session in two hashes: upload:{id} for the metadata
// and upload:{id}:parts mapping part number to etag.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func sessionKey(fileID string) string { return "upload:" + fileID }
func partsKey(fileID string) string   { return "upload:" + fileID + ":parts" }

func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	created, err := r.rdb.HSetNX(ctx, sessionKey(s.FileID), "file_id", s.FileID).Result()
	if err != nil {
		return fmt.Errorf("%w: create upload session: %v", apperr.ErrUpstream, err)
	}
	if !created {
		return fmt.Errorf("%w: upload session %s", apperr.ErrConflict, s.FileID)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, sessionKey(s.FileID), map[string]any{
			"owner_id":    s.OwnerID,
			"name":        s.Name,
			"size":        s.Size,
			"mime_type":   s.MimeType,
			"storage_key": s.StorageKey,
			"upload_id":   s.UploadID,
			"status":      string(s.Status),
			"url":         s.URL,
			"created_at":  s.CreatedAt.Format(time.RFC3339Nano),
		})
		for n, etag := range s.Parts {
			pipe.HSet(ctx, partsKey(s.FileID), strconv.Itoa(n), etag)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: create upload session: %v", apperr.ErrUpstream, err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, fileID string) (*Session, error) {
	meta, err := r.rdb.HGetAll(ctx, sessionKey(fileID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: get upload session: %v", apperr.ErrUpstream, err)
	}
	if len(meta) == 0 {
		return nil, errSessionNotFound
	}
	rawParts, err := r.rdb.HGetAll(ctx, partsKey(fileID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: get upload parts: %v", apperr.ErrUpstream, err)
	}

	size, err := strconv.ParseInt(meta["size"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt upload session %s: size: %v", apperr.ErrUpstream, fileID, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, meta["created_at"])
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt upload session %s: created_at: %v", apperr.ErrUpstream, fileID, err)
	}

	parts := make(map[int]string, len(rawParts))
	for k, etag := range rawParts {
		n, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("%w: corrupt upload session %s: part %q", apperr.ErrUpstream, fileID, k)
		}
		parts[n] = etag
	}

	return &Session{
		FileID:     fileID,
		OwnerID:    meta["owner_id"],
		Name:       meta["name"],
		Size:       size,
		MimeType:   meta["mime_type"],
		StorageKey: meta["storage_key"],
		UploadID:   meta["upload_id"],
		Parts:      parts,
		Status:     Status(meta["status"]),
		URL:        meta["url"],
		CreatedAt:  createdAt,
	}, nil
}

func (r *RedisStore) Update(ctx context.Context, s *Session) error {
	key := sessionKey(s.FileID)
	exists, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: update upload session: %v", apperr.ErrUpstream, err)
	}
	if exists == 0 {
		return errSessionNotFound
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "status", string(s.Status), "mime_type", s.MimeType, "url", s.URL)
		if s.Status == StatusCompleted {
			pipe.Expire(ctx, key, completedTTL)
			pipe.Expire(ctx, partsKey(s.FileID), completedTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: update upload session: %v", apperr.ErrUpstream, err)
	}
	return nil
}

func (r *RedisStore) PutPart(ctx context.Context, fileID string, number int, etag string) error {
	if err := r.rdb.HSet(ctx, partsKey(fileID), strconv.Itoa(number), etag).Err(); err != nil {
		return fmt.Errorf("%w: put upload part: %v", apperr.ErrUpstream, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, fileID string) error {
	if err := r.rdb.Del(ctx, sessionKey(fileID), partsKey(fileID)).Err(); err != nil {
		return fmt.Errorf("%w: delete upload session: %v", apperr.ErrUpstream, err)
	}
	return nil
}
