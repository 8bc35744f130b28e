package upload

import (
	"context"
	"fmt"

	"go-talk/internal/apperr"
	"go-talk/internal/db"
)

type FileRepository struct {
	db db.Pool
}

func NewFileRepository(pool db.Pool) *FileRepository {
	return &FileRepository{db: pool}
}

func (r *FileRepository) SaveFile(ctx context.Context, f *FileRecord) error {
	const q = `INSERT INTO files (id, owner_id, original_name, size, mime_type, storage_key, url, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, q, f.ID, f.OwnerID, f.Name, f.Size, f.MimeType, f.StorageKey, f.URL, f.CreatedAt)
	switch {
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%w: file %s", apperr.ErrConflict, f.ID)
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: owner", apperr.ErrNotFound)
	case err != nil:
		return fmt.Errorf("%w: save file: %v", apperr.ErrUpstream, err)
	}
	return nil
}

func (r *FileRepository) GetFile(ctx context.Context, id string) (*FileRecord, error) {
	const q = `SELECT id, owner_id, original_name, size, mime_type, storage_key, url, created_at FROM files WHERE id = $1`
	f := &FileRecord{}
	err := r.db.QueryRow(ctx, q, id).Scan(&f.ID, &f.OwnerID, &f.Name, &f.Size, &f.MimeType, &f.StorageKey, &f.URL, &f.CreatedAt)
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("%w: file", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get file: %v", apperr.ErrUpstream, err)
	}
	return f, nil
}
