package repository

import (
	"context"
	"errors"

	"MusicPro/model"
)

var (
	// ErrNotFound is returned when no record exists for the given filename.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned when inserting a filename that is already present.
	ErrDuplicateKey = errors.New("duplicate filename")
	// ErrUnavailable is returned when the backing store cannot be reached.
	ErrUnavailable = errors.New("metadata store unavailable")
)

// RecordUpdate carries the fields that may be merged into an existing
// record. Nil fields are left untouched; the owner and size of a record
// are immutable and therefore not represented here.
type RecordUpdate struct {
	CoverURL  *string
	LyricsURL *string
}

// UploadStore is the durable mapping from filename to UploadRecord.
// Implementations must serialize mutations for the same key; readers may
// observe pre- or post-mutation state but never a torn record.
type UploadStore interface {
	Insert(ctx context.Context, rec *model.UploadRecord) error
	Get(ctx context.Context, filename string) (*model.UploadRecord, error)
	Update(ctx context.Context, filename string, upd RecordUpdate) (*model.UploadRecord, error)
	Remove(ctx context.Context, filename string) error
	List(ctx context.Context) ([]*model.UploadRecord, error)
}

// UnavailableStore stands in when the configured backend could not be
// initialized. Every operation fails with ErrUnavailable so the process
// keeps serving static content instead of terminating.
type UnavailableStore struct{}

func (UnavailableStore) Insert(ctx context.Context, rec *model.UploadRecord) error {
	return ErrUnavailable
}

func (UnavailableStore) Get(ctx context.Context, filename string) (*model.UploadRecord, error) {
	return nil, ErrUnavailable
}

func (UnavailableStore) Update(ctx context.Context, filename string, upd RecordUpdate) (*model.UploadRecord, error) {
	return nil, ErrUnavailable
}

func (UnavailableStore) Remove(ctx context.Context, filename string) error {
	return ErrUnavailable
}

func (UnavailableStore) List(ctx context.Context) ([]*model.UploadRecord, error) {
	return nil, ErrUnavailable
}
