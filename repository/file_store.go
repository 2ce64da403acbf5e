package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"MusicPro/model"
)

// FileStore keeps all records in a single JSON array file. Every mutation
// re-serializes the full record set and atomically replaces the file via
// write-to-temp-then-rename, so a crash mid-write cannot corrupt the store.
// A process-wide mutex makes it single-writer; two separate processes
// racing on the rename degrade to last-writer-wins, which is an accepted
// limitation of this backend.
type FileStore struct {
	path string

	mu      sync.RWMutex
	records []*model.UploadRecord
}

// NewFileStore opens (or creates) the JSON store at path.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.records = []*model.UploadRecord{}
			return nil
		}
		return fmt.Errorf("failed to read metadata file %s: %w", s.path, err)
	}
	var records []*model.UploadRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to parse metadata file %s: %w", s.path, err)
	}
	s.records = records
	return nil
}

// persist serializes the full record set and atomically replaces the file.
// Callers must hold the write lock.
func (s *FileStore) persist() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp metadata file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace metadata file: %w", err)
	}
	return nil
}

func (s *FileStore) indexOf(filename string) int {
	for i, rec := range s.records {
		if rec.Filename == filename {
			return i
		}
	}
	return -1
}

// Insert adds a new record, rejecting duplicate filenames.
func (s *FileStore) Insert(ctx context.Context, rec *model.UploadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(rec.Filename) >= 0 {
		return fmt.Errorf("insert %q: %w", rec.Filename, ErrDuplicateKey)
	}

	clone := *rec
	s.records = append(s.records, &clone)
	if err := s.persist(); err != nil {
		// Roll the in-memory state back so memory and disk agree.
		s.records = s.records[:len(s.records)-1]
		return err
	}
	return nil
}

// Get returns a copy of the record for filename.
func (s *FileStore) Get(ctx context.Context, filename string) (*model.UploadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(filename)
	if i < 0 {
		return nil, fmt.Errorf("get %q: %w", filename, ErrNotFound)
	}
	clone := *s.records[i]
	return &clone, nil
}

// Update merges the given fields into an existing record. Unset fields
// are never cleared.
func (s *FileStore) Update(ctx context.Context, filename string, upd RecordUpdate) (*model.UploadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(filename)
	if i < 0 {
		return nil, fmt.Errorf("update %q: %w", filename, ErrNotFound)
	}

	prev := *s.records[i]
	if upd.CoverURL != nil {
		s.records[i].CoverURL = *upd.CoverURL
	}
	if upd.LyricsURL != nil {
		s.records[i].LyricsURL = *upd.LyricsURL
	}

	if err := s.persist(); err != nil {
		*s.records[i] = prev
		return nil, err
	}
	clone := *s.records[i]
	return &clone, nil
}

// Remove deletes the record for filename.
func (s *FileStore) Remove(ctx context.Context, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(filename)
	if i < 0 {
		return fmt.Errorf("remove %q: %w", filename, ErrNotFound)
	}

	removed := s.records[i]
	s.records = append(s.records[:i], s.records[i+1:]...)
	if err := s.persist(); err != nil {
		s.records = append(s.records[:i], append([]*model.UploadRecord{removed}, s.records[i:]...)...)
		return err
	}
	return nil
}

// List returns copies of all records.
func (s *FileStore) List(ctx context.Context) ([]*model.UploadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.UploadRecord, 0, len(s.records))
	for _, rec := range s.records {
		clone := *rec
		out = append(out, &clone)
	}
	return out, nil
}
