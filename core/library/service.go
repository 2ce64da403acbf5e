package library

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"MusicPro/core/auth"
	"MusicPro/logger"
	"MusicPro/model"
	"MusicPro/repository"
	"MusicPro/storage"
)

// Service orchestrates uploads, listing and deletion on top of the
// metadata store, the blob store and the configured authorizer.
type Service struct {
	store      repository.UploadStore
	blobs      storage.BlobStore
	authorizer auth.Authorizer

	// reconcile makes List surface blobs that have no metadata record
	// (possible when the filesystem and the store diverge out-of-band).
	reconcile bool
}

// NewService wires a Service.
func NewService(store repository.UploadStore, blobs storage.BlobStore, authorizer auth.Authorizer, reconcile bool) *Service {
	return &Service{
		store:      store,
		blobs:      blobs,
		authorizer: authorizer,
		reconcile:  reconcile,
	}
}

// UploadInput is one received file, already validated at the boundary
// (MIME prefix, size ceiling).
type UploadInput struct {
	OriginalName string
	Size         int64
	ContentType  string
	Data         io.Reader
}

// UploadedFile is the per-file success payload. DeleteToken is only set
// under the token strategy and only appears in the upload response.
type UploadedFile struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
	URL          string    `json:"url"`
	UploadedAt   time.Time `json:"uploadedAt"`
	DeleteToken  string    `json:"deleteToken,omitempty"`
}

// UploadOutcome is the per-file result of a batch upload. Files already
// committed stay committed when a later file fails.
type UploadOutcome struct {
	File *UploadedFile
	Err  error
}

var slugStrip = regexp.MustCompile(`[^a-z0-9.-]`)
var slugDashes = regexp.MustCompile(`-+`)

// slugify normalizes a name the way the web UI expects: lowercase,
// spaces to dashes, everything else outside [a-z0-9.-] dropped.
func slugify(name string) string {
	s := strings.ToLower(name)
	s = strings.Join(strings.Fields(s), "-")
	s = slugStrip.ReplaceAllString(s, "")
	s = slugDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// deriveFilename builds the unique storage name: slug of the original
// base name plus a millisecond timestamp suffix, extension preserved.
// extra disambiguates retries after a timestamp collision.
func deriveFilename(originalName, extra string) string {
	ext := path.Ext(originalName)
	base := slugify(strings.TrimSuffix(path.Base(originalName), ext))
	if base == "" {
		base = "audio"
	}
	return fmt.Sprintf("%s-%d%s%s", base, time.Now().UnixMilli(), extra, ext)
}

func uniqueSuffix() string {
	b := make([]byte, 4)
	rand.Read(b)
	return "-" + hex.EncodeToString(b)
}

// Upload stores one file: bytes to blob storage, then the metadata record
// with ownership attached per the active strategy. Nothing is registered
// unless both writes complete; a failed record insert removes the blob
// again so store and storage do not diverge.
func (s *Service) Upload(ctx context.Context, creds auth.Credentials, in UploadInput) (*UploadedFile, error) {
	rec := &model.UploadRecord{
		OriginalName: in.OriginalName,
		Size:         in.Size,
		UploadedAt:   time.Now().UTC(),
	}

	secret, err := s.authorizer.AttachOwner(creds, rec)
	if err != nil {
		return nil, err
	}

	// Reserve the filename first: the store rejects duplicates, so two
	// uploads of the same name on the same millisecond cannot collide.
	// Retries disambiguate with a random suffix.
	for attempt := 0; ; attempt++ {
		extra := ""
		if attempt > 0 {
			extra = uniqueSuffix()
		}
		rec.Filename = deriveFilename(in.OriginalName, extra)
		rec.URL = "/uploads/" + rec.Filename

		err := s.store.Insert(ctx, rec)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrDuplicateKey) && attempt < 2 {
			continue
		}
		return nil, err
	}

	// Bytes after the record: a failed write rolls the reservation back
	// so the store never keeps a record with no file behind it.
	if err := s.blobs.Save(ctx, rec.Filename, in.Data, in.Size, in.ContentType); err != nil {
		if removeErr := s.store.Remove(ctx, rec.Filename); removeErr != nil {
			logger.Error("failed to roll back record after blob write failure",
				logger.String("filename", rec.Filename),
				logger.ErrorField(removeErr))
		}
		return nil, fmt.Errorf("failed to store file bytes: %w", err)
	}

	logger.Info("file uploaded",
		logger.String("filename", rec.Filename),
		logger.String("originalName", rec.OriginalName),
		logger.Int64("size", rec.Size),
		logger.Int64("ownerId", rec.OwnerID))

	return &UploadedFile{
		Filename:     rec.Filename,
		OriginalName: rec.OriginalName,
		Size:         rec.Size,
		URL:          rec.URL,
		UploadedAt:   rec.UploadedAt,
		DeleteToken:  secret,
	}, nil
}

// UploadAll processes a batch per-file: each file is attempted exactly
// once and earlier successes are never rolled back by later failures.
func (s *Service) UploadAll(ctx context.Context, creds auth.Credentials, ins []UploadInput) []UploadOutcome {
	outcomes := make([]UploadOutcome, 0, len(ins))
	for _, in := range ins {
		file, err := s.Upload(ctx, creds, in)
		outcomes = append(outcomes, UploadOutcome{File: file, Err: err})
	}
	return outcomes
}

// List returns the public view of every record. Secret hashes never
// appear: SongView has no field for them. When reconciliation is on,
// blobs with no record are listed with zero ownership — visible to all,
// deletable by no one.
func (s *Service) List(ctx context.Context, creds auth.Credentials) ([]model.SongView, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]model.SongView, 0, len(records))
	known := make(map[string]bool, len(records))
	for _, rec := range records {
		known[rec.Filename] = true
		view := rec.View()
		view.Mine = creds.UserID != 0 && rec.OwnerID == creds.UserID
		views = append(views, view)
	}

	if s.reconcile {
		names, err := s.blobs.ListAudio(ctx)
		if err != nil {
			logger.Warn("failed to reconcile storage against metadata", logger.ErrorField(err))
			return views, nil
		}
		for _, name := range names {
			if known[name] {
				continue
			}
			views = append(views, model.SongView{
				Filename: name,
				URL:      "/uploads/" + name,
			})
		}
	}

	return views, nil
}

// Delete authorizes and removes a file, its attached assets and its
// record, in that order. A blob that is already gone is treated as
// deleted; a record removal failure after the blobs went away surfaces
// as an error because the store is now inconsistent.
func (s *Service) Delete(ctx context.Context, creds auth.Credentials, filename string) error {
	rec, err := s.store.Get(ctx, filename)
	if err != nil {
		return err
	}

	if err := s.authorizer.AuthorizeDelete(creds, rec); err != nil {
		return err
	}

	s.removeBlob(ctx, rec.Filename)
	if rec.CoverURL != "" {
		s.removeBlob(ctx, "covers/"+path.Base(rec.CoverURL))
	}
	if rec.LyricsURL != "" {
		s.removeBlob(ctx, "lyrics/"+path.Base(rec.LyricsURL))
	}

	if err := s.store.Remove(ctx, filename); err != nil {
		logger.Error("metadata removal failed after physical delete",
			logger.String("filename", filename),
			logger.ErrorField(err))
		return fmt.Errorf("failed to remove metadata for %q: %w", filename, err)
	}

	logger.Info("file deleted", logger.String("filename", filename))
	return nil
}

func (s *Service) removeBlob(ctx context.Context, name string) {
	if err := s.blobs.Remove(ctx, name); err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			// Already gone; keep going so the record does not linger.
			return
		}
		logger.Warn("failed to remove blob", logger.String("name", name), logger.ErrorField(err))
	}
}

// AttachCover stores a cover image for an existing record and merges the
// cover URL into its metadata.
func (s *Service) AttachCover(ctx context.Context, filename string, in UploadInput) (*model.UploadRecord, error) {
	if _, err := s.store.Get(ctx, filename); err != nil {
		return nil, err
	}

	ext := path.Ext(in.OriginalName)
	if ext == "" {
		ext = ".jpg"
	}
	coverName := strings.TrimSuffix(filename, path.Ext(filename)) + ext
	if err := s.blobs.Save(ctx, "covers/"+coverName, in.Data, in.Size, in.ContentType); err != nil {
		return nil, fmt.Errorf("failed to store cover: %w", err)
	}

	coverURL := "/uploads/covers/" + coverName
	return s.store.Update(ctx, filename, repository.RecordUpdate{CoverURL: &coverURL})
}

// AttachLyrics stores lyrics content (from an uploaded .lrc/.txt file or
// raw text) for an existing record.
func (s *Service) AttachLyrics(ctx context.Context, filename, ext string, content []byte) (*model.UploadRecord, error) {
	if _, err := s.store.Get(ctx, filename); err != nil {
		return nil, err
	}

	if ext != ".lrc" {
		ext = ".txt"
	}
	lyricsName := strings.TrimSuffix(filename, path.Ext(filename)) + ext
	if err := s.blobs.Save(ctx, "lyrics/"+lyricsName, bytes.NewReader(content), int64(len(content)), "text/plain; charset=utf-8"); err != nil {
		return nil, fmt.Errorf("failed to store lyrics: %w", err)
	}

	lyricsURL := "/uploads/lyrics/" + lyricsName
	return s.store.Update(ctx, filename, repository.RecordUpdate{LyricsURL: &lyricsURL})
}

// Lyrics returns the stored lyrics content and its type ("lrc" or "txt").
func (s *Service) Lyrics(ctx context.Context, lyricsFilename string) (string, string, error) {
	rc, err := s.blobs.Open(ctx, "lyrics/"+path.Base(lyricsFilename))
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return "", "", repository.ErrNotFound
		}
		return "", "", err
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return "", "", fmt.Errorf("failed to read lyrics: %w", err)
	}

	typ := "txt"
	if strings.EqualFold(path.Ext(lyricsFilename), ".lrc") {
		typ = "lrc"
	}
	return typ, string(content), nil
}
