package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"MusicPro/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metadata.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	return store, path
}

func testRecord(filename string) *model.UploadRecord {
	return &model.UploadRecord{
		Filename:        filename,
		OriginalName:    "original.mp3",
		Size:            1234,
		URL:             "/uploads/" + filename,
		UploadedAt:      time.Now().UTC().Truncate(time.Second),
		DeleteTokenHash: "abc123",
	}
}

func TestFileStore_InsertAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("song-1.mp3")
	require.NoError(t, store.Insert(ctx, rec))

	got, err := store.Get(ctx, "song-1.mp3")
	require.NoError(t, err)
	assert.Equal(t, rec.Filename, got.Filename)
	assert.Equal(t, rec.Size, got.Size)
	assert.Equal(t, rec.DeleteTokenHash, got.DeleteTokenHash)
}

func TestFileStore_InsertDuplicate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testRecord("song-1.mp3")))

	err := store.Insert(ctx, testRecord("song-1.mp3"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestFileStore_GetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "nope.mp3")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_UpdateMergesFields(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testRecord("song-1.mp3")))

	cover := "/uploads/covers/song-1.jpg"
	got, err := store.Update(ctx, "song-1.mp3", RecordUpdate{CoverURL: &cover})
	require.NoError(t, err)
	assert.Equal(t, cover, got.CoverURL)
	assert.Empty(t, got.LyricsURL)

	// A later lyrics update must not clear the cover.
	lyrics := "/uploads/lyrics/song-1.txt"
	got, err = store.Update(ctx, "song-1.mp3", RecordUpdate{LyricsURL: &lyrics})
	require.NoError(t, err)
	assert.Equal(t, cover, got.CoverURL)
	assert.Equal(t, lyrics, got.LyricsURL)

	// Ownership is untouched by updates.
	assert.Equal(t, "abc123", got.DeleteTokenHash)
}

func TestFileStore_UpdateMissing(t *testing.T) {
	store, _ := newTestStore(t)

	cover := "x"
	_, err := store.Update(context.Background(), "nope.mp3", RecordUpdate{CoverURL: &cover})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_Remove(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testRecord("song-1.mp3")))
	require.NoError(t, store.Remove(ctx, "song-1.mp3"))

	_, err := store.Get(ctx, "song-1.mp3")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Remove(ctx, "song-1.mp3"), ErrNotFound)
}

func TestFileStore_ListIsStable(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testRecord("a.mp3")))
	require.NoError(t, store.Insert(ctx, testRecord("b.mp3")))

	first, err := store.List(ctx)
	require.NoError(t, err)
	second, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 2)
}

func TestFileStore_ListReturnsCopies(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testRecord("a.mp3")))

	records, err := store.List(ctx)
	require.NoError(t, err)
	records[0].CoverURL = "mutated"

	got, err := store.Get(ctx, "a.mp3")
	require.NoError(t, err)
	assert.Empty(t, got.CoverURL)
}

func TestFileStore_SurvivesReload(t *testing.T) {
	store, path := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testRecord("song-1.mp3")))
	require.NoError(t, store.Insert(ctx, testRecord("song-2.mp3")))
	require.NoError(t, store.Remove(ctx, "song-2.mp3"))

	reloaded, err := NewFileStore(path)
	require.NoError(t, err)

	records, err := reloaded.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "song-1.mp3", records[0].Filename)

	// The atomic replace must not leave its temp file behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_EmptyFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	records, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}
