package model

import "time"

// UploadRecord is the durable metadata entry for one stored audio file.
// Filename is the primary key; the store rejects duplicates and the
// uploader guarantees uniqueness with a timestamp suffix. The ownership
// field that is populated depends on the deployment's strategy: OwnerID
// under session auth, DeleteTokenHash under token auth. Owner fields are
// set once at creation and never reassigned.
type UploadRecord struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
	URL          string    `json:"url"`
	UploadedAt   time.Time `json:"uploadedAt"`

	// OwnerID references the uploading user (session strategy). Zero means
	// no owner; such records are deletable by no one.
	OwnerID int64 `json:"ownerId,omitempty"`

	// DeleteTokenHash is the sha256 of the delete secret (token strategy).
	// The plaintext secret is returned to the uploader exactly once and
	// never persisted.
	DeleteTokenHash string `json:"deleteTokenHash,omitempty"`

	CoverURL  string `json:"coverUrl,omitempty"`
	LyricsURL string `json:"lyricsUrl,omitempty"`
}

// SongView is the public projection of an UploadRecord. It has no field
// for the delete-token hash at all, so no serialization path can leak it.
type SongView struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
	URL          string    `json:"url"`
	UploadedAt   time.Time `json:"uploadedAt"`
	OwnerID      int64     `json:"ownerId,omitempty"`
	CoverURL     string    `json:"coverUrl,omitempty"`
	LyricsURL    string    `json:"lyricsUrl,omitempty"`

	// Mine is true when the record belongs to the requesting session's user.
	Mine bool `json:"mine,omitempty"`
}

// View builds the public projection of the record.
func (r *UploadRecord) View() SongView {
	return SongView{
		Filename:     r.Filename,
		OriginalName: r.OriginalName,
		Size:         r.Size,
		URL:          r.URL,
		UploadedAt:   r.UploadedAt,
		OwnerID:      r.OwnerID,
		CoverURL:     r.CoverURL,
		LyricsURL:    r.LyricsURL,
	}
}
