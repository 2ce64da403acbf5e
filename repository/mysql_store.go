package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"MusicPro/model"

	"github.com/go-sql-driver/mysql"
)

// mysqlUploadStore implements UploadStore on a relational table keyed by
// filename. The engine's atomic statement execution provides the
// durability the file backend gets from its temp-file rename.
type mysqlUploadStore struct {
	db *sql.DB
}

// NewMySQLUploadStore creates an UploadStore backed by MySQL.
func NewMySQLUploadStore(db *sql.DB) UploadStore {
	return &mysqlUploadStore{db: db}
}

const uploadColumns = `filename, original_name, size, url, uploaded_at, owner_id, delete_token_hash, cover_url, lyrics_url`

func scanUpload(row interface{ Scan(...any) error }) (*model.UploadRecord, error) {
	rec := &model.UploadRecord{}
	var ownerID sql.NullInt64
	var tokenHash, coverURL, lyricsURL sql.NullString
	err := row.Scan(&rec.Filename, &rec.OriginalName, &rec.Size, &rec.URL, &rec.UploadedAt,
		&ownerID, &tokenHash, &coverURL, &lyricsURL)
	if err != nil {
		return nil, err
	}
	rec.OwnerID = ownerID.Int64
	rec.DeleteTokenHash = tokenHash.String
	rec.CoverURL = coverURL.String
	rec.LyricsURL = lyricsURL.String
	return rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}

// Insert adds a record. A duplicate filename maps the engine's key
// violation onto ErrDuplicateKey so callers can retry with a new suffix.
func (s *mysqlUploadStore) Insert(ctx context.Context, rec *model.UploadRecord) error {
	query := `INSERT INTO uploads (` + uploadColumns + `)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for Insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, rec.Filename, rec.OriginalName, rec.Size, rec.URL, rec.UploadedAt,
		nullInt64(rec.OwnerID), nullString(rec.DeleteTokenHash), nullString(rec.CoverURL), nullString(rec.LyricsURL))
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return fmt.Errorf("insert %q: %w", rec.Filename, ErrDuplicateKey)
		}
		return fmt.Errorf("failed to execute Insert for %q: %w", rec.Filename, err)
	}
	return nil
}

// Get retrieves a record by filename.
func (s *mysqlUploadStore) Get(ctx context.Context, filename string) (*model.UploadRecord, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE filename = ?`
	rec, err := scanUpload(s.db.QueryRowContext(ctx, query, filename))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("get %q: %w", filename, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan upload %q: %w", filename, err)
	}
	return rec, nil
}

// Update merges the given fields into an existing record.
func (s *mysqlUploadStore) Update(ctx context.Context, filename string, upd RecordUpdate) (*model.UploadRecord, error) {
	sets := ""
	args := []any{}
	if upd.CoverURL != nil {
		sets += "cover_url = ?"
		args = append(args, *upd.CoverURL)
	}
	if upd.LyricsURL != nil {
		if sets != "" {
			sets += ", "
		}
		sets += "lyrics_url = ?"
		args = append(args, *upd.LyricsURL)
	}
	if sets == "" {
		return s.Get(ctx, filename)
	}
	args = append(args, filename)

	res, err := s.db.ExecContext(ctx, "UPDATE uploads SET "+sets+" WHERE filename = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute Update for %q: %w", filename, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows for Update: %w", err)
	}
	if affected == 0 {
		// The row may exist with identical values; distinguish via Get.
		if _, getErr := s.Get(ctx, filename); getErr != nil {
			return nil, getErr
		}
	}
	return s.Get(ctx, filename)
}

// Remove deletes the record for filename.
func (s *mysqlUploadStore) Remove(ctx context.Context, filename string) error {
	stmt, err := s.db.PrepareContext(ctx, "DELETE FROM uploads WHERE filename = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare statement for Remove: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, filename)
	if err != nil {
		return fmt.Errorf("failed to execute Remove for %q: %w", filename, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows for Remove: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("remove %q: %w", filename, ErrNotFound)
	}
	return nil
}

// List returns all records, newest first.
func (s *mysqlUploadStore) List(ctx context.Context) ([]*model.UploadRecord, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads ORDER BY uploaded_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}
	defer rows.Close()

	records := make([]*model.UploadRecord, 0)
	for rows.Next() {
		rec, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upload in List: %w", err)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in List: %w", err)
	}
	return records, nil
}
