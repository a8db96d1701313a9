package sqlitestore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kinlink/kinlink/internal/kinderr"
	"github.com/kinlink/kinlink/internal/model"
)

// Blobs live at <data_dir>/blobs/<xx>/<hash><ext>.
// The store itself only needs the root directory (derived from its own
// path's sibling "blobs" dir); callers that need a different layout can
// wrap Store, but kinlink always colocates blobs next to the db file.
func (s *Store) blobRoot() string {
	return filepath.Join(filepath.Dir(s.path), "blobs")
}

func blobPath(root, hash, mimeType string) string {
	ext := extForMime(mimeType)
	return filepath.Join(root, hash[:2], hash+ext)
}

func extForMime(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "application/pdf":
		return ".pdf"
	default:
		return ""
	}
}

// StoreBlob writes data under its SHA-256 hash, deduplicating identical
// bytes.
func (s *Store) StoreBlob(ctx context.Context, data []byte, mimeType string) (string, bool, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	var existing string
	err := s.db.QueryRowContext(ctx, `SELECT blob_hash FROM blob WHERE blob_hash = ?`, hash).Scan(&existing)
	if err == nil {
		return hash, false, nil
	}
	if err != sql.ErrNoRows {
		return "", false, kinderr.WrapDB("store_blob_lookup", hash, err)
	}

	root := s.blobRoot()
	path := blobPath(root, hash, mimeType)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", false, fmt.Errorf("sqlitestore: mkdir for blob %s: %w", hash, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", false, fmt.Errorf("sqlitestore: writing blob %s: %w", hash, err)
	}

	txErr := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO blob (blob_hash, path, mime_type, size_bytes)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(blob_hash) DO NOTHING
		`, hash, path, mimeType, int64(len(data)))
		if err != nil {
			return kinderr.WrapDB("store_blob_insert", hash, err)
		}
		return nil
	})
	if txErr != nil {
		os.Remove(path)
		return "", false, txErr
	}
	return hash, true, nil
}

// GetBlob opens the blob's bytes as a stream alongside its metadata.
func (s *Store) GetBlob(ctx context.Context, hash string) (io.ReadCloser, *model.Blob, error) {
	var b model.Blob
	row := s.db.QueryRowContext(ctx, `
		SELECT blob_hash, path, mime_type, size_bytes, width, height FROM blob WHERE blob_hash = ?
	`, hash)
	if err := row.Scan(&b.Hash, &b.Path, &b.MimeType, &b.SizeBytes, &b.Width, &b.Height); err != nil {
		return nil, nil, kinderr.WrapDB("get_blob", hash, err)
	}
	data, err := os.ReadFile(b.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlitestore: reading blob %s: %w", hash, err)
	}
	return io.NopCloser(bytes.NewReader(data)), &b, nil
}

// DeleteBlob refuses to remove a blob still referenced by media.
func (s *Store) DeleteBlob(ctx context.Context, hash string) error {
	var refCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media WHERE blob_hash = ?`, hash).Scan(&refCount); err != nil {
		return kinderr.WrapDB("delete_blob_refcheck", hash, err)
	}
	if refCount > 0 {
		return kinderr.New(kinderr.Conflict, "delete_blob", hash, fmt.Errorf("%d media rows still reference this blob", refCount))
	}

	var path string
	if err := s.db.QueryRowContext(ctx, `SELECT path FROM blob WHERE blob_hash = ?`, hash).Scan(&path); err != nil {
		return kinderr.WrapDB("delete_blob_lookup", hash, err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM blob WHERE blob_hash = ?`, hash); err != nil {
			return kinderr.WrapDB("delete_blob", hash, err)
		}
		os.Remove(path)
		return nil
	})
}

// AddMedia attaches a blob to a person.
func (s *Store) AddMedia(ctx context.Context, m model.Media) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO media (media_id, person_id, blob_hash, source, is_primary, caption)
			VALUES (?, ?, ?, ?, ?, ?)
		`, m.MediaID, m.PersonID, m.BlobHash, m.Source, boolToInt(m.IsPrimary), m.Caption)
		if err != nil {
			return kinderr.WrapDB("add_media", m.MediaID, err)
		}
		return nil
	})
}
