package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

const upsertMetadata = `INSERT INTO metadata (key, value) VALUES (?, ?)
	 ON CONFLICT(key) DO UPDATE SET value = excluded.value`

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(upsertMetadata), key, value)
	return err
}

// SetMetadata upserts a key-value pair inside the transaction.
func (t *Tx) SetMetadata(ctx context.Context, key, value string) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(upsertMetadata), key, value)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := sqlx.GetContext(ctx, s.db, &value, s.db.Rebind(`SELECT value FROM metadata WHERE key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// ImportedFileHash returns the sha256 recorded for a previously imported file.
func (s *Store) ImportedFileHash(ctx context.Context, path string) (string, error) {
	return s.GetMetadata(ctx, importKey(path))
}

// SetImportedFileHash records the sha256 of an imported file.
func (s *Store) SetImportedFileHash(ctx context.Context, path, hash string) error {
	return s.SetMetadata(ctx, importKey(path), hash)
}

func importKey(path string) string {
	return "import:" + path
}
