package texdb

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"errors"
	"fmt"
	"io"
)

// Reader reads maps from a texdb database.
type Reader struct {
	db   *sql.DB
	path string
}

// OpenReader opens a texdb database read-only.
func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro&immutable=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='maps'").Scan(&count)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify schema: %w", err)
	}
	if count == 0 {
		db.Close()
		return nil, fmt.Errorf("database does not contain maps table")
	}

	return &Reader{db: db, path: path}, nil
}

// ReadMap returns the decompressed encoded image stored under key.
func (r *Reader) ReadMap(key MapKey) ([]byte, error) {
	var compressed []byte
	err := r.db.QueryRow(
		"SELECT map_data FROM maps WHERE material=? AND surface=? AND kind=? AND level=?",
		key.Material, key.Surface, key.Kind, key.Level,
	).Scan(&compressed)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("map %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query map: %w", err)
	}

	data, err := gzipDecompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress map %s: %w", key, err)
	}
	return data, nil
}

// Keys lists every stored map, ordered by material, surface, kind and level.
func (r *Reader) Keys() ([]MapKey, error) {
	rows, err := r.db.Query("SELECT material, surface, kind, level FROM maps ORDER BY material, surface, kind, level")
	if err != nil {
		return nil, fmt.Errorf("failed to query maps: %w", err)
	}
	defer rows.Close()

	var keys []MapKey
	for rows.Next() {
		var k MapKey
		if err := rows.Scan(&k.Material, &k.Surface, &k.Kind, &k.Level); err != nil {
			return nil, fmt.Errorf("failed to scan map row: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating maps: %w", err)
	}
	return keys, nil
}

// Material returns the fingerprint and serialized parameters of name.
func (r *Reader) Material(name string) (fingerprint, params string, err error) {
	err = r.db.QueryRow("SELECT fingerprint, params FROM materials WHERE name=?", name).Scan(&fingerprint, &params)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", fmt.Errorf("material %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to query material: %w", err)
	}
	return fingerprint, params, nil
}

// Metadata reads metadata from the database.
func (r *Reader) Metadata() (Metadata, error) {
	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return Metadata{}, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		values[name] = value
	}
	if err := rows.Err(); err != nil {
		return Metadata{}, fmt.Errorf("error iterating metadata: %w", err)
	}

	return metadataFromMap(values)
}

// Close closes the database connection.
func (r *Reader) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	return io.ReadAll(gr)
}
