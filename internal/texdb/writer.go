package texdb

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver
)

const (
	// DefaultBatchSize is the number of maps to buffer before flushing to the database.
	DefaultBatchSize = 64
)

type mapEntry struct {
	Key  MapKey
	Data []byte // encoded image, gzip-compressed before storage
}

// Writer writes maps to a texdb database. It is safe for concurrent use.
type Writer struct {
	db        *sql.DB
	path      string
	batch     []mapEntry
	metadata  Metadata
	batchSize int
	mu        sync.Mutex
}

// New creates a texdb writer.
// The database is created if it doesn't exist, and the schema is initialized.
func New(path string, metadata Metadata) (*Writer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = 50000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if err := insertMetadata(db, metadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to insert metadata: %w", err)
	}

	return &Writer{
		db:        db,
		path:      path,
		batch:     make([]mapEntry, 0, DefaultBatchSize),
		batchSize: DefaultBatchSize,
		metadata:  metadata,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS metadata (
			name TEXT NOT NULL,
			value TEXT
		);

		CREATE TABLE IF NOT EXISTS maps (
			material TEXT NOT NULL,
			surface TEXT NOT NULL,
			kind TEXT NOT NULL,
			level INTEGER NOT NULL,
			map_data BLOB NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS map_index ON maps (material, surface, kind, level);

		CREATE TABLE IF NOT EXISTS materials (
			name TEXT PRIMARY KEY,
			fingerprint TEXT NOT NULL,
			params TEXT NOT NULL
		);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

func insertMetadata(db *sql.DB, meta Metadata) error {
	if _, err := db.Exec("DELETE FROM metadata"); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}

	stmt, err := db.Prepare("INSERT INTO metadata (name, value) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare metadata insert: %w", err)
	}
	defer stmt.Close()

	for key, value := range meta.ToMap() {
		if _, err := stmt.Exec(key, value); err != nil {
			return fmt.Errorf("failed to insert metadata %q: %w", key, err)
		}
	}
	return nil
}

// Metadata returns the metadata the writer was created with.
func (w *Writer) Metadata() Metadata { return w.metadata }

// WriteMap adds an encoded map to the batch. When the batch is full, it is
// flushed automatically.
func (w *Writer) WriteMap(key MapKey, data []byte) error {
	if key.Material == "" || key.Surface == "" || key.Kind == "" || key.Level < 0 {
		return fmt.Errorf("incomplete map key %s", key)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.batch = append(w.batch, mapEntry{Key: key, Data: data})
	if len(w.batch) >= w.batchSize {
		return w.flushLocked()
	}
	return nil
}

// PutMaterial records the parameters a material was baked with.
func (w *Writer) PutMaterial(name, fingerprint, params string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := w.db.Exec(
		"INSERT OR REPLACE INTO materials (name, fingerprint, params) VALUES (?, ?, ?)",
		name, fingerprint, params,
	)
	if err != nil {
		return fmt.Errorf("failed to store material %q: %w", name, err)
	}
	return nil
}

// Flush writes any buffered maps to the database.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// flushLocked writes buffered maps to the database. Must be called with lock held.
func (w *Writer) flushLocked() error {
	if len(w.batch) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO maps (material, surface, kind, level, map_data) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range w.batch {
		compressed, err := gzipCompress(entry.Data)
		if err != nil {
			return fmt.Errorf("failed to compress map %s: %w", entry.Key, err)
		}

		k := entry.Key
		if _, err := stmt.Exec(k.Material, k.Surface, k.Kind, k.Level, compressed); err != nil {
			return fmt.Errorf("failed to insert map %s: %w", entry.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.batch = w.batch[:0]
	return nil
}

// Close flushes any remaining maps and closes the database.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.db.Close()
		return err
	}

	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)

	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
