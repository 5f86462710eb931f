// Package texdb stores baked material maps in a single SQLite file.
package texdb

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a map or material is not in the database.
var ErrNotFound = errors.New("not found")

// Metadata describes one bake run.
type Metadata struct {
	Name        string
	Description string
	Format      string // image container of map_data: png or tiff
	Backend     string // noise backend the maps were baked with
	Size        int    // edge length of level 0
	RunID       string
	CreatedAt   time.Time
	Version     string
}

// NewMetadata returns metadata with a fresh run id and the current time.
func NewMetadata(name, format string, size int) Metadata {
	return Metadata{
		Name:      name,
		Format:    format,
		Size:      size,
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Version:   "1",
	}
}

// ToMap converts Metadata to key/value rows.
func (m Metadata) ToMap() map[string]string {
	result := make(map[string]string)

	if m.Name != "" {
		result["name"] = m.Name
	}
	if m.Description != "" {
		result["description"] = m.Description
	}
	if m.Format != "" {
		result["format"] = m.Format
	}
	if m.Backend != "" {
		result["backend"] = m.Backend
	}
	if m.Size > 0 {
		result["size"] = fmt.Sprintf("%d", m.Size)
	}
	if m.RunID != "" {
		result["run_id"] = m.RunID
	}
	if !m.CreatedAt.IsZero() {
		result["created_at"] = m.CreatedAt.Format(time.RFC3339)
	}
	if m.Version != "" {
		result["version"] = m.Version
	}

	return result
}

func metadataFromMap(values map[string]string) (Metadata, error) {
	meta := Metadata{
		Name:        values["name"],
		Description: values["description"],
		Format:      values["format"],
		Backend:     values["backend"],
		RunID:       values["run_id"],
		Version:     values["version"],
	}

	if v, ok := values["size"]; ok {
		if i, err := strconv.Atoi(v); err == nil {
			meta.Size = i
		}
	}
	if v, ok := values["created_at"]; ok {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return Metadata{}, fmt.Errorf("invalid created_at %q: %w", v, err)
		}
		meta.CreatedAt = ts
	}
	if meta.RunID != "" {
		if _, err := uuid.Parse(meta.RunID); err != nil {
			return Metadata{}, fmt.Errorf("invalid run_id %q: %w", meta.RunID, err)
		}
	}
	return meta, nil
}

// MapKey addresses one stored map.
type MapKey struct {
	Material string
	Surface  string
	Kind     string
	Level    int
}

func (k MapKey) String() string {
	return fmt.Sprintf("%s/%s/%s@%d", k.Material, k.Surface, k.Kind, k.Level)
}
