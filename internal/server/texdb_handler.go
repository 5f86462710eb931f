package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/protex/internal/bake"
	"github.com/MeKo-Tech/protex/internal/texdb"
)

// TexDBHandler serves maps from a texdb database.
type TexDBHandler struct {
	reader       *texdb.Reader
	logger       *slog.Logger
	cacheControl string
}

// TexDBConfig configures the texdb handler.
type TexDBConfig struct {
	Path         string
	CacheControl string
}

// NewTexDBHandler opens the database read-only.
func NewTexDBHandler(cfg TexDBConfig, logger *slog.Logger) (*TexDBHandler, error) {
	reader, err := texdb.OpenReader(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open texdb: %w", err)
	}

	return &TexDBHandler{
		reader:       reader,
		logger:       logger,
		cacheControl: cfg.CacheControl,
	}, nil
}

// Handler returns the HTTP handler function. GET /db/ lists metadata and
// keys as JSON; GET /db/{material}/{surface}/{kind}[@level].{ext} returns
// one stored map.
func (h *TexDBHandler) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.URL.Path == "/db/" || r.URL.Path == "/db" {
			h.serveIndex(w)
			return
		}
		h.serveMap(w, r)
	}
}

type dbIndex struct {
	Metadata texdb.Metadata `json:"metadata"`
	Maps     []string       `json:"maps"`
}

func (h *TexDBHandler) serveIndex(w http.ResponseWriter) {
	meta, err := h.reader.Metadata()
	if err != nil {
		h.log().Error("Failed to read metadata", "error", err)
		http.Error(w, "failed to read metadata", http.StatusInternalServerError)
		return
	}
	keys, err := h.reader.Keys()
	if err != nil {
		h.log().Error("Failed to list maps", "error", err)
		http.Error(w, "failed to list maps", http.StatusInternalServerError)
		return
	}

	idx := dbIndex{Metadata: meta, Maps: make([]string, len(keys))}
	for i, k := range keys {
		idx.Maps[i] = k.String()
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(idx); err != nil {
		h.log().Error("Failed to write response", "error", err)
	}
}

// serveMap serves a single map from the database.
func (h *TexDBHandler) serveMap(w http.ResponseWriter, r *http.Request) {
	key, format, ok := parseDBPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	data, err := h.reader.ReadMap(key)
	if err != nil {
		if errors.Is(err, texdb.ErrNotFound) {
			http.Error(w, "Map not found", http.StatusNotFound)
			return
		}
		h.log().Error("Failed to read map", "key", key.String(), "error", err)
		http.Error(w, "Failed to read map", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", h.cacheControl)
	w.Header().Set("Content-Type", contentType(format))
	if _, err := w.Write(data); err != nil {
		h.log().Error("Failed to write response", "error", err)
	}
}

// Close closes the database reader.
func (h *TexDBHandler) Close() error {
	return h.reader.Close()
}

func (h *TexDBHandler) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

// parseDBPath parses /db/{material}/{surface}/{kind}[@level].{ext}.
func parseDBPath(requestPath string) (texdb.MapKey, bake.Format, bool) {
	rest, ok := strings.CutPrefix(requestPath, "/db/")
	if !ok {
		return texdb.MapKey{}, "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return texdb.MapKey{}, "", false
	}

	name, ext, ok := strings.Cut(parts[2], ".")
	if !ok {
		return texdb.MapKey{}, "", false
	}
	format, err := bake.ParseFormat(ext)
	if err != nil {
		return texdb.MapKey{}, "", false
	}

	level := 0
	if kind, lvl, found := strings.Cut(name, "@"); found {
		n, err := strconv.Atoi(lvl)
		if err != nil || n < 0 {
			return texdb.MapKey{}, "", false
		}
		name, level = kind, n
	}
	kind, err := bake.ParseMapKind(name)
	if err != nil {
		return texdb.MapKey{}, "", false
	}

	return texdb.MapKey{Material: parts[0], Surface: parts[1], Kind: string(kind), Level: level}, format, true
}

func contentType(f bake.Format) string {
	if f == bake.FormatTIFF {
		return "image/tiff"
	}
	return "image/png"
}
