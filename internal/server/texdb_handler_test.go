package server

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/protex/internal/texdb"
)

func TestParseDBPath(t *testing.T) {
	key, format, ok := parseDBPath("/db/abandoned/sphere/normal@2.tiff")
	if !ok {
		t.Fatalf("expected ok")
	}
	want := texdb.MapKey{Material: "abandoned", Surface: "sphere", Kind: "normal", Level: 2}
	if key != want || format != "tiff" {
		t.Fatalf("got %+v %q", key, format)
	}

	key, format, ok = parseDBPath("/db/abandoned/sphere/diffuse.png")
	if !ok || key.Level != 0 || format != "png" {
		t.Fatalf("got %+v %q %v", key, format, ok)
	}

	for _, p := range []string{
		"/db/abandoned/sphere/diffuse",
		"/db/abandoned/sphere/diffuse.jpg",
		"/db/abandoned/sphere/diffuse@x.png",
		"/db/abandoned/sphere/diffuse@-1.png",
		"/db/abandoned/sphere/albedo.png",
		"/db/abandoned/diffuse.png",
		"/maps/abandoned/sphere/diffuse.png",
	} {
		if _, _, ok := parseDBPath(p); ok {
			t.Errorf("%s: expected not ok", p)
		}
	}
}

func newTestDB(t *testing.T) *TexDBHandler {
	t.Helper()
	path := filepath.Join(t.TempDir(), "maps.texdb")

	w, err := texdb.New(path, texdb.NewMetadata("test", "png", 8))
	if err != nil {
		t.Fatalf("create db: %v", err)
	}
	for level, data := range []string{"level0", "level1"} {
		key := texdb.MapKey{Material: "abandoned", Surface: "sphere", Kind: "diffuse", Level: level}
		if err := w.WriteMap(key, []byte(data)); err != nil {
			t.Fatalf("write map: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}

	h, err := NewTexDBHandler(TexDBConfig{Path: path, CacheControl: "max-age=60"}, nil)
	if err != nil {
		t.Fatalf("open handler: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestTexDBHandler_ServesMaps(t *testing.T) {
	h := newTestDB(t)

	rec := get(t, h.Handler(), "/db/abandoned/sphere/diffuse@1.png")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "level1" {
		t.Errorf("body = %q, want level1", rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}
	if rec.Header().Get("Cache-Control") != "max-age=60" {
		t.Errorf("cache control = %q", rec.Header().Get("Cache-Control"))
	}

	if rec := get(t, h.Handler(), "/db/abandoned/sphere/normal.png"); rec.Code != http.StatusNotFound {
		t.Errorf("missing map: status = %d, want 404", rec.Code)
	}
	if rec := get(t, h.Handler(), "/db/abandoned/sphere"); rec.Code != http.StatusNotFound {
		t.Errorf("bad path: status = %d, want 404", rec.Code)
	}
}

func TestTexDBHandler_Index(t *testing.T) {
	h := newTestDB(t)

	rec := get(t, h.Handler(), "/db/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var idx dbIndex
	if err := json.NewDecoder(rec.Body).Decode(&idx); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if idx.Metadata.Name != "test" || idx.Metadata.Size != 8 {
		t.Errorf("metadata = %+v", idx.Metadata)
	}
	want := []string{"abandoned/sphere/diffuse@0", "abandoned/sphere/diffuse@1"}
	if len(idx.Maps) != 2 || idx.Maps[0] != want[0] || idx.Maps[1] != want[1] {
		t.Errorf("maps = %v, want %v", idx.Maps, want)
	}
}

func TestNewTexDBHandler_Missing(t *testing.T) {
	if _, err := NewTexDBHandler(TexDBConfig{Path: filepath.Join(t.TempDir(), "none.texdb")}, nil); err == nil {
		t.Fatal("expected an error for a missing database")
	}
}
