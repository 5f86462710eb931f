package server

import (
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/MeKo-Tech/protex/internal/bake"
	"github.com/MeKo-Tech/protex/internal/preset"
)

func TestParseMapPath(t *testing.T) {
	t.Run("diffuse map", func(t *testing.T) {
		task, kind, ok := parseMapPath("/maps/painted-rusty-metal/sphere/diffuse.png")
		if !ok {
			t.Fatalf("expected ok")
		}
		if task.Material != "painted-rusty-metal" || task.Surface != "sphere" {
			t.Fatalf("unexpected task: %s", task)
		}
		if kind != bake.MapDiffuse {
			t.Fatalf("unexpected kind: %s", kind)
		}
	})

	t.Run("mask map", func(t *testing.T) {
		_, kind, ok := parseMapPath("/maps/abandoned/torus/rustmask.png")
		if !ok || kind != bake.MapRustMask {
			t.Fatalf("got %q, %v", kind, ok)
		}
	})

	for _, p := range []string{
		"/maps/a/sphere/diffuse.jpg",
		"/maps/a/sphere/albedo.png",
		"/maps/a/diffuse.png",
		"/maps//sphere/diffuse.png",
		"/maps/a/b/c/diffuse.png",
		"/tiles/a/sphere/diffuse.png",
	} {
		t.Run("reject "+p, func(t *testing.T) {
			if _, _, ok := parseMapPath(p); ok {
				t.Fatalf("expected not ok")
			}
		})
	}
}

func newTestMaps(t *testing.T, generate bool) (*OnDemandMaps, *LibrarySource) {
	t.Helper()
	lib, err := preset.LoadDefault()
	if err != nil {
		t.Fatalf("load presets: %v", err)
	}
	src := NewLibrarySource(lib)
	m, err := NewOnDemandMaps(src, OnDemandMapsConfig{
		CacheDir:           t.TempDir(),
		Size:               8,
		MaxConcurrentBakes: 2,
		GenerateMissing:    generate,
	}, nil)
	if err != nil {
		t.Fatalf("new on-demand maps: %v", err)
	}
	return m, src
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestOnDemandMaps_BakesAndCaches(t *testing.T) {
	m, _ := newTestMaps(t, true)
	h := m.Handler()

	rec := get(t, h, "/maps/painted-rusty-metal/plane/diffuse.png")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 8 {
		t.Errorf("width = %d, want 8", img.Bounds().Dx())
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}

	// Every kind of the same bake comes from the cache.
	for _, kind := range []string{"normal", "roughness", "metalness", "paintmask", "rustmask"} {
		if rec := get(t, h, "/maps/painted-rusty-metal/plane/"+kind+".png"); rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", kind, rec.Code)
		}
	}

	s := m.Status()
	if s.Bake.TotalBaked != 1 || s.Bake.TotalFailed != 0 {
		t.Errorf("status = %+v, want one bake", s.Bake)
	}
	if s.Bake.ActiveBakes != 0 || s.Bake.QueuedBakes != 0 {
		t.Errorf("bakes still tracked: %+v", s.Bake)
	}
}

func TestOnDemandMaps_ConcurrentRequestsBakeOnce(t *testing.T) {
	m, _ := newTestMaps(t, true)
	h := m.Handler()

	var wg sync.WaitGroup
	codes := make([]int, 6)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = get(t, h, "/maps/abandoned/sphere/diffuse.png").Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		if code != http.StatusOK {
			t.Errorf("request %d: status = %d", i, code)
		}
	}
	if got := m.Status().Bake.TotalBaked; got != 1 {
		t.Errorf("total baked = %d, want 1", got)
	}
}

func TestOnDemandMaps_ReseedMissesCache(t *testing.T) {
	m, src := newTestMaps(t, true)
	h := m.Handler()

	if rec := get(t, h, "/maps/bare-steel/box/roughness.png"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, err := src.Reseed("bare-steel", 4711); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if rec := get(t, h, "/maps/bare-steel/box/roughness.png"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := m.Status().Bake.TotalBaked; got != 2 {
		t.Errorf("total baked = %d, want 2", got)
	}
}

func TestOnDemandMaps_NotFound(t *testing.T) {
	m, _ := newTestMaps(t, true)
	h := m.Handler()

	for _, target := range []string{
		"/maps/nope/plane/diffuse.png",
		"/maps/abandoned/teapot/diffuse.png",
		"/maps/abandoned/plane/albedo.png",
		"/maps/standard/plane/paintmask.png",
	} {
		if rec := get(t, h, target); rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", target, rec.Code)
		}
	}
}

func TestOnDemandMaps_CacheOnly(t *testing.T) {
	m, _ := newTestMaps(t, false)

	if rec := get(t, m.Handler(), "/maps/abandoned/plane/diffuse.png"); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if got := m.Status().Bake.TotalBaked; got != 0 {
		t.Errorf("total baked = %d, want 0", got)
	}
}

func TestOnDemandMaps_Options(t *testing.T) {
	m, _ := newTestMaps(t, true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/maps/abandoned/plane/diffuse.png", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestStatusHandler(t *testing.T) {
	m, src := newTestMaps(t, true)
	src.Store(src.Library())

	rec := get(t, m.StatusHandler(), "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var s MapStatus
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(s.Library.Materials) != 5 || len(s.Library.Surfaces) != 5 {
		t.Errorf("library = %+v", s.Library)
	}
	if s.Library.Reloads != 1 {
		t.Errorf("reloads = %d, want 1", s.Library.Reloads)
	}
	if s.Bake.MaxConcurrent != 2 {
		t.Errorf("max concurrent = %d, want 2", s.Bake.MaxConcurrent)
	}
}

func TestNewOnDemandMaps_Validation(t *testing.T) {
	if _, err := NewOnDemandMaps(nil, OnDemandMapsConfig{}, nil); err == nil {
		t.Error("expected an error without a library")
	}

	lib, err := preset.LoadDefault()
	if err != nil {
		t.Fatalf("load presets: %v", err)
	}
	if _, err := NewOnDemandMaps(NewLibrarySource(lib), OnDemandMapsConfig{PNGCompression: "max"}, nil); err == nil {
		t.Error("expected an error for an unknown compression")
	}
	if _, err := NewOnDemandMaps(NewLibrarySource(lib), OnDemandMapsConfig{Backend: "worley"}, nil); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}
