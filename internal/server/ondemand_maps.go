package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/protex/internal/bake"
	"github.com/MeKo-Tech/protex/internal/noise"
	"github.com/MeKo-Tech/protex/internal/pipeline"
	"github.com/MeKo-Tech/protex/internal/preset"
	"github.com/MeKo-Tech/protex/internal/surface"
	"github.com/MeKo-Tech/protex/internal/worker"
)

// OnDemandMapsConfig configures OnDemandMaps.
type OnDemandMapsConfig struct {
	CacheDir           string
	PNGCompression     string
	CacheControl       string
	Backend            noise.Backend
	Size               int
	Workers            int // goroutines per bake
	MaxConcurrentBakes int
	BakeTimeout        time.Duration
	GenerateMissing    bool
	DisableCache       bool
}

// OnDemandMaps serves baked maps from a fingerprint keyed disk cache and
// bakes missing ones on request.
type OnDemandMaps struct {
	src    *LibrarySource
	gen    *pipeline.Generator
	logger *slog.Logger
	sem    chan struct{}
	locks  sync.Map
	cfg    OnDemandMapsConfig

	rngMu sync.Mutex
	rng   *rand.Rand

	activeBakes  atomic.Int32
	totalBaked   atomic.Int64
	totalFailed  atomic.Int64
	currentBakes sync.Map // map key -> start time

	queuedBakes atomic.Int32
	queuedMaps  sync.Map // map key -> queue time
}

// MapStatus represents the current status of the on-demand baker.
type MapStatus struct {
	Bake    BakeStatus    `json:"bake"`
	Library LibraryStatus `json:"library"`
}

// BakeStatus contains current bake operation status.
type BakeStatus struct {
	ActiveBakes   int      `json:"active_bakes"`
	TotalBaked    int64    `json:"total_baked"`
	TotalFailed   int64    `json:"total_failed"`
	CurrentMaps   []string `json:"current_maps"`
	MaxConcurrent int      `json:"max_concurrent"`
	QueuedBakes   int      `json:"queued_bakes"`
	QueuedMaps    []string `json:"queued_maps"`
}

// LibraryStatus describes the material library being served.
type LibraryStatus struct {
	Materials []string `json:"materials"`
	Surfaces  []string `json:"surfaces"`
	Reloads   int64    `json:"reloads"`
}

func NewOnDemandMaps(src *LibrarySource, cfg OnDemandMapsConfig, logger *slog.Logger) (*OnDemandMaps, error) {
	if src == nil || src.Library() == nil {
		return nil, fmt.Errorf("on-demand maps need a material library")
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "./maps"
	}
	if cfg.Size <= 0 {
		cfg.Size = 512
	}
	if cfg.MaxConcurrentBakes <= 0 {
		cfg.MaxConcurrentBakes = 1
	}
	if cfg.BakeTimeout <= 0 {
		cfg.BakeTimeout = 2 * time.Minute
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "no-store"
	}

	compression, err := bake.ParseCompression(cfg.PNGCompression)
	if err != nil {
		return nil, err
	}

	gen, err := pipeline.NewGenerator(src, pipeline.Config{
		Size:          cfg.Size,
		Backend:       cfg.Backend,
		Workers:       cfg.Workers,
		KeepMasks:     true,
		Encode:        bake.EncodeOptions{Format: bake.FormatPNG, Compression: compression},
		OutputDir:     cfg.CacheDir,
		Fingerprinted: true,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &OnDemandMaps{
		src:    src,
		gen:    gen,
		cfg:    cfg,
		logger: logger,
		sem:    make(chan struct{}, cfg.MaxConcurrentBakes),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Status returns the current status of the baker.
func (m *OnDemandMaps) Status() MapStatus {
	var current []string
	m.currentBakes.Range(func(key, _ any) bool {
		current = append(current, key.(string))
		return true
	})
	sort.Strings(current)

	var queued []string
	m.queuedMaps.Range(func(key, _ any) bool {
		queued = append(queued, key.(string))
		return true
	})
	sort.Strings(queued)

	return MapStatus{
		Bake: BakeStatus{
			ActiveBakes:   int(m.activeBakes.Load()),
			TotalBaked:    m.totalBaked.Load(),
			TotalFailed:   m.totalFailed.Load(),
			CurrentMaps:   current,
			MaxConcurrent: m.cfg.MaxConcurrentBakes,
			QueuedBakes:   int(m.queuedBakes.Load()),
			QueuedMaps:    queued,
		},
		Library: LibraryStatus{
			Materials: m.src.Library().Names(),
			Surfaces:  surface.Names(),
			Reloads:   m.src.Reloads(),
		},
	}
}

// StatusHandler returns an HTTP handler for the status endpoint (JSON).
func (m *OnDemandMaps) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Cache-Control", "no-store")

		if err := json.NewEncoder(w).Encode(m.Status()); err != nil {
			m.log().Error("failed to encode status", "error", err)
			http.Error(w, "failed to encode status", http.StatusInternalServerError)
		}
	})
}

// StatusStreamHandler pushes the status as Server-Sent Events until the
// client goes away.
func (m *OnDemandMaps) StatusStreamHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}

		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()

		m.sendStatusEvent(w, flusher)
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				m.sendStatusEvent(w, flusher)
			}
		}
	})
}

func (m *OnDemandMaps) sendStatusEvent(w http.ResponseWriter, flusher http.Flusher) {
	data, err := json.Marshal(m.Status())
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func (m *OnDemandMaps) Handler() http.Handler {
	return http.HandlerFunc(m.serveMap)
}

func (m *OnDemandMaps) serveMap(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	task, kind, ok := parseMapPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if _, err := surface.ByName(task.Surface); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	fullPath, err := m.gen.MapPath(task, kind)
	if err != nil {
		writeLookupError(w, err)
		return
	}

	w.Header().Set("Cache-Control", m.cfg.CacheControl)

	if !m.cfg.DisableCache && fileExists(fullPath) {
		http.ServeFile(w, r, fullPath)
		return
	}

	if !m.cfg.GenerateMissing {
		http.Error(w, fmt.Sprintf("map not found: %s/%s", task, kind), http.StatusNotFound)
		return
	}

	// One bake per cache entry; the fingerprint is part of fullPath.
	mu := m.getLock(fullPath)
	mu.Lock()
	defer mu.Unlock()

	if !m.cfg.DisableCache && fileExists(fullPath) {
		http.ServeFile(w, r, fullPath)
		return
	}

	key := task.String()
	m.queuedBakes.Add(1)
	m.queuedMaps.Store(key, time.Now())

	select {
	case m.sem <- struct{}{}:
		m.queuedBakes.Add(-1)
		m.queuedMaps.Delete(key)
		defer func() { <-m.sem }()
	case <-r.Context().Done():
		m.queuedBakes.Add(-1)
		m.queuedMaps.Delete(key)
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), m.cfg.BakeTimeout)
	defer cancel()

	task.Force = m.cfg.DisableCache
	start := time.Now()
	m.activeBakes.Add(1)
	m.currentBakes.Store(key, start)

	dir, err := m.gen.Generate(ctx, task)

	m.activeBakes.Add(-1)
	m.currentBakes.Delete(key)

	if err != nil {
		m.totalFailed.Add(1)
		m.log().Error("failed to bake maps", "task", key, "error", err)
		if errors.Is(err, preset.ErrUnknown) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("failed to bake %s: %v", key, err), http.StatusInternalServerError)
		return
	}
	m.totalBaked.Add(1)
	m.log().Info("maps baked on-demand", "task", key, "ms", time.Since(start).Milliseconds())

	// The library may have been swapped since fullPath was computed.
	servePath := filepath.Join(dir, bake.FileName(task.Surface, kind, 0, bake.FormatPNG))
	if !fileExists(servePath) {
		http.Error(w, fmt.Sprintf("map %s was not baked for %s", kind, key), http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, servePath)
}

func (m *OnDemandMaps) getLock(key string) *sync.Mutex {
	if v, ok := m.locks.Load(key); ok {
		return v.(*sync.Mutex)
	}
	mu := &sync.Mutex{}
	actual, _ := m.locks.LoadOrStore(key, mu)
	return actual.(*sync.Mutex)
}

func (m *OnDemandMaps) log() *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return slog.Default()
}

// parseMapPath parses /maps/{material}/{surface}/{kind}.png.
func parseMapPath(requestPath string) (worker.Task, bake.MapKind, bool) {
	rest, ok := strings.CutPrefix(requestPath, "/maps/")
	if !ok {
		return worker.Task{}, "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return worker.Task{}, "", false
	}
	base := path.Base(parts[2])
	name, ok := strings.CutSuffix(base, ".png")
	if !ok {
		return worker.Task{}, "", false
	}
	kind, err := bake.ParseMapKind(name)
	if err != nil {
		return worker.Task{}, "", false
	}
	return worker.Task{Material: parts[0], Surface: parts[1]}, kind, true
}

func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, preset.ErrUnknown) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	if err != nil {
		return false
	}
	return !st.IsDir()
}
