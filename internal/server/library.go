package server

import (
	"fmt"
	"sync/atomic"

	"github.com/MeKo-Tech/protex/internal/preset"
)

// LibrarySource holds the current material library. Readers always see one
// complete library; reloads and reseeds replace it as a whole.
type LibrarySource struct {
	lib     atomic.Pointer[preset.Library]
	reloads atomic.Int64
}

// NewLibrarySource wraps lib.
func NewLibrarySource(lib *preset.Library) *LibrarySource {
	s := &LibrarySource{}
	s.lib.Store(lib)
	return s
}

// Library returns the current snapshot.
func (s *LibrarySource) Library() *preset.Library {
	return s.lib.Load()
}

// Store replaces the library, e.g. after the preset file changed.
func (s *LibrarySource) Store(lib *preset.Library) {
	s.lib.Store(lib)
	s.reloads.Add(1)
}

// Reloads counts Store calls.
func (s *LibrarySource) Reloads() int64 {
	return s.reloads.Load()
}

// Reseed swaps in a copy of the library where preset name uses seed.
// Concurrent reseeds and reloads are retried against the newest library.
func (s *LibrarySource) Reseed(name string, seed float64) (*preset.Library, error) {
	for {
		cur := s.lib.Load()
		next, err := cur.WithSeed(name, seed)
		if err != nil {
			return nil, fmt.Errorf("failed to reseed %s: %w", name, err)
		}
		if s.lib.CompareAndSwap(cur, next) {
			return next, nil
		}
	}
}
