package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/protex/internal/bake"
	"github.com/MeKo-Tech/protex/internal/material"
	"github.com/MeKo-Tech/protex/internal/preset"
)

// SampleResponse is the JSON body of /sample.
type SampleResponse struct {
	Material    string     `json:"material"`
	Fingerprint string     `json:"fingerprint"`
	Position    [3]float64 `json:"position"`
	Diffuse     [4]float64 `json:"diffuse"`
	Normal      [3]float64 `json:"normal"`
	Roughness   float64    `json:"roughness"`
	Metalness   float64    `json:"metalness"`

	// Layer masks, only reported by layered materials.
	PaintMask *float64 `json:"paint_mask,omitempty"`
	RustMask  *float64 `json:"rust_mask,omitempty"`
}

// ReseedResponse is the JSON body of /reseed.
type ReseedResponse struct {
	Material    string  `json:"material"`
	Seed        float64 `json:"seed"`
	Fingerprint string  `json:"fingerprint"`
}

// SampleHandler shades one point:
// GET /sample?material=name&p=x,y,z&n=x,y,z. The normal defaults to +z.
func (m *OnDemandMaps) SampleHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Cache-Control", "no-store")

		q := r.URL.Query()
		name := q.Get("material")
		if name == "" {
			http.Error(w, "missing material", http.StatusBadRequest)
			return
		}
		pos, err := parseVec3(q.Get("p"), mgl64.Vec3{})
		if err != nil {
			http.Error(w, fmt.Sprintf("bad position: %v", err), http.StatusBadRequest)
			return
		}
		normal, err := parseVec3(q.Get("n"), mgl64.Vec3{0, 0, 1})
		if err != nil {
			http.Error(w, fmt.Sprintf("bad normal: %v", err), http.StatusBadRequest)
			return
		}

		lib := m.src.Library()
		shader, _, err := lib.Shader(name, m.cfg.Backend)
		if err != nil {
			writeLookupError(w, err)
			return
		}
		fp, err := lib.Fingerprint(name)
		if err != nil {
			writeLookupError(w, err)
			return
		}

		resp := SampleResponse{
			Material:    name,
			Fingerprint: fp,
			Position:    pos,
		}
		var s material.ShadingResult
		if ls, ok := shader.(bake.LayerShader); ok {
			layers := ls.ShadeLayers(pos, normal)
			s = layers.Result
			resp.PaintMask = &layers.PaintMask
			resp.RustMask = &layers.RustMask
		} else {
			s = shader.Shade(pos, normal)
		}
		resp.Diffuse = s.Diffuse
		resp.Normal = s.Normal
		resp.Roughness = s.Roughness
		resp.Metalness = s.Metalness
		writeJSON(w, resp, m)
	})
}

// ReseedHandler draws a new seed for a material:
// POST /reseed/{name}, optionally with ?seed=value.
func (m *OnDemandMaps) ReseedHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Cache-Control", "no-store")

		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		name, ok := strings.CutPrefix(r.URL.Path, "/reseed/")
		if !ok || name == "" || strings.Contains(name, "/") {
			http.NotFound(w, r)
			return
		}

		var seed float64
		if raw := r.URL.Query().Get("seed"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				http.Error(w, fmt.Sprintf("bad seed: %v", err), http.StatusBadRequest)
				return
			}
			seed = v
		} else {
			m.rngMu.Lock()
			seed = material.RandomSeed(m.rng)
			m.rngMu.Unlock()
		}

		lib, err := m.src.Reseed(name, seed)
		if err != nil {
			writeReseedError(w, err)
			return
		}
		fp, err := lib.Fingerprint(name)
		if err != nil {
			writeLookupError(w, err)
			return
		}

		m.log().Info("material reseeded", "material", name, "seed", seed, "fingerprint", fp)
		writeJSON(w, ReseedResponse{Material: name, Seed: seed, Fingerprint: fp}, m)
	})
}

func writeReseedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, preset.ErrUnknown):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, material.ErrNotFinite), errors.Is(err, material.ErrOutOfRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any, m *OnDemandMaps) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.log().Error("failed to encode response", "error", err)
	}
}

// parseVec3 parses "x,y,z". An empty string yields def. NaN and infinite
// components are rejected.
func parseVec3(s string, def mgl64.Vec3) (mgl64.Vec3, error) {
	if s == "" {
		return def, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return mgl64.Vec3{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	var v mgl64.Vec3
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return mgl64.Vec3{}, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return mgl64.Vec3{}, fmt.Errorf("component %d of %q is not finite", i, s)
		}
		v[i] = f
	}
	return v, nil
}
