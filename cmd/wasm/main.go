//go:build js && wasm
// +build js,wasm

package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"syscall/js"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/protex/internal/material"
	"github.com/MeKo-Tech/protex/internal/noise"
	"github.com/MeKo-Tech/protex/internal/preset"
)

// EvaluateRequest is one shading request from JS. Material names a preset;
// Seed, when non-zero, overrides its seed.
type EvaluateRequest struct {
	Material string     `json:"material"`
	Seed     float64    `json:"seed"`
	Backend  string     `json:"backend"`
	Position [3]float64 `json:"position"`
	Normal   [3]float64 `json:"normal"`
}

type EvaluateResponse struct {
	Diffuse   [4]float64 `json:"diffuse"`
	Normal    [3]float64 `json:"normal"`
	Roughness float64    `json:"roughness"`
	Metalness float64    `json:"metalness"`
}

var (
	library *preset.Library
	rng     = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func errorResult(err error) any {
	return map[string]any{"error": err.Error()}
}

// evaluate shades one point: protexEvaluate(jsonRequest) -> jsonResponse.
func evaluate(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return errorResult(fmt.Errorf("missing arguments"))
	}

	var req EvaluateRequest
	if err := json.Unmarshal([]byte(args[0].String()), &req); err != nil {
		return errorResult(fmt.Errorf("failed to parse request: %w", err))
	}
	if req.Material == "" {
		req.Material = "painted-rusty-metal"
	}
	if req.Normal == [3]float64{} {
		req.Normal = [3]float64{0, 0, 1}
	}
	backend, err := noise.ParseBackend(req.Backend)
	if err != nil {
		return errorResult(err)
	}

	lib := library
	if req.Seed != 0 {
		if lib, err = lib.WithSeed(req.Material, req.Seed); err != nil {
			return errorResult(err)
		}
	}
	shader, _, err := lib.Shader(req.Material, backend)
	if err != nil {
		return errorResult(err)
	}

	s := shader.Shade(mgl64.Vec3(req.Position), mgl64.Vec3(req.Normal))
	out, err := json.Marshal(EvaluateResponse{
		Diffuse:   s.Diffuse,
		Normal:    s.Normal,
		Roughness: s.Roughness,
		Metalness: s.Metalness,
	})
	if err != nil {
		return errorResult(err)
	}
	return string(out)
}

// initLibrary replaces the preset library: protexInit(yaml) or protexInit()
// for the built-in presets. It returns the preset names.
func initLibrary(this js.Value, args []js.Value) any {
	var (
		lib *preset.Library
		err error
	)
	if len(args) > 0 && args[0].Type() == js.TypeString {
		lib, err = preset.Load(strings.NewReader(args[0].String()))
	} else {
		lib, err = preset.LoadDefault()
	}
	if err != nil {
		return errorResult(err)
	}
	library = lib

	names := make([]any, 0, len(lib.Names()))
	for _, n := range lib.Names() {
		names = append(names, n)
	}
	return map[string]any{"status": "ready", "materials": names}
}

// randomSeed draws a seed in the range the UI offers.
func randomSeed(this js.Value, args []js.Value) any {
	return material.RandomSeed(rng)
}

func main() {
	lib, err := preset.LoadDefault()
	if err != nil {
		panic(err)
	}
	library = lib

	js.Global().Set("protexEvaluate", js.FuncOf(evaluate))
	js.Global().Set("protexInit", js.FuncOf(initLibrary))
	js.Global().Set("protexRandomSeed", js.FuncOf(randomSeed))

	fmt.Println("protex WASM module loaded")
	select {}
}
