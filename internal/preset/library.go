// Package preset loads named material parameter sets from YAML.
package preset

import (
	"bytes"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/protex/assets"
	"github.com/MeKo-Tech/protex/internal/material"
	"github.com/MeKo-Tech/protex/internal/noise"
)

// ErrUnknown is returned when a preset name is not in the library.
var ErrUnknown = errors.New("unknown preset")

// Preset is one named material.
type Preset struct {
	Name        string
	Description string
	Kind        material.Kind
	Params      material.Parameters
}

// Library is an immutable set of presets. Modifying methods return a copy.
type Library struct {
	presets []Preset
	index   map[string]int
	tuning  material.Tuning
}

type document struct {
	Tuning  *tuningEntry `yaml:"tuning,omitempty"`
	Presets []entry      `yaml:"presets"`
}

// tuningEntry mirrors material.Tuning in YAML. Missing fields keep the
// values of material.DefaultTuning.
type tuningEntry struct {
	PaintMaskWidth *float64 `yaml:"paint_mask_width,omitempty"`
	RustMaskWidth  *float64 `yaml:"rust_mask_width,omitempty"`
	BumpBlend      *float64 `yaml:"bump_blend,omitempty"`
	PaintRoughness *float64 `yaml:"paint_roughness,omitempty"`
	RustRoughness  *float64 `yaml:"rust_roughness,omitempty"`
}

func (e tuningEntry) tuning() material.Tuning {
	t := material.DefaultTuning()
	for _, f := range []struct {
		src *float64
		dst *float64
	}{
		{e.PaintMaskWidth, &t.PaintMaskWidth},
		{e.RustMaskWidth, &t.RustMaskWidth},
		{e.BumpBlend, &t.BumpBlend},
		{e.PaintRoughness, &t.PaintRoughness},
		{e.RustRoughness, &t.RustRoughness},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	return t
}

// entry mirrors Preset in YAML. Missing fields take the defaults of
// material.DefaultParameters.
type entry struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description,omitempty"`
	Kind           string   `yaml:"kind,omitempty"`
	Seed           *float64 `yaml:"seed,omitempty"`
	PaintColor     string   `yaml:"paint_color,omitempty"`
	PaintWorn      *float64 `yaml:"paint_worn,omitempty"`
	PaintLayer     *float64 `yaml:"paint_layer,omitempty"`
	MetalColor     string   `yaml:"metal_color,omitempty"`
	MetalRoughness *float64 `yaml:"metal_roughness,omitempty"`
	RustColor      string   `yaml:"rust_color,omitempty"`
	RustLayer      *float64 `yaml:"rust_layer,omitempty"`
}

// Load parses a YAML library. Every preset is validated; duplicate names,
// malformed colours and out of range values are rejected.
func Load(r io.Reader) (*Library, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}
	if len(doc.Presets) == 0 {
		return nil, fmt.Errorf("preset library is empty")
	}

	lib := &Library{index: make(map[string]int, len(doc.Presets)), tuning: material.DefaultTuning()}
	if doc.Tuning != nil {
		tuning := doc.Tuning.tuning()
		if err := tuning.Validate(); err != nil {
			return nil, err
		}
		lib.tuning = tuning
	}

	for _, e := range doc.Presets {
		p, err := e.preset()
		if err != nil {
			return nil, err
		}
		if _, dup := lib.index[p.Name]; dup {
			return nil, fmt.Errorf("duplicate preset %q", p.Name)
		}
		lib.index[p.Name] = len(lib.presets)
		lib.presets = append(lib.presets, p)
	}
	return lib, nil
}

// LoadFile loads a library from path.
func LoadFile(path string) (*Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open presets %s: %w", path, err)
	}
	defer f.Close()

	lib, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lib, nil
}

// LoadDefault loads the embedded stock library.
func LoadDefault() (*Library, error) {
	data, err := assets.PresetsFS.ReadFile(assets.DefaultPresets)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded presets: %w", err)
	}
	return Load(bytes.NewReader(data))
}

func (e entry) preset() (Preset, error) {
	if e.Name == "" {
		return Preset{}, fmt.Errorf("preset without name")
	}
	kind, err := material.ParseKind(e.Kind)
	if err != nil {
		return Preset{}, fmt.Errorf("preset %q: %w", e.Name, err)
	}

	p := material.DefaultParameters()
	for _, c := range []struct {
		hex string
		dst *mgl64.Vec3
	}{
		{e.PaintColor, &p.PaintColor},
		{e.MetalColor, &p.MetalColor},
		{e.RustColor, &p.RustColor},
	} {
		if c.hex == "" {
			continue
		}
		v, err := material.ParseHexColor(c.hex)
		if err != nil {
			return Preset{}, fmt.Errorf("preset %q: %w", e.Name, err)
		}
		*c.dst = v
	}
	for _, f := range []struct {
		src *float64
		dst *float64
	}{
		{e.Seed, &p.Seed},
		{e.PaintWorn, &p.PaintWorn},
		{e.PaintLayer, &p.PaintLayer},
		{e.MetalRoughness, &p.MetalRoughness},
		{e.RustLayer, &p.RustLayer},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}

	if err := p.Validate(); err != nil {
		return Preset{}, fmt.Errorf("preset %q: %w", e.Name, err)
	}
	return Preset{Name: e.Name, Description: e.Description, Kind: kind, Params: p}, nil
}

// Lookup returns the preset called name.
func (l *Library) Lookup(name string) (Preset, error) {
	i, ok := l.index[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w %q", ErrUnknown, name)
	}
	return l.presets[i], nil
}

// Names lists the presets in file order.
func (l *Library) Names() []string {
	names := make([]string, len(l.presets))
	for i, p := range l.presets {
		names[i] = p.Name
	}
	return names
}

// Presets returns a copy of all presets in file order.
func (l *Library) Presets() []Preset {
	return append([]Preset(nil), l.presets...)
}

// Tuning returns the look constants of the library.
func (l *Library) Tuning() material.Tuning { return l.tuning }

// WithSeed returns a copy of the library in which preset name uses seed.
func (l *Library) WithSeed(name string, seed float64) (*Library, error) {
	i, ok := l.index[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknown, name)
	}
	params := l.presets[i].Params.WithSeed(seed)
	if err := params.Validate(); err != nil {
		return nil, err
	}

	next := &Library{
		presets: l.Presets(),
		index:   l.index,
		tuning:  l.tuning,
	}
	next.presets[i].Params = params
	return next, nil
}

// Shader builds the shader of preset name on the given noise backend.
func (l *Library) Shader(name string, backend noise.Backend) (material.Shader, Preset, error) {
	p, err := l.Lookup(name)
	if err != nil {
		return nil, Preset{}, err
	}
	if p.Kind == material.KindStandard {
		return material.DefaultStandard(), p, nil
	}
	tuning := l.tuning
	e, err := material.NewEvaluator(p.Params, material.Options{Backend: backend, Tuning: &tuning})
	if err != nil {
		return nil, Preset{}, fmt.Errorf("preset %q: %w", name, err)
	}
	return e, p, nil
}

// Fingerprint identifies everything that affects the look of preset name:
// its kind, its parameters and the library tuning.
func (l *Library) Fingerprint(name string) (string, error) {
	p, err := l.Lookup(name)
	if err != nil {
		return "", err
	}
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%+v", p.Kind, p.Params.Fingerprint(), l.tuning)
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// Write encodes the library as YAML that Load accepts.
func (l *Library) Write(w io.Writer) error {
	f := func(v float64) *float64 { return &v }
	doc := document{Tuning: &tuningEntry{
		PaintMaskWidth: f(l.tuning.PaintMaskWidth),
		RustMaskWidth:  f(l.tuning.RustMaskWidth),
		BumpBlend:      f(l.tuning.BumpBlend),
		PaintRoughness: f(l.tuning.PaintRoughness),
		RustRoughness:  f(l.tuning.RustRoughness),
	}}
	for _, p := range l.presets {
		doc.Presets = append(doc.Presets, toEntry(p))
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode presets: %w", err)
	}
	return enc.Close()
}

func toEntry(p Preset) entry {
	f := func(v float64) *float64 { return &v }
	return entry{
		Name:           p.Name,
		Description:    p.Description,
		Kind:           string(p.Kind),
		Seed:           f(p.Params.Seed),
		PaintColor:     material.HexColor(p.Params.PaintColor),
		PaintWorn:      f(p.Params.PaintWorn),
		PaintLayer:     f(p.Params.PaintLayer),
		MetalColor:     material.HexColor(p.Params.MetalColor),
		MetalRoughness: f(p.Params.MetalRoughness),
		RustColor:      material.HexColor(p.Params.RustColor),
		RustLayer:      f(p.Params.RustLayer),
	}
}
