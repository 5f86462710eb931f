// Package assets embeds the default material presets.
package assets

import "embed"

// PresetsFS holds presets/*.yaml.
//
//go:embed presets/*.yaml
var PresetsFS embed.FS

// DefaultPresets is the path of the stock library inside PresetsFS.
const DefaultPresets = "presets/default.yaml"
