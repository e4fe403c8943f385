package transcoder

import (
	"sort"
	"strings"
)

// DefaultPresetName is used when no preset, or an unknown one, is configured.
const DefaultPresetName = "4K"

// Preset is a named bundle of HandBrakeCLI arguments.
type Preset struct {
	Name string
	Args []string
}

// Presets maps preset names to their argument bundles.
var Presets = map[string]Preset{
	"4K": {
		Name: "4K",
		Args: []string{
			"--preset", "Fast 2160p60 4K HEVC",
			"--encoder", "x265",
			"--quality", "24",
			"--optimize",
		},
	},
	"1080p": {
		Name: "1080p",
		Args: []string{
			"--preset", "Fast 1080p30",
			"--optimize",
			"--encoder", "x264",
			"--quality", "22",
		},
	},
}

// ResolvePreset returns the preset for name, matched case-insensitively.
// Unknown or empty names return the default preset and false.
func ResolvePreset(name string) (Preset, bool) {
	name = strings.TrimSpace(name)
	for key, preset := range Presets {
		if strings.EqualFold(key, name) {
			return preset, true
		}
	}
	return Presets[DefaultPresetName], false
}

// PresetNames returns the known preset names in lexical order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
