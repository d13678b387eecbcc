package rules

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/*.yaml
var embeddedPresets embed.FS

// Preset is a named, reusable search query.
type Preset struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Query       Query  `yaml:"query" json:"query"`
}

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

// PresetLoader loads presets from the embedded defaults and an optional directory.
type PresetLoader struct {
	dir string
}

// NewPresetLoader creates a loader. An empty dir loads only the defaults.
func NewPresetLoader(dir string) *PresetLoader {
	return &PresetLoader{dir: dir}
}

// Load returns all presets by name. Presets from the directory replace
// defaults of the same name.
func (l *PresetLoader) Load() (map[string]Preset, error) {
	presets := make(map[string]Preset)

	entries, err := embeddedPresets.ReadDir("defaults")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := embeddedPresets.ReadFile("defaults/" + entry.Name())
		if err != nil {
			return nil, err
		}
		if err := mergePresets(presets, data); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", entry.Name(), err)
		}
	}

	if l.dir == "" {
		return presets, nil
	}

	err = filepath.Walk(l.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		data, err := os.ReadFile(path) //nolint:gosec // Path comes from config
		if err != nil {
			return err
		}
		if err := mergePresets(presets, data); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading presets: %w", err)
	}

	return presets, nil
}

// Get returns a single preset by name.
func (l *PresetLoader) Get(name string) (Preset, error) {
	presets, err := l.Load()
	if err != nil {
		return Preset{}, err
	}
	p, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset: %s", name)
	}
	return p, nil
}

// Names returns the sorted names of the given presets.
func Names(presets map[string]Preset) []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func mergePresets(into map[string]Preset, data []byte) error {
	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}
	for _, p := range file.Presets {
		if p.Name == "" {
			return fmt.Errorf("preset without name")
		}
		into[p.Name] = p
	}
	return nil
}
