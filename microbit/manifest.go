package microbit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

// A toml (or yaml) description of a set of files to put on the filesystem
type Manifest struct {
	BaseDir string          `toml:"basedir" yaml:"basedir"`
	Files   []ManifestEntry `toml:"file" yaml:"file"`
}

type ManifestEntry struct {
	Name string `toml:"name" yaml:"name"`
	Path string `toml:"path" yaml:"path"`
	Text string `toml:"text" yaml:"text"`
}

func ParseManifest(data []byte) (*Manifest, error) {
	var manifest Manifest
	err := toml.Unmarshal(data, &manifest)
	if err != nil {
		return nil, fmt.Errorf("Couldn't parse manifest: %w", err)
	}
	return &manifest, nil
}

func ParseYamlManifest(data []byte) (*Manifest, error) {
	var manifest Manifest
	err := yaml.Unmarshal(data, &manifest)
	if err != nil {
		return nil, fmt.Errorf("Couldn't parse yaml manifest: %w", err)
	}
	return &manifest, nil
}

// Whether the manifest at this path is yaml rather than toml
func isYamlManifest(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Load every file the manifest names. Relative paths are taken from dir
// (usually the directory holding the manifest), then basedir.
func (m *Manifest) LoadFiles(dir string) ([]*File, error) {
	base := m.BaseDir
	if !filepath.IsAbs(base) {
		base = filepath.Join(dir, base)
	}
	result := make([]*File, 0, len(m.Files))
	for i, entry := range m.Files {
		if (entry.Path == "") == (entry.Text == "") {
			return nil, fmt.Errorf("Manifest entry %d must have exactly one of path or text", i+1)
		}
		name := entry.Name
		var content []byte
		if entry.Path != "" {
			path := entry.Path
			if !filepath.IsAbs(path) {
				path = filepath.Join(base, path)
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("Manifest entry %d: %w", i+1, err)
			}
			content = raw
			if name == "" {
				name = filepath.Base(path)
			}
		} else {
			content = []byte(entry.Text)
		}
		file, err := NewFile(name, content)
		if err != nil {
			return nil, fmt.Errorf("Manifest entry %d: %w", i+1, err)
		}
		result = append(result, file)
	}
	return result, nil
}

// Parse the manifest at path and load its files relative to it
func LoadManifestFiles(path string) ([]*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	parse := ParseManifest
	if isYamlManifest(path) {
		parse = ParseYamlManifest
	}
	manifest, err := parse(data)
	if err != nil {
		return nil, err
	}
	return manifest.LoadFiles(filepath.Dir(path))
}
