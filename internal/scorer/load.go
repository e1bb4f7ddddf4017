package scorer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Descriptor declares one scorer in a scorer file.
type Descriptor struct {
	Type  string `yaml:"type" json:"type"`
	Class string `yaml:"class" json:"class"`
	// Module is accepted for compatibility with older scorer files and ignored;
	// classes are resolved through Register only.
	Module   string `yaml:"module,omitempty" json:"module,omitempty"`
	InitArgs Args   `yaml:"init_args,omitempty" json:"init_args,omitempty"`
}

// File is the top level of a scorer file.
type File struct {
	Scorers []Descriptor `yaml:"scorers" json:"scorers"`
}

// Parse decodes a scorer file body. JSON is accepted as a subset of YAML.
func Parse(data []byte) ([]Descriptor, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &ConfigurationError{Msg: "malformed scorer file", Err: err}
	}
	if f.Scorers == nil {
		return nil, configErrorf("scorer file has no \"scorers\" list")
	}
	for i, d := range f.Scorers {
		if d.Type == "" || d.Class == "" {
			return nil, configErrorf("scorers[%d]: \"type\" and \"class\" are required", i)
		}
	}
	return f.Scorers, nil
}

// LoadFile reads the descriptors from a .json, .yaml or .yml file.
func LoadFile(path string) ([]Descriptor, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
	default:
		return nil, configErrorf("scorer file %s must be .json, .yaml or .yml", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Msg: fmt.Sprintf("read scorer file %s", path), Err: err}
	}
	return Parse(data)
}

// Load reads a scorer file and builds its Registry.
func Load(path string, deps Deps) (*Registry, error) {
	descs, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return Build(descs, deps)
}
