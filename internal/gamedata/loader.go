package gamedata

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed data/default.yaml
var defaultCatalog []byte

// Parse builds a catalog from YAML.
func Parse(b []byte) (*Memory, error) {
	var data Data
	if err := yaml.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return NewMemory(data)
}

// LoadFile builds a catalog from a YAML file.
func LoadFile(path string) (*Memory, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(b)
}

// Default returns the embedded starter catalog.
func Default() (*Memory, error) {
	return Parse(defaultCatalog)
}

// Load returns the catalog at path, or the embedded one when path is empty.
func Load(path string) (*Memory, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}
