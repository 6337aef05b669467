package signature

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed builtin.yaml
var builtinYAML []byte

// registryFile is the on-disk YAML layout of a signature registry.
type registryFile struct {
	Entries []Entry `yaml:"entries"`
}

// Load parses a YAML registry document and validates it. Any malformed
// entry rejects the whole registry with a RegistryError.
func Load(r io.Reader) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, registryErrorf("read: %v", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, registryErrorf("parse: %v", err)
	}
	if len(file.Entries) == 0 {
		return nil, registryErrorf("no entries defined")
	}

	return New(file.Entries)
}

// LoadFile loads a registry from path.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, registryErrorf("open %s: %v", path, err)
	}
	defer f.Close()

	reg, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Builtin returns the embedded default registry. The embedded catalog is
// validated by tests, so a failure here means a broken build.
func Builtin() (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(builtinYAML, &file); err != nil {
		return nil, registryErrorf("builtin registry: %v", err)
	}
	return New(file.Entries)
}
