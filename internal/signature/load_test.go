package signature

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validRegistryYAML = `
entries:
  - provider: stripe
    mechanism: sdk-import
    language: python
    pattern: {kind: prefix, value: stripe}
    weight: 0.8
  - provider: stripe
    mechanism: raw-http-endpoint
    pattern: {kind: substring, value: api.stripe.com}
    weight: 0.7
`

func TestLoadValidRegistry(t *testing.T) {
	reg, err := Load(strings.NewReader(validRegistryYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if reg.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", reg.Len())
	}

	// Omitted language defaults to any.
	if got := reg.Lookup(LanguageJava, MechanismRawHTTPEndpoint, "https://api.stripe.com"); len(got) != 1 {
		t.Fatalf("endpoint entry without language should apply to every language")
	}
}

func TestLoadRejectsDuplicateEntries(t *testing.T) {
	const dup = `
entries:
  - provider: x
    mechanism: sdk-import
    language: python
    pattern: {kind: prefix, value: xsdk}
    weight: 0.8
  - provider: x
    mechanism: sdk-import
    language: python
    pattern: {kind: prefix, value: xsdk}
    weight: 0.8
`
	_, err := Load(strings.NewReader(dup))
	var regErr *RegistryError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected RegistryError for duplicate entries, got %v", err)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load(strings.NewReader("entries: [not closed"))
	var regErr *RegistryError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected RegistryError for malformed YAML, got %v", err)
	}
}

func TestLoadRejectsEmptyRegistry(t *testing.T) {
	_, err := Load(strings.NewReader("entries: []"))
	if err == nil {
		t.Fatal("expected error for empty registry")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yml")
	if err := os.WriteFile(path, []byte(validRegistryYAML), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}

	if _, err := LoadFile(path); err != nil {
		t.Fatalf("load file: %v", err)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.yml")); err == nil {
		t.Fatal("expected error for missing registry file")
	}
}
