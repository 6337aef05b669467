package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "sdkscan.yml"

	MaxParallelism = 128

	envRoot           = "SDKSCAN_ROOT"
	envIgnore         = "SDKSCAN_IGNORE"
	envLanguages      = "SDKSCAN_LANGUAGES"
	envParallelism    = "SDKSCAN_PARALLELISM"
	envWeakThreshold  = "SDKSCAN_WEAK_THRESHOLD"
	envMechanismBoost = "SDKSCAN_MECHANISM_BOOST"
	envFileTimeoutMS  = "SDKSCAN_FILE_TIMEOUT_MS"
	envRegistry       = "SDKSCAN_REGISTRY"
	envFormats        = "SDKSCAN_FORMATS"
	envOutputDir      = "SDKSCAN_OUTPUT_DIR"
	envSummaryFile    = "SDKSCAN_SUMMARY_FILE"
	envFailOn         = "SDKSCAN_FAIL_ON"
)

// Loader merges configuration coming from files, environment variables, and
// CLI flags, in that order of increasing precedence.
type Loader struct {
	ConfigPath string
}

// RuntimeConfig contains the fully merged settings required by sub-commands.
type RuntimeConfig struct {
	Root             string
	Ignore           []string
	Languages        []string
	Parallelism      int
	WeakThreshold    float64
	MechanismBoost   float64
	PerFileTimeoutMS int
	RegistryPath     string
	Formats          []string
	OutputDir        string
	SummaryFile      string
	// FailOn is the confidence at or above which the scan exits nonzero.
	// Negative disables the gate.
	FailOn float64
}

// Overrides captures values coming from a config file, env vars, or flags.
// Pointer and *Set fields distinguish "unset" from zero values.
type Overrides struct {
	Root             string
	Ignore           []string
	Languages        []string
	Parallelism      int
	ParallelismSet   bool
	WeakThreshold    *float64
	MechanismBoost   *float64
	PerFileTimeoutMS int
	FileTimeoutSet   bool
	RegistryPath     string
	RegistryPathSet  bool
	Formats          []string
	OutputDir        string
	SummaryFile      string
	FailOn           *float64
}

// DefaultRuntimeConfig returns the baseline configuration.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		Root:             ".",
		WeakThreshold:    0.4,
		MechanismBoost:   0.3,
		PerFileTimeoutMS: 5000,
		Formats:          []string{"table"},
		OutputDir:        "scan-results",
		FailOn:           -1,
	}
}

// Load resolves the final runtime configuration.
func (l Loader) Load(override Overrides) (RuntimeConfig, error) {
	cfg := DefaultRuntimeConfig()
	path := l.ConfigPath
	if path == "" {
		path = DefaultConfigPath
	}

	if fileExists(path) {
		fileOv, err := loadFromFile(path)
		if err != nil {
			return cfg, err
		}
		cfg.apply(fileOv)
	}

	cfg.apply(overridesFromEnv())
	cfg.apply(override)

	return cfg, nil
}

// Validate ensures the config is usable before a scan starts.
func (c RuntimeConfig) Validate() error {
	if c.Root == "" {
		return errors.New("scan root cannot be empty")
	}

	if c.Parallelism < 0 || c.Parallelism > MaxParallelism {
		return fmt.Errorf("parallelism must be between 0 and %d (got %d)", MaxParallelism, c.Parallelism)
	}

	if c.WeakThreshold <= 0 || c.WeakThreshold > 1 {
		return fmt.Errorf("weakThreshold must be in (0,1] (got %v)", c.WeakThreshold)
	}

	if c.MechanismBoost <= 0 || c.MechanismBoost > 1 {
		return fmt.Errorf("mechanismBoost must be in (0,1] (got %v)", c.MechanismBoost)
	}

	if c.PerFileTimeoutMS < 1 {
		return fmt.Errorf("perFileTimeoutMs must be positive (got %d)", c.PerFileTimeoutMS)
	}

	if len(c.Formats) == 0 {
		return errors.New("at least one output format must be specified")
	}
	for _, f := range c.Formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "json", "table", "bom":
		default:
			return fmt.Errorf("unsupported format %q (expected json, table, or bom)", f)
		}
	}

	return nil
}

func (c *RuntimeConfig) apply(src Overrides) {
	if src.Root != "" {
		c.Root = src.Root
	}

	if len(src.Ignore) > 0 {
		c.Ignore = cleanList(src.Ignore)
	}

	if len(src.Languages) > 0 {
		c.Languages = cleanList(src.Languages)
	}

	if src.ParallelismSet {
		c.Parallelism = src.Parallelism
	}

	if src.WeakThreshold != nil {
		c.WeakThreshold = *src.WeakThreshold
	}

	if src.MechanismBoost != nil {
		c.MechanismBoost = *src.MechanismBoost
	}

	if src.FileTimeoutSet {
		c.PerFileTimeoutMS = src.PerFileTimeoutMS
	}

	if src.RegistryPathSet {
		c.RegistryPath = src.RegistryPath
	}

	if len(src.Formats) > 0 {
		c.Formats = cleanList(src.Formats)
	}

	if src.OutputDir != "" {
		c.OutputDir = src.OutputDir
	}

	if src.SummaryFile != "" {
		c.SummaryFile = src.SummaryFile
	}

	if src.FailOn != nil {
		c.FailOn = *src.FailOn
	}
}

func loadFromFile(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Overrides{}, err
	}

	type rawConfig struct {
		Root             string     `yaml:"root"`
		Ignore           stringList `yaml:"ignore"`
		Languages        stringList `yaml:"languages"`
		Parallelism      *int       `yaml:"parallelism"`
		WeakThreshold    *float64   `yaml:"weakThreshold"`
		MechanismBoost   *float64   `yaml:"mechanismBoost"`
		PerFileTimeoutMS *int       `yaml:"perFileTimeoutMs"`
		Registry         *string    `yaml:"registry"`
		Formats          stringList `yaml:"formats"`
		OutputDir        string     `yaml:"outputDir"`
		SummaryFile      string     `yaml:"summaryFile"`
		FailOn           *float64   `yaml:"failOn"`
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Overrides{}, fmt.Errorf("%s: %w", path, err)
	}

	over := Overrides{
		Root:        raw.Root,
		Ignore:      raw.Ignore,
		Languages:   raw.Languages,
		Formats:     raw.Formats,
		OutputDir:   raw.OutputDir,
		SummaryFile: raw.SummaryFile,
	}

	if raw.Parallelism != nil {
		over.Parallelism = *raw.Parallelism
		over.ParallelismSet = true
	}
	if raw.PerFileTimeoutMS != nil {
		over.PerFileTimeoutMS = *raw.PerFileTimeoutMS
		over.FileTimeoutSet = true
	}
	if raw.Registry != nil {
		over.RegistryPath = *raw.Registry
		over.RegistryPathSet = true
	}
	over.WeakThreshold = raw.WeakThreshold
	over.MechanismBoost = raw.MechanismBoost
	over.FailOn = raw.FailOn

	return over, nil
}

func overridesFromEnv() Overrides {
	ov := Overrides{}

	if value := os.Getenv(envRoot); value != "" {
		ov.Root = value
	}

	if value := os.Getenv(envIgnore); value != "" {
		ov.Ignore = ParseList(value)
	}

	if value := os.Getenv(envLanguages); value != "" {
		ov.Languages = ParseList(value)
	}

	if value := os.Getenv(envParallelism); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			ov.Parallelism = parsed
			ov.ParallelismSet = true
		}
	}

	if value := os.Getenv(envWeakThreshold); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			ov.WeakThreshold = &parsed
		}
	}

	if value := os.Getenv(envMechanismBoost); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			ov.MechanismBoost = &parsed
		}
	}

	if value := os.Getenv(envFileTimeoutMS); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			ov.PerFileTimeoutMS = parsed
			ov.FileTimeoutSet = true
		}
	}

	if value := os.Getenv(envRegistry); value != "" {
		ov.RegistryPath = value
		ov.RegistryPathSet = true
	}

	if value := os.Getenv(envFormats); value != "" {
		ov.Formats = ParseList(value)
	}

	if value := os.Getenv(envOutputDir); value != "" {
		ov.OutputDir = value
	}

	if value := os.Getenv(envSummaryFile); value != "" {
		ov.SummaryFile = value
	}

	if value := os.Getenv(envFailOn); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			ov.FailOn = &parsed
		}
	}

	return ov
}

// ParseList turns comma or newline separated input into individual values.
func ParseList(input string) []string {
	if input == "" {
		return nil
	}

	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}

	parts := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	return cleanList(parts)
}

func cleanList(values []string) []string {
	var out []string
	for _, v := range values {
		candidate := strings.TrimSpace(v)
		if candidate != "" {
			out = append(out, candidate)
		}
	}
	return out
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// stringList enables YAML fields that can be specified as a scalar or
// sequence.
type stringList []string

func (t *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var out []string
		for _, node := range value.Content {
			out = append(out, strings.TrimSpace(node.Value))
		}
		*t = cleanList(out)
	case yaml.ScalarNode:
		*t = ParseList(value.Value)
	default:
		return fmt.Errorf("unsupported YAML type for list field")
	}
	return nil
}
