package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/example/sdkscan/internal/aggregate"
	"github.com/example/sdkscan/internal/config"
	"github.com/example/sdkscan/internal/evidence"
	"github.com/example/sdkscan/internal/scan"
	"github.com/example/sdkscan/internal/signature"
)

// Exit codes surfaced through ExitError when a command needs something other
// than the plain success/failure pair.
const (
	// ExitDetections signals the scan completed and the fail-on policy
	// matched at least one detection.
	ExitDetections = 1
	// ExitStartup signals the scan could not start at all: invalid root or
	// unloadable registry.
	ExitStartup = 2
)

// ExitError carries a specific process exit code up to main.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

func startupError(err error) error {
	return &ExitError{Code: ExitStartup, Err: err}
}

func ensureOutputDir(path string) error {
	if path == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	return os.MkdirAll(path, 0o755)
}

// loadRegistry resolves the signature catalog for cfg: an explicit path, or
// the built-in catalog.
func loadRegistry(cfg config.RuntimeConfig) (*signature.Registry, error) {
	if cfg.RegistryPath != "" {
		return signature.LoadFile(cfg.RegistryPath)
	}
	return signature.Builtin()
}

// buildScanner validates the root, loads the registry, and assembles the
// pipeline. All failures here mean the scan could not start.
func buildScanner(cfg config.RuntimeConfig) (*scan.Scanner, error) {
	info, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, startupError(fmt.Errorf("invalid scan root %s: %w", cfg.Root, err))
	}
	if !info.IsDir() {
		return nil, startupError(fmt.Errorf("scan root %s is not a directory", cfg.Root))
	}

	registry, err := loadRegistry(cfg)
	if err != nil {
		return nil, startupError(err)
	}

	scanner := &scan.Scanner{
		Registry:       registry,
		Dispatch:       evidence.NewDispatch(),
		Parallelism:    cfg.Parallelism,
		PerFileTimeout: time.Duration(cfg.PerFileTimeoutMS) * time.Millisecond,
		Aggregate: aggregate.Options{
			Boost:         cfg.MechanismBoost,
			WeakThreshold: cfg.WeakThreshold,
		},
	}

	if len(cfg.Languages) > 0 {
		scanner.Languages = map[signature.Language]bool{}
		for _, lang := range cfg.Languages {
			scanner.Languages[signature.Language(lang)] = true
		}
	}

	return scanner, nil
}
