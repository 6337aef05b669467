package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/sdkscan/internal/config"
	"github.com/example/sdkscan/internal/events"
	"github.com/example/sdkscan/internal/report"
	"github.com/example/sdkscan/internal/scan"
	"github.com/example/sdkscan/internal/walk"
	"github.com/spf13/cobra"
)

func newScanCmd(loader *config.Loader) *cobra.Command {
	flags := &runtimeFlagSet{}
	var verbose bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a source tree for third-party provider usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := flags.toOverrides(cmd)
			cfg, err := loader.Load(overrides)
			if err != nil {
				return startupError(err)
			}

			if err := cfg.Validate(); err != nil {
				return startupError(err)
			}

			scanner, err := buildScanner(cfg)
			if err != nil {
				return err
			}

			emitter := events.NewEmitter(cmd.ErrOrStderr())
			emitter.SetVerbose(verbose)
			scanner.OnSkip = func(path string, reason scan.SkipReason) {
				emitter.FileSkipped(path, string(reason))
			}

			if err := emitter.Emit(events.Event{
				Type:    events.TypeScanStart,
				Message: "Starting scan",
				Fields:  map[string]interface{}{"root": cfg.Root, "parallelism": cfg.Parallelism},
			}); err != nil {
				return err
			}

			source := walk.DirSource{Root: cfg.Root, Ignore: cfg.Ignore}
			rep, err := scanner.Scan(cmd.Context(), cfg.Root, source)
			if err != nil {
				return err
			}

			artifacts, err := writeArtifacts(cmd.OutOrStdout(), cfg, rep)
			if err != nil {
				return err
			}
			for _, artifact := range artifacts {
				if err := emitter.Emit(events.Event{
					Type:   events.TypeArtifactWritten,
					Fields: map[string]interface{}{"path": artifact},
				}); err != nil {
					return err
				}
			}

			if cfg.SummaryFile != "" {
				if err := writeScanSummary(cfg.SummaryFile, cfg, rep, artifacts); err != nil {
					return err
				}
			}

			if err := emitter.Emit(events.Event{
				Type:    events.TypeScanFinished,
				Message: "Scan complete",
				Fields: map[string]interface{}{
					"detections": len(rep.Detections),
					"scanned":    rep.ScannedFileCount,
					"skipped":    rep.SkippedFileCount,
				},
			}); err != nil {
				return err
			}

			if cfg.FailOn >= 0 {
				if n := countAtOrAbove(rep, cfg.FailOn); n > 0 {
					return &ExitError{
						Code: ExitDetections,
						Err:  fmt.Errorf("%d detections at or above confidence %.2f", n, cfg.FailOn),
					}
				}
			}

			return nil
		},
	}

	bindRuntimeFlags(cmd, flags)
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Emit per-file skip events")

	return cmd
}

// writeArtifacts renders the report in each requested format. The table
// format goes to stdout; json and bom become timestamped files under the
// output directory.
func writeArtifacts(stdout io.Writer, cfg config.RuntimeConfig, rep report.ScanReport) ([]string, error) {
	timestamp := time.Now().UTC().Format("20060102_150405")
	var artifacts []string

	for _, format := range cfg.Formats {
		format = strings.ToLower(strings.TrimSpace(format))
		switch format {
		case "":
			continue
		case "table":
			if err := rep.WriteTable(stdout); err != nil {
				return nil, err
			}
		case "json", "bom":
			if err := ensureOutputDir(cfg.OutputDir); err != nil {
				return nil, err
			}
			path := filepath.Join(cfg.OutputDir, artifactName(timestamp, format))
			if err := writeArtifactFile(path, format, rep); err != nil {
				return nil, err
			}
			artifacts = append(artifacts, path)
		default:
			return nil, fmt.Errorf("unsupported format %s", format)
		}
	}

	return artifacts, nil
}

func artifactName(timestamp, format string) string {
	if format == "bom" {
		return fmt.Sprintf("scan_%s.bom.json", timestamp)
	}
	return fmt.Sprintf("scan_%s.json", timestamp)
}

func writeArtifactFile(path, format string, rep report.ScanReport) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		err = rep.WriteJSON(file)
	case "bom":
		err = rep.WriteBOM(file)
	}

	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	return err
}

func writeScanSummary(path string, cfg config.RuntimeConfig, rep report.ScanReport, artifacts []string) error {
	summary := map[string]interface{}{
		"generatedAt": time.Now().UTC().Format(time.RFC3339),
		"root":        cfg.Root,
		"detections":  len(rep.Detections),
		"scanned":     rep.ScannedFileCount,
		"skipped":     rep.SkippedFileCount,
		"artifacts":   artifacts,
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}

	if err := ensureOutputDir(filepath.Dir(path)); err != nil {
		return err
	}

	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func countAtOrAbove(rep report.ScanReport, threshold float64) int {
	count := 0
	for _, d := range rep.Detections {
		if d.Confidence >= threshold {
			count++
		}
	}
	return count
}
