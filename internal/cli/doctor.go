package cli

import (
	"fmt"
	"os"
	"runtime"
	"sort"

	"github.com/example/sdkscan/internal/config"
	"github.com/example/sdkscan/internal/evidence"
	"github.com/spf13/cobra"
)

type doctorCheck struct {
	Name   string
	Status string // "✓", "✗", or "⊘"
	Detail string
	Error  error
}

func newDoctorCmd(loader *config.Loader) *cobra.Command {
	flags := &runtimeFlagSet{}

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the configuration, scan root, and signature registry",
		Long: `The doctor subcommand validates the sdkscan environment:
- configuration validity
- scan root existence and readability
- signature registry load and provider coverage
- supported extractor languages
- output directory writability`,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := flags.toOverrides(cmd)
			cfg, err := loader.Load(overrides)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			checks := runDoctorChecks(cfg)
			printDoctorReport(cmd, checks)

			for _, check := range checks {
				if check.Error != nil {
					return fmt.Errorf("doctor checks failed")
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), "\n✓ All checks passed. System is ready.")
			return nil
		},
	}

	bindRuntimeFlags(cmd, flags)

	return cmd
}

func runDoctorChecks(cfg config.RuntimeConfig) []doctorCheck {
	checks := []doctorCheck{
		{Name: "Go Runtime", Status: "✓", Detail: fmt.Sprintf("Version %s", runtime.Version())},
		checkConfiguration(cfg),
		checkScanRoot(cfg.Root),
		checkRegistry(cfg),
		checkLanguages(),
		checkOutputDirectory(cfg.OutputDir),
	}
	return checks
}

func checkConfiguration(cfg config.RuntimeConfig) doctorCheck {
	if err := cfg.Validate(); err != nil {
		return doctorCheck{
			Name:   "Configuration",
			Status: "✗",
			Detail: "Invalid configuration",
			Error:  err,
		}
	}

	return doctorCheck{
		Name:   "Configuration",
		Status: "✓",
		Detail: fmt.Sprintf("root=%s formats=%v", cfg.Root, cfg.Formats),
	}
}

func checkScanRoot(root string) doctorCheck {
	info, err := os.Stat(root)
	if err != nil {
		return doctorCheck{
			Name:   "Scan Root",
			Status: "✗",
			Detail: root,
			Error:  err,
		}
	}
	if !info.IsDir() {
		return doctorCheck{
			Name:   "Scan Root",
			Status: "✗",
			Detail: root,
			Error:  fmt.Errorf("%s is not a directory", root),
		}
	}
	return doctorCheck{
		Name:   "Scan Root",
		Status: "✓",
		Detail: root,
	}
}

func checkRegistry(cfg config.RuntimeConfig) doctorCheck {
	reg, err := loadRegistry(cfg)
	if err != nil {
		return doctorCheck{
			Name:   "Signature Registry",
			Status: "✗",
			Detail: "Failed to load",
			Error:  err,
		}
	}

	source := cfg.RegistryPath
	if source == "" {
		source = "built-in"
	}
	return doctorCheck{
		Name:   "Signature Registry",
		Status: "✓",
		Detail: fmt.Sprintf("%s: %d entries, %d providers", source, reg.Len(), len(reg.Providers())),
	}
}

func checkLanguages() doctorCheck {
	languages := evidence.NewDispatch().Languages()
	names := make([]string, 0, len(languages))
	for _, lang := range languages {
		names = append(names, string(lang))
	}
	sort.Strings(names)

	return doctorCheck{
		Name:   "Extractor Languages",
		Status: "✓",
		Detail: fmt.Sprintf("%v", names),
	}
}

func checkOutputDirectory(outputDir string) doctorCheck {
	if err := ensureOutputDir(outputDir); err != nil {
		return doctorCheck{
			Name:   "Output Directory",
			Status: "✗",
			Detail: outputDir,
			Error:  err,
		}
	}

	return doctorCheck{
		Name:   "Output Directory",
		Status: "✓",
		Detail: outputDir,
	}
}

func printDoctorReport(cmd *cobra.Command, checks []doctorCheck) {
	fmt.Fprintln(cmd.OutOrStdout(), "Running environment diagnostics...")

	for _, check := range checks {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %-30s %s\n", check.Status, check.Name+":", check.Detail)
		if check.Error != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "   Error: %v\n", check.Error)
		}
	}
}
