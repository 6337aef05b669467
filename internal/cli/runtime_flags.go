package cli

import (
	"fmt"

	"github.com/example/sdkscan/internal/config"
	"github.com/spf13/cobra"
)

// runtimeFlagSet tracks shared scan/watch/doctor flags before they are
// converted into config overrides.
type runtimeFlagSet struct {
	root           string
	ignore         string
	languages      string
	parallelism    int
	weakThreshold  float64
	mechanismBoost float64
	fileTimeoutMS  int
	registry       string
	formats        string
	outputDir      string
	summaryFile    string
	failOn         float64
}

func bindRuntimeFlags(cmd *cobra.Command, flags *runtimeFlagSet) {
	cmd.Flags().StringVar(&flags.root, "root", "", "Root directory to scan (overrides config)")
	cmd.Flags().StringVar(&flags.ignore, "ignore", "", "Comma-separated glob patterns to skip")
	cmd.Flags().StringVar(&flags.languages, "languages", "", "Comma-separated language allowlist (python,go,javascript,java,rust,ruby)")
	cmd.Flags().IntVar(&flags.parallelism, "parallelism", 0, fmt.Sprintf("Number of concurrent file workers (0 = host cores, max %d)", config.MaxParallelism))
	cmd.Flags().Float64Var(&flags.weakThreshold, "weak-threshold", 0, "Confidence cap for env-var-only detections")
	cmd.Flags().Float64Var(&flags.mechanismBoost, "mechanism-boost", 0, "Confidence lift factor per extra corroborating mechanism")
	cmd.Flags().IntVar(&flags.fileTimeoutMS, "file-timeout-ms", 0, "Per-file extraction timeout in milliseconds")
	cmd.Flags().StringVar(&flags.registry, "registry", "", "Path to a signature registry YAML (default: built-in catalog)")
	cmd.Flags().StringVar(&flags.formats, "formats", "", "Comma-separated output formats (json,table,bom)")
	cmd.Flags().StringVar(&flags.outputDir, "output-dir", "", "Directory for scan artifacts")
	cmd.Flags().StringVar(&flags.summaryFile, "summary-file", "", "Optional summary JSON output path")
	cmd.Flags().Float64Var(&flags.failOn, "fail-on", 0, "Exit nonzero when a detection reaches this confidence")
}

func (f runtimeFlagSet) toOverrides(cmd *cobra.Command) config.Overrides {
	ov := config.Overrides{}
	if cmd.Flags().Changed("root") {
		ov.Root = f.root
	}

	if cmd.Flags().Changed("ignore") {
		ov.Ignore = config.ParseList(f.ignore)
	}

	if cmd.Flags().Changed("languages") {
		ov.Languages = config.ParseList(f.languages)
	}

	if cmd.Flags().Changed("parallelism") {
		ov.Parallelism = f.parallelism
		ov.ParallelismSet = true
	}

	if cmd.Flags().Changed("weak-threshold") {
		value := f.weakThreshold
		ov.WeakThreshold = &value
	}

	if cmd.Flags().Changed("mechanism-boost") {
		value := f.mechanismBoost
		ov.MechanismBoost = &value
	}

	if cmd.Flags().Changed("file-timeout-ms") {
		ov.PerFileTimeoutMS = f.fileTimeoutMS
		ov.FileTimeoutSet = true
	}

	if cmd.Flags().Changed("registry") {
		ov.RegistryPath = f.registry
		ov.RegistryPathSet = true
	}

	if cmd.Flags().Changed("formats") {
		ov.Formats = config.ParseList(f.formats)
	}

	if cmd.Flags().Changed("output-dir") {
		ov.OutputDir = f.outputDir
	}

	if cmd.Flags().Changed("summary-file") {
		ov.SummaryFile = f.summaryFile
	}

	if cmd.Flags().Changed("fail-on") {
		value := f.failOn
		ov.FailOn = &value
	}

	return ov
}
