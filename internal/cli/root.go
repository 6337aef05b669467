package cli

import (
	"github.com/example/sdkscan/internal/config"
	"github.com/spf13/cobra"
)

const version = "0.3.0"

// Execute builds the root command tree and runs the CLI.
func Execute() error {
	loader := &config.Loader{ConfigPath: config.DefaultConfigPath}
	rootOpts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "sdkscan",
		Short:         "Detect third-party SaaS providers a source tree integrates with",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	rootCmd.SetVersionTemplate("sdkscan version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&rootOpts.ConfigPath, "config", config.DefaultConfigPath, "Path to sdkscan.yml (optional)")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if rootOpts.ConfigPath != "" {
			loader.ConfigPath = rootOpts.ConfigPath
		}
	}

	rootCmd.AddCommand(
		newScanCmd(loader),
		newReportCmd(),
		newRegistryCmd(),
		newWatchCmd(loader),
		newDoctorCmd(loader),
	)

	return rootCmd.Execute()
}

type rootOptions struct {
	ConfigPath string
}
