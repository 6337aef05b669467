package cli

import (
	"fmt"

	"github.com/example/sdkscan/internal/signature"
	"github.com/spf13/cobra"
)

func newRegistryCmd() *cobra.Command {
	var registryPath string

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Validate and summarize a signature registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			var reg *signature.Registry
			var err error
			if registryPath != "" {
				reg, err = signature.LoadFile(registryPath)
			} else {
				reg, err = signature.Builtin()
			}
			if err != nil {
				return startupError(err)
			}

			source := registryPath
			if source == "" {
				source = "built-in catalog"
			}

			providers := reg.Providers()
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entries covering %d providers\n", source, reg.Len(), len(providers))
			for _, provider := range providers {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", provider)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&registryPath, "registry", "", "Path to a signature registry YAML (default: built-in catalog)")

	return cmd
}
