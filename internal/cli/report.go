package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/example/sdkscan/internal/events"
	"github.com/example/sdkscan/internal/report"
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	var inputPath string
	var format string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Re-render a stored scan report without rescanning",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" {
				return errors.New("--input is required")
			}

			data, err := os.ReadFile(inputPath)
			if err != nil {
				return err
			}

			rep, err := report.ParseJSON(data)
			if err != nil {
				return err
			}

			switch format {
			case "table":
				if err := rep.WriteTable(cmd.OutOrStdout()); err != nil {
					return err
				}
			case "json":
				if err := rep.WriteJSON(cmd.OutOrStdout()); err != nil {
					return err
				}
			case "bom":
				if err := rep.WriteBOM(cmd.OutOrStdout()); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unsupported format %s", format)
			}

			emitter := events.NewEmitter(cmd.ErrOrStderr())
			return emitter.Emit(events.Event{
				Type:    events.TypeReport,
				Message: "Report rendered",
				Fields: map[string]interface{}{
					"input":      inputPath,
					"format":     format,
					"detections": len(rep.Detections),
				},
			})
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "Path to a stored JSON scan report")
	cmd.Flags().StringVar(&format, "format", "table", "Render format: table, json, or bom")
	if err := cmd.MarkFlagRequired("input"); err != nil {
		panic(err)
	}

	return cmd
}
