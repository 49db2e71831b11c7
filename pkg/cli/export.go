package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/getmockd/wiretap/pkg/codec"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the request log as JSON, YAML or curl commands",
	Example: `  # Versioned JSON collection to stdout
  wiretap export

  # Human-readable YAML to a file
  wiretap export --format yaml -o requests.yaml

  # One curl command per request
  wiretap export --format curl`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := codec.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		rec, _, _, err := openRecorder(cmd)
		if err != nil {
			return err
		}
		defer rec.Close()

		data, err := rec.Export(format)
		if err != nil {
			return fmt.Errorf("failed to export requests: %w", err)
		}

		if exportOutput == "" || exportOutput == "-" {
			_, err := cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(exportOutput, data, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", exportOutput, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d request(s) to %s\n", len(rec.Records()), exportOutput)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "F", "json", "Output format: json, yaml or curl")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to this file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}
