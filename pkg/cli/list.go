package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getmockd/wiretap/internal/id"
	"github.com/getmockd/wiretap/pkg/admin"
	"github.com/getmockd/wiretap/pkg/cli/internal/output"
)

var (
	listFilter string
	listLimit  int
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recorded requests, newest first",
	Example: `  # List everything
  wiretap list

  # Only requests whose URL or method contains "users"
  wiretap list --filter users

  # Only 404 responses
  wiretap list --filter 404

  # The ten most recent, as JSON
  wiretap list --limit 10 --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listLimit < 0 {
			return fmt.Errorf("--limit must not be negative")
		}
		rec, _, _, err := openRecorder(cmd)
		if err != nil {
			return err
		}
		defer rec.Close()

		records := rec.Filter(listFilter)
		if listLimit > 0 && len(records) > listLimit {
			records = records[:listLimit]
		}

		views := make([]admin.RecordView, 0, len(records))
		for _, r := range records {
			views = append(views, admin.NewRecordView(r))
		}

		out := cmd.OutOrStdout()
		return printResult(out, views, func() {
			if len(records) == 0 {
				fmt.Fprintln(out, "No requests recorded")
				return
			}
			tw := output.Table(out)
			fmt.Fprintln(tw, "ID\tMETHOD\tSTATUS\tDURATION\tSIZE\tPATH\tWHEN")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					id.Short(r.ID),
					r.Method,
					statusLabel(r),
					r.FormattedDuration(),
					bodySize(r.ResponseBody),
					r.ShortURL(),
					when(r.ObservedAt),
				)
			}
			_ = tw.Flush()
		})
	},
}

func init() {
	listCmd.Flags().StringVarP(&listFilter, "filter", "f", "", "Case-insensitive substring of the URL, method or status code")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Maximum number of requests to show (0 = all)")
	rootCmd.AddCommand(listCmd)
}
