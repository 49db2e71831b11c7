package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/getmockd/wiretap/pkg/admin"
	"github.com/getmockd/wiretap/pkg/export"
	"github.com/getmockd/wiretap/pkg/recording"
)

var showCurl bool

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one recorded request in full",
	Long: `Show one recorded request in full. The id may be the short id printed by
'wiretap list' or any unique prefix of it. Without an id the newest request
is shown.`,
	Example: `  wiretap show 3f2a9c1b
  wiretap show --curl`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, _, _, err := openRecorder(cmd)
		if err != nil {
			return err
		}
		defer rec.Close()

		ref := ""
		if len(args) == 1 {
			ref = args[0]
		}
		r, err := findRecord(rec, ref)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if showCurl {
			_, err := fmt.Fprintln(out, export.AsCurl(r))
			return err
		}
		return printResult(out, admin.NewRecordView(r), func() {
			printRecord(out, r)
		})
	},
}

func printRecord(w io.Writer, r recording.Record) {
	fmt.Fprintf(w, "%s %s\n", r.Method, r.URL)
	fmt.Fprintf(w, "ID:       %s\n", r.ID)
	fmt.Fprintf(w, "Observed: %s (%s)\n", r.ObservedAt.Local().Format("2006-01-02 15:04:05.000"), when(r.ObservedAt))
	fmt.Fprintf(w, "Status:   %s\n", statusLabel(r))
	fmt.Fprintf(w, "Duration: %s\n", r.FormattedDuration())
	if r.ErrorText != nil {
		fmt.Fprintf(w, "Error:    %s\n", *r.ErrorText)
	}

	fmt.Fprintln(w, "\nRequest Headers:")
	printHeaders(w, r.RequestHeaders)
	if body, ok := r.RequestBodyString(); ok {
		fmt.Fprintf(w, "\nRequest Body (%s):\n%s\n", bodySize(r.RequestBody), body)
	}

	if r.IsPending() {
		return
	}
	fmt.Fprintln(w, "\nResponse Headers:")
	printHeaders(w, r.ResponseHeaders)
	if body, ok := r.ResponseBodyString(); ok {
		fmt.Fprintf(w, "\nResponse Body (%s):\n%s\n", bodySize(r.ResponseBody), body)
	}
}

func printHeaders(w io.Writer, h map[string]string) {
	if len(h) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %s\n", name, h[name])
	}
}

func init() {
	showCmd.Flags().BoolVar(&showCurl, "curl", false, "Print the request as a curl command")
	rootCmd.AddCommand(showCmd)
}
