package cli

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/wiretap/internal/id"
	"github.com/getmockd/wiretap/pkg/admin"
	"github.com/getmockd/wiretap/pkg/cli/internal/parse"
)

var (
	fetchMethod  string
	fetchHeaders []string
	fetchData    string
	fetchTimeout time.Duration
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Send an HTTP request and record it",
	Long: `Send an HTTP request through the default transport with recording enabled,
print the response body, and leave the exchange in the request log.`,
	Example: `  wiretap fetch https://httpbin.org/get
  wiretap fetch -X POST -H 'Content-Type: application/json' -d '{"a":1}' https://httpbin.org/post`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		header, err := parse.Header(fetchHeaders)
		if err != nil {
			return err
		}
		method := fetchMethod
		if method == "" {
			method = http.MethodGet
			if fetchData != "" {
				method = http.MethodPost
			}
		}

		rec, _, _, err := openRecorder(cmd)
		if err != nil {
			return err
		}
		defer rec.Close()
		if err := rec.Enable(); err != nil {
			return err
		}
		defer rec.Disable()

		var body io.Reader
		if fetchData != "" {
			body = strings.NewReader(fetchData)
		}
		req, err := http.NewRequestWithContext(cmd.Context(), method, args[0], body)
		if err != nil {
			return fmt.Errorf("invalid request: %w", err)
		}
		req.Header = header

		client := &http.Client{Timeout: fetchTimeout}
		resp, err := client.Do(req)
		var respBody []byte
		if err == nil {
			respBody, err = io.ReadAll(resp.Body)
			_ = resp.Body.Close()
		}
		requestErr := err

		if err := syncRecorder(cmd.Context(), rec); err != nil {
			return err
		}
		if requestErr != nil {
			return fmt.Errorf("request failed: %w", requestErr)
		}

		out := cmd.OutOrStdout()
		records := rec.Records()
		if jsonOutput {
			for _, r := range records {
				if r.URL == req.URL.String() {
					return printResult(out, admin.NewRecordView(r), nil)
				}
			}
			return printResult(out, map[string]any{"recorded": false, "status": resp.StatusCode}, nil)
		}

		recorded := "not recorded"
		for _, r := range records {
			if r.URL == req.URL.String() {
				recorded = "recorded as " + id.Short(r.ID)
				break
			}
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s -> %s (%s)\n", method, req.URL, resp.Status, recorded)
		_, err = out.Write(respBody)
		return err
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchMethod, "request", "X", "", "HTTP method (default GET, or POST with --data)")
	fetchCmd.Flags().StringArrayVarP(&fetchHeaders, "header", "H", nil, "Request header as 'Name: value' (repeatable)")
	fetchCmd.Flags().StringVarP(&fetchData, "data", "d", "", "Request body")
	fetchCmd.Flags().DurationVar(&fetchTimeout, "timeout", 30*time.Second, "Request timeout")
	rootCmd.AddCommand(fetchCmd)
}
