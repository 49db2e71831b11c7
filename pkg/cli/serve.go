package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/wiretap/pkg/admin"
	"github.com/getmockd/wiretap/pkg/config"
)

const shutdownTimeout = 5 * time.Second

var (
	serveAddr  string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the inspector API over the request log",
	Long: `Serve the inspector API (list, show, clear, export, live change feed and
metrics) over the persisted request log.

When a configuration file is in use it is watched, and limits and capture
rules are re-applied when it changes.`,
	Example: `  wiretap serve
  wiretap serve --addr 127.0.0.1:9000 --config ./wiretap.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, _, log, err := openRecorder(cmd)
		if err != nil {
			return err
		}
		defer rec.Close()

		if path := watchedConfigFile(); serveWatch && path != "" {
			_, err := config.Watch(path, log, func(next config.Config) {
				// Flag overrides keep winning over the file.
				if dataDir != "" {
					next.Storage.DataDir = dataDir
				}
				if backend != "" {
					next.Storage.Backend = backend
				}
				if err := rec.Configure(next); err != nil {
					log.Warn("failed to apply reloaded config", "error", err)
				}
			})
			if err != nil {
				return fmt.Errorf("failed to watch config: %w", err)
			}
			log.Info("watching config", "path", path)
		}

		ln, err := net.Listen("tcp", serveAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", serveAddr, err)
		}

		srv := &http.Server{
			Handler:           admin.New(rec, admin.WithLogger(log)).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Serve(ln) }()
		fmt.Fprintf(cmd.ErrOrStderr(), "Inspector API listening on http://%s\n", ln.Addr())

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Close the recorder first so streaming handlers return.
		_ = rec.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}

// watchedConfigFile returns the config file in use, or "" when running on
// defaults alone.
func watchedConfigFile() string {
	if configFile != "" {
		return configFile
	}
	path := config.DefaultConfigFile()
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:4280", "Address to listen on")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "Re-apply the config file when it changes")
	rootCmd.AddCommand(serveCmd)
}
