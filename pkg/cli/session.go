package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/wiretap/internal/id"
	"github.com/getmockd/wiretap/pkg/config"
	"github.com/getmockd/wiretap/pkg/logging"
	"github.com/getmockd/wiretap/pkg/recording"
	"github.com/getmockd/wiretap/pkg/wiretap"
)

const syncTimeout = 10 * time.Second

// loadConfig reads the configuration file and applies the persistent flag
// overrides on top of it.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return config.Config{}, err
	}
	if dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if backend != "" {
		cfg.Storage.Backend = backend
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
		Output: w,
	})
}

// openRecorder loads the configuration and opens a recorder over the
// persisted log. Callers must Close it.
func openRecorder(cmd *cobra.Command) (*wiretap.Recorder, config.Config, *slog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	log := newLogger(cfg, cmd.ErrOrStderr())
	rec, err := wiretap.New(cfg, wiretap.WithLogger(log))
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	return rec, cfg, log, nil
}

func syncRecorder(ctx context.Context, rec *wiretap.Recorder) error {
	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()
	return rec.Sync(ctx)
}

// findRecord resolves a record by full id or unique id prefix. An empty
// ref selects the newest record.
func findRecord(rec *wiretap.Recorder, ref string) (recording.Record, error) {
	records := rec.Records()
	if ref == "" {
		if len(records) == 0 {
			return recording.Record{}, fmt.Errorf("no requests recorded")
		}
		return records[0], nil
	}
	if r, ok := rec.Get(ref); ok {
		return r, nil
	}

	var matches []recording.Record
	for _, r := range records {
		if id.HasPrefix(r.ID, ref) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return recording.Record{}, fmt.Errorf("request not found: %s", ref)
	case 1:
		return matches[0], nil
	default:
		return recording.Record{}, fmt.Errorf("request id %q is ambiguous (%d matches)", ref, len(matches))
	}
}
