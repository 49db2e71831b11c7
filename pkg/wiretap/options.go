package wiretap

import (
	"log/slog"

	"github.com/getmockd/wiretap/pkg/requestlog"
)

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Recorder) {
		if log != nil {
			r.log = log
		}
	}
}

// WithPersister overrides the persistence backend selected by the
// configuration. Tests use it to run against memory.
func WithPersister(p requestlog.Persister) Option {
	return func(r *Recorder) {
		r.persister = p
	}
}
