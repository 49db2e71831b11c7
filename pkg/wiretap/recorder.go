package wiretap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/getmockd/wiretap/pkg/codec"
	"github.com/getmockd/wiretap/pkg/config"
	"github.com/getmockd/wiretap/pkg/export"
	"github.com/getmockd/wiretap/pkg/intercept"
	"github.com/getmockd/wiretap/pkg/logging"
	"github.com/getmockd/wiretap/pkg/metrics"
	"github.com/getmockd/wiretap/pkg/recording"
	"github.com/getmockd/wiretap/pkg/requestlog"
)

// ErrClosed is returned by operations on a closed Recorder.
var ErrClosed = errors.New("wiretap: recorder closed")

// defaultMu serializes changes to http.DefaultTransport across recorders.
var defaultMu sync.Mutex

// Recorder is the process-wide traffic recording service.
type Recorder struct {
	log       *slog.Logger
	metrics   *metrics.Metrics
	persister requestlog.Persister
	store     *requestlog.Store
	transport *intercept.Transport

	mu     sync.Mutex
	cfg    config.Config
	closed bool

	// Set while Enable has installed the interceptor as the default.
	installed http.RoundTripper
	previous  http.RoundTripper
}

// New creates a Recorder from cfg. The persisted log is opened lazily.
func New(cfg config.Config, opts ...Option) (*Recorder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Recorder{
		cfg:     cfg,
		log:     logging.Nop(),
		metrics: metrics.New(),
	}
	for _, opt := range opts {
		opt(r)
	}

	filter, err := intercept.NewFilter(cfg.Capture)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}

	if r.persister == nil {
		backend, err := requestlog.ParseBackend(cfg.Storage.Backend)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
		}
		p, err := requestlog.OpenPersister(backend, cfg.StoragePath())
		if err != nil {
			return nil, fmt.Errorf("open %s storage: %w", backend, err)
		}
		r.persister = p
	}

	r.store = requestlog.New(requestlog.Options{
		MaxRequestCount: cfg.MaxRequestCount,
		QueueSize:       cfg.QueueSize,
		Persister:       r.persister,
		Logger:          r.log,
		Metrics:         r.metrics,
	})
	r.transport = intercept.New(intercept.Options{
		Sink:    r.store,
		Filter:  filter,
		Logger:  r.log,
		Metrics: r.metrics,
	})
	r.transport.SetMaxBodySize(cfg.MaxBodySize)

	r.log.Debug("recorder created",
		"backend", cfg.Storage.Backend,
		"path", cfg.StoragePath(),
		"maxRequestCount", cfg.MaxRequestCount,
		"maxBodySize", cfg.MaxBodySize,
	)
	return r, nil
}

// Enable installs the interceptor in front of http.DefaultTransport.
// Calling Enable on an enabled recorder is a no-op.
func (r *Recorder) Enable() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.installed != nil {
		return nil
	}
	r.previous = http.DefaultTransport
	r.installed = r.transport.Wrap(r.previous)
	http.DefaultTransport = r.installed
	r.log.Info("recording enabled")
	return nil
}

// Disable removes the interceptor installed by Enable. Calling Disable on
// a disabled recorder is a no-op. If something else has replaced
// http.DefaultTransport since, it is left alone.
func (r *Recorder) Disable() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disableLocked()
}

func (r *Recorder) disableLocked() {
	if r.installed == nil {
		return
	}
	if http.DefaultTransport == r.installed {
		http.DefaultTransport = r.previous
	} else {
		r.log.Warn("http.DefaultTransport was replaced after enable; leaving it in place")
	}
	r.installed, r.previous = nil, nil
	r.log.Info("recording disabled")
}

// Enabled reports whether the interceptor is installed as the default.
func (r *Recorder) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.installed != nil
}

// Transport returns a RoundTripper recording requests before forwarding
// them to next (http.DefaultTransport when nil).
func (r *Recorder) Transport(next http.RoundTripper) http.RoundTripper {
	return r.transport.Wrap(next)
}

// Middleware returns the interceptor as a transport middleware.
func (r *Recorder) Middleware() intercept.Middleware {
	return r.transport.Middleware()
}

// ConfigureTransport returns tc with the interceptor as its first
// middleware, keeping every middleware already present. A nil tc yields a
// chain holding only the interceptor.
func (r *Recorder) ConfigureTransport(tc *intercept.TransportConfig) *intercept.TransportConfig {
	return tc.Prepend(r.Middleware())
}

// ConfigureClient puts the interceptor in front of c's transport and
// returns c. A nil c yields a new client.
func (r *Recorder) ConfigureClient(c *http.Client) *http.Client {
	if c == nil {
		c = &http.Client{}
	}
	c.Transport = r.Transport(c.Transport)
	return c
}

// Configure applies new limits and capture rules to subsequent
// operations. Lowering maxRequestCount trims the log immediately. Stored
// bodies are not truncated again, and storage settings only take effect
// for a new Recorder.
func (r *Recorder) Configure(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	filter, err := intercept.NewFilter(cfg.Capture)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if err := r.store.SetMaxRequestCount(cfg.MaxRequestCount); err != nil {
		return err
	}
	r.transport.SetMaxBodySize(cfg.MaxBodySize)
	r.transport.SetFilter(filter)
	if cfg.Storage != r.cfg.Storage {
		r.log.Info("storage settings changed; they apply to the next recorder")
	}
	r.cfg = cfg
	r.log.Debug("recorder reconfigured", "maxRequestCount", cfg.MaxRequestCount, "maxBodySize", cfg.MaxBodySize)
	return nil
}

// Config returns the configuration currently applied.
func (r *Recorder) Config() config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Records returns every record, newest first.
func (r *Recorder) Records() []recording.Record {
	return r.store.GetAll()
}

// Filter returns the records whose URL, method or response code contains
// text, ignoring case. Empty text returns all.
func (r *Recorder) Filter(text string) []recording.Record {
	return r.store.Filter(text)
}

// Get returns the record with the given id.
func (r *Recorder) Get(id string) (recording.Record, bool) {
	return r.store.Get(id)
}

// Clear removes every record and persists the empty log.
func (r *Recorder) Clear() error {
	if r.isClosed() {
		return ErrClosed
	}
	return r.store.Clear()
}

// Export renders every record in the given format.
func (r *Recorder) Export(format codec.Format) ([]byte, error) {
	return export.Render(format, r.store.GetAll())
}

// Subscribe returns a channel of change notifications and a function
// that stops them.
func (r *Recorder) Subscribe() (requestlog.Subscriber, func()) {
	return r.store.Subscribe()
}

// Sync waits until every capture made so far has reached the log.
func (r *Recorder) Sync(ctx context.Context) error {
	if r.isClosed() {
		return ErrClosed
	}
	return r.store.Sync(ctx)
}

// Metrics returns the recorder's metrics.
func (r *Recorder) Metrics() *metrics.Metrics {
	return r.metrics
}

// Close disables the recorder, flushes pending mutations and releases the
// storage. Transports handed out earlier keep forwarding requests but no
// longer record them.
func (r *Recorder) Close() error {
	defaultMu.Lock()
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		defaultMu.Unlock()
		return nil
	}
	r.closed = true
	r.disableLocked()
	r.mu.Unlock()
	defaultMu.Unlock()

	return r.store.Close()
}

func (r *Recorder) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
