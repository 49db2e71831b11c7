package admin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/getmockd/wiretap/pkg/codec"
	"github.com/getmockd/wiretap/pkg/logging"
	"github.com/getmockd/wiretap/pkg/metrics"
	"github.com/getmockd/wiretap/pkg/recording"
	"github.com/getmockd/wiretap/pkg/requestlog"
)

// Recorder is the part of *wiretap.Recorder the API reads and mutates.
type Recorder interface {
	Enabled() bool
	Filter(text string) []recording.Record
	Get(id string) (recording.Record, bool)
	Clear() error
	Export(format codec.Format) ([]byte, error)
	Subscribe() (requestlog.Subscriber, func())
	Metrics() *metrics.Metrics
}

// DefaultKeepAlive is the interval between SSE keep-alive comments.
const DefaultKeepAlive = 15 * time.Second

// API serves the inspector endpoints for one recorder.
type API struct {
	rec       Recorder
	log       *slog.Logger
	cors      CORSConfig
	keepAlive time.Duration
	startTime time.Time

	// Origin checks on the websocket upgrade are skipped unless enabled.
	verifyOrigin bool
}

// New creates an API for rec.
func New(rec Recorder, opts ...Option) *API {
	a := &API{
		rec:       rec,
		log:       logging.Nop(),
		cors:      DefaultCORSConfig(),
		keepAlive: DefaultKeepAlive,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the routed handler wrapped in the API middleware.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", a.handleHealth)
	mux.Handle("GET /metrics", a.rec.Metrics().Handler())

	mux.HandleFunc("GET /requests", a.handleListRequests)
	mux.HandleFunc("DELETE /requests", a.handleClearRequests)
	mux.HandleFunc("GET /requests/export", a.handleExport)
	mux.HandleFunc("GET /requests/stream", a.handleStream)
	mux.HandleFunc("GET /requests/ws", a.handleWebSocket)
	mux.HandleFunc("GET /requests/{id}", a.handleGetRequest)

	var h http.Handler = mux
	h = SecurityHeadersMiddleware(h)
	h = NewCORSMiddleware(h, a.cors)
	h = NewLoggingMiddleware(h, a.log)
	return h
}

// Uptime returns the number of whole seconds since the API was created.
func (a *API) Uptime() int {
	return int(time.Since(a.startTime).Seconds())
}
