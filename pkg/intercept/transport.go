package intercept

import (
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/getmockd/wiretap/pkg/logging"
	"github.com/getmockd/wiretap/pkg/metrics"
	"github.com/getmockd/wiretap/pkg/recording"
)

// DefaultMaxBodySize is the default cap for captured bodies (1 MiB).
const DefaultMaxBodySize = 1 << 20

// Sink receives captured records and their completions.
// *requestlog.Store implements Sink.
type Sink interface {
	Insert(rec recording.Record)
	ApplyUpdate(c recording.Completion)
}

// Options configures a Transport.
type Options struct {
	// Next performs the real round trip. Defaults to the value of
	// http.DefaultTransport at construction time.
	Next http.RoundTripper
	Sink Sink
	// MaxBodySize caps captured bodies. Zero means DefaultMaxBodySize.
	MaxBodySize int64
	Filter      *Filter
	// Correlator is shared by transports created with Wrap.
	Correlator *recording.Correlator
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// settings are shared between a Transport and the siblings made by Wrap,
// so limits applied to one apply to all.
type settings struct {
	sink       Sink
	correlator *recording.Correlator
	log        *slog.Logger
	metrics    *metrics.Metrics
	maxBody    atomic.Int64
	filter     atomic.Pointer[Filter]
}

// Transport is an http.RoundTripper that records the requests it forwards.
type Transport struct {
	next http.RoundTripper
	*settings
}

var _ http.RoundTripper = (*Transport)(nil)

// New creates a Transport.
func New(opts Options) *Transport {
	if opts.Next == nil {
		opts.Next = http.DefaultTransport
	}
	if opts.MaxBodySize == 0 {
		opts.MaxBodySize = DefaultMaxBodySize
	}
	if opts.Correlator == nil {
		opts.Correlator = recording.NewCorrelator()
	}
	s := &settings{
		sink:       opts.Sink,
		correlator: opts.Correlator,
		log:        logging.OrNop(opts.Logger),
		metrics:    opts.Metrics,
	}
	s.maxBody.Store(max(opts.MaxBodySize, 0))
	s.filter.Store(opts.Filter)
	return &Transport{next: opts.Next, settings: s}
}

// Wrap returns a Transport forwarding to next that shares t's sink, limits
// and filter.
func (t *Transport) Wrap(next http.RoundTripper) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{next: next, settings: t.settings}
}

// Next returns the transport requests are forwarded to.
func (t *Transport) Next() http.RoundTripper { return t.next }

// SetMaxBodySize changes the body cap for subsequent requests. Zero
// disables body capture; negative values are treated as zero.
func (t *Transport) SetMaxBodySize(n int64) {
	t.maxBody.Store(max(n, 0))
}

// MaxBodySize returns the current body cap.
func (t *Transport) MaxBodySize() int64 { return t.maxBody.Load() }

// SetFilter replaces the capture filter. nil records everything.
func (t *Transport) SetFilter(f *Filter) {
	t.filter.Store(f)
}

// ShouldCapture reports whether req will be recorded: its scheme is http
// or https, it does not carry the forwarding marker, and the capture
// filter allows it.
func (t *Transport) ShouldCapture(req *http.Request) bool {
	if req == nil || req.URL == nil {
		return false
	}
	switch strings.ToLower(req.URL.Scheme) {
	case "http", "https":
	default:
		return false
	}
	if IsForwarded(req) {
		return false
	}
	return t.filter.Load().Allows(req)
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.sink == nil || !t.ShouldCapture(req) {
		return t.next.RoundTrip(req)
	}

	rec, fwd, stream, ok := t.intercept(req)
	if !ok {
		return t.next.RoundTrip(MarkForwarded(req))
	}
	if stream == nil {
		t.observe(rec)
	}

	resp, err := t.next.RoundTrip(fwd)
	if stream != nil {
		// Whatever the transport has read so far is the captured body.
		stream.settle()
	}
	if err != nil {
		t.complete(recording.Outcome{ID: rec.ID, Err: err})
		return resp, err
	}
	if resp == nil {
		return resp, err
	}

	code := resp.StatusCode
	header := resp.Header.Clone()
	finish := func(body []byte, truncated bool, readErr error) {
		if truncated {
			t.metrics.BodyTruncated("response")
		}
		t.complete(recording.Outcome{
			ID:         rec.ID,
			StatusCode: &code,
			Header:     header,
			Body:       body,
			Err:        readErr,
		})
	}

	// Switching-protocol bodies are read/write streams that must not be
	// wrapped; bodiless responses complete straight away.
	if resp.StatusCode == http.StatusSwitchingProtocols || resp.Body == nil || resp.Body == http.NoBody {
		finish(nil, false, nil)
		return resp, nil
	}
	resp.Body = newCaptureBody(resp.Body, t.maxBody.Load(), finish)
	return resp, nil
}

// intercept snapshots req for logging and builds the marked copy that is
// forwarded. ok is false if capturing failed; the request is then
// forwarded untouched.
//
// A streamed request body (one without GetBody) is not read here. It is
// forwarded straight away behind a streamBody, and stream is non-nil: the
// record is observed once that body settles, with the prefix the
// transport read.
func (t *Transport) intercept(req *http.Request) (rec recording.Record, fwd *http.Request, stream *streamBody, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("panic while capturing request", "panic", r, "url", req.URL.String())
			stream, ok = nil, false
		}
	}()

	fwd = req.Clone(markContext(req.Context()))
	rec = recording.CaptureRequest(req, nil)
	switch {
	case req.Body == nil || req.Body == http.NoBody:
	case req.GetBody != nil:
		rec.RequestBody = t.copyRequestBody(req)
	default:
		pending := rec
		stream = newStreamBody(req.Body, t.maxBody.Load(), func(body []byte, truncated bool) {
			if truncated {
				t.metrics.BodyTruncated("request")
			}
			pending.RequestBody = body
			t.observe(pending)
		})
		fwd.Body = stream
	}
	return rec, fwd, stream, true
}

// copyRequestBody reads the capped body from a fresh copy obtained through
// GetBody, leaving the body that is forwarded untouched.
func (t *Transport) copyRequestBody(req *http.Request) []byte {
	limit := t.maxBody.Load()
	rc, err := req.GetBody()
	if err != nil {
		t.log.Debug("request body copy unavailable", "error", err)
		return nil
	}
	defer rc.Close()
	body, _ := readCapped(rc, limit+1)
	if int64(len(body)) > limit {
		body = body[:limit]
		t.metrics.BodyTruncated("request")
	}
	return body
}

func (t *Transport) observe(rec recording.Record) {
	defer t.recoverLogging(rec.ID)
	if evicted := t.correlator.Observe(rec.ID, rec.ObservedAt); evicted != "" {
		t.log.Debug("forgetting in-flight request that never completed", "id", evicted)
	}
	t.metrics.RequestCaptured(rec.Method)
	t.sink.Insert(rec)
}

func (t *Transport) complete(o recording.Outcome) {
	defer t.recoverLogging(o.ID)
	c, ok := t.correlator.Resolve(o)
	if !ok {
		return
	}
	t.metrics.RequestCompleted(category(c), c.Duration)
	t.sink.ApplyUpdate(c)
}

func (t *Transport) recoverLogging(id string) {
	if r := recover(); r != nil {
		t.log.Error("panic while recording request", "panic", r, "id", id)
	}
}

func category(c recording.Completion) string {
	if c.ResponseCode == nil && c.ErrorText != nil {
		return "error"
	}
	return string(recording.Record{ResponseCode: c.ResponseCode}.StatusCategory())
}
