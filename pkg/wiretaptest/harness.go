package wiretaptest

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/getmockd/wiretap/pkg/config"
	"github.com/getmockd/wiretap/pkg/recording"
	"github.com/getmockd/wiretap/pkg/requestlog"
	"github.com/getmockd/wiretap/pkg/wiretap"
)

const syncTimeout = 5 * time.Second

// Harness owns a memory-backed recorder for the duration of one test.
type Harness struct {
	t   testing.TB
	rec *wiretap.Recorder
}

// New creates a harness. cfg, when given, replaces the default
// configuration; storage settings are ignored since records stay in
// memory. The recorder is closed when the test completes.
func New(t testing.TB, cfg ...config.Config) *Harness {
	t.Helper()
	c := config.Default()
	if len(cfg) > 0 {
		c = cfg[0]
	}
	c.Storage.Backend = "memory"

	rec, err := wiretap.New(c, wiretap.WithPersister(requestlog.NewMemoryPersister()))
	if err != nil {
		t.Fatalf("wiretaptest: failed to create recorder: %v", err)
	}
	t.Cleanup(func() { _ = rec.Close() })
	return &Harness{t: t, rec: rec}
}

// Recorder returns the underlying recorder.
func (h *Harness) Recorder() *wiretap.Recorder {
	return h.rec
}

// Client returns a new client whose requests are recorded.
func (h *Harness) Client() *http.Client {
	return h.rec.ConfigureClient(&http.Client{Timeout: 30 * time.Second})
}

// Transport wraps next so its requests are recorded.
func (h *Harness) Transport(next http.RoundTripper) http.RoundTripper {
	return h.rec.Transport(next)
}

// Requests returns every recorded request, newest first.
func (h *Harness) Requests() []*Request {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()
	if err := h.rec.Sync(ctx); err != nil {
		h.t.Fatalf("wiretaptest: failed to sync recorder: %v", err)
	}

	records := h.rec.Records()
	out := make([]*Request, len(records))
	for i, r := range records {
		out[i] = &Request{Record: r}
	}
	return out
}

// Find returns the recorded requests with the given method and path,
// newest first.
func (h *Harness) Find(method, path string) []*Request {
	h.t.Helper()
	var out []*Request
	for _, r := range h.Requests() {
		if strings.EqualFold(r.Method, method) && r.Path() == path {
			out = append(out, r)
		}
	}
	return out
}

// Last returns the most recent request. The test fails when nothing was
// recorded.
func (h *Harness) Last(t testing.TB) *Request {
	t.Helper()
	requests := h.Requests()
	if len(requests) == 0 {
		t.Fatalf("no requests were recorded")
		return nil
	}
	return requests[0]
}

// Reset clears the log.
func (h *Harness) Reset() {
	h.t.Helper()
	if err := h.rec.Clear(); err != nil {
		h.t.Fatalf("wiretaptest: failed to clear recorder: %v", err)
	}
}

// AssertCalled asserts that at least one request with method and path was
// recorded.
func (h *Harness) AssertCalled(t testing.TB, method, path string) {
	t.Helper()
	if len(h.Find(method, path)) == 0 {
		t.Errorf("expected a request to %s %s, got none\nrecorded:\n%s", method, path, h.summary())
	}
}

// AssertNotCalled asserts that no request with method and path was
// recorded.
func (h *Harness) AssertNotCalled(t testing.TB, method, path string) {
	t.Helper()
	if n := len(h.Find(method, path)); n > 0 {
		t.Errorf("expected no requests to %s %s, got %d", method, path, n)
	}
}

// AssertCalledTimes asserts the number of recorded requests with method
// and path.
func (h *Harness) AssertCalledTimes(t testing.TB, method, path string, times int) {
	t.Helper()
	if n := len(h.Find(method, path)); n != times {
		t.Errorf("expected %d request(s) to %s %s, got %d", times, method, path, n)
	}
}

// AssertCount asserts the total number of recorded requests.
func (h *Harness) AssertCount(t testing.TB, expected int) {
	t.Helper()
	if n := len(h.Requests()); n != expected {
		t.Errorf("expected %d recorded request(s), got %d\nrecorded:\n%s", expected, n, h.summary())
	}
}

func (h *Harness) summary() string {
	records := h.rec.Records()
	if len(records) == 0 {
		return "  (none)"
	}
	var sb strings.Builder
	for _, r := range records {
		sb.WriteString("  ")
		sb.WriteString(r.Method)
		sb.WriteByte(' ')
		sb.WriteString(pathOf(r))
		sb.WriteByte('\n')
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func pathOf(r recording.Record) string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return r.URL
	}
	if u.Path == "" {
		return "/"
	}
	return u.Path
}
