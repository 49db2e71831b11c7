package intercept

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/wiretap/pkg/recording"
	"github.com/getmockd/wiretap/pkg/requestlog"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// memSink applies records and completions the way the store does, but
// synchronously.
type memSink struct {
	mu      sync.Mutex
	records []recording.Record
	updates int
}

func (s *memSink) Insert(rec recording.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]recording.Record{rec}, s.records...)
}

func (s *memSink) ApplyUpdate(c recording.Completion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	for i := range s.records {
		if s.records[i].ID == c.ID {
			s.records[i] = s.records[i].Apply(c)
		}
	}
}

func (s *memSink) all() []recording.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recording.Record(nil), s.records...)
}

func (s *memSink) only(t *testing.T) recording.Record {
	t.Helper()
	all := s.all()
	require.Len(t, all, 1)
	return all[0]
}

func jsonResponse(req *http.Request, code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Status:     http.StatusText(code),
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

func TestTransport_CapturesGetThenCompletes(t *testing.T) {
	sink := &memSink{}
	tr := New(Options{
		Sink: sink,
		Next: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			time.Sleep(5 * time.Millisecond)
			return jsonResponse(req, http.StatusOK, `{"id":123,"name":"Ada"}`), nil
		}),
	})
	client := &http.Client{Transport: tr}

	resp, err := client.Get("https://api.example.com/users/123")
	require.NoError(t, err)

	pending := sink.only(t)
	assert.Equal(t, "GET", pending.Method)
	assert.Equal(t, "https://api.example.com/users/123", pending.URL)
	assert.Nil(t, pending.RequestBody)
	assert.Nil(t, pending.ResponseCode)
	assert.True(t, pending.IsPending())

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, `{"id":123,"name":"Ada"}`, string(body))

	done := sink.only(t)
	require.NotNil(t, done.ResponseCode)
	assert.Equal(t, 200, *done.ResponseCode)
	require.NotNil(t, done.Duration)
	assert.GreaterOrEqual(t, *done.Duration, 5*time.Millisecond)
	assert.Equal(t, "application/json", done.ResponseHeaders["Content-Type"])
	assert.Nil(t, done.ErrorText)

	var user struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(done.ResponseBody, &user))
	assert.Equal(t, 123, user.ID)
	assert.Equal(t, 1, sink.updates, "completion applied exactly once")
}

func TestTransport_EndToEndWithStore(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("X-Server", "test")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"created":true}`))
	}))
	defer srv.Close()

	store := requestlog.New(requestlog.Options{})
	defer store.Close()
	client := &http.Client{Transport: New(Options{Sink: store})}

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/items", strings.NewReader(`{"name":"x"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, store.Sync(ctx))

	all := store.GetAll()
	require.Len(t, all, 1)
	rec := all[0]
	assert.Equal(t, `{"name":"x"}`, gotBody)
	assert.Equal(t, "POST", rec.Method)
	assert.Equal(t, []byte(`{"name":"x"}`), rec.RequestBody)
	assert.Equal(t, "application/json", rec.RequestHeaders["Content-Type"])
	assert.Equal(t, 201, *rec.ResponseCode)
	assert.Equal(t, "test", rec.ResponseHeaders["X-Server"])
	assert.Equal(t, []byte(`{"created":true}`), rec.ResponseBody)
}

func TestTransport_BodyCap(t *testing.T) {
	const limit = 1024
	tests := []struct {
		name     string
		reqSize  int
		respSize int
	}{
		{"below cap", 10, 20},
		{"at cap", limit, limit},
		{"above cap", 2 * limit, 3 * limit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqBody := bytes.Repeat([]byte("q"), tt.reqSize)
			respBody := bytes.Repeat([]byte("r"), tt.respSize)
			var received int

			sink := &memSink{}
			tr := New(Options{
				Sink:        sink,
				MaxBodySize: limit,
				Next: roundTripFunc(func(req *http.Request) (*http.Response, error) {
					b, err := io.ReadAll(req.Body)
					require.NoError(t, err)
					received = len(b)
					return &http.Response{StatusCode: 200, Header: http.Header{}, Body: io.NopCloser(bytes.NewReader(respBody))}, nil
				}),
			})

			req, err := http.NewRequest(http.MethodPut, "http://upload.test/blob", bytes.NewReader(reqBody))
			require.NoError(t, err)
			resp, err := tr.RoundTrip(req)
			require.NoError(t, err)
			got, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, tt.reqSize, received, "forwarded request must be complete")
			assert.Len(t, got, tt.respSize, "caller must see the full response")

			rec := sink.only(t)
			assert.Equal(t, reqBody[:min(tt.reqSize, limit)], rec.RequestBody)
			assert.Equal(t, respBody[:min(tt.respSize, limit)], rec.ResponseBody)
		})
	}
}

// onlyReader hides every method but Read so http.NewRequest cannot set
// GetBody.
type onlyReader struct{ r io.Reader }

func (o onlyReader) Read(p []byte) (int, error) { return o.r.Read(p) }

func TestTransport_StreamBody(t *testing.T) {
	payload := strings.Repeat("s", 5000)
	var received string

	sink := &memSink{}
	tr := New(Options{
		Sink:        sink,
		MaxBodySize: 1000,
		Next: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			b, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			received = string(b)
			return jsonResponse(req, 204, ""), nil
		}),
	})

	req, err := http.NewRequest(http.MethodPost, "http://stream.test/", onlyReader{strings.NewReader(payload)})
	require.NoError(t, err)
	require.Nil(t, req.GetBody)

	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, payload, received)
	assert.Equal(t, []byte(payload[:1000]), sink.only(t).RequestBody)
}

type scriptedReader struct {
	steps []func([]byte) (int, error)
}

func (s *scriptedReader) Read(p []byte) (int, error) {
	if len(s.steps) == 0 {
		return 0, io.EOF
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step(p)
}

func TestTransport_StreamReadErrorIsRelayed(t *testing.T) {
	readErr := errors.New("disk went away")
	body := &scriptedReader{steps: []func([]byte) (int, error){
		func(p []byte) (int, error) { return copy(p, "partial"), nil },
		func([]byte) (int, error) { return 0, readErr },
	}}

	sink := &memSink{}
	tr := New(Options{
		Sink: sink,
		Next: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			b, err := io.ReadAll(req.Body)
			assert.Equal(t, "partial", string(b))
			return nil, err
		}),
	})

	req, err := http.NewRequest(http.MethodPost, "http://stream.test/", body)
	require.NoError(t, err)
	_, err = tr.RoundTrip(req)
	assert.ErrorIs(t, err, readErr)

	rec := sink.only(t)
	assert.Equal(t, []byte("partial"), rec.RequestBody)
	require.NotNil(t, rec.ErrorText)
	assert.Equal(t, "disk went away", *rec.ErrorText)
	assert.Nil(t, rec.ResponseCode)
}

func TestTransport_StreamBodyForwardedWhileProducing(t *testing.T) {
	started := make(chan struct{})
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		b, _ := io.ReadAll(r.Body)
		received <- string(b)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := &memSink{}
	tr := New(Options{Sink: sink, Next: srv.Client().Transport})

	// The producer only sends the rest once the server is handling the
	// request, so the request must leave before the body is complete.
	pr, pw := io.Pipe()
	handlerFirst := make(chan bool, 1)
	go func() {
		_, _ = pw.Write([]byte("first-chunk;"))
		select {
		case <-started:
			handlerFirst <- true
		case <-time.After(3 * time.Second):
			handlerFirst <- false
		}
		_, _ = pw.Write([]byte("rest"))
		_ = pw.Close()
	}()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/upload", pr)
	require.NoError(t, err)
	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.True(t, <-handlerFirst, "request was held until the body producer gave up")
	assert.Equal(t, "first-chunk;rest", <-received)

	rec := sink.only(t)
	assert.Equal(t, []byte("first-chunk;rest"), rec.RequestBody)
	require.NotNil(t, rec.ResponseCode)
	assert.Equal(t, http.StatusAccepted, *rec.ResponseCode)
}

func TestTransport_StreamBodyUnreadIsObservedOnReturn(t *testing.T) {
	sink := &memSink{}
	tr := New(Options{
		Sink: sink,
		Next: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(req, 413, `{"error":"too large"}`), nil
		}),
	})

	req, err := http.NewRequest(http.MethodPost, "http://stream.test/", onlyReader{strings.NewReader("never sent")})
	require.NoError(t, err)
	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)

	rec := sink.only(t)
	assert.Equal(t, []byte{}, rec.RequestBody)
	assert.True(t, rec.IsPending())

	_, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	rec = sink.only(t)
	require.NotNil(t, rec.ResponseCode)
	assert.Equal(t, 413, *rec.ResponseCode)
}

func TestTransport_ZeroByteReadEndsExtraction(t *testing.T) {
	body := &scriptedReader{steps: []func([]byte) (int, error){
		func([]byte) (int, error) { return 0, nil },
		func(p []byte) (int, error) { return copy(p, "late data"), nil },
	}}

	var received string
	sink := &memSink{}
	tr := New(Options{
		Sink: sink,
		Next: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			b, _ := io.ReadAll(req.Body)
			received = string(b)
			return jsonResponse(req, 200, "{}"), nil
		}),
	})

	req, err := http.NewRequest(http.MethodPost, "http://stream.test/", body)
	require.NoError(t, err)
	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "late data", received)
	assert.Equal(t, []byte{}, sink.only(t).RequestBody)
}

func TestTransport_TransportErrorRelayedUnchanged(t *testing.T) {
	dialErr := errors.New("dial tcp 10.0.0.1:443: connect: connection refused")
	sink := &memSink{}
	tr := New(Options{
		Sink: sink,
		Next: roundTripFunc(func(*http.Request) (*http.Response, error) { return nil, dialErr }),
	})

	req := httptest.NewRequest(http.MethodGet, "https://down.example.com/", nil)
	req.RequestURI = ""
	resp, err := tr.RoundTrip(req)
	assert.Nil(t, resp)
	assert.Same(t, dialErr, err)

	rec := sink.only(t)
	assert.True(t, rec.IsCompleted())
	assert.Nil(t, rec.ResponseCode)
	require.NotNil(t, rec.ErrorText)
	assert.Equal(t, dialErr.Error(), *rec.ErrorText)
	assert.NotNil(t, rec.ResponseHeaders)
	assert.NotNil(t, rec.Duration)
}

func TestTransport_ResponseReadErrorKeepsStatus(t *testing.T) {
	resetErr := errors.New("stream reset")
	sink := &memSink{}
	tr := New(Options{
		Sink: sink,
		Next: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: 200,
				Header:     http.Header{},
				Body: io.NopCloser(&scriptedReader{steps: []func([]byte) (int, error){
					func(p []byte) (int, error) { return copy(p, "half"), nil },
					func([]byte) (int, error) { return 0, resetErr },
				}}),
			}, nil
		}),
	})

	resp, err := tr.RoundTrip(httptest.NewRequest(http.MethodGet, "http://flaky.test/", nil))
	require.NoError(t, err)
	_, err = io.ReadAll(resp.Body)
	assert.ErrorIs(t, err, resetErr)
	resp.Body.Close()

	rec := sink.only(t)
	assert.Equal(t, 200, *rec.ResponseCode)
	assert.Equal(t, "stream reset", *rec.ErrorText)
	assert.Equal(t, []byte("half"), rec.ResponseBody)
	assert.Equal(t, 1, sink.updates)
}

func TestTransport_CloseWithoutReading(t *testing.T) {
	sink := &memSink{}
	tr := New(Options{
		Sink: sink,
		Next: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(req, 500, `{"error":"boom"}`), nil
		}),
	})

	resp, err := tr.RoundTrip(httptest.NewRequest(http.MethodDelete, "http://svc.test/x", nil))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	rec := sink.only(t)
	assert.Equal(t, 500, *rec.ResponseCode)
	assert.Equal(t, []byte{}, rec.ResponseBody)
	assert.Equal(t, recording.StatusServerError, rec.StatusCategory())
}

func TestTransport_AbandonedResponsesStayBounded(t *testing.T) {
	corr := recording.NewCorrelator()
	corr.SetLimit(2)
	sink := &memSink{}
	tr := New(Options{
		Sink:       sink,
		Correlator: corr,
		Next: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(req, 200, `{"ok":true}`), nil
		}),
	})

	for i := 0; i < 5; i++ {
		req, err := http.NewRequest(http.MethodGet, "http://abandon.test/", nil)
		require.NoError(t, err)
		_, err = tr.RoundTrip(req) // body neither read nor closed
		require.NoError(t, err)
	}

	assert.Equal(t, 2, corr.Pending())
	assert.Len(t, sink.all(), 5)
	assert.Zero(t, sink.updates)
}

func TestTransport_NoBodyResponseCompletesImmediately(t *testing.T) {
	sink := &memSink{}
	tr := New(Options{
		Sink: sink,
		Next: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: 204, Header: http.Header{}, Body: http.NoBody}, nil
		}),
	})

	_, err := tr.RoundTrip(httptest.NewRequest(http.MethodHead, "http://svc.test/", nil))
	require.NoError(t, err)
	assert.Equal(t, 204, *sink.only(t).ResponseCode)
}

func TestTransport_ForwardingMarkerPreventsDoubleCapture(t *testing.T) {
	sink := &memSink{}
	var forwarded *http.Request
	base := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		forwarded = req
		return jsonResponse(req, 200, "{}"), nil
	})

	outer := New(Options{Sink: sink, Next: base})
	// A second interceptor further down the same chain.
	chained := outer.Wrap(outer.Wrap(base))

	resp, err := chained.RoundTrip(httptest.NewRequest(http.MethodGet, "http://svc.test/", nil))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Len(t, sink.all(), 1)
	require.NotNil(t, forwarded)
	assert.True(t, IsForwarded(forwarded))
}

func TestTransport_ForwardedRequestPreservesRequest(t *testing.T) {
	var got *http.Request
	tr := New(Options{
		Sink: &memSink{},
		Next: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			got = req
			return jsonResponse(req, 200, "{}"), nil
		}),
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, "https://api.example.com/a?b=c", strings.NewReader("x"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer t")

	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.NotNil(t, got)
	assert.NotSame(t, req, got)
	assert.Equal(t, req.Method, got.Method)
	assert.Equal(t, req.URL.String(), got.URL.String())
	assert.Equal(t, req.Header, got.Header)
	assert.Equal(t, req.ContentLength, got.ContentLength)
	deadline, ok := got.Context().Deadline()
	assert.True(t, ok)
	want, _ := ctx.Deadline()
	assert.Equal(t, want, deadline)
	assert.False(t, IsForwarded(req), "caller's request must not be modified")
}

func TestShouldCapture(t *testing.T) {
	tr := New(Options{Sink: &memSink{}})

	assert.True(t, tr.ShouldCapture(httptest.NewRequest(http.MethodGet, "http://a.test/", nil)))
	assert.True(t, tr.ShouldCapture(httptest.NewRequest(http.MethodGet, "HTTPS://a.test/", nil)))

	ftp, _ := http.NewRequest(http.MethodGet, "ftp://files.test/x", nil)
	assert.False(t, tr.ShouldCapture(ftp))

	marked := MarkForwarded(httptest.NewRequest(http.MethodGet, "http://a.test/", nil))
	assert.False(t, tr.ShouldCapture(marked))
	assert.False(t, tr.ShouldCapture(nil))
}

type panickingSink struct{}

func (panickingSink) Insert(recording.Record)          { panic("insert exploded") }
func (panickingSink) ApplyUpdate(recording.Completion) { panic("update exploded") }

func TestTransport_SinkFailureDoesNotAffectOutcome(t *testing.T) {
	tr := New(Options{
		Sink: panickingSink{},
		Next: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(req, 200, `{"ok":true}`), nil
		}),
	})

	resp, err := tr.RoundTrip(httptest.NewRequest(http.MethodGet, "http://svc.test/", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(body))
	assert.NoError(t, resp.Body.Close())
}

func TestTransport_SetMaxBodySize(t *testing.T) {
	sink := &memSink{}
	tr := New(Options{
		Sink: sink,
		Next: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(req, 200, `0123456789`), nil
		}),
	})
	sibling := tr.Wrap(tr.Next())
	sibling.SetMaxBodySize(4)
	assert.Equal(t, int64(4), tr.MaxBodySize())

	resp, err := tr.RoundTrip(httptest.NewRequest(http.MethodGet, "http://svc.test/", nil))
	require.NoError(t, err)
	_, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, []byte("0123"), sink.only(t).ResponseBody)

	tr.SetMaxBodySize(-5)
	assert.Zero(t, tr.MaxBodySize())
}
