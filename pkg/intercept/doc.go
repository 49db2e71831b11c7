// Package intercept provides the http.RoundTripper that observes outgoing
// requests for the recorder.
//
// A Transport sits in front of the real transport. For every request it
// decides to capture, it hands a pending record to its Sink, forwards a
// copy of the request marked as already intercepted, and applies the
// completion once the response body has been read or closed, or the
// transport has failed. The caller always gets exactly the response or
// error the underlying transport produced; recording is best effort and
// never changes the outcome.
//
// Streamed request bodies are never read ahead of the real transport; the
// captured prefix is whatever it read, up to the body cap.
//
//	t := intercept.New(intercept.Options{
//	    Next: http.DefaultTransport,
//	    Sink: store,
//	})
//	client := &http.Client{Transport: t}
package intercept
