// Package recording provides the captured request/response record and the
// correlation of responses back to the requests that produced them.
package recording

import (
	"net/http"
	"strings"
	"time"

	"github.com/getmockd/wiretap/internal/id"
)

// Record represents a captured HTTP request/response pair.
//
// A Record is pending until a Completion has been applied to it, and
// completed afterwards. Response fields are pointers or nil-able so that
// "absent" is distinguishable from a zero value through persistence.
type Record struct {
	ID             string            `json:"id"`
	URL            string            `json:"url"`
	Method         string            `json:"method"`
	ObservedAt     time.Time         `json:"observedAt"`
	RequestHeaders map[string]string `json:"requestHeaders"`
	RequestBody    []byte            `json:"requestBody"`

	ResponseCode    *int              `json:"responseCode"`
	ResponseHeaders map[string]string `json:"responseHeaders"`
	ResponseBody    []byte            `json:"responseBody"`
	Duration        *time.Duration    `json:"duration"`
	ErrorText       *string           `json:"error"`
}

// NewRecord creates a pending record with a fresh correlation id, observed now.
func NewRecord(method, url string) Record {
	return Record{
		ID:             id.New(),
		URL:            url,
		Method:         NormalizeMethod(method),
		ObservedAt:     time.Now().UTC().Round(0),
		RequestHeaders: map[string]string{},
	}
}

// CaptureRequest builds a pending record from an outgoing request.
// body is the already-capped request body, nil when there was none.
func CaptureRequest(req *http.Request, body []byte) Record {
	rec := NewRecord(req.Method, req.URL.String())
	rec.RequestHeaders = FlattenHeader(req.Header)
	if req.Host != "" && req.URL != nil && req.Host != req.URL.Host {
		if _, ok := rec.RequestHeaders["Host"]; !ok {
			rec.RequestHeaders["Host"] = req.Host
		}
	}
	rec.RequestBody = body
	return rec
}

// NormalizeMethod upper-cases an HTTP verb; an empty method means GET.
func NormalizeMethod(method string) string {
	if method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(method)
}

// FlattenHeader converts an http.Header to a single-valued map.
// Multiple values for one name are joined with ", ". Names keep the case
// they were supplied with. A nil header yields an empty map.
func FlattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// IsPending reports whether no response information has been applied yet.
func (r Record) IsPending() bool {
	return !r.IsCompleted()
}

// IsCompleted reports whether a Completion has been applied.
func (r Record) IsCompleted() bool {
	return r.ResponseCode != nil ||
		r.ResponseHeaders != nil ||
		r.ResponseBody != nil ||
		r.Duration != nil ||
		r.ErrorText != nil
}

// Failed reports whether the transport reported an error for this record.
func (r Record) Failed() bool {
	return r.ErrorText != nil
}

// Apply returns a new record combining r's request fields with the
// response fields of c. The receiver is not modified.
func (r Record) Apply(c Completion) Record {
	out := r
	out.ResponseCode = c.ResponseCode
	out.ResponseHeaders = c.ResponseHeaders
	if out.ResponseHeaders == nil {
		out.ResponseHeaders = map[string]string{}
	}
	out.ResponseBody = c.ResponseBody
	out.Duration = c.Duration
	out.ErrorText = c.ErrorText
	return out
}

// Clone returns a deep copy so callers can never alias the store's data.
func (r Record) Clone() Record {
	out := r
	out.RequestHeaders = cloneMap(r.RequestHeaders)
	out.ResponseHeaders = cloneMap(r.ResponseHeaders)
	out.RequestBody = cloneBytes(r.RequestBody)
	out.ResponseBody = cloneBytes(r.ResponseBody)
	if r.ResponseCode != nil {
		v := *r.ResponseCode
		out.ResponseCode = &v
	}
	if r.Duration != nil {
		v := *r.Duration
		out.Duration = &v
	}
	if r.ErrorText != nil {
		v := *r.ErrorText
		out.ErrorText = &v
	}
	return out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
