package wiretaptest

import (
	"encoding/json"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/getmockd/wiretap/pkg/recording"
)

// Request is a recorded request/response pair with assertion helpers.
type Request struct {
	recording.Record
}

// Path returns the URL path of the request, "/" when empty.
func (r *Request) Path() string {
	return pathOf(r.Record)
}

// Query returns the parsed query parameters of the request URL.
func (r *Request) Query() url.Values {
	u, err := url.Parse(r.URL)
	if err != nil {
		return url.Values{}
	}
	return u.Query()
}

// AssertMethod asserts that the request used the expected HTTP method.
func (r *Request) AssertMethod(t testing.TB, expected string) {
	t.Helper()

	if !strings.EqualFold(r.Method, expected) {
		t.Errorf("request method mismatch\nexpected: %q\nactual: %q", expected, r.Method)
	}
}

// AssertPath asserts that the request path matches.
func (r *Request) AssertPath(t testing.TB, expected string) {
	t.Helper()

	if p := r.Path(); p != expected {
		t.Errorf("request path mismatch\nexpected: %q\nactual: %q", expected, p)
	}
}

// AssertHeader asserts that the request had the specified header with the expected value.
func (r *Request) AssertHeader(t testing.TB, key, expected string) {
	t.Helper()

	actual, ok := lookup(r.RequestHeaders, key)
	if !ok {
		t.Errorf("request does not have header %q", key)
		return
	}
	if actual != expected {
		t.Errorf("header %q value mismatch\nexpected: %q\nactual: %q", key, expected, actual)
	}
}

// AssertHeaderExists asserts that the request had the specified header (any value).
func (r *Request) AssertHeaderExists(t testing.TB, key string) {
	t.Helper()

	if _, ok := lookup(r.RequestHeaders, key); !ok {
		t.Errorf("request does not have header %q", key)
	}
}

// AssertHeaderContains asserts that the header value contains the expected substring.
func (r *Request) AssertHeaderContains(t testing.TB, key, substr string) {
	t.Helper()

	actual, ok := lookup(r.RequestHeaders, key)
	if !ok {
		t.Errorf("request does not have header %q", key)
		return
	}
	if !strings.Contains(actual, substr) {
		t.Errorf("header %q value does not contain %q\nvalue: %q", key, substr, actual)
	}
}

// AssertQueryParam asserts that the request had the specified query parameter.
func (r *Request) AssertQueryParam(t testing.TB, key, expected string) {
	t.Helper()

	q := r.Query()
	if !q.Has(key) {
		t.Errorf("request does not have query parameter %q", key)
		return
	}
	if actual := q.Get(key); actual != expected {
		t.Errorf("query parameter %q value mismatch\nexpected: %q\nactual: %q", key, expected, actual)
	}
}

// AssertBody asserts that the request body exactly matches the expected string.
func (r *Request) AssertBody(t testing.TB, expected string) {
	t.Helper()

	if actual := string(r.RequestBody); actual != expected {
		t.Errorf("request body does not match\nexpected: %q\nactual: %q", expected, actual)
	}
}

// AssertBodyContains asserts that the request body contains the expected substring.
func (r *Request) AssertBodyContains(t testing.TB, substr string) {
	t.Helper()

	if !strings.Contains(string(r.RequestBody), substr) {
		t.Errorf("request body does not contain %q\nbody: %s", substr, r.RequestBody)
	}
}

// AssertJSONBody asserts that the request body matches the expected JSON.
// The expected value can be a string, []byte, or any struct/map that will be JSON encoded.
func (r *Request) AssertJSONBody(t testing.TB, expected any) {
	t.Helper()
	assertJSON(t, "request", r.RequestBody, expected)
}

// JSONField extracts a field from the request body JSON. Nested fields use
// dot notation. Returns nil if the body is not valid JSON or the field
// doesn't exist.
func (r *Request) JSONField(field string) any {
	return jsonField(r.RequestBody, field)
}

// AssertJSONField asserts that a JSON field in the request body has the expected value.
func (r *Request) AssertJSONField(t testing.TB, field string, expected any) {
	t.Helper()

	actual := r.JSONField(field)
	if actual == nil {
		t.Errorf("JSON field %q not found in request body: %s", field, r.RequestBody)
		return
	}
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("JSON field %q mismatch\nexpected: %v (%T)\nactual: %v (%T)",
			field, expected, expected, actual, actual)
	}
}

// AssertStatus asserts the response status code.
func (r *Request) AssertStatus(t testing.TB, expected int) {
	t.Helper()

	switch {
	case r.ResponseCode != nil && *r.ResponseCode == expected:
	case r.ResponseCode != nil:
		t.Errorf("response status mismatch\nexpected: %d\nactual: %d", expected, *r.ResponseCode)
	case r.ErrorText != nil:
		t.Errorf("expected response status %d, request failed: %s", expected, *r.ErrorText)
	default:
		t.Errorf("expected response status %d, request is still pending", expected)
	}
}

// AssertResponseJSONBody asserts that the response body matches the expected JSON.
func (r *Request) AssertResponseJSONBody(t testing.TB, expected any) {
	t.Helper()
	assertJSON(t, "response", r.ResponseBody, expected)
}

// AssertFailed asserts that the transport reported an error containing substr.
func (r *Request) AssertFailed(t testing.TB, substr string) {
	t.Helper()

	if r.ErrorText == nil {
		t.Errorf("expected the request to fail, it did not")
		return
	}
	if !strings.Contains(*r.ErrorText, substr) {
		t.Errorf("error does not contain %q\nerror: %s", substr, *r.ErrorText)
	}
}

func lookup(headers map[string]string, key string) (string, bool) {
	if v, ok := headers[key]; ok {
		return v, true
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

func assertJSON(t testing.TB, what string, body []byte, expected any) {
	t.Helper()

	var expectedJSON, actualJSON any
	switch v := expected.(type) {
	case string:
		if err := json.Unmarshal([]byte(v), &expectedJSON); err != nil {
			t.Errorf("failed to parse expected JSON: %v", err)
			return
		}
	case []byte:
		if err := json.Unmarshal(v, &expectedJSON); err != nil {
			t.Errorf("failed to parse expected JSON: %v", err)
			return
		}
	default:
		// Marshal and unmarshal to normalize
		data, err := json.Marshal(v)
		if err != nil {
			t.Errorf("failed to marshal expected value: %v", err)
			return
		}
		if err := json.Unmarshal(data, &expectedJSON); err != nil {
			t.Errorf("failed to parse expected JSON: %v", err)
			return
		}
	}

	if err := json.Unmarshal(body, &actualJSON); err != nil {
		t.Errorf("%s body is not valid JSON: %v\nbody: %s", what, err, body)
		return
	}

	if !reflect.DeepEqual(actualJSON, expectedJSON) {
		expectedBytes, _ := json.MarshalIndent(expectedJSON, "", "  ")
		actualBytes, _ := json.MarshalIndent(actualJSON, "", "  ")
		t.Errorf("%s body does not match expected JSON\nexpected:\n%s\nactual:\n%s",
			what, expectedBytes, actualBytes)
	}
}

func jsonField(body []byte, field string) any {
	var current any
	if err := json.Unmarshal(body, &current); err != nil {
		return nil
	}
	for _, part := range strings.Split(field, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}
