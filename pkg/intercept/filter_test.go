package intercept

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/wiretap/pkg/config"
)

func TestNewFilter_ZeroRecordsEverything(t *testing.T) {
	f, err := NewFilter(config.CaptureConfig{})
	require.NoError(t, err)
	assert.Nil(t, f)
	assert.True(t, f.Allows(httptest.NewRequest(http.MethodGet, "http://any.test/x", nil)))
}

func TestFilter_Allows(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.CaptureConfig
		url  string
		want bool
	}{
		{"exclude host", config.CaptureConfig{ExcludeHosts: []string{"localhost"}}, "http://localhost:8080/x", false},
		{"exclude host case-insensitive", config.CaptureConfig{ExcludeHosts: []string{"*.Internal"}}, "http://db.INTERNAL/x", false},
		{"other host passes", config.CaptureConfig{ExcludeHosts: []string{"localhost"}}, "http://api.test/x", true},
		{"include host", config.CaptureConfig{IncludeHosts: []string{"api.*"}}, "https://api.example/x", true},
		{"include host miss", config.CaptureConfig{IncludeHosts: []string{"api.*"}}, "https://cdn.example/x", false},
		{"include path", config.CaptureConfig{IncludePaths: []string{"/api/**"}}, "http://h.test/api/v1/users", true},
		{"include path miss", config.CaptureConfig{IncludePaths: []string{"/api/**"}}, "http://h.test/static/app.js", false},
		{"exclude wins over include", config.CaptureConfig{IncludePaths: []string{"/api/**"}, ExcludePaths: []string{"/api/health"}}, "http://h.test/api/health", false},
		{"empty path is root", config.CaptureConfig{IncludePaths: []string{"/"}}, "http://h.test", true},
		{"when true", config.CaptureConfig{When: `method == "GET" && scheme == "https"`}, "https://h.test/", true},
		{"when false", config.CaptureConfig{When: `method != "GET"`}, "https://h.test/", false},
		{"when uses path", config.CaptureConfig{When: `path startsWith "/v2"`}, "https://h.test/v2/x", true},
		{"when uses url", config.CaptureConfig{When: `url contains "debug=1"`}, "https://h.test/?debug=1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFilter(tt.cfg)
			require.NoError(t, err)
			req, err := http.NewRequest(http.MethodGet, tt.url, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Allows(req))
		})
	}
}

func TestNewFilter_Errors(t *testing.T) {
	_, err := NewFilter(config.CaptureConfig{IncludePaths: []string{"/a/[b"}})
	assert.Error(t, err)

	_, err = NewFilter(config.CaptureConfig{When: `method ==`})
	assert.Error(t, err)

	_, err = NewFilter(config.CaptureConfig{When: `len(path)`})
	assert.Error(t, err, "non-boolean expressions are rejected")

	_, err = NewFilter(config.CaptureConfig{When: `unknownVar == 1`})
	assert.Error(t, err)
}

func TestTransport_SetFilter(t *testing.T) {
	sink := &memSink{}
	tr := New(Options{
		Sink: sink,
		Next: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(req, 200, "{}"), nil
		}),
	})
	f, err := NewFilter(config.CaptureConfig{ExcludeHosts: []string{"skip.test"}})
	require.NoError(t, err)
	tr.SetFilter(f)

	for _, u := range []string{"http://skip.test/", "http://keep.test/"} {
		resp, err := tr.RoundTrip(httptest.NewRequest(http.MethodGet, u, nil))
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, "http://keep.test/", sink.only(t).URL)
}
