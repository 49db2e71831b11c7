package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/getmockd/wiretap/pkg/recording"
)

// Format names an export representation.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCurl Format = "curl"
)

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("codec: unknown export format")

// ParseFormat converts a user-supplied name to a Format. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "curl":
		return FormatCurl, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Body encodings used by the YAML view.
const (
	BodyUTF8   = "utf8"
	BodyBase64 = "base64"
)

// yamlRecord is the human-readable export view of a record. Bodies are
// inlined as text when they are valid UTF-8 and base64 otherwise.
type yamlRecord struct {
	ID                   string            `yaml:"id"`
	Method               string            `yaml:"method"`
	URL                  string            `yaml:"url"`
	ObservedAt           string            `yaml:"observedAt"`
	RequestHeaders       map[string]string `yaml:"requestHeaders,omitempty"`
	RequestBody          string            `yaml:"requestBody,omitempty"`
	RequestBodyEncoding  string            `yaml:"requestBodyEncoding,omitempty"`
	ResponseCode         *int              `yaml:"responseCode,omitempty"`
	ResponseHeaders      map[string]string `yaml:"responseHeaders,omitempty"`
	ResponseBody         string            `yaml:"responseBody,omitempty"`
	ResponseBodyEncoding string            `yaml:"responseBodyEncoding,omitempty"`
	Duration             string            `yaml:"duration,omitempty"`
	Error                *string           `yaml:"error,omitempty"`
}

type yamlDocument struct {
	Version int          `yaml:"version"`
	Records []yamlRecord `yaml:"records"`
}

// EncodeYAML renders records as a YAML document for sharing. It is an
// export view only and is not read back.
func EncodeYAML(records []recording.Record) ([]byte, error) {
	doc := yamlDocument{Version: Version, Records: make([]yamlRecord, len(records))}
	for i, r := range records {
		y := yamlRecord{
			ID:              r.ID,
			Method:          r.Method,
			URL:             r.URL,
			ObservedAt:      r.ObservedAt.UTC().Format(time.RFC3339Nano),
			RequestHeaders:  r.RequestHeaders,
			ResponseCode:    r.ResponseCode,
			ResponseHeaders: r.ResponseHeaders,
			Error:           r.ErrorText,
		}
		y.RequestBody, y.RequestBodyEncoding = encodeBody(r.RequestBody)
		y.ResponseBody, y.ResponseBodyEncoding = encodeBody(r.ResponseBody)
		if r.Duration != nil {
			y.Duration = r.Duration.String()
		}
		doc.Records[i] = y
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("codec: encode yaml: %w", err)
	}
	return data, nil
}

func encodeBody(b []byte) (string, string) {
	if len(b) == 0 {
		return "", ""
	}
	if utf8.Valid(b) {
		return string(b), BodyUTF8
	}
	return base64.StdEncoding.EncodeToString(b), BodyBase64
}
