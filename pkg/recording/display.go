package recording

import (
	"encoding/json"
	"fmt"
	"net/url"
	"unicode/utf8"

	"github.com/tidwall/pretty"
)

// StatusCategory groups a record by outcome for colouring and summaries.
type StatusCategory string

const (
	StatusPending     StatusCategory = "pending"
	StatusSuccess     StatusCategory = "success"
	StatusRedirect    StatusCategory = "redirect"
	StatusClientError StatusCategory = "clientError"
	StatusServerError StatusCategory = "serverError"
	StatusUnknown     StatusCategory = "unknown"
)

// BinaryPlaceholder is shown in place of bodies that are not text.
const BinaryPlaceholder = "<Binary Data>"

const shortURLMax = 50

// StatusCategory classifies the record by its response code.
// A record without a code is pending, including failed ones.
func (r Record) StatusCategory() StatusCategory {
	if r.ResponseCode == nil {
		return StatusPending
	}
	switch code := *r.ResponseCode; {
	case code >= 200 && code < 300:
		return StatusSuccess
	case code >= 300 && code < 400:
		return StatusRedirect
	case code >= 400 && code < 500:
		return StatusClientError
	case code >= 500 && code < 600:
		return StatusServerError
	default:
		return StatusUnknown
	}
}

// ShortURL returns the path of the URL for list display, "/" when empty,
// truncated to 50 characters.
func (r Record) ShortURL() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return r.URL
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if utf8.RuneCountInString(path) > shortURLMax {
		runes := []rune(path)
		return string(runes[:shortURLMax-3]) + "..."
	}
	return path
}

// FormattedDuration renders the duration as "-", "123ms" or "1.23s".
func (r Record) FormattedDuration() string {
	if r.Duration == nil {
		return "-"
	}
	secs := r.Duration.Seconds()
	if secs < 1 {
		return fmt.Sprintf("%.0fms", secs*1000)
	}
	return fmt.Sprintf("%.2fs", secs)
}

// RequestBodyString returns the request body formatted for display.
// The second result is false when there is no body.
func (r Record) RequestBodyString() (string, bool) {
	if r.RequestBody == nil {
		return "", false
	}
	return FormatBody(r.RequestBody), true
}

// ResponseBodyString returns the response body formatted for display.
func (r Record) ResponseBodyString() (string, bool) {
	if r.ResponseBody == nil {
		return "", false
	}
	return FormatBody(r.ResponseBody), true
}

// FormatBody pretty-prints JSON, falls back to the text when it is valid
// UTF-8, and to a placeholder otherwise.
func FormatBody(data []byte) string {
	if json.Valid(data) {
		return string(pretty.Pretty(data))
	}
	if utf8.Valid(data) {
		return string(data)
	}
	return BinaryPlaceholder
}
