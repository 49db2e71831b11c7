// Package export renders recorded requests for sharing.
package export

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/getmockd/wiretap/pkg/codec"
	"github.com/getmockd/wiretap/pkg/recording"
)

// Render encodes records in the given format. JSON is the persistence
// encoding, so a JSON export can be decoded with codec.Decode.
func Render(format codec.Format, records []recording.Record) ([]byte, error) {
	switch format {
	case codec.FormatJSON, "":
		return codec.Encode(records)
	case codec.FormatYAML:
		return codec.EncodeYAML(records)
	case codec.FormatCurl:
		var b strings.Builder
		for i, r := range records {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "# %s %s\n", r.Method, r.ID)
			b.WriteString(AsCurl(r))
			b.WriteString("\n")
		}
		return []byte(b.String()), nil
	default:
		return nil, fmt.Errorf("%w: %q", codec.ErrUnknownFormat, format)
	}
}

// AsCurl converts a recorded request to a curl command string.
// Headers are emitted in name order. Bodies that are not valid UTF-8 are
// left out with a trailing comment.
func AsCurl(r recording.Record) string {
	var parts []string
	parts = append(parts, "curl")

	// Method
	method := recording.NormalizeMethod(r.Method)
	if method != http.MethodGet {
		parts = append(parts, "-X", method)
	}

	// Headers
	names := make([]string, 0, len(r.RequestHeaders))
	for k := range r.RequestHeaders {
		if strings.EqualFold(k, "Content-Length") {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		parts = append(parts, "-H", quote(fmt.Sprintf("%s: %s", k, r.RequestHeaders[k])))
	}

	// Body
	var note string
	if len(r.RequestBody) > 0 {
		if utf8.Valid(r.RequestBody) {
			parts = append(parts, "--data-raw", quote(string(r.RequestBody)))
		} else {
			note = fmt.Sprintf(" # binary body omitted (%d bytes)", len(r.RequestBody))
		}
	}

	parts = append(parts, quote(r.URL))
	return strings.Join(parts, " ") + note
}

// quote wraps s in single quotes for a POSIX shell.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
