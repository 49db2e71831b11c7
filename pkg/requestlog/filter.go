package requestlog

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/getmockd/wiretap/pkg/recording"
)

// Matches reports whether rec matches the search text: a case-insensitive
// substring of the URL, the method or the response code. Empty text
// matches everything.
func Matches(rec recording.Record, text string) bool {
	if text == "" {
		return true
	}
	return newMatcher(text).match(rec)
}

type matcher struct {
	fold   cases.Caser
	needle string
	code   string
}

func newMatcher(text string) *matcher {
	fold := cases.Fold()
	return &matcher{
		fold:   fold,
		needle: fold.String(text),
		code:   strings.TrimSpace(text),
	}
}

func (m *matcher) match(rec recording.Record) bool {
	if strings.Contains(m.fold.String(rec.URL), m.needle) {
		return true
	}
	if strings.Contains(m.fold.String(rec.Method), m.needle) {
		return true
	}
	return rec.ResponseCode != nil && strings.Contains(strconv.Itoa(*rec.ResponseCode), m.code)
}

// filterRecords returns the records matching text, keeping their order.
func filterRecords(records []recording.Record, text string) []recording.Record {
	if text == "" {
		return records
	}
	m := newMatcher(text)
	out := make([]recording.Record, 0, len(records))
	for _, r := range records {
		if m.match(r) {
			out = append(out, r)
		}
	}
	return out
}
