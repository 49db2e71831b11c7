package cli

import (
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/getmockd/wiretap/pkg/cli/internal/output"
	"github.com/getmockd/wiretap/pkg/recording"
)

// printResult outputs a single operation result.
//
// Contract: when --json is active, ONLY the JSON encoding of data is written
// to w. Human-readable prose must go to stderr or be omitted entirely.
// textFn is called only in text mode.
func printResult(w io.Writer, data any, textFn func()) error {
	if jsonOutput {
		return output.JSON(w, data)
	}
	textFn()
	return nil
}

var statusColors = map[recording.StatusCategory]*color.Color{
	recording.StatusPending:     color.New(color.FgYellow),
	recording.StatusSuccess:     color.New(color.FgGreen),
	recording.StatusRedirect:    color.New(color.FgCyan),
	recording.StatusClientError: color.New(color.FgRed),
	recording.StatusServerError: color.New(color.FgHiRed, color.Bold),
	recording.StatusUnknown:     color.New(color.FgMagenta),
}

// statusLabel renders the response code, "pending" or "failed", coloured
// by status category.
func statusLabel(r recording.Record) string {
	label := "pending"
	switch {
	case r.ResponseCode != nil:
		label = strconv.Itoa(*r.ResponseCode)
	case r.Failed():
		label = "failed"
	}
	c, ok := statusColors[r.StatusCategory()]
	if r.Failed() && r.ResponseCode == nil {
		c, ok = statusColors[recording.StatusServerError], true
	}
	if !ok {
		return label
	}
	return c.Sprint(label)
}

func bodySize(b []byte) string {
	if b == nil {
		return "-"
	}
	return humanize.Bytes(uint64(len(b)))
}

func when(t time.Time) string {
	return humanize.Time(t)
}
