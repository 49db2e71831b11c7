package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SSE field prefixes.
const (
	fieldEvent   = "event: "
	fieldData    = "data: "
	fieldID      = "id: "
	fieldRetry   = "retry: "
	fieldComment = ": "
)

var errInvalidField = errors.New("admin: sse field contains a line break")

// sseEvent is one server-sent event.
type sseEvent struct {
	Type  string
	ID    string
	Retry int
	// Data is written as is when it is a string or []byte and JSON-encoded
	// otherwise.
	Data any
}

// formatEvent renders ev in the text/event-stream wire format. Multi-line
// data is split across several data fields.
func formatEvent(ev sseEvent) (string, error) {
	var sb strings.Builder

	if ev.Type != "" {
		if strings.ContainsAny(ev.Type, "\r\n") {
			return "", errInvalidField
		}
		sb.WriteString(fieldEvent)
		sb.WriteString(ev.Type)
		sb.WriteByte('\n')
	}
	if ev.ID != "" {
		if strings.ContainsAny(ev.ID, "\r\n") {
			return "", errInvalidField
		}
		sb.WriteString(fieldID)
		sb.WriteString(ev.ID)
		sb.WriteByte('\n')
	}
	if ev.Retry > 0 {
		sb.WriteString(fieldRetry)
		sb.WriteString(strconv.Itoa(ev.Retry))
		sb.WriteByte('\n')
	}

	data, err := formatData(ev.Data)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(data, "\n") {
		sb.WriteString(fieldData)
		sb.WriteString(line)
		sb.WriteByte('\n')
	}

	// A blank line dispatches the event.
	sb.WriteByte('\n')
	return sb.String(), nil
}

// formatComment renders a comment; EventSource clients ignore it.
func formatComment(comment string) string {
	var sb strings.Builder
	for _, line := range strings.Split(comment, "\n") {
		sb.WriteString(fieldComment)
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	return sb.String()
}

func formatData(data any) (string, error) {
	switch v := data.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to marshal event data: %w", err)
		}
		return string(b), nil
	}
}
