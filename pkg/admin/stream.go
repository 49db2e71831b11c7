package admin

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/getmockd/wiretap/pkg/httputil"
	"github.com/getmockd/wiretap/pkg/requestlog"
)

const (
	wsWriteTimeout = 5 * time.Second
	sseRetryMillis = 2000
)

// ChangeMessage is one change notification on the stream endpoints.
// Request is set for inserted and updated events when the record is
// still in the log.
type ChangeMessage struct {
	requestlog.Event
	Request *RecordView `json:"request,omitempty"`
}

func (a *API) changeMessage(ev requestlog.Event) ChangeMessage {
	msg := ChangeMessage{Event: ev}
	if ev.ID != "" {
		if rec, ok := a.rec.Get(ev.ID); ok {
			view := NewRecordView(rec)
			msg.Request = &view
		}
	}
	return msg
}

// handleStream handles GET /requests/stream, a server-sent event feed of
// log changes. The stream ends when the client goes away or the recorder
// is closed.
func (a *API) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteInternalError(w, "sse_error", "Streaming not supported")
		return
	}

	events, unsubscribe := a.rec.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	connected, _ := formatEvent(sseEvent{Type: "connected", Retry: sseRetryMillis, Data: "{}"})
	if _, err := io.WriteString(w, connected); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(a.keepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := io.WriteString(w, formatComment("keep-alive")); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			frame, err := formatEvent(sseEvent{
				Type: string(ev.Type),
				ID:   ev.ID,
				Data: a.changeMessage(ev),
			})
			if err != nil {
				a.log.Warn("encode change event", "error", err)
				continue
			}
			if _, err := io.WriteString(w, frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// handleWebSocket handles GET /requests/ws. Each change is sent as one
// JSON text message; anything the client sends is ignored.
func (a *API) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	events, unsubscribe := a.rec.Subscribe()
	defer unsubscribe()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: !a.verifyOrigin,
	})
	if err != nil {
		a.log.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "recorder closed")
				return
			}
			if err := a.writeMessage(ctx, conn, a.changeMessage(ev)); err != nil {
				a.log.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

func (a *API) writeMessage(ctx context.Context, conn *websocket.Conn, msg ChangeMessage) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}
