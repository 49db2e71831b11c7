package admin

import (
	"errors"
	"net/http"
	"time"

	"github.com/getmockd/wiretap/pkg/codec"
	"github.com/getmockd/wiretap/pkg/httputil"
	"github.com/getmockd/wiretap/pkg/recording"
	"github.com/getmockd/wiretap/pkg/requestlog"
	"github.com/getmockd/wiretap/pkg/wiretap"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Uptime    int    `json:"uptime"`
	Recording bool   `json:"recording"`
}

// RecordView is the JSON shape of a record in API responses. Bodies are
// rendered for display.
type RecordView struct {
	ID              string            `json:"id"`
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	Path            string            `json:"path"`
	ObservedAt      time.Time         `json:"observedAt"`
	Status          string            `json:"status"`
	RequestHeaders  map[string]string `json:"requestHeaders"`
	RequestBody     *string           `json:"requestBody,omitempty"`
	ResponseCode    *int              `json:"responseCode,omitempty"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`
	ResponseBody    *string           `json:"responseBody,omitempty"`
	Duration        string            `json:"duration"`
	DurationMs      *float64          `json:"durationMs,omitempty"`
	Error           *string           `json:"error,omitempty"`
}

// ListResponse is returned by GET /requests.
type ListResponse struct {
	Requests []RecordView `json:"requests"`
	Count    int          `json:"count"`
	Total    int          `json:"total"`
}

// NewRecordView builds the API view of r.
func NewRecordView(r recording.Record) RecordView {
	v := RecordView{
		ID:              r.ID,
		Method:          r.Method,
		URL:             r.URL,
		Path:            r.ShortURL(),
		ObservedAt:      r.ObservedAt,
		Status:          string(r.StatusCategory()),
		RequestHeaders:  r.RequestHeaders,
		ResponseCode:    r.ResponseCode,
		ResponseHeaders: r.ResponseHeaders,
		Duration:        r.FormattedDuration(),
		Error:           r.ErrorText,
	}
	if body, ok := r.RequestBodyString(); ok {
		v.RequestBody = &body
	}
	if body, ok := r.ResponseBodyString(); ok {
		v.ResponseBody = &body
	}
	if r.Duration != nil {
		ms := float64(*r.Duration) / float64(time.Millisecond)
		v.DurationMs = &ms
	}
	return v
}

// handleHealth handles GET /health.
func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, HealthResponse{
		Status:    "ok",
		Uptime:    a.Uptime(),
		Recording: a.rec.Enabled(),
	})
}

// handleListRequests handles GET /requests.
//
// Query parameters:
//   - q: substring of the URL, method or status code (case-insensitive)
//   - limit: maximum number of records to return
func (a *API) handleListRequests(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, ok := parsePositiveInt(raw)
		if !ok {
			httputil.WriteBadRequest(w, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	records := a.rec.Filter(query.Get("q"))
	total := len(records)
	if limit > 0 && limit < total {
		records = records[:limit]
	}

	views := make([]RecordView, 0, len(records))
	for _, rec := range records {
		views = append(views, NewRecordView(rec))
	}
	httputil.WriteOK(w, ListResponse{
		Requests: views,
		Count:    len(views),
		Total:    total,
	})
}

// handleGetRequest handles GET /requests/{id}.
func (a *API) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.WriteBadRequest(w, "missing_id", "Request ID is required")
		return
	}
	rec, ok := a.rec.Get(id)
	if !ok {
		httputil.WriteNotFound(w, "not_found", "Request not found")
		return
	}
	httputil.WriteOK(w, NewRecordView(rec))
}

// handleClearRequests handles DELETE /requests.
func (a *API) handleClearRequests(w http.ResponseWriter, _ *http.Request) {
	if err := a.rec.Clear(); err != nil {
		a.writeRecorderError(w, "clear requests", err)
		return
	}
	httputil.WriteNoContent(w)
}

// handleExport handles GET /requests/export?format=json|yaml|curl.
func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := codec.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		httputil.WriteBadRequest(w, "invalid_format", err.Error())
		return
	}
	data, err := a.rec.Export(format)
	if err != nil {
		a.writeRecorderError(w, "export requests", err)
		return
	}
	httputil.WriteBytes(w, http.StatusOK, contentType(format), data)
}

func contentType(f codec.Format) string {
	switch f {
	case codec.FormatYAML:
		return "application/yaml"
	case codec.FormatCurl:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// writeRecorderError maps recorder errors to responses. Details stay in
// the log.
func (a *API) writeRecorderError(w http.ResponseWriter, operation string, err error) {
	if errors.Is(err, wiretap.ErrClosed) || errors.Is(err, requestlog.ErrClosed) {
		httputil.WriteServiceUnavailable(w, "recorder_closed", "Recorder is closed")
		return
	}
	a.log.Error("operation failed", "operation", operation, "error", err)
	httputil.WriteInternalError(w, "internal_error", "An internal error occurred")
}
