// Package admin provides the inspector HTTP API for a running recorder.
//
// Endpoints:
//
//	GET    /health           - Health check
//	GET    /requests         - List records, newest first (?q= filter, ?limit=)
//	GET    /requests/{id}    - Get a single record
//	DELETE /requests         - Clear the log
//	GET    /requests/export  - Export the log (?format=json|yaml|curl)
//	GET    /requests/stream  - Server-sent change events
//	GET    /requests/ws      - WebSocket change events
//	GET    /metrics          - Prometheus metrics
//
// Usage:
//
//	rec, _ := wiretap.New(config.Default())
//	api := admin.New(rec, admin.WithLogger(logger))
//	http.ListenAndServe("127.0.0.1:4280", api.Handler())
package admin
