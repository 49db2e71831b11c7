package admin

import (
	"log/slog"
	"time"
)

// Option configures an API.
type Option func(*API)

// WithLogger sets the request logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *API) {
		if log != nil {
			a.log = log
		}
	}
}

// WithCORS configures the CORS settings.
// If not set, every origin is allowed.
func WithCORS(config CORSConfig) Option {
	return func(a *API) {
		a.cors = config
	}
}

// WithKeepAlive sets the SSE keep-alive interval.
func WithKeepAlive(d time.Duration) Option {
	return func(a *API) {
		if d > 0 {
			a.keepAlive = d
		}
	}
}

// WithOriginVerification makes the websocket upgrade reject cross-origin
// requests.
func WithOriginVerification(verify bool) Option {
	return func(a *API) {
		a.verifyOrigin = verify
	}
}
