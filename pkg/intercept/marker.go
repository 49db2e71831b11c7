package intercept

import (
	"context"
	"net/http"
)

type forwardedKey struct{}

// MarkForwarded returns a shallow copy of req carrying the forwarding
// marker. Marked requests are never captured again.
func MarkForwarded(req *http.Request) *http.Request {
	return req.WithContext(markContext(req.Context()))
}

// IsForwarded reports whether req carries the forwarding marker.
func IsForwarded(req *http.Request) bool {
	v, _ := req.Context().Value(forwardedKey{}).(bool)
	return v
}

func markContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, forwardedKey{}, true)
}
