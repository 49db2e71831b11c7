package intercept

import "net/http"

// Middleware wraps a RoundTripper.
type Middleware func(next http.RoundTripper) http.RoundTripper

// TransportConfig describes a client transport as a base RoundTripper and
// a chain of middlewares. The first middleware is the outermost one and
// sees each request first.
type TransportConfig struct {
	Base        http.RoundTripper
	Middlewares []Middleware
}

// RoundTripper assembles the chain. A nil Base means http.DefaultTransport.
func (c *TransportConfig) RoundTripper() http.RoundTripper {
	var rt http.RoundTripper = http.DefaultTransport
	if c != nil && c.Base != nil {
		rt = c.Base
	}
	if c == nil {
		return rt
	}
	for i := len(c.Middlewares) - 1; i >= 0; i-- {
		if mw := c.Middlewares[i]; mw != nil {
			rt = mw(rt)
		}
	}
	return rt
}

// Prepend returns a config with mw as the first middleware, keeping every
// middleware already present. A nil config yields a new chain holding only
// mw. The receiver is not modified.
func (c *TransportConfig) Prepend(mw Middleware) *TransportConfig {
	out := &TransportConfig{Middlewares: []Middleware{mw}}
	if c == nil {
		return out
	}
	out.Base = c.Base
	out.Middlewares = append(out.Middlewares, c.Middlewares...)
	return out
}

// Middleware returns a Middleware producing siblings of t (see Wrap).
func (t *Transport) Middleware() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return t.Wrap(next)
	}
}
