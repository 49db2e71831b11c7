package intercept

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/getmockd/wiretap/pkg/config"
	"github.com/getmockd/wiretap/pkg/recording"
)

// Filter decides which requests are recorded.
//
// Precedence:
//  1. If the host or path matches ANY exclude pattern → NOT recorded
//  2. If include patterns exist AND matches NONE → NOT recorded
//  3. If a when expression is set and evaluates to false → NOT recorded
//  4. Otherwise → recorded
//
// Host patterns are case-insensitive, path patterns case-sensitive.
type Filter struct {
	includeHosts []string
	excludeHosts []string
	includePaths []string
	excludePaths []string
	when         *vm.Program
}

// requestEnv is the environment visible to when expressions.
type requestEnv struct {
	Method string `expr:"method"`
	Scheme string `expr:"scheme"`
	Host   string `expr:"host"`
	Path   string `expr:"path"`
	URL    string `expr:"url"`
}

// NewFilter compiles a capture configuration. A zero configuration yields
// a nil filter, which records everything.
func NewFilter(cfg config.CaptureConfig) (*Filter, error) {
	if cfg.IsZero() {
		return nil, nil
	}
	f := &Filter{
		includeHosts: lowerAll(cfg.IncludeHosts),
		excludeHosts: lowerAll(cfg.ExcludeHosts),
		includePaths: cfg.IncludePaths,
		excludePaths: cfg.ExcludePaths,
	}
	for _, patterns := range [][]string{f.includeHosts, f.excludeHosts, f.includePaths, f.excludePaths} {
		for _, p := range patterns {
			if !doublestar.ValidatePattern(p) {
				return nil, fmt.Errorf("invalid capture pattern %q", p)
			}
		}
	}
	if when := strings.TrimSpace(cfg.When); when != "" {
		program, err := expr.Compile(when, expr.Env(requestEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile capture expression %q: %w", when, err)
		}
		f.when = program
	}
	return f, nil
}

// Allows reports whether req should be recorded. A nil filter allows all.
func (f *Filter) Allows(req *http.Request) bool {
	if f == nil {
		return true
	}
	host := strings.ToLower(req.URL.Hostname())
	path := req.URL.Path
	if path == "" {
		path = "/"
	}

	if matchAny(f.excludeHosts, host) || matchAny(f.excludePaths, path) {
		return false
	}
	if len(f.includeHosts) > 0 && !matchAny(f.includeHosts, host) {
		return false
	}
	if len(f.includePaths) > 0 && !matchAny(f.includePaths, path) {
		return false
	}
	if f.when != nil {
		out, err := expr.Run(f.when, requestEnv{
			Method: recording.NormalizeMethod(req.Method),
			Scheme: strings.ToLower(req.URL.Scheme),
			Host:   host,
			Path:   path,
			URL:    req.URL.String(),
		})
		if err != nil {
			return false
		}
		ok, _ := out.(bool)
		return ok
	}
	return true
}

func matchAny(patterns []string, s string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, s); ok {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
