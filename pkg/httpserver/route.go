package httpserver

import (
	"fmt"

	"github.com/jespajo/votemap/pkg/container"
	"github.com/jespajo/votemap/pkg/regex"
)

// compiledMatcher holds a route's compiled whole-path pattern.
type compiledMatcher struct {
	re *regex.Regex
}

func compileRoute(pattern string) (compiledMatcher, error) {
	re, err := regex.Compile(pattern)
	if err != nil {
		return compiledMatcher{}, fmt.Errorf("httpserver: bad route pattern %q: %w", pattern, err)
	}
	return compiledMatcher{re: re}, nil
}

// match runs the route's pattern against path (the whole path, not a
// prefix or substring match) and returns any named captures.
func (m compiledMatcher) match(path string) (*container.Map[string, string], bool) {
	result := regex.Run(m.re, path)
	if !result.Success {
		return nil, false
	}
	return result.NamedCaptures(m.re, path), true
}
