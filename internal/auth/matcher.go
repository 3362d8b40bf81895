// ABOUTME: Route matchers deciding which request paths go through session validation.
// ABOUTME: Ships the two known presets ("default" and "strict") plus public route patterns.
package auth

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// APIPrefix is the path prefix of every remote procedure.
const APIPrefix = "/api/"

// alwaysIgnored are operational endpoints that never see the gate.
var alwaysIgnored = []string{"/healthz", "/metrics"}

// fileExtension matches a final path segment ending in an extension, e.g. /logo.svg.
var fileExtension = regexp.MustCompile(`^/.+\.[\w]+$`)

// Matcher reports whether a path is subject to session validation.
type Matcher struct {
	name           string
	ignorePrefixes []string
	ignoreAnyDot   bool // skip any path containing a '.'
	ignoreFileExt  bool // skip paths ending in .ext
}

var presets = map[string]*Matcher{
	// Gates API routes and every page except static assets, framework internals and
	// anything that looks like a file.
	"default": {
		name:           "default",
		ignorePrefixes: []string{"/static", "/_next", "/favicon.ico"},
		ignoreAnyDot:   true,
	},
	// Gates everything but paths ending in a file extension and framework internals.
	"strict": {
		name:           "strict",
		ignorePrefixes: []string{"/_next"},
		ignoreFileExt:  true,
	},
}

// MatcherNames lists the available presets.
func MatcherNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MatcherByName returns the preset with the given name.
func MatcherByName(name string) (*Matcher, error) {
	m, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown route matcher %q (want one of %s)", name, strings.Join(MatcherNames(), ", "))
	}
	return m, nil
}

// Name returns the preset name.
func (m *Matcher) Name() string {
	return m.name
}

// Matches reports whether path must go through the gate.
func (m *Matcher) Matches(path string) bool {
	if path == "" {
		path = "/"
	}
	for _, p := range alwaysIgnored {
		if path == p {
			return false
		}
	}
	if path == "/" || strings.HasPrefix(path, APIPrefix) {
		return true
	}
	for _, p := range m.ignorePrefixes {
		if strings.HasPrefix(path, p) {
			return false
		}
	}
	if m.ignoreAnyDot && strings.Contains(path, ".") {
		return false
	}
	if m.ignoreFileExt && fileExtension.MatchString(path) {
		return false
	}
	return true
}

// RouteSet is a list of route patterns. A pattern is an exact path, or a prefix
// ending in "/*" that matches the prefix itself and everything below it.
type RouteSet []string

// Contains reports whether path matches one of the patterns.
func (rs RouteSet) Contains(path string) bool {
	for _, pattern := range rs {
		if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return true
			}
			continue
		}
		if path == pattern {
			return true
		}
	}
	return false
}
