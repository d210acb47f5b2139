// Package catalog holds the static registry of lookup services. The catalog is
// built once at startup and never mutated; components receive it by reference.
package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"infobroker/pkg/sentinel"
)

// Service describes one supported lookup type.
type Service struct {
	Key          string
	Name         string
	Command      string
	URLTemplate  string // single {query} placeholder
	Pattern      string // unanchored input pattern; New adds full-string anchors
	Example      string
	Cost         int64
	Protectable  bool
	ExtraHeaders map[string]string
	Uppercase    bool // canonical form is uppercase; normalize before dispatch

	pattern *regexp.Regexp
}

// Catalog is an ordered, immutable set of services. Declared order is the
// matching order; first match wins.
type Catalog struct {
	services []Service
	byKey    map[string]int
}

// New compiles every pattern with full-string anchors so partial matches are
// rejected (an 11-digit string must not match a 10-digit phone pattern).
func New(defs []Service) (*Catalog, error) {
	c := &Catalog{byKey: make(map[string]int, len(defs))}
	for _, def := range defs {
		if _, dup := c.byKey[def.Key]; dup {
			return nil, fmt.Errorf("duplicate service key %q", def.Key)
		}
		re, err := regexp.Compile(`(?i)^(?:` + def.Pattern + `)$`)
		if err != nil {
			return nil, fmt.Errorf("compile pattern for %q: %w", def.Key, err)
		}
		def.pattern = re
		c.byKey[def.Key] = len(c.services)
		c.services = append(c.services, def)
	}
	return c, nil
}

// Lookup returns the service for a key.
func (c *Catalog) Lookup(key string) (Service, error) {
	idx, ok := c.byKey[key]
	if !ok {
		return Service{}, fmt.Errorf("service %q: %w", key, sentinel.ErrNotFound)
	}
	return c.services[idx], nil
}

// Match returns the first service whose pattern fully matches the trimmed
// text. Patterns in the reference catalog are mutually exclusive, but the
// contract only promises first-registered-wins.
func (c *Catalog) Match(text string) (Service, bool) {
	text = strings.TrimSpace(text)
	for _, svc := range c.services {
		if svc.pattern.MatchString(text) {
			return svc, true
		}
	}
	return Service{}, false
}

// MatchAll returns every fully matching service in declared order.
func (c *Catalog) MatchAll(text string) []Service {
	text = strings.TrimSpace(text)
	var out []Service
	for _, svc := range c.services {
		if svc.pattern.MatchString(text) {
			out = append(out, svc)
		}
	}
	return out
}

// Valid reports whether text is a well-formed query for the service.
func (s Service) Valid(text string) bool {
	return s.pattern.MatchString(strings.TrimSpace(text))
}

// Normalize trims surrounding whitespace and upper-cases values for services
// whose canonical form is uppercase (vehicle registration, bank routing code).
func (s Service) Normalize(text string) string {
	text = strings.TrimSpace(text)
	if s.Uppercase {
		return strings.ToUpper(text)
	}
	return text
}

// QueryURL embeds the normalized value into the outbound URL.
func (s Service) QueryURL(normalized string) string {
	return strings.ReplaceAll(s.URLTemplate, "{query}", normalized)
}

// Services returns the catalog in declared order.
func (c *Catalog) Services() []Service {
	out := make([]Service, len(c.services))
	copy(out, c.services)
	return out
}

// Len returns the number of registered services.
func (c *Catalog) Len() int { return len(c.services) }
