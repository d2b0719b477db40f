package config

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

const (
	// SectionIDNavigation is the identifier for the navigation policy section
	SectionIDNavigation = "navigation"
)

// NavigationSection holds host patterns that gate /navigate.
//
// Patterns are globs over the host name with '.' as separator, so
// "*.example.com" matches "docs.example.com" but not
// "a.docs.example.com"; use "**.example.com" for any depth.
type NavigationSection struct {
	AllowedHosts []string
	DeniedHosts  []string
	mu           sync.RWMutex
}

// NewNavigationSection creates an empty navigation section (everything allowed).
func NewNavigationSection() *NavigationSection {
	return &NavigationSection{}
}

func (s *NavigationSection) ID() string    { return SectionIDNavigation }
func (s *NavigationSection) Title() string { return "Navigation Policy" }

func (s *NavigationSection) Description() string {
	return "Host glob patterns allowed or denied for navigation. Denied patterns win; an empty allow list allows every host."
}

// Data returns the current configuration data.
func (s *NavigationSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"allowed_hosts": append([]string{}, s.AllowedHosts...),
		"denied_hosts":  append([]string{}, s.DeniedHosts...),
	}
}

// SetData updates the configuration from the provided data.
func (s *NavigationSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	allowed, ok, err := asStringSlice(data["allowed_hosts"])
	if err != nil {
		return fmt.Errorf("allowed_hosts: %w", err)
	}
	if ok {
		s.AllowedHosts = allowed
	}
	denied, ok, err := asStringSlice(data["denied_hosts"])
	if err != nil {
		return fmt.Errorf("denied_hosts: %w", err)
	}
	if ok {
		s.DeniedHosts = denied
	}
	return nil
}

// Validate compiles every pattern.
func (s *NavigationSection) Validate() error {
	_, err := s.Policy()
	return err
}

// Reset resets the section to default configuration.
func (s *NavigationSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AllowedHosts = nil
	s.DeniedHosts = nil
}

// Policy compiles the current patterns.
func (s *NavigationSection) Policy() (*NavigationPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return NewNavigationPolicy(s.AllowedHosts, s.DeniedHosts)
}

// NavigationPolicy decides whether a URL may be opened.
type NavigationPolicy struct {
	allowed []glob.Glob
	denied  []glob.Glob
}

// NewNavigationPolicy compiles allow and deny host patterns.
func NewNavigationPolicy(allowed, denied []string) (*NavigationPolicy, error) {
	p := &NavigationPolicy{}

	for _, pattern := range allowed {
		g, err := glob.Compile(strings.ToLower(pattern), '.')
		if err != nil {
			return nil, fmt.Errorf("invalid allowed host pattern '%s': %w", pattern, err)
		}
		p.allowed = append(p.allowed, g)
	}
	for _, pattern := range denied {
		g, err := glob.Compile(strings.ToLower(pattern), '.')
		if err != nil {
			return nil, fmt.Errorf("invalid denied host pattern '%s': %w", pattern, err)
		}
		p.denied = append(p.denied, g)
	}
	return p, nil
}

// Check returns an error when rawURL's host is not permitted. URLs without
// a host (about:blank, data:) are left to the browser.
func (p *NavigationPolicy) Check(rawURL string) error {
	if p == nil || (len(p.allowed) == 0 && len(p.denied) == 0) {
		return nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil
	}

	for _, g := range p.denied {
		if g.Match(host) {
			return fmt.Errorf("navigation to host %q is denied by policy", host)
		}
	}
	if len(p.allowed) == 0 {
		return nil
	}
	for _, g := range p.allowed {
		if g.Match(host) {
			return nil
		}
	}
	return fmt.Errorf("navigation to host %q is not in the allowed host list", host)
}
