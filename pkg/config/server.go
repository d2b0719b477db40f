package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/browserapi/pkg/types"
)

const (
	// SectionIDServer is the identifier for the HTTP server section
	SectionIDServer = "server"

	DefaultListenAddr      = ":8004"
	DefaultRoutePrefix     = "/api"
	DefaultShutdownTimeout = 10 * time.Second
)

// ServerSection configures the HTTP control plane.
type ServerSection struct {
	ListenAddr  string
	RoutePrefix string
	ServiceName string
	LogLevel    string
	LogDir      string

	// SerializeActions runs engine work for one request at a time. Off by
	// default: concurrent requests share the page without a queue.
	SerializeActions bool

	ShutdownTimeout time.Duration
	mu              sync.RWMutex
}

// NewServerSection creates a server section with default settings.
func NewServerSection() *ServerSection {
	s := &ServerSection{}
	s.Reset()
	return s
}

func (s *ServerSection) ID() string    { return SectionIDServer }
func (s *ServerSection) Title() string { return "Server Settings" }

func (s *ServerSection) Description() string {
	return "HTTP listen address, route prefix, logging, and whether browser actions are queued one at a time."
}

// Data returns the current configuration data.
func (s *ServerSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"listen_addr":       s.ListenAddr,
		"route_prefix":      s.RoutePrefix,
		"service_name":      s.ServiceName,
		"log_level":         s.LogLevel,
		"log_dir":           s.LogDir,
		"serialize_actions": s.SerializeActions,
		"shutdown_timeout":  s.ShutdownTimeout.String(),
	}
}

// SetData updates the configuration from the provided data.
func (s *ServerSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := asString(data["listen_addr"]); ok {
		s.ListenAddr = v
	}
	if v, ok := asString(data["route_prefix"]); ok {
		s.RoutePrefix = v
	}
	if v, ok := asString(data["service_name"]); ok {
		s.ServiceName = v
	}
	if v, ok := asString(data["log_level"]); ok {
		s.LogLevel = v
	}
	if v, ok := asString(data["log_dir"]); ok {
		s.LogDir = v
	}
	if v, ok := asBool(data["serialize_actions"]); ok {
		s.SerializeActions = v
	}
	d, ok, err := asDuration(data["shutdown_timeout"])
	if err != nil {
		return fmt.Errorf("shutdown_timeout: %w", err)
	}
	if ok {
		s.ShutdownTimeout = d
	}
	return nil
}

// Validate validates the current configuration.
func (s *ServerSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if s.RoutePrefix != "" && !strings.HasPrefix(s.RoutePrefix, "/") {
		return fmt.Errorf("route_prefix must start with '/': %q", s.RoutePrefix)
	}
	if s.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must not be negative")
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *ServerSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListenAddr = DefaultListenAddr
	s.RoutePrefix = DefaultRoutePrefix
	s.ServiceName = types.ServiceName
	s.LogLevel = "info"
	s.LogDir = ""
	s.SerializeActions = false
	s.ShutdownTimeout = DefaultShutdownTimeout
}

// Snapshot returns a copy of the section's values safe to read without
// holding the lock.
func (s *ServerSection) Snapshot() ServerSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ServerSettings{
		ListenAddr:       s.ListenAddr,
		RoutePrefix:      strings.TrimSuffix(s.RoutePrefix, "/"),
		ServiceName:      s.ServiceName,
		LogLevel:         s.LogLevel,
		LogDir:           s.LogDir,
		SerializeActions: s.SerializeActions,
		ShutdownTimeout:  s.ShutdownTimeout,
	}
}

// SetListenAddr overrides the listen address, typically from a CLI flag.
func (s *ServerSection) SetListenAddr(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListenAddr = addr
}

// ServerSettings is an immutable view of ServerSection.
type ServerSettings struct {
	ListenAddr       string
	RoutePrefix      string
	ServiceName      string
	LogLevel         string
	LogDir           string
	SerializeActions bool
	ShutdownTimeout  time.Duration
}
