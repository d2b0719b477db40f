package config

import (
	"fmt"
	"sync"
	"time"
)

const (
	// SectionIDBrowser is the identifier for the browser launch section
	SectionIDBrowser = "browser"

	DefaultViewportWidth      = 1024
	DefaultViewportHeight     = 768
	DefaultDownloadsPath      = "/workspace/downloads"
	DefaultProbePrimaryURL    = "http://www.google.com"
	DefaultProbeFallbackURL   = "https://www.google.com"
	DefaultNavigationTimeout  = 60 * time.Second
	DefaultConvertTimeout     = 10 * time.Second
	DefaultConvertSettleDelay = 500 * time.Millisecond
)

// DefaultLaunchArgs relax Chromium's sandboxing and background behavior so
// the browser runs inside an unprivileged container.
var DefaultLaunchArgs = []string{
	"--no-sandbox",
	"--disable-setuid-sandbox",
	"--disable-dev-shm-usage",
	"--disable-gpu",
	"--ignore-certificate-errors",
	"--ignore-ssl-errors",
	"--ignore-certificate-errors-spki-list",
	"--disable-web-security",
	"--allow-running-insecure-content",
	"--disable-features=IsolateOrigins,site-per-process",
	"--disable-site-isolation-trials",
	"--disable-blink-features=AutomationControlled",
	"--no-first-run",
	"--no-default-browser-check",
	"--disable-default-apps",
	"--disable-popup-blocking",
	"--disable-translate",
	"--disable-background-networking",
	"--disable-sync",
	"--metrics-recording-only",
	"--mute-audio",
	"--no-pings",
	"--disable-background-timer-throttling",
	"--disable-renderer-backgrounding",
	"--disable-backgrounding-occluded-windows",
	"--disable-ipc-flooding-protection",
}

// BrowserSection configures how the browser is launched and probed.
type BrowserSection struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	DownloadsPath  string
	LaunchArgs     []string
	EnableCaching  bool
	InstallDriver  bool

	ProbePrimaryURL    string
	ProbeFallbackURL   string
	NavigationTimeout  time.Duration
	ConvertTimeout     time.Duration
	ConvertSettleDelay time.Duration

	mu sync.RWMutex
}

// NewBrowserSection creates a browser section with default settings.
func NewBrowserSection() *BrowserSection {
	s := &BrowserSection{}
	s.Reset()
	return s
}

func (s *BrowserSection) ID() string    { return SectionIDBrowser }
func (s *BrowserSection) Title() string { return "Browser Settings" }

func (s *BrowserSection) Description() string {
	return "Browser launch options, connectivity probe URLs, and navigation timeouts."
}

// Data returns the current configuration data.
func (s *BrowserSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"headless":             s.Headless,
		"viewport_width":       s.ViewportWidth,
		"viewport_height":      s.ViewportHeight,
		"downloads_path":       s.DownloadsPath,
		"launch_args":          append([]string(nil), s.LaunchArgs...),
		"enable_caching":       s.EnableCaching,
		"install_driver":       s.InstallDriver,
		"probe_primary_url":    s.ProbePrimaryURL,
		"probe_fallback_url":   s.ProbeFallbackURL,
		"navigation_timeout":   s.NavigationTimeout.String(),
		"convert_timeout":      s.ConvertTimeout.String(),
		"convert_settle_delay": s.ConvertSettleDelay.String(),
	}
}

// SetData updates the configuration from the provided data.
func (s *BrowserSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := asBool(data["headless"]); ok {
		s.Headless = v
	}
	if v, ok := asBool(data["enable_caching"]); ok {
		s.EnableCaching = v
	}
	if v, ok := asBool(data["install_driver"]); ok {
		s.InstallDriver = v
	}
	if v, ok := asString(data["downloads_path"]); ok {
		s.DownloadsPath = v
	}
	if v, ok := asString(data["probe_primary_url"]); ok {
		s.ProbePrimaryURL = v
	}
	if v, ok := asString(data["probe_fallback_url"]); ok {
		s.ProbeFallbackURL = v
	}

	ints := map[string]*int{
		"viewport_width":  &s.ViewportWidth,
		"viewport_height": &s.ViewportHeight,
	}
	for key, dst := range ints {
		v, ok, err := asInt(data[key])
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"navigation_timeout":   &s.NavigationTimeout,
		"convert_timeout":      &s.ConvertTimeout,
		"convert_settle_delay": &s.ConvertSettleDelay,
	}
	for key, dst := range durations {
		v, ok, err := asDuration(data[key])
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if ok {
			*dst = v
		}
	}

	args, ok, err := asStringSlice(data["launch_args"])
	if err != nil {
		return fmt.Errorf("launch_args: %w", err)
	}
	if ok {
		s.LaunchArgs = args
	}
	return nil
}

// Validate validates the current configuration.
func (s *BrowserSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ViewportWidth <= 0 || s.ViewportHeight <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", s.ViewportWidth, s.ViewportHeight)
	}
	if s.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation_timeout must be positive")
	}
	if s.ConvertTimeout <= 0 {
		return fmt.Errorf("convert_timeout must be positive")
	}
	if s.ConvertSettleDelay < 0 {
		return fmt.Errorf("convert_settle_delay must not be negative")
	}
	if s.ProbePrimaryURL == "" {
		return fmt.Errorf("probe_primary_url is required")
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *BrowserSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Headless = false
	s.ViewportWidth = DefaultViewportWidth
	s.ViewportHeight = DefaultViewportHeight
	s.DownloadsPath = DefaultDownloadsPath
	s.LaunchArgs = append([]string(nil), DefaultLaunchArgs...)
	s.EnableCaching = true
	s.InstallDriver = true
	s.ProbePrimaryURL = DefaultProbePrimaryURL
	s.ProbeFallbackURL = DefaultProbeFallbackURL
	s.NavigationTimeout = DefaultNavigationTimeout
	s.ConvertTimeout = DefaultConvertTimeout
	s.ConvertSettleDelay = DefaultConvertSettleDelay
}

// Snapshot returns an immutable copy of the section.
func (s *BrowserSection) Snapshot() BrowserSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return BrowserSettings{
		Headless:           s.Headless,
		ViewportWidth:      s.ViewportWidth,
		ViewportHeight:     s.ViewportHeight,
		DownloadsPath:      s.DownloadsPath,
		LaunchArgs:         append([]string(nil), s.LaunchArgs...),
		EnableCaching:      s.EnableCaching,
		InstallDriver:      s.InstallDriver,
		ProbePrimaryURL:    s.ProbePrimaryURL,
		ProbeFallbackURL:   s.ProbeFallbackURL,
		NavigationTimeout:  s.NavigationTimeout,
		ConvertTimeout:     s.ConvertTimeout,
		ConvertSettleDelay: s.ConvertSettleDelay,
	}
}

// BrowserSettings is an immutable view of BrowserSection.
type BrowserSettings struct {
	Headless           bool
	ViewportWidth      int
	ViewportHeight     int
	DownloadsPath      string
	LaunchArgs         []string
	EnableCaching      bool
	InstallDriver      bool
	ProbePrimaryURL    string
	ProbeFallbackURL   string
	NavigationTimeout  time.Duration
	ConvertTimeout     time.Duration
	ConvertSettleDelay time.Duration
}
