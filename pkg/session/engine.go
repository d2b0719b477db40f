package session

import (
	"context"
	"time"
)

// Engine is a live handle to one browser page and the interpreter that
// drives it. Implementations are not required to be safe for concurrent
// use; callers that need ordering serialize around the handle.
type Engine interface {
	// Navigate loads url in the page.
	Navigate(ctx context.Context, url string, opts NavigateOptions) error

	// URL returns the current page URL.
	URL() string

	// Title returns the current page title.
	Title(ctx context.Context) (string, error)

	// Screenshot captures the page as PNG bytes.
	Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, error)

	// Wait pauses inside the page for d.
	Wait(ctx context.Context, d time.Duration) error

	// CountElements returns how many elements match selector.
	CountElements(ctx context.Context, selector string) (int, error)

	// ElementBox returns the bounding box of the first element matching
	// selector, or nil when it is not rendered.
	ElementBox(ctx context.Context, selector string) (*Box, error)

	// ElementScreenshot captures the first element matching selector.
	ElementScreenshot(ctx context.Context, selector string) ([]byte, error)

	// HandleFileChooser answers every file picker the page opens with
	// paths until the returned remove function is called.
	HandleFileChooser(paths []string) (remove func(), err error)

	// Act performs a natural-language action on the page.
	Act(ctx context.Context, req ActRequest) (ActOutcome, error)

	// Extract pulls structured data out of the page.
	Extract(ctx context.Context, req ExtractRequest) (ExtractOutcome, error)

	// OnPageClosed registers fn to run when the page closes.
	OnPageClosed(fn func()) error

	// OnDisconnected registers fn to run when the browser process goes away.
	OnDisconnected(fn func()) error

	// IsClosed reports whether the page has been closed.
	IsClosed() bool

	// Close releases the page, its context and the browser.
	Close(ctx context.Context) error
}

// Launcher starts a new Engine.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Engine, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, opts LaunchOptions) (Engine, error)

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context, opts LaunchOptions) (Engine, error) {
	return f(ctx, opts)
}

// LaunchOptions is the fixed configuration a browser is started with.
type LaunchOptions struct {
	// Credential is the interpreter API key passed to init.
	Credential string

	Headless       bool
	ViewportWidth  int
	ViewportHeight int

	// DownloadsPath receives files the page downloads.
	DownloadsPath string

	// Args are extra Chromium command-line flags.
	Args []string

	// EnableCaching lets the interpreter reuse plans for repeated actions.
	EnableCaching bool
}

// NavigateOptions controls a single navigation.
type NavigateOptions struct {
	// WaitUntil is one of "load", "domcontentloaded" or "networkidle".
	WaitUntil string
	Timeout   time.Duration
}

// WaitUntilDOMContentLoaded is the load state every navigation here waits for.
const WaitUntilDOMContentLoaded = "domcontentloaded"

// ScreenshotOptions controls a page screenshot.
type ScreenshotOptions struct {
	FullPage bool
}

// Box is an element's bounding box in CSS pixels.
type Box struct {
	X, Y, Width, Height float64
}

// Visible reports whether the box has a positive area.
func (b *Box) Visible() bool {
	return b != nil && b.Width > 0 && b.Height > 0
}

// ActRequest describes one natural-language action.
type ActRequest struct {
	Action    string
	Iframes   bool
	Variables map[string]string
}

// ActOutcome is what the interpreter reports back for an action.
type ActOutcome struct {
	Success bool
	Message string
	Action  string
}

// ExtractRequest describes one extraction.
type ExtractRequest struct {
	Instruction string
	Iframes     bool
}

// ExtractOutcome carries the extracted payload as text.
type ExtractOutcome struct {
	Success    bool
	Extraction string
}
