// Package browser runs the page engine on Chromium through Playwright.
package browser

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/browserapi/pkg/logging"
	"github.com/entrhq/browserapi/pkg/session"
)

// InterpreterFactory builds the interpreter for a session from the
// credential passed to init.
type InterpreterFactory func(credential string, caching bool) (Interpreter, error)

// Launcher starts Chromium engines. The Playwright driver is started on the
// first launch and shared by every engine after that.
type Launcher struct {
	mu             sync.Mutex
	playwright     *playwright.Playwright
	install        bool
	newInterpreter InterpreterFactory
	logger         *logging.Logger
}

var _ session.Launcher = (*Launcher)(nil)

// LauncherOption configures a Launcher.
type LauncherOption func(*Launcher)

// WithInstall downloads the driver and browsers before the first launch.
func WithInstall(install bool) LauncherOption {
	return func(l *Launcher) {
		l.install = install
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) LauncherOption {
	return func(l *Launcher) {
		l.logger = logger
	}
}

// NewLauncher creates a launcher that builds interpreters with factory.
func NewLauncher(factory InterpreterFactory, opts ...LauncherOption) *Launcher {
	l := &Launcher{
		newInterpreter: factory,
		logger:         logging.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// start runs the Playwright driver once.
func (l *Launcher) start() (*playwright.Playwright, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.playwright != nil {
		return l.playwright, nil
	}

	// Driver output would interleave with the service log.
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if l.install {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	l.playwright = pw
	return pw, nil
}

// Prepare installs and starts the driver ahead of the first launch.
func (l *Launcher) Prepare() error {
	_, err := l.start()
	return err
}

// Launch starts a browser with opts and opens one page in it.
func (l *Launcher) Launch(_ context.Context, opts session.LaunchOptions) (session.Engine, error) {
	interpreter, err := l.newInterpreter(opts.Credential, opts.EnableCaching)
	if err != nil {
		return nil, fmt.Errorf("failed to create interpreter: %w", err)
	}

	pw, err := l.start()
	if err != nil {
		return nil, err
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     opts.Args,
	}
	if opts.DownloadsPath != "" {
		launchOpts.DownloadsPath = playwright.String(opts.DownloadsPath)
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	width, height := opts.ViewportWidth, opts.ViewportHeight
	if width <= 0 || height <= 0 {
		width, height = DefaultViewportWidth, DefaultViewportHeight
	}
	browserContext, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport:        &playwright.Size{Width: width, Height: height},
		AcceptDownloads: playwright.Bool(opts.DownloadsPath != ""),
	})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := browserContext.NewPage()
	if err != nil {
		_ = browserContext.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(defaultActionTimeout)

	l.logger.Infof("Launched Chromium %s (headless=%t, viewport=%dx%d)", browser.Version(), opts.Headless, width, height)

	return &Engine{
		browser:     browser,
		context:     browserContext,
		page:        page,
		interpreter: interpreter,
		logger:      l.logger,
	}, nil
}

// Stop shuts down the Playwright driver. Engines must be closed first.
func (l *Launcher) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.playwright == nil {
		return nil
	}
	err := l.playwright.Stop()
	l.playwright = nil
	if err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

// Default viewport when none is configured.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
)
