// Package sessiontest provides an in-memory Engine for tests.
package sessiontest

import (
	"context"
	"sync"
	"time"

	"github.com/entrhq/browserapi/pkg/session"
)

// PNG is the screenshot payload the fake returns.
var PNG = []byte("\x89PNG\r\n\x1a\nfake")

// ElementPNG is the payload returned by ElementScreenshot.
var ElementPNG = []byte("\x89PNG\r\n\x1a\nelement")

// Engine is a scriptable session.Engine. Zero values succeed.
type Engine struct {
	mu sync.Mutex

	// NavigateFunc, when set, decides the outcome of every navigation.
	NavigateFunc func(url string) error
	TitleErr     error
	// ScreenshotErr fails page screenshots.
	ScreenshotErr error
	// ElementCount is returned by CountElements.
	ElementCount int
	// ElementBoxValue is returned by ElementBox.
	ElementBoxValue *session.Box
	ActFunc         func(session.ActRequest) (session.ActOutcome, error)
	ExtractFunc     func(session.ExtractRequest) (session.ExtractOutcome, error)
	// FileChooserErr fails HandleFileChooser.
	FileChooserErr    error
	OnPageClosedErr   error
	OnDisconnectedErr error
	CloseErr          error

	PageTitle string

	url          string
	navigations  []string
	screenshots  []session.ScreenshotOptions
	waits        []time.Duration
	fileChoosers map[int][]string
	nextChooser  int
	pageClosed   []func()
	disconnected []func()
	closed       bool
	closeCalls   int
}

// NewEngine returns an open fake engine on about:blank.
func NewEngine() *Engine {
	return &Engine{url: "about:blank", fileChoosers: make(map[int][]string)}
}

func (e *Engine) Navigate(ctx context.Context, url string, opts session.NavigateOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	e.navigations = append(e.navigations, url)
	fn := e.NavigateFunc
	e.mu.Unlock()

	if fn != nil {
		if err := fn(url); err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.url = url
	e.mu.Unlock()
	return nil
}

func (e *Engine) URL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.url
}

func (e *Engine) Title(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.TitleErr != nil {
		return "", e.TitleErr
	}
	return e.PageTitle, nil
}

func (e *Engine) Screenshot(ctx context.Context, opts session.ScreenshotOptions) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.screenshots = append(e.screenshots, opts)
	if e.ScreenshotErr != nil {
		return nil, e.ScreenshotErr
	}
	return PNG, nil
}

func (e *Engine) Wait(ctx context.Context, d time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.waits = append(e.waits, d)
	return nil
}

func (e *Engine) CountElements(ctx context.Context, selector string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ElementCount, nil
}

func (e *Engine) ElementBox(ctx context.Context, selector string) (*session.Box, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ElementBoxValue, nil
}

func (e *Engine) ElementScreenshot(ctx context.Context, selector string) ([]byte, error) {
	return ElementPNG, nil
}

func (e *Engine) HandleFileChooser(paths []string) (func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FileChooserErr != nil {
		return nil, e.FileChooserErr
	}
	id := e.nextChooser
	e.nextChooser++
	e.fileChoosers[id] = append([]string{}, paths...)
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.fileChoosers, id)
	}, nil
}

func (e *Engine) Act(ctx context.Context, req session.ActRequest) (session.ActOutcome, error) {
	e.mu.Lock()
	fn := e.ActFunc
	e.mu.Unlock()
	if fn == nil {
		return session.ActOutcome{Success: true, Message: "Action completed", Action: req.Action}, nil
	}
	return fn(req)
}

func (e *Engine) Extract(ctx context.Context, req session.ExtractRequest) (session.ExtractOutcome, error) {
	e.mu.Lock()
	fn := e.ExtractFunc
	e.mu.Unlock()
	if fn == nil {
		return session.ExtractOutcome{Success: true, Extraction: `{"extraction":"` + req.Instruction + `"}`}, nil
	}
	return fn(req)
}

func (e *Engine) OnPageClosed(fn func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.OnPageClosedErr != nil {
		return e.OnPageClosedErr
	}
	e.pageClosed = append(e.pageClosed, fn)
	return nil
}

func (e *Engine) OnDisconnected(fn func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.OnDisconnectedErr != nil {
		return e.OnDisconnectedErr
	}
	e.disconnected = append(e.disconnected, fn)
	return nil
}

func (e *Engine) IsClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closeCalls++
	e.closed = true
	err := e.CloseErr
	e.mu.Unlock()
	return err
}

// ClosePage simulates the page closing and fires close handlers.
func (e *Engine) ClosePage() {
	e.mu.Lock()
	e.closed = true
	handlers := append([]func(){}, e.pageClosed...)
	e.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

// Crash fires disconnect handlers without closing the page.
func (e *Engine) Crash() {
	e.mu.Lock()
	handlers := append([]func(){}, e.disconnected...)
	e.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

// Navigations returns every URL passed to Navigate.
func (e *Engine) Navigations() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string{}, e.navigations...)
}

// Screenshots returns the options of every page screenshot.
func (e *Engine) Screenshots() []session.ScreenshotOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]session.ScreenshotOptions{}, e.screenshots...)
}

// Waits returns every duration passed to Wait.
func (e *Engine) Waits() []time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]time.Duration{}, e.waits...)
}

// ActiveFileChoosers returns how many file chooser handlers are registered.
func (e *Engine) ActiveFileChoosers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.fileChoosers)
}

// FileChooserPaths returns the paths of every registered handler.
func (e *Engine) FileChooserPaths() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]string, 0, len(e.fileChoosers))
	for _, paths := range e.fileChoosers {
		out = append(out, paths)
	}
	return out
}

// CloseCalls returns how many times Close was called.
func (e *Engine) CloseCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeCalls
}

// SetURL moves the fake page without a navigation.
func (e *Engine) SetURL(url string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.url = url
}

// Launcher hands out engines in order and records launch options.
type Launcher struct {
	mu       sync.Mutex
	engines  []*Engine
	launched []session.LaunchOptions
	// Err fails every launch when set.
	Err error
	// Hook runs after an engine is handed out, before Launch returns.
	Hook func(*Engine)
}

// NewLauncher returns a launcher that hands out engines in order, creating
// fresh ones once the list is exhausted.
func NewLauncher(engines ...*Engine) *Launcher {
	return &Launcher{engines: engines}
}

func (l *Launcher) Launch(ctx context.Context, opts session.LaunchOptions) (session.Engine, error) {
	l.mu.Lock()
	l.launched = append(l.launched, opts)
	if l.Err != nil {
		err := l.Err
		l.mu.Unlock()
		return nil, err
	}
	var engine *Engine
	if len(l.engines) > 0 {
		engine = l.engines[0]
		l.engines = l.engines[1:]
	} else {
		engine = NewEngine()
	}
	hook := l.Hook
	l.mu.Unlock()

	if hook != nil {
		hook(engine)
	}
	return engine, nil
}

// Launches returns the options of every Launch call.
func (l *Launcher) Launches() []session.LaunchOptions {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]session.LaunchOptions{}, l.launched...)
}
