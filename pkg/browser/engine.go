package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/browserapi/pkg/logging"
	"github.com/entrhq/browserapi/pkg/session"
	"github.com/entrhq/browserapi/pkg/types"
)

// Interpreter plans steps and extracts data from a page digest.
type Interpreter interface {
	Plan(ctx context.Context, instruction string, page types.PageDigest) (types.Step, error)
	Extract(ctx context.Context, instruction string, page types.PageDigest) (string, error)
}

// defaultActionTimeout bounds a single locator interaction, in milliseconds.
const defaultActionTimeout = 30000.0

// Engine drives one Chromium page. It implements session.Engine.
type Engine struct {
	browser     playwright.Browser
	context     playwright.BrowserContext
	page        playwright.Page
	interpreter Interpreter
	logger      *logging.Logger

	choosers    fileChoosers
	chooserOnce sync.Once

	closeOnce sync.Once
	closeErr  error
}

// fileChoosers holds the path sets of in-flight acts. A single page
// listener serves all of them and the newest registration answers.
type fileChoosers struct {
	mu    sync.Mutex
	next  uint64
	slots []chooserSlot
}

type chooserSlot struct {
	id    uint64
	paths []string
}

// add registers paths and returns a function that unregisters them.
func (f *fileChoosers) add(paths []string) func() {
	f.mu.Lock()
	f.next++
	id := f.next
	f.slots = append(f.slots, chooserSlot{id: id, paths: paths})
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			for i, slot := range f.slots {
				if slot.id == id {
					f.slots = append(f.slots[:i], f.slots[i+1:]...)
					return
				}
			}
		})
	}
}

func (f *fileChoosers) current() ([]string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.slots) == 0 {
		return nil, false
	}
	return f.slots[len(f.slots)-1].paths, true
}

var _ session.Engine = (*Engine)(nil)

// Navigate loads url.
func (e *Engine) Navigate(_ context.Context, url string, opts session.NavigateOptions) error {
	gotoOpts := playwright.PageGotoOptions{}
	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		gotoOpts.WaitUntil = &waitUntil
	}
	if opts.Timeout > 0 {
		gotoOpts.Timeout = playwright.Float(float64(opts.Timeout.Milliseconds()))
	}

	if _, err := e.page.Goto(url, gotoOpts); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// URL returns the page URL.
func (e *Engine) URL() string {
	return e.page.URL()
}

// Title returns the page title.
func (e *Engine) Title(_ context.Context) (string, error) {
	return e.page.Title()
}

// Screenshot captures the page as PNG.
func (e *Engine) Screenshot(_ context.Context, opts session.ScreenshotOptions) ([]byte, error) {
	return e.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(opts.FullPage),
		Type:     playwright.ScreenshotTypePng,
	})
}

// Wait sleeps for d or until ctx is done.
func (e *Engine) Wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CountElements counts elements matching selector.
func (e *Engine) CountElements(_ context.Context, selector string) (int, error) {
	return e.page.Locator(selector).Count()
}

// ElementBox returns the first match's bounding box, nil if not rendered.
func (e *Engine) ElementBox(_ context.Context, selector string) (*session.Box, error) {
	rect, err := e.page.Locator(selector).First().BoundingBox()
	if err != nil {
		return nil, fmt.Errorf("failed to get bounding box for %q: %w", selector, err)
	}
	if rect == nil {
		return nil, nil
	}
	return &session.Box{X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height}, nil
}

// ElementScreenshot captures the first element matching selector as PNG.
func (e *Engine) ElementScreenshot(_ context.Context, selector string) ([]byte, error) {
	return e.page.Locator(selector).First().Screenshot(playwright.LocatorScreenshotOptions{
		Type: playwright.ScreenshotTypePng,
	})
}

// HandleFileChooser answers file pickers with paths until remove is called.
//
// The page listener is attached once and never removed. playwright-go
// identifies listeners by function code pointer, so removing a per-call
// closure would also drop every other call's listener.
func (e *Engine) HandleFileChooser(paths []string) (func(), error) {
	if e.page.IsClosed() {
		return nil, fmt.Errorf("page is closed")
	}

	e.chooserOnce.Do(func() {
		e.page.OnFileChooser(func(chooser playwright.FileChooser) {
			paths, ok := e.choosers.current()
			if !ok {
				return
			}
			if err := chooser.SetFiles(paths); err != nil {
				e.logger.Warnf("Failed to set files on file chooser: %v", err)
			}
		})
	})
	return e.choosers.add(paths), nil
}

// Act plans one step for req.Action and performs it. A planning failure is
// returned as an error; a step that cannot be performed is an unsuccessful
// outcome.
func (e *Engine) Act(ctx context.Context, req session.ActRequest) (session.ActOutcome, error) {
	digest, err := e.digest(req.Iframes)
	if err != nil {
		return session.ActOutcome{}, err
	}

	step, err := e.interpreter.Plan(ctx, req.Action, digest)
	if err != nil {
		return session.ActOutcome{}, fmt.Errorf("failed to plan action: %w", err)
	}
	step = step.Substitute(req.Variables)

	if !req.Iframes && step.Frame != "" {
		e.logger.Debugf("Ignoring frame %q for %s, iframes disabled", step.Frame, step)
		step.Frame = ""
	}

	if err := e.perform(step); err != nil {
		e.logger.Warnf("Step %s failed: %v", step, err)
		return session.ActOutcome{
			Success: false,
			Message: fmt.Sprintf("Failed to perform %s: %v", step, err),
			Action:  req.Action,
		}, nil
	}

	message := step.Description
	if message == "" {
		message = step.String()
	}
	return session.ActOutcome{
		Success: true,
		Message: "Action completed: " + message,
		Action:  req.Action,
	}, nil
}

// Extract answers req.Instruction from the page.
func (e *Engine) Extract(ctx context.Context, req session.ExtractRequest) (session.ExtractOutcome, error) {
	digest, err := e.digest(req.Iframes)
	if err != nil {
		return session.ExtractOutcome{}, err
	}

	extraction, err := e.interpreter.Extract(ctx, req.Instruction, digest)
	if err != nil {
		return session.ExtractOutcome{}, fmt.Errorf("failed to extract: %w", err)
	}
	return session.ExtractOutcome{Success: true, Extraction: extraction}, nil
}

// OnPageClosed registers fn for the page close event.
func (e *Engine) OnPageClosed(fn func()) error {
	e.page.OnClose(func(playwright.Page) { fn() })
	return nil
}

// OnDisconnected registers fn for the browser disconnect event.
func (e *Engine) OnDisconnected(fn func()) error {
	if e.browser == nil {
		return fmt.Errorf("page has no owning browser")
	}
	e.browser.OnDisconnected(func(playwright.Browser) { fn() })
	return nil
}

// IsClosed reports whether the page is closed.
func (e *Engine) IsClosed() bool {
	return e.page.IsClosed()
}

// Close tears down the page, its context and the browser. Later calls
// return the first result.
func (e *Engine) Close(_ context.Context) error {
	e.closeOnce.Do(func() {
		// Page and context errors are expected once the browser is gone.
		_ = e.page.Close()
		_ = e.context.Close()
		if err := e.browser.Close(); err != nil {
			e.closeErr = fmt.Errorf("failed to close browser: %w", err)
		}
	})
	return e.closeErr
}

// digest condenses the page, and its child frames when iframes is set.
func (e *Engine) digest(iframes bool) (types.PageDigest, error) {
	content, err := e.page.Content()
	if err != nil {
		return types.PageDigest{}, fmt.Errorf("failed to read page content: %w", err)
	}
	main, err := digestHTML(content, DefaultDigestLength)
	if err != nil {
		return types.PageDigest{}, err
	}

	page := types.PageDigest{
		URL:         e.page.URL(),
		Title:       main.Title,
		Description: main.Description,
		Content:     main.HTML,
		Truncated:   main.Truncated,
	}
	if !iframes {
		return page, nil
	}

	mainFrame := e.page.MainFrame()
	for _, frame := range e.page.Frames() {
		if frame == mainFrame {
			continue
		}
		frameContent, err := frame.Content()
		if err != nil {
			e.logger.Debugf("Skipping frame %q: %v", frame.URL(), err)
			continue
		}
		d, err := digestHTML(frameContent, DefaultDigestLength)
		if err != nil {
			continue
		}
		page.Frames = append(page.Frames, types.FrameDigest{
			Name:    frame.Name(),
			URL:     frame.URL(),
			Content: d.HTML,
		})
		page.Truncated = page.Truncated || d.Truncated
	}
	return page, nil
}

// perform executes step against its target frame.
func (e *Engine) perform(step types.Step) error {
	locator, err := e.locate(step)
	if err != nil {
		return err
	}
	timeout := playwright.Float(defaultActionTimeout)

	switch step.Method {
	case types.MethodClick:
		return locator.Click(playwright.LocatorClickOptions{Timeout: timeout})
	case types.MethodFill:
		return locator.Fill(argAt(step, 0), playwright.LocatorFillOptions{Timeout: timeout})
	case types.MethodPress:
		key := argAt(step, 0)
		if key == "" {
			key = "Enter"
		}
		return locator.Press(key, playwright.LocatorPressOptions{Timeout: timeout})
	case types.MethodSelect:
		values := step.Args
		_, err := locator.SelectOption(playwright.SelectOptionValues{Values: &values}, playwright.LocatorSelectOptionOptions{Timeout: timeout})
		return err
	case types.MethodCheck:
		return locator.Check(playwright.LocatorCheckOptions{Timeout: timeout})
	case types.MethodHover:
		return locator.Hover(playwright.LocatorHoverOptions{Timeout: timeout})
	default:
		return fmt.Errorf("unsupported method %q", step.Method)
	}
}

func (e *Engine) locate(step types.Step) (playwright.Locator, error) {
	if step.Frame == "" {
		return e.page.Locator(step.Selector).First(), nil
	}
	frame, ok := matchFrame(e.page.Frames(), step.Frame)
	if !ok {
		return nil, fmt.Errorf("no frame matches %q", step.Frame)
	}
	return frame.Locator(step.Selector).First(), nil
}

type namedFrame interface {
	Name() string
	URL() string
}

// matchFrame finds the frame whose name equals want, falling back to the
// first frame whose URL contains it.
func matchFrame[F namedFrame](frames []F, want string) (F, bool) {
	for _, f := range frames {
		if f.Name() == want {
			return f, true
		}
	}
	for _, f := range frames {
		if strings.Contains(f.URL(), want) {
			return f, true
		}
	}
	var zero F
	return zero, false
}

func argAt(step types.Step, i int) string {
	if i < len(step.Args) {
		return step.Args[i]
	}
	return ""
}
