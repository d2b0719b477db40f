// Package actions runs browser actions against the session's engine and
// shapes every outcome into a types.ActionResult.
//
// Each action follows the same path: refuse early when the session is not
// healthy, run the operation, capture a best-effort snapshot of the page,
// then assemble the response. The snapshot never replaces the action's own
// success or failure.
package actions

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/entrhq/browserapi/pkg/config"
	"github.com/entrhq/browserapi/pkg/logging"
	"github.com/entrhq/browserapi/pkg/metrics"
	"github.com/entrhq/browserapi/pkg/netfail"
	"github.com/entrhq/browserapi/pkg/render"
	"github.com/entrhq/browserapi/pkg/session"
	"github.com/entrhq/browserapi/pkg/types"
)

// MessageNotInitialized is the message of every guard failure.
const MessageNotInitialized = "Browser not initialized"

// Default timings for navigation and SVG conversion.
const (
	DefaultNavigationTimeout  = 60 * time.Second
	DefaultConvertTimeout     = 10 * time.Second
	DefaultConvertSettleDelay = 500 * time.Millisecond
)

const svgSelector = "svg"

// Gate hands out the engine while the session is healthy.
type Gate interface {
	Acquire() (session.Engine, bool)
}

// Response is a result plus the HTTP status it should be served with.
type Response struct {
	Status int
	Result types.ActionResult
}

// Exporter writes converted image bytes to path.
type Exporter func(png []byte, path string) error

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(logger *logging.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithNavigationPolicy restricts which hosts navigate may load.
func WithNavigationPolicy(policy *config.NavigationPolicy) Option {
	return func(d *Dispatcher) {
		d.policy = policy
	}
}

// WithSerializedActions runs at most one action against the engine at a
// time. Without it concurrent actions share the page unsynchronized, and
// overlapping acts with file paths share the page's file pickers: the most
// recently started act answers them.
func WithSerializedActions(enabled bool) Option {
	return func(d *Dispatcher) {
		if enabled {
			d.slot = semaphore.NewWeighted(1)
		} else {
			d.slot = nil
		}
	}
}

// WithTimeouts overrides navigation and conversion timings. Zero values keep
// the defaults.
func WithTimeouts(navigation, convert, settle time.Duration) Option {
	return func(d *Dispatcher) {
		if navigation > 0 {
			d.navigationTimeout = navigation
		}
		if convert > 0 {
			d.convertTimeout = convert
		}
		if settle > 0 {
			d.settleDelay = settle
		}
	}
}

// WithExporter replaces the function used to write output_path files.
func WithExporter(export Exporter) Option {
	return func(d *Dispatcher) {
		d.export = export
	}
}

// Dispatcher runs actions against the engine behind a Gate.
type Dispatcher struct {
	gate   Gate
	policy *config.NavigationPolicy
	slot   *semaphore.Weighted
	export Exporter
	logger *logging.Logger

	navigationTimeout time.Duration
	convertTimeout    time.Duration
	settleDelay       time.Duration
}

// New creates a dispatcher.
func New(gate Gate, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		gate:              gate,
		export:            render.Export,
		logger:            logging.Discard(),
		navigationTimeout: DefaultNavigationTimeout,
		convertTimeout:    DefaultConvertTimeout,
		settleDelay:       DefaultConvertSettleDelay,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// badRequest is a request rejected before the engine is touched.
type badRequest struct {
	message string
	detail  string
}

func (e *badRequest) Error() string {
	return e.detail
}

type operation struct {
	name string

	// notReady is the error text of the guard failure.
	notReady string

	// failure is the message used when run returns an error.
	failure string

	validate func() error
	run      func(ctx context.Context, engine session.Engine) (types.ActionResult, error)

	// captured means run already filled the snapshot fields on success.
	captured bool

	// ownScreenshot keeps run's screenshot over the snapshot's.
	ownScreenshot bool
}

func (d *Dispatcher) dispatch(ctx context.Context, op operation) Response {
	start := time.Now()
	resp := d.execute(ctx, op)
	metrics.ObserveAction(op.name, resp.Result.Success, time.Since(start))
	return resp
}

func (d *Dispatcher) execute(ctx context.Context, op operation) Response {
	engine, ok := d.gate.Acquire()
	if !ok {
		d.logger.Warnf("Rejected %s: browser not initialized", op.name)
		return Response{
			Status: http.StatusInternalServerError,
			Result: types.NewFailure(MessageNotInitialized, op.notReady),
		}
	}

	if op.validate != nil {
		if err := op.validate(); err != nil {
			var bad *badRequest
			if errors.As(err, &bad) {
				return Response{Status: http.StatusBadRequest, Result: types.NewFailure(bad.message, bad.detail)}
			}
			return d.fail(ctx, op, err)
		}
	}

	if d.slot != nil {
		if err := d.slot.Acquire(ctx, 1); err != nil {
			return d.fail(ctx, op, fmt.Errorf("waiting for browser: %w", err))
		}
		defer d.slot.Release(1)
	}

	result, err := op.run(ctx, engine)
	if err != nil {
		return d.fail(ctx, op, err)
	}

	if !op.captured {
		screenshot := result.ScreenshotBase64
		d.Snapshot(ctx).Apply(&result)
		if op.ownScreenshot {
			result.ScreenshotBase64 = screenshot
		}
	}
	return Response{Status: http.StatusOK, Result: result}
}

func (d *Dispatcher) fail(ctx context.Context, op operation, err error) Response {
	d.logger.Errorf("%s: %v", op.failure, err)
	result := types.NewFailure(op.failure, err.Error())
	d.Snapshot(ctx).Apply(&result)
	return Response{Status: http.StatusInternalServerError, Result: result}
}

// Snapshot captures the current page URL, title and viewport screenshot.
// Any failure yields an empty snapshot.
func (d *Dispatcher) Snapshot(ctx context.Context) types.Snapshot {
	engine, ok := d.gate.Acquire()
	if !ok {
		return types.Snapshot{}
	}
	snap, err := capture(ctx, engine)
	if err != nil {
		d.logger.Warnf("Error capturing page state: %v", err)
		return types.Snapshot{}
	}
	return snap
}

func capture(ctx context.Context, engine session.Engine) (types.Snapshot, error) {
	png, err := engine.Screenshot(ctx, session.ScreenshotOptions{FullPage: false})
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("screenshot: %w", err)
	}
	title, err := engine.Title(ctx)
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("title: %w", err)
	}
	return types.Snapshot{
		URL:              engine.URL(),
		Title:            title,
		ScreenshotBase64: base64.StdEncoding.EncodeToString(png),
	}, nil
}

// Navigate loads a URL. Network failures come back enriched with the
// classifier's remediation text.
func (d *Dispatcher) Navigate(ctx context.Context, req NavigateRequest) Response {
	target := req.URL
	if target == "" {
		target = "unknown URL"
	}

	return d.dispatch(ctx, operation{
		name:     "navigate",
		notReady: "Browser must be initialized before navigation",
		failure:  "Failed to navigate to " + target,
		run: func(ctx context.Context, engine session.Engine) (types.ActionResult, error) {
			if req.URL == "" {
				return types.ActionResult{}, errors.New("url is required")
			}
			if err := d.policy.Check(req.URL); err != nil {
				return types.ActionResult{}, err
			}

			err := engine.Navigate(ctx, req.URL, session.NavigateOptions{
				WaitUntil: session.WaitUntilDOMContentLoaded,
				Timeout:   d.navigationTimeout,
			})
			if err != nil {
				enriched := netfail.Enrich(err)
				metrics.CountNavigationFailure(string(netfail.CategoryOf(enriched)))
				return types.ActionResult{}, enriched
			}
			return types.ActionResult{Success: true, Message: "Navigated to " + req.URL}, nil
		},
	})
}

// Screenshot captures the current page.
func (d *Dispatcher) Screenshot(ctx context.Context) Response {
	return d.dispatch(ctx, operation{
		name:     "screenshot",
		notReady: "Browser must be initialized before taking screenshot",
		failure:  "Failed to take screenshot",
		captured: true,
		run: func(ctx context.Context, engine session.Engine) (types.ActionResult, error) {
			snap, err := capture(ctx, engine)
			if err != nil {
				return types.ActionResult{}, err
			}
			result := types.ActionResult{Success: true, Message: "Screenshot taken"}
			snap.Apply(&result)
			return result, nil
		},
	})
}

// Act performs a natural-language action. A file chooser handler answers
// any upload dialog the action opens and is removed before Act returns.
func (d *Dispatcher) Act(ctx context.Context, req ActRequest) Response {
	return d.dispatch(ctx, operation{
		name:     "act",
		notReady: "Browser must be initialized before performing actions",
		failure:  "Failed to act",
		run: func(ctx context.Context, engine session.Engine) (types.ActionResult, error) {
			paths := []string(req.FilePath)
			if paths == nil {
				paths = []string{}
			}
			remove, err := engine.HandleFileChooser(paths)
			if err != nil {
				return types.ActionResult{}, fmt.Errorf("failed to register file chooser: %w", err)
			}
			defer remove()

			iframes := true
			if req.Iframes != nil {
				iframes = *req.Iframes
			}

			outcome, err := engine.Act(ctx, session.ActRequest{
				Action:    req.Action,
				Iframes:   iframes,
				Variables: req.Variables,
			})
			if err != nil {
				return types.ActionResult{}, err
			}
			return types.ActionResult{
				Success: outcome.Success,
				Message: outcome.Message,
				Action:  outcome.Action,
			}, nil
		},
	})
}

// Extract pulls data out of the page according to an instruction.
func (d *Dispatcher) Extract(ctx context.Context, req ExtractRequest) Response {
	return d.dispatch(ctx, operation{
		name:     "extract",
		notReady: "Browser must be initialized before extracting data",
		failure:  "Failed to extract",
		run: func(ctx context.Context, engine session.Engine) (types.ActionResult, error) {
			outcome, err := engine.Extract(ctx, session.ExtractRequest{
				Instruction: req.Instruction,
				Iframes:     req.Iframes != nil && *req.Iframes,
			})
			if err != nil {
				return types.ActionResult{}, err
			}
			return types.ActionResult{
				Success: outcome.Success,
				Message: "Extracted result for: " + req.Instruction,
				Action:  outcome.Extraction,
			}, nil
		},
	})
}

// Convert renders a local SVG file to PNG. The first svg element is
// captured when it has a visible box; otherwise the whole page is.
func (d *Dispatcher) Convert(ctx context.Context, req ConvertRequest) Response {
	return d.dispatch(ctx, operation{
		name:          "convert-svg",
		notReady:      "Browser must be initialized before converting SVG",
		failure:       "Failed to convert SVG",
		ownScreenshot: true,
		validate: func() error {
			if req.SVGFilePath == "" {
				return &badRequest{message: "SVG file path is required", detail: "svg_file_path parameter is missing"}
			}
			return nil
		},
		run: func(ctx context.Context, engine session.Engine) (types.ActionResult, error) {
			d.logger.Infof("Converting SVG to PNG: %s", req.SVGFilePath)

			err := engine.Navigate(ctx, "file://"+req.SVGFilePath, session.NavigateOptions{
				WaitUntil: session.WaitUntilDOMContentLoaded,
				Timeout:   d.convertTimeout,
			})
			if err != nil {
				return types.ActionResult{}, err
			}
			if err := engine.Wait(ctx, d.settleDelay); err != nil {
				return types.ActionResult{}, err
			}

			png, err := d.renderSVG(ctx, engine)
			if err != nil {
				return types.ActionResult{}, err
			}

			if req.OutputPath != "" {
				if err := d.export(png, req.OutputPath); err != nil {
					return types.ActionResult{}, err
				}
			}

			return types.ActionResult{
				Success:          true,
				Message:          "Successfully converted SVG to PNG: " + req.SVGFilePath,
				ScreenshotBase64: base64.StdEncoding.EncodeToString(png),
			}, nil
		},
	})
}

func (d *Dispatcher) renderSVG(ctx context.Context, engine session.Engine) ([]byte, error) {
	count, err := engine.CountElements(ctx, svgSelector)
	if err != nil {
		return nil, err
	}

	if count > 0 {
		box, err := engine.ElementBox(ctx, svgSelector)
		if err != nil {
			return nil, err
		}
		if box.Visible() {
			return engine.ElementScreenshot(ctx, svgSelector)
		}
		d.logger.Debugf("SVG element has no visible area, capturing full page")
	} else {
		d.logger.Debugf("No SVG element found, capturing full page")
	}

	return engine.Screenshot(ctx, session.ScreenshotOptions{FullPage: true})
}
