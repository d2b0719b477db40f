// Package session owns the single browser handle the service drives and
// tracks whether it is usable.
//
// A Session moves between four states:
//
//	Uninitialized --Init--> Initializing --ok--> Healthy
//	                              |                 |
//	                           failure      crash / Shutdown
//	                              v                 v
//	                  Uninitialized|Unhealthy <-----'
//
// Crash notifications from the engine are delivered on a channel and applied
// by one goroutine the Session owns. Every notification carries the
// generation of the handle it came from, so a late notification from a torn
// down handle never affects its successor.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/browserapi/pkg/logging"
	"github.com/entrhq/browserapi/pkg/netfail"
	"github.com/entrhq/browserapi/pkg/types"
)

var (
	// ErrNotInitialized is returned when an action needs a Healthy session.
	ErrNotInitialized = errors.New("browser not initialized")

	// ErrEngineInit wraps every failure to bring a browser up.
	ErrEngineInit = errors.New("browser initialization failed")
)

// State is the lifecycle state of a Session.
type State int

const (
	Uninitialized State = iota
	Initializing
	Healthy
	Unhealthy
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Healthy:
		return "healthy"
	case Unhealthy:
		return "unhealthy"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// NotificationKind names an asynchronous event raised by the engine.
type NotificationKind int

const (
	PageClosed NotificationKind = iota
	BrowserDisconnected
)

func (k NotificationKind) String() string {
	if k == PageClosed {
		return "page closed"
	}
	return "browser disconnected"
}

type notification struct {
	kind NotificationKind
	gen  uint64
}

// Messages returned by Init.
const (
	MessageAlreadyInitialized   = "Browser already initialized"
	MessageInitialized          = "Browser initialized"
	MessageConnectivityDegraded = "Browser initialized (but internet connectivity test failed - check sandbox network configuration and firewall/proxy settings)"
	MessageShutdown             = "Browser shutdown"
)

// Default connectivity probe targets. Plain HTTP is tried first since it
// survives networks that only block TLS egress.
const (
	DefaultProbePrimaryURL  = "http://www.google.com"
	DefaultProbeFallbackURL = "https://www.google.com"
	DefaultProbeTimeout     = 60 * time.Second
)

const notificationBuffer = 16

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithLaunchOptions sets the fixed launch configuration.
func WithLaunchOptions(opts LaunchOptions) Option {
	return func(s *Session) {
		s.launchOpts = opts
	}
}

// WithProbe overrides the connectivity probe targets and timeout.
func WithProbe(primary, fallback string, timeout time.Duration) Option {
	return func(s *Session) {
		s.probePrimary = primary
		s.probeFallback = fallback
		s.probeTimeout = timeout
	}
}

// WithStateObserver registers fn to be called after every state change.
// fn runs with the session lock held and must not call back into the
// Session.
func WithStateObserver(fn func(from, to State)) Option {
	return func(s *Session) {
		s.observer = fn
	}
}

// Session is the single browser session owned by the process.
type Session struct {
	mu     sync.Mutex
	state  State
	engine Engine
	gen    uint64

	// aborted is set when the handle being initialized reports a crash.
	aborted bool

	launcher      Launcher
	launchOpts    LaunchOptions
	probePrimary  string
	probeFallback string
	probeTimeout  time.Duration
	observer      func(from, to State)
	logger        *logging.Logger

	notes     chan notification
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates an Uninitialized session and starts its notification loop.
// Call Close to stop the loop.
func New(launcher Launcher, opts ...Option) *Session {
	s := &Session{
		state:         Uninitialized,
		launcher:      launcher,
		probePrimary:  DefaultProbePrimaryURL,
		probeFallback: DefaultProbeFallbackURL,
		probeTimeout:  DefaultProbeTimeout,
		logger:        logging.Discard(),
		notes:         make(chan notification, notificationBuffer),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.run()
	return s
}

func (s *Session) run() {
	defer s.wg.Done()
	for {
		select {
		case n := <-s.notes:
			s.apply(n)
		case <-s.done:
			return
		}
	}
}

func (s *Session) apply(n notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.gen != s.gen {
		s.logger.Debugf("Ignoring %s from stale browser handle", n.kind)
		return
	}

	switch s.state {
	case Initializing:
		s.logger.Warnf("Browser %s during initialization", n.kind)
		s.aborted = true
	case Healthy:
		s.logger.Warnf("Browser %s - resetting state", n.kind)
		s.setState(Unhealthy)
	}
}

// notify queues a notification. It never blocks once the session is closed.
func (s *Session) notify(kind NotificationKind, gen uint64) {
	select {
	case s.notes <- notification{kind: kind, gen: gen}:
	case <-s.done:
	}
}

// setState must be called with s.mu held.
func (s *Session) setState(to State) {
	from := s.state
	s.state = to
	if from != to && s.observer != nil {
		s.observer(from, to)
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Health reports whether the session is Healthy and its page is still open.
func (s *Session) Health() bool {
	_, ok := s.Acquire()
	return ok
}

// Acquire returns the live engine when the session is Healthy.
func (s *Session) Acquire() (Engine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Healthy || s.engine == nil || s.engine.IsClosed() {
		return nil, false
	}
	return s.engine, true
}

// Init brings up a browser unless a healthy one already exists.
//
// A connectivity probe runs after launch. Probe failures never fail Init;
// they only change the message. Only a launch error fails Init: a handle
// that crashes before promotion is closed and the session left Unhealthy,
// while the result still reports the launch as done.
func (s *Session) Init(ctx context.Context, credential string) (types.InitResult, error) {
	s.mu.Lock()
	if s.state == Healthy && s.engine != nil && !s.engine.IsClosed() {
		s.mu.Unlock()
		return types.InitResult{Status: types.StatusHealthy, Message: MessageAlreadyInitialized}, nil
	}

	previous := s.state
	stale := s.engine
	s.engine = nil
	s.gen++
	gen := s.gen
	s.aborted = false
	s.setState(Initializing)
	s.mu.Unlock()

	if stale != nil {
		s.logger.Infof("Cleaning up existing browser before init")
		if err := stale.Close(ctx); err != nil {
			s.logger.Errorf("Error closing stale browser: %v", err)
		}
	}

	opts := s.launchOpts
	opts.Credential = credential

	s.logger.Infof("Launching browser (headless=%t, viewport=%dx%d)", opts.Headless, opts.ViewportWidth, opts.ViewportHeight)
	engine, err := s.launcher.Launch(ctx, opts)
	if err != nil {
		s.mu.Lock()
		if s.gen == gen {
			if previous == Uninitialized && stale == nil {
				s.setState(Uninitialized)
			} else {
				s.setState(Unhealthy)
			}
		}
		s.mu.Unlock()
		s.logger.Errorf("Error initializing browser: %v", err)
		return types.InitResult{Status: types.StatusError, Message: err.Error()}, fmt.Errorf("%w: %w", ErrEngineInit, err)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		s.discard(ctx, engine, "initialization superseded")
		return types.InitResult{Status: types.StatusHealthy, Message: MessageInitialized}, nil
	}
	s.engine = engine
	s.mu.Unlock()

	if err := engine.OnPageClosed(func() { s.notify(PageClosed, gen) }); err != nil {
		s.logger.Errorf("Failed to attach page close handler: %v", err)
	}
	if err := engine.OnDisconnected(func() { s.notify(BrowserDisconnected, gen) }); err != nil {
		s.logger.Errorf("Failed to attach browser disconnect handler: %v", err)
	}

	message := s.probe(ctx, engine)

	s.mu.Lock()
	if s.gen != gen || s.aborted || engine.IsClosed() {
		if s.gen == gen {
			s.engine = nil
			s.setState(Unhealthy)
		}
		s.mu.Unlock()
		s.discard(ctx, engine, "browser closed during initialization")
		return types.InitResult{Status: types.StatusHealthy, Message: message}, nil
	}
	s.setState(Healthy)
	s.mu.Unlock()

	s.logger.Infof("%s", message)
	return types.InitResult{Status: types.StatusHealthy, Message: message}, nil
}

// discard closes a handle that launched but was never promoted. Init still
// reports success for it; the session stays out of Healthy.
func (s *Session) discard(ctx context.Context, engine Engine, reason string) {
	s.logger.Warnf("Browser launched but not promoted: %s", reason)
	if err := engine.Close(ctx); err != nil {
		s.logger.Debugf("Error closing discarded browser: %v", err)
	}
}

// probe checks outbound connectivity and returns the Init message.
func (s *Session) probe(ctx context.Context, engine Engine) string {
	opts := NavigateOptions{WaitUntil: WaitUntilDOMContentLoaded, Timeout: s.probeTimeout}

	err := engine.Navigate(ctx, s.probePrimary, opts)
	if err == nil {
		return MessageInitialized
	}
	s.logger.Warnf("Connectivity probe to %s failed, trying %s: %v", s.probePrimary, s.probeFallback, err)

	err = engine.Navigate(ctx, s.probeFallback, opts)
	if err == nil {
		return MessageInitialized
	}
	s.logger.Warnf("Connectivity probe to %s also failed: %v", s.probeFallback, err)

	if netfail.Unreachable(err.Error()) {
		s.logger.Warnf("Browser initialized but internet connectivity test failed. The sandbox may have network restrictions.")
		return MessageConnectivityDegraded
	}
	s.logger.Warnf("Browser initialization navigation failed but continuing")
	return MessageInitialized
}

// Shutdown marks the session Unhealthy and closes the browser. Close errors
// are logged, never returned.
func (s *Session) Shutdown(ctx context.Context) types.InitResult {
	s.mu.Lock()
	engine := s.engine
	s.engine = nil
	s.gen++
	s.setState(Unhealthy)
	s.mu.Unlock()

	s.logger.Infof("Shutting down browser")
	if engine != nil {
		if err := engine.Close(ctx); err != nil {
			s.logger.Errorf("Error closing browser: %v", err)
		}
	}
	return types.InitResult{Status: types.StatusShutdown, Message: MessageShutdown}
}

// Close stops the notification loop. It does not close the browser; call
// Shutdown first for that.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}
