package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/entrhq/browserapi/pkg/session"
	"github.com/entrhq/browserapi/pkg/session/sessiontest"
	"github.com/entrhq/browserapi/pkg/types"
)

const eventually = time.Second

func newSession(t *testing.T, launcher session.Launcher, opts ...session.Option) *session.Session {
	t.Helper()
	s := session.New(launcher, opts...)
	t.Cleanup(s.Close)
	return s
}

func TestInit_LaunchesAndBecomesHealthy(t *testing.T) {
	defer goleak.VerifyNone(t)

	engine := sessiontest.NewEngine()
	launcher := sessiontest.NewLauncher(engine)
	s := session.New(launcher, session.WithLaunchOptions(session.LaunchOptions{
		ViewportWidth:  1024,
		ViewportHeight: 768,
		DownloadsPath:  "/workspace/downloads",
	}))
	defer s.Close()

	assert.Equal(t, session.Uninitialized, s.State())
	assert.False(t, s.Health())

	result, err := s.Init(context.Background(), "sk-test")
	require.NoError(t, err)
	assert.Equal(t, types.InitResult{Status: types.StatusHealthy, Message: session.MessageInitialized}, result)
	assert.Equal(t, session.Healthy, s.State())
	assert.True(t, s.Health())

	launches := launcher.Launches()
	require.Len(t, launches, 1)
	assert.Equal(t, "sk-test", launches[0].Credential)
	assert.Equal(t, 1024, launches[0].ViewportWidth)
	assert.Equal(t, []string{session.DefaultProbePrimaryURL}, engine.Navigations())

	acquired, ok := s.Acquire()
	require.True(t, ok)
	assert.Same(t, engine, acquired)
}

func TestInit_IsIdempotentWhenHealthy(t *testing.T) {
	launcher := sessiontest.NewLauncher()
	s := newSession(t, launcher)

	_, err := s.Init(context.Background(), "")
	require.NoError(t, err)

	result, err := s.Init(context.Background(), "other-key")
	require.NoError(t, err)
	assert.Equal(t, session.MessageAlreadyInitialized, result.Message)
	assert.Equal(t, types.StatusHealthy, result.Status)
	assert.Len(t, launcher.Launches(), 1)
}

func TestInit_ProbeFallsBackToHTTPS(t *testing.T) {
	engine := sessiontest.NewEngine()
	engine.NavigateFunc = func(url string) error {
		if url == session.DefaultProbePrimaryURL {
			return errors.New("net::ERR_CONNECTION_RESET")
		}
		return nil
	}
	s := newSession(t, sessiontest.NewLauncher(engine))

	result, err := s.Init(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, session.MessageInitialized, result.Message)
	assert.Equal(t, []string{session.DefaultProbePrimaryURL, session.DefaultProbeFallbackURL}, engine.Navigations())
}

func TestInit_ConnectivityProbeFailureStillHealthy(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"dns", errors.New("net::ERR_NAME_NOT_RESOLVED at https://www.google.com/"), session.MessageConnectivityDegraded},
		{"timeout", errors.New("Timeout 60000ms exceeded."), session.MessageConnectivityDegraded},
		{"reset", errors.New("net::ERR_CONNECTION_RESET"), session.MessageConnectivityDegraded},
		{"refused", errors.New("net::ERR_CONNECTION_REFUSED"), session.MessageConnectivityDegraded},
		{"certificate", errors.New("net::ERR_CERT_AUTHORITY_INVALID"), session.MessageInitialized},
		{"forbidden", errors.New("403 Forbidden"), session.MessageInitialized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := sessiontest.NewEngine()
			engine.NavigateFunc = func(string) error { return tt.err }
			s := newSession(t, sessiontest.NewLauncher(engine))

			result, err := s.Init(context.Background(), "")
			require.NoError(t, err)
			assert.Equal(t, types.StatusHealthy, result.Status)
			assert.Equal(t, tt.message, result.Message)
			assert.True(t, s.Health())
		})
	}
}

func TestInit_LaunchFailure(t *testing.T) {
	t.Run("first launch returns to uninitialized", func(t *testing.T) {
		launcher := sessiontest.NewLauncher()
		launcher.Err = errors.New("chromium: executable not found")
		s := newSession(t, launcher)

		result, err := s.Init(context.Background(), "")
		require.Error(t, err)
		assert.ErrorIs(t, err, session.ErrEngineInit)
		assert.Equal(t, types.StatusError, result.Status)
		assert.Contains(t, result.Message, "executable not found")
		assert.Equal(t, session.Uninitialized, s.State())
	})

	t.Run("relaunch after crash becomes unhealthy", func(t *testing.T) {
		engine := sessiontest.NewEngine()
		launcher := sessiontest.NewLauncher(engine)
		s := newSession(t, launcher)

		_, err := s.Init(context.Background(), "")
		require.NoError(t, err)

		engine.ClosePage()
		assert.Eventually(t, func() bool { return s.State() == session.Unhealthy }, eventually, 5*time.Millisecond)

		launcher.Err = errors.New("launch failed")
		_, err = s.Init(context.Background(), "")
		assert.ErrorIs(t, err, session.ErrEngineInit)
		assert.Equal(t, session.Unhealthy, s.State())
		assert.Equal(t, 1, engine.CloseCalls(), "stale handle is torn down before relaunch")
	})
}

func TestNotifications_MarkUnhealthy(t *testing.T) {
	defer goleak.VerifyNone(t)

	for _, trigger := range []string{"page closed", "browser disconnected"} {
		t.Run(trigger, func(t *testing.T) {
			engine := sessiontest.NewEngine()
			s := session.New(sessiontest.NewLauncher(engine))
			defer s.Close()

			_, err := s.Init(context.Background(), "")
			require.NoError(t, err)
			require.True(t, s.Health())

			if trigger == "page closed" {
				engine.ClosePage()
			} else {
				engine.Crash()
			}

			assert.Eventually(t, func() bool { return s.State() == session.Unhealthy }, eventually, 5*time.Millisecond)
			assert.False(t, s.Health())
			_, ok := s.Acquire()
			assert.False(t, ok)
		})
	}
}

func TestNotifications_FromStaleHandleAreIgnored(t *testing.T) {
	first := sessiontest.NewEngine()
	second := sessiontest.NewEngine()
	s := newSession(t, sessiontest.NewLauncher(first, second))

	_, err := s.Init(context.Background(), "")
	require.NoError(t, err)

	first.Crash()
	require.Eventually(t, func() bool { return s.State() == session.Unhealthy }, eventually, 5*time.Millisecond)

	_, err = s.Init(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, session.Healthy, s.State())

	// The old handle reports its close late; the replacement must stay healthy.
	first.ClosePage()
	first.Crash()
	assert.Never(t, func() bool { return s.State() != session.Healthy }, 100*time.Millisecond, 5*time.Millisecond)

	acquired, ok := s.Acquire()
	require.True(t, ok)
	assert.Same(t, second, acquired)
}

func TestInit_CrashDuringProbeLeavesSessionUnhealthy(t *testing.T) {
	engine := sessiontest.NewEngine()
	engine.NavigateFunc = func(string) error {
		engine.ClosePage()
		return errors.New("Target page, context or browser has been closed")
	}
	s := newSession(t, sessiontest.NewLauncher(engine))

	result, err := s.Init(context.Background(), "")
	require.NoError(t, err, "only a launch error fails init")
	assert.Equal(t, types.StatusHealthy, result.Status)
	assert.Equal(t, session.MessageInitialized, result.Message)
	assert.Equal(t, session.Unhealthy, s.State())
	assert.False(t, s.Health())
	_, ok := s.Acquire()
	assert.False(t, ok)
	assert.Equal(t, 1, engine.CloseCalls(), "the crashed handle is closed")
}

func TestInit_SubscriptionFailureIsNotFatal(t *testing.T) {
	engine := sessiontest.NewEngine()
	engine.OnDisconnectedErr = errors.New("browser handle unavailable")
	s := newSession(t, sessiontest.NewLauncher(engine))

	result, err := s.Init(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, types.StatusHealthy, result.Status)

	// The page close subscription still works.
	engine.ClosePage()
	assert.Eventually(t, func() bool { return s.State() == session.Unhealthy }, eventually, 5*time.Millisecond)
}

func TestHealth_ClosedPageIsNotHealthy(t *testing.T) {
	engine := sessiontest.NewEngine()
	s := newSession(t, sessiontest.NewLauncher(engine))

	_, err := s.Init(context.Background(), "")
	require.NoError(t, err)

	// Close without firing handlers: Health still sees the closed page.
	require.NoError(t, engine.Close(context.Background()))
	assert.False(t, s.Health())
}

func TestShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	engine := sessiontest.NewEngine()
	engine.CloseErr = errors.New("browser has been closed")
	s := session.New(sessiontest.NewLauncher(engine))
	defer s.Close()

	_, err := s.Init(context.Background(), "")
	require.NoError(t, err)

	result := s.Shutdown(context.Background())
	assert.Equal(t, types.StatusShutdown, result.Status)
	assert.Equal(t, session.Unhealthy, s.State())
	assert.Equal(t, 1, engine.CloseCalls())

	// The closed handle's notifications must not matter anymore.
	engine.ClosePage()

	result, err = s.Init(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, session.MessageInitialized, result.Message)
	assert.Eventually(t, s.Health, eventually, 5*time.Millisecond)
}

func TestStateObserver(t *testing.T) {
	var mu sync.Mutex
	var transitions []string
	observer := func(from, to session.State) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, from.String()+"->"+to.String())
	}

	engine := sessiontest.NewEngine()
	s := newSession(t, sessiontest.NewLauncher(engine), session.WithStateObserver(observer))

	_, err := s.Init(context.Background(), "")
	require.NoError(t, err)
	s.Shutdown(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"uninitialized->initializing",
		"initializing->healthy",
		"healthy->unhealthy",
	}, transitions)
}

func TestWithProbe(t *testing.T) {
	engine := sessiontest.NewEngine()
	s := newSession(t, sessiontest.NewLauncher(engine),
		session.WithProbe("http://probe.test", "https://probe.test", time.Second))

	_, err := s.Init(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://probe.test"}, engine.Navigations())
}

func TestClose_IsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := session.New(sessiontest.NewLauncher())
	s.Close()
	s.Close()
}
