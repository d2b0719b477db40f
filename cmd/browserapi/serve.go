package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/entrhq/browserapi/pkg/actions"
	"github.com/entrhq/browserapi/pkg/browser"
	"github.com/entrhq/browserapi/pkg/config"
	"github.com/entrhq/browserapi/pkg/llm/openai"
	"github.com/entrhq/browserapi/pkg/llm/tokens"
	"github.com/entrhq/browserapi/pkg/logging"
	"github.com/entrhq/browserapi/pkg/metrics"
	"github.com/entrhq/browserapi/pkg/server"
	"github.com/entrhq/browserapi/pkg/session"
)

type serveOptions struct {
	addr   string
	stderr bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the browser session over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if opts.addr != "" {
				cfg.Server.SetListenAddr(opts.addr)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (overrides server.listen_addr)")
	cmd.Flags().BoolVar(&opts.stderr, "log-stderr", false, "log to stderr instead of the log file")
	return cmd
}

func newLogger(settings config.ServerSettings, toStderr bool) *logging.Logger {
	if toStderr {
		return logging.NewWriterLogger(os.Stderr, "browserapi")
	}
	logging.SetDirectory(settings.LogDir)
	logger, err := logging.NewLogger("browserapi")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging to stderr: %v\n", err)
	}
	return logger
}

// interpreterFactory builds an interpreter per session from the LLM section.
func interpreterFactory(llm *config.LLMSection, logger *logging.Logger) browser.InterpreterFactory {
	return func(credential string, caching bool) (browser.Interpreter, error) {
		providerOpts := []openai.ProviderOption{openai.WithModel(llm.GetModel())}
		if baseURL := llm.GetBaseURL(); baseURL != "" {
			providerOpts = append(providerOpts, openai.WithBaseURL(baseURL))
		}
		provider, err := openai.NewProvider(llm.ResolveAPIKey(credential), providerOpts...)
		if err != nil {
			return nil, err
		}

		interpreterOpts := []openai.InterpreterOption{
			openai.WithTokenBudget(tokens.NewBudget(llm.GetMaxPromptTokens())),
			openai.WithInterpreterLogger(logger),
		}
		if caching {
			interpreterOpts = append(interpreterOpts, openai.WithPlanCache(llm.GetActCacheSize()))
		}
		return openai.NewInterpreter(provider, interpreterOpts...)
	}
}

func serve(ctx context.Context, cfg *config.Config, opts *serveOptions) error {
	serverSettings := cfg.Server.Snapshot()
	browserSettings := cfg.Browser.Snapshot()

	logger := newLogger(serverSettings, opts.stderr)
	defer logger.Close()
	logger.SetLevel(logging.ParseLevel(serverSettings.LogLevel))

	policy, err := cfg.Navigation.Policy()
	if err != nil {
		return fmt.Errorf("invalid navigation policy: %w", err)
	}

	launcher := browser.NewLauncher(
		interpreterFactory(cfg.LLM, logger.With("interpreter")),
		browser.WithInstall(browserSettings.InstallDriver),
		browser.WithLogger(logger.With("browser")),
	)

	sess := session.New(launcher,
		session.WithLogger(logger.With("session")),
		session.WithLaunchOptions(session.LaunchOptions{
			Headless:       browserSettings.Headless,
			ViewportWidth:  browserSettings.ViewportWidth,
			ViewportHeight: browserSettings.ViewportHeight,
			DownloadsPath:  browserSettings.DownloadsPath,
			Args:           browserSettings.LaunchArgs,
			EnableCaching:  browserSettings.EnableCaching,
		}),
		session.WithProbe(browserSettings.ProbePrimaryURL, browserSettings.ProbeFallbackURL, browserSettings.NavigationTimeout),
		session.WithStateObserver(func(from, to session.State) {
			metrics.SetSessionState(from.String(), to.String())
		}),
	)
	metrics.SetSessionState("", sess.State().String())

	dispatcher := actions.New(sess,
		actions.WithLogger(logger.With("actions")),
		actions.WithNavigationPolicy(policy),
		actions.WithSerializedActions(serverSettings.SerializeActions),
		actions.WithTimeouts(browserSettings.NavigationTimeout, browserSettings.ConvertTimeout, browserSettings.ConvertSettleDelay),
	)

	srv := server.New(sess, dispatcher,
		server.WithLogger(logger.With("http")),
		server.WithRoutePrefix(serverSettings.RoutePrefix),
		server.WithServiceName(serverSettings.ServiceName),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, serverSettings.ListenAddr, serverSettings.ShutdownTimeout)
	})
	if browserSettings.InstallDriver {
		// Warm the driver so the first init does not pay for the download.
		g.Go(func() error {
			if err := launcher.Prepare(); err != nil {
				logger.Warnf("Playwright driver not ready, init will retry: %v", err)
			}
			return nil
		})
	}
	err = g.Wait()

	sess.Shutdown(context.Background())
	sess.Close()
	if stopErr := launcher.Stop(); stopErr != nil {
		logger.Errorf("%v", stopErr)
	}
	logger.Infof("Stopped")
	return err
}
