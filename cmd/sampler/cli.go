package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"example.com/focusforge/internal/app"
	"example.com/focusforge/internal/auth"
	"example.com/focusforge/internal/browser"
	"example.com/focusforge/internal/client"
	"example.com/focusforge/internal/config"
	"example.com/focusforge/internal/sampler"
	httptransport "example.com/focusforge/internal/transport/http"
)

// newCLIApp builds the sampler command line. Command output goes to out.
func newCLIApp(out io.Writer) *cli.App {
	cliApp := &cli.App{
		Name:      "focusforge-sampler",
		Usage:     "Samples the foreground browser tab and reports tracked time",
		Writer:    out,
		ErrWriter: out,
		Commands: []*cli.Command{
			runCmd(),
			tokenCmd(out),
		},
	}
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

func runCmd() *cli.Command {
	def := sampler.DefaultConfig()
	return &cli.Command{
		Name:  "run",
		Usage: "Follow the browser and report samples until interrupted (SIGUSR1 pauses, SIGUSR2 resumes)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api-url", EnvVars: []string{"FOCUSFORGE_API_URL"}, Value: "http://localhost:8080", Usage: "Base URL of the focusforge API"},
			&cli.StringFlag{Name: "token", EnvVars: []string{"FOCUSFORGE_TOKEN"}, Usage: "Bearer token; tracking is suppressed while empty"},
			&cli.StringFlag{Name: "chrome-url", EnvVars: []string{"CHROME_CONTROL_URL"}, Usage: "DevTools websocket of a running Chrome; empty launches one"},
			&cli.BoolFlag{Name: "headless", Usage: "Launch Chrome headless"},
			&cli.DurationFlag{Name: "poll", Value: time.Second, Usage: "Browser poll interval"},
			&cli.DurationFlag{Name: "period", EnvVars: []string{"SAMPLER_PERIOD"}, Value: def.Period, Usage: "Sampling period and submission rate limit"},
			&cli.Int64Flag{Name: "sample-seconds", EnvVars: []string{"SAMPLER_SAMPLE_SECONDS"}, Value: def.SampleSeconds, Usage: "Seconds credited per sample"},
			&cli.DurationFlag{Name: "request-timeout", Value: def.RequestTimeout, Usage: "Timeout of each API request"},
			&cli.BoolFlag{Name: "no-screenshots", Usage: "Classify page text only"},
			&cli.StringFlag{Name: "metrics-addr", EnvVars: []string{"SAMPLER_METRICS_ADDR"}, Usage: "Serve /metrics and /healthz on this address"},
			&cli.StringFlag{Name: "log-level", EnvVars: []string{"LOG_LEVEL"}, Value: "info"},
			&cli.StringFlag{Name: "log-format", EnvVars: []string{"LOG_FORMAT"}, Value: "text"},
		},
		Action: func(c *cli.Context) error {
			logger := app.NewLogger(config.LogConfig{Level: c.String("log-level"), Format: c.String("log-format")})

			cfg := sampler.DefaultConfig()
			cfg.Period = c.Duration("period")
			cfg.SampleSeconds = c.Int64("sample-seconds")
			cfg.RequestTimeout = c.Duration("request-timeout")
			cfg.CaptureScreenshots = !c.Bool("no-screenshots")

			token := strings.TrimSpace(c.String("token"))
			if token == "" {
				logger.Warn("no token configured, samples will not be reported")
			}

			ctx := c.Context
			host := browser.NewHost(browser.Config{
				ControlURL: c.String("chrome-url"),
				Headless:   c.Bool("headless"),
				Logger:     logger.With(slog.String("component", "browser")),
			})
			if err := host.Start(ctx); err != nil {
				return err
			}
			defer host.Close()

			s := sampler.New(cfg, host, client.New(c.String("api-url"), cfg.RequestTimeout), sampler.StaticToken(token),
				sampler.WithLogger(logger.With(slog.String("component", "sampler"))))
			watcher := browser.NewWatcher(host, s, c.Duration("poll"), logger.With(slog.String("component", "watcher")))

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return s.Run(ctx) })
			g.Go(func() error { return watcher.Run(ctx) })
			g.Go(func() error { return forwardToggles(ctx, s) })
			if addr := c.String("metrics-addr"); addr != "" {
				server := httptransport.NewServer(config.ServerConfig{
					Address:      addr,
					ReadTimeout:  5 * time.Second,
					WriteTimeout: 10 * time.Second,
					IdleTimeout:  time.Minute,
				}, httptransport.OpsHandler("/metrics"))
				g.Go(func() error { return httptransport.Run(ctx, server, 5*time.Second, logger) })
			}

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			logger.Info("sampler stopped")
			return nil
		},
	}
}

// forwardToggles turns SIGUSR1/SIGUSR2 into tracking toggles.
func forwardToggles(ctx context.Context, s *sampler.Sampler) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-sigs:
			enabled := sig == syscall.SIGUSR2
			if err := s.Notify(ctx, sampler.Event{Kind: sampler.EventEnabledChanged, Enabled: enabled}); err != nil {
				return err
			}
		}
	}
}

func tokenCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Mint a bearer token for a user (development helper)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Aliases: []string{"u"}, Required: true, Usage: "User id"},
			&cli.StringFlag{Name: "secret", EnvVars: []string{"JWT_SECRET"}, Required: true, Usage: "HMAC signing secret"},
			&cli.StringFlag{Name: "issuer", EnvVars: []string{"JWT_ISSUER"}, Value: "focusforge"},
			&cli.DurationFlag{Name: "ttl", Value: 30 * 24 * time.Hour},
			&cli.StringSliceFlag{Name: "scope", Value: cli.NewStringSlice(auth.ScopeActivityRead, auth.ScopeActivityWrite)},
		},
		Action: func(c *cli.Context) error {
			token, err := auth.Issue(
				auth.Config{Secret: c.String("secret"), Issuer: c.String("issuer")},
				c.String("subject"),
				c.StringSlice("scope"),
				c.Duration("ttl"),
				time.Now(),
			)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, token)
			return err
		},
	}
}
