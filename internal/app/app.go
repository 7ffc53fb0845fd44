package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"go.uber.org/zap"

	"github.com/ibeckermayer/maprobe/internal/config"
	"github.com/ibeckermayer/maprobe/internal/session"
	"github.com/ibeckermayer/maprobe/internal/snapshot"
	"github.com/ibeckermayer/maprobe/internal/store"
)

// Outcome is the result of one probe run.
type Outcome struct {
	// Success is false when the run failed, or when it finished on a page
	// that still looked like a challenge and the profile requires otherwise.
	Success  bool
	Blocked  bool
	Snapshot *snapshot.Snapshot
	// SourcePath is where the page source was saved, if it was.
	SourcePath string
}

// Probe runs one profile end to end.
type Probe struct {
	cfg     *config.Config
	logger  *zap.Logger
	options []session.Option
	banner  func(cfg *config.Config)
}

// NewProbe creates a probe for cfg. opts are passed to the session
// controller.
func NewProbe(cfg *config.Config, logger *zap.Logger, opts ...session.Option) *Probe {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Probe{
		cfg:     cfg,
		logger:  logger,
		options: opts,
		banner:  printManualBanner,
	}
}

// Run launches the browser, reaches the target page, and logs a snapshot of
// it. The browser is always shut down before Run returns. Any error is
// logged and also returned alongside an unsuccessful outcome.
func (p *Probe) Run(ctx context.Context) (Outcome, error) {
	c := session.New(p.cfg, p.logger, p.options...)
	defer c.Shutdown()

	out, err := p.run(ctx, c)
	if err != nil {
		out.Success = false
		p.logger.Error("Error during scraping", zap.Error(err), zap.String("state", c.State().String()))
	}
	return out, err
}

func (p *Probe) run(ctx context.Context, c *session.Controller) (Outcome, error) {
	var out Outcome
	cfg := p.cfg

	if err := c.Launch(ctx); err != nil {
		return out, err
	}

	if cfg.Run.Manual {
		p.banner(cfg)
		if err := c.AwaitManualNavigation(ctx); err != nil {
			return out, err
		}
		p.logger.Info("Starting to scrape the current page...")
		if err := c.WaitReady(ctx); err != nil {
			return out, err
		}
	} else {
		p.logger.Info("Starting to scrape " + cfg.Target.Host + "...")
		if err := c.Navigate(ctx, cfg.Target.URL); err != nil {
			return out, err
		}
	}

	if cfg.Run.AwaitChallenge && !c.AwaitReadiness(ctx) {
		p.logger.Warn("Cloudflare protection may still be active")
	}

	if cfg.Activity.Enabled {
		c.SimulateActivity(ctx)
	}

	snap, err := c.ExtractSnapshot(ctx)
	if err != nil {
		return out, fmt.Errorf("failed to extract snapshot: %w", err)
	}
	out.Snapshot = snap
	out.Blocked = snap.Blocked()

	if cfg.Debug.SaveSource {
		out.SourcePath = p.saveSource(ctx, c, snap.URL)
	}

	out.Success = true
	if cfg.Run.RequireUnblocked {
		blocked, err := c.Blocked(ctx)
		if err != nil {
			p.logger.Warn("Could not recheck page for challenge markers", zap.Error(err))
			blocked = out.Blocked
		}
		out.Blocked = blocked

		if blocked {
			p.logger.Warn("Cloudflare protection may still be active", zap.Strings("markers", snap.Markers))
			out.Success = false
		} else {
			p.logger.Info("Successfully bypassed Cloudflare protection!")
		}
	}

	if out.Success {
		p.logger.Info("Scraping completed successfully!")
	}
	return out, nil
}

// saveSource writes the page source to the cache. Failures are logged only.
func (p *Probe) saveSource(ctx context.Context, c *session.Controller, url string) string {
	source, err := c.Source(ctx)
	if err != nil {
		p.logger.Warn("Failed to read page source for saving", zap.Error(err))
		return ""
	}

	path, err := store.SaveSource(p.cfg.Profile, url, source)
	if err != nil {
		p.logger.Warn("Failed to save page source", zap.Error(err))
		return ""
	}

	p.logger.Info("Saved page source to: " + path)
	return path
}

func printManualBanner(cfg *config.Config) {
	pterm.DefaultBox.WithTitle("CHROME BROWSER IS READY!").Println(
		"Please manually navigate to: " + cfg.Target.URL + "\n" +
			"Waiting for " + cfg.Target.Host + " to open...")
}

// IsLaunchError reports whether err came from starting the browser
func IsLaunchError(err error) bool {
	var launchErr *session.LaunchError
	return errors.As(err, &launchErr)
}
