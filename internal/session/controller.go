// Package session owns the single browser process used by one probe run.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/maprobe/internal/browser"
	"github.com/ibeckermayer/maprobe/internal/challenge"
	"github.com/ibeckermayer/maprobe/internal/config"
	"github.com/ibeckermayer/maprobe/internal/poll"
	"github.com/ibeckermayer/maprobe/internal/snapshot"
)

// ErrNotLaunched is returned by page operations before Launch succeeds
var ErrNotLaunched = errors.New("browser not launched")

// Page is a live browser tab
type Page interface {
	snapshot.Reader
	Navigate(ctx context.Context, url string) error
	WaitBody(ctx context.Context) error
	MoveMouse(ctx context.Context, x, y float64) error
	ScrollBy(ctx context.Context, dy int) error
	Close()
}

// Launcher starts a browser and returns its first tab
type Launcher func(ctx context.Context, cfg config.BrowserConfig, userAgent string) (Page, error)

// ChromeLauncher starts Chrome through chromedp
func ChromeLauncher(ctx context.Context, cfg config.BrowserConfig, userAgent string) (Page, error) {
	b, err := browser.Launch(ctx, browser.Options(cfg, userAgent), cfg.Stealth)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Option customizes a Controller
type Option func(*Controller)

// WithLauncher replaces the Chrome launcher
func WithLauncher(l Launcher) Option {
	return func(c *Controller) { c.launch = l }
}

// WithRand sets the source used for user agents and activity plans
func WithRand(r *rand.Rand) Option {
	return func(c *Controller) { c.rand = r }
}

// WithSleep replaces the pause used between simulated inputs
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Controller) { c.sleep = sleep }
}

// Controller drives one browser through launch, navigation, readiness
// checks, snapshot extraction and shutdown. It is not safe for concurrent
// use.
type Controller struct {
	cfg    *config.Config
	logger *zap.Logger
	launch Launcher
	rand   *rand.Rand
	sleep  func(context.Context, time.Duration) error

	page  Page
	state State
}

// New creates an idle controller for cfg
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		cfg:    cfg,
		logger: logger,
		launch: ChromeLauncher,
		rand:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		sleep:  poll.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state
func (c *Controller) State() State {
	return c.state
}

// Launch starts the browser. ctx bounds the lifetime of the browser process.
func (c *Controller) Launch(ctx context.Context) error {
	if c.state != Idle {
		return fmt.Errorf("cannot launch from state %s", c.state)
	}

	if c.cfg.Browser.Stealth {
		c.logger.Info("Setting up enhanced Chrome browser...")
	} else {
		c.logger.Info("Setting up Chrome browser...")
	}

	ua := browser.PickUserAgent(c.rand, c.cfg.Browser.UserAgents)
	if ua != "" {
		c.logger.Debug("Selected user agent", zap.String("user_agent", ua))
	}

	page, err := c.launch(ctx, c.cfg.Browser, ua)
	if err != nil {
		c.logger.Error("Failed to setup Chrome browser", zap.Error(err))
		c.Shutdown()
		return &LaunchError{Err: err}
	}

	c.page = page
	c.state = Launched
	c.logger.Info("Chrome browser setup completed successfully",
		zap.Bool("headless", c.cfg.Browser.Headless),
		zap.Bool("stealth", c.cfg.Browser.Stealth))
	return nil
}

// Navigate loads url and waits for a body element within the configured
// navigation window. Subresources still loading do not hold it up.
func (c *Controller) Navigate(ctx context.Context, url string) error {
	if c.page == nil {
		return ErrNotLaunched
	}

	c.state = Navigating
	c.logger.Info("Navigating to " + url)

	navCtx, cancel := context.WithTimeout(ctx, c.cfg.Wait.NavigationTimeout())
	defer cancel()

	err := c.page.Navigate(navCtx, url)
	if err == nil {
		err = c.page.WaitBody(navCtx)
	}
	return c.settle(ctx, navCtx, url, err)
}

// WaitReady waits for a body element on whatever page is already open. It
// is used after a human navigated the tab.
func (c *Controller) WaitReady(ctx context.Context) error {
	if c.page == nil {
		return ErrNotLaunched
	}

	c.state = Navigating

	navCtx, cancel := context.WithTimeout(ctx, c.cfg.Wait.NavigationTimeout())
	defer cancel()

	return c.settle(ctx, navCtx, "", c.page.WaitBody(navCtx))
}

// settle moves the state out of Navigating according to err
func (c *Controller) settle(ctx, navCtx context.Context, url string, err error) error {
	switch {
	case err == nil:
		c.state = Ready
		c.logger.Info("Page loaded successfully")
		return nil
	case ctx.Err() == nil && errors.Is(navCtx.Err(), context.DeadlineExceeded):
		c.state = TimedOut
		c.logger.Error("Timeout while waiting for page to load", zap.String("url", url))
		return &NavigationTimeout{URL: url, Timeout: c.cfg.Wait.NavigationTimeout(), Err: err}
	default:
		c.state = Launched
		if url == "" {
			return fmt.Errorf("failed to wait for page: %w", err)
		}
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
}

// AwaitReadiness polls the page source until no challenge marker is left or
// the challenge timeout elapses. It reports whether the page cleared.
func (c *Controller) AwaitReadiness(ctx context.Context) bool {
	if c.page == nil {
		c.logger.Warn("Cannot check readiness", zap.Error(ErrNotLaunched))
		return false
	}

	w := &challenge.Waiter{
		Markers:      challenge.DefaultMarkers,
		Interval:     c.cfg.Wait.PollInterval(),
		ErrorBackoff: c.cfg.Wait.ErrorBackoff(),
		Timeout:      c.cfg.Wait.ChallengeTimeout(),
		Logger:       c.logger,
	}
	return w.Await(ctx, c.page.Source)
}

// AwaitManualNavigation polls the tab's URL until a human has opened the
// target host, logging the URL on every poll. It gives up after the
// configured manual timeout with a *NavigationTimeout.
func (c *Controller) AwaitManualNavigation(ctx context.Context) error {
	if c.page == nil {
		return ErrNotLaunched
	}

	target := c.cfg.Target
	c.state = Navigating
	c.logger.Info("Chrome browser is now open and ready!")
	c.logger.Info("Please manually navigate to " + target.URL)
	c.logger.Info("Waiting for " + target.Host + " to open...")

	timeout := c.cfg.Wait.ManualTimeout()
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := poll.Until(waitCtx, c.cfg.Wait.ManualPoll(), c.cfg.Wait.ErrorBackoff(), func(ctx context.Context) (bool, error) {
		url, err := c.page.Location(ctx)
		if err != nil {
			return false, err
		}
		if strings.Contains(url, target.Host) {
			c.logger.Info("Successfully detected " + target.Host + " URL: " + url)
			return true, nil
		}
		c.logger.Info("Current URL: " + url)
		return false, nil
	}, func(err error) {
		c.logger.Warn("Error checking current URL", zap.Error(err))
	})

	switch {
	case err == nil:
		return nil
	case ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded):
		c.state = TimedOut
		c.logger.Error("Timed out waiting for manual navigation", zap.Duration("timeout", timeout))
		return &NavigationTimeout{URL: target.URL, Timeout: timeout, Err: err}
	default:
		c.state = Launched
		return fmt.Errorf("manual navigation wait aborted: %w", err)
	}
}

// SimulateActivity plays a random burst of pointer moves and scrolling.
// Failures are logged and otherwise ignored.
func (c *Controller) SimulateActivity(ctx context.Context) {
	if c.page == nil {
		c.logger.Warn("Error simulating human behavior", zap.Error(ErrNotLaunched))
		return
	}

	plan := PlanActivity(c.rand, c.cfg.Activity, c.cfg.Browser.WindowWidth, c.cfg.Browser.WindowHeight)
	if err := plan.play(ctx, c.page, c.sleep); err != nil {
		c.logger.Warn("Error simulating human behavior", zap.Error(err))
		return
	}
	c.logger.Info("Simulated human behavior completed",
		zap.Int("moves", len(plan.Moves)),
		zap.Int("scroll", plan.Scroll))
}

// ExtractSnapshot reads and logs the diagnostic values of the current page
func (c *Controller) ExtractSnapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	if c.page == nil {
		return nil, ErrNotLaunched
	}

	return snapshot.Extract(ctx, c.page, snapshot.Options{
		Selectors:     c.cfg.Snapshot.Selectors,
		MinTextLength: c.cfg.Snapshot.MinTextLength,
		TextLimit:     c.cfg.Snapshot.TextLimit,
		Markers:       challenge.DefaultMarkers,
	}, c.logger)
}

// Source returns the current page source
func (c *Controller) Source(ctx context.Context) (string, error) {
	if c.page == nil {
		return "", ErrNotLaunched
	}
	return c.page.Source(ctx)
}

// Blocked checks the current source once for challenge markers
func (c *Controller) Blocked(ctx context.Context) (bool, error) {
	source, err := c.Source(ctx)
	if err != nil {
		return false, err
	}
	_, found := challenge.Detect(source, challenge.DefaultMarkers)
	return found, nil
}

// Shutdown closes the browser. It is safe to call at any point, any number
// of times.
func (c *Controller) Shutdown() {
	if c.page != nil {
		c.logger.Info("Closing browser...")
		c.page.Close()
		c.page = nil
		c.logger.Info("Browser closed")
	}
	c.state = Closed
}
