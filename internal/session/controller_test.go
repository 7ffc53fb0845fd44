package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ibeckermayer/maprobe/internal/config"
)

// fakePage replays scripted values. Sources and URLs advance one entry per
// call and then repeat the last one.
type fakePage struct {
	mu sync.Mutex

	sources   []string
	sourceErr error
	urls      []string
	urlErrs   int
	delay     time.Duration

	title     string
	selectors map[string]string
	body      string

	navigateErr error
	waitBody    func(ctx context.Context) error
	moveErr     error

	navigated []string
	moves     [][2]float64
	scrolls   []int
	closed    int

	sourceN, urlN int
}

func next(list []string, i int) string {
	if len(list) == 0 {
		return ""
	}
	if i >= len(list) {
		return list[len(list)-1]
	}
	return list[i]
}

func (p *fakePage) pause(ctx context.Context) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
		}
	}
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.navigated = append(p.navigated, url)
	return p.navigateErr
}

func (p *fakePage) WaitBody(ctx context.Context) error {
	if p.waitBody != nil {
		return p.waitBody(ctx)
	}
	return nil
}

func (p *fakePage) Source(ctx context.Context) (string, error) {
	p.pause(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sourceErr != nil {
		return "", p.sourceErr
	}
	p.sourceN++
	return next(p.sources, p.sourceN-1), nil
}

func (p *fakePage) Location(ctx context.Context) (string, error) {
	p.pause(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.urlErrs > 0 {
		p.urlErrs--
		return "", errors.New("target closed")
	}
	p.urlN++
	return next(p.urls, p.urlN-1), nil
}

func (p *fakePage) Title(context.Context) (string, error) { return p.title, nil }

func (p *fakePage) SelectorText(_ context.Context, selector string) (string, error) {
	return p.selectors[selector], nil
}

func (p *fakePage) BodyText(context.Context) (string, error) { return p.body, nil }

func (p *fakePage) MoveMouse(_ context.Context, x, y float64) error {
	if p.moveErr != nil {
		return p.moveErr
	}
	p.moves = append(p.moves, [2]float64{x, y})
	return nil
}

func (p *fakePage) ScrollBy(_ context.Context, dy int) error {
	p.scrolls = append(p.scrolls, dy)
	return nil
}

func (p *fakePage) Close() { p.closed++ }

// fastConfig shrinks every wait so tests finish quickly
func fastConfig(p config.Profile) *config.Config {
	cfg := config.Default(p)
	cfg.Wait.NavigationTimeoutSeconds = 1
	cfg.Wait.ChallengeTimeoutSeconds = 1
	cfg.Wait.ManualTimeoutSeconds = 1
	cfg.Wait.PollIntervalSeconds = 0
	cfg.Wait.ManualPollSeconds = 0
	cfg.Wait.ErrorBackoffSeconds = 0
	return cfg
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestController(t *testing.T, cfg *config.Config, page *fakePage, logger *zap.Logger) *Controller {
	t.Helper()
	c := New(cfg, logger,
		WithLauncher(func(context.Context, config.BrowserConfig, string) (Page, error) {
			return page, nil
		}),
		WithRand(rand.New(rand.NewPCG(7, 7))),
		WithSleep(noSleep),
	)
	require.NoError(t, c.Launch(context.Background()))
	return c
}

func TestLaunchPassesProfileUserAgent(t *testing.T) {
	var gotUA string
	var gotCfg config.BrowserConfig
	cfg := config.Default(config.ProfileBasic)

	c := New(cfg, nil, WithLauncher(func(_ context.Context, bc config.BrowserConfig, ua string) (Page, error) {
		gotCfg, gotUA = bc, ua
		return &fakePage{}, nil
	}))
	assert.Equal(t, Idle, c.State())

	require.NoError(t, c.Launch(context.Background()))
	assert.Equal(t, Launched, c.State())
	assert.Equal(t, config.LegacyUserAgent, gotUA)
	assert.True(t, gotCfg.Headless)

	assert.Error(t, c.Launch(context.Background()), "second launch")
}

func TestLaunchFailure(t *testing.T) {
	boom := errors.New("exec: \"google-chrome\": executable file not found in $PATH")
	c := New(config.Default(config.ProfileEnhanced), nil,
		WithLauncher(func(context.Context, config.BrowserConfig, string) (Page, error) {
			return nil, boom
		}))

	err := c.Launch(context.Background())
	var launchErr *LaunchError
	require.ErrorAs(t, err, &launchErr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Closed, c.State())

	// Shutdown after a failed launch is harmless.
	c.Shutdown()
	assert.Equal(t, Closed, c.State())

	_, err = c.ExtractSnapshot(context.Background())
	assert.ErrorIs(t, err, ErrNotLaunched)
}

func TestNavigateReady(t *testing.T) {
	page := &fakePage{}
	c := newTestController(t, fastConfig(config.ProfileBasic), page, nil)

	require.NoError(t, c.Navigate(context.Background(), config.TargetURL))
	assert.Equal(t, Ready, c.State())
	assert.Equal(t, []string{config.TargetURL}, page.navigated)
}

func TestNavigateTimesOut(t *testing.T) {
	page := &fakePage{waitBody: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	c := newTestController(t, fastConfig(config.ProfileBasic), page, nil)

	start := time.Now()
	err := c.Navigate(context.Background(), config.TargetURL)

	var navErr *NavigationTimeout
	require.ErrorAs(t, err, &navErr)
	assert.Equal(t, config.TargetURL, navErr.URL)
	assert.Equal(t, time.Second, navErr.Timeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, TimedOut, c.State())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNavigateOtherFailure(t *testing.T) {
	page := &fakePage{navigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	c := newTestController(t, fastConfig(config.ProfileBasic), page, nil)

	err := c.Navigate(context.Background(), config.TargetURL)
	require.Error(t, err)
	var navErr *NavigationTimeout
	assert.False(t, errors.As(err, &navErr))
	assert.ErrorIs(t, err, page.navigateErr)
	assert.Equal(t, Launched, c.State())
}

func TestNavigateCancelledIsNotTimeout(t *testing.T) {
	page := &fakePage{waitBody: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	c := newTestController(t, fastConfig(config.ProfileBasic), page, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	err := c.Navigate(ctx, config.TargetURL)
	assert.ErrorIs(t, err, context.Canceled)
	var navErr *NavigationTimeout
	assert.False(t, errors.As(err, &navErr))
}

func TestAwaitReadinessClears(t *testing.T) {
	page := &fakePage{sources: []string{
		"<title>Just a moment...</title> cloudflare",
		"Checking your browser before accessing",
		"<h1>The Metal Archives</h1>",
	}}
	c := newTestController(t, fastConfig(config.ProfileEnhanced), page, nil)

	assert.True(t, c.AwaitReadiness(context.Background()))
	assert.Equal(t, 3, page.sourceN)
}

func TestAwaitReadinessTimesOut(t *testing.T) {
	page := &fakePage{sources: []string{"Verifying you are human"}, delay: 10 * time.Millisecond}
	core, logs := observer.New(zapcore.InfoLevel)
	c := newTestController(t, fastConfig(config.ProfileEnhanced), page, zap.New(core))

	start := time.Now()
	assert.False(t, c.AwaitReadiness(context.Background()))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.NotZero(t, logs.FilterMessage("Human verification detected, waiting...").Len())
	assert.Equal(t, 1, logs.FilterMessage("Cloudflare protection timeout reached").Len())
}

func TestAwaitManualNavigation(t *testing.T) {
	page := &fakePage{
		urls:    []string{"about:blank", "https://www.google.com/", "https://www.metal-archives.com/"},
		urlErrs: 1,
	}
	core, logs := observer.New(zapcore.InfoLevel)
	c := newTestController(t, fastConfig(config.ProfileManual), page, zap.New(core))

	require.NoError(t, c.AwaitManualNavigation(context.Background()))
	assert.Equal(t, Navigating, c.State())
	assert.Equal(t, 1, logs.FilterMessage("Current URL: about:blank").Len())
	assert.Equal(t, 1, logs.FilterMessage("Current URL: https://www.google.com/").Len())
	assert.Equal(t, 1, logs.FilterMessage("Error checking current URL").Len())

	require.NoError(t, c.WaitReady(context.Background()))
	assert.Equal(t, Ready, c.State())
	assert.Empty(t, page.navigated)
}

func TestAwaitManualNavigationTimesOut(t *testing.T) {
	page := &fakePage{urls: []string{"about:blank"}, delay: 10 * time.Millisecond}
	c := newTestController(t, fastConfig(config.ProfileManual), page, nil)

	start := time.Now()
	err := c.AwaitManualNavigation(context.Background())

	var navErr *NavigationTimeout
	require.ErrorAs(t, err, &navErr)
	assert.Equal(t, config.TargetURL, navErr.URL)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, TimedOut, c.State())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSimulateActivity(t *testing.T) {
	page := &fakePage{}
	core, logs := observer.New(zapcore.InfoLevel)
	c := newTestController(t, fastConfig(config.ProfileEnhanced), page, zap.New(core))

	c.SimulateActivity(context.Background())

	assert.GreaterOrEqual(t, len(page.moves), 2)
	assert.LessOrEqual(t, len(page.moves), 5)
	require.Len(t, page.scrolls, 2)
	assert.Equal(t, -page.scrolls[0], page.scrolls[1])
	assert.Equal(t, 1, logs.FilterMessage("Simulated human behavior completed").Len())
}

func TestSimulateActivityFailureIsLogged(t *testing.T) {
	page := &fakePage{moveErr: errors.New("input dispatch failed")}
	core, logs := observer.New(zapcore.InfoLevel)
	c := newTestController(t, fastConfig(config.ProfileEnhanced), page, zap.New(core))

	c.SimulateActivity(context.Background())

	assert.Empty(t, page.scrolls)
	warn := logs.FilterMessage("Error simulating human behavior")
	require.Equal(t, 1, warn.Len())
	assert.Equal(t, zapcore.WarnLevel, warn.All()[0].Level)
	assert.Zero(t, logs.FilterMessage("Simulated human behavior completed").Len())
}

func TestExtractSnapshotAndBlocked(t *testing.T) {
	page := &fakePage{
		urls:      []string{config.TargetURL},
		sources:   []string{"<html><body><h1>Encyclopaedia Metallum</h1></body></html>"},
		title:     "Encyclopaedia Metallum: The Metal Archives",
		selectors: map[string]string{"h2": "Latest additions", "h1": "  "},
		body:      "Encyclopaedia Metallum Bands Albums",
	}
	c := newTestController(t, fastConfig(config.ProfileEnhanced), page, nil)

	snap, err := c.ExtractSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "h2", snap.Selector)
	assert.Equal(t, "Latest additions", snap.Heading)
	assert.Equal(t, config.TargetURL, snap.URL)
	assert.False(t, snap.Blocked())

	blocked, err := c.Blocked(context.Background())
	require.NoError(t, err)
	assert.False(t, blocked)

	page.sources = []string{"Attention Required! | Cloudflare"}
	page.sourceN = 0
	blocked, err = c.Blocked(context.Background())
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestShutdownIsIdempotent(t *testing.T) {
	page := &fakePage{}
	c := newTestController(t, fastConfig(config.ProfileBasic), page, nil)

	c.Shutdown()
	c.Shutdown()
	assert.Equal(t, 1, page.closed)
	assert.Equal(t, Closed, c.State())

	assert.ErrorIs(t, c.Navigate(context.Background(), config.TargetURL), ErrNotLaunched)
	assert.False(t, c.AwaitReadiness(context.Background()))

	idle := New(config.Default(config.ProfileBasic), nil)
	idle.Shutdown()
	assert.Equal(t, Closed, idle.State())
}
