// Package challenge detects anti-bot interstitials by searching rendered page
// source for known marker strings, and waits for them to clear.
//
// Detection is a heuristic: it never looks at HTTP status or page scripts,
// only at the text of the page.
package challenge

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/maprobe/internal/poll"
)

// Marker is a lowercase substring that signals a challenge page
type Marker struct {
	Text  string
	Label string
}

// DefaultMarkers are the Cloudflare interstitial phrases
var DefaultMarkers = []Marker{
	{Text: "cloudflare", Label: "Cloudflare protection"},
	{Text: "checking your browser", Label: "Cloudflare protection"},
	{Text: "verifying you are human", Label: "Human verification"},
}

// Detect returns the first marker found in source
func Detect(source string, markers []Marker) (Marker, bool) {
	lower := strings.ToLower(source)
	for _, m := range markers {
		if strings.Contains(lower, strings.ToLower(m.Text)) {
			return m, true
		}
	}
	return Marker{}, false
}

// Present returns the text of every marker found in source
func Present(source string, markers []Marker) []string {
	lower := strings.ToLower(source)
	var found []string
	for _, m := range markers {
		if strings.Contains(lower, strings.ToLower(m.Text)) {
			found = append(found, m.Text)
		}
	}
	return found
}

// Probe fetches the current page source
type Probe func(ctx context.Context) (string, error)

// Waiter polls a page until no marker remains
type Waiter struct {
	Markers      []Marker
	Interval     time.Duration
	ErrorBackoff time.Duration
	Timeout      time.Duration
	Logger       *zap.Logger
}

// Await polls probe until the source is free of markers or the timeout
// elapses. It reports whether the page cleared in time.
func (w *Waiter) Await(ctx context.Context, probe Probe) bool {
	logger := w.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	markers := w.Markers
	if markers == nil {
		markers = DefaultMarkers
	}

	logger.Info("Checking for Cloudflare protection...")

	ctx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	err := poll.Until(ctx, w.Interval, w.ErrorBackoff, func(ctx context.Context) (bool, error) {
		source, err := probe(ctx)
		if err != nil {
			return false, err
		}
		if m, blocked := Detect(source, markers); blocked {
			logger.Info(m.Label+" detected, waiting...", zap.String("marker", m.Text))
			return false, nil
		}
		return true, nil
	}, func(err error) {
		logger.Warn("Error checking Cloudflare status", zap.Error(err))
	})

	switch {
	case err == nil:
		logger.Info("Cloudflare protection passed!")
		return true
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("Cloudflare protection timeout reached", zap.Duration("timeout", w.Timeout))
	default:
		logger.Warn("Cloudflare check aborted", zap.Error(err))
	}
	return false
}
