// Package snapshot reads the diagnostic values logged after a page settles.
package snapshot

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ibeckermayer/maprobe/internal/challenge"
)

// Reader is the read-only view of a page that a snapshot needs
type Reader interface {
	Location(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	Source(ctx context.Context) (string, error)
	// SelectorText returns the visible text of the first element matching
	// selector, or "" when nothing matches.
	SelectorText(ctx context.Context, selector string) (string, error)
	BodyText(ctx context.Context) (string, error)
}

// Snapshot is the transient set of values read from a loaded page
type Snapshot struct {
	URL          string
	Title        string
	SourceLength int
	// Selector is the selector that produced Heading, empty when the
	// title fallback was used.
	Selector string
	Heading  string
	BodyText string
	// Markers lists challenge markers still present in the source.
	Markers []string
}

// FromTitle reports whether no selector matched
func (s *Snapshot) FromTitle() bool {
	return s.Selector == ""
}

// Blocked reports whether the page still looked like a challenge
func (s *Snapshot) Blocked() bool {
	return len(s.Markers) > 0
}

// Options controls selector fallback and truncation
type Options struct {
	Selectors     []string
	MinTextLength int
	TextLimit     int
	Markers       []challenge.Marker
}

// Extract reads a snapshot from r. Failing to read the URL or source is an
// error; selector and body text failures only degrade the snapshot.
func Extract(ctx context.Context, r Reader, opts Options, logger *zap.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	markers := opts.Markers
	if markers == nil {
		markers = challenge.DefaultMarkers
	}

	snap := &Snapshot{}

	title, err := r.Title(ctx)
	if err != nil {
		logger.Warn("Could not read page title", zap.Error(err))
	}
	snap.Title = title

	sel, text := FirstMatch(ctx, r, opts.Selectors, opts.MinTextLength)
	if sel != "" {
		snap.Selector = sel
		snap.Heading = text
		logger.Info(fmt.Sprintf("Found content with selector '%s': '%s'", sel, text))
	} else {
		snap.Heading = title
		logger.Info(fmt.Sprintf("Using page title: '%s'", title))
	}

	url, err := r.Location(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read current url: %w", err)
	}
	snap.URL = url

	source, err := r.Source(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page source: %w", err)
	}
	snap.SourceLength = utf8.RuneCountInString(source)
	snap.Markers = challenge.Present(source, markers)

	logger.Info("Current URL: " + snap.URL)
	logger.Info(fmt.Sprintf("Page source length: %d characters", snap.SourceLength))

	body, err := r.BodyText(ctx)
	if err != nil {
		logger.Warn("Could not extract page content", zap.Error(err))
	} else {
		snap.BodyText = Truncate(body, opts.TextLimit)
		logger.Info(fmt.Sprintf("First %d characters of page content: '%s'", opts.TextLimit, snap.BodyText))
	}

	return snap, nil
}

// FirstMatch tries selectors in order and returns the first one whose text,
// trimmed, has at least minLen characters. Selectors that fail are skipped.
func FirstMatch(ctx context.Context, r Reader, selectors []string, minLen int) (selector, text string) {
	for _, sel := range selectors {
		raw, err := r.SelectorText(ctx, sel)
		if err != nil {
			continue
		}
		raw = strings.TrimSpace(raw)
		if raw != "" && utf8.RuneCountInString(raw) >= minLen {
			return sel, raw
		}
	}
	return "", ""
}

// Truncate keeps the first n characters of s
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
