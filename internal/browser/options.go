// Package browser provides shared chromedp configuration with anti-bot-detection measures.
package browser

import (
	"math/rand/v2"

	"github.com/chromedp/chromedp"

	"github.com/ibeckermayer/maprobe/internal/config"
)

// Options returns chromedp allocator options for a profile's browser settings.
// An empty userAgent keeps the browser's own.
func Options(cfg config.BrowserConfig, userAgent string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),

		// Stability flags for containers and CI boxes
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),

		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)

	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}

	if cfg.Stealth {
		opts = append(opts,
			// Prevent navigator.webdriver = true detection
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			// Drop the "controlled by automated software" switch
			chromedp.Flag("enable-automation", false),
			chromedp.Flag("disable-infobars", true),
			chromedp.Flag("disable-web-security", true),
			chromedp.Flag("disable-features", "VizDisplayCompositor"),
			chromedp.Flag("start-maximized", true),
		)
	}

	return opts
}

// PickUserAgent returns a random agent from agents, or "" when there are none
func PickUserAgent(r *rand.Rand, agents []string) string {
	if len(agents) == 0 {
		return ""
	}
	return agents[r.IntN(len(agents))]
}
