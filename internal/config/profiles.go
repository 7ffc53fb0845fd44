package config

// Profile names a preset compiled into one of the probe binaries
type Profile string

const (
	ProfileBasic    Profile = "basic"
	ProfileEnhanced Profile = "enhanced"
	ProfileManual   Profile = "manual"
)

// Profiles lists every known profile
var Profiles = []Profile{ProfileBasic, ProfileEnhanced, ProfileManual}

func (p Profile) Valid() bool {
	for _, known := range Profiles {
		if p == known {
			return true
		}
	}
	return false
}

const (
	TargetURL  = "https://www.metal-archives.com/"
	TargetHost = "metal-archives.com"
)

// LegacyUserAgent is the fixed agent sent by the basic profile
const LegacyUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// StealthUserAgents are the candidates the enhanced profile picks from
var StealthUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// ContentSelectors are tried in order when looking for visible site content
var ContentSelectors = []string{
	"h1", "h2", ".title", ".site-title", ".logo",
	".main-content", ".content", ".header",
	"nav", ".navigation", ".menu",
}

// basicSelectors mirror the basic probe: a title-ish group, then any heading
var basicSelectors = []string{
	"h1, .title, .logo, .site-title",
	"h1, h2, h3",
}

// Default returns the preset for a profile. Unknown profiles get the basic
// preset with the profile name preserved so Validate can reject it.
func Default(p Profile) *Config {
	cfg := &Config{
		Version: 1,
		Profile: p,
		Target: TargetConfig{
			URL:  TargetURL,
			Host: TargetHost,
		},
		Browser: BrowserConfig{
			Headless:     true,
			WindowWidth:  1920,
			WindowHeight: 1080,
			UserAgents:   []string{LegacyUserAgent},
		},
		Wait: WaitConfig{
			NavigationTimeoutSeconds: 10,
			ChallengeTimeoutSeconds:  30,
			PollIntervalSeconds:      2,
			ErrorBackoffSeconds:      1,
			ManualTimeoutSeconds:     300,
			ManualPollSeconds:        10,
		},
		Activity: ActivityConfig{
			MinMoves:  2,
			MaxMoves:  5,
			MaxOffset: 100,
			MinScroll: 100,
			MaxScroll: 500,
		},
		// Any non-empty heading counts on the plain page.
		Snapshot: SnapshotConfig{
			Selectors:     append([]string(nil), basicSelectors...),
			MinTextLength: 1,
			TextLimit:     200,
		},
		Logging: LoggingConfig{
			File:  "scraping.log",
			Level: "info",
		},
		Schedule: ScheduleConfig{
			Timezone:          "Local",
			JobTimeoutMinutes: 10,
		},
	}

	switch p {
	case ProfileEnhanced:
		cfg.Browser.Stealth = true
		cfg.Browser.UserAgents = append([]string(nil), StealthUserAgents...)
		cfg.Run.AwaitChallenge = true
		cfg.Run.RequireUnblocked = true
		cfg.Wait.NavigationTimeoutSeconds = 15
		cfg.Activity.Enabled = true
		cfg.Snapshot.Selectors = append([]string(nil), ContentSelectors...)
		cfg.Snapshot.MinTextLength = 3
		cfg.Logging.File = "enhanced_scraping.log"
	case ProfileManual:
		cfg.Browser.Headless = false
		// The visible browser keeps its own agent.
		cfg.Browser.UserAgents = nil
		cfg.Run.Manual = true
		cfg.Snapshot.Selectors = append([]string(nil), ContentSelectors...)
		cfg.Snapshot.MinTextLength = 3
		cfg.Logging.File = "manual_scraping.log"
	}

	return cfg
}
