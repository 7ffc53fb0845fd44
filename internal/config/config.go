package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds everything a single probe run needs
type Config struct {
	Version  int            `toml:"version"`
	Profile  Profile        `toml:"profile"`
	Target   TargetConfig   `toml:"target"`
	Browser  BrowserConfig  `toml:"browser"`
	Run      RunConfig      `toml:"run"`
	Wait     WaitConfig     `toml:"wait"`
	Activity ActivityConfig `toml:"activity"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	Logging  LoggingConfig  `toml:"logging"`
	Debug    DebugConfig    `toml:"debug"`
	Schedule ScheduleConfig `toml:"schedule"`
}

type TargetConfig struct {
	URL string `toml:"url"`
	// Host is matched as a substring of the current URL during manual navigation.
	Host string `toml:"host"`
}

type BrowserConfig struct {
	Headless     bool     `toml:"headless"`
	Stealth      bool     `toml:"stealth"`
	WindowWidth  int      `toml:"window_width"`
	WindowHeight int      `toml:"window_height"`
	UserAgents   []string `toml:"user_agents"`
}

type RunConfig struct {
	Manual           bool `toml:"manual"`
	AwaitChallenge   bool `toml:"await_challenge"`
	RequireUnblocked bool `toml:"require_unblocked"`
}

type WaitConfig struct {
	NavigationTimeoutSeconds int `toml:"navigation_timeout_seconds"`
	ChallengeTimeoutSeconds  int `toml:"challenge_timeout_seconds"`
	PollIntervalSeconds      int `toml:"poll_interval_seconds"`
	ErrorBackoffSeconds      int `toml:"error_backoff_seconds"`
	ManualTimeoutSeconds     int `toml:"manual_timeout_seconds"`
	ManualPollSeconds        int `toml:"manual_poll_seconds"`
}

type ActivityConfig struct {
	Enabled   bool `toml:"enabled"`
	MinMoves  int  `toml:"min_moves"`
	MaxMoves  int  `toml:"max_moves"`
	MaxOffset int  `toml:"max_offset"`
	MinScroll int  `toml:"min_scroll"`
	MaxScroll int  `toml:"max_scroll"`
}

type SnapshotConfig struct {
	Selectors     []string `toml:"selectors"`
	MinTextLength int      `toml:"min_text_length"`
	TextLimit     int      `toml:"text_limit"`
}

type LoggingConfig struct {
	// Dir is where the log file is written; empty means the working directory.
	Dir   string `toml:"dir"`
	File  string `toml:"file"`
	Level string `toml:"level"`
}

type DebugConfig struct {
	SaveSource bool `toml:"save_source"`
}

type ScheduleConfig struct {
	Cron     string `toml:"cron"`
	Timezone string `toml:"timezone"`
	// JobTimeoutMinutes bounds a single scheduled run.
	JobTimeoutMinutes int `toml:"job_timeout_minutes"`
}

func (w WaitConfig) NavigationTimeout() time.Duration {
	return seconds(w.NavigationTimeoutSeconds)
}

func (w WaitConfig) ChallengeTimeout() time.Duration {
	return seconds(w.ChallengeTimeoutSeconds)
}

func (w WaitConfig) PollInterval() time.Duration {
	return seconds(w.PollIntervalSeconds)
}

func (w WaitConfig) ErrorBackoff() time.Duration {
	return seconds(w.ErrorBackoffSeconds)
}

func (w WaitConfig) ManualTimeout() time.Duration {
	return seconds(w.ManualTimeoutSeconds)
}

func (w WaitConfig) ManualPoll() time.Duration {
	return seconds(w.ManualPollSeconds)
}

func (s ScheduleConfig) JobTimeout() time.Duration {
	return time.Duration(s.JobTimeoutMinutes) * time.Minute
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// LogPath returns the full path of the run log file
func (c *Config) LogPath() string {
	if c.Logging.Dir == "" {
		return c.Logging.File
	}
	return filepath.Join(c.Logging.Dir, c.Logging.File)
}

// Validate rejects configurations that would make a run hang or misbehave
func (c *Config) Validate() error {
	if !c.Profile.Valid() {
		return fmt.Errorf("unknown profile %q", c.Profile)
	}
	if c.Target.URL == "" {
		return fmt.Errorf("target.url must be set")
	}
	if c.Run.Manual && c.Target.Host == "" {
		return fmt.Errorf("target.host must be set for manual navigation")
	}
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		return fmt.Errorf("invalid window size %dx%d", c.Browser.WindowWidth, c.Browser.WindowHeight)
	}
	if c.Wait.NavigationTimeoutSeconds <= 0 {
		return fmt.Errorf("wait.navigation_timeout_seconds must be positive")
	}
	if c.Wait.PollIntervalSeconds <= 0 || c.Wait.ErrorBackoffSeconds <= 0 {
		return fmt.Errorf("wait poll intervals must be positive")
	}
	if c.Run.AwaitChallenge && c.Wait.ChallengeTimeoutSeconds <= 0 {
		return fmt.Errorf("wait.challenge_timeout_seconds must be positive")
	}
	if c.Run.Manual && (c.Wait.ManualTimeoutSeconds <= 0 || c.Wait.ManualPollSeconds <= 0) {
		return fmt.Errorf("manual wait timeout and poll interval must be positive")
	}
	if c.Activity.Enabled {
		a := c.Activity
		if a.MinMoves < 0 || a.MaxMoves < a.MinMoves || a.MaxOffset < 0 || a.MinScroll < 0 || a.MaxScroll < a.MinScroll {
			return fmt.Errorf("invalid activity ranges")
		}
	}
	if c.Snapshot.TextLimit <= 0 {
		return fmt.Errorf("snapshot.text_limit must be positive")
	}
	if c.Logging.File == "" {
		return fmt.Errorf("logging.file must be set")
	}
	return nil
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "maprobe"), nil
}

// CacheDir returns the platform-appropriate cache directory
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "maprobe"), nil
}

// ConfigPath returns the full path to a profile's config file
func ConfigPath(p Profile) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, string(p)+".toml"), nil
}

// Load reads a profile's config from disk. Keys missing from the file keep
// the profile defaults.
func Load(p Profile) (*Config, error) {
	path, err := ConfigPath(p)
	if err != nil {
		return nil, err
	}

	cfg := Default(p)
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	// The file cannot move a binary to another profile.
	cfg.Profile = p

	return cfg, nil
}

// LoadOrCreate loads the profile config, writing the defaults on first run.
// created reports whether a new file was written.
func LoadOrCreate(p Profile) (cfg *Config, created bool, err error) {
	cfg, err = Load(p)
	if err == nil {
		return cfg, false, nil
	}
	if !os.IsNotExist(err) {
		return nil, false, fmt.Errorf("failed to load config: %w", err)
	}

	cfg = Default(p)
	if err := cfg.Save(); err != nil {
		// Defaults are still usable without a file on disk.
		return cfg, false, fmt.Errorf("could not save default config: %w", err)
	}
	return cfg, true, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	path, err := ConfigPath(c.Profile)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
