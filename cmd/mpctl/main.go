// Command mpctl is a dev CLI for maprobe maintenance and debugging tasks.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/browser"
	"github.com/pterm/pterm"
	"go.uber.org/zap"

	"github.com/ibeckermayer/maprobe/internal/app"
	browseropts "github.com/ibeckermayer/maprobe/internal/browser"
	"github.com/ibeckermayer/maprobe/internal/challenge"
	"github.com/ibeckermayer/maprobe/internal/config"
	"github.com/ibeckermayer/maprobe/internal/htmldoc"
	"github.com/ibeckermayer/maprobe/internal/logging"
	"github.com/ibeckermayer/maprobe/internal/scheduler"
	"github.com/ibeckermayer/maprobe/internal/snapshot"
	"github.com/ibeckermayer/maprobe/internal/store"
)

const botTestURL = "https://bot.sannysoft.com"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "bot-test":
		err = runBotTest()
	case "open":
		if len(os.Args) < 3 {
			fmt.Println("Usage: mpctl open <config|logs|cache> [profile]")
			os.Exit(1)
		}
		err = runOpen(os.Args[2], profileArg(3))
	case "inspect":
		file := ""
		if len(os.Args) > 2 {
			file = os.Args[2]
		}
		err = runInspect(file)
	case "watch":
		err = runWatch(profileArg(2))
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: mpctl <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  bot-test                 Open bot.sannysoft.com to audit the enhanced browser fingerprint")
	fmt.Println("  open config [profile]    Open a profile's config file in the default editor")
	fmt.Println("  open logs [profile]      Open a profile's log file")
	fmt.Println("  open cache               Open the cache directory in the file explorer")
	fmt.Println("  inspect [file]           Re-run challenge detection and selector fallback on a saved page source")
	fmt.Println("  watch [profile]          Run a profile on its configured cron schedule")
	fmt.Println()
	fmt.Printf("Profiles: %s (default %s)\n", profileNames(), config.ProfileBasic)
}

func profileNames() string {
	names := make([]string, len(config.Profiles))
	for i, p := range config.Profiles {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

// profileArg reads an optional profile name from os.Args[i]
func profileArg(i int) config.Profile {
	if len(os.Args) <= i {
		return config.ProfileBasic
	}
	p := config.Profile(os.Args[i])
	if !p.Valid() {
		pterm.Error.Printfln("Unknown profile %q (want one of: %s)", p, profileNames())
		os.Exit(1)
	}
	return p
}

func runBotTest() error {
	pterm.Info.Println("Opening " + botTestURL + " with enhanced browser options...")

	cfg := config.Default(config.ProfileEnhanced).Browser
	cfg.Headless = false // visible so you can inspect it

	ua := browseropts.PickUserAgent(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), cfg.UserAgents)
	b, err := browseropts.Launch(context.Background(), browseropts.Options(cfg, ua), cfg.Stealth)
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer b.Close()

	ctx := context.Background()
	if err := b.Navigate(ctx, botTestURL); err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}
	if err := b.WaitBody(ctx); err != nil {
		return fmt.Errorf("failed to load page: %w", err)
	}

	fmt.Println("Press Enter to close the browser...")
	fmt.Scanln()

	pterm.Info.Println("Done.")
	return nil
}

func runOpen(target string, profile config.Profile) error {
	var path string
	var err error

	switch target {
	case "config":
		// Make sure there is something to open on a fresh install.
		if _, _, err = config.LoadOrCreate(profile); err != nil {
			pterm.Warning.Println(err)
		}
		path, err = config.ConfigPath(profile)
	case "logs":
		var cfg *config.Config
		cfg, err = config.Load(profile)
		if os.IsNotExist(err) {
			cfg, err = config.Default(profile), nil
		}
		if err == nil {
			path, err = filepath.Abs(cfg.LogPath())
		}
	case "cache":
		path, err = config.CacheDir()
		if err == nil {
			err = os.MkdirAll(path, 0755)
		}
	default:
		return fmt.Errorf("unknown target: %s", target)
	}

	if err != nil {
		return fmt.Errorf("failed to get path: %w", err)
	}

	if err := browser.OpenFile(path); err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	return nil
}

func runInspect(file string) error {
	if file == "" {
		latest, err := store.LatestSource()
		if err != nil {
			return err
		}
		file = latest
	}

	src, err := store.LoadSource(file)
	if err != nil {
		return err
	}

	profile := src.Profile
	if !profile.Valid() {
		profile = config.ProfileEnhanced
	}
	cfg := config.Default(profile)

	doc, err := htmldoc.Parse(src.URL, src.HTML)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", file, err)
	}

	snap, err := snapshot.Extract(context.Background(), doc, snapshot.Options{
		Selectors:     cfg.Snapshot.Selectors,
		MinTextLength: cfg.Snapshot.MinTextLength,
		TextLimit:     cfg.Snapshot.TextLimit,
		Markers:       challenge.DefaultMarkers,
	}, nil)
	if err != nil {
		return err
	}

	selector := snap.Selector
	if snap.FromTitle() {
		selector = "(page title)"
	}
	verdict := "clear"
	if m, blocked := challenge.Detect(src.HTML, challenge.DefaultMarkers); blocked {
		verdict = m.Label + " (" + strings.Join(snap.Markers, ", ") + ")"
	}

	pterm.DefaultSection.Println(filepath.Base(file))
	pterm.DefaultTable.WithHasHeader(true).WithData(pterm.TableData{
		{"Field", "Value"},
		{"Profile", string(profile)},
		{"URL", snap.URL},
		{"Title", snap.Title},
		{"Source length", strconv.Itoa(snap.SourceLength)},
		{"Selector", selector},
		{"Heading", snap.Heading},
		{"Challenge", verdict},
		{"Body text", snap.BodyText},
	}).Render()
	return nil
}

func runWatch(profile config.Profile) error {
	cfg, _, err := config.LoadOrCreate(profile)
	if cfg == nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid %s configuration: %w", profile, err)
	}

	path, _ := config.ConfigPath(profile)
	if cfg.Schedule.Cron == "" {
		return fmt.Errorf("schedule.cron is not set in %s", path)
	}
	spec, err := scheduler.Spec(cfg.Schedule.Cron)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogPath(), cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := scheduler.New(ctx, cfg.Schedule.Timezone, cfg.Schedule.JobTimeout(), logger.Logger)
	if err != nil {
		return err
	}

	job := func(ctx context.Context) error {
		out, err := app.NewProbe(cfg, logger.Logger).Run(ctx)
		if err != nil {
			return err
		}
		if !out.Success {
			return errors.New("run completed with warnings")
		}
		return nil
	}
	if err := s.AddJob(string(profile), spec, job); err != nil {
		return err
	}

	// First run happens right away instead of at the first tick.
	pterm.Info.Printfln("Running %s now...", profile)
	if err := s.RunNow(string(profile), job); err != nil {
		logger.Error("Job failed", zap.String("job", string(profile)), zap.Error(err))
		pterm.Warning.Printfln("First %s run failed: %v", profile, err)
	}
	if ctx.Err() != nil {
		return nil
	}

	s.Start()
	for _, info := range s.ListJobs() {
		pterm.Info.Printfln("Watching %s: next run %s", info.Name, info.NextRun.Format("2006-01-02 15:04:05"))
	}
	pterm.Info.Println("Press Ctrl+C to stop. Logging to " + logger.Path())

	<-ctx.Done()
	pterm.Info.Println("Stopping running jobs...")
	<-s.Stop().Done()

	logger.Info("Watch stopped", zap.String("profile", string(profile)))
	return nil
}
