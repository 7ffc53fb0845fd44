package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"go.uber.org/zap"

	"github.com/ibeckermayer/maprobe/internal/config"
	"github.com/ibeckermayer/maprobe/internal/logging"
)

// Process exit codes
const (
	ExitOK          = 0
	ExitSetup       = 1
	ExitInterrupted = 130
)

var runTitles = map[config.Profile]string{
	config.ProfileBasic:    "Scraping",
	config.ProfileEnhanced: "Enhanced scraping",
	config.ProfileManual:   "Manual scraping",
}

// RunProfile is the body of every probe binary. It returns the process exit
// code.
func RunProfile(profile config.Profile) int {
	cfg, created, err := config.LoadOrCreate(profile)
	if cfg == nil {
		pterm.Error.Printfln("Failed to load %s configuration: %v", profile, err)
		return ExitSetup
	}
	if err != nil {
		pterm.Warning.Printfln("Using built-in defaults: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		path, _ := config.ConfigPath(profile)
		pterm.Error.Printfln("Invalid configuration in %s: %v", path, err)
		return ExitSetup
	}

	logger, err := logging.New(cfg.LogPath(), cfg.Logging.Level)
	if err != nil {
		pterm.Error.Printfln("Failed to open log: %v", err)
		return ExitSetup
	}
	defer logger.Close()

	if created {
		path, _ := config.ConfigPath(profile)
		logger.Info("Wrote default configuration", zap.String("path", path))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := NewProbe(cfg, logger.Logger).Run(ctx)
	return report(ctx, cfg, logger.Path(), out, err)
}

// report prints the closing console message and picks the exit code
func report(ctx context.Context, cfg *config.Config, logPath string, out Outcome, err error) int {
	title := runTitles[cfg.Profile]
	if title == "" {
		title = "Scraping"
	}

	switch {
	case ctx.Err() != nil:
		pterm.Println()
		pterm.Warning.Println("Scraping interrupted by user")
		return ExitInterrupted
	case err != nil:
		if IsLaunchError(err) {
			pterm.Error.Printfln("Could not start Chrome: %v", err)
		}
		pterm.Error.Printfln("%s failed. Check %s for error details.", title, logPath)
	case out.Success:
		pterm.Success.Printfln("%s completed successfully! Check %s for detailed logs.", title, logPath)
	default:
		pterm.Warning.Printfln("%s completed with warnings. Check %s for details.", title, logPath)
	}
	return ExitOK
}
