package scheduler

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job represents a scheduled task
type Job func(ctx context.Context) error

// Scheduler runs probe jobs on cron schedules. A job that is still running
// when its next tick arrives skips that tick.
type Scheduler struct {
	ctx        context.Context
	cancel     context.CancelFunc
	cron       *cron.Cron
	jobs       map[string]cron.EntryID
	timezone   *time.Location
	jobTimeout time.Duration
	logger     *zap.Logger
}

// New creates a new scheduler with the given timezone. Job runs derive their
// context from ctx and are each bounded by jobTimeout.
func New(ctx context.Context, timezone string, jobTimeout time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}

	cl := cronLogger{logger.Named("cron").Sugar()}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		ctx:        ctx,
		cancel:     cancel,
		cron:       c,
		jobs:       make(map[string]cron.EntryID),
		timezone:   loc,
		jobTimeout: jobTimeout,
		logger:     logger,
	}, nil
}

// AddJob adds a job with a cron schedule.
// schedule format: "0 7 * * *" (at 7:00 AM daily) or "@every 1h"
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already scheduled", name)
	}

	entryID, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := s.jobContext()
		defer cancel()

		s.logger.Info("Starting job", zap.String("job", name))
		start := time.Now()

		if err := job(ctx); err != nil {
			s.logger.Error("Job failed", zap.String("job", name), zap.Error(err))
		} else {
			s.logger.Info("Job completed", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
		}
	})

	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = entryID
	s.logger.Info("Added job", zap.String("job", name), zap.String("schedule", schedule))

	return nil
}

var clockTime = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

// Spec turns a configured schedule into a cron spec. A bare "HH:MM" becomes a
// daily run at that time; anything else is passed through unchanged.
func Spec(schedule string) (string, error) {
	if !clockTime.MatchString(schedule) {
		return schedule, nil
	}

	t, err := time.Parse("15:04", schedule)
	if err != nil {
		return "", fmt.Errorf("invalid time format %s: %w", schedule, err)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler", zap.String("timezone", s.timezone.String()))
	s.cron.Start()
}

// Stop halts the scheduler and cancels any running job. The returned context
// is done once running jobs have returned.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("Stopping scheduler")
	s.cancel()
	return s.cron.Stop()
}

// RunNow immediately executes a job under the same timeout as scheduled runs
func (s *Scheduler) RunNow(name string, job Job) error {
	ctx, cancel := s.jobContext()
	defer cancel()

	s.logger.Info("Running job now", zap.String("job", name))
	return job(ctx)
}

func (s *Scheduler) jobContext() (context.Context, context.CancelFunc) {
	if s.jobTimeout <= 0 {
		return context.WithCancel(s.ctx)
	}
	return context.WithTimeout(s.ctx, s.jobTimeout)
}

// ListJobs returns info about scheduled jobs, sorted by name
func (s *Scheduler) ListJobs() []JobInfo {
	infos := make([]JobInfo, 0, len(s.jobs))

	for name, entryID := range s.jobs {
		entry := s.cron.Entry(entryID)
		if !entry.Valid() {
			continue
		}
		infos = append(infos, JobInfo{
			Name:    name,
			NextRun: entry.Next,
			LastRun: entry.Prev,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
}

// cronLogger routes cron's own messages into zap. cron's info messages are
// per-tick noise, so they go to debug.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
