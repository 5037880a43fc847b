// Package scheduler runs the bot's jobs on cron schedules in a fixed
// timezone. A job never overlaps with itself, whether it was started by the
// cron loop or by RunNow, and a panicking job is contained to its invocation.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ibeckermayer/reply4me/internal/config"
	"github.com/ibeckermayer/reply4me/internal/metrics"
)

// DefaultJobTimeout bounds a single job invocation.
const DefaultJobTimeout = 30 * time.Minute

// ErrJobRunning is returned by RunNow when the job is already in progress.
var ErrJobRunning = errors.New("job already running")

// Job represents a scheduled task
type Job func(ctx context.Context) error

// Scheduler manages periodic tasks
type Scheduler struct {
	cron     *cron.Cron
	timezone *time.Location
	timeout  time.Duration
	logger   *slog.Logger
	locks    *locks

	mu   sync.Mutex
	jobs map[string]cron.EntryID
	base context.Context
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithJobTimeout bounds each invocation; zero disables the bound.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// New creates a new scheduler with the given timezone
func New(timezone string, opts ...Option) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}

	s := &Scheduler{
		timezone: loc,
		timeout:  DefaultJobTimeout,
		logger:   slog.Default(),
		locks:    newLocks(),
		jobs:     make(map[string]cron.EntryID),
		base:     context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("subsystem", "scheduler")

	cl := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return s, nil
}

// Location returns the scheduler's timezone.
func (s *Scheduler) Location() *time.Location {
	return s.timezone
}

// AddJob adds a job with a cron schedule
// schedule format: "0 7 * * *" (at 7:00 AM daily) or "@every 1m"
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		if err := s.run(s.baseContext(), name, job); errors.Is(err, ErrJobRunning) {
			s.logger.Info("Skipping job, previous run still in progress", "job", name)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.mu.Lock()
	s.jobs[name] = entryID
	s.mu.Unlock()
	s.logger.Info("Added job", "job", name, "schedule", schedule)
	return nil
}

// AddIntervalJob runs job every d, starting d after Start.
func (s *Scheduler) AddIntervalJob(name string, d time.Duration, job Job) error {
	if d < time.Second {
		return fmt.Errorf("interval for job %s must be at least 1s, got %s", name, d)
	}
	return s.AddJob(name, "@every "+d.String(), job)
}

// AddDailyJob adds a job at a specific local time
// timeStr format: "07:00" or "18:00"
func (s *Scheduler) AddDailyJob(name, timeStr string, job Job) error {
	spec, err := DailySpec(timeStr)
	if err != nil {
		return err
	}
	return s.AddJob(name, spec, job)
}

// DailySpec converts "HH:MM" into a standard five-field cron spec.
func DailySpec(timeStr string) (string, error) {
	hour, minute, err := config.ParseClock(timeStr)
	if err != nil {
		return "", fmt.Errorf("invalid time format %s: %w", timeStr, err)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// Start begins running scheduled jobs. Invocations derive their context
// from ctx, so cancelling it stops in-flight jobs at their next check.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()
	s.logger.Info("Starting scheduler", "timezone", s.timezone.String())
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("Stopping scheduler")
	return s.cron.Stop()
}

// RunNow immediately executes a job under the same lock the cron loop uses.
// It returns ErrJobRunning if the job is already in progress.
func (s *Scheduler) RunNow(ctx context.Context, name string, job Job) error {
	s.logger.Info("Running job now", "job", name)
	return s.run(ctx, name, job)
}

func (s *Scheduler) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

// run executes one invocation: non-reentrant per name, time-bounded, with
// panics turned into errors.
func (s *Scheduler) run(ctx context.Context, name string, job Job) (err error) {
	release, ok := s.locks.tryAcquire(name)
	if !ok {
		metrics.JobRunCount.WithLabelValues(name, "skipped").Inc()
		return ErrJobRunning
	}
	defer release()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	logger := s.logger.With("job", name)
	logger.Info("Starting job")
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", name, r)
		}
		elapsed := time.Since(start)
		metrics.JobDuration.WithLabelValues(name).Observe(elapsed.Seconds())
		if err != nil {
			metrics.JobRunCount.WithLabelValues(name, "error").Inc()
			logger.Error("Job failed", "duration", elapsed, "error", err)
			return
		}
		metrics.JobRunCount.WithLabelValues(name, "ok").Inc()
		logger.Info("Job completed", "duration", elapsed)
	}()

	return job(ctx)
}

// ListJobs returns info about scheduled jobs
func (s *Scheduler) ListJobs() []JobInfo {
	entries := s.cron.Entries()

	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]JobInfo, 0, len(entries))
	for name, entryID := range s.jobs {
		for _, entry := range entries {
			if entry.ID == entryID {
				infos = append(infos, JobInfo{
					Name:    name,
					NextRun: entry.Next,
					LastRun: entry.Prev,
				})
				break
			}
		}
	}
	return infos
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
}

type locks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newLocks() *locks {
	return &locks{held: make(map[string]bool)}
}

func (l *locks) tryAcquire(name string) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] {
		return nil, false
	}
	l.held[name] = true
	return func() {
		l.mu.Lock()
		delete(l.held, name)
		l.mu.Unlock()
	}, true
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
