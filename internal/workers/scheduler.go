package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/exp/slices"

	"github.com/sand/chain-compliance/backend/internal/lock"
	"github.com/sand/chain-compliance/backend/internal/metrics"
)

const environmentProduction = "production"

// Job outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

var (
	ErrJobNotFound      = errors.New("job not found")
	ErrJobAlreadyExists = errors.New("job already registered")
)

// Locker guards a job run across instances.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// Job is a named recurring task. Schedule accepts "@every 10m" or a
// standard 5-field cron expression.
type Job struct {
	Name         string
	Schedule     string
	LockKey      string
	LockDuration time.Duration
	Enabled      bool
	Run          func(ctx context.Context) error
}

type SchedulerConfig struct {
	Enabled           bool
	ProductionEnabled bool
	Environment       string
}

// JobStatus is a snapshot of one job.
type JobStatus struct {
	Name        string     `json:"name"`
	Schedule    string     `json:"schedule"`
	Enabled     bool       `json:"enabled"`
	Running     bool       `json:"running"`
	Executing   bool       `json:"executing"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	LastOutcome string     `json:"last_outcome,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
}

// Status is a snapshot of the scheduler.
type Status struct {
	Enabled bool        `json:"enabled"`
	Running bool        `json:"running"`
	Jobs    []JobStatus `json:"jobs"`
}

type jobState struct {
	job      Job
	schedule cron.Schedule

	cancel context.CancelFunc
	done   chan struct{}

	executing   int
	lastRun     time.Time
	lastOutcome string
	lastErr     string
	nextRun     time.Time
}

// Scheduler runs registered jobs on their schedules, one goroutine per job.
// Every run goes through the distributed lock, so across all instances at
// most one executes a given job at a time; a tick that finds the lock held
// is skipped, never queued.
type Scheduler struct {
	logger  *slog.Logger
	locker  Locker
	metrics *metrics.Metrics
	cfg     SchedulerConfig

	mu      sync.Mutex
	jobs    map[string]*jobState
	running bool
}

func NewScheduler(logger *slog.Logger, locker Locker, cfg SchedulerConfig, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		logger:  logger,
		locker:  locker,
		metrics: m,
		cfg:     cfg,
		jobs:    make(map[string]*jobState),
	}
}

// Enabled reports whether scheduled runs are allowed in this environment.
func (s *Scheduler) Enabled() bool {
	return s.cfg.Enabled && (s.cfg.Environment != environmentProduction || s.cfg.ProductionEnabled)
}

// Register adds a job. It must be called before Start.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" {
		return errors.New("job name is required")
	}
	if job.Run == nil {
		return fmt.Errorf("job %s has no run function", job.Name)
	}
	if job.LockDuration <= 0 {
		return fmt.Errorf("job %s has invalid lock duration %s", job.Name, job.LockDuration)
	}
	if job.LockKey == "" {
		job.LockKey = "job:" + job.Name
	}

	schedule, err := cron.ParseStandard(job.Schedule)
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", job.Schedule, job.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.Name]; ok {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, job.Name)
	}
	s.jobs[job.Name] = &jobState{job: job, schedule: schedule}
	return nil
}

// Start launches a goroutine per enabled job. It does nothing when the
// scheduler is disabled for the environment.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.Enabled() {
		s.logger.Warn("Scheduler is disabled",
			"enabled", s.cfg.Enabled,
			"production_enabled", s.cfg.ProductionEnabled,
			"environment", s.cfg.Environment)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true

	for _, name := range s.sortedNames() {
		state := s.jobs[name]
		if !state.job.Enabled {
			s.logger.Info("Job is disabled", "job", name)
			continue
		}
		s.startJob(ctx, state)
	}

	s.logger.Info("Scheduler started", "jobs", len(s.jobs))
}

// startJob must be called with s.mu held.
func (s *Scheduler) startJob(ctx context.Context, state *jobState) {
	jobCtx, cancel := context.WithCancel(ctx)
	state.cancel = cancel
	state.done = make(chan struct{})

	go s.loop(jobCtx, state, state.done)

	s.logger.Info("Job scheduled", "job", state.job.Name, "schedule", state.job.Schedule)
}

func (s *Scheduler) loop(ctx context.Context, state *jobState, done chan struct{}) {
	defer close(done)

	for {
		now := time.Now()
		next := state.schedule.Next(now)

		s.mu.Lock()
		state.nextRun = next
		s.mu.Unlock()

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			_ = s.execute(ctx, state, "schedule")
		}
	}
}

// execute runs the job under its lock and records the outcome.
func (s *Scheduler) execute(ctx context.Context, state *jobState, trigger string) error {
	job := state.job
	started := time.Now()

	s.mu.Lock()
	state.executing++
	s.mu.Unlock()

	err := s.locker.WithLock(ctx, job.LockKey, job.LockDuration, func(ctx context.Context) error {
		s.logger.InfoContext(ctx, "Job started", "job", job.Name, "trigger", trigger)
		return job.Run(ctx)
	})

	outcome := OutcomeSuccess
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		outcome = OutcomeSkipped
		s.logger.InfoContext(ctx, "Job skipped, lock is held by another instance", "job", job.Name, "trigger", trigger)
	case err != nil:
		outcome = OutcomeFailed
		s.logger.ErrorContext(ctx, "Job failed", "job", job.Name, "trigger", trigger, "error", err)
	default:
		s.logger.InfoContext(ctx, "Job finished",
			"job", job.Name,
			"trigger", trigger,
			"duration", time.Since(started).String())
	}

	s.metrics.IncJobRun(job.Name, outcome)
	if outcome != OutcomeSkipped {
		s.metrics.ObserveJobDuration(job.Name, time.Since(started))
	}

	s.mu.Lock()
	state.executing--
	state.lastRun = started
	state.lastOutcome = outcome
	state.lastErr = ""
	if err != nil {
		state.lastErr = err.Error()
	}
	s.mu.Unlock()

	return err
}

// Stop cancels the scheduled loop of one job and waits for it to exit.
func (s *Scheduler) Stop(name string) error {
	s.mu.Lock()
	state, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	cancel, done := state.cancel, state.done
	state.cancel, state.done = nil, nil
	state.nextRun = time.Time{}
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	s.logger.Info("Job stopped", "job", name)
	return nil
}

// StopAll stops every job loop.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	names := s.sortedNames()
	s.mu.Unlock()

	for _, name := range names {
		_ = s.Stop(name)
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Scheduler stopped")
}

// TriggerManual runs a job now, outside its schedule. The run is still
// lock-guarded and returns lock.ErrNotAcquired when the lock is held.
func (s *Scheduler) TriggerManual(ctx context.Context, name string) error {
	s.mu.Lock()
	state, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	return s.execute(ctx, state, "manual")
}

// Status returns a snapshot of the scheduler and its jobs.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Enabled: s.Enabled(),
		Running: s.running,
		Jobs:    make([]JobStatus, 0, len(s.jobs)),
	}

	for _, name := range s.sortedNames() {
		state := s.jobs[name]
		js := JobStatus{
			Name:        name,
			Schedule:    state.job.Schedule,
			Enabled:     state.job.Enabled,
			Running:     state.cancel != nil,
			Executing:   state.executing > 0,
			LastOutcome: state.lastOutcome,
			LastError:   state.lastErr,
		}
		if !state.lastRun.IsZero() {
			t := state.lastRun
			js.LastRun = &t
		}
		if !state.nextRun.IsZero() {
			t := state.nextRun
			js.NextRun = &t
		}
		status.Jobs = append(status.Jobs, js)
	}

	return status
}

// sortedNames must be called with s.mu held.
func (s *Scheduler) sortedNames() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
