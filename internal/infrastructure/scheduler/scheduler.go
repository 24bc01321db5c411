// Package scheduler runs periodic background jobs in the worker, such as the
// recurring recommendation run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alem-hub/academic-risk-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job defines the interface that all scheduled jobs must implement.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job.
	// The context is cancelled when the scheduler is stopping.
	Run(ctx context.Context) error

	// Description returns a human-readable description of the job.
	Description() string
}

// Schedule defines when a job should run.
type Schedule interface {
	// Next returns the next time the job should run after the given time.
	Next(t time.Time) time.Time

	// String returns a human-readable representation of the schedule.
	String() string
}

// JobMetrics receives the outcome of every job run.
type JobMetrics interface {
	RecordJobRun(job string, success bool, d time.Duration)
}

// JobResult contains the result of a job execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Error       error
	Manual      bool
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Scheduler manages and executes scheduled jobs. A job never overlaps with
// itself: a due tick is skipped while the previous run is still going.
type Scheduler struct {
	mu sync.RWMutex

	logger       *logger.Logger
	metrics      JobMetrics
	timezone     *time.Location
	tick         time.Duration
	jobTimeout   time.Duration
	runOnStart   bool
	historyLimit int
	slots        chan struct{}

	jobs       map[string]*scheduledJob
	running    bool
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	startedAt  time.Time
	runHistory []JobResult
}

type scheduledJob struct {
	job       Job
	schedule  Schedule
	enabled   bool
	active    bool
	lastRun   time.Time
	nextRun   time.Time
	runCount  int64
	failCount int64
	last      *JobResult
}

// Config contains configuration for the Scheduler.
type Config struct {
	Logger  *logger.Logger
	Metrics JobMetrics

	// Timezone for schedule calculations (default: UTC).
	Timezone *time.Location

	// TickInterval is how often due jobs are checked (default: 1s).
	TickInterval time.Duration

	// MaxConcurrentJobs bounds parallel job runs (default: 1).
	MaxConcurrentJobs int

	// JobTimeout bounds a single run; zero means no limit.
	JobTimeout time.Duration

	// RunOnStart runs every job once right after Start.
	RunOnStart bool

	// MaxHistorySize is the maximum number of job results to keep.
	MaxHistorySize int
}

// New creates a new Scheduler with the given configuration.
func New(cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 1
	}
	if cfg.MaxHistorySize <= 0 {
		cfg.MaxHistorySize = 100
	}

	return &Scheduler{
		logger:       cfg.Logger.With(logger.Component("scheduler")),
		metrics:      cfg.Metrics,
		timezone:     cfg.Timezone,
		tick:         cfg.TickInterval,
		jobTimeout:   cfg.JobTimeout,
		runOnStart:   cfg.RunOnStart,
		historyLimit: cfg.MaxHistorySize,
		slots:        make(chan struct{}, cfg.MaxConcurrentJobs),
		jobs:         make(map[string]*scheduledJob),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// JOB REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// Register adds a job to the scheduler with the given schedule.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	sj := &scheduledJob{
		job:      job,
		schedule: schedule,
		enabled:  true,
		nextRun:  schedule.Next(time.Now().In(s.timezone)),
	}
	s.jobs[name] = sj

	s.logger.Info("job registered",
		logger.String("job", name),
		logger.String("schedule", schedule.String()),
		logger.Time("next_run", sj.nextRun),
	)
	return nil
}

// SetEnabled enables or disables a job by name.
func (s *Scheduler) SetEnabled(jobName string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sj, exists := s.jobs[jobName]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	sj.enabled = enabled
	if enabled {
		sj.nextRun = sj.schedule.Next(time.Now().In(s.timezone))
	}
	s.logger.Info("job toggled", logger.String("job", jobName), logger.Bool("enabled", enabled))
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.startedAt = time.Now()

	var initial []*scheduledJob
	if s.runOnStart {
		for _, sj := range s.jobs {
			if sj.enabled {
				initial = append(initial, sj)
			}
		}
	}
	jobsCount := len(s.jobs)
	s.mu.Unlock()

	s.logger.Info("scheduler started", logger.Int("jobs_count", jobsCount))

	for _, sj := range initial {
		s.dispatch(sj, time.Now())
	}

	s.wg.Add(1)
	go s.runLoop()
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	s.logger.Info("scheduler stopped", logger.Duration("uptime", time.Since(s.startedAt)))
	return nil
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER LOOP
// ══════════════════════════════════════════════════════════════════════════════

func (s *Scheduler) runLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.checkAndRunJobs()
		}
	}
}

func (s *Scheduler) checkAndRunJobs() {
	now := time.Now().In(s.timezone)

	s.mu.RLock()
	var due []*scheduledJob
	for _, sj := range s.jobs {
		if sj.enabled && !sj.nextRun.IsZero() && !now.Before(sj.nextRun) {
			due = append(due, sj)
		}
	}
	s.mu.RUnlock()

	for _, sj := range due {
		s.dispatch(sj, now)
	}
}

// dispatch starts sj in the background unless it is already running.
func (s *Scheduler) dispatch(sj *scheduledJob, now time.Time) {
	s.mu.Lock()
	sj.nextRun = sj.schedule.Next(now.In(s.timezone))
	if sj.active {
		s.mu.Unlock()
		s.logger.Warn("job still running, tick skipped", logger.String("job", sj.job.Name()))
		return
	}
	sj.active = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			sj.active = false
			s.mu.Unlock()
		}()

		select {
		case s.slots <- struct{}{}:
		case <-s.ctx.Done():
			return
		}
		defer func() { <-s.slots }()

		s.execute(s.ctx, sj, false)
	}()
}

// execute runs the job under the job timeout and records the result.
func (s *Scheduler) execute(ctx context.Context, sj *scheduledJob, manual bool) JobResult {
	name := sj.job.Name()
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	startedAt := time.Now()
	s.logger.Info("job started", logger.String("job", name), logger.Bool("manual", manual))

	err := s.safeRun(ctx, sj.job)
	completedAt := time.Now()

	result := JobResult{
		JobName:     name,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
		Success:     err == nil,
		Error:       err,
		Manual:      manual,
	}

	s.mu.Lock()
	sj.lastRun = startedAt
	sj.runCount++
	if err != nil {
		sj.failCount++
	}
	sj.last = &result
	s.runHistory = append(s.runHistory, result)
	if len(s.runHistory) > s.historyLimit {
		s.runHistory = s.runHistory[len(s.runHistory)-s.historyLimit:]
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordJobRun(name, err == nil, result.Duration)
	}

	if err != nil {
		s.logger.Error("job failed",
			logger.String("job", name),
			logger.Duration("duration", result.Duration),
			logger.Err(err),
		)
	} else {
		s.logger.Info("job completed",
			logger.String("job", name),
			logger.Duration("duration", result.Duration),
		)
	}
	return result
}

func (s *Scheduler) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	return job.Run(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL EXECUTION
// ══════════════════════════════════════════════════════════════════════════════

// RunNow executes a job synchronously, ignoring its schedule.
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (*JobResult, error) {
	s.mu.Lock()
	sj, exists := s.jobs[jobName]
	if !exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	if sj.active {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobRunning, jobName)
	}
	sj.active = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		sj.active = false
		s.mu.Unlock()
	}()

	result := s.execute(ctx, sj, true)
	return &result, result.Error
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS & INFO
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo contains information about a registered job.
type JobInfo struct {
	Name        string
	Description string
	Enabled     bool
	Running     bool
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
	LastResult  *JobResult
}

// ListJobs returns information about all registered jobs sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, sj := range s.jobs {
		infos = append(infos, JobInfo{
			Name:        name,
			Description: sj.job.Description(),
			Enabled:     sj.enabled,
			Running:     sj.active,
			Schedule:    sj.schedule.String(),
			LastRun:     sj.lastRun,
			NextRun:     sj.nextRun,
			RunCount:    sj.runCount,
			FailCount:   sj.failCount,
			LastResult:  sj.last,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// GetHistory returns up to limit most recent results, oldest first.
func (s *Scheduler) GetHistory(limit int) []JobResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.runHistory) {
		limit = len(s.runHistory)
	}
	out := make([]JobResult, limit)
	copy(out, s.runHistory[len(s.runHistory)-limit:])
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrNilSchedule             = errors.New("schedule cannot be nil")
	ErrJobAlreadyExists        = errors.New("job already exists")
	ErrJobNotFound             = errors.New("job not found")
	ErrJobRunning              = errors.New("job is already running")
	ErrJobPanicked             = errors.New("job panicked")
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
)
