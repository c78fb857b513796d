package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrJobRunning is returned by RunNow when the job is already executing
var ErrJobRunning = errors.New("job already running")

// Job is a periodic maintenance task
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// JobStatus reports the history of one job
type JobStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	LastRun   time.Time `json:"lastRun"`
	NextRun   time.Time `json:"nextRun"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	LastError string    `json:"lastError,omitempty"`
}

type scheduledJob struct {
	job     Job
	id      cron.EntryID
	status  JobStatus
	running sync.Mutex
}

// Scheduler runs jobs on cron schedules. A job still running when it is due again is skipped.
type Scheduler struct {
	cron   *cron.Cron
	jobs   map[string]*scheduledJob
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// NewScheduler creates a stopped scheduler
func NewScheduler(logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		jobs:   make(map[string]*scheduledJob),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Schedule registers a job. Schedules use the standard five-field cron syntax or descriptors like "@every 5m".
func (s *Scheduler) Schedule(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("schedule job: name and run function are required")
	}
	if _, err := cron.ParseStandard(job.Schedule); err != nil {
		return fmt.Errorf("schedule job %s: %w", job.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("schedule job %s: already scheduled", job.Name)
	}

	sj := &scheduledJob{job: job, status: JobStatus{Name: job.Name, Schedule: job.Schedule}}
	id, err := s.cron.AddFunc(job.Schedule, func() { s.execute(sj) })
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", job.Name, err)
	}
	sj.id = id
	s.jobs[job.Name] = sj

	s.logger.Info("job scheduled", "job", job.Name, "schedule", job.Schedule)
	return nil
}

// RunNow executes a job immediately, outside its schedule. It fails with
// ErrJobRunning instead of overlapping a run already in progress.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	sj, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	return s.execute(sj)
}

// Status returns the state of every job
func (s *Scheduler) Status() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]JobStatus, 0, len(s.jobs))
	for _, sj := range s.jobs {
		status := sj.status
		status.NextRun = s.cron.Entry(sj.id).Next
		statuses = append(statuses, status)
	}
	return statuses
}

// Start begins running jobs on their schedules
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for running jobs
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

func (s *Scheduler) execute(sj *scheduledJob) error {
	if !sj.running.TryLock() {
		s.logger.Info("job still running, skipped", "job", sj.job.Name)
		return fmt.Errorf("%s: %w", sj.job.Name, ErrJobRunning)
	}
	defer sj.running.Unlock()

	start := time.Now()
	err := sj.job.Run(s.ctx)

	s.mu.Lock()
	sj.status.LastRun = start
	sj.status.Runs++
	if err != nil {
		sj.status.Failures++
		sj.status.LastError = err.Error()
	} else {
		sj.status.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed", "job", sj.job.Name, "error", err)
		return err
	}
	s.logger.Debug("job completed", "job", sj.job.Name, "duration", time.Since(start))
	return nil
}

// cronLogger adapts slog to the cron.Logger interface
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// MaintenanceJobs returns the thread rescan and stale-session cleanup jobs
func MaintenanceJobs(hub *Hub, refresh func(ctx context.Context) error, rescan, cleanup string) []Job {
	jobs := make([]Job, 0, 2)
	if refresh != nil && rescan != "" {
		jobs = append(jobs, Job{
			Name:     "thread-rescan",
			Schedule: rescan,
			Run:      refresh,
		})
	}
	if cleanup != "" {
		jobs = append(jobs, Job{
			Name:     "session-cleanup",
			Schedule: cleanup,
			Run: func(ctx context.Context) error {
				hub.CleanupStale(time.Now())
				return nil
			},
		})
	}
	return jobs
}
