package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/donsko1/DNS-case/internal/contracts"
	"github.com/donsko1/DNS-case/pkg/logger"
)

// ErrChainRunning is returned when a chain is triggered while another one is in progress
var ErrChainRunning = errors.New("a pipeline run is already in progress")

// CompletionRecorder persists final job outcomes outside the process
type CompletionRecorder interface {
	RecordCompletion(ctx context.Context, c contracts.JobCompletion) error
	LastCompletion(ctx context.Context, job string) (*contracts.JobCompletion, error)
}

// Observer receives every final job result (metrics)
type Observer interface {
	ObserveJob(result JobResult)
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithRetries sets how often a failed job is retried and the pause between attempts
func WithRetries(maxRetries int, delay time.Duration) Option {
	return func(s *Scheduler) {
		s.maxRetries = maxRetries
		s.retryDelay = delay
	}
}

// WithRecorder publishes completions to r and consults it before running a dependent job
func WithRecorder(r CompletionRecorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithObserver registers an observer for job results
func WithObserver(o Observer) Option {
	return func(s *Scheduler) { s.observers = append(s.observers, o) }
}

type runIDKey struct{}

// WithRunID attaches a chain run id to ctx
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the chain run id carried by ctx
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Scheduler runs jobs on cron and chains dependent jobs after their upstream
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	cron       *cron.Cron
	logger     *logger.Logger
	jobs       map[string]Job
	order      []string
	dependents map[string][]string
	entries    map[string]cron.EntryID
	specs      map[string]string
	history    map[string]*JobHistory
	mu         sync.RWMutex

	// 동시에 하나의 체인만 실행
	chainMu sync.Mutex

	// Retry configuration
	maxRetries int
	retryDelay time.Duration

	recorder  CompletionRecorder
	observers []Observer
}

// New creates a new scheduler
func New(log *logger.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		logger:     log,
		jobs:       make(map[string]Job),
		dependents: make(map[string][]string),
		entries:    make(map[string]cron.EntryID),
		specs:      make(map[string]string),
		history:    make(map[string]*JobHistory),
		maxRetries: 1,
		retryDelay: 1 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddJob registers a job. Upstream jobs must be registered before their
// dependents; a job without dependencies is put on cron.
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobName := job.Name()
	if _, exists := s.jobs[jobName]; exists {
		return fmt.Errorf("job %s already exists", jobName)
	}

	upstream := dependenciesOf(job)
	for _, dep := range upstream {
		if _, ok := s.jobs[dep]; !ok {
			return fmt.Errorf("job %s depends on unknown job %s", jobName, dep)
		}
	}

	if len(upstream) == 0 {
		spec := job.Schedule()
		id, err := s.cron.AddFunc(spec, func() { s.runScheduled(jobName) })
		if err != nil {
			return fmt.Errorf("failed to schedule job %s: %w", jobName, err)
		}
		s.entries[jobName] = id
		s.specs[jobName] = spec
	}

	for _, dep := range upstream {
		s.dependents[dep] = append(s.dependents[dep], jobName)
	}
	s.jobs[jobName] = job
	s.order = append(s.order, jobName)
	s.history[jobName] = &JobHistory{}

	s.logger.WithFields(map[string]interface{}{
		"job":        jobName,
		"schedule":   s.specs[jobName],
		"depends_on": upstream,
	}).Info("Job added to scheduler")

	return nil
}

// Reschedule replaces the cron expression of a root job
func (s *Scheduler) Reschedule(jobName, spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldID, ok := s.entries[jobName]
	if !ok {
		return fmt.Errorf("job %s is not a scheduled root job", jobName)
	}
	if s.specs[jobName] == spec {
		return nil
	}

	id, err := s.cron.AddFunc(spec, func() { s.runScheduled(jobName) })
	if err != nil {
		return fmt.Errorf("failed to reschedule job %s: %w", jobName, err)
	}
	s.cron.Remove(oldID)
	s.entries[jobName] = id
	s.specs[jobName] = spec

	s.logger.WithFields(map[string]interface{}{
		"job":      jobName,
		"schedule": spec,
	}).Info("Job rescheduled")
	return nil
}

// SetRetries changes the retry policy for runs started afterwards
func (s *Scheduler) SetRetries(maxRetries int, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxRetries = maxRetries
	s.retryDelay = delay
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// NextRun returns the next activation of a root job
func (s *Scheduler) NextRun(jobName string) (time.Time, bool) {
	s.mu.RLock()
	id, ok := s.entries[jobName]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}, false
	}
	next := s.cron.Entry(id).Next
	return next, !next.IsZero()
}

// runScheduled is the cron entry point
func (s *Scheduler) runScheduled(jobName string) {
	results, err := s.RunChain(context.Background(), jobName)
	if errors.Is(err, ErrChainRunning) {
		s.logger.WithField("job", jobName).Warn("Previous run still in progress, skipping scheduled run")
		return
	}
	if err != nil {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"job":  jobName,
			"jobs": len(results),
		}).Error("Scheduled chain failed")
	}
}

// RunChain runs jobName and then, on success, every job depending on it,
// synchronously and under one run id. It stops at the first failed job.
func (s *Scheduler) RunChain(ctx context.Context, jobName string) ([]JobResult, error) {
	s.mu.RLock()
	_, exists := s.jobs[jobName]
	s.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("job %s not found", jobName)
	}

	if !s.chainMu.TryLock() {
		return nil, ErrChainRunning
	}
	defer s.chainMu.Unlock()

	runID := RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = WithRunID(ctx, runID)
	}
	log := s.logger.WithRun(runID, jobName)
	log.Info("Chain started")

	results := make([]JobResult, 0)
	queue := []string{jobName}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		s.mu.RLock()
		job := s.jobs[name]
		next := append([]string(nil), s.dependents[name]...)
		s.mu.RUnlock()

		result := s.execute(ctx, job, runID)
		results = append(results, result)
		if !result.Success {
			log.WithField("failed_job", name).Error("Chain stopped")
			return results, fmt.Errorf("job %s failed: %s", name, result.Error)
		}
		queue = append(queue, next...)
	}

	log.WithField("jobs", len(results)).Info("Chain completed")
	return results, nil
}

// RunJob runs a single job synchronously (outside of schedule), without its
// dependents. A dependent job is refused when its upstream's last run failed.
func (s *Scheduler) RunJob(ctx context.Context, jobName string) (JobResult, error) {
	s.mu.RLock()
	job, exists := s.jobs[jobName]
	s.mu.RUnlock()

	if !exists {
		return JobResult{}, fmt.Errorf("job %s not found", jobName)
	}

	for _, dep := range dependenciesOf(job) {
		if err := s.checkUpstream(ctx, dep); err != nil {
			return JobResult{}, fmt.Errorf("job %s: %w", jobName, err)
		}
	}

	if !s.chainMu.TryLock() {
		return JobResult{}, ErrChainRunning
	}
	defer s.chainMu.Unlock()

	runID := RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = WithRunID(ctx, runID)
	}

	result := s.execute(ctx, job, runID)
	if !result.Success {
		return result, fmt.Errorf("job %s failed: %s", jobName, result.Error)
	}
	return result, nil
}

// checkUpstream fails when the last known run of upstream failed, in this
// process or, with a recorder, anywhere
func (s *Scheduler) checkUpstream(ctx context.Context, upstream string) error {
	s.mu.RLock()
	last, ok := s.history[upstream].Last()
	s.mu.RUnlock()
	if ok && !last.Success {
		return fmt.Errorf("%w: last %s run %s failed: %s", contracts.ErrUpstreamNotCompleted, upstream, last.RunID, last.Error)
	}

	if s.recorder == nil {
		return nil
	}
	c, err := s.recorder.LastCompletion(ctx, upstream)
	if err != nil {
		return fmt.Errorf("check %s completion: %w", upstream, err)
	}
	if c != nil && !c.Succeeded() {
		return fmt.Errorf("%w: last %s run %s failed: %s", contracts.ErrUpstreamNotCompleted, upstream, c.RunID, c.Error)
	}
	return nil
}

// execute runs a job with retry logic and records the final result
func (s *Scheduler) execute(ctx context.Context, job Job, runID string) JobResult {
	jobName := job.Name()
	startTime := time.Now()

	s.mu.RLock()
	maxRetries, retryDelay := s.maxRetries, s.retryDelay
	s.mu.RUnlock()

	log := s.logger.WithRun(runID, jobName)
	log.Info("Job started")

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= maxRetries; attempt++ {
		attempts++
		err := job.Run(ctx)
		if err == nil {
			lastErr = nil
			break
		}

		lastErr = err
		log.WithFields(map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		}).Warn("Job execution failed")

		if attempt == maxRetries {
			break
		}
		if err := sleep(ctx, retryDelay); err != nil {
			lastErr = fmt.Errorf("%v (retry aborted: %w)", lastErr, err)
			break
		}
	}

	endTime := time.Now()
	result := JobResult{
		JobName:   jobName,
		RunID:     runID,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  endTime.Sub(startTime),
		Attempts:  attempts,
		Success:   lastErr == nil,
	}
	if lastErr != nil {
		result.Error = lastErr.Error()
	}

	s.mu.Lock()
	if history, exists := s.history[jobName]; exists {
		history.AddResult(result)
	}
	observers := s.observers
	s.mu.Unlock()

	for _, o := range observers {
		o.ObserveJob(result)
	}
	s.record(ctx, result)

	if result.Success {
		log.WithFields(map[string]interface{}{
			"duration": result.Duration,
			"attempts": attempts,
		}).Info("Job completed successfully")
	} else {
		log.WithFields(map[string]interface{}{
			"duration": result.Duration,
			"attempts": attempts,
			"error":    result.Error,
		}).Error("Job failed after all retries")
	}

	return result
}

// record publishes the result to the recorder. Failing to record does not
// fail the job.
func (s *Scheduler) record(ctx context.Context, r JobResult) {
	if s.recorder == nil {
		return
	}

	status := contracts.JobStatusSuccess
	if !r.Success {
		status = contracts.JobStatusFailed
	}
	err := s.recorder.RecordCompletion(context.WithoutCancel(ctx), contracts.JobCompletion{
		Job:        r.JobName,
		RunID:      r.RunID,
		Status:     status,
		Error:      r.Error,
		Attempts:   r.Attempts,
		StartedAt:  r.StartTime,
		FinishedAt: r.EndTime,
	})
	if err != nil {
		s.logger.WithError(err).WithField("job", r.JobName).Warn("Failed to record job completion")
	}
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// GetJobHistory returns the history for a specific job
func (s *Scheduler) GetJobHistory(jobName string) (*JobHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, exists := s.history[jobName]
	if !exists {
		return nil, fmt.Errorf("job %s not found", jobName)
	}

	return &JobHistory{Results: history.GetLatestResults(len(history.Results))}, nil
}

// GetAllJobs returns all registered jobs in registration order
func (s *Scheduler) GetAllJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.order...)
}

// Roots returns the jobs that are triggered by cron
func (s *Scheduler) Roots() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roots := make([]string, 0)
	for _, name := range s.order {
		if _, ok := s.entries[name]; ok {
			roots = append(roots, name)
		}
	}
	return roots
}

// GetJobStats returns statistics for all jobs
func (s *Scheduler) GetJobStats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats)

	for jobName, history := range s.history {
		failedResults := history.GetFailedResults()

		var lastRun, lastSuccess, lastFailure *time.Time
		if last, ok := history.Last(); ok {
			start := last.StartTime
			lastRun = &start
			if last.Success {
				lastSuccess = &start
			} else {
				lastFailure = &start
			}
		}

		stats[jobName] = JobStats{
			JobName:      jobName,
			Schedule:     s.specs[jobName],
			DependsOn:    dependenciesOf(s.jobs[jobName]),
			TotalRuns:    len(history.Results),
			SuccessCount: len(history.Results) - len(failedResults),
			FailureCount: len(failedResults),
			SuccessRate:  history.GetSuccessRate(),
			LastRun:      lastRun,
			LastSuccess:  lastSuccess,
			LastFailure:  lastFailure,
		}
	}

	return stats
}

// JobStats represents statistics for a job
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule,omitempty"`
	DependsOn    []string   `json:"depends_on,omitempty"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
}
